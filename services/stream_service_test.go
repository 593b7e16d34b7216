package services

import (
	"bufio"
	"bytes"
	"testing"

	"creator-portal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSSE(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)

	err := writeSSE(w, "application", ApplicationView{Status: models.StatusPending})
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	assert.Equal(t, "event: application\ndata: {\"status\":\"pending\"}\n\n", buf.String())
}

func TestDrainCoalescesBurst(t *testing.T) {
	ch := make(chan Event, 4)
	ch <- Event{Type: EventApplicationUpdated}
	ch <- Event{Type: EventApplicationUpdated}
	ch <- Event{Type: EventApplicationUpdated}

	drain(ch)
	assert.Len(t, ch, 0)

	close(ch)
	drain(ch) // closed channel returns immediately
}
