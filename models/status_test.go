package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusNone, StatusPending, true},
		{StatusPending, StatusApproved, true},
		{StatusPending, StatusRejected, true},
		{StatusRejected, StatusPending, true},
		{StatusApproved, StatusRejected, true},

		{StatusNone, StatusApproved, false},
		{StatusPending, StatusPending, false},
		{StatusApproved, StatusPending, false},
		{StatusApproved, StatusApproved, false},
		{StatusRejected, StatusApproved, false},
		{StatusPending, StatusNone, false},
		{Status("archived"), StatusPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := Transition(tt.from, tt.to)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidTransition)
		})
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusNone, StatusPending, StatusApproved, StatusRejected} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, Status("").Valid())
	assert.False(t, Status("revoked").Valid())
}

func TestMissionStatusValid(t *testing.T) {
	for _, s := range []MissionStatus{MissionStatusOpen, MissionStatusClosed, MissionStatusExpired} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, MissionStatus("").Valid())
	assert.False(t, MissionStatus("bogus").Valid())
}
