package testutil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

type SentMail struct {
	To      string
	Subject string
	Body    string
}

// Mailer records every message. Set Err to make sends fail.
type Mailer struct {
	mu   sync.Mutex
	Sent []SentMail
	Err  error
}

func (m *Mailer) Send(to, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, SentMail{To: to, Subject: subject, Body: htmlBody})
	return nil
}

func (m *Mailer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

var ErrStoreDown = errors.New("store unavailable")

// Store keeps objects in memory and returns "mem://<key>" URLs.
type Store struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Fail    bool
}

func NewStore() *Store {
	return &Store{Objects: make(map[string][]byte)}
}

func (s *Store) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	if s.Fail {
		return "", ErrStoreDown
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Objects[key] = buf.Bytes()
	return "mem://" + key, nil
}
