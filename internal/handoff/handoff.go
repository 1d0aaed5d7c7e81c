// Package handoff relays a card scanned on a phone to the browser session waiting for it.
package handoff

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/card-intake/internal/card"
)

// DefaultTTL is how long a session waits for the phone
const DefaultTTL = 10 * time.Minute

var (
	// ErrSessionNotFound is returned for unknown session IDs
	ErrSessionNotFound = errors.New("handoff session not found")
	// ErrSessionExpired is returned once a session is past its TTL
	ErrSessionExpired = errors.New("handoff session expired")
	// ErrAlreadyDelivered is returned when a second card is sent to a session
	ErrAlreadyDelivered = errors.New("handoff session already has a card")
)

// Session is an open mailbox
type Session struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Envelope is the card as delivered to the waiting browser
type Envelope struct {
	Record    card.Record `json:"record"`
	Timestamp int64       `json:"timestamp"`
	Checksum  string      `json:"checksum"`
}

// Seal stamps the record and computes its checksum
func Seal(record card.Record, at time.Time) (*Envelope, error) {
	e := &Envelope{Record: record, Timestamp: at.UnixMilli()}
	sum, err := e.sum()
	if err != nil {
		return nil, err
	}
	e.Checksum = sum
	return e, nil
}

// Verify reports whether the checksum still matches the record
func (e *Envelope) Verify() bool {
	sum, err := e.sum()
	return err == nil && sum == e.Checksum
}

// sum is hex SHA-256 over the record JSON followed by the decimal timestamp
func (e *Envelope) sum() (string, error) {
	data, err := json.Marshal(e.Record)
	if err != nil {
		return "", fmt.Errorf("marshaling record: %w", err)
	}
	h := sha256.New()
	h.Write(data)
	h.Write([]byte(strconv.FormatInt(e.Timestamp, 10)))
	return hex.EncodeToString(h.Sum(nil)), nil
}

type session struct {
	expiresAt time.Time
	delivered bool
	mailbox   chan *Envelope
}

// Hub holds the open sessions
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	now      func() time.Time
}

// NewHub creates a Hub whose sessions live for ttl
func NewHub(ttl time.Duration) *Hub {
	return NewHubWithClock(ttl, time.Now)
}

// NewHubWithClock creates a Hub with a custom clock for testing
func NewHubWithClock(ttl time.Duration, now func() time.Time) *Hub {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Hub{
		sessions: make(map[string]*session),
		ttl:      ttl,
		now:      now,
	}
}

// Open starts a session for a desktop browser
func (h *Hub) Open() Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.NewString()
	expiresAt := h.now().Add(h.ttl)
	h.sessions[id] = &session{
		expiresAt: expiresAt,
		mailbox:   make(chan *Envelope, 1),
	}
	return Session{ID: id, ExpiresAt: expiresAt}
}

// lookup returns a live session. The caller holds mu.
func (h *Hub) lookup(id string) (*session, error) {
	s, ok := h.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !h.now().Before(s.expiresAt) {
		delete(h.sessions, id)
		return nil, ErrSessionExpired
	}
	return s, nil
}

// Deliver hands the phone's record to the session
func (h *Hub) Deliver(id string, record card.Record) (*Envelope, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, err := h.lookup(id)
	if err != nil {
		return nil, err
	}
	if s.delivered {
		return nil, ErrAlreadyDelivered
	}

	env, err := Seal(record, h.now())
	if err != nil {
		return nil, err
	}
	s.delivered = true
	s.mailbox <- env
	return env, nil
}

// Wait blocks until the card arrives, the session expires or ctx is done.
// A received envelope closes the session.
func (h *Hub) Wait(ctx context.Context, id string) (*Envelope, error) {
	h.mu.Lock()
	s, err := h.lookup(id)
	if err != nil {
		h.mu.Unlock()
		return nil, err
	}
	remaining := s.expiresAt.Sub(h.now())
	h.mu.Unlock()

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case env := <-s.mailbox:
		h.mu.Lock()
		delete(h.sessions, id)
		h.mu.Unlock()
		return env, nil
	case <-timer.C:
		return nil, ErrSessionExpired
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Expire drops sessions past their TTL as of now and returns how many were removed
func (h *Hub) Expire(now time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for id, s := range h.sessions {
		if !now.Before(s.expiresAt) {
			delete(h.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of open sessions
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}
