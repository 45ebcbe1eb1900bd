// Package session owns the set of live interview sessions: identifier
// assignment, the admission ceiling, activity tracking, and idle reclamation.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fabfab/resume-interviewer/interview"
)

var (
	// ErrCapacityExceeded reports that the live-session ceiling is reached.
	// Transient: the caller should back off and retry.
	ErrCapacityExceeded = errors.New("too many live sessions")

	// ErrSessionNotFound reports an unknown, ended, or reclaimed session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionBusy reports a concurrent turn on a session that already has
	// one in flight.
	ErrSessionBusy = errors.New("session has a turn in flight")
)

// Session binds one résumé's knowledge index, one persona, and one dialogue
// history through its engine. A session exclusively owns its engine; no two
// sessions share conversational state.
type Session struct {
	ID        string
	ResumeID  string
	Persona   string
	CreatedAt time.Time

	engine *interview.Engine
	now    func() time.Time

	mu           sync.Mutex
	lastActivity time.Time
	turns        int
	busy         bool
}

// Open runs the synthetic opening turn. The caller substitutes
// interview.CannedOpening when the model fails; the session stays live.
func (s *Session) Open(ctx context.Context) (string, error) {
	if !s.acquire() {
		return "", ErrSessionBusy
	}
	defer s.release()

	reply, err := s.engine.Open(ctx)
	if err != nil {
		return "", err
	}
	s.touch()
	return reply, nil
}

// Send runs one user turn. At most one turn may be in flight; a concurrent
// call fails with ErrSessionBusy rather than interleaving history mutations.
// On success it refreshes activity, increments the turn counter, and returns
// the new count alongside the reply.
func (s *Session) Send(ctx context.Context, userText string) (string, int, error) {
	if !s.acquire() {
		return "", 0, ErrSessionBusy
	}
	defer s.release()

	reply, err := s.engine.Invoke(ctx, userText)
	if err != nil {
		return "", 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = s.now()
	s.turns++
	return reply, s.turns, nil
}

// Turns reports how many user turns completed successfully.
func (s *Session) Turns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turns
}

// LastActivity reports when the session was last touched.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// History returns a copy of the dialogue so far.
func (s *Session) History() []interview.Turn {
	return s.engine.History()
}

func (s *Session) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	return true
}

func (s *Session) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
}

func (s *Session) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = s.now()
}

// reclaimable reports whether the session has been idle for at least timeout
// and has no turn in flight.
func (s *Session) reclaimable(now time.Time, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.busy && now.Sub(s.lastActivity) >= timeout
}
