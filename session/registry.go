package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fabfab/resume-interviewer/embeddings"
	"github.com/fabfab/resume-interviewer/index"
	"github.com/fabfab/resume-interviewer/ingestion"
	"github.com/fabfab/resume-interviewer/interview"
	"github.com/fabfab/resume-interviewer/llm"
	"github.com/fabfab/resume-interviewer/persona"
)

const (
	// DefaultMaxSessions bounds the memory held by simultaneous knowledge
	// indexes and history buffers. A blunt global gate, not per-user.
	DefaultMaxSessions = 10
	// DefaultIdleTimeout is how long a session may sit idle before the
	// sweep reclaims it.
	DefaultIdleTimeout = 30 * time.Minute
)

// Options tune the registry. Zero values take the defaults; Now exists for
// tests that advance virtual time.
type Options struct {
	MaxSessions int
	IdleTimeout time.Duration
	Now         func() time.Time
}

// Registry owns the live session table. All access goes through Create, Get,
// End, and Sweep, which serialize against each other.
type Registry struct {
	embedder embeddings.Embedder
	llm      llm.Client
	logger   *log.Logger

	max         int
	idleTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(embedder embeddings.Embedder, client llm.Client, logger *log.Logger, opts Options) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = DefaultMaxSessions
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Registry{
		embedder:    embedder,
		llm:         client,
		logger:      logger,
		max:         opts.MaxSessions,
		idleTimeout: opts.IdleTimeout,
		now:         opts.Now,
		sessions:    make(map[string]*Session),
	}
}

// Create builds a knowledge index over the résumé chunks and registers a new
// session around it. It fails with ErrCapacityExceeded at the ceiling and
// propagates index build errors unchanged. Invalid personas silently resolve
// to the critical interviewer.
func (r *Registry) Create(ctx context.Context, resumeID string, chunks []ingestion.Chunk, personaID string) (*Session, error) {
	r.Sweep()

	r.mu.Lock()
	if len(r.sessions) >= r.max {
		r.mu.Unlock()
		return nil, ErrCapacityExceeded
	}
	r.mu.Unlock()

	// Building the index blocks on the embedding provider; keep it outside
	// the registry lock so other sessions stay responsive.
	idx, err := index.Build(ctx, r.embedder, chunks)
	if err != nil {
		return nil, err
	}

	tpl := persona.Resolve(personaID)
	engine := interview.NewEngine(idx, tpl, r.llm, r.logger)

	now := r.now()
	sess := &Session{
		ID:           uuid.NewString(),
		ResumeID:     resumeID,
		Persona:      tpl.ID,
		CreatedAt:    now,
		engine:       engine,
		now:          r.now,
		lastActivity: now,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sessions) >= r.max {
		engine.Close()
		return nil, ErrCapacityExceeded
	}
	r.sessions[sess.ID] = sess
	r.logger.Printf("session %s created (persona=%s, chunks=%d, live=%d)", sess.ID, tpl.ID, idx.Len(), len(r.sessions))
	return sess, nil
}

// Get returns the session and refreshes its last-activity timestamp.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.touch()
	return sess, nil
}

// End releases the session's engine and removes the entry. It returns false
// when the session is unknown or already ended.
func (r *Registry) End(id string) bool {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	sess.engine.Close()
	r.logger.Printf("session %s ended", id)
	return true
}

// Sweep reclaims every session idle past the timeout. Sessions with a turn
// in flight are skipped and picked up by a later sweep.
func (r *Registry) Sweep() int {
	now := r.now()

	r.mu.Lock()
	expired := make([]*Session, 0)
	for id, sess := range r.sessions {
		if sess.reclaimable(now, r.idleTimeout) {
			delete(r.sessions, id)
			expired = append(expired, sess)
		}
	}
	r.mu.Unlock()

	for _, sess := range expired {
		sess.engine.Close()
	}
	if len(expired) > 0 {
		r.logger.Printf("reclaimed %d expired session(s)", len(expired))
	}
	return len(expired)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// StartJanitor sweeps on a fixed interval until ctx is canceled.
func (r *Registry) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
}
