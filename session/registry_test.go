package session_test

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/fabfab/resume-interviewer/embeddings"
	"github.com/fabfab/resume-interviewer/ingestion"
	"github.com/fabfab/resume-interviewer/llm"
	"github.com/fabfab/resume-interviewer/persona"
	"github.com/fabfab/resume-interviewer/session"
)

type stubEmbedder struct {
	err error
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, float32(len(texts[i]))}
	}
	return out, nil
}

var _ embeddings.Embedder = (*stubEmbedder)(nil)

type stubLLM struct {
	reply string
	err   error
	block chan struct{}
	began chan struct{}
}

func (s *stubLLM) Complete(ctx context.Context, prompt string) (string, error) {
	if s.began != nil {
		s.began <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

var _ llm.Client = (*stubLLM)(nil)

// clock is a manually advanced time source.
type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func testChunks() []ingestion.Chunk {
	return []ingestion.Chunk{
		{Text: "X experience in caching", Page: 1},
		{Text: "Y project used queues", Page: 1},
	}
}

func newRegistry(t *testing.T, client llm.Client, c *clock, opts session.Options) *session.Registry {
	t.Helper()
	if c != nil {
		opts.Now = c.Now
	}
	return session.NewRegistry(&stubEmbedder{}, client, log.New(io.Discard, "", 0), opts)
}

func TestCreateEnforcesAdmissionCeiling(t *testing.T) {
	registry := newRegistry(t, &stubLLM{reply: "ok"}, nil, session.Options{})

	ids := make([]string, 0, session.DefaultMaxSessions)
	for i := 0; i < session.DefaultMaxSessions; i++ {
		sess, err := registry.Create(context.Background(), "resume-1", testChunks(), persona.Critical)
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		ids = append(ids, sess.ID)
	}

	if _, err := registry.Create(context.Background(), "resume-1", testChunks(), persona.Critical); !errors.Is(err, session.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded on the 11th create, got %v", err)
	}

	if !registry.End(ids[0]) {
		t.Fatal("expected End to succeed for a live session")
	}
	if _, err := registry.Create(context.Background(), "resume-1", testChunks(), persona.Critical); err != nil {
		t.Fatalf("expected create to succeed after ending a session, got %v", err)
	}
}

func TestCreatePropagatesIndexBuildFailure(t *testing.T) {
	registry := session.NewRegistry(
		&stubEmbedder{err: errors.New("connection refused")},
		&stubLLM{reply: "ok"},
		log.New(io.Discard, "", 0),
		session.Options{},
	)

	if _, err := registry.Create(context.Background(), "resume-1", testChunks(), persona.Critical); err == nil {
		t.Fatal("expected index build failure to propagate")
	}
	if registry.Len() != 0 {
		t.Fatalf("expected no live sessions after failed create, got %d", registry.Len())
	}
}

func TestCreateNormalizesInvalidPersona(t *testing.T) {
	registry := newRegistry(t, &stubLLM{reply: "ok"}, nil, session.Options{})

	sess, err := registry.Create(context.Background(), "resume-1", testChunks(), "ruthless")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Persona != persona.Critical {
		t.Fatalf("expected fallback persona %q, got %q", persona.Critical, sess.Persona)
	}
}

func TestGetUnknownSession(t *testing.T) {
	registry := newRegistry(t, &stubLLM{reply: "ok"}, nil, session.Options{})

	if _, err := registry.Get("never-issued"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestEndIsIdempotentFalse(t *testing.T) {
	registry := newRegistry(t, &stubLLM{reply: "ok"}, nil, session.Options{})

	sess, err := registry.Create(context.Background(), "resume-1", testChunks(), persona.Partner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !registry.End(sess.ID) {
		t.Fatal("expected first End to return true")
	}
	if registry.End(sess.ID) {
		t.Fatal("expected second End to return false")
	}
	if _, err := registry.Get(sess.ID); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after End, got %v", err)
	}
}

func TestSweepReclaimsIdleSessions(t *testing.T) {
	c := &clock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	registry := newRegistry(t, &stubLLM{reply: "ok"}, c, session.Options{})

	older, err := registry.Create(context.Background(), "resume-1", testChunks(), persona.Critical)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.Advance(2 * time.Minute)
	newer, err := registry.Create(context.Background(), "resume-1", testChunks(), persona.Critical)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.Advance(29 * time.Minute)
	if got := registry.Sweep(); got != 1 {
		t.Fatalf("expected 1 reclaimed session, got %d", got)
	}

	if _, err := registry.Get(older.ID); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("expected the idle session to be reclaimed, got %v", err)
	}
	if _, err := registry.Get(newer.ID); err != nil {
		t.Fatalf("expected the active session to survive, got %v", err)
	}
}

func TestGetRefreshesActivity(t *testing.T) {
	c := &clock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	registry := newRegistry(t, &stubLLM{reply: "ok"}, c, session.Options{})

	sess, err := registry.Create(context.Background(), "resume-1", testChunks(), persona.Critical)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.Advance(29 * time.Minute)
	if _, err := registry.Get(sess.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c.Advance(29 * time.Minute)
	if got := registry.Sweep(); got != 0 {
		t.Fatalf("expected refreshed session to survive the sweep, reclaimed %d", got)
	}
}

func TestSendCountsTurnsAndKeepsHistoryConsistent(t *testing.T) {
	client := &stubLLM{reply: "And how large was the cache?"}
	registry := newRegistry(t, client, nil, session.Options{})

	sess, err := registry.Create(context.Background(), "resume-1", testChunks(), persona.Partner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reply, count, err := sess.Send(context.Background(), "I built a cache")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply == "" {
		t.Fatal("expected a non-empty reply")
	}
	if count != 1 {
		t.Fatalf("expected turn count 1, got %d", count)
	}
	if got := len(sess.History()); got != 2 {
		t.Fatalf("expected 2 history entries, got %d", got)
	}

	client.err = errors.New("rate limited")
	if _, _, err := sess.Send(context.Background(), "resend me"); err == nil {
		t.Fatal("expected model failure to surface")
	}
	if sess.Turns() != 1 {
		t.Fatalf("expected turn count to stay at 1 after a failed turn, got %d", sess.Turns())
	}
	if got := len(sess.History()); got != 2 {
		t.Fatalf("expected history to stay at 2 entries after a failed turn, got %d", got)
	}
}

func TestConcurrentSendIsRejectedNotInterleaved(t *testing.T) {
	client := &stubLLM{
		reply: "ok",
		block: make(chan struct{}),
		began: make(chan struct{}, 1),
	}
	registry := newRegistry(t, client, nil, session.Options{})

	sess, err := registry.Create(context.Background(), "resume-1", testChunks(), persona.Guide)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := sess.Send(context.Background(), "first turn")
		done <- err
	}()

	<-client.began
	if _, _, err := sess.Send(context.Background(), "second turn"); !errors.Is(err, session.ErrSessionBusy) {
		t.Fatalf("expected ErrSessionBusy for a concurrent turn, got %v", err)
	}

	close(client.block)
	if err := <-done; err != nil {
		t.Fatalf("unexpected error from the in-flight turn: %v", err)
	}
	if sess.Turns() != 1 {
		t.Fatalf("expected exactly one completed turn, got %d", sess.Turns())
	}
}

func TestSweepSkipsBusySessions(t *testing.T) {
	c := &clock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	client := &stubLLM{
		reply: "ok",
		block: make(chan struct{}),
		began: make(chan struct{}, 1),
	}
	registry := newRegistry(t, client, c, session.Options{})

	sess, err := registry.Create(context.Background(), "resume-1", testChunks(), persona.Critical)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := sess.Send(context.Background(), "slow turn")
		done <- err
	}()

	<-client.began
	c.Advance(31 * time.Minute)
	if got := registry.Sweep(); got != 0 {
		t.Fatalf("sweep reclaimed a session with a turn in flight")
	}

	close(client.block)
	if err := <-done; err != nil {
		t.Fatalf("unexpected error from the in-flight turn: %v", err)
	}
	if _, err := registry.Get(sess.ID); err != nil {
		t.Fatalf("expected the session to survive the sweep, got %v", err)
	}
}

func TestOpenFailureKeepsSessionAlive(t *testing.T) {
	client := &stubLLM{err: errors.New("quota exceeded")}
	registry := newRegistry(t, client, nil, session.Options{})

	sess, err := registry.Create(context.Background(), "resume-1", testChunks(), persona.Partner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := sess.Open(context.Background()); err == nil {
		t.Fatal("expected the opening turn to fail")
	}

	// The session still starts; the caller substitutes a canned opening.
	client.err = nil
	client.reply = "Let's begin."
	if _, _, err := sess.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("expected the session to remain usable, got %v", err)
	}
}
