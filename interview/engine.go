// Package interview implements the persona-conditioned conversational
// retrieval engine that drives one interview session.
package interview

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/fabfab/resume-interviewer/index"
	"github.com/fabfab/resume-interviewer/ingestion"
	"github.com/fabfab/resume-interviewer/llm"
	"github.com/fabfab/resume-interviewer/persona"
)

var (
	// ErrSessionClosed reports a call on an engine that has been closed.
	ErrSessionClosed = errors.New("interview session is closed")

	// ErrModelInvocation reports a single-turn language model failure. The
	// dialogue history is untouched, so the caller may resend the same turn.
	ErrModelInvocation = errors.New("model invocation failed")
)

// OpeningQuery is the synthetic query for a session's first turn. It elicits
// the persona's self-introduction and first real question without user input.
const OpeningQuery = "Please begin the interview."

// CannedOpening substitutes for the model's greeting when the opening turn
// fails, so the session still starts.
const CannedOpening = "Hello, I am your interviewer today. Let's get started: please begin with a short introduction of yourself."

const (
	RoleCandidate   = "candidate"
	RoleInterviewer = "interviewer"
)

// Turn is one entry of the dialogue history.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Engine wraps one knowledge index, one persona template, and one history
// buffer. It accepts a single in-flight turn at a time; serializing turns is
// the session layer's responsibility.
type Engine struct {
	index  *index.Index
	tpl    persona.Template
	llm    llm.Client
	logger *log.Logger

	mu      sync.Mutex
	closed  bool
	history []Turn
}

func NewEngine(idx *index.Index, tpl persona.Template, client llm.Client, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}

	return &Engine{
		index:  idx,
		tpl:    tpl,
		llm:    client,
		logger: logger,
	}
}

// Open runs the synthetic opening turn. Callers substitute CannedOpening when
// it fails; the failure must not abort session creation.
func (e *Engine) Open(ctx context.Context) (string, error) {
	return e.Invoke(ctx, OpeningQuery)
}

// Invoke runs one interview turn: retrieve grounding chunks for userText,
// render the persona prompt with context plus full history, call the model,
// and on success append both sides of the exchange to history. On any failure
// the history is left untouched.
func (e *Engine) Invoke(ctx context.Context, userText string) (string, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", ErrSessionClosed
	}
	historyText := formatHistory(e.history)
	e.mu.Unlock()

	// Grounding is re-queried every turn: later answers can shift which
	// résumé sections matter.
	chunks, err := e.index.Query(ctx, userText, index.DefaultTopK)
	if err != nil {
		return "", fmt.Errorf("retrieve grounding chunks: %w", err)
	}

	prompt := e.tpl.Render(formatContext(chunks), historyText, userText)

	reply, err := e.llm.Complete(ctx, prompt)
	if err != nil {
		e.logger.Printf("model invocation failed: %v", err)
		return "", fmt.Errorf("%w: %v", ErrModelInvocation, err)
	}
	reply = strings.TrimSpace(reply)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return "", ErrSessionClosed
	}
	e.history = append(e.history,
		Turn{Role: RoleCandidate, Text: userText},
		Turn{Role: RoleInterviewer, Text: reply},
	)

	return reply, nil
}

// Close releases the engine. Further calls fail with ErrSessionClosed. It is
// safe to call more than once.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.history = nil
}

// History returns a copy of the dialogue so far.
func (e *Engine) History() []Turn {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Turn, len(e.history))
	copy(out, e.history)
	return out
}

// HistoryLen reports the number of recorded turns.
func (e *Engine) HistoryLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.history)
}

func formatContext(chunks []ingestion.Chunk) string {
	if len(chunks) == 0 {
		return "(no résumé context retrieved)"
	}
	var sb strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(strings.TrimSpace(chunk.Text))
	}
	return sb.String()
}

func formatHistory(history []Turn) string {
	if len(history) == 0 {
		return "(the interview has not started yet)"
	}
	var sb strings.Builder
	for i, turn := range history {
		if i > 0 {
			sb.WriteString("\n")
		}
		switch turn.Role {
		case RoleInterviewer:
			sb.WriteString("Interviewer: ")
		default:
			sb.WriteString("Candidate: ")
		}
		sb.WriteString(turn.Text)
	}
	return sb.String()
}
