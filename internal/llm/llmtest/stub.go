// Package llmtest provides a scripted language model client for tests.
package llmtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kingdombarber/insight/internal/llm"
)

// Reply is one scripted response. If Err is set it is returned instead of
// Text.
type Reply struct {
	Text string
	Err  error
}

// Call records a prompt the stub received.
type Call struct {
	Prompt string
	Media  *llm.Media
}

// Stub answers Complete calls with queued replies, in order. Once the queue
// is exhausted every further call fails with llm.ErrModelUnavailable.
type Stub struct {
	mu      sync.Mutex
	replies []Reply
	calls   []Call
}

// NewStub creates a stub that returns texts in order.
func NewStub(texts ...string) *Stub {
	s := &Stub{}
	for _, t := range texts {
		s.replies = append(s.replies, Reply{Text: t})
	}
	return s
}

// Then queues another reply.
func (s *Stub) Then(r Reply) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, r)
	return s
}

// Fail queues a model failure.
func (s *Stub) Fail(err error) *Stub {
	if err == nil {
		err = errors.New("stub failure")
	}
	return s.Then(Reply{Err: &llm.UnavailableError{Provider: "stub", Model: "stub", Err: err}})
}

// Complete implements llm.Client.
func (s *Stub) Complete(ctx context.Context, prompt string, media *llm.Media) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{Prompt: prompt, Media: media})
	if err := ctx.Err(); err != nil {
		return "", &llm.UnavailableError{Provider: "stub", Model: "stub", Err: err}
	}
	if len(s.replies) == 0 {
		return "", &llm.UnavailableError{Provider: "stub", Model: "stub", Err: fmt.Errorf("no reply scripted for call %d", len(s.calls))}
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r.Text, r.Err
}

// Calls returns the prompts received so far.
func (s *Stub) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallCount returns how many times Complete was called.
func (s *Stub) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
