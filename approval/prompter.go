package approval

import (
	"context"
	"strings"
	"sync"
)

// Answer is the user's reply to a confirmation prompt.
type Answer string

const (
	AnswerYes    Answer = "y"
	AnswerAlways Answer = "a"
	AnswerNo     Answer = "n"
)

// ParseAnswer reads a typed reply. Anything unrecognized is reported as
// not ok so the caller can ask again.
func ParseAnswer(s string) (Answer, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return AnswerYes, true
	case "a", "always":
		return AnswerAlways, true
	case "n", "no", "":
		return AnswerNo, true
	}
	return "", false
}

// Prompter asks the user to confirm a request and blocks until they answer
// or ctx is done.
type Prompter interface {
	Prompt(ctx context.Context, req Request) (Answer, error)
}

// PrompterFunc adapts a function to the Prompter interface.
type PrompterFunc func(ctx context.Context, req Request) (Answer, error)

func (f PrompterFunc) Prompt(ctx context.Context, req Request) (Answer, error) {
	return f(ctx, req)
}

// Static answers every prompt with the same reply without user interaction.
type Static Answer

func (s Static) Prompt(ctx context.Context, _ Request) (Answer, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return Answer(s), nil
}

// ApproveAll and DeclineAll are non-interactive prompters.
var (
	ApproveAll Prompter = Static(AnswerYes)
	DeclineAll Prompter = Static(AnswerNo)
)

// Spy wraps a Prompter and records every request it is asked about.
type Spy struct {
	next Prompter

	mu       sync.Mutex
	requests []Request
}

// NewSpy creates a Spy delegating to next.
func NewSpy(next Prompter) *Spy {
	return &Spy{next: next}
}

func (s *Spy) Prompt(ctx context.Context, req Request) (Answer, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return s.next.Prompt(ctx, req)
}

// Requests returns the recorded requests in arrival order.
func (s *Spy) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Count returns how many prompts were issued.
func (s *Spy) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
