package runner

import (
	"context"

	"github.com/petasbytes/fig2code/internal/conversation"
)

// Attempt is one invocation-extract-execute cycle.
type Attempt struct {
	Index    int
	Response *conversation.Response
	Code     string
	Err      error
	Usage    conversation.Usage
	// Artifact is the sink path written by a successful attempt.
	Artifact string
}

// Succeeded reports whether the attempt produced an artifact.
func (a Attempt) Succeeded() bool { return a.Err == nil }

// Decision is a policy's verdict after a successful attempt.
type Decision struct {
	Revise   bool
	Feedback string
}

// Policy decides what happens between attempts.
type Policy interface {
	// AfterFailure reports whether to repair and try again. The loop enforces
	// the attempt budget itself.
	AfterFailure(ctx context.Context, a Attempt) (bool, error)
	// AfterSuccess either accepts the result or asks for a revision.
	AfterSuccess(ctx context.Context, a Attempt) (Decision, error)
}

// FixedRetries repairs every failure and accepts the first success.
type FixedRetries struct{}

func (FixedRetries) AfterFailure(context.Context, Attempt) (bool, error) { return true, nil }
func (FixedRetries) AfterSuccess(context.Context, Attempt) (Decision, error) {
	return Decision{}, nil
}

// Observer is notified as attempts progress. Calls happen on the loop's
// goroutine, before the next attempt starts.
type Observer interface {
	AttemptStarted(index int)
	AttemptFailed(a Attempt)
	AttemptSucceeded(a Attempt)
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) AttemptStarted(int)       {}
func (NopObserver) AttemptFailed(Attempt)    {}
func (NopObserver) AttemptSucceeded(Attempt) {}

// Observers fans notifications out in order.
type Observers []Observer

func (o Observers) AttemptStarted(i int) {
	for _, x := range o {
		x.AttemptStarted(i)
	}
}

func (o Observers) AttemptFailed(a Attempt) {
	for _, x := range o {
		x.AttemptFailed(a)
	}
}

func (o Observers) AttemptSucceeded(a Attempt) {
	for _, x := range o {
		x.AttemptSucceeded(a)
	}
}
