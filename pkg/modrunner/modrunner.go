// Package modrunner implements the explicit prepare/step/finish
// contract that stands in for coroutine-style control flow: an
// orchestration loop drives one step at a time and checks cancellation
// between steps, making runs deterministic to test and straightforward
// to pause or resume.
package modrunner

import (
	"context"
	"time"
)

// ModeRunner is implemented by anything that can be driven step by
// step: Prepare runs once before the first Step, Step advances the
// loop by exactly one iteration and reports whether it has finished,
// and Finish runs once after the last Step (whether it finished
// normally, failed, or was cancelled) to produce the final result.
type ModeRunner interface {
	Prepare(ctx context.Context) error
	Step(ctx context.Context) (done bool, err error)
	Finish(ctx context.Context) (result any, err error)
}

// RunConfig bounds one Session's execution.
type RunConfig struct {
	// MaxIterations caps the number of Step calls; zero means unbounded.
	MaxIterations int
	// StepTimeout bounds a single Step call; zero means no per-step
	// deadline beyond the Session's own context.
	StepTimeout time.Duration
}
