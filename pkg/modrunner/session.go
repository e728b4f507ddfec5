package modrunner

import (
	"context"
	"sync"
	"sync/atomic"
)

// StepOutcome reports the result of one Step call, delivered
// asynchronously to whoever is consuming a Session's result stream.
type StepOutcome struct {
	Iteration int
	Done      bool
	Err       error
}

// sessionState is the terminal state recorded once a Session's driver
// goroutine exits.
type sessionState struct {
	result any
	err    error
}

// Session drives a ModeRunner to completion in a background goroutine:
// Prepare runs once, then Step is called repeatedly — checking
// cancellation and the iteration budget between calls — until Step
// reports done, returns an error, the budget is exhausted, or the
// run's context is cancelled. Finish always runs exactly once, with
// whatever state the loop stopped in.
//
// Outcomes are pushed to a small buffered channel so a caller can pull
// them non-blockingly (TryGetNext) or block for the next one
// (WaitForNext), mirroring how a concurrent sub-agent dispatcher
// delivers results without making the driver loop wait on a slow
// consumer.
type Session struct {
	runner ModeRunner
	cfg    RunConfig

	resultsCh chan StepOutcome
	done      chan struct{}

	cancel context.CancelFunc

	mu       sync.Mutex
	final    sessionState
	finished bool

	iteration int32
}

// NewSession constructs a Session bound to runner and cfg. Call Start
// to begin driving it.
func NewSession(runner ModeRunner, cfg RunConfig) *Session {
	return &Session{
		runner:    runner,
		cfg:       cfg,
		resultsCh: make(chan StepOutcome, 16),
		done:      make(chan struct{}),
	}
}

// Start runs Prepare synchronously (so a Prepare failure is reported
// immediately, before any Step runs) and then launches the step loop
// in a background goroutine.
func (s *Session) Start(ctx context.Context) error {
	if err := s.runner.Prepare(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.drive(runCtx)
	return nil
}

func (s *Session) drive(ctx context.Context) {
	defer close(s.done)

	var loopErr error
	for {
		select {
		case <-ctx.Done():
			loopErr = ErrCancelled
		default:
		}
		if loopErr != nil {
			break
		}

		if s.cfg.MaxIterations > 0 && int(atomic.LoadInt32(&s.iteration)) >= s.cfg.MaxIterations {
			loopErr = ErrIterationBudgetExceeded
			break
		}

		stepCtx := ctx
		var stepCancel context.CancelFunc
		if s.cfg.StepTimeout > 0 {
			stepCtx, stepCancel = context.WithTimeout(ctx, s.cfg.StepTimeout)
		}
		done, err := s.runner.Step(stepCtx)
		if stepCancel != nil {
			stepCancel()
		}
		n := int(atomic.AddInt32(&s.iteration, 1))

		outcome := StepOutcome{Iteration: n, Done: done, Err: err}
		select {
		case s.resultsCh <- outcome:
		default:
			// Buffer full: drop the oldest slot so status always reflects
			// the most recent step rather than blocking the driver loop.
			select {
			case <-s.resultsCh:
			default:
			}
			s.resultsCh <- outcome
		}

		if err != nil {
			loopErr = err
			break
		}
		if done {
			break
		}
	}

	result, finishErr := s.runner.Finish(context.Background())
	if finishErr == nil {
		finishErr = loopErr
	}

	s.mu.Lock()
	s.final = sessionState{result: result, err: finishErr}
	s.finished = true
	s.mu.Unlock()
}

// TryGetNext returns the oldest buffered step outcome without
// blocking. Returns (outcome, false) if none is available since the
// last call.
func (s *Session) TryGetNext() (StepOutcome, bool) {
	select {
	case outcome := <-s.resultsCh:
		return outcome, true
	default:
		return StepOutcome{}, false
	}
}

// WaitForNext blocks until a step outcome is available or ctx is
// cancelled.
func (s *Session) WaitForNext(ctx context.Context) (StepOutcome, error) {
	select {
	case outcome := <-s.resultsCh:
		return outcome, nil
	case <-ctx.Done():
		return StepOutcome{}, ctx.Err()
	}
}

// Cancel requests that the driver loop stop before its next iteration.
func (s *Session) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Wait blocks until the driver goroutine has exited (Finish has
// returned), or ctx is cancelled first.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Result returns the value Finish produced and the terminal error (nil
// on a clean completion). Only meaningful after Wait returns nil.
func (s *Session) Result() (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.final.result, s.final.err
}

// Iterations reports how many Step calls have completed so far.
func (s *Session) Iterations() int {
	return int(atomic.LoadInt32(&s.iteration))
}
