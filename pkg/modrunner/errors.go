package modrunner

import "errors"

// ErrIterationBudgetExceeded is returned (via Session.Result) when a
// run reaches RunConfig.MaxIterations without Step ever reporting done.
var ErrIterationBudgetExceeded = errors.New("modrunner: iteration budget exceeded")

// ErrCancelled is returned when the run's context is cancelled between
// iterations. Cancellation is not treated as a failure by callers that
// check for it explicitly — it surfaces this sentinel rather than a
// generic context.Canceled so callers of Session.Result can distinguish
// "stopped early by request" from "stopped early because something
// broke".
var ErrCancelled = errors.New("modrunner: cancelled")
