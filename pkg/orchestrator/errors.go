package orchestrator

import "errors"

// ErrTitleTooShort is returned (without claiming the issue) when an
// issue's title is shorter than config.MinObjectiveLen.
var ErrTitleTooShort = errors.New("orchestrator: issue title shorter than minimum objective length")

// ErrIssueNotOpen is returned (without claiming the issue) when an
// issue's status is not open at the start of ProcessIssue.
var ErrIssueNotOpen = errors.New("orchestrator: issue is not open")

// ErrClaimLost is returned when TryClaim reports another caller won
// the race for this issue.
var ErrClaimLost = errors.New("orchestrator: lost the claim race for this issue")

// ErrCancelled surfaces a cooperative cancellation to callers that
// check for it explicitly. Cancellation is a normal outcome, not a
// failure: no error event is published for it.
var ErrCancelled = errors.New("orchestrator: cancelled")
