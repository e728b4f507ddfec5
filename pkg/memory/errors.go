package memory

import "fmt"

// CompactionErrorKind distinguishes transient summarization failures
// (rate limits, timeouts, transport errors) from permanent ones
// (malformed prefix, summarizer misconfiguration).
type CompactionErrorKind int

const (
	ErrRetriable CompactionErrorKind = iota
	ErrPermanent
)

// CompactionError wraps a Summarizer failure with a Retriable
// classification: retriable errors leave the memory prefix intact and
// re-arm the trigger on the next append; permanent errors surface to
// the caller of Compact.
type CompactionError struct {
	Kind    CompactionErrorKind
	Message string
	Cause   error
}

func (e *CompactionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CompactionError) Unwrap() error { return e.Cause }

// Retriable reports whether the caller should leave the prefix intact
// and retry on the next append rather than surfacing the failure.
func (e *CompactionError) Retriable() bool { return e.Kind == ErrRetriable }

// SummarizationError wraps a raw Summarizer error with a retriable
// classification supplied by the caller (the Summarizer implementation
// knows whether its own failure — e.g. a 429 vs a 400 — is transient).
func SummarizationError(retriable bool, cause error) *CompactionError {
	kind := ErrPermanent
	if retriable {
		kind = ErrRetriable
	}
	return &CompactionError{Kind: kind, Message: "summarization failed", Cause: cause}
}
