package memory

import "context"

// SummaryRequest bundles the entries a Summarizer must condense.
type SummaryRequest struct {
	Entries []MemoryEntry
}

// SummaryResponse is the Summarizer's output: replacement content plus
// its own token estimate (the Summarizer is expected to use the same
// TokenEstimator convention as the memory it serves).
type SummaryResponse struct {
	Content string
	Tokens  int
}

// Summarizer condenses a contiguous prefix of memory entries into one
// Summary entry. Implementations typically call an LLM; failures are
// classified via CompactionError/Retriable.
type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (SummaryResponse, error)
}

// MockSummarizer is a deterministic Summarizer for tests and for
// environments with no LLM endpoint configured: it concatenates entry
// contents and estimates tokens with a WordCountEstimator.
type MockSummarizer struct {
	Estimator TokenEstimator
}

func (s MockSummarizer) Summarize(_ context.Context, req SummaryRequest) (SummaryResponse, error) {
	estimator := s.Estimator
	if estimator == nil {
		estimator = WordCountEstimator{}
	}
	var content string
	for i, e := range req.Entries {
		if i > 0 {
			content += "\n"
		}
		content += string(e.Kind) + ": " + e.Content
	}
	return SummaryResponse{Content: content, Tokens: estimator.Estimate(content)}, nil
}
