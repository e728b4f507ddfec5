package escalation

import (
	"time"

	"github.com/forgeswarm/coordinator/pkg/errorparser"
)

// recentWindow is the sliding-window length used by the friction and
// delight detectors over recent_error_categories.
const recentWindow = 8

// IterationRecord is one append-only entry in EscalationState's
// iteration_history.
type IterationRecord struct {
	ErrorCategories []errorparser.ErrorCategory `json:"error_categories"`
	ErrorCount      int                         `json:"error_count"`
	AllGreen        bool                        `json:"all_green"`
	AtIteration     int                         `json:"at_iteration"`
	ChangedFiles    bool                        `json:"changed_files"`
}

// EscalationReasonKind tags the variant of EscalationReason.
type EscalationReasonKind int

const (
	ReasonRepeatedErrorCategory EscalationReasonKind = iota
	ReasonBudgetExhausted
	ReasonNoChange
	ReasonMultiFileComplexity
	ReasonManualTrigger
)

// EscalationReason is a tagged union explaining why a tier escalation
// happened. Only the fields relevant to Kind are populated.
type EscalationReason struct {
	Kind     EscalationReasonKind       `json:"kind"`
	Category errorparser.ErrorCategory  `json:"category,omitempty"`
	Count    int                        `json:"count,omitempty"`
	Tier     SwarmTier                  `json:"tier,omitempty"`
	Files    int                        `json:"files,omitempty"`
}

func (r EscalationReason) String() string {
	switch r.Kind {
	case ReasonRepeatedErrorCategory:
		return "repeated_error_category"
	case ReasonBudgetExhausted:
		return "budget_exhausted"
	case ReasonNoChange:
		return "no_change"
	case ReasonMultiFileComplexity:
		return "multi_file_complexity"
	case ReasonManualTrigger:
		return "manual_trigger"
	default:
		return "unknown"
	}
}

// EscalationRecord is one append-only entry in escalation_history.
// Invariant: across the whole history, ToTier strictly increases.
type EscalationRecord struct {
	FromTier    SwarmTier        `json:"from_tier"`
	ToTier      SwarmTier        `json:"to_tier"`
	Reason      EscalationReason `json:"reason"`
	AtIteration int              `json:"at_iteration"`
	At          time.Time        `json:"at"`
}

// State is the per-task escalation record. It is owned exclusively by
// one AgentOrchestrator loop; nothing outside EscalationEngine mutates
// it.
type State struct {
	TaskID          string     `json:"task_id"`
	CurrentTier     SwarmTier  `json:"current_tier"`
	TotalIterations int        `json:"total_iterations"`
	Resolved        bool       `json:"resolved"`
	Stuck           bool       `json:"stuck"`

	IterationHistory  []IterationRecord  `json:"iteration_history"`
	EscalationHistory []EscalationRecord `json:"escalation_history"`

	TierBudgets map[SwarmTier]TierBudget `json:"tier_budgets"`

	ConsecutiveNoChange   int                                 `json:"consecutive_no_change"`
	RepeatedCategoryCount map[errorparser.ErrorCategory]uint32 `json:"repeated_category_count"`

	// recentErrorCategories is the sliding window of per-iteration
	// category sets used by the friction/delight detectors.
	recentErrorCategories [][]errorparser.ErrorCategory
}

// NewState initializes a fresh EscalationState for taskID at TierWorker
// with the default tier budget policy.
func NewState(taskID string) *State {
	return &State{
		TaskID:                taskID,
		CurrentTier:           TierWorker,
		TierBudgets:           DefaultTierBudgets(),
		RepeatedCategoryCount: make(map[errorparser.ErrorCategory]uint32),
	}
}

// RecentErrorCategories returns the sliding window (most recent last),
// capped at recentWindow entries.
func (s *State) RecentErrorCategories() [][]errorparser.ErrorCategory {
	return s.recentErrorCategories
}

// AppendIteration records one iteration's outcome. It is the only
// mutator of IterationHistory, recent_error_categories,
// repeated_category_count, and consecutive_no_change, preserving the
// invariant len(IterationHistory) == TotalIterations.
func (s *State) AppendIteration(rec IterationRecord) {
	s.IterationHistory = append(s.IterationHistory, rec)
	s.TotalIterations = len(s.IterationHistory)

	s.recentErrorCategories = append(s.recentErrorCategories, rec.ErrorCategories)
	if len(s.recentErrorCategories) > recentWindow {
		s.recentErrorCategories = s.recentErrorCategories[len(s.recentErrorCategories)-recentWindow:]
	}

	if rec.ChangedFiles {
		s.ConsecutiveNoChange = 0
	} else {
		s.ConsecutiveNoChange++
	}

	if !rec.AllGreen {
		dominant, ok := dominantCategory(rec.ErrorCategories)
		if ok {
			s.RepeatedCategoryCount[dominant]++
		}
	}
}

// dominantCategory returns the most frequent category in cats, or
// (_, false) if cats is empty.
func dominantCategory(cats []errorparser.ErrorCategory) (errorparser.ErrorCategory, bool) {
	if len(cats) == 0 {
		return 0, false
	}
	counts := make(map[errorparser.ErrorCategory]int, len(cats))
	for _, c := range cats {
		counts[c]++
	}
	var best errorparser.ErrorCategory
	bestCount := -1
	// Iterate cats (not the map) for deterministic tie-breaking: the
	// first category to reach the max count wins.
	seen := make(map[errorparser.ErrorCategory]bool, len(cats))
	for _, c := range cats {
		if seen[c] {
			continue
		}
		seen[c] = true
		if counts[c] > bestCount {
			best = c
			bestCount = counts[c]
		}
	}
	return best, true
}

// RecordEscalation appends an escalation_history entry and advances
// CurrentTier. Callers must ensure toTier > s.CurrentTier; this
// preserves the "tiers strictly increase" invariant.
func (s *State) RecordEscalation(toTier SwarmTier, reason EscalationReason, now time.Time) {
	s.EscalationHistory = append(s.EscalationHistory, EscalationRecord{
		FromTier:    s.CurrentTier,
		ToTier:      toTier,
		Reason:      reason,
		AtIteration: s.TotalIterations,
		At:          now,
	})
	s.CurrentTier = toTier
}
