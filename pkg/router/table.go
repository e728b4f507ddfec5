package router

import (
	"fmt"

	"github.com/forgeswarm/coordinator/pkg/errorparser"
	"github.com/forgeswarm/coordinator/pkg/escalation"
)

// ladderFor maps an error category to its preferred model order, fast
// and cheap first, escalating toward stronger reasoning models. Low
// and mid complexity structural errors (type mismatches, import
// resolution, uncategorized) start at the fast worker-tier model;
// control-flow and ownership-shaped errors (borrow checking,
// lifetimes, trait bounds, async) are routed straight to the mid-tier
// model since ForgeCoder rarely resolves them in one pass; macro
// errors go straight to the cloud-tier model NovaPro, with ZenithMax
// (the strongest) appended as the backstop by Select.
var ladderFor = map[errorparser.ErrorCategory][]ModelId{
	errorparser.CategoryTypeMismatch:     {ForgeCoder, AtlasSynth, NovaPro},
	errorparser.CategoryImportResolution: {ForgeCoder, AtlasSynth, NovaPro},
	errorparser.CategoryOther:            {ForgeCoder, AtlasSynth, NovaPro},
	errorparser.CategoryBorrowChecker:    {AtlasSynth, NovaPro},
	errorparser.CategoryLifetime:         {AtlasSynth, NovaPro},
	errorparser.CategoryTraitBound:       {AtlasSynth, NovaPro},
	errorparser.CategoryAsync:            {AtlasSynth, NovaPro},
	errorparser.CategoryMacro:            {NovaPro},
}

// Selection is the result of Select: an ordered candidate list, the
// rationale behind it, and whether the ladder for this category is
// exhausted (a hint that feeds escalation.Engine.Decide's tier-level
// decision in addition to this call's own model pick).
type Selection struct {
	Models         []ModelId
	Reason         string
	EscalationHint bool
}

// Select returns an ordered model selection for category, skipping the
// first priorAttempts entries of that category's ladder (models
// already tried and failed for this task), and always appending
// ZenithMax as the final backstop before a human is paged. At
// escalation.TierCloud or above, ForgeCoder is dropped from
// consideration: by the time a task reaches Cloud tier, the fast
// worker-tier model has already had its turn.
func Select(category errorparser.ErrorCategory, priorAttempts int, tier escalation.SwarmTier) Selection {
	base, ok := ladderFor[category]
	if !ok {
		base = ladderFor[errorparser.CategoryOther]
	}
	ladder := withBackstop(base)

	if tier >= escalation.TierCloud {
		ladder = dropModel(ladder, ForgeCoder)
	}

	if priorAttempts < 0 {
		priorAttempts = 0
	}
	if priorAttempts >= len(ladder) {
		return Selection{
			Models:         []ModelId{ZenithMax},
			Reason:         fmt.Sprintf("ladder for %s exhausted after %d attempts, falling back to strongest model", category, priorAttempts),
			EscalationHint: true,
		}
	}

	remaining := ladder[priorAttempts:]
	return Selection{
		Models:         remaining,
		Reason:         fmt.Sprintf("%s routes to %s at attempt %d", category, remaining[0], priorAttempts+1),
		EscalationHint: len(remaining) == 1,
	}
}

func withBackstop(ladder []ModelId) []ModelId {
	for _, m := range ladder {
		if m == ZenithMax {
			return ladder
		}
	}
	out := make([]ModelId, len(ladder), len(ladder)+1)
	copy(out, ladder)
	return append(out, ZenithMax)
}

func dropModel(ladder []ModelId, drop ModelId) []ModelId {
	out := make([]ModelId, 0, len(ladder))
	for _, m := range ladder {
		if m != drop {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return []ModelId{ZenithMax}
	}
	return out
}
