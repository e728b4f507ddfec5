package router

import (
	"errors"

	"github.com/forgeswarm/coordinator/pkg/circuitbreaker"
	"github.com/forgeswarm/coordinator/pkg/errorparser"
	"github.com/forgeswarm/coordinator/pkg/escalation"
)

// ErrAllModelsUnavailable is returned by SelectAvailable when every
// candidate in the selected ladder has an open circuit.
var ErrAllModelsUnavailable = errors.New("router: all candidate models unavailable")

// SelectAvailable composes Select's category-driven ladder with a
// circuitbreaker.Breaker, returning the first candidate whose circuit
// is not Open.
func SelectAvailable(category errorparser.ErrorCategory, priorAttempts int, tier escalation.SwarmTier, breaker *circuitbreaker.Breaker) (ModelId, Selection, error) {
	sel := Select(category, priorAttempts, tier)
	ladder := circuitbreaker.NewFallbackLadder(modelStrings(sel.Models)...)
	model, ok := ladder.NextAvailable(breaker)
	if !ok {
		return "", sel, ErrAllModelsUnavailable
	}
	return ModelId(model), sel, nil
}

func modelStrings(models []ModelId) []string {
	out := make([]string, len(models))
	for i, m := range models {
		out[i] = string(m)
	}
	return out
}
