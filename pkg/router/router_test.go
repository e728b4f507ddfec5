package router

import (
	"testing"
	"time"

	"github.com/forgeswarm/coordinator/pkg/circuitbreaker"
	"github.com/forgeswarm/coordinator/pkg/errorparser"
	"github.com/forgeswarm/coordinator/pkg/escalation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect_TypeMismatchStartsAtForgeCoder(t *testing.T) {
	sel := Select(errorparser.CategoryTypeMismatch, 0, escalation.TierWorker)
	require.NotEmpty(t, sel.Models)
	assert.Equal(t, ForgeCoder, sel.Models[0])
	assert.False(t, sel.EscalationHint)
}

func TestSelect_BorrowCheckerSkipsForgeCoder(t *testing.T) {
	sel := Select(errorparser.CategoryBorrowChecker, 0, escalation.TierWorker)
	assert.Equal(t, AtlasSynth, sel.Models[0])
}

func TestSelect_MacroGoesStraightToNovaPro(t *testing.T) {
	sel := Select(errorparser.CategoryMacro, 0, escalation.TierWorker)
	assert.Equal(t, NovaPro, sel.Models[0])
}

func TestSelect_PriorAttemptsAdvancesLadder(t *testing.T) {
	sel := Select(errorparser.CategoryTypeMismatch, 1, escalation.TierWorker)
	assert.Equal(t, AtlasSynth, sel.Models[0])
}

func TestSelect_LadderExhaustionFallsBackToZenithMax(t *testing.T) {
	sel := Select(errorparser.CategoryTypeMismatch, 10, escalation.TierWorker)
	assert.Equal(t, []ModelId{ZenithMax}, sel.Models)
	assert.True(t, sel.EscalationHint)
}

func TestSelect_CloudTierDropsForgeCoder(t *testing.T) {
	sel := Select(errorparser.CategoryTypeMismatch, 0, escalation.TierCloud)
	for _, m := range sel.Models {
		assert.NotEqual(t, ForgeCoder, m)
	}
}

func TestSelect_UnknownCategoryFallsBackToOtherLadder(t *testing.T) {
	var unknown errorparser.ErrorCategory = 99
	sel := Select(unknown, 0, escalation.TierWorker)
	assert.Equal(t, ladderFor[errorparser.CategoryOther][0], sel.Models[0])
}

func TestSelectAvailable_SkipsOpenCircuit(t *testing.T) {
	b := circuitbreaker.New(1, time.Hour)
	b.RecordFailure(string(ForgeCoder))

	model, _, err := SelectAvailable(errorparser.CategoryTypeMismatch, 0, escalation.TierWorker, b)
	require.NoError(t, err)
	assert.Equal(t, AtlasSynth, model)
}

func TestSelectAvailable_AllOpenReturnsError(t *testing.T) {
	b := circuitbreaker.New(1, time.Hour)
	for _, m := range AllModels() {
		b.RecordFailure(string(m))
	}

	_, _, err := SelectAvailable(errorparser.CategoryMacro, 0, escalation.TierWorker, b)
	assert.ErrorIs(t, err, ErrAllModelsUnavailable)
}
