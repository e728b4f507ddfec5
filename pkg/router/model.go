// Package router selects an ordered set of models for a failing
// diagnostic category, tier, and attempt history, and composes that
// selection with circuitbreaker.Breaker availability.
package router

// ModelId is a closed enumeration of model handles the orchestrator may
// route work to. Ordered weakest/cheapest to strongest tier-bias; the
// default FallbackLadder tries them in this order.
type ModelId string

const (
	// ForgeCoder is the default fast worker-tier model.
	ForgeCoder ModelId = "forge-coder"
	// AtlasSynth is a mid-tier model used for council-level review.
	AtlasSynth ModelId = "atlas-synth"
	// NovaPro is a high-capability cloud-tier model.
	NovaPro ModelId = "nova-pro"
	// ZenithMax is the strongest available model, reserved for the
	// final automated escalation step before a human is paged.
	ZenithMax ModelId = "zenith-max"
)

// AllModels lists every ModelId in default fallback order.
func AllModels() []ModelId {
	return []ModelId{ForgeCoder, AtlasSynth, NovaPro, ZenithMax}
}

func (m ModelId) String() string { return string(m) }
