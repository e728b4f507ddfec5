// Package workpacket assembles the bounded, self-contained context
// hand-off record (WorkPacket) that an escalation tier acts on, without
// ever shipping a full conversation transcript between tiers.
package workpacket

import (
	"encoding/json"
	"time"

	"github.com/forgeswarm/coordinator/pkg/errorparser"
	"github.com/forgeswarm/coordinator/pkg/escalation"
	"github.com/forgeswarm/coordinator/pkg/router"
	"github.com/google/uuid"
)

// SymbolKind is the kind of source code symbol a KeySymbol names.
type SymbolKind int

const (
	SymbolStruct SymbolKind = iota
	SymbolInterface
	SymbolFunction
	SymbolConst
	SymbolType
	SymbolPackage
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolStruct:
		return "struct"
	case SymbolInterface:
		return "interface"
	case SymbolFunction:
		return "func"
	case SymbolConst:
		return "const"
	case SymbolType:
		return "type"
	case SymbolPackage:
		return "package"
	default:
		return "unknown"
	}
}

// KeySymbol is a symbol referenced in the task, surfaced to the acting
// tier so it does not have to rediscover it.
type KeySymbol struct {
	Name string     `json:"name"`
	Kind SymbolKind `json:"kind"`
	File string     `json:"file"`
	Line int        `json:"line,omitempty"`
}

// FileContext is a relevant code snippet with a note on why it matters.
type FileContext struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Content   string `json:"content"`
	Relevance string `json:"relevance"`
}

// ConstraintKind is the kind of behavioral constraint a Constraint
// expresses.
type ConstraintKind int

const (
	ConstraintNoDeps ConstraintKind = iota
	ConstraintNoBreakingAPI
	ConstraintMaxLOC
	ConstraintBackwardCompat
	ConstraintSecurity
	ConstraintPerformance
	ConstraintCustom
)

func (k ConstraintKind) String() string {
	switch k {
	case ConstraintNoDeps:
		return "no_deps"
	case ConstraintNoBreakingAPI:
		return "no_breaking_api"
	case ConstraintMaxLOC:
		return "max_loc"
	case ConstraintBackwardCompat:
		return "backward_compat"
	case ConstraintSecurity:
		return "security"
	case ConstraintPerformance:
		return "performance"
	default:
		return "custom"
	}
}

// Constraint is one rule the acting model must respect.
type Constraint struct {
	Kind        ConstraintKind `json:"kind"`
	Description string         `json:"description"`
}

// DelegationStep records one manager-to-manager handoff.
type DelegationStep struct {
	FromModel router.ModelId `json:"from_model"`
	ToModel   router.ModelId `json:"to_model"`
	Reason    string         `json:"reason"`
	At        time.Time      `json:"at"`
}

// WorkPacket is the self-contained hand-off record between tiers.
type WorkPacket struct {
	ID                 uuid.UUID                    `json:"id"`
	BeadID             string                       `json:"bead_id"`
	Branch             string                       `json:"branch"`
	CheckpointCommit   string                       `json:"checkpoint_commit"`
	Objective          string                       `json:"objective"`
	FilesTouched       []string                     `json:"files_touched"`
	KeySymbols         []KeySymbol                  `json:"key_symbols"`
	FileContexts       []FileContext                `json:"file_contexts"`
	VerificationGates  []string                     `json:"verification_gates"`
	FailureSignals     []errorparser.FailureSignal   `json:"failure_signals"`
	Constraints        []Constraint                 `json:"constraints"`
	Iteration          int                          `json:"iteration"`
	TargetTier         escalation.SwarmTier          `json:"target_tier"`
	EscalationReason   string                       `json:"escalation_reason,omitempty"`
	ErrorHistory       []errorparser.ErrorCategory   `json:"error_history"`
	PreviousAttempts   []string                     `json:"previous_attempts"`
	RelevantHeuristics []string                     `json:"relevant_heuristics,omitempty"`
	RelevantPlaybooks  []string                     `json:"relevant_playbooks,omitempty"`
	Decisions          []string                     `json:"decisions,omitempty"`
	GeneratedAt        time.Time                    `json:"generated_at"`
	MaxPatchLOC        int                          `json:"max_patch_loc"`
	DelegationChain    []DelegationStep             `json:"delegation_chain,omitempty"`
}

// EstimatedTokens approximates the serialized packet's token count at
// roughly 4 characters per token, matching the original's JSON-length
// heuristic.
func (p *WorkPacket) EstimatedTokens() int {
	buf, err := json.Marshal(p)
	if err != nil {
		return 0
	}
	return len(buf) / 4
}

// Summary is a compact one-line description for logging.
func (p *WorkPacket) Summary() string {
	return "WorkPacket[bead=" + p.BeadID + ", branch=" + p.Branch + ", tier=" + p.TargetTier.String() + "]"
}

// HasFailures reports whether the packet carries any failure signals.
func (p *WorkPacket) HasFailures() bool {
	return len(p.FailureSignals) > 0
}

// UniqueErrorCategories returns the distinct categories present in
// FailureSignals, in a stable order.
func (p *WorkPacket) UniqueErrorCategories() []errorparser.ErrorCategory {
	seen := make(map[errorparser.ErrorCategory]bool)
	var out []errorparser.ErrorCategory
	for _, fs := range p.FailureSignals {
		if !seen[fs.Category] {
			seen[fs.Category] = true
			out = append(out, fs.Category)
		}
	}
	return out
}
