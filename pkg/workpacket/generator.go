package workpacket

import (
	"fmt"
	"time"

	"github.com/forgeswarm/coordinator/pkg/errorparser"
	"github.com/forgeswarm/coordinator/pkg/escalation"
	"github.com/forgeswarm/coordinator/pkg/verifier"
	"github.com/google/uuid"
)

// DefaultTokenBudget bounds a generated packet's estimated serialized
// size. 4000 tokens comfortably holds a handful of file contexts plus
// history without risking a model's context window on its own.
const DefaultTokenBudget = 4000

// maxPatchLOCByTier gives wider tiers a larger patch budget since
// they're trusted with broader, more invasive changes.
var maxPatchLOCByTier = map[escalation.SwarmTier]int{
	escalation.TierWorker:  150,
	escalation.TierCouncil: 400,
	escalation.TierCloud:   1000,
}

// SourceFileProvider resolves file content for FileContext assembly,
// standing in for the worktree adapter the core treats as an external
// collaborator.
type SourceFileProvider interface {
	// ReadLines returns the inclusive line range [start,end] of file, or
	// an error if the file cannot be read from the current worktree.
	ReadLines(file string, start, end int) (string, error)
}

// Generator assembles WorkPackets from escalation state and the latest
// verifier report. It is deterministic given the same inputs and
// provider responses.
type Generator struct {
	Provider        SourceFileProvider
	TokenBudget     int
	FileCharBudget  int
	now             func() time.Time
}

// NewGenerator builds a Generator over provider, defaulting
// TokenBudget to DefaultTokenBudget and the per-file char budget to
// 2000.
func NewGenerator(provider SourceFileProvider) *Generator {
	return &Generator{Provider: provider, TokenBudget: DefaultTokenBudget, FileCharBudget: 2000, now: time.Now}
}

// Input bundles everything Generate needs beyond the Generator's own
// configuration.
type Input struct {
	BeadID      string
	Branch      string
	Checkpoint  string
	Objective   string
	Gates       []string
	State       *escalation.State
	Report      *verifier.Report
	Constraints []Constraint
	Heuristics  []string
	Playbooks   []string
	Decisions   []string
	PrevModel   string
}

// Generate assembles a WorkPacket for State.CurrentTier from in. It
// always trims FileContexts by relevance until the estimated token
// count is within the configured budget.
func (g *Generator) Generate(in Input) *WorkPacket {
	p := &WorkPacket{
		ID:                uuid.New(),
		BeadID:            in.BeadID,
		Branch:            in.Branch,
		CheckpointCommit:  in.Checkpoint,
		Objective:         in.Objective,
		VerificationGates: in.Gates,
		Iteration:         in.State.TotalIterations,
		TargetTier:        in.State.CurrentTier,
		Constraints:       in.Constraints,
		RelevantHeuristics: in.Heuristics,
		RelevantPlaybooks:  in.Playbooks,
		Decisions:          in.Decisions,
		GeneratedAt:        g.now(),
		MaxPatchLOC:        maxPatchLOCFor(in.State.CurrentTier),
	}

	if len(in.State.EscalationHistory) > 0 {
		last := in.State.EscalationHistory[len(in.State.EscalationHistory)-1]
		p.EscalationReason = last.Reason.String()
	}

	if in.Report != nil {
		p.FailureSignals = in.Report.FailureSignals
	}

	p.FilesTouched = distinctFilesTouched(in.Report)
	p.ErrorHistory = errorHistory(in.State)
	p.PreviousAttempts = previousAttempts(in.State)
	p.FileContexts = g.assembleFileContexts(p.FilesTouched, p.FailureSignals)

	for p.EstimatedTokens() > g.budget() && len(p.FileContexts) > 0 {
		p.FileContexts = p.FileContexts[:len(p.FileContexts)-1]
	}

	return p
}

func (g *Generator) budget() int {
	if g.TokenBudget > 0 {
		return g.TokenBudget
	}
	return DefaultTokenBudget
}

func maxPatchLOCFor(tier escalation.SwarmTier) int {
	if loc, ok := maxPatchLOCByTier[tier]; ok {
		return loc
	}
	return maxPatchLOCByTier[escalation.TierCloud]
}

// distinctFilesTouched returns the distinct files named by the current
// report's failure signals, in first-seen order. Files from earlier
// iterations are not included, and no check is made that a file still
// exists in the worktree.
func distinctFilesTouched(report *verifier.Report) []string {
	seen := make(map[string]bool)
	var files []string
	if report != nil {
		for _, fs := range report.FailureSignals {
			if fs.File != "" && !seen[fs.File] {
				seen[fs.File] = true
				files = append(files, fs.File)
			}
		}
	}
	return files
}

func errorHistory(state *escalation.State) []errorparser.ErrorCategory {
	seen := make(map[errorparser.ErrorCategory]bool)
	var out []errorparser.ErrorCategory
	for _, rec := range state.IterationHistory {
		for _, c := range rec.ErrorCategories {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	return out
}

// previousAttempts produces a short human-readable summary per past
// iteration: its error count and whether it changed any files.
func previousAttempts(state *escalation.State) []string {
	out := make([]string, 0, len(state.IterationHistory))
	for i, rec := range state.IterationHistory {
		status := "no file changes"
		if rec.ChangedFiles {
			status = "changed files"
		}
		out = append(out, fmt.Sprintf("iteration %d: %d errors, %s", i+1, rec.ErrorCount, status))
	}
	return out
}

// assembleFileContexts reads a bounded snippet of every touched file,
// ordering failure-signal files first (highest relevance), and
// skipping files the provider cannot read rather than failing the
// whole packet.
func (g *Generator) assembleFileContexts(files []string, signals []errorparser.FailureSignal) []FileContext {
	if g.Provider == nil {
		return nil
	}
	charBudget := g.FileCharBudget
	if charBudget <= 0 {
		charBudget = 2000
	}
	lineBudget := charBudget / 60 // ~60 chars/line estimate

	lineHints := make(map[string]int)
	for _, fs := range signals {
		if fs.Line > 0 {
			lineHints[fs.File] = fs.Line
		}
	}

	var out []FileContext
	for _, f := range files {
		center := lineHints[f]
		if center <= 0 {
			center = 1
		}
		start := center - lineBudget/2
		if start < 1 {
			start = 1
		}
		end := start + lineBudget

		content, err := g.Provider.ReadLines(f, start, end)
		if err != nil {
			continue
		}
		relevance := "touched in a previous iteration"
		if _, ok := lineHints[f]; ok {
			relevance = "named in a current failure signal"
		}
		out = append(out, FileContext{File: f, StartLine: start, EndLine: end, Content: content, Relevance: relevance})
	}
	return out
}
