package verifier

import (
	"context"
	"strings"
	"time"

	"github.com/forgeswarm/coordinator/pkg/errorparser"
	"github.com/forgeswarm/coordinator/pkg/procexec"
)

// Mode selects the base gate set run by the pipeline.
type Mode int

const (
	// ModeQuick runs format + lint only.
	ModeQuick Mode = iota
	// ModeCompileOnly runs lint + compile.
	ModeCompileOnly
	// ModeFull (the default) runs format -> lint -> compile -> test.
	ModeFull
)

// FailPolicy controls whether a failing gate skips the remainder.
type FailPolicy int

const (
	// FailFast (the default) marks every gate after the first Failed
	// one as Skipped.
	FailFast FailPolicy = iota
	// Comprehensive runs every enabled gate regardless of earlier
	// failures.
	Comprehensive
)

// Config configures one Verifier instance.
type Config struct {
	Mode           Mode
	FailPolicy     FailPolicy
	RiskAdaptive   bool // enable dep-audit/doc/parallel-test gates per DiffRiskProfile
	GateTimeout    time.Duration
	CheckFmt       bool
	CheckLint      bool
	CheckCompile   bool
	CheckTest      bool
}

// DefaultConfig returns ModeFull/FailFast/RiskAdaptive with a 2-minute
// per-gate timeout and every base gate enabled.
func DefaultConfig() Config {
	return Config{
		Mode:         ModeFull,
		FailPolicy:   FailFast,
		RiskAdaptive: true,
		GateTimeout:  2 * time.Minute,
		CheckFmt:     true,
		CheckLint:    true,
		CheckCompile: true,
		CheckTest:    true,
	}
}

// Verifier runs the configured gate sequence against a worktree.
type Verifier struct {
	cfg Config
}

// New creates a Verifier from cfg.
func New(cfg Config) *Verifier {
	return &Verifier{cfg: cfg}
}

// RunPipeline runs the gate sequence against workingDir and returns a
// Report. The context bounds the whole pipeline; individual gates are
// additionally bounded by Config.GateTimeout.
func (v *Verifier) RunPipeline(ctx context.Context, workingDir string) (Report, error) {
	profile, _ := BuildDiffRiskProfile(ctx, workingDir)
	gates := v.selectGates(profile)

	report := Report{WorkingDir: workingDir}
	report.Branch, report.Commit = gitRef(ctx, workingDir)

	skipRest := false
	for _, g := range gates {
		select {
		case <-ctx.Done():
			report.Gates = append(report.Gates, GateResult{GateName: g.Name, Outcome: Skipped})
			continue
		default:
		}

		if skipRest {
			report.Gates = append(report.Gates, GateResult{GateName: g.Name, Outcome: Skipped})
			continue
		}

		gr := g.run(ctx, workingDir, v.cfg.GateTimeout)
		report.Gates = append(report.Gates, gr)

		if gr.Outcome == Failed && v.cfg.FailPolicy == FailFast {
			skipRest = true
		}
	}

	finalize(&report)
	return report, nil
}

// selectGates builds the ordered gate list for the configured mode,
// plus any risk-adaptive gates the DiffRiskProfile's policy enables.
func (v *Verifier) selectGates(profile DiffRiskProfile) []Gate {
	var gates []Gate

	want := func(base bool) bool { return base }

	switch v.cfg.Mode {
	case ModeQuick:
		if want(v.cfg.CheckFmt) {
			gates = append(gates, fmtGate())
		}
		if want(v.cfg.CheckLint) {
			gates = append(gates, lintGate())
		}
	case ModeCompileOnly:
		if want(v.cfg.CheckLint) {
			gates = append(gates, lintGate())
		}
		if want(v.cfg.CheckCompile) {
			gates = append(gates, compileGate())
		}
	default: // ModeFull
		if want(v.cfg.CheckFmt) {
			gates = append(gates, fmtGate())
		}
		if want(v.cfg.CheckLint) {
			gates = append(gates, lintGate())
		}
		if want(v.cfg.CheckCompile) {
			gates = append(gates, compileGate())
		}
		if want(v.cfg.CheckTest) {
			if v.cfg.RiskAdaptive && profile.PrefersParallelTests() {
				gates = append(gates, testGate(true))
			} else {
				gates = append(gates, testGate(false))
			}
		}
	}

	if v.cfg.RiskAdaptive {
		if profile.WantsDepAudit() {
			gates = append(gates, depAuditGate())
		}
		if profile.WantsDocBuild() {
			gates = append(gates, docBuildGate())
		}
	}

	return gates
}

func fmtGate() Gate {
	return Gate{
		Name:    "format",
		Command: "gofmt",
		Args:    []string{"-l", "."},
		Parse:   parseGofmtOutput,
	}
}

func lintGate() Gate {
	return Gate{
		Name:    "lint",
		Command: "go",
		Args:    []string{"vet", "-json", "./..."},
		Parse:   parseGoBuildJSON,
	}
}

func compileGate() Gate {
	return Gate{
		Name:    "compile",
		Command: "go",
		Args:    []string{"build", "-json", "./..."},
		Parse:   parseGoBuildJSON,
	}
}

func testGate(parallel bool) Gate {
	args := []string{"test", "-json", "./..."}
	if parallel {
		args = append(args, "-parallel", "8")
	}
	return Gate{
		Name:    "test",
		Command: "go",
		Args:    args,
		Parse:   parseGoTestJSON,
	}
}

func depAuditGate() Gate {
	return Gate{
		Name:    "dep_audit",
		Command: "go",
		Args:    []string{"list", "-m", "-json", "all"},
		Parse:   func(stdout, stderr string) []errorparser.ParsedError { return nil },
	}
}

func docBuildGate() Gate {
	return Gate{
		Name:    "doc_build",
		Command: "go",
		Args:    []string{"doc", "./..."},
		Parse:   func(stdout, stderr string) []errorparser.ParsedError { return nil },
	}
}

// parseGofmtOutput treats every listed path as a single formatting
// diagnostic; gofmt -l prints one non-conforming file per line.
func parseGofmtOutput(stdout, stderr string) []errorparser.ParsedError {
	var out []errorparser.ParsedError
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, errorparser.ParsedError{
			Category: errorparser.CategoryOther,
			Message:  "file is not gofmt-formatted",
			File:     line,
			Rendered: "gofmt: " + line,
		})
	}
	return out
}

func parseGoBuildJSON(stdout, stderr string) []errorparser.ParsedError {
	errs := errorparser.ParseJSONLines([]byte(stdout))
	if len(errs) == 0 && stderr != "" {
		errs = errorparser.ParseJSONLines([]byte(stderr))
	}
	return errs
}

func parseGoTestJSON(stdout, stderr string) []errorparser.ParsedError {
	return errorparser.ParseJSONLines([]byte(stdout))
}

// gitRef returns the current branch and commit, best-effort: either
// may be empty if the worktree has no commits yet or git is
// unavailable.
func gitRef(ctx context.Context, workingDir string) (branch, commit string) {
	if res, err := procexec.Run(ctx, "git", []string{"rev-parse", "--abbrev-ref", "HEAD"}, procexec.Options{Dir: workingDir}); err == nil && res.ExitCode == 0 {
		branch = strings.TrimSpace(res.Stdout)
	}
	if res, err := procexec.Run(ctx, "git", []string{"rev-parse", "HEAD"}, procexec.Options{Dir: workingDir}); err == nil && res.ExitCode == 0 {
		commit = strings.TrimSpace(res.Stdout)
	}
	return branch, commit
}
