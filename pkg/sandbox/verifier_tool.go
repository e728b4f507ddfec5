package sandbox

import (
	"context"
	"fmt"
	"strings"

	"github.com/forgeswarm/coordinator/pkg/verifier"
)

// VerifierMode selects which gate subset run_verifier runs.
type VerifierMode string

const (
	VerifierQuick       VerifierMode = "quick"
	VerifierCompileOnly VerifierMode = "compile"
	VerifierFull        VerifierMode = "full"
)

func configForMode(mode VerifierMode) verifier.Config {
	switch mode {
	case VerifierQuick:
		cfg := verifier.DefaultConfig()
		cfg.Mode = verifier.ModeQuick
		return cfg
	case VerifierCompileOnly:
		cfg := verifier.DefaultConfig()
		cfg.Mode = verifier.ModeCompileOnly
		return cfg
	default:
		return verifier.DefaultConfig()
	}
}

// RunVerifier runs the quality-gate pipeline against workingDir and
// renders the report as agent-readable text.
func RunVerifier(ctx context.Context, workingDir string, mode VerifierMode) (string, error) {
	v := verifier.New(configForMode(mode))
	report, err := v.RunPipeline(ctx, workingDir)
	if err != nil {
		return "", verifierErr("%v", err)
	}
	return renderReport(report), nil
}

func renderReport(report verifier.Report) string {
	var b strings.Builder
	b.WriteString("## Verifier Report\n\n")
	if report.AllGreen {
		b.WriteString("**Result:** ALL GREEN\n")
	} else {
		b.WriteString("**Result:** FAILED\n")
	}
	fmt.Fprintf(&b, "**Gates:** %d/%d passed\n", report.GatesPassed, report.GatesTotal)
	fmt.Fprintf(&b, "**Duration:** %dms\n\n", report.TotalDurationMs)

	if len(report.FailureSignals) > 0 {
		b.WriteString("### Errors\n\n")
		for _, fs := range report.FailureSignals {
			fmt.Fprintf(&b, "- [%s] %s:%d — %s\n", fs.Category.String(), fs.File, fs.Line, fs.Message)
		}
	}
	return b.String()
}
