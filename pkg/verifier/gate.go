package verifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/forgeswarm/coordinator/pkg/errorparser"
	"github.com/forgeswarm/coordinator/pkg/procexec"
)

// Gate is one deterministic quality check. Command/Args are run in the
// working directory under the pipeline's configured timeout; Parse
// turns the raw stdout/stderr into []ParsedError.
type Gate struct {
	Name    string
	Command string
	Args    []string
	Parse   func(stdout, stderr string) []errorparser.ParsedError
}

// run executes the gate and returns its GateResult. It never returns a
// Go error: a spawn failure is folded into a Failed outcome with the
// spawn error recorded in StderrExcerpt, so the pipeline can proceed
// deterministically through fail-fast/comprehensive policy.
func (g Gate) run(ctx context.Context, workingDir string, timeout time.Duration) GateResult {
	start := time.Now()
	res, err := procexec.Run(ctx, g.Command, g.Args, procexec.Options{
		Dir:     workingDir,
		Timeout: timeout,
	})
	gr := GateResult{
		GateName:   g.Name,
		DurationMs: time.Since(start).Milliseconds(),
	}

	if err != nil {
		gr.Outcome = Failed
		gr.StderrExcerpt = excerpt(err.Error())
		gr.Errors = []errorparser.ParsedError{gateFailure(g.Name, -1, err.Error())}
		gr.ErrorCount = 1
		slog.Warn("verifier gate errored", "gate", g.Name, "error", err)
		return gr
	}

	exitCode := res.ExitCode
	gr.ExitCode = &exitCode
	if g.Parse != nil {
		gr.Errors = g.Parse(res.Stdout, res.Stderr)
	}
	for _, e := range gr.Errors {
		if isWarning(e) {
			gr.WarningCount++
		}
	}
	gr.StderrExcerpt = excerpt(res.Stderr)

	if exitCode == 0 && len(gr.Errors) == 0 {
		gr.Outcome = Passed
	} else {
		gr.Outcome = Failed
		if len(gr.Errors) == 0 {
			// Nonzero exit with nothing parseable (a dep-audit or doc
			// gate, or a tool writing plain text): synthesize one
			// diagnostic so a Failed gate always carries a failure
			// signal.
			gr.Errors = append(gr.Errors, gateFailure(g.Name, exitCode, res.Stderr))
		}
	}
	gr.ErrorCount = len(gr.Errors)
	return gr
}

// gateFailure is the diagnostic for a gate that failed without
// producing any parseable diagnostics.
func gateFailure(gate string, exitCode int, detail string) errorparser.ParsedError {
	msg := fmt.Sprintf("%s gate failed (exit %d)", gate, exitCode)
	if d := strings.TrimSpace(detail); d != "" {
		if i := strings.IndexByte(d, '\n'); i >= 0 {
			d = d[:i]
		}
		msg = msg + ": " + d
	}
	return errorparser.ParsedError{Category: errorparser.CategoryOther, Message: msg, Rendered: msg}
}

func isWarning(e errorparser.ParsedError) bool {
	return e.Category == errorparser.CategoryOther && e.Code == ""
}

const excerptLimit = 2000

func excerpt(s string) string {
	if len(s) <= excerptLimit {
		return s
	}
	return s[:excerptLimit]
}
