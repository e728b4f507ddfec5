package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/forgeswarm/coordinator/pkg/procexec"
	"github.com/forgeswarm/coordinator/pkg/shellsafety"
)

// allowedCommands is the run_command allow-list: modern Rust-CLI-style
// names alongside their classic Unix counterparts, since an LLM may
// default to either.
var allowedCommands = map[string]bool{
	"cargo": true, "git": true, "bd": true,
	"rg": true, "fd": true, "bat": true, "sd": true, "delta": true,
	"ls": true, "wc": true, "find": true, "grep": true, "cat": true,
	"head": true, "tail": true, "sed": true, "awk": true, "sort": true,
	"uniq": true, "diff": true, "touch": true, "mkdir": true,
}

// DefaultTimeout bounds most run_command invocations.
const DefaultTimeout = 120 * time.Second

// TestTimeout bounds cargo-test-style invocations, which legitimately
// run longer than the default budget.
const TestTimeout = 300 * time.Second

// RunCommand executes command inside workingDir, subject to the
// allow-list, metacharacter rejection, and timeout policy. Execution
// uses direct process spawn — no shell — so allow-listing the first
// token is sufficient; there is no shell to reinterpret the rest.
func RunCommand(ctx context.Context, workingDir, command string) (string, error) {
	// ValidateArg rejects the chaining/substitution characters
	// ; | & $ ` ( ) < > CR LF. Reusing it here (rather than
	// re-deriving the character set) keeps the rule in one place.
	if err := shellsafety.ValidateArg(command); err != nil {
		var argErr *shellsafety.ArgValidationError
		if errors.As(err, &argErr) {
			return "", commandNotAllowedErr(fmt.Sprintf("shell metacharacter %q not allowed in commands", string(argErr.Character)))
		}
		return "", commandNotAllowedErr(err.Error())
	}

	parts := strings.Fields(command)
	if len(parts) == 0 {
		return "", commandNotAllowedErr("")
	}
	program := parts[0]
	if !allowedCommands[program] {
		return "", commandNotAllowedErr(program)
	}

	timeout := DefaultTimeout
	if program == "cargo" && contains(parts[1:], "test") {
		timeout = TestTimeout
	}

	res, err := procexec.Run(ctx, program, parts[1:], procexec.Options{Dir: workingDir, Timeout: timeout})
	if errors.Is(err, context.DeadlineExceeded) || res.TimedOut {
		return "", timeoutErr(int(timeout.Seconds()))
	}
	if err != nil {
		return "", ioErr("run %s: %v", program, err)
	}

	if res.ExitCode == 0 {
		return res.Stdout + res.Stderr, nil
	}
	// Non-zero exit is not a Go error: the agent needs to see the
	// failure output to decide what to do next.
	return fmt.Sprintf("EXIT CODE: %d\nSTDOUT:\n%s\nSTDERR:\n%s", res.ExitCode, res.Stdout, res.Stderr), nil
}

func contains(items []string, target string) bool {
	for _, it := range items {
		if it == target {
			return true
		}
	}
	return false
}
