package verifier

import (
	"bufio"
	"context"
	"strings"

	"github.com/forgeswarm/coordinator/pkg/procexec"
)

// DiffRiskProfile characterizes a pending diff so the pipeline can
// decide which risk-adaptive gates to enable and whether to prefer a
// parallel test runner.
type DiffRiskProfile struct {
	HasUnsafe                   bool
	HasDependencyManifestChange bool
	HasPublicAPIChange          bool
	HasDocChange                bool
	FilesChanged                int
	LinesAdded                  int
	LinesRemoved                int
}

// WantsDepAudit reports whether the dependency-manifest-change policy
// enables the dep-audit gate.
func (p DiffRiskProfile) WantsDepAudit() bool { return p.HasDependencyManifestChange }

// WantsDocBuild reports whether the doc-or-public-API-change policy
// enables the doc-build gate.
func (p DiffRiskProfile) WantsDocBuild() bool { return p.HasDocChange || p.HasPublicAPIChange }

// PrefersParallelTests reports whether the diff is large enough that
// the pipeline should prefer a parallel test runner over a serial one.
func (p DiffRiskProfile) PrefersParallelTests() bool {
	return p.FilesChanged >= 3 || p.LinesAdded >= 100
}

var manifestFiles = map[string]bool{
	"go.mod":         true,
	"go.sum":         true,
	"Cargo.toml":     true,
	"Cargo.lock":     true,
	"package.json":   true,
	"package-lock.json": true,
}

// BuildDiffRiskProfile computes a DiffRiskProfile from `git diff HEAD`
// in workingDir, falling back to the unstaged diff (`git diff`) when
// there is no HEAD (a freshly initialized worktree).
func BuildDiffRiskProfile(ctx context.Context, workingDir string) (DiffRiskProfile, error) {
	res, err := procexec.Run(ctx, "git", []string{"diff", "HEAD", "--unified=0"}, procexec.Options{Dir: workingDir})
	if err != nil || res.ExitCode != 0 {
		res, err = procexec.Run(ctx, "git", []string{"diff", "--unified=0"}, procexec.Options{Dir: workingDir})
		if err != nil {
			return DiffRiskProfile{}, err
		}
	}
	return parseUnifiedDiff(res.Stdout), nil
}

func parseUnifiedDiff(diff string) DiffRiskProfile {
	var p DiffRiskProfile
	files := make(map[string]bool)

	scanner := bufio.NewScanner(strings.NewReader(diff))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var currentFile string

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "diff --git "):
			fields := strings.Fields(line)
			if len(fields) >= 4 {
				currentFile = strings.TrimPrefix(fields[3], "b/")
				files[currentFile] = true
				base := currentFile
				if idx := strings.LastIndex(base, "/"); idx >= 0 {
					base = base[idx+1:]
				}
				if manifestFiles[base] {
					p.HasDependencyManifestChange = true
				}
				lower := strings.ToLower(currentFile)
				if strings.HasSuffix(lower, ".md") || strings.Contains(lower, "/doc/") || strings.Contains(lower, "/docs/") {
					p.HasDocChange = true
				}
			}
		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			p.LinesAdded++
			body := line[1:]
			if strings.Contains(body, "unsafe") {
				p.HasUnsafe = true
			}
			if isPublicAPILine(body) {
				p.HasPublicAPIChange = true
			}
		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			p.LinesRemoved++
			if isPublicAPILine(line[1:]) {
				p.HasPublicAPIChange = true
			}
		}
		_ = currentFile
	}

	p.FilesChanged = len(files)
	return p
}

// isPublicAPILine heuristically detects a changed exported Go
// declaration: a top-level `func`/`type`/`var`/`const` whose identifier
// starts with an uppercase letter.
func isPublicAPILine(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, kw := range []string{"func ", "type ", "var ", "const "} {
		if !strings.HasPrefix(trimmed, kw) {
			continue
		}
		rest := strings.TrimSpace(trimmed[len(kw):])
		rest = strings.TrimPrefix(rest, "(")
		if rest == "" {
			continue
		}
		r := rune(rest[0])
		if r >= 'A' && r <= 'Z' {
			return true
		}
	}
	return false
}
