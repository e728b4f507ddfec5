package sandbox

import (
	"path/filepath"
	"strings"
)

// pathCheck validates that workingDir/relativePath canonicalises to a
// path within workingDir, resolving symlinks so an in-root link
// pointing outside the sandbox is caught, not just a lexical "..".
// If the candidate does not yet exist (a pending write), its parent is
// canonicalised and the file name rejoined instead.
func pathCheck(workingDir, relativePath string) (string, error) {
	root, err := filepath.Abs(workingDir)
	if err != nil {
		return "", ioErr("resolve sandbox root: %v", err)
	}
	if r, err := filepath.EvalSymlinks(root); err == nil {
		root = r
	}
	root = filepath.Clean(root)

	candidate := filepath.Clean(filepath.Join(root, relativePath))
	resolved, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		// Pending write: canonicalise the nearest existing parent and
		// rejoin the final element. A missing parent chain falls back
		// to the lexical path, which withinRoot still bounds.
		if parent, perr := filepath.EvalSymlinks(filepath.Dir(candidate)); perr == nil {
			resolved = filepath.Join(parent, filepath.Base(candidate))
		} else {
			resolved = candidate
		}
	}

	if !withinRoot(root, resolved) {
		return "", sandboxErr(relativePath)
	}
	return resolved, nil
}

// withinRoot reports whether resolved is root itself or a descendant
// of it, using a path-separator-aware prefix check so "/root2" is not
// mistaken for a child of "/root".
func withinRoot(root, resolved string) bool {
	rel, err := filepath.Rel(root, resolved)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
