package sandbox

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ReadFile returns the full contents of relativePath within
// workingDir.
func ReadFile(workingDir, relativePath string) (string, error) {
	full, err := pathCheck(workingDir, relativePath)
	if err != nil {
		return "", err
	}
	buf, err := os.ReadFile(full)
	if err != nil {
		return "", ioErr("read %s: %v", relativePath, err)
	}
	return string(buf), nil
}

// ReadLines returns the inclusive line range [start,end] of
// relativePath, implementing workpacket.SourceFileProvider. Lines are
// 1-indexed; a requested end past EOF is clamped.
func ReadLines(workingDir, relativePath string, start, end int) (string, error) {
	content, err := ReadFile(workingDir, relativePath)
	if err != nil {
		return "", err
	}
	lines := strings.Split(content, "\n")
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return "", nil
	}
	return strings.Join(lines[start-1:end], "\n"), nil
}

// WriteFile writes content to relativePath within workingDir, creating
// parent directories as needed. It recovers a common double-JSON-
// encoding mistake: if content looks like a JSON-quoted string
// (wrapped in quotes, containing an escaped "\n" but no literal
// newline), it is decoded once before writing.
func WriteFile(workingDir, relativePath, content string) (string, error) {
	full, err := pathCheck(workingDir, relativePath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", ioErr("create parent dirs for %s: %v", relativePath, err)
	}

	content = recoverDoubleEncoded(content)

	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return "", ioErr("write %s: %v", relativePath, err)
	}
	return fmt.Sprintf("Wrote %d bytes to %s", len(content), relativePath), nil
}

func recoverDoubleEncoded(content string) string {
	if len(content) < 2 || content[0] != '"' || content[len(content)-1] != '"' {
		return content
	}
	inner := content[1 : len(content)-1]
	if !strings.Contains(inner, `\n`) || strings.Contains(inner, "\n") {
		return content
	}
	var unescaped string
	if err := json.Unmarshal([]byte(content), &unescaped); err != nil {
		return content
	}
	return unescaped
}

// EditFile applies a substring-anchored patch: it replaces the first
// occurrence of oldText with newText and rewrites the file. Returns an
// error if oldText does not appear exactly once.
func EditFile(workingDir, relativePath, oldText, newText string) (string, error) {
	full, err := pathCheck(workingDir, relativePath)
	if err != nil {
		return "", err
	}
	buf, err := os.ReadFile(full)
	if err != nil {
		return "", ioErr("read %s: %v", relativePath, err)
	}
	content := string(buf)

	count := strings.Count(content, oldText)
	switch count {
	case 0:
		return "", ioErr("anchor text not found in %s", relativePath)
	case 1:
		// exact match, proceed
	default:
		return "", ioErr("anchor text is ambiguous in %s: %d occurrences", relativePath, count)
	}

	updated := strings.Replace(content, oldText, newText, 1)
	if err := os.WriteFile(full, []byte(updated), 0o644); err != nil {
		return "", ioErr("write %s: %v", relativePath, err)
	}
	return fmt.Sprintf("Patched %s", relativePath), nil
}

// ListFiles lists the entries at relativePath (empty string means the
// workspace root), skipping hidden entries and build output
// directories.
func ListFiles(workingDir, relativePath string) (string, error) {
	dir := workingDir
	if relativePath != "" {
		full, err := pathCheck(workingDir, relativePath)
		if err != nil {
			return "", err
		}
		dir = full
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", ioErr("list %s: %v", relativePath, err)
	}

	var lines []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || name == "target" || name == "node_modules" {
			continue
		}
		kind := "file"
		if e.IsDir() {
			kind = "dir"
		}
		lines = append(lines, kind+"\t"+name)
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n"), nil
}
