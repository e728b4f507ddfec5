package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/forgeswarm/coordinator/pkg/collab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathCheck_RejectsEscape(t *testing.T) {
	dir := t.TempDir()
	_, err := pathCheck(dir, "../../etc/passwd")
	require.Error(t, err)
	var sErr *Error
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, ErrSandboxEscape, sErr.Kind)
}

func TestPathCheck_AllowsWithinRoot(t *testing.T) {
	dir := t.TempDir()
	resolved, err := pathCheck(dir, "sub/file.go")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(resolved))
}

func TestPathCheck_AllowsNonexistentFileUnderExistingParent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	_, err := pathCheck(dir, "sub/new.go")
	assert.NoError(t, err)
}

func TestPathCheck_RejectsSymlinkPointingOutsideRoot(t *testing.T) {
	outside := t.TempDir()
	root := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "escape")))

	_, err := pathCheck(root, "escape/secrets.txt")
	require.Error(t, err)
	var sErr *Error
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, ErrSandboxEscape, sErr.Kind)
}

func TestPathCheck_AllowsSymlinkWithinRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(root, "src"), filepath.Join(root, "alias")))

	_, err := pathCheck(root, "alias/file.go")
	assert.NoError(t, err)
}

func TestWriteThenReadFile(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteFile(dir, "pkg/foo.go", "package foo\n")
	require.NoError(t, err)

	content, err := ReadFile(dir, "pkg/foo.go")
	require.NoError(t, err)
	assert.Equal(t, "package foo\n", content)
}

func TestWriteFile_RecoversDoubleEncodedContent(t *testing.T) {
	dir := t.TempDir()
	// A JSON-string-encoded payload: "line1\nline2" (literal backslash-n, no real newline).
	encoded := `"line1\nline2"`
	_, err := WriteFile(dir, "f.txt", encoded)
	require.NoError(t, err)

	content, err := ReadFile(dir, "f.txt")
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2", content)
}

func TestWriteFile_LeavesNormalContentAlone(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteFile(dir, "f.txt", "\"just a quoted string\"")
	require.NoError(t, err)
	content, err := ReadFile(dir, "f.txt")
	require.NoError(t, err)
	assert.Equal(t, "\"just a quoted string\"", content)
}

func TestEditFile_ReplacesUniqueAnchor(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteFile(dir, "f.go", "func Foo() { return 1 }\n")
	require.NoError(t, err)

	_, err = EditFile(dir, "f.go", "return 1", "return 2")
	require.NoError(t, err)

	content, err := ReadFile(dir, "f.go")
	require.NoError(t, err)
	assert.Contains(t, content, "return 2")
}

func TestEditFile_RejectsAmbiguousAnchor(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteFile(dir, "f.go", "x\nx\n")
	require.NoError(t, err)

	_, err = EditFile(dir, "f.go", "x", "y")
	assert.Error(t, err)
}

func TestEditFile_RejectsMissingAnchor(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteFile(dir, "f.go", "hello\n")
	require.NoError(t, err)

	_, err = EditFile(dir, "f.go", "nope", "y")
	assert.Error(t, err)
}

func TestListFiles_SkipsHiddenAndBuildDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "target"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("x"), 0o644))

	out, err := ListFiles(dir, "")
	require.NoError(t, err)
	assert.Contains(t, out, "main.go")
	assert.NotContains(t, out, ".git")
	assert.NotContains(t, out, "target")
}

func TestReadLines_ClampsRange(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteFile(dir, "f.txt", "a\nb\nc\n")
	require.NoError(t, err)

	out, err := ReadLines(dir, "f.txt", 2, 100)
	require.NoError(t, err)
	assert.Equal(t, "b\nc\n", out)
}

func TestRunCommand_RejectsShellMetacharacters(t *testing.T) {
	dir := t.TempDir()
	_, err := RunCommand(context.Background(), dir, "cargo test; rm -rf /")
	require.Error(t, err)
	var sErr *Error
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, ErrCommandNotAllowed, sErr.Kind)
}

func TestRunCommand_RejectsDisallowedCommand(t *testing.T) {
	dir := t.TempDir()
	_, err := RunCommand(context.Background(), dir, "rm -rf /")
	require.Error(t, err)
	var sErr *Error
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, ErrCommandNotAllowed, sErr.Kind)
}

func TestRunCommand_AllowsAllowlistedCommand(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello\n"), 0o644))
	out, err := RunCommand(context.Background(), dir, "cat a.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "hello")
}

func TestQueryNotebook_DegradesOnFailure(t *testing.T) {
	out, err := QueryNotebook(context.Background(), collab.AlwaysFailKnowledgeBase{}, "project_brain", "what is this?")
	require.NoError(t, err)
	assert.Contains(t, out, "Knowledge base query failed")
	assert.Contains(t, out, "project_brain")
}

func TestQueryNotebook_NoKnowledgeMessageOnEmpty(t *testing.T) {
	out, err := QueryNotebook(context.Background(), collab.NoOpKnowledgeBase{}, "debugging_kb", "how to fix E0382?")
	require.NoError(t, err)
	assert.Contains(t, out, "No knowledge available")
}

func TestNormalizeDenormalizeToolName_RoundTrip(t *testing.T) {
	assert.Equal(t, "read_file", NormalizeToolName("proxy_read_file"))
	assert.Equal(t, "read_file", NormalizeToolName("read_file"))
	assert.Equal(t, "proxy_read_file", DenormalizeToolName("read_file"))
	assert.Equal(t, "proxy_read_file", DenormalizeToolName("proxy_read_file"))
}

func TestToolSandbox_WiresAllHandlers(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, collab.NoOpKnowledgeBase{})

	_, err := s.WriteFile("a.go", "package a\n")
	require.NoError(t, err)

	content, err := s.ReadFile("a.go")
	require.NoError(t, err)
	assert.Equal(t, "package a\n", content)

	_, err = s.EditFile("a.go", "package a", "package b")
	require.NoError(t, err)

	listing, err := s.ListFiles("")
	require.NoError(t, err)
	assert.Contains(t, listing, "a.go")

	note, err := s.QueryNotebook(context.Background(), "codebase", "what does this do?")
	require.NoError(t, err)
	assert.NotEmpty(t, note)
}
