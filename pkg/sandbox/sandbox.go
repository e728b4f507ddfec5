package sandbox

import (
	"context"

	"github.com/forgeswarm/coordinator/pkg/collab"
)

// ToolSandbox is the confined tool surface bound to one worktree,
// exposing every tool an agent session can call by name.
type ToolSandbox struct {
	WorkingDir    string
	KnowledgeBase collab.KnowledgeBase
}

// New binds a ToolSandbox to workingDir. kb may be nil; QueryNotebook
// then returns a "not configured" message instead of an error.
func New(workingDir string, kb collab.KnowledgeBase) *ToolSandbox {
	return &ToolSandbox{WorkingDir: workingDir, KnowledgeBase: kb}
}

func (s *ToolSandbox) ReadFile(relativePath string) (string, error) {
	return ReadFile(s.WorkingDir, relativePath)
}

// ReadLines implements workpacket.SourceFileProvider.
func (s *ToolSandbox) ReadLines(relativePath string, start, end int) (string, error) {
	return ReadLines(s.WorkingDir, relativePath, start, end)
}

func (s *ToolSandbox) WriteFile(relativePath, content string) (string, error) {
	return WriteFile(s.WorkingDir, relativePath, content)
}

func (s *ToolSandbox) EditFile(relativePath, oldText, newText string) (string, error) {
	return EditFile(s.WorkingDir, relativePath, oldText, newText)
}

func (s *ToolSandbox) ListFiles(relativePath string) (string, error) {
	return ListFiles(s.WorkingDir, relativePath)
}

func (s *ToolSandbox) RunCommand(ctx context.Context, command string) (string, error) {
	return RunCommand(ctx, s.WorkingDir, command)
}

func (s *ToolSandbox) RunVerifier(ctx context.Context, mode VerifierMode) (string, error) {
	return RunVerifier(ctx, s.WorkingDir, mode)
}

func (s *ToolSandbox) QueryNotebook(ctx context.Context, role, question string) (string, error) {
	if s.KnowledgeBase == nil {
		return "Knowledge base not configured for this session.", nil
	}
	return QueryNotebook(ctx, s.KnowledgeBase, role, question)
}

// proxyPrefix is prepended to tool names by a proxying inference
// endpoint; tools already carrying it are left untouched so the
// round-trip is idempotent.
const proxyPrefix = "proxy_"

// NormalizeToolName strips a leading proxy_ prefix, mapping the
// model's tool-call name back to the sandbox's canonical tool name.
func NormalizeToolName(name string) string {
	if len(name) > len(proxyPrefix) && name[:len(proxyPrefix)] == proxyPrefix {
		return name[len(proxyPrefix):]
	}
	return name
}

// DenormalizeToolName adds the proxy_ prefix to a canonical tool name
// when registering tool definitions behind a proxying endpoint. A name
// that already carries the prefix is returned unchanged.
func DenormalizeToolName(name string) string {
	if len(name) >= len(proxyPrefix) && name[:len(proxyPrefix)] == proxyPrefix {
		return name
	}
	return proxyPrefix + name
}
