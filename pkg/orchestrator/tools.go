package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/forgeswarm/coordinator/pkg/collab"
	"github.com/forgeswarm/coordinator/pkg/sandbox"
)

// toolDefinitions is the static descriptor list registered with the
// LLMEndpoint for one agent turn. Names are canonical; the endpoint
// may echo them back proxy_-prefixed, which dispatchToolCall
// normalizes via sandbox.NormalizeToolName.
func toolDefinitions() []collab.ToolDefinition {
	return []collab.ToolDefinition{
		{Name: "read_file", Description: "Read the full contents of a file in the worktree.",
			Schema: `{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`},
		{Name: "write_file", Description: "Write content to a file in the worktree, creating it if needed.",
			Schema: `{"type":"object","properties":{"path":{"type":"string"},"content":{"type":"string"}},"required":["path","content"]}`},
		{Name: "edit_file", Description: "Replace the first occurrence of old_text with new_text in a file.",
			Schema: `{"type":"object","properties":{"path":{"type":"string"},"old_text":{"type":"string"},"new_text":{"type":"string"}},"required":["path","old_text","new_text"]}`},
		{Name: "list_files", Description: "List files under a directory in the worktree.",
			Schema: `{"type":"object","properties":{"path":{"type":"string"}}}`},
		{Name: "run_command", Description: "Run an allow-listed shell command in the worktree.",
			Schema: `{"type":"object","properties":{"command":{"type":"string"}},"required":["command"]}`},
		{Name: "run_verifier", Description: "Run the quality-gate pipeline (quick|compile|full) against the worktree.",
			Schema: `{"type":"object","properties":{"mode":{"type":"string","enum":["quick","compile","full"]}}}`},
		{Name: "query_notebook", Description: "Ask the knowledge base a question scoped to a role.",
			Schema: `{"type":"object","properties":{"role":{"type":"string"},"question":{"type":"string"}},"required":["role","question"]}`},
	}
}

// toolDefinitionsProxied mirrors toolDefinitions but registers each
// under its proxy_-prefixed alias, for endpoints that front the
// sandbox through a proxying inference layer.
func toolDefinitionsProxied() []collab.ToolDefinition {
	defs := toolDefinitions()
	out := make([]collab.ToolDefinition, len(defs))
	for i, d := range defs {
		d.Name = sandbox.DenormalizeToolName(d.Name)
		out[i] = d
	}
	return out
}

// dispatchResult reports a tool call's text result alongside whether
// it plausibly changed a file in the worktree, which feeds the
// escalation engine's ConsecutiveNoChange counter.
type dispatchResult struct {
	Content      string
	ChangedFiles bool
}

// dispatchToolCall normalizes call.Name and invokes the matching
// ToolSandbox method. Errors from the sandbox are rendered as tool
// content (not returned as a Go error) so the acting model sees the
// failure and can react: a sandbox violation fails the tool call, it
// does not abort the iteration.
func dispatchToolCall(ctx context.Context, sb *sandbox.ToolSandbox, call collab.ToolCall) dispatchResult {
	name := sandbox.NormalizeToolName(call.Name)

	var args map[string]any
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return dispatchResult{Content: fmt.Sprintf("error: invalid tool arguments: %v", err)}
		}
	}
	str := func(key string) string {
		v, _ := args[key].(string)
		return v
	}

	switch name {
	case "read_file":
		out, err := sb.ReadFile(str("path"))
		return renderResult(out, err, false)
	case "write_file":
		out, err := sb.WriteFile(str("path"), str("content"))
		return renderResult(out, err, err == nil)
	case "edit_file":
		out, err := sb.EditFile(str("path"), str("old_text"), str("new_text"))
		return renderResult(out, err, err == nil)
	case "list_files":
		out, err := sb.ListFiles(str("path"))
		return renderResult(out, err, false)
	case "run_command":
		out, err := sb.RunCommand(ctx, str("command"))
		return renderResult(out, err, false)
	case "run_verifier":
		out, err := sb.RunVerifier(ctx, sandbox.VerifierMode(defaultIfEmpty(str("mode"), "full")))
		return renderResult(out, err, false)
	case "query_notebook":
		out, err := sb.QueryNotebook(ctx, str("role"), str("question"))
		return renderResult(out, err, false)
	default:
		return dispatchResult{Content: fmt.Sprintf("error: unknown tool %q", name)}
	}
}

func renderResult(out string, err error, changedFiles bool) dispatchResult {
	if err != nil {
		return dispatchResult{Content: fmt.Sprintf("error: %v", err)}
	}
	return dispatchResult{Content: out, ChangedFiles: changedFiles}
}

func defaultIfEmpty(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
