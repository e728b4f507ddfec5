package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/forgeswarm/coordinator/pkg/collab"
	"github.com/forgeswarm/coordinator/pkg/sandbox"
	"github.com/forgeswarm/coordinator/pkg/workpacket"
)

// agentTurnResult summarizes one pass through the coder agent's
// tool-calling loop.
type agentTurnResult struct {
	Turns        int
	ChangedFiles bool
	FinalMessage string
}

// runAgentTurn drives llm through a tool-calling loop seeded with
// packet's contents, dispatching every tool call into sb, until the
// model stops requesting tools or maxTurns is reached. This is the
// agent session the sandbox exists for: every file the model touches
// goes through sb's confinement checks.
func runAgentTurn(ctx context.Context, llm collab.LLMEndpoint, sb *sandbox.ToolSandbox, packet *workpacket.WorkPacket, maxTurns int) (agentTurnResult, error) {
	messages := []collab.ChatMessage{
		{Role: "system", Content: "You are a coding agent. Use the available tools to resolve the objective, then stop calling tools when you believe the work is complete."},
		{Role: "user", Content: renderPacket(packet)},
	}
	tools := toolDefinitions()

	result := agentTurnResult{}
	if maxTurns <= 0 {
		maxTurns = 1
	}

	for turn := 0; turn < maxTurns; turn++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		resp, err := llm.Complete(ctx, messages, tools)
		if err != nil {
			return result, fmt.Errorf("orchestrator: agent turn %d: %w", turn, err)
		}
		result.Turns++
		result.FinalMessage = resp.Content

		if len(resp.ToolCalls) == 0 {
			return result, nil
		}

		messages = append(messages, collab.ChatMessage{Role: "assistant", Content: resp.Content})
		for _, call := range resp.ToolCalls {
			dr := dispatchToolCall(ctx, sb, call)
			if dr.ChangedFiles {
				result.ChangedFiles = true
			}
			messages = append(messages, collab.ChatMessage{
				Role:       "tool",
				Content:    dr.Content,
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})
		}
	}
	return result, nil
}

// renderPacket turns a WorkPacket into the single user turn an agent
// session is seeded with. It is deliberately plain text: prompt
// wording belongs to the embedding application, this is just enough
// structure for an agent to act on deterministically in tests.
func renderPacket(p *workpacket.WorkPacket) string {
	buf, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return p.Objective
	}
	return fmt.Sprintf("Objective: %s\n\nWorkPacket:\n%s", p.Objective, string(buf))
}
