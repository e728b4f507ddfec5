package sandbox

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/forgeswarm/coordinator/pkg/collab"
)

// QueryNotebook queries kb for role/question, degrading to a non-fatal
// advisory string on any KB failure rather than propagating the error
// — the agent continues with less context instead of stalling.
func QueryNotebook(ctx context.Context, kb collab.KnowledgeBase, role, question string) (string, error) {
	answer, err := kb.Query(ctx, role, question)
	if err != nil {
		slog.Warn("sandbox: knowledge base query failed, degrading", "role", role, "error", err)
		return fmt.Sprintf(
			"Knowledge base query failed for role %q — proceeding without KB context. Error: %v",
			role, err,
		), nil
	}
	if answer == "" {
		return fmt.Sprintf(
			"No knowledge available for role %q. The notebook may not be configured or seeded yet.",
			role,
		), nil
	}
	return fmt.Sprintf("## Knowledge Base Response (%s)\n\n%s", role, answer), nil
}
