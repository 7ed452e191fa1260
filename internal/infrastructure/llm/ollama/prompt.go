package ollama

import (
	"fmt"
	"strings"

	"github.com/voronkovm/diagramflow/internal/core/domain"
)

const moderationSystemPrompt = `You are a content moderator for a public diagram library.
Return strict JSON object with keys:
decision (string, one of: approve, reject, manual_review), confidence (number from 0 to 1), reason (string).
Reject content that is offensive, deceptive or unrelated to technical documentation.
Escalate to manual_review when unsure.
No markdown, no extra keys.`

func buildModerationMessages(d *domain.Diagram) []domain.ChatMessage {
	const maxSnippet = 4000
	markup := d.Markup
	if len(markup) > maxSnippet {
		markup = markup[:maxSnippet]
	}

	var content strings.Builder
	fmt.Fprintf(&content, "Title: %s\n", d.Title)
	if len(d.Tags) > 0 {
		fmt.Fprintf(&content, "Tags: %s\n", strings.Join(d.Tags, ", "))
	}
	if strings.TrimSpace(d.Summary) != "" {
		fmt.Fprintf(&content, "Summary: %s\n", d.Summary)
	}
	fmt.Fprintf(&content, "Markup (%s):\n%s\n", d.Format, markup)

	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: moderationSystemPrompt},
		{Role: domain.RoleUser, Content: content.String()},
	}
}
