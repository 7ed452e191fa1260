package ollama

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/voronkovm/diagramflow/internal/core/domain"
)

// Analyzer scores diagram content for the moderation engine through the same
// Ollama endpoint the generation stage uses.
type Analyzer struct {
	client *Client
}

func NewAnalyzer(client *Client) *Analyzer {
	return &Analyzer{client: client}
}

func (a *Analyzer) Analyze(ctx context.Context, d *domain.Diagram) (domain.ModerationAnalysis, error) {
	respText, err := a.client.Chat(ctx, buildModerationMessages(d))
	if err != nil {
		return domain.ModerationAnalysis{}, err
	}

	var analysis domain.ModerationAnalysis
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &analysis); err != nil {
		return domain.ModerationAnalysis{}, domain.WrapError(domain.ErrMalformedOutput, "parse moderation analysis", err)
	}

	analysis.Decision = domain.ModerationDecision(strings.ToLower(strings.TrimSpace(string(analysis.Decision))))
	analysis.Reason = strings.TrimSpace(analysis.Reason)
	if analysis.Confidence < 0 {
		analysis.Confidence = 0
	}
	if analysis.Confidence > 1 {
		analysis.Confidence = 1
	}
	return analysis, nil
}
