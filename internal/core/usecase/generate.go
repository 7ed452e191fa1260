package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/voronkovm/diagramflow/internal/core/domain"
	"github.com/voronkovm/diagramflow/internal/core/genopts"
	"github.com/voronkovm/diagramflow/internal/core/ports"
)

const diagramSystemPrompt = `You are a diagram author. Turn the user's text into exactly one Mermaid diagram.
Respond with a single JSON object and nothing else, using exactly these keys:
{"title": string, "slug": string, "tags": [string], "markup": string, "format": "mermaid", "summary": string, "notes": string}
Pick the Mermaid diagram type that fits the content best (flowchart, sequenceDiagram, classDiagram, stateDiagram-v2, erDiagram).
The markup value must contain only Mermaid source, without code fences.`

const syntaxFixSystemPrompt = `You repair broken Mermaid markup. Respond with a single JSON object and nothing else:
{"markup": string}
The value must be the corrected Mermaid source without code fences. Keep the diagram's meaning; change only what is needed to make it parse.`

// GenerateDiagramUseCase is the generation stage: one text in, one validated
// diagram draft out. It has no side effects beyond the model call and the
// usage counter; persisting the result is the caller's job.
type GenerateDiagramUseCase struct {
	chat   ports.ChatCompleter
	usage  ports.UsageRecorder
	logger *slog.Logger
}

func NewGenerateDiagramUseCase(chat ports.ChatCompleter, usage ports.UsageRecorder, logger *slog.Logger) *GenerateDiagramUseCase {
	return &GenerateDiagramUseCase{chat: chat, usage: usage, logger: logger}
}

// Generate produces a draft from one piece of source text. Failures are
// typed: the model call keeps its transport kind (temporary or permanent),
// an unparseable response is ErrMalformedOutput, and a structurally invalid
// draft is a DraftValidationError; no partially valid draft is ever returned.
func (uc *GenerateDiagramUseCase) Generate(ctx context.Context, content string, opts genopts.Options) (domain.DiagramDraft, error) {
	raw, err := uc.complete(ctx, opts, []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: diagramSystemPrompt},
		{Role: domain.RoleUser, Content: content},
	})
	if err != nil {
		return domain.DiagramDraft{}, fmt.Errorf("generate diagram: %w", err)
	}

	var draft domain.DiagramDraft
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &draft); err != nil {
		return domain.DiagramDraft{}, domain.WrapError(domain.ErrMalformedOutput, "parse generation response", err)
	}

	normalizeDraft(&draft)
	if err := validateDraft(draft); err != nil {
		return domain.DiagramDraft{}, err
	}

	uc.recordUsage(ctx, opts)
	return draft, nil
}

// RepairMarkup asks the model to fix broken markup and returns the corrected
// source. Usage is recorded under the caller's syntax_fix options.
func (uc *GenerateDiagramUseCase) RepairMarkup(ctx context.Context, markup string, opts genopts.Options) (string, error) {
	raw, err := uc.complete(ctx, opts, []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: syntaxFixSystemPrompt},
		{Role: domain.RoleUser, Content: markup},
	})
	if err != nil {
		return "", fmt.Errorf("repair markup: %w", err)
	}

	var fixed struct {
		Markup string `json:"markup"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &fixed); err != nil {
		return "", domain.WrapError(domain.ErrMalformedOutput, "parse repair response", err)
	}
	if strings.TrimSpace(fixed.Markup) == "" {
		return "", domain.WrapError(domain.ErrMalformedOutput, "parse repair response", fmt.Errorf("empty markup in response"))
	}

	uc.recordUsage(ctx, opts)
	return fixed.Markup, nil
}

func (uc *GenerateDiagramUseCase) complete(ctx context.Context, opts genopts.Options, messages []domain.ChatMessage) (string, error) {
	client := opts.Client()
	if client == nil {
		client = uc.chat
	}
	return client.Chat(ctx, messages)
}

// recordUsage is best-effort: a failed counter write is logged, never
// surfaced, because the user already received the generation result.
func (uc *GenerateDiagramUseCase) recordUsage(ctx context.Context, opts genopts.Options) {
	if !opts.TrackUsage() {
		return
	}
	if err := uc.usage.IncrementUsage(ctx, opts.UserID(), string(opts.Operation())); err != nil {
		uc.logger.Warn("usage increment failed",
			slog.String("user_id", opts.UserID()),
			slog.String("operation", string(opts.Operation())),
			slog.String("error", err.Error()),
		)
	}
}

// normalizeDraft fills the defaultable fields so validation only has to check
// what the model genuinely must provide.
func normalizeDraft(draft *domain.DiagramDraft) {
	draft.Title = strings.TrimSpace(draft.Title)
	draft.Markup = strings.TrimSpace(draft.Markup)
	if draft.Format == "" {
		draft.Format = domain.FormatMermaid
	}
	if draft.Tags == nil {
		draft.Tags = []string{}
	}
	if draft.Slug = slugify(firstNonEmpty(draft.Slug, draft.Title)); draft.Slug == "" {
		draft.Slug = "diagram-" + time.Now().UTC().Format("20060102-150405")
	}
}

func validateDraft(draft domain.DiagramDraft) error {
	var fields []domain.FieldError
	if draft.Title == "" {
		fields = append(fields, domain.FieldError{Field: "title", Message: "is required"})
	}
	if draft.Markup == "" {
		fields = append(fields, domain.FieldError{Field: "markup", Message: "is required"})
	}
	if draft.Format != domain.FormatMermaid {
		fields = append(fields, domain.FieldError{Field: "format", Message: fmt.Sprintf("unsupported format %q", draft.Format)})
	}
	if len(fields) > 0 {
		return &domain.DraftValidationError{Fields: fields}
	}
	return nil
}

// slugify lowercases and collapses anything that is not a letter or digit
// into single hyphens. Non-sluggable input yields "".
func slugify(s string) string {
	var sb strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			sb.WriteRune('-')
			lastHyphen = true
		}
	}
	return strings.Trim(sb.String(), "-")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
