package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/voronkovm/diagramflow/internal/core/domain"
	"github.com/voronkovm/diagramflow/internal/core/genopts"
	"github.com/voronkovm/diagramflow/internal/core/ports"
)

const (
	defaultRelatedLimit = 10
	maxRelatedLimit     = 50
)

// DiagramServiceUseCase covers the synchronous diagram operations: ad-hoc
// generation from a prompt, markup repair, visibility changes and the
// related-diagrams lookup. The related index is optional; a nil index
// disables discovery without disabling the rest.
type DiagramServiceUseCase struct {
	diagrams  ports.DiagramRepository
	generator *GenerateDiagramUseCase
	queue     ports.TaskQueue
	events    ports.EventBus
	related   ports.RelatedIndex
	logger    *slog.Logger
}

func NewDiagramServiceUseCase(
	diagrams ports.DiagramRepository,
	generator *GenerateDiagramUseCase,
	queue ports.TaskQueue,
	events ports.EventBus,
	related ports.RelatedIndex,
	logger *slog.Logger,
) *DiagramServiceUseCase {
	return &DiagramServiceUseCase{
		diagrams:  diagrams,
		generator: generator,
		queue:     queue,
		events:    events,
		related:   related,
		logger:    logger,
	}
}

// GenerateFromPrompt produces and persists one diagram from a free-form
// prompt, synchronously. A requested public visibility enqueues the same
// moderation task the visibility-change path uses.
func (uc *DiagramServiceUseCase) GenerateFromPrompt(ctx context.Context, req domain.PromptRequest) (*domain.Diagram, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "generate from prompt", errors.New("prompt is required"))
	}

	opts, err := genopts.New(genopts.Params{
		Operation: genopts.OpDiagramGeneration,
		UserID:    req.OwnerID,
	})
	if err != nil {
		return nil, err
	}

	ref := domain.GenerationRef{PromptID: uuid.NewString()}
	uc.publishGeneration(ctx, domain.GenerationEvent{Type: domain.EventGenerationStarted, Ref: ref})

	draft, err := uc.generator.Generate(ctx, prompt, opts)
	if err != nil {
		uc.publishGeneration(ctx, domain.GenerationEvent{Type: domain.EventGenerationFailed, Ref: ref, Reason: err.Error()})
		return nil, err
	}

	d := diagramFromDraft(draft, opts.UserID())
	if req.Visibility != "" {
		d.Visibility = req.Visibility
	}
	if err := uc.diagrams.Save(ctx, d); err != nil {
		uc.publishGeneration(ctx, domain.GenerationEvent{Type: domain.EventGenerationFailed, Ref: ref, Reason: err.Error()})
		return nil, fmt.Errorf("save diagram: %w", err)
	}

	uc.publishGeneration(ctx, domain.GenerationEvent{Type: domain.EventGenerationCompleted, Ref: ref, DiagramID: d.ID})
	uc.indexDiagram(ctx, d)

	if d.Visibility == domain.VisibilityPublic {
		if err := uc.queue.EnqueueModeration(ctx, d.ID); err != nil {
			return nil, fmt.Errorf("enqueue moderation task: %w", err)
		}
	}
	return d, nil
}

// FixSyntax sends the diagram's markup through the repair operation and
// persists the corrected source.
func (uc *DiagramServiceUseCase) FixSyntax(ctx context.Context, diagramID, userID string) (*domain.Diagram, error) {
	d, err := uc.diagrams.GetByID(ctx, diagramID)
	if err != nil {
		return nil, fmt.Errorf("fetch diagram by id: %w", err)
	}

	opts, err := genopts.New(genopts.Params{
		Operation: genopts.OpSyntaxFix,
		UserID:    userID,
	})
	if err != nil {
		return nil, err
	}

	markup, err := uc.generator.RepairMarkup(ctx, d.Markup, opts)
	if err != nil {
		return nil, err
	}
	if err := uc.diagrams.UpdateMarkup(ctx, d.ID, markup); err != nil {
		return nil, fmt.Errorf("save repaired markup: %w", err)
	}

	updated, err := uc.diagrams.GetByID(ctx, d.ID)
	if err != nil {
		return nil, fmt.Errorf("reload diagram: %w", err)
	}
	return updated, nil
}

// SetVisibility updates visibility and, on a transition to public, enqueues
// the moderation task. The write lands before the enqueue so a failed
// enqueue can be retried with an identical request; the engine's no-op
// guards absorb the duplicate evaluation.
func (uc *DiagramServiceUseCase) SetVisibility(ctx context.Context, diagramID string, v domain.Visibility) (*domain.Diagram, error) {
	d, err := uc.diagrams.GetByID(ctx, diagramID)
	if err != nil {
		return nil, fmt.Errorf("fetch diagram by id: %w", err)
	}

	if err := uc.diagrams.UpdateVisibility(ctx, d.ID, v); err != nil {
		return nil, fmt.Errorf("update visibility: %w", err)
	}
	if v == domain.VisibilityPublic {
		if err := uc.queue.EnqueueModeration(ctx, d.ID); err != nil {
			return nil, fmt.Errorf("enqueue moderation task: %w", err)
		}
	}

	updated, err := uc.diagrams.GetByID(ctx, d.ID)
	if err != nil {
		return nil, fmt.Errorf("reload diagram: %w", err)
	}
	return updated, nil
}

func (uc *DiagramServiceUseCase) Related(ctx context.Context, diagramID string, limit int) ([]domain.RelatedDiagram, error) {
	if _, err := uc.diagrams.GetByID(ctx, diagramID); err != nil {
		return nil, fmt.Errorf("fetch diagram by id: %w", err)
	}
	if uc.related == nil {
		return []domain.RelatedDiagram{}, nil
	}
	if limit <= 0 || limit > maxRelatedLimit {
		limit = defaultRelatedLimit
	}
	hits, err := uc.related.Related(ctx, diagramID, limit)
	if err != nil {
		return nil, fmt.Errorf("query related diagrams: %w", err)
	}
	if hits == nil {
		hits = []domain.RelatedDiagram{}
	}
	return hits, nil
}

// indexDiagram is best-effort, like event publication: discovery lags rather
// than failing a user operation.
func (uc *DiagramServiceUseCase) indexDiagram(ctx context.Context, d *domain.Diagram) {
	if uc.related == nil {
		return
	}
	if err := uc.related.IndexDiagram(ctx, d); err != nil {
		uc.logger.Warn("related index update failed", slog.String("diagram_id", d.ID), slog.String("error", err.Error()))
	}
}

func (uc *DiagramServiceUseCase) publishGeneration(ctx context.Context, ev domain.GenerationEvent) {
	if err := uc.events.PublishGenerationEvent(ctx, ev); err != nil {
		uc.logger.Warn("generation event publish failed", slog.String("type", ev.Type), slog.String("error", err.Error()))
	}
}
