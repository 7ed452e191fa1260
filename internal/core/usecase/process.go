package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voronkovm/diagramflow/internal/core/domain"
	"github.com/voronkovm/diagramflow/internal/core/genopts"
	"github.com/voronkovm/diagramflow/internal/core/ports"
)

// ProcessDocumentUseCase drives a document through
// uploaded -> processing -> {ready, error}. Terminal states are absorbing:
// a re-delivered task for a settled document is a no-op success.
type ProcessDocumentUseCase struct {
	docs      ports.DocumentRepository
	diagrams  ports.DiagramRepository
	extractor ports.TextExtractor
	segmenter ports.Segmenter
	generator *GenerateDiagramUseCase
	events    ports.EventBus
	related   ports.RelatedIndex
	logger    *slog.Logger
}

func NewProcessDocumentUseCase(
	docs ports.DocumentRepository,
	diagrams ports.DiagramRepository,
	extractor ports.TextExtractor,
	segmenter ports.Segmenter,
	generator *GenerateDiagramUseCase,
	events ports.EventBus,
	related ports.RelatedIndex,
	logger *slog.Logger,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		docs:      docs,
		diagrams:  diagrams,
		extractor: extractor,
		segmenter: segmenter,
		generator: generator,
		events:    events,
		related:   related,
		logger:    logger,
	}
}

// ProcessByID runs the whole pipeline under a fault barrier: any error or
// panic between the processing transition and completion forces the document
// into status error, so the state machine never exits non-terminal. The
// barrier re-reads the document by id instead of trusting in-scope state.
func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) (err error) {
	doc, err := uc.loadDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.Status.IsTerminal() {
		uc.logger.Info("document already settled, skipping",
			slog.String("document_id", documentID),
			slog.String("status", string(doc.Status)),
		)
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = uc.forceError(ctx, documentID, fmt.Errorf("panic: %v", r))
		} else if err != nil {
			err = uc.forceError(ctx, documentID, err)
		}
	}()

	return uc.processPipeline(ctx, doc)
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, doc *domain.Document) error {
	if err := uc.docs.UpdateStatus(ctx, doc.ID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	text, err := uc.extractText(ctx, doc)
	if err != nil {
		return err
	}
	if err := uc.docs.SaveExtractedText(ctx, doc.ID, text); err != nil {
		return fmt.Errorf("save extracted text: %w", err)
	}

	chunks := uc.segmenter.Segment(text)
	if len(chunks) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "segment document", errors.New("segmentation produced zero chunks"))
	}

	generated := uc.generateChunks(ctx, doc, chunks)

	if err := uc.docs.UpdateStatus(ctx, doc.ID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}

	uc.logger.Info("document processed",
		slog.String("document_id", doc.ID),
		slog.Int("chunks", len(chunks)),
		slog.Int("diagrams", generated),
	)
	return nil
}

// generateChunks runs the generation stage once per chunk. A chunk failure is
// logged and counted, never aborts its siblings: a partial diagram set is an
// accepted outcome and the document still becomes ready.
func (uc *ProcessDocumentUseCase) generateChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) int {
	opts := genopts.MustNew(genopts.Params{
		Operation: genopts.OpDiagramGeneration,
		UserID:    doc.OwnerID,
	})

	generated := 0
	for _, chunk := range chunks {
		ref := domain.GenerationRef{DocumentID: doc.ID, ChunkIndex: chunk.Index}

		uc.publishProgress(ctx, domain.DocumentProgress{
			DocumentID: doc.ID,
			Current:    chunk.Index,
			Total:      len(chunks),
		})
		uc.publishGeneration(ctx, domain.GenerationEvent{Type: domain.EventGenerationStarted, Ref: ref})

		diagram, err := uc.generateChunk(ctx, doc, chunk, opts)
		if err != nil {
			uc.logger.Warn("chunk generation failed",
				slog.String("document_id", doc.ID),
				slog.Int("chunk_index", chunk.Index),
				slog.String("error", err.Error()),
			)
			uc.publishGeneration(ctx, domain.GenerationEvent{Type: domain.EventGenerationFailed, Ref: ref, Reason: err.Error()})
			continue
		}

		generated++
		uc.publishGeneration(ctx, domain.GenerationEvent{Type: domain.EventGenerationCompleted, Ref: ref, DiagramID: diagram.ID})
	}
	return generated
}

func (uc *ProcessDocumentUseCase) generateChunk(ctx context.Context, doc *domain.Document, chunk domain.Chunk, opts genopts.Options) (*domain.Diagram, error) {
	draft, err := uc.generator.Generate(ctx, chunk.Text, opts)
	if err != nil {
		return nil, err
	}

	diagram := diagramFromDraft(draft, doc.OwnerID)
	diagram.DocumentID = doc.ID
	diagram.ChunkIndex = chunk.Index
	if err := uc.diagrams.Save(ctx, diagram); err != nil {
		return nil, fmt.Errorf("save diagram: %w", err)
	}
	uc.indexDiagram(ctx, diagram)
	return diagram, nil
}

func (uc *ProcessDocumentUseCase) indexDiagram(ctx context.Context, d *domain.Diagram) {
	if uc.related == nil {
		return
	}
	if err := uc.related.IndexDiagram(ctx, d); err != nil {
		uc.logger.Warn("related index update failed", slog.String("diagram_id", d.ID), slog.String("error", err.Error()))
	}
}

func (uc *ProcessDocumentUseCase) loadDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

func (uc *ProcessDocumentUseCase) extractText(ctx context.Context, doc *domain.Document) (string, error) {
	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return "", domain.WrapError(domain.ErrExtraction, "extract text", err)
	}
	if text == "" {
		return "", domain.WrapError(domain.ErrExtraction, "extract text", errors.New("empty extracted text"))
	}
	return text, nil
}

// forceError settles the document in status error with the fault's message.
// The write uses an uncancelable context so a shutdown mid-task cannot strand
// the document in processing. Returns nil once the document is terminal; a
// failed write surfaces both errors so the scheduler retries.
func (uc *ProcessDocumentUseCase) forceError(ctx context.Context, documentID string, cause error) error {
	ctx = context.WithoutCancel(ctx)

	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("%w; fault barrier fetch document: %v", cause, err)
	}
	if doc.Status.IsTerminal() {
		return nil
	}
	if err := uc.docs.UpdateStatus(ctx, documentID, domain.StatusError, cause.Error()); err != nil {
		return fmt.Errorf("%w; fault barrier set status=error: %v", cause, err)
	}

	uc.logger.Error("document processing failed",
		slog.String("document_id", documentID),
		slog.String("error", cause.Error()),
	)
	return nil
}

// Event publication is fire-and-forget: the bus carries live UI progress and
// must never fail a task.
func (uc *ProcessDocumentUseCase) publishProgress(ctx context.Context, ev domain.DocumentProgress) {
	if err := uc.events.PublishDocumentProgress(ctx, ev); err != nil {
		uc.logger.Warn("progress publish failed", slog.String("document_id", ev.DocumentID), slog.String("error", err.Error()))
	}
}

func (uc *ProcessDocumentUseCase) publishGeneration(ctx context.Context, ev domain.GenerationEvent) {
	if err := uc.events.PublishGenerationEvent(ctx, ev); err != nil {
		uc.logger.Warn("generation event publish failed", slog.String("type", ev.Type), slog.String("error", err.Error()))
	}
}

// diagramFromDraft turns a validated draft into a persistable diagram. New
// diagrams start private and pending; moderation only runs once a diagram is
// made public.
func diagramFromDraft(draft domain.DiagramDraft, ownerID string) *domain.Diagram {
	now := time.Now().UTC()
	return &domain.Diagram{
		ID:               uuid.NewString(),
		OwnerID:          ownerID,
		Title:            draft.Title,
		Slug:             draft.Slug,
		Tags:             draft.Tags,
		Markup:           draft.Markup,
		Format:           draft.Format,
		Summary:          draft.Summary,
		Notes:            draft.Notes,
		Visibility:       domain.VisibilityPrivate,
		ModerationStatus: domain.ModerationPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
