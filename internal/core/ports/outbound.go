package ports

import (
	"context"
	"io"

	"github.com/voronkovm/diagramflow/internal/core/domain"
)

// DocumentRepository persists and reads document state. UpdateStatus stamps
// completed_at whenever the new status is terminal.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveExtractedText(ctx context.Context, id, text string) error
}

// DiagramRepository persists diagrams and their append-only moderation log.
type DiagramRepository interface {
	// Save upserts on (document_id, chunk_index) so a re-delivered ingestion
	// task overwrites the chunk's diagram instead of duplicating it.
	Save(ctx context.Context, d *domain.Diagram) error
	GetByID(ctx context.Context, id string) (*domain.Diagram, error)
	ListByDocument(ctx context.Context, documentID string) ([]domain.Diagram, error)
	ListPublicApproved(ctx context.Context, limit int) ([]domain.Diagram, error)
	ListByModerationStatus(ctx context.Context, status domain.ModerationStatus, limit int) ([]domain.Diagram, error)
	UpdateVisibility(ctx context.Context, id string, v domain.Visibility) error
	UpdateMarkup(ctx context.Context, id, markup string) error
	// ApplyModeration writes the new status and appends the audit entry in a
	// single transaction: both land or neither does.
	ApplyModeration(ctx context.Context, id string, status domain.ModerationStatus, entry domain.ModerationLogEntry) error
	ListModerationLog(ctx context.Context, diagramID string) ([]domain.ModerationLogEntry, error)
}

// UsageRecorder counts billable generation calls per user and operation.
type UsageRecorder interface {
	IncrementUsage(ctx context.Context, userID, operation string) error
}

// ObjectStorage stores uploaded source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// TaskQueue hands work items to the external scheduler. Retry, backoff and
// the attempt limit live behind it; the core only enqueues.
type TaskQueue interface {
	EnqueueIngestion(ctx context.Context, documentID string) error
	EnqueueModeration(ctx context.Context, diagramID string) error
}

// EventBus broadcasts pipeline progress to live clients. Fire-and-forget:
// callers log publish errors and move on.
type EventBus interface {
	PublishDocumentProgress(ctx context.Context, ev domain.DocumentProgress) error
	PublishGenerationEvent(ctx context.Context, ev domain.GenerationEvent) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// Segmenter splits extracted text into ordered, bounded chunks. It is pure:
// the same text always yields the same chunk sequence.
type Segmenter interface {
	Segment(text string) []domain.Chunk
}

// ChatCompleter is the generative-text capability. The response is raw model
// text; the caller parses and validates it.
type ChatCompleter interface {
	Chat(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// ContentAnalyzer scores a diagram's content for moderation.
type ContentAnalyzer interface {
	Analyze(ctx context.Context, d *domain.Diagram) (domain.ModerationAnalysis, error)
}

// RelatedIndex maintains the optional diagram/tag graph used for discovery.
type RelatedIndex interface {
	IndexDiagram(ctx context.Context, d *domain.Diagram) error
	Related(ctx context.Context, diagramID string, limit int) ([]domain.RelatedDiagram, error)
}
