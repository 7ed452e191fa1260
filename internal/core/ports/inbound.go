package ports

import (
	"context"
	"io"

	"github.com/voronkovm/diagramflow/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType, ownerID string, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for the asynchronous ingestion
// task. A nil return means the document reached a terminal state (or the run
// was an idempotent no-op); an error asks the scheduler to retry.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// DiagramModerator is the inbound contract for the asynchronous moderation
// task, with the same retry semantics as DocumentProcessor.
type DiagramModerator interface {
	ModerateByID(ctx context.Context, diagramID string) error
}

// DiagramService covers the synchronous diagram operations exposed to users.
type DiagramService interface {
	GenerateFromPrompt(ctx context.Context, req domain.PromptRequest) (*domain.Diagram, error)
	FixSyntax(ctx context.Context, diagramID, userID string) (*domain.Diagram, error)
	SetVisibility(ctx context.Context, diagramID string, v domain.Visibility) (*domain.Diagram, error)
	Related(ctx context.Context, diagramID string, limit int) ([]domain.RelatedDiagram, error)
}

// ModerationAdmin covers the human side of the moderation workflow.
type ModerationAdmin interface {
	Queue(ctx context.Context, limit int) ([]domain.Diagram, error)
	ApplyDecision(ctx context.Context, diagramID string, approve bool, reason, reviewer string) (*domain.Diagram, error)
	Log(ctx context.Context, diagramID string) ([]domain.ModerationLogEntry, error)
}

// DiagramLibrary covers the read-side queries the API serves.
type DiagramLibrary interface {
	Document(ctx context.Context, id string) (*domain.Document, error)
	DocumentDiagrams(ctx context.Context, documentID string) ([]domain.Diagram, error)
	Diagram(ctx context.Context, id string) (*domain.Diagram, error)
	PublicDiagrams(ctx context.Context, limit int) ([]domain.Diagram, error)
}
