package domain

// Event type tags carried on the progress bus. Consumers are live UIs;
// delivery is fire-and-forget and publication failure never fails a task.
const (
	EventDocumentProgress    = "document_progress"
	EventGenerationStarted   = "generation_started"
	EventGenerationCompleted = "generation_completed"
	EventGenerationFailed    = "generation_failed"
)

// GenerationRef identifies what a generation event is about: a document
// chunk, or an ad-hoc prompt.
type GenerationRef struct {
	DocumentID string `json:"document_id,omitempty"`
	ChunkIndex int    `json:"chunk_index,omitempty"`
	PromptID   string `json:"prompt_id,omitempty"`
}

type DocumentProgress struct {
	DocumentID string `json:"document_id"`
	Current    int    `json:"current"`
	Total      int    `json:"total"`
}

type GenerationEvent struct {
	Type      string        `json:"type"`
	Ref       GenerationRef `json:"ref"`
	DiagramID string        `json:"diagram_id,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}
