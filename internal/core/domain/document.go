package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusError      DocumentStatus = "error"
)

// IsTerminal reports whether the ingestion state machine may not leave status.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusReady || s == StatusError
}

type Document struct {
	ID            string         `json:"id"`
	OwnerID       string         `json:"owner_id"`
	Filename      string         `json:"filename"`
	MimeType      string         `json:"mime_type"`
	StoragePath   string         `json:"storage_path"`
	ExtractedText string         `json:"extracted_text,omitempty"`
	Status        DocumentStatus `json:"status"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	DiagramCount  int            `json:"diagram_count"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Chunk is one bounded slice of a document's extracted text, the unit of a
// single generation call. Chunks are 1-indexed and never persisted; the
// segmenter re-derives the same sequence for the same input.
type Chunk struct {
	Index int
	Text  string
}
