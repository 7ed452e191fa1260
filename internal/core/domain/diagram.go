package domain

import "time"

type Visibility string

const (
	VisibilityPrivate  Visibility = "private"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPublic   Visibility = "public"
)

func ParseVisibility(raw string) (Visibility, bool) {
	switch Visibility(raw) {
	case VisibilityPrivate, VisibilityUnlisted, VisibilityPublic:
		return Visibility(raw), true
	default:
		return "", false
	}
}

type DiagramFormat string

const FormatMermaid DiagramFormat = "mermaid"

type Diagram struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id,omitempty"`
	// ChunkIndex is the 1-based chunk the diagram was generated from; zero for
	// diagrams created ad hoc from a prompt.
	ChunkIndex       int              `json:"chunk_index,omitempty"`
	OwnerID          string           `json:"owner_id"`
	Title            string           `json:"title"`
	Slug             string           `json:"slug"`
	Tags             []string         `json:"tags"`
	Markup           string           `json:"markup"`
	Format           DiagramFormat    `json:"format"`
	Summary          string           `json:"summary,omitempty"`
	Notes            string           `json:"notes,omitempty"`
	Visibility       Visibility       `json:"visibility"`
	ModerationStatus ModerationStatus `json:"moderation_status"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// RelatedDiagram is a discovery hit from the tag graph.
type RelatedDiagram struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Slug       string `json:"slug"`
	SharedTags int    `json:"shared_tags"`
}

// PromptRequest asks for one ad-hoc diagram from a free-form prompt.
type PromptRequest struct {
	Prompt     string     `json:"prompt"`
	OwnerID    string     `json:"user_id"`
	Visibility Visibility `json:"visibility,omitempty"`
}

// DiagramDraft is the unsaved structured output of one generation call.
type DiagramDraft struct {
	Title   string        `json:"title"`
	Slug    string        `json:"slug"`
	Tags    []string      `json:"tags"`
	Markup  string        `json:"markup"`
	Format  DiagramFormat `json:"format"`
	Summary string        `json:"summary"`
	Notes   string        `json:"notes"`
}
