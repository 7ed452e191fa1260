package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/voronkovm/diagramflow/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, owner_id, filename, mime_type, storage_path, extracted_text, status, error_message, completed_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		doc.ID, doc.OwnerID, doc.Filename, doc.MimeType, doc.StoragePath, doc.ExtractedText,
		string(doc.Status), doc.ErrorMessage, doc.CompletedAt, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT d.id, d.owner_id, d.filename, d.mime_type, d.storage_path, d.extracted_text, d.status, d.error_message, d.completed_at, d.created_at, d.updated_at,
	(SELECT COUNT(*) FROM diagrams g WHERE g.document_id = d.id) AS diagram_count
FROM documents d
WHERE d.id = $1
`, id)

	var doc domain.Document
	var status string

	err := row.Scan(
		&doc.ID, &doc.OwnerID, &doc.Filename, &doc.MimeType, &doc.StoragePath, &doc.ExtractedText,
		&status, &doc.ErrorMessage, &doc.CompletedAt, &doc.CreatedAt, &doc.UpdatedAt, &doc.DiagramCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", err)
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}

// UpdateStatus writes the new status and stamps completed_at whenever the
// status is terminal.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	now := time.Now().UTC()

	query := `
UPDATE documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`
	if status.IsTerminal() {
		query = `
UPDATE documents
SET status = $2, error_message = $3, updated_at = $4, completed_at = $4
WHERE id = $1
`
	}

	result, err := r.db.ExecContext(ctx, query, id, string(status), errMessage, now)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document status rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update document status: %w: id=%s", domain.ErrDocumentNotFound, id)
	}
	return nil
}

func (r *DocumentRepository) SaveExtractedText(ctx context.Context, id, text string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET extracted_text = $2, updated_at = $3
WHERE id = $1
`, id, text, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save extracted text: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save extracted text rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("save extracted text: %w: id=%s", domain.ErrDocumentNotFound, id)
	}
	return nil
}
