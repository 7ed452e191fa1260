package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/voronkovm/diagramflow/internal/core/domain"
)

type DiagramRepository struct {
	db *sql.DB
}

func NewDiagramRepository(db *sql.DB) *DiagramRepository {
	return &DiagramRepository{db: db}
}

const diagramColumns = `id, document_id, chunk_index, owner_id, title, slug, tags, markup, format, summary, notes, visibility, moderation_status, created_at, updated_at`

// Save inserts the diagram. Chunk diagrams upsert on (document_id,
// chunk_index): a re-delivered ingestion task overwrites the generated
// content but keeps the surviving row's id, visibility and moderation state,
// so an already-published diagram is not silently unpublished by a duplicate
// task. d.ID is rewritten to the surviving id.
func (r *DiagramRepository) Save(ctx context.Context, d *domain.Diagram) error {
	tagsJSON, err := json.Marshal(d.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	if d.DocumentID == "" {
		_, err = r.db.ExecContext(ctx, `
INSERT INTO diagrams (`+diagramColumns+`)
VALUES ($1,NULL,NULL,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`,
			d.ID, d.OwnerID, d.Title, d.Slug, tagsJSON, d.Markup, string(d.Format),
			d.Summary, d.Notes, string(d.Visibility), string(d.ModerationStatus), d.CreatedAt, d.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert diagram: %w", err)
		}
		return nil
	}

	row := r.db.QueryRowContext(ctx, `
INSERT INTO diagrams (`+diagramColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
ON CONFLICT (document_id, chunk_index) WHERE document_id IS NOT NULL
DO UPDATE SET
	title = EXCLUDED.title,
	slug = EXCLUDED.slug,
	tags = EXCLUDED.tags,
	markup = EXCLUDED.markup,
	format = EXCLUDED.format,
	summary = EXCLUDED.summary,
	notes = EXCLUDED.notes,
	updated_at = EXCLUDED.updated_at
RETURNING id
`,
		d.ID, d.DocumentID, d.ChunkIndex, d.OwnerID, d.Title, d.Slug, tagsJSON, d.Markup,
		string(d.Format), d.Summary, d.Notes, string(d.Visibility), string(d.ModerationStatus),
		d.CreatedAt, d.UpdatedAt,
	)
	if err := row.Scan(&d.ID); err != nil {
		return fmt.Errorf("upsert diagram: %w", err)
	}
	return nil
}

func (r *DiagramRepository) GetByID(ctx context.Context, id string) (*domain.Diagram, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+diagramColumns+`
FROM diagrams
WHERE id = $1
`, id)

	d, err := scanDiagram(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDiagramNotFound, "get diagram", err)
		}
		return nil, fmt.Errorf("scan diagram: %w", err)
	}
	return &d, nil
}

func (r *DiagramRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.Diagram, error) {
	return r.list(ctx, `
SELECT `+diagramColumns+`
FROM diagrams
WHERE document_id = $1
ORDER BY chunk_index ASC
`, documentID)
}

func (r *DiagramRepository) ListPublicApproved(ctx context.Context, limit int) ([]domain.Diagram, error) {
	return r.list(ctx, `
SELECT `+diagramColumns+`
FROM diagrams
WHERE visibility = 'public' AND moderation_status = 'approved'
ORDER BY created_at DESC
LIMIT $1
`, limit)
}

// ListByModerationStatus returns oldest-updated first so review-queue items
// do not starve behind fresh arrivals.
func (r *DiagramRepository) ListByModerationStatus(ctx context.Context, status domain.ModerationStatus, limit int) ([]domain.Diagram, error) {
	return r.list(ctx, `
SELECT `+diagramColumns+`
FROM diagrams
WHERE moderation_status = $1
ORDER BY updated_at ASC
LIMIT $2
`, string(status), limit)
}

func (r *DiagramRepository) UpdateVisibility(ctx context.Context, id string, v domain.Visibility) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE diagrams
SET visibility = $2, updated_at = $3
WHERE id = $1
`, id, string(v), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update diagram visibility: %w", err)
	}
	return requireDiagramRow(result, id, "update diagram visibility")
}

func (r *DiagramRepository) UpdateMarkup(ctx context.Context, id, markup string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE diagrams
SET markup = $2, updated_at = $3
WHERE id = $1
`, id, markup, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update diagram markup: %w", err)
	}
	return requireDiagramRow(result, id, "update diagram markup")
}

// ApplyModeration writes the status change and the audit entry in one
// transaction.
func (r *DiagramRepository) ApplyModeration(ctx context.Context, id string, status domain.ModerationStatus, entry domain.ModerationLogEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin moderation tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
UPDATE diagrams
SET moderation_status = $2, updated_at = $3
WHERE id = $1
`, id, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update moderation status: %w", err)
	}
	if err := requireDiagramRow(result, id, "update moderation status"); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO moderation_logs (id, diagram_id, decision, confidence, reason, action, reviewer, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, entry.ID, entry.DiagramID, entry.Decision, entry.Confidence, entry.Reason, entry.Action, entry.Reviewer, entry.CreatedAt); err != nil {
		return fmt.Errorf("insert moderation log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit moderation tx: %w", err)
	}
	return nil
}

func (r *DiagramRepository) ListModerationLog(ctx context.Context, diagramID string) ([]domain.ModerationLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, diagram_id, decision, confidence, reason, action, reviewer, created_at
FROM moderation_logs
WHERE diagram_id = $1
ORDER BY created_at ASC
`, diagramID)
	if err != nil {
		return nil, fmt.Errorf("list moderation log: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ModerationLogEntry, 0)
	for rows.Next() {
		var entry domain.ModerationLogEntry
		if err := rows.Scan(
			&entry.ID, &entry.DiagramID, &entry.Decision, &entry.Confidence,
			&entry.Reason, &entry.Action, &entry.Reviewer, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan moderation log entry: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate moderation log: %w", err)
	}
	return out, nil
}

func (r *DiagramRepository) list(ctx context.Context, query string, args ...any) ([]domain.Diagram, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list diagrams: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Diagram, 0)
	for rows.Next() {
		d, err := scanDiagram(rows)
		if err != nil {
			return nil, fmt.Errorf("scan diagram: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagrams: %w", err)
	}
	return out, nil
}

type diagramScanner interface {
	Scan(dest ...any) error
}

func scanDiagram(row diagramScanner) (domain.Diagram, error) {
	var d domain.Diagram
	var documentID sql.NullString
	var chunkIndex sql.NullInt64
	var tagsRaw []byte
	var format, visibility, moderation string

	err := row.Scan(
		&d.ID, &documentID, &chunkIndex, &d.OwnerID, &d.Title, &d.Slug, &tagsRaw, &d.Markup,
		&format, &d.Summary, &d.Notes, &visibility, &moderation, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return domain.Diagram{}, err
	}

	if err := json.Unmarshal(tagsRaw, &d.Tags); err != nil {
		return domain.Diagram{}, fmt.Errorf("unmarshal tags: %w", err)
	}
	d.DocumentID = documentID.String
	d.ChunkIndex = int(chunkIndex.Int64)
	d.Format = domain.DiagramFormat(format)
	d.Visibility = domain.Visibility(visibility)
	d.ModerationStatus = domain.ModerationStatus(moderation)
	return d, nil
}

func requireDiagramRow(result sql.Result, id, operation string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w: id=%s", operation, domain.ErrDiagramNotFound, id)
	}
	return nil
}
