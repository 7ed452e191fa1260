package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/voronkovm/diagramflow/internal/core/domain"
)

func newDiagramRepoWithMock(t *testing.T) (*DiagramRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DiagramRepository{db: db}, mock, func() { _ = db.Close() }
}

func chunkDiagram() *domain.Diagram {
	now := time.Now().UTC()
	return &domain.Diagram{
		ID:               "new-id",
		DocumentID:       "doc-1",
		ChunkIndex:       2,
		OwnerID:          "user-1",
		Title:            "Order Flow",
		Slug:             "order-flow",
		Tags:             []string{"orders"},
		Markup:           "flowchart TD\n  A-->B",
		Format:           domain.FormatMermaid,
		Visibility:       domain.VisibilityPrivate,
		ModerationStatus: domain.ModerationPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestSaveChunkDiagramUpsertsAndAdoptsSurvivingID(t *testing.T) {
	repo, mock, done := newDiagramRepoWithMock(t)
	defer done()

	mock.ExpectQuery(`(?s)INSERT INTO diagrams.*ON CONFLICT \(document_id, chunk_index\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("surviving-id"))

	d := chunkDiagram()
	if err := repo.Save(context.Background(), d); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if d.ID != "surviving-id" {
		t.Fatalf("id = %q, want the surviving row id", d.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveAdHocDiagramUsesPlainInsert(t *testing.T) {
	repo, mock, done := newDiagramRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO diagrams").
		WillReturnResult(sqlmock.NewResult(0, 1))

	d := chunkDiagram()
	d.DocumentID = ""
	d.ChunkIndex = 0
	if err := repo.Save(context.Background(), d); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if d.ID != "new-id" {
		t.Fatalf("ad-hoc insert must keep its id, got %q", d.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDiagramGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newDiagramRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, document_id, chunk_index").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDiagramNotFound) {
		t.Fatalf("expected ErrDiagramNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDiagramGetByIDScansNullDocumentReference(t *testing.T) {
	repo, mock, done := newDiagramRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "document_id", "chunk_index", "owner_id", "title", "slug", "tags", "markup",
		"format", "summary", "notes", "visibility", "moderation_status", "created_at", "updated_at",
	}).AddRow("dia-1", nil, nil, "user-1", "Ad hoc", "ad-hoc", []byte(`["quick"]`), "flowchart TD",
		"mermaid", "", "", "public", "approved", now, now)

	mock.ExpectQuery("SELECT id, document_id, chunk_index").
		WithArgs("dia-1").
		WillReturnRows(rows)

	d, err := repo.GetByID(context.Background(), "dia-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if d.DocumentID != "" || d.ChunkIndex != 0 {
		t.Fatalf("ad-hoc diagram must scan empty document reference, got %q/%d", d.DocumentID, d.ChunkIndex)
	}
	if len(d.Tags) != 1 || d.Tags[0] != "quick" {
		t.Fatalf("tags = %v", d.Tags)
	}
	if d.Visibility != domain.VisibilityPublic || d.ModerationStatus != domain.ModerationApproved {
		t.Fatalf("unexpected state: %s/%s", d.Visibility, d.ModerationStatus)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplyModerationWritesStatusAndAuditTogether(t *testing.T) {
	repo, mock, done := newDiagramRepoWithMock(t)
	defer done()

	entry := domain.ModerationLogEntry{
		ID:         "log-1",
		DiagramID:  "dia-1",
		Decision:   string(domain.DecisionApprove),
		Confidence: 0.93,
		Reason:     "clean",
		Action:     domain.ActionAIApprove,
		CreatedAt:  time.Now().UTC(),
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE diagrams").
		WithArgs("dia-1", string(domain.ModerationApproved), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO moderation_logs").
		WithArgs(entry.ID, entry.DiagramID, entry.Decision, entry.Confidence, entry.Reason, entry.Action, entry.Reviewer, entry.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.ApplyModeration(context.Background(), "dia-1", domain.ModerationApproved, entry); err != nil {
		t.Fatalf("ApplyModeration() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplyModerationRollsBackWhenAuditInsertFails(t *testing.T) {
	repo, mock, done := newDiagramRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE diagrams").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO moderation_logs").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.ApplyModeration(context.Background(), "dia-1", domain.ModerationApproved, domain.ModerationLogEntry{ID: "log-1"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplyModerationReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newDiagramRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE diagrams").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.ApplyModeration(context.Background(), "missing", domain.ModerationApproved, domain.ModerationLogEntry{ID: "log-1"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDiagramNotFound) {
		t.Fatalf("expected ErrDiagramNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateVisibilityReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newDiagramRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE diagrams").
		WithArgs("missing", string(domain.VisibilityPublic), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateVisibility(context.Background(), "missing", domain.VisibilityPublic)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDiagramNotFound) {
		t.Fatalf("expected ErrDiagramNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListModerationLogScansEntriesInOrder(t *testing.T) {
	repo, mock, done := newDiagramRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "diagram_id", "decision", "confidence", "reason", "action", "reviewer", "created_at"}).
		AddRow("log-1", "dia-1", "approve", 0.4, "low confidence", "ai_manual_review", "", now.Add(-time.Hour)).
		AddRow("log-2", "dia-1", "approve", 1.0, "human override", "manual_approve", "admin", now)

	mock.ExpectQuery("SELECT id, diagram_id, decision").
		WithArgs("dia-1").
		WillReturnRows(rows)

	entries, err := repo.ListModerationLog(context.Background(), "dia-1")
	if err != nil {
		t.Fatalf("ListModerationLog() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[1].Reviewer != "admin" || entries[1].Action != domain.ActionManualApprove {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
