package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voronkovm/diagramflow/internal/core/domain"
	"github.com/voronkovm/diagramflow/internal/core/ports"
)

const (
	defaultQueueLimit = 50
	maxQueueLimit     = 200
)

// ModerationAdminUseCase is the human side of moderation: listing the
// manual-review queue and recording reviewer decisions.
type ModerationAdminUseCase struct {
	diagrams ports.DiagramRepository
	logger   *slog.Logger
}

func NewModerationAdminUseCase(diagrams ports.DiagramRepository, logger *slog.Logger) *ModerationAdminUseCase {
	return &ModerationAdminUseCase{diagrams: diagrams, logger: logger}
}

func (uc *ModerationAdminUseCase) Queue(ctx context.Context, limit int) ([]domain.Diagram, error) {
	if limit <= 0 || limit > maxQueueLimit {
		limit = defaultQueueLimit
	}
	items, err := uc.diagrams.ListByModerationStatus(ctx, domain.ModerationManualReview, limit)
	if err != nil {
		return nil, fmt.Errorf("list moderation queue: %w", err)
	}
	if items == nil {
		items = []domain.Diagram{}
	}
	return items, nil
}

// ApplyDecision records a reviewer verdict. Allowed while the diagram is in
// manual_review or still pending; a decided diagram is final for the API and
// rejects a second verdict.
func (uc *ModerationAdminUseCase) ApplyDecision(ctx context.Context, diagramID string, approve bool, reason, reviewer string) (*domain.Diagram, error) {
	reviewer = strings.TrimSpace(reviewer)
	if reviewer == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "apply manual decision", errors.New("reviewer is required"))
	}

	d, err := uc.diagrams.GetByID(ctx, diagramID)
	if err != nil {
		return nil, fmt.Errorf("fetch diagram by id: %w", err)
	}
	if d.ModerationStatus.IsDecided() {
		return nil, domain.WrapError(domain.ErrInvalidInput, "apply manual decision",
			fmt.Errorf("diagram already %s", d.ModerationStatus))
	}

	status := domain.ModerationRejected
	decision := domain.DecisionReject
	action := domain.ActionManualReject
	if approve {
		status = domain.ModerationApproved
		decision = domain.DecisionApprove
		action = domain.ActionManualApprove
	}

	entry := domain.ModerationLogEntry{
		ID:         uuid.NewString(),
		DiagramID:  d.ID,
		Decision:   string(decision),
		Confidence: 1,
		Reason:     reason,
		Action:     action,
		Reviewer:   reviewer,
		CreatedAt:  time.Now().UTC(),
	}
	if err := uc.diagrams.ApplyModeration(ctx, d.ID, status, entry); err != nil {
		return nil, fmt.Errorf("apply manual decision status=%s: %w", status, err)
	}

	uc.logger.Info("manual moderation decision",
		slog.String("diagram_id", d.ID),
		slog.String("status", string(status)),
		slog.String("reviewer", reviewer),
	)

	updated, err := uc.diagrams.GetByID(ctx, d.ID)
	if err != nil {
		return nil, fmt.Errorf("reload diagram: %w", err)
	}
	return updated, nil
}

// Log returns the diagram's audit trail, oldest first.
func (uc *ModerationAdminUseCase) Log(ctx context.Context, diagramID string) ([]domain.ModerationLogEntry, error) {
	if _, err := uc.diagrams.GetByID(ctx, diagramID); err != nil {
		return nil, fmt.Errorf("fetch diagram by id: %w", err)
	}
	entries, err := uc.diagrams.ListModerationLog(ctx, diagramID)
	if err != nil {
		return nil, fmt.Errorf("list moderation log: %w", err)
	}
	if entries == nil {
		entries = []domain.ModerationLogEntry{}
	}
	return entries, nil
}
