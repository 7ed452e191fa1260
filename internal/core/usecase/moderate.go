package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voronkovm/diagramflow/internal/core/domain"
	"github.com/voronkovm/diagramflow/internal/core/ports"
)

// ModerationPolicy is the engine's immutable configuration. A policy change
// means constructing a new engine, not mutating a running one.
type ModerationPolicy struct {
	// AutoApproveThreshold is the minimum confidence at which an approve
	// decision is accepted without human review.
	AutoApproveThreshold float64
	// Enabled gates the analysis call. When false every evaluated diagram
	// goes to the manual queue instead of being scored.
	Enabled bool
}

// ModerateDiagramUseCase evaluates one public diagram:
// pending -> {approved, rejected, manual_review}. The engine never
// re-evaluates a diagram that reached approved or rejected; manual_review
// stays open for an administrator.
type ModerateDiagramUseCase struct {
	diagrams ports.DiagramRepository
	analyzer ports.ContentAnalyzer
	policy   ModerationPolicy
	logger   *slog.Logger
}

func NewModerateDiagramUseCase(
	diagrams ports.DiagramRepository,
	analyzer ports.ContentAnalyzer,
	policy ModerationPolicy,
	logger *slog.Logger,
) *ModerateDiagramUseCase {
	return &ModerateDiagramUseCase{
		diagrams: diagrams,
		analyzer: analyzer,
		policy:   policy,
		logger:   logger,
	}
}

// ModerateByID runs one evaluation. Returning nil means the task is settled;
// only transient failures come back as errors, asking the scheduler to
// redeliver. Every decision writes the new status and exactly one audit
// entry atomically.
func (uc *ModerateDiagramUseCase) ModerateByID(ctx context.Context, diagramID string) error {
	d, err := uc.diagrams.GetByID(ctx, diagramID)
	if err != nil {
		if domain.IsKind(err, domain.ErrDiagramNotFound) {
			uc.logger.Warn("diagram gone before moderation, skipping", slog.String("diagram_id", diagramID))
			return nil
		}
		return fmt.Errorf("fetch diagram by id: %w", err)
	}

	if d.ModerationStatus.IsDecided() {
		uc.logger.Info("diagram already moderated, skipping",
			slog.String("diagram_id", d.ID),
			slog.String("status", string(d.ModerationStatus)),
		)
		return nil
	}
	if d.Visibility != domain.VisibilityPublic {
		uc.logger.Info("diagram not public, moderation not applicable", slog.String("diagram_id", d.ID))
		return nil
	}

	if !uc.policy.Enabled {
		return uc.apply(ctx, d, domain.ModerationManualReview, domain.ModerationLogEntry{
			Decision: string(domain.DecisionManualReview),
			Reason:   "automated moderation disabled",
			Action:   domain.ActionAIManualReview,
		})
	}

	analysis, err := uc.analyzer.Analyze(ctx, d)
	if err != nil {
		// Transient failures go back to the scheduler untouched so an
		// infrastructure hiccup cannot penalize the diagram. Anything else
		// still has to yield a human-actionable outcome.
		if domain.IsKind(err, domain.ErrTemporary) {
			return fmt.Errorf("analyze diagram content: %w", err)
		}
		return uc.apply(ctx, d, domain.ModerationManualReview, domain.ModerationLogEntry{
			Decision: string(domain.DecisionManualReview),
			Reason:   err.Error(),
			Action:   domain.ActionAIError,
		})
	}

	status, action, err := uc.mapDecision(analysis)
	if err != nil {
		return uc.apply(ctx, d, domain.ModerationManualReview, domain.ModerationLogEntry{
			Decision: string(domain.DecisionManualReview),
			Reason:   err.Error(),
			Action:   domain.ActionAIError,
		})
	}

	return uc.apply(ctx, d, status, domain.ModerationLogEntry{
		Decision:   string(analysis.Decision),
		Confidence: analysis.Confidence,
		Reason:     analysis.Reason,
		Action:     action,
	})
}

func (uc *ModerateDiagramUseCase) mapDecision(a domain.ModerationAnalysis) (domain.ModerationStatus, string, error) {
	switch a.Decision {
	case domain.DecisionApprove:
		if a.Confidence >= uc.policy.AutoApproveThreshold {
			return domain.ModerationApproved, domain.ActionAIApprove, nil
		}
		return domain.ModerationManualReview, domain.ActionAIManualReview, nil
	case domain.DecisionReject:
		return domain.ModerationRejected, domain.ActionAIReject, nil
	case domain.DecisionManualReview:
		return domain.ModerationManualReview, domain.ActionAIManualReview, nil
	default:
		return "", "", fmt.Errorf("unexpected analysis decision %q", a.Decision)
	}
}

func (uc *ModerateDiagramUseCase) apply(ctx context.Context, d *domain.Diagram, status domain.ModerationStatus, entry domain.ModerationLogEntry) error {
	entry.ID = uuid.NewString()
	entry.DiagramID = d.ID
	entry.CreatedAt = time.Now().UTC()

	if err := uc.diagrams.ApplyModeration(ctx, d.ID, status, entry); err != nil {
		return fmt.Errorf("apply moderation status=%s: %w", status, err)
	}

	uc.logger.Info("moderation applied",
		slog.String("diagram_id", d.ID),
		slog.String("status", string(status)),
		slog.String("action", entry.Action),
		slog.Float64("confidence", entry.Confidence),
	)
	return nil
}
