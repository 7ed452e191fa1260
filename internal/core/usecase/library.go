package usecase

import (
	"context"
	"fmt"

	"github.com/voronkovm/diagramflow/internal/core/domain"
	"github.com/voronkovm/diagramflow/internal/core/ports"
)

// LibraryUseCase is the read side: documents, their diagrams and the public
// gallery. The gallery shows only public diagrams that passed moderation;
// pending and manual_review stay hidden.
type LibraryUseCase struct {
	docs     ports.DocumentRepository
	diagrams ports.DiagramRepository
}

func NewLibraryUseCase(docs ports.DocumentRepository, diagrams ports.DiagramRepository) *LibraryUseCase {
	return &LibraryUseCase{docs: docs, diagrams: diagrams}
}

func (uc *LibraryUseCase) Document(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := uc.docs.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

func (uc *LibraryUseCase) DocumentDiagrams(ctx context.Context, documentID string) ([]domain.Diagram, error) {
	if _, err := uc.docs.GetByID(ctx, documentID); err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	items, err := uc.diagrams.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list document diagrams: %w", err)
	}
	if items == nil {
		items = []domain.Diagram{}
	}
	return items, nil
}

func (uc *LibraryUseCase) Diagram(ctx context.Context, id string) (*domain.Diagram, error) {
	d, err := uc.diagrams.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch diagram by id: %w", err)
	}
	return d, nil
}

func (uc *LibraryUseCase) PublicDiagrams(ctx context.Context, limit int) ([]domain.Diagram, error) {
	if limit <= 0 || limit > maxQueueLimit {
		limit = defaultQueueLimit
	}
	items, err := uc.diagrams.ListPublicApproved(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list public diagrams: %w", err)
	}
	if items == nil {
		items = []domain.Diagram{}
	}
	return items, nil
}
