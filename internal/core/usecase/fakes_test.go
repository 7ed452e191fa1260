package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/voronkovm/diagramflow/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type appliedModeration struct {
	id     string
	status domain.ModerationStatus
	entry  domain.ModerationLogEntry
}

type diagramRepoFake struct {
	byID    map[string]*domain.Diagram
	saved   []*domain.Diagram
	applied []appliedModeration
	listed  []domain.Diagram
	log     []domain.ModerationLogEntry

	getErr   error
	saveErr  error
	applyErr error
}

func newDiagramRepoFake(diagrams ...*domain.Diagram) *diagramRepoFake {
	f := &diagramRepoFake{byID: map[string]*domain.Diagram{}}
	for _, d := range diagrams {
		f.byID[d.ID] = d
	}
	return f
}

func (f *diagramRepoFake) Save(_ context.Context, d *domain.Diagram) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, d)
	f.byID[d.ID] = d
	return nil
}

func (f *diagramRepoFake) GetByID(_ context.Context, id string) (*domain.Diagram, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	d, ok := f.byID[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDiagramNotFound, "fetch diagram", errors.New(id))
	}
	copyD := *d
	return &copyD, nil
}

func (f *diagramRepoFake) ListByDocument(_ context.Context, documentID string) ([]domain.Diagram, error) {
	var out []domain.Diagram
	for _, d := range f.saved {
		if d.DocumentID == documentID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *diagramRepoFake) ListPublicApproved(context.Context, int) ([]domain.Diagram, error) {
	return f.listed, nil
}

func (f *diagramRepoFake) ListByModerationStatus(context.Context, domain.ModerationStatus, int) ([]domain.Diagram, error) {
	return f.listed, nil
}

func (f *diagramRepoFake) UpdateVisibility(_ context.Context, id string, v domain.Visibility) error {
	d, ok := f.byID[id]
	if !ok {
		return domain.WrapError(domain.ErrDiagramNotFound, "update visibility", errors.New(id))
	}
	d.Visibility = v
	return nil
}

func (f *diagramRepoFake) UpdateMarkup(_ context.Context, id, markup string) error {
	d, ok := f.byID[id]
	if !ok {
		return domain.WrapError(domain.ErrDiagramNotFound, "update markup", errors.New(id))
	}
	d.Markup = markup
	return nil
}

func (f *diagramRepoFake) ApplyModeration(_ context.Context, id string, status domain.ModerationStatus, entry domain.ModerationLogEntry) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	d, ok := f.byID[id]
	if !ok {
		return domain.WrapError(domain.ErrDiagramNotFound, "apply moderation", errors.New(id))
	}
	d.ModerationStatus = status
	f.applied = append(f.applied, appliedModeration{id: id, status: status, entry: entry})
	f.log = append(f.log, entry)
	return nil
}

func (f *diagramRepoFake) ListModerationLog(_ context.Context, diagramID string) ([]domain.ModerationLogEntry, error) {
	var out []domain.ModerationLogEntry
	for _, e := range f.log {
		if e.DiagramID == diagramID {
			out = append(out, e)
		}
	}
	return out, nil
}

type taskQueueFake struct {
	ingestions  []string
	moderations []string
	enqueueErr  error
}

func (f *taskQueueFake) EnqueueIngestion(_ context.Context, documentID string) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.ingestions = append(f.ingestions, documentID)
	return nil
}

func (f *taskQueueFake) EnqueueModeration(_ context.Context, diagramID string) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.moderations = append(f.moderations, diagramID)
	return nil
}

type eventBusFake struct {
	progress []domain.DocumentProgress
	events   []domain.GenerationEvent
	pubErr   error
}

func (f *eventBusFake) PublishDocumentProgress(_ context.Context, ev domain.DocumentProgress) error {
	if f.pubErr != nil {
		return f.pubErr
	}
	f.progress = append(f.progress, ev)
	return nil
}

func (f *eventBusFake) PublishGenerationEvent(_ context.Context, ev domain.GenerationEvent) error {
	if f.pubErr != nil {
		return f.pubErr
	}
	f.events = append(f.events, ev)
	return nil
}

type chatFake struct {
	responses []string
	err       error
	calls     [][]domain.ChatMessage
}

func (f *chatFake) Chat(_ context.Context, messages []domain.ChatMessage) (string, error) {
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return "", f.err
	}
	i := len(f.calls) - 1
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	if len(f.responses) > 0 {
		return f.responses[len(f.responses)-1], nil
	}
	return "", nil
}

type usageFake struct {
	counts map[string]int
	err    error
}

func newUsageFake() *usageFake { return &usageFake{counts: map[string]int{}} }

func (f *usageFake) IncrementUsage(_ context.Context, userID, operation string) error {
	if f.err != nil {
		return f.err
	}
	f.counts[userID+"/"+operation]++
	return nil
}

type relatedFake struct {
	indexed []string
	hits    []domain.RelatedDiagram
	err     error
}

func (f *relatedFake) IndexDiagram(_ context.Context, d *domain.Diagram) error {
	if f.err != nil {
		return f.err
	}
	f.indexed = append(f.indexed, d.ID)
	return nil
}

func (f *relatedFake) Related(context.Context, string, int) ([]domain.RelatedDiagram, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}
