package httpadapter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/voronkovm/diagramflow/internal/config"
	"github.com/voronkovm/diagramflow/internal/core/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type uploadCall struct {
	filename string
	mimeType string
	ownerID  string
	content  []byte
}

type ingestFake struct {
	calls []uploadCall
	doc   *domain.Document
	err   error
}

func (f *ingestFake) Upload(_ context.Context, filename, mimeType, ownerID string, body io.Reader) (*domain.Document, error) {
	content, _ := io.ReadAll(body)
	f.calls = append(f.calls, uploadCall{filename: filename, mimeType: mimeType, ownerID: ownerID, content: content})
	if f.err != nil {
		return nil, f.err
	}
	if f.doc != nil {
		return f.doc, nil
	}
	return &domain.Document{ID: "doc-1", OwnerID: ownerID, Filename: filename, Status: domain.StatusUploaded}, nil
}

type diagramServiceFake struct {
	generated  *domain.Diagram
	generateIn *domain.PromptRequest
	fixed      *domain.Diagram
	visibility domain.Visibility
	related    []domain.RelatedDiagram
	err        error
}

func (f *diagramServiceFake) GenerateFromPrompt(_ context.Context, req domain.PromptRequest) (*domain.Diagram, error) {
	f.generateIn = &req
	if f.err != nil {
		return nil, f.err
	}
	if f.generated != nil {
		return f.generated, nil
	}
	return &domain.Diagram{ID: "dia-1", OwnerID: req.OwnerID, Title: "Generated"}, nil
}

func (f *diagramServiceFake) FixSyntax(_ context.Context, diagramID, _ string) (*domain.Diagram, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.fixed != nil {
		return f.fixed, nil
	}
	return &domain.Diagram{ID: diagramID, Markup: "graph TD;"}, nil
}

func (f *diagramServiceFake) SetVisibility(_ context.Context, diagramID string, v domain.Visibility) (*domain.Diagram, error) {
	f.visibility = v
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Diagram{ID: diagramID, Visibility: v}, nil
}

func (f *diagramServiceFake) Related(_ context.Context, _ string, _ int) ([]domain.RelatedDiagram, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.related, nil
}

type libraryFake struct {
	documents map[string]*domain.Document
	diagrams  map[string]*domain.Diagram
	byDoc     []domain.Diagram
	public    []domain.Diagram
	lastLimit int
}

func newLibraryFake() *libraryFake {
	return &libraryFake{
		documents: map[string]*domain.Document{},
		diagrams:  map[string]*domain.Diagram{},
	}
}

func (f *libraryFake) Document(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := f.documents[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "fetch document", errors.New(id))
	}
	return doc, nil
}

func (f *libraryFake) DocumentDiagrams(_ context.Context, documentID string) ([]domain.Diagram, error) {
	if _, ok := f.documents[documentID]; !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "fetch document", errors.New(documentID))
	}
	return f.byDoc, nil
}

func (f *libraryFake) Diagram(_ context.Context, id string) (*domain.Diagram, error) {
	d, ok := f.diagrams[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDiagramNotFound, "fetch diagram", errors.New(id))
	}
	return d, nil
}

func (f *libraryFake) PublicDiagrams(_ context.Context, limit int) ([]domain.Diagram, error) {
	f.lastLimit = limit
	return f.public, nil
}

type moderationFake struct {
	queue    []domain.Diagram
	decided  *domain.Diagram
	log      []domain.ModerationLogEntry
	approve  bool
	reviewer string
	reason   string
	err      error
}

func (f *moderationFake) Queue(_ context.Context, _ int) ([]domain.Diagram, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.queue, nil
}

func (f *moderationFake) ApplyDecision(_ context.Context, diagramID string, approve bool, reason, reviewer string) (*domain.Diagram, error) {
	f.approve = approve
	f.reason = reason
	f.reviewer = reviewer
	if f.err != nil {
		return nil, f.err
	}
	if f.decided != nil {
		return f.decided, nil
	}
	return &domain.Diagram{ID: diagramID}, nil
}

func (f *moderationFake) Log(_ context.Context, _ string) ([]domain.ModerationLogEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.log, nil
}

type streamFake struct {
	mu           sync.Mutex
	subscribed   []string
	unsubscribed int
	callback     func(data []byte)
	err          error
}

func (f *streamFake) SubscribeDocument(documentID string, fn func(data []byte)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.subscribed = append(f.subscribed, documentID)
	f.callback = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unsubscribed++
	}, nil
}

func (f *streamFake) push(data []byte) {
	f.mu.Lock()
	cb := f.callback
	f.mu.Unlock()
	if cb != nil {
		cb(data)
	}
}

func (f *streamFake) subscribedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribed)
}

func (f *streamFake) unsubscribedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unsubscribed
}

type routerFakes struct {
	ingest     *ingestFake
	diagrams   *diagramServiceFake
	library    *libraryFake
	moderation *moderationFake
	stream     *streamFake
}

func newTestRouter(t *testing.T, cfg config.Config) (*Router, *routerFakes) {
	t.Helper()

	fakes := &routerFakes{
		ingest:     &ingestFake{},
		diagrams:   &diagramServiceFake{},
		library:    newLibraryFake(),
		moderation: &moderationFake{},
		stream:     &streamFake{},
	}
	rt, err := NewRouter(cfg, testLogger(), fakes.ingest, fakes.diagrams, fakes.library, fakes.moderation, fakes.stream, nil)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return rt, fakes
}
