// Package httpadapter exposes the pipeline over a JSON HTTP API: document
// upload and reads, ad-hoc diagram generation, visibility and moderation
// management, and a server-sent-events bridge for live progress.
package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/oapi-codegen/runtime"

	"github.com/voronkovm/diagramflow/internal/config"
	"github.com/voronkovm/diagramflow/internal/core/domain"
	"github.com/voronkovm/diagramflow/internal/core/ports"
	"github.com/voronkovm/diagramflow/internal/observability/metrics"
)

const serviceName = "api"

// ProgressStream is the subscriber side of the event bus, consumed by the
// server-sent-events bridge. The callback runs on the bus delivery goroutine
// and must not block.
type ProgressStream interface {
	SubscribeDocument(documentID string, fn func(data []byte)) (func(), error)
}

type Router struct {
	cfg        config.Config
	logger     *slog.Logger
	ingest     ports.DocumentIngestor
	diagrams   ports.DiagramService
	library    ports.DiagramLibrary
	moderation ports.ModerationAdmin
	stream     ProgressStream
	metrics    *metrics.HTTPServerMetrics

	validator func(http.Handler) http.Handler
	specJSON  []byte
}

func NewRouter(
	cfg config.Config,
	logger *slog.Logger,
	ingest ports.DocumentIngestor,
	diagrams ports.DiagramService,
	library ports.DiagramLibrary,
	moderation ports.ModerationAdmin,
	stream ProgressStream,
	m *metrics.HTTPServerMetrics,
) (*Router, error) {
	validator, specJSON, err := newOpenAPIValidator(logger)
	if err != nil {
		return nil, err
	}

	return &Router{
		cfg:        cfg,
		logger:     logger,
		ingest:     ingest,
		diagrams:   diagrams,
		library:    library,
		moderation: moderation,
		stream:     stream,
		metrics:    m,
		validator:  validator,
		specJSON:   specJSON,
	}, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.json", rt.openAPIDocument)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("POST /v1/documents", rt.uploadDocument)
	mux.HandleFunc("GET /v1/documents/{document_id}", rt.getDocument)
	mux.HandleFunc("GET /v1/documents/{document_id}/diagrams", rt.listDocumentDiagrams)
	mux.HandleFunc("GET /v1/documents/{document_id}/events", rt.streamDocumentEvents)

	mux.HandleFunc("POST /v1/diagrams", rt.createDiagram)
	mux.HandleFunc("GET /v1/gallery", rt.listGallery)
	mux.HandleFunc("GET /v1/diagrams/{diagram_id}", rt.getDiagram)
	mux.HandleFunc("POST /v1/diagrams/{diagram_id}/fix-syntax", rt.fixDiagramSyntax)
	mux.HandleFunc("PATCH /v1/diagrams/{diagram_id}/visibility", rt.setDiagramVisibility)
	mux.HandleFunc("GET /v1/diagrams/{diagram_id}/related", rt.listRelatedDiagrams)

	mux.HandleFunc("GET /v1/moderation/queue", rt.moderationQueue)
	mux.HandleFunc("POST /v1/moderation/{diagram_id}/decision", rt.applyModerationDecision)
	mux.HandleFunc("GET /v1/moderation/{diagram_id}/log", rt.moderationLog)

	var handler http.Handler = mux
	handler = rt.validator(handler)
	handler = backpressureMiddleware(handler, rt.cfg.MaxInFlight, backpressureWait)
	handler = rateLimitMiddleware(handler, rt.cfg.RateLimitRPS, rt.cfg.RateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPIDocument(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rt.specJSON)
}

func (rt *Router) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		rt.logger.Error("request failed",
			slog.String("request_id", requestIDFromContext(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// bindLimit reads the optional limit query parameter; zero means the caller
// accepts the server default.
func bindLimit(r *http.Request) (int, error) {
	limit := 0
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		return 0, domain.WrapError(domain.ErrInvalidInput, "bind limit parameter", err)
	}
	return limit, nil
}
