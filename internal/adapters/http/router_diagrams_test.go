package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voronkovm/diagramflow/internal/config"
	"github.com/voronkovm/diagramflow/internal/core/domain"
)

func jsonRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCreateDiagramReturns201(t *testing.T) {
	rt, fakes := newTestRouter(t, config.Config{})

	req := jsonRequest(t, http.MethodPost, "/v1/diagrams", map[string]any{
		"prompt":     "draw the deploy flow",
		"user_id":    "user-7",
		"visibility": "unlisted",
	})
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	if fakes.diagrams.generateIn == nil {
		t.Fatalf("expected GenerateFromPrompt call")
	}
	if fakes.diagrams.generateIn.Prompt != "draw the deploy flow" {
		t.Fatalf("unexpected prompt %q", fakes.diagrams.generateIn.Prompt)
	}
	if fakes.diagrams.generateIn.OwnerID != "user-7" {
		t.Fatalf("unexpected owner %q", fakes.diagrams.generateIn.OwnerID)
	}
	if fakes.diagrams.generateIn.Visibility != domain.VisibilityUnlisted {
		t.Fatalf("unexpected visibility %q", fakes.diagrams.generateIn.Visibility)
	}
}

func TestCreateDiagramRejectsUnknownVisibility(t *testing.T) {
	rt, _ := newTestRouter(t, config.Config{})

	req := jsonRequest(t, http.MethodPost, "/v1/diagrams", map[string]any{
		"prompt":     "draw something",
		"user_id":    "user-7",
		"visibility": "everyone",
	})
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestCreateDiagramMapsMalformedOutputTo502(t *testing.T) {
	rt, fakes := newTestRouter(t, config.Config{})
	fakes.diagrams.err = domain.WrapError(domain.ErrMalformedOutput, "generate", errors.New("not json"))

	req := jsonRequest(t, http.MethodPost, "/v1/diagrams", map[string]any{
		"prompt":  "draw something",
		"user_id": "user-7",
	})
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", res.Code)
	}
}

func TestSetDiagramVisibilityUpdates(t *testing.T) {
	rt, fakes := newTestRouter(t, config.Config{})

	req := jsonRequest(t, http.MethodPatch, "/v1/diagrams/dia-3/visibility", map[string]any{
		"visibility": "public",
	})
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if fakes.diagrams.visibility != domain.VisibilityPublic {
		t.Fatalf("expected public visibility, got %q", fakes.diagrams.visibility)
	}
}

func TestSetDiagramVisibilityRejectsUnknownValue(t *testing.T) {
	rt, _ := newTestRouter(t, config.Config{})

	req := jsonRequest(t, http.MethodPatch, "/v1/diagrams/dia-3/visibility", map[string]any{
		"visibility": "shared",
	})
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestFixDiagramSyntaxReturnsRepairedDiagram(t *testing.T) {
	rt, fakes := newTestRouter(t, config.Config{})
	fakes.diagrams.fixed = &domain.Diagram{ID: "dia-3", Markup: "graph TD;\n  a-->b;"}

	req := jsonRequest(t, http.MethodPost, "/v1/diagrams/dia-3/fix-syntax", map[string]any{
		"user_id": "user-7",
	})
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var d domain.Diagram
	if err := json.NewDecoder(res.Body).Decode(&d); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if d.Markup != "graph TD;\n  a-->b;" {
		t.Fatalf("unexpected markup %q", d.Markup)
	}
}

func TestGetDiagramReturns404ForUnknownID(t *testing.T) {
	rt, _ := newTestRouter(t, config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/diagrams/missing", nil)
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestListGalleryPassesLimit(t *testing.T) {
	rt, fakes := newTestRouter(t, config.Config{})
	fakes.library.public = []domain.Diagram{{ID: "dia-1", Visibility: domain.VisibilityPublic}}

	req := httptest.NewRequest(http.MethodGet, "/v1/gallery?limit=5", nil)
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if fakes.library.lastLimit != 5 {
		t.Fatalf("expected limit 5, got %d", fakes.library.lastLimit)
	}
	var items []domain.Diagram
	if err := json.NewDecoder(res.Body).Decode(&items); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(items) != 1 || items[0].ID != "dia-1" {
		t.Fatalf("unexpected gallery: %+v", items)
	}
}

func TestListGalleryRejectsBadLimit(t *testing.T) {
	rt, _ := newTestRouter(t, config.Config{})

	req := httptest.NewRequest(http.MethodGet, "/v1/gallery?limit=many", nil)
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestListRelatedDiagrams(t *testing.T) {
	rt, fakes := newTestRouter(t, config.Config{})
	fakes.diagrams.related = []domain.RelatedDiagram{
		{ID: "dia-2", Title: "Checkout", SharedTags: 3},
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/diagrams/dia-1/related?limit=10", nil)
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var hits []domain.RelatedDiagram
	if err := json.NewDecoder(res.Body).Decode(&hits); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(hits) != 1 || hits[0].SharedTags != 3 {
		t.Fatalf("unexpected related hits: %+v", hits)
	}
}
