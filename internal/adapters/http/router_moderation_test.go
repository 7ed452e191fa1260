package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voronkovm/diagramflow/internal/config"
	"github.com/voronkovm/diagramflow/internal/core/domain"
)

func TestModerationQueueListsEscalations(t *testing.T) {
	rt, fakes := newTestRouter(t, config.Config{})
	fakes.moderation.queue = []domain.Diagram{
		{ID: "dia-1", ModerationStatus: domain.ModerationManualReview},
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/moderation/queue", nil)
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var items []domain.Diagram
	if err := json.NewDecoder(res.Body).Decode(&items); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(items) != 1 || items[0].ModerationStatus != domain.ModerationManualReview {
		t.Fatalf("unexpected queue: %+v", items)
	}
}

func TestApplyModerationDecisionRequiresApproveField(t *testing.T) {
	rt, _ := newTestRouter(t, config.Config{})

	req := jsonRequest(t, http.MethodPost, "/v1/moderation/dia-1/decision", map[string]any{
		"reviewer": "admin",
	})
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestApplyModerationDecisionRejectDelivered(t *testing.T) {
	rt, fakes := newTestRouter(t, config.Config{})
	fakes.moderation.decided = &domain.Diagram{
		ID:               "dia-1",
		ModerationStatus: domain.ModerationRejected,
	}

	req := jsonRequest(t, http.MethodPost, "/v1/moderation/dia-1/decision", map[string]any{
		"approve":  false,
		"reason":   "contains contact details",
		"reviewer": "admin",
	})
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if fakes.moderation.approve {
		t.Fatalf("expected reject decision")
	}
	if fakes.moderation.reviewer != "admin" || fakes.moderation.reason != "contains contact details" {
		t.Fatalf("unexpected decision args: reviewer=%q reason=%q", fakes.moderation.reviewer, fakes.moderation.reason)
	}

	var d domain.Diagram
	if err := json.NewDecoder(res.Body).Decode(&d); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if d.ModerationStatus != domain.ModerationRejected {
		t.Fatalf("unexpected status %q", d.ModerationStatus)
	}
}

func TestApplyModerationDecisionMapsAlreadyDecidedTo400(t *testing.T) {
	rt, fakes := newTestRouter(t, config.Config{})
	fakes.moderation.err = domain.WrapError(domain.ErrInvalidInput, "apply manual decision", errors.New("diagram already approved"))

	req := jsonRequest(t, http.MethodPost, "/v1/moderation/dia-1/decision", map[string]any{
		"approve":  true,
		"reviewer": "admin",
	})
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestModerationLogReturnsAuditTrail(t *testing.T) {
	rt, fakes := newTestRouter(t, config.Config{})
	fakes.moderation.log = []domain.ModerationLogEntry{
		{ID: "log-1", DiagramID: "dia-1", Action: domain.ActionAIManualReview},
		{ID: "log-2", DiagramID: "dia-1", Action: domain.ActionManualApprove, Reviewer: "admin"},
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/moderation/dia-1/log", nil)
	res := httptest.NewRecorder()
	rt.Handler().ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var entries []domain.ModerationLogEntry
	if err := json.NewDecoder(res.Body).Decode(&entries); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(entries) != 2 || entries[1].Reviewer != "admin" {
		t.Fatalf("unexpected audit trail: %+v", entries)
	}
}
