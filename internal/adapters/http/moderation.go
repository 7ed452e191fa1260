package httpadapter

import (
	"encoding/json"
	"net/http"
)

func (rt *Router) moderationQueue(w http.ResponseWriter, r *http.Request) {
	limit, err := bindLimit(r)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	items, err := rt.moderation.Queue(r.Context(), limit)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (rt *Router) applyModerationDecision(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Approve  *bool  `json:"approve"`
		Reason   string `json:"reason"`
		Reviewer string `json:"reviewer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Approve == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "field 'approve' is required"})
		return
	}

	d, err := rt.moderation.ApplyDecision(r.Context(), r.PathValue("diagram_id"), *req.Approve, req.Reason, req.Reviewer)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (rt *Router) moderationLog(w http.ResponseWriter, r *http.Request) {
	entries, err := rt.moderation.Log(r.Context(), r.PathValue("diagram_id"))
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
