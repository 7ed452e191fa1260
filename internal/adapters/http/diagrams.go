package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/voronkovm/diagramflow/internal/core/domain"
)

func (rt *Router) createDiagram(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt     string `json:"prompt"`
		UserID     string `json:"user_id"`
		Visibility string `json:"visibility"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	promptReq := domain.PromptRequest{Prompt: req.Prompt, OwnerID: req.UserID}
	if req.Visibility != "" {
		v, ok := domain.ParseVisibility(req.Visibility)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown visibility %q", req.Visibility)})
			return
		}
		promptReq.Visibility = v
	}

	d, err := rt.diagrams.GenerateFromPrompt(r.Context(), promptReq)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (rt *Router) getDiagram(w http.ResponseWriter, r *http.Request) {
	d, err := rt.library.Diagram(r.Context(), r.PathValue("diagram_id"))
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (rt *Router) listGallery(w http.ResponseWriter, r *http.Request) {
	limit, err := bindLimit(r)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	items, err := rt.library.PublicDiagrams(r.Context(), limit)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (rt *Router) fixDiagramSyntax(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	d, err := rt.diagrams.FixSyntax(r.Context(), r.PathValue("diagram_id"), req.UserID)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (rt *Router) setDiagramVisibility(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Visibility string `json:"visibility"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	v, ok := domain.ParseVisibility(req.Visibility)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("unknown visibility %q", req.Visibility)})
		return
	}

	d, err := rt.diagrams.SetVisibility(r.Context(), r.PathValue("diagram_id"), v)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (rt *Router) listRelatedDiagrams(w http.ResponseWriter, r *http.Request) {
	limit, err := bindLimit(r)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	hits, err := rt.diagrams.Related(r.Context(), r.PathValue("diagram_id"), limit)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hits)
}
