package httpadapter

import (
	"errors"
	"fmt"
	"net/http"
)

func (rt *Router) maxUploadBytes() int64 {
	mb := rt.cfg.MaxUploadMB
	if mb <= 0 {
		mb = 25
	}
	return int64(mb) << 20
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes())

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": fmt.Sprintf("upload exceeds the %d byte limit", tooLarge.Limit),
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingest.Upload(
		r.Context(),
		header.Filename,
		header.Header.Get("Content-Type"),
		r.FormValue("user_id"),
		file,
	)
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordUpload(serviceName, header.Size)
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.library.Document(r.Context(), r.PathValue("document_id"))
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) listDocumentDiagrams(w http.ResponseWriter, r *http.Request) {
	items, err := rt.library.DocumentDiagrams(r.Context(), r.PathValue("document_id"))
	if err != nil {
		rt.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
