package httpadapter

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	sseBufferSize        = 32
	sseHeartbeatInterval = 15 * time.Second
)

// streamDocumentEvents bridges the document's event-bus subjects onto a
// server-sent-events response. Events arriving while the client is behind
// the buffer are dropped: the stream is a live view, not a replay log.
func (rt *Router) streamDocumentEvents(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("document_id")
	if _, err := rt.library.Document(r.Context(), documentID); err != nil {
		rt.writeDomainError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming is not supported by response writer"})
		return
	}

	events := make(chan []byte, sseBufferSize)
	unsubscribe, err := rt.stream.SubscribeDocument(documentID, func(data []byte) {
		select {
		case events <- data:
		default:
		}
	})
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "event stream is unavailable"})
		return
	}
	defer unsubscribe()

	if rt.metrics != nil {
		rt.metrics.EventStreamOpened()
		defer rt.metrics.EventStreamClosed()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-events:
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
