package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

func (h *serverHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeJSON(w, http.StatusServiceUnavailable, envelope{"success": false, "error": "Live updates are disabled"})
		return
	}
	sub := h.hub.Subscribe()
	if sub == nil {
		writeJSON(w, http.StatusServiceUnavailable, envelope{"success": false, "error": "Server is shutting down"})
		return
	}
	defer sub.Cancel()

	rc := http.NewResponseController(w)
	// The stream outlives the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	hello, _ := json.Marshal(map[string]string{"id": sub.ID})
	if _, err := fmt.Fprintf(w, "event: connected\ndata: %s\n\n", hello); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.logger.Printf("event stream flush: %v", err)
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case e, ok := <-sub.Events:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				h.logger.Printf("encode event: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data); err != nil {
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
