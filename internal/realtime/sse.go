package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const DefaultKeepAlive = 25 * time.Second

// ServeSSE streams the group's events to w until the client disconnects.
// Each keep-alive also refreshes the viewer's presence.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request, groupID, userID string, keepAlive time.Duration) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}

	ctx := r.Context()
	events, err := h.Subscribe(ctx, groupID)
	if err != nil {
		h.logger.Error("sse subscribe failed", map[string]interface{}{
			"careGroupId": groupID,
			"error":       err,
		})
		http.Error(w, "subscription failed", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	_ = h.Heartbeat(ctx, groupID, userID)

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = h.Heartbeat(ctx, groupID, userID)
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(w, e); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
	return err
}
