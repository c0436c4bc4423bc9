package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/skillsenselab/workshopkit/logger"
)

// keepAliveInterval must stay below common proxy idle timeouts
// (typically 60s) so intermediaries keep the stream open.
const keepAliveInterval = 30 * time.Second

// ConnectedEvent is the first event on every stream. The UI uses it to
// confirm the subscription before trusting subsequent status events.
type ConnectedEvent struct {
	ClientID string            `json:"client_id"`
	AnswerID string            `json:"answer_id,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ServeSSE attaches one HTTP connection to the hub and streams events
// until the client disconnects or the hub shuts down.
func ServeSSE(hub *Hub, w http.ResponseWriter, r *http.Request, clientID string, opts ...ClientOption) {
	log := hub.log

	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Error("streaming not supported", logger.Fields("client_id", clientID))
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Streams are long-lived; the server's WriteTimeout must not apply.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		log.Warn("could not disable write deadline", logger.Fields(
			"client_id", clientID,
			logger.FieldError, err.Error(),
		))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := NewClient(clientID, log, opts...)
	hub.Register(client)
	defer hub.Unregister(client)

	connected, _ := json.Marshal(ConnectedEvent{
		ClientID: clientID,
		AnswerID: client.AnswerID(),
		Metadata: client.Metadata(),
	})
	_, _ = fmt.Fprintf(w, "event: %s\n", EventTypeConnected)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", connected)
	flusher.Flush()

	log.Debug("client connected", logger.Fields(
		"client_id", clientID,
		logger.FieldAnswerID, client.AnswerID(),
		"remote_addr", r.RemoteAddr,
	))

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			log.Debug("client disconnected", logger.Fields(
				"client_id", clientID,
				"reason", ctx.Err().Error(),
			))
			return

		case event, ok := <-client.Events():
			if !ok {
				return
			}
			_, _ = fmt.Fprintf(w, "data: %s\n\n", event)
			flusher.Flush()

		case <-keepAlive.C:
			// SSE comment lines keep proxies from timing the stream out.
			_, _ = fmt.Fprintf(w, ": %s %d\n\n", EventTypeKeepAlive, time.Now().Unix())
			flusher.Flush()
		}
	}
}
