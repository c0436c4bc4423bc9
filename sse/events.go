package sse

// Transport-level SSE event names. Domain payloads (segment status,
// snapshots, session state) carry their own type field inside the data;
// these names cover only the stream's own lifecycle.
const (
	// EventTypeConnected is sent once when a client attaches.
	EventTypeConnected = "connected"

	// EventTypeKeepAlive names the periodic keep-alive comment.
	EventTypeKeepAlive = "keepalive"
)
