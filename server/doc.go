// Package server exposes the facilitation pipeline over HTTP: answer
// session lifecycle, recording control, checklist snapshots, segment
// retry, and the SSE status stream.
//
// The server is backed by Gin for routing with an h2c wrapper so
// additional http.Handler mounts can share the port.
package server
