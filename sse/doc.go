// Package sse streams pipeline status events to facilitation UIs over
// Server-Sent Events. Clients subscribe per answer; the hub fans each
// published event out to every connection watching that answer.
//
// Subscriptions are keyed by client ID and addressed with glob patterns,
// so "answer:abc123:*" reaches every tab watching answer abc123 while
// "answer:*" reaches the whole floor view.
package sse
