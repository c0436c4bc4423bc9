package sse

import "fmt"

// Broadcaster is the publishing side of the hub. Pipeline code depends
// on this abstraction so tests can capture broadcasts without a hub.
type Broadcaster interface {
	// BroadcastToPattern sends data to all clients whose ID matches the
	// glob pattern (e.g. "answer:*" or "answer:abc123:*").
	BroadcastToPattern(pattern string, data []byte)
}

// ClientID builds the hub identifier for one connection watching an
// answer. connID distinguishes multiple tabs on the same answer.
func ClientID(answerID, connID string) string {
	return fmt.Sprintf("answer:%s:%s", answerID, connID)
}

// AnswerPattern matches every connection watching the given answer.
func AnswerPattern(answerID string) string {
	return fmt.Sprintf("answer:%s:*", answerID)
}

// AllAnswersPattern matches every connected client.
const AllAnswersPattern = "answer:*"
