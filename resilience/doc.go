// Package resilience provides context-aware retry with exponential backoff
// and jitter. The checklist aggregator uses it to retry snapshot publishes
// that lose an optimistic-concurrency race.
package resilience
