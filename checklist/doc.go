// Package checklist holds the checklist definition and snapshot types and
// the aggregator that merges per-segment extraction results into versioned,
// append-only snapshots.
//
// A snapshot partitions the definition entries into obtained and missing
// sets. Entries once obtained are carried forward forever; merges never
// un-capture information. Snapshots are published through a Store with
// compare-and-swap semantics so concurrent workers cannot silently drop
// each other's updates.
package checklist
