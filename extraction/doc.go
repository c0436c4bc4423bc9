// Package extraction matches cumulative transcript text against a
// checklist definition and reports which entries are now satisfied plus
// any unscheduled findings.
//
// The reference implementation delegates to an llm.Provider with a
// structured-JSON prompt. The extraction algorithm itself is opaque to
// the rest of the pipeline; callers only see the Extractor interface.
package extraction
