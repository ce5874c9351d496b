// Package risk defines the shared error taxonomy for the risk core.
//
// Only two failure classes cross component boundaries: missing/invalid
// external data (recoverable, triggers a conservative fallback) and
// inconsistent configuration tables (fatal at startup, never at runtime).
// Everything else is expressed as a tagged result on the operation itself.
package risk

import "errors"

// ErrDataUnavailable marks a missing or invalid external reading (index
// level, quote, account value). It is never fatal: the affected decision
// falls back to its most conservative configured behavior.
var ErrDataUnavailable = errors.New("data unavailable")

// ErrConfigInconsistent marks a configuration table with gaps or
// overlapping bounds. Components refuse to construct against such a
// table rather than decide against it later.
var ErrConfigInconsistent = errors.New("configuration inconsistent")
