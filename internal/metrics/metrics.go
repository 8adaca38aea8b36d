// Package metrics provides application-level counters using stdlib expvar.
// Counters are automatically exported on the /debug/vars HTTP endpoint
// when net/http/pprof is imported in the main binary.
package metrics

import "expvar"

// Operation counters.
var (
	SyncTotal          = expvar.NewInt("memctl_sync_total")
	SearchTotal        = expvar.NewInt("memctl_search_total")
	SearchFallback     = expvar.NewInt("memctl_search_fallback_total")
	IndexUnavailable   = expvar.NewInt("memctl_index_unavailable_total")
	WritesTotal        = expvar.NewInt("memctl_writes_total")
	WritesQueued       = expvar.NewInt("memctl_writes_queued_total")
	WritesRejected     = expvar.NewInt("memctl_writes_rejected_total")
	ReplayTotal        = expvar.NewInt("memctl_replay_total")
	ExtractTotal       = expvar.NewInt("memctl_extract_total")
	ExtractCandidates  = expvar.NewInt("memctl_extract_candidates_total")
	SearchesSuperseded = expvar.NewInt("memctl_searches_superseded_total")
)

// Inc increments the given counter by 1.
func Inc(counter *expvar.Int) { counter.Add(1) }
