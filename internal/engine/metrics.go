package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	EmbedCalls      atomic.Int64
	EmbedErrors     atomic.Int64
	VectorQueries   atomic.Int64
	IndexUpserts    atomic.Int64
	RankRequests    atomic.Int64
	SeedsResolved   atomic.Int64
	ResolveFailures atomic.Int64
	Cooldowns       atomic.Int64
}

// CountEmbedCall records one embedding-service call.
func CountEmbedCall() { metrics.EmbedCalls.Add(1) }

// CountEmbedError records one failed embedding-service call.
func CountEmbedError() { metrics.EmbedErrors.Add(1) }

// CountVectorQuery records one similarity query against the vector store.
func CountVectorQuery() { metrics.VectorQueries.Add(1) }

// CountIndexUpsert records one attribute-index upsert.
func CountIndexUpsert() { metrics.IndexUpserts.Add(1) }

// CountRankRequest records one ranking request.
func CountRankRequest() { metrics.RankRequests.Add(1) }

// CountSeedResolved records one successfully resolved seed profile.
func CountSeedResolved() { metrics.SeedsResolved.Add(1) }

// CountResolveFailure records one seed that could not be resolved.
func CountResolveFailure() { metrics.ResolveFailures.Add(1) }

// GetMetrics returns a snapshot of all counters including cache stats.
func GetMetrics() map[string]int64 {
	hits, misses := CacheStats()
	return map[string]int64{
		"embed_calls":      metrics.EmbedCalls.Load(),
		"embed_errors":     metrics.EmbedErrors.Load(),
		"vector_queries":   metrics.VectorQueries.Load(),
		"index_upserts":    metrics.IndexUpserts.Load(),
		"rank_requests":    metrics.RankRequests.Load(),
		"seeds_resolved":   metrics.SeedsResolved.Load(),
		"resolve_failures": metrics.ResolveFailures.Load(),
		"cooldowns":        metrics.Cooldowns.Load(),
		"cache_hits":       hits,
		"cache_misses":     misses,
	}
}

// FormatMetrics renders the snapshot as sorted "key value" lines.
func FormatMetrics() string {
	snap := GetMetrics()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s %d\n", k, snap[k])
	}
	return b.String()
}
