// Package metrics tracks operational counters for the agent.
package metrics

import (
	"fmt"
	"strings"
	"sync/atomic"
)

var counters struct {
	A2ARequests      atomic.Int64
	ScrapeRequests   atomic.Int64
	LLMCalls         atomic.Int64
	LLMErrors        atomic.Int64
	WWRRequests      atomic.Int64
	RemoteOKRequests atomic.Int64
	FeedErrors       atomic.Int64
	AnalysisRuns     atomic.Int64
	CacheHits        atomic.Int64
	CacheMisses      atomic.Int64
}

func IncrA2ARequests()      { counters.A2ARequests.Add(1) }
func IncrScrapeRequests()   { counters.ScrapeRequests.Add(1) }
func IncrLLMCalls()         { counters.LLMCalls.Add(1) }
func IncrLLMErrors()        { counters.LLMErrors.Add(1) }
func IncrWWRRequests()      { counters.WWRRequests.Add(1) }
func IncrRemoteOKRequests() { counters.RemoteOKRequests.Add(1) }
func IncrFeedErrors()       { counters.FeedErrors.Add(1) }
func IncrAnalysisRuns()     { counters.AnalysisRuns.Add(1) }
func IncrCacheHits()        { counters.CacheHits.Add(1) }
func IncrCacheMisses()      { counters.CacheMisses.Add(1) }

// Get returns a snapshot of all counters.
func Get() map[string]int64 {
	return map[string]int64{
		"a2a_requests":      counters.A2ARequests.Load(),
		"scrape_requests":   counters.ScrapeRequests.Load(),
		"llm_calls":         counters.LLMCalls.Load(),
		"llm_errors":        counters.LLMErrors.Load(),
		"wwr_requests":      counters.WWRRequests.Load(),
		"remoteok_requests": counters.RemoteOKRequests.Load(),
		"feed_errors":       counters.FeedErrors.Load(),
		"analysis_runs":     counters.AnalysisRuns.Load(),
		"cache_hits":        counters.CacheHits.Load(),
		"cache_misses":      counters.CacheMisses.Load(),
	}
}

// Format returns counters as a simple text format for the /metrics endpoint.
func Format() string {
	m := Get()
	keys := []string{
		"a2a_requests", "scrape_requests",
		"llm_calls", "llm_errors",
		"wwr_requests", "remoteok_requests", "feed_errors",
		"analysis_runs",
		"cache_hits", "cache_misses",
	}
	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}
