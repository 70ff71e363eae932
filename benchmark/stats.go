// Package benchmark drives a synthetic INSERT workload against an
// in-process coordinator/planner pair, grounded in the teacher's
// benchmark/ycsb.go YCSBStmt/YCSBClient pair but adapted from direct
// key/value transactions against sharded participants to single-table SQL
// INSERTs against this module's single coordinator (there is no sharding
// or distributed commit protocol here — spec.md §1 scopes this module to
// one coordinator).
package benchmark

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Stats accumulates per-statement latencies and outcome counts across every
// load-generator client, grounded in utils.Stat (stat_knobs.go) but
// simplified to the one outcome this workload has (insert succeeded or
// returned an error) rather than the teacher's full cross-shard/abort-class
// breakdown.
type Stats struct {
	mu         sync.Mutex
	latencies  []time.Duration
	successes  int
	failures   int
	windowFrom time.Time
}

func NewStats() *Stats {
	return &Stats{windowFrom: time.Now()}
}

// Record appends one statement's outcome. Safe for concurrent use across
// every client goroutine.
func (s *Stats) Record(latency time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.failures++
		return
	}
	s.successes++
	s.latencies = append(s.latencies, latency)
}

// Snapshot is a point-in-time summary of everything recorded since the
// last Clear.
type Snapshot struct {
	Successes int
	Failures  int
	Window    time.Duration
	P50       time.Duration
	P90       time.Duration
	P99       time.Duration
	Avg       time.Duration
}

// Log computes and prints a percentile summary, mirroring the shape of
// utils.Stat.Log's p50/p90/p99/avg line without its cross-shard phase
// breakdown, which has no analogue in a single-coordinator write path.
func (s *Stats) Log() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Successes: s.successes,
		Failures:  s.failures,
		Window:    time.Since(s.windowFrom),
	}
	if len(s.latencies) > 0 {
		sorted := append([]time.Duration(nil), s.latencies...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		snap.P50 = percentile(sorted, 0.50)
		snap.P90 = percentile(sorted, 0.90)
		snap.P99 = percentile(sorted, 0.99)
		var sum time.Duration
		for _, l := range sorted {
			sum += l
		}
		snap.Avg = sum / time.Duration(len(sorted))
	}
	fmt.Printf("successes:%d failures:%d window:%s p50:%s p90:%s p99:%s avg:%s\n",
		snap.Successes, snap.Failures, snap.Window, snap.P50, snap.P90, snap.P99, snap.Avg)
	return snap
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Clear resets every counter and starts a fresh measurement window, the
// way utils.Stat.Clear lets a caller discard a warm-up period before
// measuring the steady state.
func (s *Stats) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies = nil
	s.successes = 0
	s.failures = 0
	s.windowFrom = time.Now()
}
