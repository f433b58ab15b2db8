package dispatcher

import "sync"

// Stats counts dispatcher outcomes since start. All counters are cumulative.
type Stats struct {
	// Claimed is the number of jobs this instance claimed
	Claimed uint64
	// Completed is the number of jobs finished successfully
	Completed uint64
	// Retried is the number of transient failures returned to the queue
	Retried uint64
	// Failed is the number of jobs that ended failed
	Failed uint64
	// Deduplicated is the number of jobs completed without an adapter call
	// because their idempotency key was already reserved
	Deduplicated uint64
	// Throttled is the number of dispatch attempts deferred by pacing
	Throttled uint64
	// Expired is the number of jobs the sweeper expired
	Expired uint64
	// LostClaims is the number of claim races lost to another worker
	LostClaims uint64
}

// statsCollector accumulates Stats behind a mutex so workers can record
// outcomes concurrently.
type statsCollector struct {
	mu    sync.Mutex
	stats Stats
}

func newStatsCollector() *statsCollector {
	return &statsCollector{}
}

func (c *statsCollector) record(fn func(*Stats)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.stats)
}

// Snapshot returns a copy of the current counters.
func (c *statsCollector) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
