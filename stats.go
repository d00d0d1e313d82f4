package framegraph

import "time"

// PassStatistics is the CPU-side cost of one pass in the last executed
// frame. Duration covers Prepare, barriers and command recording.
type PassStatistics struct {
	Name     string
	Duration time.Duration
	Culled   bool
}

// GraphStats counts compile and pool activity over the graph's lifetime.
type GraphStats struct {
	Compiles       int    // full compiles (cache misses)
	PlanHits       int    // compiles answered by the plan cache
	Executions     int    // frames encoded
	PoolCreated    int    // physical allocations created
	PoolDestroyed  int    // physical allocations destroyed
	PoolBytes      uint64 // bytes held by the transient pool now
	CachedPlans    int
	CommandBuffers int // command buffers produced by the last frame
}
