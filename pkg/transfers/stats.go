package transfers

import "sync/atomic"

// RouterStats holds the router's advisory counters. Only the router
// goroutine writes them; any goroutine may read a Snapshot for diagnostics.
type RouterStats struct {
	colorRouted         atomic.Uint64
	depthRouted         atomic.Uint64
	readErrors          atomic.Uint64
	dropsReadError      atomic.Uint64
	consecutiveFailures atomic.Int64
}

// RouterStatsSnapshot is a point-in-time copy of the router counters.
type RouterStatsSnapshot struct {
	ColorRouted         uint64
	DepthRouted         uint64
	ReadErrors          uint64
	DropsReadError      uint64
	ConsecutiveFailures int64
}

// Routed returns the total number of successfully routed frames.
func (s RouterStatsSnapshot) Routed() uint64 {
	return s.ColorRouted + s.DepthRouted
}

func (s *RouterStats) Snapshot() RouterStatsSnapshot {
	return RouterStatsSnapshot{
		ColorRouted:         s.colorRouted.Load(),
		DepthRouted:         s.depthRouted.Load(),
		ReadErrors:          s.readErrors.Load(),
		DropsReadError:      s.dropsReadError.Load(),
		ConsecutiveFailures: s.consecutiveFailures.Load(),
	}
}
