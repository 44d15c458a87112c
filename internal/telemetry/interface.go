package telemetry

import (
	"context"
	"time"
)

const (
	// JankThresholdMs is the 60fps frame budget. A sample is jank when its
	// latency is strictly greater than this value.
	JankThresholdMs = 16.67

	// DefaultCapacity holds ~30s of samples at 20Hz.
	DefaultCapacity = 600
)

// Snapshot is an immutable point-in-time read of the window statistics
type Snapshot struct {
	Timestamp      time.Time
	LatestLatency  float64
	MovingAverage  float64
	JankPercentage float64
	JankCount      int
	TotalFrames    int
}

// Sink receives every snapshot produced by the sampling loop.
// Implementations must not block.
type Sink interface {
	Record(ctx context.Context, snapshot Snapshot) error
}

// IsJank reports whether a latency in milliseconds exceeds the frame budget
func IsJank(latencyMs float64) bool {
	return latencyMs > JankThresholdMs
}
