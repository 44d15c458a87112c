package metrics

import (
	"context"

	"codeberg.org/mutker/telemetrylab/internal/telemetry"
)

// Recorder exports snapshots for offline analysis. Records are write-only,
// nothing is read back into the sampler.
type Recorder interface {
	Record(ctx context.Context, snapshot telemetry.Snapshot) error
	Close() error
	Enabled() bool
}

// Repository defines the interface for snapshot storage
type Repository interface {
	Store(snapshots []telemetry.Snapshot) error
	Count() (int, error)
	Close() error
}
