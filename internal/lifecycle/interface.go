package lifecycle

import (
	"codeberg.org/mutker/telemetrylab/internal/activity"
	"codeberg.org/mutker/telemetrylab/internal/observable"
	"codeberg.org/mutker/telemetrylab/internal/telemetry"
)

// RunState is whether the sampler runs
type RunState int32

const (
	Stopped RunState = iota
	Running
)

func (s RunState) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// View is what a presentation layer may see and do
type View interface {
	RunState() observable.Reader[RunState]
	Intensity() observable.Reader[int]
	Snapshot() observable.Reader[telemetry.Snapshot]
	PowerSaving() observable.Reader[bool]
	Activity() observable.Reader[[]activity.Entry]

	SetIntensity(intensity int) int
	Toggle()
}
