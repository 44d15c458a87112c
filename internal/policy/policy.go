package policy

import "time"

const (
	MinIntensity     = 1
	MaxIntensity     = 5
	DefaultIntensity = 2

	NormalFrameRate      = 20
	PowerSavingFrameRate = 10
)

// Params are the effective sampling parameters for one run
type Params struct {
	FrameRate   int
	Intensity   int
	PowerSaving bool
}

// FrameInterval is the target time budget of one sampling iteration
func (p Params) FrameInterval() time.Duration {
	if p.FrameRate <= 0 {
		return time.Second / NormalFrameRate
	}
	return time.Second / time.Duration(p.FrameRate)
}

// ClampIntensity bounds a user-supplied intensity to [MinIntensity, MaxIntensity]
func ClampIntensity(intensity int) int {
	return min(max(intensity, MinIntensity), MaxIntensity)
}

// Effective derives the run parameters from the power state and the
// configured intensity. Power saving halves the frame rate and lightens the
// workload by one step.
func Effective(powerSaving bool, configured int) Params {
	intensity := ClampIntensity(configured)

	if powerSaving {
		return Params{
			FrameRate:   PowerSavingFrameRate,
			Intensity:   max(MinIntensity, intensity-1),
			PowerSaving: true,
		}
	}

	return Params{
		FrameRate: NormalFrameRate,
		Intensity: intensity,
	}
}
