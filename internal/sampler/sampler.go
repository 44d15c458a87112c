package sampler

import (
	"context"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/telemetrylab/internal/logger"
	"codeberg.org/mutker/telemetrylab/internal/policy"
	"codeberg.org/mutker/telemetrylab/internal/telemetry"
	"codeberg.org/mutker/telemetrylab/internal/workload"
)

// State is the sampling loop state
type State int32

const (
	Idle State = iota
	Sampling
)

func (s State) String() string {
	if s == Sampling {
		return "sampling"
	}
	return "idle"
}

// Measure selects what a latency sample covers
type Measure string

const (
	// MeasureWork samples the simulated work only
	MeasureWork Measure = "work"
	// MeasureFrame samples the whole frame, work plus the pacing wait
	MeasureFrame Measure = "frame"
)

// IsValid reports whether m is a known measurement mode
func (m Measure) IsValid() bool {
	return m == MeasureWork || m == MeasureFrame
}

// Loop is the periodic sampling task. One Loop serves one run; the window
// it writes to must not be touched by anyone else while Run is active.
type Loop struct {
	window     *telemetry.Window
	simulator  workload.Simulator
	params     policy.Params
	measure    Measure
	publish    func(telemetry.Snapshot)
	log        logger.Logger
	state      atomic.Int32
	iterations atomic.Uint64
}

// Option configures a Loop
type Option func(*Loop)

// WithMeasure selects the measurement mode, MeasureWork by default
func WithMeasure(m Measure) Option {
	return func(l *Loop) {
		if m.IsValid() {
			l.measure = m
		}
	}
}

// WithPublisher sets the callback receiving each snapshot
func WithPublisher(fn func(telemetry.Snapshot)) Option {
	return func(l *Loop) {
		l.publish = fn
	}
}

// WithLogger sets the loop logger
func WithLogger(log logger.Logger) Option {
	return func(l *Loop) {
		l.log = log
	}
}

// New builds a sampling loop for the given effective parameters
func New(window *telemetry.Window, sim workload.Simulator, params policy.Params, opts ...Option) *Loop {
	l := &Loop{
		window:    window,
		simulator: sim,
		params:    params,
		measure:   MeasureWork,
		publish:   func(telemetry.Snapshot) {},
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State returns the current loop state
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Iterations returns the number of samples pushed so far
func (l *Loop) Iterations() uint64 {
	return l.iterations.Load()
}

// Run samples until ctx is cancelled and then returns nil. The simulator
// call is not interruptible; a sample whose work finished after cancellation
// is discarded.
func (l *Loop) Run(ctx context.Context) error {
	l.state.Store(int32(Sampling))
	defer l.state.Store(int32(Idle))

	target := l.params.FrameInterval()

	l.log.Debug().
		Int("frame_rate", l.params.FrameRate).
		Int("intensity", l.params.Intensity).
		Str("measure", string(l.measure)).
		Msg("Sampling loop started")

	for {
		if ctx.Err() != nil {
			break
		}

		start := time.Now()
		elapsed := l.simulator.Simulate(l.params.Intensity)

		if l.measure == MeasureWork {
			if ctx.Err() != nil {
				break
			}
			l.emit(elapsed)
		}

		if !wait(ctx, target-elapsed) {
			break
		}

		if l.measure == MeasureFrame {
			l.emit(time.Since(start))
		}
	}

	l.log.Debug().Uint64("iterations", l.Iterations()).Msg("Sampling loop stopped")

	return nil
}

func (l *Loop) emit(latency time.Duration) {
	snap := l.window.Push(toMillis(latency))
	l.iterations.Add(1)
	l.publish(snap)
}

// wait sleeps for d, returning false if ctx was cancelled first. A
// non-positive d returns immediately without a catch-up burst.
func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
