package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/telemetrylab/internal/activity"
	"codeberg.org/mutker/telemetrylab/internal/errors"
	"codeberg.org/mutker/telemetrylab/internal/host"
	"codeberg.org/mutker/telemetrylab/internal/logger"
	"codeberg.org/mutker/telemetrylab/internal/observable"
	"codeberg.org/mutker/telemetrylab/internal/policy"
	"codeberg.org/mutker/telemetrylab/internal/power"
	"codeberg.org/mutker/telemetrylab/internal/sampler"
	"codeberg.org/mutker/telemetrylab/internal/telemetry"
	"codeberg.org/mutker/telemetrylab/internal/workload"
	"golang.org/x/sync/errgroup"
)

// Controller starts and stops the sampling loop and the activity loop as
// one unit. Both run, or neither does.
type Controller struct {
	host        host.Host
	power       power.Source
	simulator   workload.Simulator
	sink        telemetry.Sink
	log         logger.Logger
	windowSize  int
	measure     sampler.Measure
	actInterval time.Duration
	actCapacity int

	runState    *observable.Value[RunState]
	intensity   *observable.Value[int]
	snapshot    *observable.Value[telemetry.Snapshot]
	powerSaving *observable.Value[bool]
	activity    *observable.Value[[]activity.Entry]

	// mu serialises Start, Stop and Close
	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
	params policy.Params
	closed bool
	runs   uint64

	live atomic.Int32
}

// Option configures a Controller
type Option func(*Controller)

func WithHost(h host.Host) Option {
	return func(c *Controller) { c.host = h }
}

func WithPowerSource(src power.Source) Option {
	return func(c *Controller) { c.power = src }
}

func WithSimulator(sim workload.Simulator) Option {
	return func(c *Controller) { c.simulator = sim }
}

// WithSink forwards every snapshot to sink in addition to the Snapshot cell
func WithSink(sink telemetry.Sink) Option {
	return func(c *Controller) { c.sink = sink }
}

func WithLogger(log logger.Logger) Option {
	return func(c *Controller) { c.log = log }
}

func WithWindowSize(size int) Option {
	return func(c *Controller) { c.windowSize = size }
}

func WithMeasure(m sampler.Measure) Option {
	return func(c *Controller) { c.measure = m }
}

// WithActivity overrides the activity log cadence and capacity
func WithActivity(interval time.Duration, capacity int) Option {
	return func(c *Controller) {
		c.actInterval = interval
		c.actCapacity = capacity
	}
}

// WithIntensity sets the initial configured intensity, clamped to [1,5]
func WithIntensity(intensity int) Option {
	return func(c *Controller) { c.intensity.Set(policy.ClampIntensity(intensity)) }
}

// New returns a stopped controller
func New(opts ...Option) *Controller {
	c := &Controller{
		host:        host.Noop{},
		power:       power.Static(false),
		simulator:   workload.NewConvolution(),
		log:         logger.Nop(),
		windowSize:  telemetry.DefaultCapacity,
		measure:     sampler.MeasureWork,
		actInterval: activity.DefaultInterval,
		actCapacity: activity.DefaultCapacity,

		runState:    observable.New(Stopped),
		intensity:   observable.New(policy.DefaultIntensity),
		snapshot:    observable.New(telemetry.Snapshot{}),
		powerSaving: observable.New(false),
		activity:    observable.New[[]activity.Entry](nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) RunState() observable.Reader[RunState]           { return c.runState }
func (c *Controller) Intensity() observable.Reader[int]               { return c.intensity }
func (c *Controller) Snapshot() observable.Reader[telemetry.Snapshot] { return c.snapshot }
func (c *Controller) PowerSaving() observable.Reader[bool]            { return c.powerSaving }
func (c *Controller) Activity() observable.Reader[[]activity.Entry]   { return c.activity }

// SetIntensity stores the configured intensity clamped to [1,5] and returns
// the stored value. It applies from the next Start.
func (c *Controller) SetIntensity(intensity int) int {
	v := policy.ClampIntensity(intensity)
	c.intensity.Set(v)
	return v
}

// Params returns the effective parameters of the current or last run
func (c *Controller) Params() policy.Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// Runs returns how many times sampling has been started
func (c *Controller) Runs() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs
}

// LiveTasks returns the number of loop goroutines currently alive
func (c *Controller) LiveTasks() int {
	return int(c.live.Load())
}

// Start launches both loops. It does nothing if already running or closed.
func (c *Controller) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startLocked()
}

// Stop cancels both loops and waits for them to exit. No window or log
// write happens after Stop returns. It does nothing if already stopped.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Toggle stops a running controller and starts a stopped one
func (c *Controller) Toggle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.stopLocked()
		return
	}
	c.startLocked()
}

// Close force-stops the controller. Later Start calls are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.closed = true
}

func (c *Controller) startLocked() {
	if c.closed || c.cancel != nil {
		return
	}

	saving := c.power.IsPowerSavingActive()
	c.powerSaving.Set(saving)
	params := policy.Effective(saving, c.intensity.Get())

	window := telemetry.NewWindow(c.windowSize)
	actLog := activity.NewLog(c.actCapacity)
	c.snapshot.Set(telemetry.Snapshot{})
	c.activity.Set(nil)

	if err := c.host.RequestStart(params.Intensity, params.FrameRate); err != nil {
		c.log.ErrorWithCode(errors.New().Wrap(errors.ErrHostRequest, err)).
			Msg("Host refused to start, sampling anyway")
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	c.cancel = cancel
	c.group = g
	c.params = params
	c.runs++
	c.runState.Set(Running)

	loop := sampler.New(window, c.simulator, params,
		sampler.WithMeasure(c.measure),
		sampler.WithPublisher(c.publisher(gctx)),
		sampler.WithLogger(c.log),
	)
	act := activity.NewLoop(actLog, c.actInterval, c.activity.Set)

	c.goTask(gctx, g, "sampler", loop.Run)
	c.goTask(gctx, g, "activity", act.Run)
	go c.supervise(g, c.runs)

	c.log.Info().
		Uint64("run", c.runs).
		Bool("power_saving", saving).
		Int("frame_rate", params.FrameRate).
		Int("intensity", params.Intensity).
		Msg("Sampling started")
}

func (c *Controller) stopLocked() {
	if c.cancel == nil {
		return
	}

	c.cancel()
	if err := c.group.Wait(); err != nil {
		c.log.ErrorWithCode(coded(err)).Uint64("run", c.runs).Msg("Sampling task failed")
	}
	c.cancel = nil
	c.group = nil
	c.runState.Set(Stopped)

	if err := c.host.RequestStop(); err != nil {
		c.log.ErrorWithCode(errors.New().Wrap(errors.ErrHostRequest, err)).
			Msg("Host failed to stop")
	}

	c.log.Info().Uint64("run", c.runs).Msg("Sampling stopped")
}

// goTask runs one loop in g. A panic in the loop, typically from a
// pluggable simulator, is returned as an error so the group cancels the
// sibling loop.
func (c *Controller) goTask(ctx context.Context, g *errgroup.Group, name string, run func(context.Context) error) {
	c.live.Add(1)

	g.Go(func() (err error) {
		defer c.live.Add(-1)
		defer func() {
			if r := recover(); r != nil {
				err = errors.New().WithData(errors.ErrTaskFailed, fmt.Sprintf("%s: %v", name, r))
			}
		}()

		if err := run(ctx); err != nil {
			return errors.New().Wrap(errors.ErrTaskFailed, fmt.Errorf("%s: %w", name, err))
		}
		return nil
	})
}

// supervise stops run once both of its loops have exited. After a normal
// Stop the group is already detached and there is nothing to do; after a
// task failure this publishes Stopped so both loops end together.
func (c *Controller) supervise(g *errgroup.Group, run uint64) {
	if err := g.Wait(); err == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.group != g || c.runs != run {
		return
	}
	c.stopLocked()
}

func coded(err error) errors.Error {
	var e errors.Error
	if errors.As(err, &e) {
		return e
	}
	return errors.New().Wrap(errors.ErrTaskFailed, err)
}

func (c *Controller) publisher(ctx context.Context) func(telemetry.Snapshot) {
	return func(snap telemetry.Snapshot) {
		c.snapshot.Set(snap)

		if c.sink == nil {
			return
		}
		if err := c.sink.Record(ctx, snap); err != nil {
			c.log.Debug().Err(err).Msg("Failed to record snapshot")
		}
	}
}
