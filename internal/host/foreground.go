package host

import (
	"context"
	"os"
	"sync"
	"time"

	"codeberg.org/mutker/telemetrylab/internal/errors"
	"codeberg.org/mutker/telemetrylab/internal/logger"
	"github.com/shirou/gopsutil/v3/process"
)

const DefaultStatusInterval = 5 * time.Second

// Status is one status indication emitted while the host is active
type Status struct {
	Active      bool
	Intensity   int
	FrameRateHz int
	Since       time.Time
	CPUPercent  float64
	RSSBytes    uint64
}

// Foreground is the in-process host. While active it periodically reports
// the process resource usage, standing in for a persistent notification.
type Foreground struct {
	interval time.Duration
	log      logger.Logger
	notify   func(Status)
	proc     *process.Process

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	status Status
}

// ForegroundOption configures a Foreground host
type ForegroundOption func(*Foreground)

// WithNotify sets a callback receiving every status update
func WithNotify(fn func(Status)) ForegroundOption {
	return func(f *Foreground) {
		f.notify = fn
	}
}

// NewForeground creates a host for the current process
func NewForeground(interval time.Duration, log logger.Logger, opts ...ForegroundOption) (*Foreground, error) {
	if interval <= 0 {
		interval = DefaultStatusInterval
	}

	proc, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // pids fit in int32
	if err != nil {
		return nil, errors.New().Wrap(ErrProcessLookup, err)
	}

	f := &Foreground{
		interval: interval,
		log:      log,
		notify:   func(Status) {},
		proc:     proc,
	}
	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

// RequestStart begins the status task. A second start replaces the
// parameters of the running one.
func (f *Foreground) RequestStart(intensity, frameRateHz int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stopLocked()

	f.status = Status{
		Active:      true,
		Intensity:   intensity,
		FrameRateHz: frameRateHz,
		Since:       time.Now(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.done = make(chan struct{})

	f.log.Info().
		Int("intensity", intensity).
		Int("frame_rate", frameRateHz).
		Msg("Telemetry sampling active")

	go f.run(ctx, f.done, f.status)

	return nil
}

// RequestStop ends the status task and waits for it
func (f *Foreground) RequestStop() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancel == nil {
		return nil
	}

	f.stopLocked()
	f.status = Status{}
	f.notify(f.status)
	f.log.Info().Msg("Telemetry sampling inactive")

	return nil
}

// Status returns the parameters of the active request
func (f *Foreground) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *Foreground) stopLocked() {
	if f.cancel == nil {
		return
	}
	f.cancel()
	<-f.done
	f.cancel = nil
	f.done = nil
}

func (f *Foreground) run(ctx context.Context, done chan struct{}, base Status) {
	defer close(done)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.report(base)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.report(base)
		}
	}
}

func (f *Foreground) report(base Status) {
	status := base

	if cpu, err := f.proc.Percent(0); err == nil {
		status.CPUPercent = cpu
	} else {
		f.log.Debug().Err(errors.New().Wrap(ErrProcessStats, err)).Msg("Failed to read process CPU")
	}

	if mem, err := f.proc.MemoryInfo(); err == nil {
		status.RSSBytes = mem.RSS
	} else {
		f.log.Debug().Err(errors.New().Wrap(ErrProcessStats, err)).Msg("Failed to read process memory")
	}

	f.notify(status)

	f.log.Debug().
		Float64("cpu_percent", status.CPUPercent).
		Uint64("rss_bytes", status.RSSBytes).
		Dur("uptime", time.Since(status.Since)).
		Msg("Host status")
}
