package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"codeberg.org/mutker/telemetrylab/internal/config"
	"codeberg.org/mutker/telemetrylab/internal/dashboard"
	"codeberg.org/mutker/telemetrylab/internal/errors"
	"codeberg.org/mutker/telemetrylab/internal/host"
	"codeberg.org/mutker/telemetrylab/internal/lifecycle"
	"codeberg.org/mutker/telemetrylab/internal/logger"
	"codeberg.org/mutker/telemetrylab/internal/metrics"
	"codeberg.org/mutker/telemetrylab/internal/pid"
	"codeberg.org/mutker/telemetrylab/internal/power"
	"codeberg.org/mutker/telemetrylab/internal/telemetry"
)

const (
	logFile        = "telemetrylab.log"
	headlessReport = time.Second
)

type app struct {
	cfg          *config.Config
	controller   *lifecycle.Controller
	recorder     metrics.Recorder
	headlessMode bool
	logFile      *os.File
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel, logger.IsService()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug().Msg("Config loaded")

	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("failed to write PID file")
	}

	headless := cfg.Headless || logger.IsService()

	// Redirect before any component starts a logging goroutine; log lines
	// would tear the terminal UI
	var out *os.File
	if !headless {
		out, err = os.OpenFile(filepath.Join(os.TempDir(), logFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			_ = pid.Remove()
			logger.FatalWithCode(errors.New().Wrap(errors.ErrInitApp, err)).Msg("failed to open log file")
		}
		logger.SetOutput(out)
	}

	a, err := newApp(cfg)
	if err != nil {
		_ = pid.Remove()
		logger.Fatal().Err(err).Msg("failed to initialize")
	}
	a.headlessMode = headless
	a.logFile = out

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := a.run(ctx); err != nil {
		logger.ErrorWithCode(errors.New().Wrap(errors.ErrMainLoop, err)).Msg("error in main loop")
	}
	a.cleanup()
}

func newApp(cfg *config.Config) (*app, error) {
	errFactory := errors.New()
	log := logger.Default()

	src, err := power.FromMode(cfg.PowerMode(), cfg.Power.SysfsRoot, cfg.Power.LowBattery, log.With("power"))
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	fg, err := host.NewForeground(cfg.Host.StatusInterval, log.With("host"))
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	recorder, err := metrics.NewService(cfg.MetricsConfig(), log.With("metrics"))
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	controller := lifecycle.New(
		lifecycle.WithHost(fg),
		lifecycle.WithPowerSource(src),
		lifecycle.WithSink(recorder),
		lifecycle.WithLogger(log.With("lifecycle")),
		lifecycle.WithWindowSize(cfg.WindowSize),
		lifecycle.WithMeasure(cfg.MeasureMode()),
		lifecycle.WithIntensity(cfg.Intensity),
	)

	return &app{
		cfg:        cfg,
		controller: controller,
		recorder:   recorder,
	}, nil
}

func (a *app) run(ctx context.Context) error {
	if a.headlessMode {
		return a.headless(ctx)
	}
	return dashboard.Run(ctx, a.controller, dashboard.DefaultRefresh)
}

// headless starts sampling immediately and logs the statistics until ctx is
// cancelled
func (a *app) headless(ctx context.Context) error {
	logger.Info().
		Int("intensity", a.cfg.Intensity).
		Str("measure", a.cfg.Measure).
		Bool("metrics", a.recorder.Enabled()).
		Msg("Headless mode activated. Logging sampler statistics...")

	a.controller.Start()

	ticker := time.NewTicker(headlessReport)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			logSnapshot(a.controller.Snapshot().Get(), a.controller.PowerSaving().Get())
		}
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func (a *app) cleanup() {
	a.controller.Close()

	if err := a.recorder.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to close metrics recorder")
	}
	if err := pid.Remove(); err != nil {
		logger.Error().Err(err).Msg("failed to remove PID file")
	}

	logger.Info().Uint64("runs", a.controller.Runs()).Msg("Exiting...")

	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

func logSnapshot(s telemetry.Snapshot, powerSaving bool) {
	logger.Info().
		Float64("latest_ms", s.LatestLatency).
		Float64("average_ms", s.MovingAverage).
		Float64("jank_pct", s.JankPercentage).
		Int("jank", s.JankCount).
		Int("frames", s.TotalFrames).
		Bool("power_saving", powerSaving).
		Msg("")
}
