package metrics

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/telemetrylab/internal/errors"
	"codeberg.org/mutker/telemetrylab/internal/logger"
	"codeberg.org/mutker/telemetrylab/internal/telemetry"
)

type service struct {
	repo Repository
	cfg  Config
	log  logger.Logger

	mu      sync.Mutex
	buffer  []telemetry.Snapshot
	dropped int
	closed  bool

	flushCh  chan struct{}
	shutdown chan struct{}
	done     chan struct{}
}

// No-op implementation
type noopRecorder struct{}

// NewService returns a recorder for cfg. A disabled config yields a no-op
// recorder and opens no database.
func NewService(cfg Config, log logger.Logger) (Recorder, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		log.Debug().Msg("Metrics recording disabled, using no-op recorder")
		return &noopRecorder{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	return newService(cfg, repo, log), nil
}

// NewServiceWithRepository wires a recorder to an existing repository
func NewServiceWithRepository(cfg Config, repo Repository, log logger.Logger) Recorder {
	return newService(cfg, repo, log)
}

func newService(cfg Config, repo Repository, log logger.Logger) *service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = defaultBatchTimeout
	}

	s := &service{
		repo:     repo,
		cfg:      cfg,
		log:      log,
		buffer:   make([]telemetry.Snapshot, 0, cfg.BatchSize),
		flushCh:  make(chan struct{}, 1),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}

	go s.flusher()

	log.Debug().
		Str("db_path", cfg.DBPath).
		Int("batch_size", cfg.BatchSize).
		Dur("batch_timeout", cfg.BatchTimeout).
		Msg("Metrics service initialized successfully")

	return s
}

// Record buffers a snapshot. It never touches the database, the flusher
// goroutine does. When the flusher falls far behind the oldest buffered
// snapshots are dropped.
func (s *service) Record(ctx context.Context, snapshot telemetry.Snapshot) error {
	errFactory := errors.New()

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errFactory.New(ErrServiceClosed)
	}

	if limit := s.cfg.BatchSize * maxBufferFactor; len(s.buffer) >= limit {
		n := len(s.buffer) - limit + 1
		s.buffer = append(s.buffer[:0], s.buffer[n:]...)
		s.dropped += n
	}
	s.buffer = append(s.buffer, snapshot)

	if len(s.buffer) >= s.cfg.BatchSize {
		select {
		case s.flushCh <- struct{}{}:
		default:
		}
	}

	return nil
}

func (*service) Enabled() bool {
	return true
}

// Close flushes what is buffered and closes the repository
func (s *service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.shutdown)
	<-s.done

	if err := s.repo.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}

	s.log.Info().Msg("Metrics repository closed gracefully")
	return nil
}

func (s *service) flusher() {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.BatchTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.flush()
		case <-s.flushCh:
			s.flush()
		case <-s.shutdown:
			s.flush()
			return
		}
	}
}

func (s *service) flush() {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return
	}
	batch := make([]telemetry.Snapshot, len(s.buffer))
	copy(batch, s.buffer)
	s.buffer = s.buffer[:0]
	dropped := s.dropped
	s.dropped = 0
	s.mu.Unlock()

	if dropped > 0 {
		s.log.Warn().Int("dropped", dropped).Msg("Metrics buffer overflowed")
	}

	if err := s.repo.Store(batch); err != nil {
		s.log.Error().Err(err).Int("records", len(batch)).Msg("Failed to flush snapshots")
	}
}

// No-op implementation
func (*noopRecorder) Record(context.Context, telemetry.Snapshot) error {
	return nil
}

func (*noopRecorder) Close() error {
	return nil
}

func (*noopRecorder) Enabled() bool {
	return false
}
