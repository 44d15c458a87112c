package host_test

import (
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/telemetrylab/internal/host"
	"codeberg.org/mutker/telemetrylab/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusLog struct {
	mu       sync.Mutex
	statuses []host.Status
}

func (s *statusLog) add(st host.Status) {
	s.mu.Lock()
	s.statuses = append(s.statuses, st)
	s.mu.Unlock()
}

func (s *statusLog) snapshot() []host.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]host.Status(nil), s.statuses...)
}

func TestForegroundReportsWhileActive(t *testing.T) {
	log := &statusLog{}
	fg, err := host.NewForeground(5*time.Millisecond, logger.Nop(), host.WithNotify(log.add))
	require.NoError(t, err)

	require.NoError(t, fg.RequestStart(3, 20))
	assert.True(t, fg.Status().Active)
	assert.Equal(t, 20, fg.Status().FrameRateHz)

	require.Eventually(t, func() bool { return len(log.snapshot()) >= 3 }, 2*time.Second, time.Millisecond)

	require.NoError(t, fg.RequestStop())
	assert.False(t, fg.Status().Active)

	statuses := log.snapshot()
	last := statuses[len(statuses)-1]
	assert.False(t, last.Active, "stop publishes an inactive status")
	for _, st := range statuses[:len(statuses)-1] {
		assert.True(t, st.Active)
		assert.Equal(t, 3, st.Intensity)
		assert.Positive(t, st.RSSBytes)
	}

	count := len(statuses)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, log.snapshot(), count, "no reports after stop")
}

func TestForegroundStopWithoutStart(t *testing.T) {
	fg, err := host.NewForeground(time.Second, logger.Nop())
	require.NoError(t, err)

	assert.NoError(t, fg.RequestStop())
	assert.False(t, fg.Status().Active)
}

func TestForegroundRestartReplacesParameters(t *testing.T) {
	fg, err := host.NewForeground(time.Hour, logger.Nop())
	require.NoError(t, err)

	require.NoError(t, fg.RequestStart(2, 20))
	require.NoError(t, fg.RequestStart(1, 10))
	assert.Equal(t, 10, fg.Status().FrameRateHz)
	assert.Equal(t, 1, fg.Status().Intensity)

	require.NoError(t, fg.RequestStop())
}

func TestNoop(t *testing.T) {
	var h host.Host = host.Noop{}
	assert.NoError(t, h.RequestStart(1, 10))
	assert.NoError(t, h.RequestStop())
}
