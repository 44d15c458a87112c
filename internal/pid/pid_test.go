package pid_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"codeberg.org/mutker/telemetrylab/internal/errors"
	"codeberg.org/mutker/telemetrylab/internal/pid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")

	require.NoError(t, pid.WriteFile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(content))

	// Rewriting our own PID file is allowed
	require.NoError(t, pid.WriteFile(path))
}

func TestWriteFileStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")

	cmd := exec.Command("true")
	require.NoError(t, cmd.Run())
	stale := cmd.Process.Pid

	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(stale)), 0o600))
	require.NoError(t, pid.WriteFile(path))

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))
	require.NoError(t, pid.WriteFile(path))
}

func TestWriteFileAlreadyRunning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")

	cmd := exec.Command("sleep", "10")
	require.NoError(t, cmd.Start())
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})

	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(cmd.Process.Pid)), 0o600))

	err := pid.WriteFile(path)
	require.Error(t, err)
	assert.Equal(t, errors.ErrAlreadyRunning, errors.CodeOf(err))
}

func TestRemoveFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")

	require.NoError(t, pid.RemoveFile(path), "missing file")

	require.NoError(t, pid.WriteFile(path))
	require.NoError(t, pid.RemoveFile(path))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
