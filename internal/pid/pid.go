package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"codeberg.org/mutker/telemetrylab/internal/errors"
)

const (
	pidFile = "telemetrylab.pid"
)

// Path returns the default PID file location
func Path() string {
	return filepath.Join(os.TempDir(), pidFile)
}

// Write writes the current process ID to the default PID file.
func Write() error {
	return WriteFile(Path())
}

// Remove removes the default PID file.
func Remove() error {
	return RemoveFile(Path())
}

// WriteFile writes the current process ID to path. It fails with
// ErrAlreadyRunning when path names another live process.
func WriteFile(path string) error {
	errFactory := errors.New()

	if owner, ok, err := read(path); err != nil {
		return err
	} else if ok && owner != os.Getpid() && alive(owner) {
		return errFactory.WithData(errors.ErrAlreadyRunning, owner)
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// RemoveFile removes the PID file at path. A missing file is not an error.
func RemoveFile(path string) error {
	errFactory := errors.New()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

func read(path string) (int, bool, error) {
	errFactory := errors.New()

	bytes, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errFactory.Wrap(errors.ErrInternal, err)
	}

	// A corrupt file is treated as stale
	pid, err := strconv.Atoi(strings.TrimSpace(string(bytes)))
	if err != nil || pid <= 0 {
		return 0, false, nil
	}

	return pid, true, nil
}

func alive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
