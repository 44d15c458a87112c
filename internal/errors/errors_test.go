package errors_test

import (
	stderrors "errors"
	"testing"

	"codeberg.org/mutker/telemetrylab/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryNew(t *testing.T) {
	err := errors.New().New(errors.ErrInvalidConfig)

	assert.Equal(t, errors.ErrInvalidConfig, err.Code())
	assert.Equal(t, "Invalid configuration (invalid_configuration)", err.Error())
	assert.NoError(t, err.Unwrap())
}

func TestFactoryWrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := errors.New().Wrap(errors.ErrTaskFailed, cause)

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "task_failed")
}

func TestWithMessageKeepsCode(t *testing.T) {
	err := errors.New().New(errors.ErrReadConfig).WithMessage("cannot parse")

	assert.Equal(t, errors.ErrReadConfig, err.Code())
	assert.Equal(t, "cannot parse (read_config_failed)", err.Error())
}

func TestWithData(t *testing.T) {
	err := errors.New().WithData(errors.ErrInvalidConfig, "intensity out of range")

	assert.Equal(t, "intensity out of range", err.Data())
	assert.Contains(t, err.Error(), "intensity out of range")
}

func TestIsMatchesCode(t *testing.T) {
	factory := errors.New()
	err := factory.Wrap(errors.ErrTimeout, stderrors.New("deadline"))

	assert.ErrorIs(t, err, factory.New(errors.ErrTimeout))
	assert.NotErrorIs(t, err, factory.New(errors.ErrInternal))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, errors.ErrAlreadyRunning, errors.CodeOf(errors.New().New(errors.ErrAlreadyRunning)))
	assert.Equal(t, errors.ErrInternal, errors.CodeOf(stderrors.New("plain")))
}

func TestGetErrorMessageFallsBackToCode(t *testing.T) {
	assert.Equal(t, "custom_code", errors.GetErrorMessage(errors.ErrorCode("custom_code")))
}

func TestApplicationCodesHaveMessages(t *testing.T) {
	codes := []errors.ErrorCode{
		errors.ErrInitApp,
		errors.ErrMainLoop,
		errors.ErrHostRequest,
		errors.ErrDashboardExit,
		errors.ErrTaskFailed,
	}

	for _, code := range codes {
		assert.NotEqual(t, string(code), errors.GetErrorMessage(code), code)
	}

	err := errors.New().Wrap(errors.ErrMainLoop, stderrors.New("dashboard crashed"))
	assert.Equal(t, "Error in main loop (main_loop_failed): dashboard crashed", err.Error())
}
