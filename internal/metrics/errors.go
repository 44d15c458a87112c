package metrics

import "codeberg.org/mutker/telemetrylab/internal/errors"

const (
	ErrInvalidConfig    = errors.ErrInvalidConfig
	ErrInvalidDBPath    = errors.ErrorCode("metrics_invalid_db_path")
	ErrStorageInit      = errors.ErrInitFailed
	ErrStorageClose     = errors.ErrShutdownFailed
	ErrOperationTimeout = errors.ErrTimeout

	ErrSchema        = errors.ErrorCode("metrics_schema_failed")
	ErrTransaction   = errors.ErrorCode("metrics_transaction_failed")
	ErrServiceClosed = errors.ErrorCode("metrics_service_closed")
)

// phaseError is attached as data so logs show which step of a multi-step
// database operation failed
type phaseError struct {
	Phase  string `json:"phase"`
	Target string `json:"target,omitempty"`
	Err    string `json:"error"`
}

func (p phaseError) String() string {
	if p.Target != "" {
		return p.Phase + " " + p.Target + ": " + p.Err
	}
	return p.Phase + ": " + p.Err
}

func failed(code errors.ErrorCode, phase, target string, err error) errors.Error {
	return errors.New().WithData(code, phaseError{Phase: phase, Target: target, Err: err.Error()})
}
