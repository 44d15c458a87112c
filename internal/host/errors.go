package host

import "codeberg.org/mutker/telemetrylab/internal/errors"

const (
	ErrProcessLookup = errors.ErrorCode("host_process_lookup_failed")
	ErrProcessStats  = errors.ErrorCode("host_process_stats_failed")
)
