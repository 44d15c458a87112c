package power

import "codeberg.org/mutker/telemetrylab/internal/errors"

const (
	ErrInvalidMode   = errors.ErrorCode("power_invalid_mode")
	ErrReadSupply    = errors.ErrorCode("power_read_supply_failed")
	ErrParseCapacity = errors.ErrorCode("power_parse_capacity_failed")
)
