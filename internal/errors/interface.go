package errors

// ErrorCode identifies a failure class. Codes are stable strings suitable
// for log fields.
type ErrorCode string

// Error is a coded error. Values are immutable: the With* methods return
// a copy.
type Error interface {
	error
	Code() ErrorCode
	Data() any
	WithMessage(msg string) Error
	WithData(data any) Error
	Unwrap() error
}

// Factory builds coded errors
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, cause error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}
