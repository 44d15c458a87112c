package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Standard library helpers, re-exported so callers import a single package
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

type codedError struct {
	code  ErrorCode
	msg   string
	cause error
	data  any
}

func (e *codedError) Error() string {
	var b strings.Builder

	msg := e.msg
	if msg == "" {
		msg = GetErrorMessage(e.code)
	}
	fmt.Fprintf(&b, "%s (%s)", msg, e.code)

	// data describes the failure better than the cause when both are set
	switch {
	case e.data != nil:
		fmt.Fprintf(&b, ": %v", e.data)
	case e.cause != nil:
		fmt.Fprintf(&b, ": %v", e.cause)
	}

	return b.String()
}

func (e *codedError) Code() ErrorCode { return e.code }
func (e *codedError) Data() any       { return e.data }
func (e *codedError) Unwrap() error   { return e.cause }

func (e *codedError) WithMessage(msg string) Error {
	c := *e
	c.msg = msg
	return &c
}

func (e *codedError) WithData(data any) Error {
	c := *e
	c.data = data
	return &c
}

// Is matches any coded error with the same code
func (e *codedError) Is(target error) bool {
	var other Error
	return errors.As(target, &other) && other.Code() == e.code
}

type factory struct{}

// New returns the error Factory
func New() Factory {
	return factory{}
}

func (factory) New(code ErrorCode) Error {
	return &codedError{code: code}
}

func (factory) Wrap(code ErrorCode, cause error) Error {
	return &codedError{code: code, cause: cause}
}

func (factory) WithMessage(code ErrorCode, msg string) Error {
	return &codedError{code: code, msg: msg}
}

func (factory) WithData(code ErrorCode, data any) Error {
	return &codedError{code: code, data: data}
}

// CodeOf returns the code carried by err, or ErrInternal for foreign errors
func CodeOf(err error) ErrorCode {
	var coded Error
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return ErrInternal
}
