package errors

import (
	"context"
	stderrors "errors"
)

// Coded is implemented by errors that carry an ErrorCode.
type Coded interface {
	error
	Code() ErrorCode
}

// CodeOf returns the code of the first Coded error in err's chain.
// Context cancellation and deadline errors map to CodeTimeout.
// A nil error has no code and yields the empty string.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}

	var coded Coded
	if stderrors.As(err, &coded) {
		return coded.Code()
	}

	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return CodeTimeout
	}

	return CodeUnknown
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// IsRetryable reports whether failures with this code may succeed when the
// whole operation is repeated.
func IsRetryable(code ErrorCode) bool {
	switch code {
	case CodeConflict, CodeNetwork, CodeTimeout, CodeUnavailable:
		return true
	default:
		return false
	}
}
