package kamigaze

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// TransportError is returned for every failed kamigaze call or stream.
type TransportError struct {
	Method string
	Code   codes.Code
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("kamigaze %s failed (%s): %v", e.Method, e.Code, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Temporary reports whether retrying the call may succeed.
func (e *TransportError) Temporary() bool {
	switch e.Code { //nolint:exhaustive // everything else is permanent
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}

func transportError(method string, err error) error {
	if err == nil {
		return nil
	}
	code := status.Code(err)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		code = status.FromContextError(err).Code()
	}
	return &TransportError{Method: method, Code: code, Err: err}
}
