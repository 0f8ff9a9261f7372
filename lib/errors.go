package lib

import (
	"context"
	"errors"
	"net"

	"github.com/gravitational/trace"
)

// IsCanceled reports whether the error is a context cancellation.
func IsCanceled(err error) bool {
	return errors.Is(trace.Unwrap(err), context.Canceled)
}

// IsDeadline reports whether the error is a context deadline or a network timeout.
func IsDeadline(err error) bool {
	err = trace.Unwrap(err)
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
