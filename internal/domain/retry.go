package domain

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

// nonRetryableMarkers are validation-style failure messages that a retry
// can never fix.
var nonRetryableMarkers = []string{"invalid", "malformed", "unsupported"}

// retryableMarkers are transient transport failures worth another attempt.
var retryableMarkers = []string{"timeout", "timed out", "connection", "socket", "broken pipe", "i/o", "eof", "temporarily unavailable"}

// Retryable classifies a pipeline failure. Validation errors are
// permanent; transport errors and anything unclassified are retryable,
// so a flaky dependency never terminates a job prematurely.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInvalidArgument) || errors.Is(err, ErrSchemaInvalid) || errors.Is(err, ErrNotFound) {
		return false
	}
	if errors.Is(err, ErrUpstreamTimeout) || errors.Is(err, ErrUpstreamRateLimit) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range nonRetryableMarkers {
		if strings.Contains(msg, m) {
			return false
		}
	}
	for _, m := range retryableMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return true
}

// NextBackoff computes the retry visibility delay: base * 2^retryCount,
// capped at maxDelay.
func NextBackoff(retryCount int, base, maxDelay time.Duration) time.Duration {
	d := base
	for i := 0; i < retryCount; i++ {
		d *= 2
		if d >= maxDelay {
			return maxDelay
		}
	}
	if d > maxDelay {
		return maxDelay
	}
	return d
}
