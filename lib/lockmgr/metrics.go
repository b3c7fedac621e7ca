package lockmgr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// resultOf maps an operation error to the result label
func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrPrecondition):
		return "precondition"
	case errors.Is(err, ErrInvalidTTL):
		return "invalid_ttl"
	case errors.Is(err, ErrStorage):
		return "storage"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// observe records the result and duration of one engine operation
func observe(op string, start time.Time, err error) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`dlock_ops_total{op=%q,result=%q}`, op, resultOf(err))).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`dlock_op_duration_seconds{op=%q}`, op)).UpdateDuration(start)
}
