// Package runctx holds the channel helpers shared by the viewer goroutines
// and the UI front ends.
package runctx

import (
	"context"

	"liveconnect/internal/logging"
)

func mustLogger(op string, logger *logging.Logger) {
	if logger == nil {
		panic("runctx." + op + ": logger must not be nil")
	}
}

// RecvOrDone receives the next value from in. ok is false once ctx is done
// or in is closed; the stop reason is logged at debug level under name.
func RecvOrDone[T any](ctx context.Context, name string, logger *logging.Logger, in <-chan T) (value T, ok bool) {
	mustLogger("RecvOrDone", logger)
	select {
	case value, ok = <-in:
		if !ok {
			logger.Debug(name+" stopped", logging.Field("reason", "input closed"))
		}
		return value, ok
	case <-ctx.Done():
		logger.Debug(name+" stopped", logging.Field("reason", "context done"), logging.Field("error", ctx.Err()))
		return value, false
	}
}

// SendOrDone blocks until value is delivered or ctx is done.
func SendOrDone[T any](ctx context.Context, name string, logger *logging.Logger, out chan<- T, value T) bool {
	mustLogger("SendOrDone", logger)
	select {
	case out <- value:
		return true
	case <-ctx.Done():
		logger.Debug(name+" dropped value", logging.Field("reason", "context done"), logging.Field("error", ctx.Err()))
		return false
	}
}

// SendLatest never blocks: when ch is full the oldest buffered value is
// discarded to make room. ch must be buffered.
func SendLatest[T any](ch chan T, value T) {
	for {
		select {
		case ch <- value:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
