// Package notify routes finished check results: every result is
// logged, and failed results are either raised back to the caller or
// forwarded to a configured sink.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazz-dev/dataprobe/internal/check"
)

// Sink delivers a failed check's result to an external target.
type Sink interface {
	Name() string
	Send(ctx context.Context, res check.Result, sqlText string) error
}

// SinkDeliveryError wraps a sink failure. Delivery errors are
// surfaced, never suppressed.
type SinkDeliveryError struct {
	Sink string
	Err  error
}

func (e *SinkDeliveryError) Error() string {
	return fmt.Sprintf("%s sink delivery: %v", e.Sink, e.Err)
}

func (e *SinkDeliveryError) Unwrap() error {
	return e.Err
}

// Dispatcher logs every result and routes failures. A check holds at
// most one sink; when one is configured it absorbs the failure, when
// none is, Dispatch fails loudly with a *check.FailedError.
type Dispatcher struct {
	sink   Sink // nil when no sink is configured
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher. Pass nil sink for the default
// log-and-raise behavior, nil logger to use the default logger.
func NewDispatcher(sink Sink, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sink: sink, logger: logger}
}

// Dispatch logs the result record and, on failure, either returns a
// *check.FailedError (no sink) or forwards the record to the sink. A
// passing result produces only the log line.
func (d *Dispatcher) Dispatch(ctx context.Context, res check.Result, sqlText string) error {
	attrs := make([]any, 0, 14)
	for _, f := range res.Fields() {
		attrs = append(attrs, f.Name, f.Value)
	}
	d.logger.Info("check result", attrs...)

	if res.WithinThreshold {
		return nil
	}

	if d.sink == nil {
		return &check.FailedError{Result: res, SQL: sqlText}
	}

	d.logger.Info("forwarding failed check to sink",
		"check", res.CheckID,
		"sink", d.sink.Name(),
	)
	if err := d.sink.Send(ctx, res, sqlText); err != nil {
		return &SinkDeliveryError{Sink: d.sink.Name(), Err: err}
	}
	return nil
}
