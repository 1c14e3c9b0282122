package telemetry

import (
	"context"
	stderrors "errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/loomlab/loom/pkg/errors"
)

// ErrorMetrics tracks error rates and recovery patterns.
type ErrorMetrics struct {
	errorCounter    metric.Int64Counter
	recoveryCounter metric.Int64Counter
}

// NewErrorMetrics creates an error metrics tracker on the global meter
// provider.
func NewErrorMetrics() (*ErrorMetrics, error) {
	meter := otel.Meter("loom/errors")

	errorCounter, err := meter.Int64Counter(
		"loom.errors.total",
		metric.WithDescription("Total errors by code and component"),
	)
	if err != nil {
		return nil, err
	}

	recoveryCounter, err := meter.Int64Counter(
		"loom.errors.recovered",
		metric.WithDescription("Successful error recoveries by code"),
	)
	if err != nil {
		return nil, err
	}

	return &ErrorMetrics{
		errorCounter:    errorCounter,
		recoveryCounter: recoveryCounter,
	}, nil
}

// RecordError increments the error counter for the given error and
// component. Non-Loom errors are counted under the UNKNOWN code.
func (em *ErrorMetrics) RecordError(ctx context.Context, err error, component string) {
	if em == nil || err == nil {
		return
	}
	code := "UNKNOWN"
	recoverable := "unknown"
	var le *errors.LoomError
	if stderrors.As(err, &le) {
		code = string(le.Code)
		recoverable = le.RecoverableString()
	}
	em.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error.code", code),
		attribute.String("component", component),
		attribute.String("recoverable", recoverable),
	))
}

// RecordRecovery increments the recovery counter for the given code.
func (em *ErrorMetrics) RecordRecovery(ctx context.Context, code errors.ErrorCode, component string) {
	if em == nil {
		return
	}
	em.recoveryCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error.code", string(code)),
		attribute.String("component", component),
	))
}
