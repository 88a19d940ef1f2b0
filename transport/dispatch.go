package transport

import (
	"errors"

	"go.uber.org/zap"

	runtime "github.com/benjaminabbitt/angzarr-runtime"
	"github.com/benjaminabbitt/angzarr-runtime/observability"
)

// DispatchFields is the structured identity of one dispatch operation: the
// component/kind/type_url/domain/correlation_id fields §10.2 requires on
// every log line a dispatch produces.
type DispatchFields struct {
	Component     string
	Kind          string
	TypeURL       string
	Domain        string
	CorrelationID string
}

func (f DispatchFields) logFields() []zap.Field {
	fields := observability.ComponentFields(f.Kind, f.Component)
	return append(fields,
		zap.String("type_url", f.TypeURL),
		zap.String("domain", f.Domain),
		zap.String("correlation_id", f.CorrelationID),
	)
}

// Dispatch wraps one engine call with the ambient logging and metrics
// contract §10.2/§10.3 describe: an Info log at entry, a
// angzarr_dispatch_total/angzarr_dispatch_duration_seconds observation around
// the call, and an Info log at exit — or, when call fails with an
// Internal-class error, an Error log carrying the error instead. The engine
// itself never sees logger or fields; this wrapping lives entirely at the
// transport boundary, never inside the pure runtime package.
func Dispatch(logger *zap.Logger, fields DispatchFields, call func() error) error {
	logFields := fields.logFields()
	logger.Info("dispatch started", logFields...)

	timer := observability.NewTimer(fields.Component, fields.Kind)
	err := call()
	outcome := outcomeOf(err)
	timer.Stop(outcome)

	if outcome == observability.OutcomeInternalError && err != nil {
		logger.Error("dispatch failed", append(logFields, zap.Error(err))...)
	} else {
		logger.Info("dispatch finished", append(logFields, zap.String("outcome", outcome))...)
	}
	return err
}

// outcomeOf maps an error to the outcome label §10.3 records it under,
// mirroring ToStatus's error-kind taxonomy exactly.
func outcomeOf(err error) string {
	if err == nil {
		return observability.OutcomeSuccess
	}

	var rejected *runtime.CommandRejectedError
	if errors.As(err, &rejected) {
		return observability.OutcomeRejected
	}

	var invalid *runtime.InvalidArgumentError
	if errors.As(err, &invalid) {
		return observability.OutcomeInvalidArg
	}

	var unsupported *runtime.UnsupportedOperationError
	if errors.As(err, &unsupported) {
		return observability.OutcomeUnsupported
	}

	return observability.OutcomeInternalError
}
