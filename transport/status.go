package transport

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	runtime "github.com/benjaminabbitt/angzarr-runtime"
)

// ToStatus maps a runtime error to the gRPC status §11 assigns it, prefixing
// the message with the error kind — the kind prefix is added here, at the
// transport boundary, never by the engines themselves, which return plain
// error values.
// ConfigurationError is deliberately absent: it can only occur during
// component construction, before any listener exists to return a status
// from.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}

	var rejected *runtime.CommandRejectedError
	if errors.As(err, &rejected) {
		return status.Error(codes.FailedPrecondition, "command_rejected: "+rejected.Error())
	}

	var invalid *runtime.InvalidArgumentError
	if errors.As(err, &invalid) {
		return status.Error(codes.InvalidArgument, "invalid_argument: "+invalid.Error())
	}

	var unsupported *runtime.UnsupportedOperationError
	if errors.As(err, &unsupported) {
		return status.Error(codes.Unimplemented, "unsupported_operation: "+unsupported.Error())
	}

	return status.Error(codes.Internal, "internal: "+err.Error())
}
