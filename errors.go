package runtime

import "fmt"

// CommandRejectedError signals a business-rule violation raised by a user
// handler. It is never retried by the runtime and surfaces to the
// coordinator as a precondition failure.
type CommandRejectedError struct {
	Message string
}

func (e *CommandRejectedError) Error() string { return e.Message }

// NewCommandRejectedError constructs a CommandRejectedError with a
// formatted message.
func NewCommandRejectedError(format string, args ...any) *CommandRejectedError {
	return &CommandRejectedError{Message: fmt.Sprintf(format, args...)}
}

// InvalidArgumentError signals a malformed inbound request: an empty
// Command Book, an undecodable payload, or an unknown type_url at an
// aggregate.
type InvalidArgumentError struct {
	Message string
}

func (e *InvalidArgumentError) Error() string { return e.Message }

// NewInvalidArgumentError constructs an InvalidArgumentError with a
// formatted message.
func NewInvalidArgumentError(format string, args ...any) *InvalidArgumentError {
	return &InvalidArgumentError{Message: fmt.Sprintf(format, args...)}
}

// ConfigurationError is detected only at component construction: a
// duplicate dispatch key, a type-hint mismatch, or missing mandatory
// class-level metadata. A component that fails to construct never starts.
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

// NewConfigurationError constructs a ConfigurationError with a formatted
// message.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// UnsupportedOperationError signals a request kind a component does not
// implement, e.g. Replay called on a saga.
type UnsupportedOperationError struct {
	Message string
}

func (e *UnsupportedOperationError) Error() string { return e.Message }

// NewUnsupportedOperationError constructs an UnsupportedOperationError with
// a formatted message.
func NewUnsupportedOperationError(format string, args ...any) *UnsupportedOperationError {
	return &UnsupportedOperationError{Message: fmt.Sprintf(format, args...)}
}

// UnknownCommandError is the InvalidArgument-class error an Aggregate
// Engine raises when no command dispatch table entry matches an inbound
// command's type_url.
func UnknownCommandError(typeURL string) *InvalidArgumentError {
	return NewInvalidArgumentError("unknown command type: %s", typeURL)
}

// errNoCommandPages and errNilCommand are the two malformed-request shapes
// every aggregate entry point rejects before any command handler runs.
var (
	errNoCommandPages = &InvalidArgumentError{Message: "command book has no pages"}
	errNilCommand     = &InvalidArgumentError{Message: "command page has no envelope"}
)
