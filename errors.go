package venice

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedEvent marks a stream event that was skipped. It is logged,
	// never returned to callers.
	ErrMalformedEvent = errors.New("venice: malformed stream event")

	// ErrNotComplete is returned by Finalize before the tool_calls signal.
	ErrNotComplete = errors.New("venice: tool calls not complete")

	// ErrFinalized is returned by Finalize when the calls were already taken.
	ErrFinalized = errors.New("venice: tool calls already finalized")

	// ErrInvalidArguments is wrapped by every ArgumentError.
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// UnknownToolError is reported when the model asks for a tool that is not
// registered.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %q", e.Name)
}

// ArgumentError is reported when tool arguments are not an object or do not
// satisfy the tool's parameter schema.
type ArgumentError struct {
	Tool   string
	Reason string
	Err    error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Reason)
}

func (e *ArgumentError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidArguments, e.Err}
	}
	return []error{ErrInvalidArguments}
}

// TransportError wraps a provider failure. It is the only error that aborts an
// exchange.
type TransportError struct {
	Phase State
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("venice: transport failed during %s: %v", e.Phase, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransportError reports whether err is or wraps a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
