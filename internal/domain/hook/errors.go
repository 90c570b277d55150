package hook

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInstantiation is returned when a handler instance cannot be constructed
	ErrInstantiation = errors.New("handler instantiation failed")

	// ErrUnknownHandler is returned by factories asked for an id they do not know
	ErrUnknownHandler = fmt.Errorf("%w: unknown handler", ErrInstantiation)

	// ErrInvocation wraps errors returned by a handler method
	ErrInvocation = errors.New("handler invocation failed")

	// ErrHandlerPanic marks a recovered panic inside a handler
	ErrHandlerPanic = fmt.Errorf("%w: panic", ErrInvocation)

	// ErrInvalidDefinition is returned when a definition fails validation at registration
	ErrInvalidDefinition = errors.New("invalid handler definition")

	// ErrCatalogFrozen is returned when registering into a frozen catalog
	ErrCatalogFrozen = errors.New("catalog is frozen")
)

// Mode identifies the dispatch mode a handler was called in
type Mode string

const (
	ModeInvoke    Mode = "invoke"
	ModeInvokeAll Mode = "invoke_all"
	ModeAlter     Mode = "alter"
)

// String returns the string representation of the mode
func (m Mode) String() string {
	return string(m)
}

// Failure describes a handler that failed during dispatch.
// Failures never reach the caller of the dispatcher; they are reported to
// observers only.
type Failure struct {
	HandlerID string    `json:"handler_id"`
	Event     string    `json:"event"`
	Mode      Mode      `json:"mode"`
	Err       error     `json:"-"`
	At        time.Time `json:"at"`
}

// Message returns the failure message, or an empty string if there is no error
func (f Failure) Message() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}
