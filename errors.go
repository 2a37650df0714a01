package mailindex

import (
	"errors"
	"fmt"

	"github.com/rbaliyan/mailindex/engine"
)

// Sentinel errors.
var (
	// ErrCreationFailed is returned when the engine hands back the null
	// handle from a constructor.
	ErrCreationFailed = errors.New("mailindex: resource creation failed")
	// ErrOperationFailed is the target of errors.Is for every
	// *OperationError.
	ErrOperationFailed = errors.New("mailindex: engine operation failed")
	ErrNotFound        = errors.New("mailindex: not found")
	ErrEngineRequired  = errors.New("mailindex: engine is required")
)

// OperationError reports a non-success engine status.
type OperationError struct {
	Op     string
	Status engine.Status
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("mailindex: %s: %s", e.Op, e.Status)
}

func (e *OperationError) Unwrap() error {
	return ErrOperationFailed
}

// StatusOf returns the engine status carried by err, or StatusSuccess when
// err is not an *OperationError.
func StatusOf(err error) engine.Status {
	var oe *OperationError
	if errors.As(err, &oe) {
		return oe.Status
	}
	return engine.StatusSuccess
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// MisuseError is the panic value raised when a resource is used outside
// its ownership rules: after destruction, through a released token, or
// while borrows are outstanding. It is never returned.
type MisuseError struct {
	Kind   string // resource kind, e.g. "query"
	Op     string // operation that detected the misuse
	Reason string
}

func (e *MisuseError) Error() string {
	return fmt.Sprintf("mailindex: %s %s: %s", e.Kind, e.Op, e.Reason)
}

func misuse(kind, op, reason string) *MisuseError {
	return &MisuseError{Kind: kind, Op: op, Reason: reason}
}

// EventPublishError is returned when a tag mutation succeeded but its
// event could not be published. Only returned with WithEventErrorsFatal.
type EventPublishError struct {
	Event     string // event name, e.g. "TagAdded"
	MessageID string
	Tag       string
	Err       error
}

func (e *EventPublishError) Error() string {
	return fmt.Sprintf("mailindex: event %s publish failed for message %s tag %q: %v", e.Event, e.MessageID, e.Tag, e.Err)
}

func (e *EventPublishError) Unwrap() error {
	return e.Err
}

// IsEventPublishError checks if the error is an event publish error and returns details.
func IsEventPublishError(err error) (*EventPublishError, bool) {
	var epe *EventPublishError
	if errors.As(err, &epe) {
		return epe, true
	}
	return nil, false
}
