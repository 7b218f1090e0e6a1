package servient

import (
	"fmt"
	"time"

	"github.com/linksmart/wot-servient/wot"
)

// Not Found (unknown interaction, Thing, handler or discovery method)
type NotFoundError struct{ s string }

func (e *NotFoundError) Error() string { return e.s }

// Already Exists (duplicate interaction name or Thing id)
type AlreadyExistsError struct{ s string }

func (e *AlreadyExistsError) Error() string { return e.s }

// Not Allowed (write to read-only property, observe of non-observable property, mutation after destroy)
type NotAllowedError struct{ s string }

func (e *NotAllowedError) Error() string { return e.s }

// SchemaViolationError is returned when a payload or a definition does not conform to its DataSchema
type SchemaViolationError struct {
	Kind InteractionKind
	Name string
	Err  *wot.SchemaError
}

func (e *SchemaViolationError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("schema violation: %s", e.Err)
	}
	return fmt.Sprintf("schema violation in %s %s: %s", e.Kind, e.Name, e.Err)
}

func (e *SchemaViolationError) Unwrap() error { return e.Err }

// HandlerError wraps the failure of a user supplied handler
type HandlerError struct {
	Kind InteractionKind
	Name string
	Err  error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler of %s %s failed: %s", e.Kind, e.Name, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// DestroyedError is returned for requests to a destroyed ExposedThing
type DestroyedError struct{ ThingID string }

func (e *DestroyedError) Error() string { return fmt.Sprintf("thing %s is destroyed", e.ThingID) }

// CancelledError is returned when the caller's context ended before the request was executed
type CancelledError struct{ Err error }

func (e *CancelledError) Error() string { return fmt.Sprintf("request cancelled: %s", e.Err) }

func (e *CancelledError) Unwrap() error { return e.Err }

// DiscoveryTimeoutError ends a discovery whose filter timeout elapsed
type DiscoveryTimeoutError struct{ Timeout time.Duration }

func (e *DiscoveryTimeoutError) Error() string {
	return fmt.Sprintf("discovery timed out after %s", e.Timeout)
}

func notFound(format string, a ...any) error {
	return &NotFoundError{fmt.Sprintf(format, a...)}
}

func notAllowed(format string, a ...any) error {
	return &NotAllowedError{fmt.Sprintf(format, a...)}
}

func schemaViolation(kind InteractionKind, name string, err error) error {
	if se, ok := err.(*wot.SchemaError); ok {
		return &SchemaViolationError{Kind: kind, Name: name, Err: se}
	}
	return &SchemaViolationError{Kind: kind, Name: name, Err: &wot.SchemaError{Reason: err.Error()}}
}
