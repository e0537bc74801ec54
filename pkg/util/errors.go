// Package util provides logging, common error types, and IPv4 helpers.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the synthesis and diff pipeline
var (
	ErrInvalidIntent         = errors.New("invalid intent")
	ErrAddressConflict       = errors.New("address conflict")
	ErrAddressSpaceExhausted = errors.New("address space exhausted")
	ErrInterfaceConflict     = errors.New("interface conflict")
	ErrInterfaceExhausted    = errors.New("interface pool exhausted")
	ErrMalformedConfig       = errors.New("malformed configuration")
	ErrNotConnected          = errors.New("console not connected")
	ErrNotFound              = errors.New("resource not found")
)

// AllocationError reports an allocator failure with enough context to fix
// the intent file (AS number and the link endpoints involved).
type AllocationError struct {
	ASNumber  int
	Endpoints [2]string
	Detail    string
	Kind      error // ErrAddressConflict or ErrAddressSpaceExhausted
}

func (e *AllocationError) Error() string {
	if e.Endpoints[0] == "" && e.Endpoints[1] == "" {
		return fmt.Sprintf("AS %d: %s: %s", e.ASNumber, e.Kind, e.Detail)
	}
	return fmt.Sprintf("AS %d, link %s-%s: %s: %s",
		e.ASNumber, e.Endpoints[0], e.Endpoints[1], e.Kind, e.Detail)
}

func (e *AllocationError) Unwrap() error {
	return e.Kind
}

// NewAllocationError creates an allocation error for a link between two routers
func NewAllocationError(kind error, asNumber int, local, remote, detail string) *AllocationError {
	return &AllocationError{
		ASNumber:  asNumber,
		Endpoints: [2]string{local, remote},
		Detail:    detail,
		Kind:      kind,
	}
}

// IntentError represents one or more intent validation failures
type IntentError struct {
	Errors []string
}

func (e *IntentError) Error() string {
	if len(e.Errors) == 1 {
		return "invalid intent: " + e.Errors[0]
	}
	return fmt.Sprintf("invalid intent:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *IntentError) Unwrap() error {
	return ErrInvalidIntent
}

// ValidationBuilder helps accumulate intent validation errors
type ValidationBuilder struct {
	errors []string
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the accumulated IntentError, or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &IntentError{Errors: v.errors}
}
