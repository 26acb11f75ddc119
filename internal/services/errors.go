package services

import (
	"errors"
	"fmt"
)

var ErrRunNotFound = errors.New("generation run not found")

// TenantResolutionError means no tenant could be determined for a trigger.
// No run row exists when it is returned.
type TenantResolutionError struct {
	Reason string
	Err    error
}

func (e *TenantResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tenant resolution failed: %s: %v", e.Reason, e.Err)
	}
	return "tenant resolution failed: " + e.Reason
}

func (e *TenantResolutionError) Unwrap() error { return e.Err }

// RunCreationError means the run row could not be inserted. Nothing was
// dispatched.
type RunCreationError struct {
	Err error
}

func (e *RunCreationError) Error() string { return "could not create generation run: " + e.Err.Error() }
func (e *RunCreationError) Unwrap() error { return e.Err }

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}
