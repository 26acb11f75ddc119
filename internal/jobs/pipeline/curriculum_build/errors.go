package curriculum_build

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	types "github.com/yungbote/curriculum-orchestrator/internal/domain"
	"github.com/yungbote/curriculum-orchestrator/internal/generation"
)

// EmptyTenantError means the tenant has no faculties to walk.
type EmptyTenantError struct {
	TenantID uuid.UUID
}

func (e *EmptyTenantError) Error() string {
	return fmt.Sprintf("No faculties found for tenant %s", e.TenantID)
}

const (
	CodeEmptyTenant         = "empty_tenant"
	CodeProviderFatal       = "provider_fatal"
	CodeProviderUnavailable = "provider_unavailable"
	CodePersistence         = "persistence_error"
	CodeTenantMismatch      = "tenant_mismatch"
	CodeInternal            = "internal_error"
)

// unitError ties a failure to the unit being produced.
type unitError struct {
	unit string
	code string
	err  error
}

func (e *unitError) Error() string { return e.unit + ": " + e.err.Error() }
func (e *unitError) Unwrap() error { return e.err }

func providerFailure(unit string, err error) error {
	code := CodeProviderFatal
	if generation.IsTransient(err) {
		code = CodeProviderUnavailable
	}
	return &unitError{unit: unit, code: code, err: err}
}

func persistenceFailure(unit string, err error) error {
	return &unitError{unit: unit, code: CodePersistence, err: err}
}

func errorInfo(err error) types.RunErrorInfo {
	var ue *unitError
	if errors.As(err, &ue) {
		return types.RunErrorInfo{Code: ue.code, Message: ue.err.Error(), Unit: ue.unit}
	}
	var ee *EmptyTenantError
	if errors.As(err, &ee) {
		return types.RunErrorInfo{Code: CodeEmptyTenant, Message: ee.Error()}
	}
	return types.RunErrorInfo{Code: CodeInternal, Message: err.Error()}
}
