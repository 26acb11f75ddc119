package curriculum

import (
	"errors"

	"github.com/google/uuid"
)

var (
	ErrMissingTenant = errors.New("tenant id required")
	ErrMissingParent = errors.New("parent id required")
)

func checkScope(tenantID, parentID uuid.UUID) error {
	if tenantID == uuid.Nil {
		return ErrMissingTenant
	}
	if parentID == uuid.Nil {
		return ErrMissingParent
	}
	return nil
}
