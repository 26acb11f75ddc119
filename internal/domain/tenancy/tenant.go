package tenancy

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tenant is an isolated organization. Tenants are provisioned by operators
// and are never created or removed by a generation run.
type Tenant struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Slug      string    `gorm:"column:slug;not null;uniqueIndex" json:"slug"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Active    bool      `gorm:"column:active;not null;default:true" json:"active"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Tenant) TableName() string { return "tenant" }

func (t *Tenant) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// UserTenant records the tenant a user currently has selected.
type UserTenant struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (UserTenant) TableName() string { return "user_tenant" }
