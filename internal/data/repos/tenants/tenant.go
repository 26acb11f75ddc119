package tenants

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/curriculum-orchestrator/internal/data/db"
	types "github.com/yungbote/curriculum-orchestrator/internal/domain"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/dbctx"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
)

type TenantRepo interface {
	Create(dbc dbctx.Context, tenant *types.Tenant) (*types.Tenant, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Tenant, error)
	GetBySlug(dbc dbctx.Context, slug string) (*types.Tenant, error)
	List(dbc dbctx.Context) ([]*types.Tenant, error)
}

type tenantRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTenantRepo(db *gorm.DB, baseLog *logger.Logger) TenantRepo {
	return &tenantRepo{db: db, log: baseLog.With("repo", "TenantRepo")}
}

func (r *tenantRepo) Create(dbc dbctx.Context, tenant *types.Tenant) (*types.Tenant, error) {
	if tenant == nil {
		return nil, errors.New("nil tenant")
	}
	tenant.Slug = strings.TrimSpace(tenant.Slug)
	if tenant.Slug == "" {
		return nil, errors.New("tenant slug required")
	}
	if err := dbc.DB(r.db).Create(tenant).Error; err != nil {
		return nil, db.Duplicate(err, "tenant "+tenant.Slug)
	}
	return tenant, nil
}

// GetByID returns nil, nil when no tenant matches.
func (r *tenantRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Tenant, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.Tenant
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *tenantRepo) GetBySlug(dbc dbctx.Context, slug string) (*types.Tenant, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, nil
	}
	var out types.Tenant
	if err := dbc.DB(r.db).Where("slug = ?", slug).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *tenantRepo) List(dbc dbctx.Context) ([]*types.Tenant, error) {
	var out []*types.Tenant
	if err := dbc.DB(r.db).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type UserTenantRepo interface {
	GetSelected(dbc dbctx.Context, userID uuid.UUID) (uuid.UUID, error)
	Select(dbc dbctx.Context, userID, tenantID uuid.UUID) error
}

type userTenantRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserTenantRepo(db *gorm.DB, baseLog *logger.Logger) UserTenantRepo {
	return &userTenantRepo{db: db, log: baseLog.With("repo", "UserTenantRepo")}
}

// GetSelected returns uuid.Nil when the user has not selected a tenant.
func (r *userTenantRepo) GetSelected(dbc dbctx.Context, userID uuid.UUID) (uuid.UUID, error) {
	if userID == uuid.Nil {
		return uuid.Nil, nil
	}
	var row types.UserTenant
	if err := dbc.DB(r.db).Where("user_id = ?", userID).Limit(1).Find(&row).Error; err != nil {
		return uuid.Nil, err
	}
	return row.TenantID, nil
}

func (r *userTenantRepo) Select(dbc dbctx.Context, userID, tenantID uuid.UUID) error {
	if userID == uuid.Nil || tenantID == uuid.Nil {
		return errors.New("user id and tenant id required")
	}
	row := types.UserTenant{UserID: userID, TenantID: tenantID, UpdatedAt: time.Now()}
	return dbc.DB(r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"tenant_id", "updated_at"}),
	}).Create(&row).Error
}
