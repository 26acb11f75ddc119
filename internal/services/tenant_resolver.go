package services

import (
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/curriculum-orchestrator/internal/data/repos"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/dbctx"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
)

type TenancyConfig struct {
	DefaultSlug    string `koanf:"default_slug"`
	VerifyExplicit bool   `koanf:"verify_explicit"`
}

// TenantResolver picks the tenant a generation run is scoped to: an explicit
// id first, then the caller's selected tenant, then the default tenant.
type TenantResolver interface {
	Resolve(dbc dbctx.Context, explicitTenantID string, callerID uuid.UUID) (uuid.UUID, error)
}

type tenantResolver struct {
	log      *logger.Logger
	tenants  repos.TenantRepo
	selected repos.UserTenantRepo
	cfg      TenancyConfig
}

func NewTenantResolver(baseLog *logger.Logger, tenants repos.TenantRepo, selected repos.UserTenantRepo, cfg TenancyConfig) TenantResolver {
	if strings.TrimSpace(cfg.DefaultSlug) == "" {
		cfg.DefaultSlug = "default"
	}
	return &tenantResolver{
		log:      baseLog.With("service", "TenantResolver"),
		tenants:  tenants,
		selected: selected,
		cfg:      cfg,
	}
}

func (r *tenantResolver) Resolve(dbc dbctx.Context, explicitTenantID string, callerID uuid.UUID) (uuid.UUID, error) {
	if explicit := strings.TrimSpace(explicitTenantID); explicit != "" {
		id, err := uuid.Parse(explicit)
		if err != nil || id == uuid.Nil {
			return uuid.Nil, &TenantResolutionError{Reason: "invalid tenant id " + explicit, Err: err}
		}
		if !r.cfg.VerifyExplicit {
			return id, nil
		}
		t, err := r.tenants.GetByID(dbc, id)
		if err != nil {
			return uuid.Nil, &TenantResolutionError{Reason: "lookup tenant", Err: err}
		}
		if t == nil || !t.Active {
			return uuid.Nil, &TenantResolutionError{Reason: "unknown or inactive tenant " + explicit}
		}
		return id, nil
	}

	if callerID != uuid.Nil && r.selected != nil {
		id, err := r.selected.GetSelected(dbc, callerID)
		if err != nil {
			return uuid.Nil, &TenantResolutionError{Reason: "lookup selected tenant", Err: err}
		}
		if id != uuid.Nil {
			return id, nil
		}
	}

	t, err := r.tenants.GetBySlug(dbc, r.cfg.DefaultSlug)
	if err != nil {
		return uuid.Nil, &TenantResolutionError{Reason: "lookup default tenant", Err: err}
	}
	if t == nil || !t.Active {
		r.log.Warn("No tenant could be resolved", "caller_id", callerID, "default_slug", r.cfg.DefaultSlug)
		return uuid.Nil, &TenantResolutionError{Reason: "no tenant selected and no default tenant " + r.cfg.DefaultSlug}
	}
	return t.ID, nil
}
