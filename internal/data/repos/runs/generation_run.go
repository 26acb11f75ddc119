package runs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/curriculum-orchestrator/internal/domain"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/dbctx"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
)

type GenerationRunRepo interface {
	Create(dbc dbctx.Context, run *types.GenerationRun) (*types.GenerationRun, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.GenerationRun, error)
	GetByIDForTenant(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.GenerationRun, error)
	GetLatestByTenant(dbc dbctx.Context, tenantID uuid.UUID) (*types.GenerationRun, error)
	ClaimNextQueued(dbc dbctx.Context) (*types.GenerationRun, error)
	Claim(dbc dbctx.Context, id uuid.UUID) (bool, error)
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error)
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
}

type generationRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGenerationRunRepo(db *gorm.DB, baseLog *logger.Logger) GenerationRunRepo {
	return &generationRunRepo{db: db, log: baseLog.With("repo", "GenerationRunRepo")}
}

func (r *generationRunRepo) Create(dbc dbctx.Context, run *types.GenerationRun) (*types.GenerationRun, error) {
	if run == nil {
		return nil, errors.New("nil run")
	}
	if run.TenantID == uuid.Nil {
		return nil, errors.New("run tenant id required")
	}
	if err := dbc.DB(r.db).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *generationRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.GenerationRun, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var run types.GenerationRun
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&run).Error; err != nil {
		return nil, err
	}
	if run.ID == uuid.Nil {
		return nil, nil
	}
	return &run, nil
}

func (r *generationRunRepo) GetByIDForTenant(dbc dbctx.Context, tenantID, id uuid.UUID) (*types.GenerationRun, error) {
	if tenantID == uuid.Nil || id == uuid.Nil {
		return nil, nil
	}
	var run types.GenerationRun
	if err := dbc.DB(r.db).Where("id = ? AND tenant_id = ?", id, tenantID).Limit(1).Find(&run).Error; err != nil {
		return nil, err
	}
	if run.ID == uuid.Nil {
		return nil, nil
	}
	return &run, nil
}

// GetLatestByTenant returns the tenant's newest run, or nil when it has none.
func (r *generationRunRepo) GetLatestByTenant(dbc dbctx.Context, tenantID uuid.UUID) (*types.GenerationRun, error) {
	if tenantID == uuid.Nil {
		return nil, nil
	}
	var run types.GenerationRun
	err := dbc.DB(r.db).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(1).
		Find(&run).Error
	if err != nil {
		return nil, err
	}
	if run.ID == uuid.Nil {
		return nil, nil
	}
	return &run, nil
}

// ClaimNextQueued moves the oldest queued run to running and returns it.
func (r *generationRunRepo) ClaimNextQueued(dbc dbctx.Context) (*types.GenerationRun, error) {
	now := time.Now()
	var claimed *types.GenerationRun
	err := dbc.DB(r.db).Transaction(func(txx *gorm.DB) error {
		var run types.GenerationRun
		qErr := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", types.RunStatusQueued).
			Order("created_at ASC").
			First(&run).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		res := txx.Model(&types.GenerationRun{}).
			Where("id = ? AND status = ?", run.ID, types.RunStatusQueued).
			Updates(map[string]interface{}{
				"status":       types.RunStatusRunning,
				"started_at":   now,
				"heartbeat_at": now,
				"updated_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		run.Status = types.RunStatusRunning
		run.StartedAt = &now
		run.HeartbeatAt = &now
		claimed = &run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Claim moves a specific queued run to running. It reports false when the
// run is missing or already claimed.
func (r *generationRunRepo) Claim(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	now := time.Now()
	res := dbc.DB(r.db).
		Model(&types.GenerationRun{}).
		Where("id = ? AND status = ?", id, types.RunStatusQueued).
		Updates(map[string]interface{}{
			"status":       types.RunStatusRunning,
			"started_at":   now,
			"heartbeat_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *generationRunRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	q := dbc.DB(r.db).Model(&types.GenerationRun{}).Where("id = ?", id)
	if len(disallowedStatuses) == 1 {
		q = q.Where("status <> ?", disallowedStatuses[0])
	} else if len(disallowedStatuses) > 1 {
		q = q.Where("status NOT IN ?", disallowedStatuses)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *generationRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	now := time.Now()
	return dbc.DB(r.db).
		Model(&types.GenerationRun{}).
		Where("id = ? AND status = ?", id, types.RunStatusRunning).
		Updates(map[string]interface{}{"heartbeat_at": now, "updated_at": now}).Error
}
