package curriculum

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/curriculum-orchestrator/internal/data/db"
	types "github.com/yungbote/curriculum-orchestrator/internal/domain"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/dbctx"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
)

type FacultyRepo interface {
	Create(dbc dbctx.Context, faculty *types.Faculty) (*types.Faculty, error)
	// ListByTenant returns faculties in creation order. A non-empty filter
	// is a comma separated list of slugs to keep.
	ListByTenant(dbc dbctx.Context, tenantID uuid.UUID, filter string) ([]*types.Faculty, error)
}

type facultyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewFacultyRepo(db *gorm.DB, baseLog *logger.Logger) FacultyRepo {
	return &facultyRepo{db: db, log: baseLog.With("repo", "FacultyRepo")}
}

func (r *facultyRepo) Create(dbc dbctx.Context, faculty *types.Faculty) (*types.Faculty, error) {
	if faculty.TenantID == uuid.Nil {
		return nil, ErrMissingTenant
	}
	if err := dbc.DB(r.db).Create(faculty).Error; err != nil {
		return nil, db.Duplicate(err, "faculty "+faculty.Slug)
	}
	return faculty, nil
}

func (r *facultyRepo) ListByTenant(dbc dbctx.Context, tenantID uuid.UUID, filter string) ([]*types.Faculty, error) {
	var out []*types.Faculty
	if tenantID == uuid.Nil {
		return out, nil
	}
	q := dbc.DB(r.db).Where("tenant_id = ?", tenantID)
	if slugs := splitFilter(filter); len(slugs) > 0 {
		q = q.Where("slug IN ?", slugs)
	}
	if err := q.Order("created_at ASC").Order("slug ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func splitFilter(filter string) []string {
	var out []string
	for _, part := range strings.Split(filter, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
