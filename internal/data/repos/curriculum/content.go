package curriculum

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/curriculum-orchestrator/internal/domain"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/dbctx"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
)

type CourseRepo interface {
	Create(dbc dbctx.Context, course *types.Course) (*types.Course, error)
	ListByTenant(dbc dbctx.Context, tenantID uuid.UUID) ([]*types.Course, error)
}

type courseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	return &courseRepo{db: db, log: baseLog.With("repo", "CourseRepo")}
}

func (r *courseRepo) Create(dbc dbctx.Context, course *types.Course) (*types.Course, error) {
	if err := checkScope(course.TenantID, course.FacultyID); err != nil {
		return nil, err
	}
	if err := dbc.DB(r.db).Create(course).Error; err != nil {
		return nil, err
	}
	return course, nil
}

func (r *courseRepo) ListByTenant(dbc dbctx.Context, tenantID uuid.UUID) ([]*types.Course, error) {
	var out []*types.Course
	if err := dbc.DB(r.db).Where("tenant_id = ?", tenantID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type ModuleRepo interface {
	Create(dbc dbctx.Context, module *types.Module) (*types.Module, error)
	ListByTenant(dbc dbctx.Context, tenantID uuid.UUID) ([]*types.Module, error)
}

type moduleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewModuleRepo(db *gorm.DB, baseLog *logger.Logger) ModuleRepo {
	return &moduleRepo{db: db, log: baseLog.With("repo", "ModuleRepo")}
}

func (r *moduleRepo) Create(dbc dbctx.Context, module *types.Module) (*types.Module, error) {
	if err := checkScope(module.TenantID, module.CourseID); err != nil {
		return nil, err
	}
	if err := dbc.DB(r.db).Create(module).Error; err != nil {
		return nil, err
	}
	return module, nil
}

func (r *moduleRepo) ListByTenant(dbc dbctx.Context, tenantID uuid.UUID) ([]*types.Module, error) {
	var out []*types.Module
	if err := dbc.DB(r.db).Where("tenant_id = ?", tenantID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type QuizRepo interface {
	// Create writes the quiz and its questions atomically.
	Create(dbc dbctx.Context, quiz *types.Quiz) (*types.Quiz, error)
	ListByTenant(dbc dbctx.Context, tenantID uuid.UUID) ([]*types.Quiz, error)
}

type quizRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuizRepo(db *gorm.DB, baseLog *logger.Logger) QuizRepo {
	return &quizRepo{db: db, log: baseLog.With("repo", "QuizRepo")}
}

func (r *quizRepo) Create(dbc dbctx.Context, quiz *types.Quiz) (*types.Quiz, error) {
	if err := checkScope(quiz.TenantID, quiz.ModuleID); err != nil {
		return nil, err
	}
	questions := quiz.Questions
	quiz.Questions = nil
	err := dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(quiz).Error; err != nil {
			return err
		}
		for i, q := range questions {
			q.QuizID = quiz.ID
			q.TenantID = quiz.TenantID
			if q.Position == 0 {
				q.Position = i + 1
			}
			if err := tx.Create(&q).Error; err != nil {
				return err
			}
			questions[i] = q
		}
		return nil
	})
	quiz.Questions = questions
	if err != nil {
		return nil, err
	}
	return quiz, nil
}

func (r *quizRepo) ListByTenant(dbc dbctx.Context, tenantID uuid.UUID) ([]*types.Quiz, error) {
	var out []*types.Quiz
	if err := dbc.DB(r.db).
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

type MaterialRepo interface {
	Create(dbc dbctx.Context, material *types.LearningMaterial) (*types.LearningMaterial, error)
	ListByTenant(dbc dbctx.Context, tenantID uuid.UUID) ([]*types.LearningMaterial, error)
}

type materialRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMaterialRepo(db *gorm.DB, baseLog *logger.Logger) MaterialRepo {
	return &materialRepo{db: db, log: baseLog.With("repo", "MaterialRepo")}
}

func (r *materialRepo) Create(dbc dbctx.Context, material *types.LearningMaterial) (*types.LearningMaterial, error) {
	if err := checkScope(material.TenantID, material.ModuleID); err != nil {
		return nil, err
	}
	if err := dbc.DB(r.db).Create(material).Error; err != nil {
		return nil, err
	}
	return material, nil
}

func (r *materialRepo) ListByTenant(dbc dbctx.Context, tenantID uuid.UUID) ([]*types.LearningMaterial, error) {
	var out []*types.LearningMaterial
	if err := dbc.DB(r.db).Where("tenant_id = ?", tenantID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
