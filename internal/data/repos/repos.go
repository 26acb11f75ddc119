package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/curriculum-orchestrator/internal/data/repos/curriculum"
	"github.com/yungbote/curriculum-orchestrator/internal/data/repos/runs"
	"github.com/yungbote/curriculum-orchestrator/internal/data/repos/tenants"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
)

type TenantRepo = tenants.TenantRepo
type UserTenantRepo = tenants.UserTenantRepo

type FacultyRepo = curriculum.FacultyRepo
type CourseRepo = curriculum.CourseRepo
type ModuleRepo = curriculum.ModuleRepo
type QuizRepo = curriculum.QuizRepo
type MaterialRepo = curriculum.MaterialRepo

type GenerationRunRepo = runs.GenerationRunRepo

func NewTenantRepo(db *gorm.DB, baseLog *logger.Logger) TenantRepo {
	return tenants.NewTenantRepo(db, baseLog)
}
func NewUserTenantRepo(db *gorm.DB, baseLog *logger.Logger) UserTenantRepo {
	return tenants.NewUserTenantRepo(db, baseLog)
}
func NewFacultyRepo(db *gorm.DB, baseLog *logger.Logger) FacultyRepo {
	return curriculum.NewFacultyRepo(db, baseLog)
}
func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	return curriculum.NewCourseRepo(db, baseLog)
}
func NewModuleRepo(db *gorm.DB, baseLog *logger.Logger) ModuleRepo {
	return curriculum.NewModuleRepo(db, baseLog)
}
func NewQuizRepo(db *gorm.DB, baseLog *logger.Logger) QuizRepo {
	return curriculum.NewQuizRepo(db, baseLog)
}
func NewMaterialRepo(db *gorm.DB, baseLog *logger.Logger) MaterialRepo {
	return curriculum.NewMaterialRepo(db, baseLog)
}
func NewGenerationRunRepo(db *gorm.DB, baseLog *logger.Logger) GenerationRunRepo {
	return runs.NewGenerationRunRepo(db, baseLog)
}
