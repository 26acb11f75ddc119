package generation

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProgressErrored is the progress value of a run that ended without completing.
const ProgressErrored = -1

const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// TerminalStatuses never transition again.
var TerminalStatuses = []string{StatusSucceeded, StatusFailed, StatusCanceled}

func IsTerminal(status string) bool {
	for _, s := range TerminalStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseCourses      Phase = "courses"
	PhaseModules      Phase = "modules"
	PhaseQuizzes      Phase = "quizzes"
	PhaseMaterials    Phase = "materials"
	PhaseComplete     Phase = "complete"
	PhaseFailed       Phase = "failed"
	PhaseCanceled     Phase = "canceled"
)

const (
	StageInitializing = "Initializing"
	StageComplete     = "Complete"
)

// ErrorInfo is the structured failure attached to a run.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Unit    string `json:"unit,omitempty"`
}

func (e ErrorInfo) JSON() datatypes.JSON {
	b, _ := json.Marshal(e)
	return datatypes.JSON(b)
}

// GenerationRun is the persisted record of one generation walk. The newest
// row per tenant is the tenant's current run.
type GenerationRun struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID    uuid.UUID  `gorm:"type:uuid;not null;index:idx_generation_run_tenant_created,priority:1" json:"tenant_id"`
	RequestedBy *uuid.UUID `gorm:"type:uuid;column:requested_by" json:"requested_by,omitempty"`

	Status       string         `gorm:"column:status;not null;index" json:"status"`
	Progress     int            `gorm:"column:progress;not null;default:0" json:"progress"`
	Phase        Phase          `gorm:"column:phase;not null" json:"phase"`
	CurrentStage string         `gorm:"column:current_stage;not null" json:"current_stage"`
	Error        datatypes.JSON `gorm:"column:error" json:"error,omitempty"`

	FacultiesProcessed int `gorm:"column:faculties_processed;not null;default:0" json:"faculties_processed"`
	CoursesCreated     int `gorm:"column:courses_created;not null;default:0" json:"courses_created"`
	ModulesCreated     int `gorm:"column:modules_created;not null;default:0" json:"modules_created"`
	QuizzesCreated     int `gorm:"column:quizzes_created;not null;default:0" json:"quizzes_created"`
	MaterialsCreated   int `gorm:"column:materials_created;not null;default:0" json:"materials_created"`
	PlannedUnits       int `gorm:"column:planned_units;not null;default:0" json:"planned_units"`
	CompletedUnits     int `gorm:"column:completed_units;not null;default:0" json:"completed_units"`

	CourseCount      int    `gorm:"column:course_count;not null" json:"course_count"`
	ModulesPerCourse int    `gorm:"column:modules_per_course;not null" json:"modules_per_course"`
	FacultyFilter    string `gorm:"column:faculty_filter" json:"faculty_filter,omitempty"`

	StartedAt   *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt  *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`
	HeartbeatAt *time.Time `gorm:"column:heartbeat_at" json:"heartbeat_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;index:idx_generation_run_tenant_created,priority:2" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
}

func (GenerationRun) TableName() string { return "generation_run" }

func (r *GenerationRun) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (r *GenerationRun) IsTerminal() bool { return r != nil && IsTerminal(r.Status) }

// ErrorInfo decodes the stored error, if any.
func (r *GenerationRun) ErrorInfo() *ErrorInfo {
	if r == nil || len(r.Error) == 0 || string(r.Error) == "null" {
		return nil
	}
	var info ErrorInfo
	if err := json.Unmarshal(r.Error, &info); err != nil {
		return &ErrorInfo{Code: "unknown", Message: string(r.Error)}
	}
	return &info
}
