package curriculum

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultCourseLevel    = "Introductory"
	DefaultDurationWeeks  = 4
	DefaultCourseXPReward = 100
)

type Faculty struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID    uuid.UUID `gorm:"type:uuid;not null;index:idx_faculty_tenant_slug,unique" json:"tenant_id"`
	Slug        string    `gorm:"column:slug;not null;index:idx_faculty_tenant_slug,unique" json:"slug"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	Description string    `gorm:"column:description" json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"not null;index" json:"created_at"`
}

func (Faculty) TableName() string { return "faculty" }

func (f *Faculty) BeforeCreate(*gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

type Course struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"tenant_id"`
	FacultyID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"faculty_id"`
	RunID         *uuid.UUID `gorm:"type:uuid;index" json:"run_id,omitempty"`
	Title         string     `gorm:"column:title;not null" json:"title"`
	Description   string     `gorm:"column:description" json:"description,omitempty"`
	Content       string     `gorm:"column:content" json:"content,omitempty"`
	Level         string     `gorm:"column:level;not null;default:Introductory" json:"level"`
	DurationWeeks int        `gorm:"column:duration_weeks;not null;default:4" json:"duration_weeks"`
	XPReward      int        `gorm:"column:xp_reward;not null;default:100" json:"xp_reward"`
	CreatedAt     time.Time  `gorm:"not null;index" json:"created_at"`
}

func (Course) TableName() string { return "course" }

func (c *Course) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Level == "" {
		c.Level = DefaultCourseLevel
	}
	if c.DurationWeeks == 0 {
		c.DurationWeeks = DefaultDurationWeeks
	}
	if c.XPReward == 0 {
		c.XPReward = DefaultCourseXPReward
	}
	return nil
}

type Module struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"tenant_id"`
	CourseID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"course_id"`
	RunID     *uuid.UUID `gorm:"type:uuid;index" json:"run_id,omitempty"`
	Position  int        `gorm:"column:position;not null" json:"position"`
	Title     string     `gorm:"column:title;not null" json:"title"`
	Content   string     `gorm:"column:content" json:"content,omitempty"`
	CreatedAt time.Time  `gorm:"not null;index" json:"created_at"`
}

func (Module) TableName() string { return "course_module" }

func (m *Module) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

type Quiz struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ModuleID  uuid.UUID      `gorm:"type:uuid;not null;index" json:"module_id"`
	RunID     *uuid.UUID     `gorm:"type:uuid;index" json:"run_id,omitempty"`
	Title     string         `gorm:"column:title;not null" json:"title"`
	Questions []QuizQuestion `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
}

func (Quiz) TableName() string { return "quiz" }

func (q *Quiz) BeforeCreate(*gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

type QuizQuestion struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	QuizID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"quiz_id"`
	Position    int            `gorm:"column:position;not null" json:"position"`
	Prompt      string         `gorm:"column:prompt;not null" json:"prompt"`
	Options     datatypes.JSON `gorm:"column:options" json:"options"`
	AnswerIndex int            `gorm:"column:answer_index;not null;default:0" json:"answer_index"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
}

func (QuizQuestion) TableName() string { return "quiz_question" }

func (q *QuizQuestion) BeforeCreate(*gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}

const (
	MaterialKindReading  = "reading"
	MaterialKindExercise = "exercise"
	MaterialKindSummary  = "summary"
)

type LearningMaterial struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"tenant_id"`
	ModuleID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"module_id"`
	RunID     *uuid.UUID `gorm:"type:uuid;index" json:"run_id,omitempty"`
	Position  int        `gorm:"column:position;not null" json:"position"`
	Kind      string     `gorm:"column:kind;not null" json:"kind"`
	Title     string     `gorm:"column:title;not null" json:"title"`
	Content   string     `gorm:"column:content" json:"content,omitempty"`
	CreatedAt time.Time  `gorm:"not null;index" json:"created_at"`
}

func (LearningMaterial) TableName() string { return "learning_material" }

func (m *LearningMaterial) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
