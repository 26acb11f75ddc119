package domain

import (
	"github.com/yungbote/curriculum-orchestrator/internal/domain/curriculum"
	"github.com/yungbote/curriculum-orchestrator/internal/domain/generation"
	"github.com/yungbote/curriculum-orchestrator/internal/domain/tenancy"
)

type (
	Tenant     = tenancy.Tenant
	UserTenant = tenancy.UserTenant

	Faculty          = curriculum.Faculty
	Course           = curriculum.Course
	Module           = curriculum.Module
	Quiz             = curriculum.Quiz
	QuizQuestion     = curriculum.QuizQuestion
	LearningMaterial = curriculum.LearningMaterial

	GenerationRun = generation.GenerationRun
	RunPhase      = generation.Phase
	RunErrorInfo  = generation.ErrorInfo
)

const (
	ProgressErrored = generation.ProgressErrored

	RunStatusQueued    = generation.StatusQueued
	RunStatusRunning   = generation.StatusRunning
	RunStatusSucceeded = generation.StatusSucceeded
	RunStatusFailed    = generation.StatusFailed
	RunStatusCanceled  = generation.StatusCanceled

	PhaseInitializing = generation.PhaseInitializing
	PhaseCourses      = generation.PhaseCourses
	PhaseModules      = generation.PhaseModules
	PhaseQuizzes      = generation.PhaseQuizzes
	PhaseMaterials    = generation.PhaseMaterials
	PhaseComplete     = generation.PhaseComplete
	PhaseFailed       = generation.PhaseFailed
	PhaseCanceled     = generation.PhaseCanceled

	StageInitializing = generation.StageInitializing
	StageComplete     = generation.StageComplete

	MaterialKindReading  = curriculum.MaterialKindReading
	MaterialKindExercise = curriculum.MaterialKindExercise
	MaterialKindSummary  = curriculum.MaterialKindSummary
)

var TerminalRunStatuses = generation.TerminalStatuses

func IsTerminalRunStatus(status string) bool { return generation.IsTerminal(status) }

// Models lists every table the service migrates.
func Models() []interface{} {
	return []interface{}{
		&Tenant{},
		&UserTenant{},
		&Faculty{},
		&Course{},
		&Module{},
		&Quiz{},
		&QuizQuestion{},
		&LearningMaterial{},
		&GenerationRun{},
	}
}
