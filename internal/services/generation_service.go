package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/yungbote/curriculum-orchestrator/internal/data/repos"
	types "github.com/yungbote/curriculum-orchestrator/internal/domain"
	"github.com/yungbote/curriculum-orchestrator/internal/jobs/runtime"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/ctxutil"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/dbctx"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
)

const (
	CodeDispatchFailed = "dispatch_failed"
	CodeCanceled       = "canceled"
)

// Dispatcher hands a freshly created run to whatever executes walks.
type Dispatcher interface {
	Dispatch(ctx context.Context, run *types.GenerationRun) error
	Cancel(ctx context.Context, runID uuid.UUID, reason string) error
	Name() string
}

type StartParams struct {
	TenantID         string `json:"tenant_id"`
	CourseCount      int    `json:"course_count" validate:"min=1,max=50"`
	ModulesPerCourse int    `json:"modules_per_course" validate:"min=1,max=50"`
	FacultyFilter    string `json:"faculty_filter" validate:"max=1024"`
}

type GenerationService interface {
	// Start creates the run row synchronously and dispatches the walk. The
	// caller gets the run back before any content exists.
	Start(dbc dbctx.Context, params StartParams) (*types.GenerationRun, error)
	GetLatest(dbc dbctx.Context, tenantID uuid.UUID) (*types.GenerationRun, error)
	GetByID(dbc dbctx.Context, tenantID, runID uuid.UUID) (*types.GenerationRun, error)
	Cancel(dbc dbctx.Context, tenantID, runID uuid.UUID) (*types.GenerationRun, error)
}

type generationService struct {
	log      *logger.Logger
	runs     repos.GenerationRunRepo
	resolver TenantResolver
	dispatch Dispatcher
	notify   runtime.Notifier
	validate *validator.Validate
}

func NewGenerationService(
	baseLog *logger.Logger,
	runs repos.GenerationRunRepo,
	resolver TenantResolver,
	dispatch Dispatcher,
	notify runtime.Notifier,
) GenerationService {
	if notify == nil {
		notify = runtime.NopNotifier{}
	}
	return &generationService{
		log:      baseLog.With("service", "GenerationService"),
		runs:     runs,
		resolver: resolver,
		dispatch: dispatch,
		notify:   notify,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *generationService) Start(dbc dbctx.Context, params StartParams) (*types.GenerationRun, error) {
	if err := s.validate.Struct(params); err != nil {
		return nil, toValidationError(err)
	}

	callerID := ctxutil.CallerID(dbc.Ctx)
	tenantID, err := s.resolver.Resolve(dbc, params.TenantID, callerID)
	if err != nil {
		return nil, err
	}

	run := &types.GenerationRun{
		TenantID:         tenantID,
		Status:           types.RunStatusQueued,
		Progress:         0,
		Phase:            types.PhaseInitializing,
		CurrentStage:     types.StageInitializing,
		CourseCount:      params.CourseCount,
		ModulesPerCourse: params.ModulesPerCourse,
		FacultyFilter:    strings.TrimSpace(params.FacultyFilter),
	}
	if callerID != uuid.Nil {
		run.RequestedBy = &callerID
	}
	if _, err := s.runs.Create(dbc, run); err != nil {
		return nil, &RunCreationError{Err: err}
	}
	s.notify.RunUpdated(dbc.Ctx, runtime.EventRunCreated, run)
	s.log.Info("Generation run created",
		"run_id", run.ID,
		"tenant_id", tenantID,
		"course_count", run.CourseCount,
		"modules_per_course", run.ModulesPerCourse,
		"dispatcher", s.dispatch.Name(),
	)

	if err := s.dispatch.Dispatch(dbc.Ctx, run); err != nil {
		s.log.Error("Dispatch failed", "run_id", run.ID, "error", err)
		s.markDispatchFailed(dbc, run, err)
	}
	return run, nil
}

func (s *generationService) markDispatchFailed(dbc dbctx.Context, run *types.GenerationRun, cause error) {
	now := time.Now()
	info := types.RunErrorInfo{Code: CodeDispatchFailed, Message: cause.Error()}
	stage := "Could not start generation: " + cause.Error()
	ok, err := s.runs.UpdateFieldsUnlessStatus(dbctx.New(context.WithoutCancel(dbc.Ctx)), run.ID, types.TerminalRunStatuses, map[string]interface{}{
		"status":        types.RunStatusFailed,
		"progress":      types.ProgressErrored,
		"phase":         types.PhaseFailed,
		"current_stage": stage,
		"error":         info.JSON(),
		"finished_at":   now,
		"updated_at":    now,
	})
	if err != nil || !ok {
		s.log.Warn("Could not record dispatch failure", "run_id", run.ID, "error", err)
		return
	}
	run.Status = types.RunStatusFailed
	run.Progress = types.ProgressErrored
	run.Phase = types.PhaseFailed
	run.CurrentStage = stage
	run.Error = info.JSON()
	run.FinishedAt = &now
	s.notify.RunUpdated(dbc.Ctx, runtime.EventRunFailed, run)
}

func (s *generationService) GetLatest(dbc dbctx.Context, tenantID uuid.UUID) (*types.GenerationRun, error) {
	if tenantID == uuid.Nil {
		return nil, &ValidationError{Field: "tenant_id", Message: "required"}
	}
	return s.runs.GetLatestByTenant(dbc, tenantID)
}

func (s *generationService) GetByID(dbc dbctx.Context, tenantID, runID uuid.UUID) (*types.GenerationRun, error) {
	run, err := s.runs.GetByIDForTenant(dbc, tenantID, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// Cancel marks a live run canceled and interrupts its executor. A terminal
// run is returned unchanged.
func (s *generationService) Cancel(dbc dbctx.Context, tenantID, runID uuid.UUID) (*types.GenerationRun, error) {
	run, err := s.GetByID(dbc, tenantID, runID)
	if err != nil {
		return nil, err
	}
	if run.IsTerminal() {
		return run, nil
	}

	now := time.Now()
	const stage = "Canceled by request"
	info := types.RunErrorInfo{Code: CodeCanceled, Message: stage}
	ok, err := s.runs.UpdateFieldsUnlessStatus(dbc, run.ID, types.TerminalRunStatuses, map[string]interface{}{
		"status":        types.RunStatusCanceled,
		"progress":      types.ProgressErrored,
		"phase":         types.PhaseCanceled,
		"current_stage": stage,
		"error":         info.JSON(),
		"finished_at":   now,
		"updated_at":    now,
	})
	if err != nil {
		return nil, fmt.Errorf("cancel run: %w", err)
	}

	if err := s.dispatch.Cancel(dbc.Ctx, run.ID, "canceled by request"); err != nil {
		s.log.Warn("Executor cancel failed; the walk stops at its next update", "run_id", run.ID, "error", err)
	}

	latest, err := s.GetByID(dbc, tenantID, runID)
	if err != nil {
		return nil, err
	}
	if ok {
		s.log.Info("Generation run canceled", "run_id", run.ID, "tenant_id", tenantID)
		s.notify.RunUpdated(dbc.Ctx, runtime.EventRunCanceled, latest)
	}
	return latest, nil
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		msg := fe.Tag()
		switch fe.Tag() {
		case "min":
			msg = "must be at least " + fe.Param()
		case "max":
			msg = "must be at most " + fe.Param()
		}
		return &ValidationError{Field: jsonFieldName(fe.StructField()), Message: msg}
	}
	return &ValidationError{Message: err.Error()}
}

func jsonFieldName(field string) string {
	switch field {
	case "CourseCount":
		return "course_count"
	case "ModulesPerCourse":
		return "modules_per_course"
	case "FacultyFilter":
		return "faculty_filter"
	}
	return field
}
