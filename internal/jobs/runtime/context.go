package runtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/curriculum-orchestrator/internal/data/repos"
	types "github.com/yungbote/curriculum-orchestrator/internal/domain"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/dbctx"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/textutil"
)

/*
Context is the only handle a pipeline gets on its generation_run row.
It owns the in-memory copy of the row and turns every pipeline report into a
single guarded UPDATE:
  - writes are rejected once the row is succeeded, failed or canceled, so a
    terminal run never changes again and a cancel issued elsewhere wins;
  - progress only moves forward, except for the jump to ProgressErrored;
  - counters only grow.

Every report returns false once the row stopped accepting writes. Pipelines
treat that as "stop now".
*/
type Context struct {
	Ctx    context.Context
	Run    *types.GenerationRun
	Repo   repos.GenerationRunRepo
	Notify Notifier
	Log    *logger.Logger

	mu     sync.Mutex
	closed bool
}

func NewContext(ctx context.Context, run *types.GenerationRun, repo repos.GenerationRunRepo, notify Notifier, baseLog *logger.Logger) *Context {
	if notify == nil {
		notify = NopNotifier{}
	}
	return &Context{
		Ctx:    ctx,
		Run:    run,
		Repo:   repo,
		Notify: notify,
		Log:    baseLog.With("run_id", run.ID, "tenant_id", run.TenantID),
	}
}

// ErrRunClosed is returned by pipelines that stop because the row no longer
// accepts writes.
var ErrRunClosed = errors.New("generation run no longer accepts updates")

// maxStageBytes bounds terminal stage text built from provider errors.
const maxStageBytes = 1024

// UnitKind is a countable piece of the tree.
type UnitKind string

const (
	UnitCourse   UnitKind = "course"
	UnitModule   UnitKind = "module"
	UnitQuiz     UnitKind = "quiz"
	UnitMaterial UnitKind = "material"
)

// Live reports whether the run can still make progress.
func (c *Context) Live() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.Ctx.Err() == nil
}

// Plan records the number of units the walk expects to create.
func (c *Context) Plan(planned int, phase types.RunPhase, stage string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if planned < 0 {
		planned = 0
	}
	return c.writeLocked(EventRunProgress, map[string]interface{}{
		"planned_units": planned,
		"phase":         phase,
		"current_stage": stage,
	}, func(r *types.GenerationRun) {
		r.PlannedUnits = planned
		r.Phase = phase
		r.CurrentStage = stage
	})
}

// Stage reports a phase change without completing a unit.
func (c *Context) Stage(phase types.RunPhase, stage string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeLocked(EventRunProgress, map[string]interface{}{
		"phase":         phase,
		"current_stage": stage,
	}, func(r *types.GenerationRun) {
		r.Phase = phase
		r.CurrentStage = stage
	})
}

// FacultyDone bumps faculties_processed.
func (c *Context) FacultyDone(stage string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.Run.FacultiesProcessed + 1
	return c.writeLocked(EventRunProgress, map[string]interface{}{
		"faculties_processed": n,
		"current_stage":       stage,
	}, func(r *types.GenerationRun) {
		r.FacultiesProcessed = n
		r.CurrentStage = stage
	})
}

// UnitDone counts one persisted unit and recomputes progress. Progress stays
// at or below 99 until Succeed.
func (c *Context) UnitDone(kind UnitKind, phase types.RunPhase, stage string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	completed := c.Run.CompletedUnits + 1
	pct := c.Run.Progress
	if c.Run.PlannedUnits > 0 {
		next := completed * 100 / c.Run.PlannedUnits
		if next > 99 {
			next = 99
		}
		if next > pct {
			pct = next
		}
	}

	updates := map[string]interface{}{
		"completed_units": completed,
		"progress":        pct,
		"phase":           phase,
		"current_stage":   stage,
	}
	var counter string
	var value int
	switch kind {
	case UnitCourse:
		counter, value = "courses_created", c.Run.CoursesCreated+1
	case UnitModule:
		counter, value = "modules_created", c.Run.ModulesCreated+1
	case UnitQuiz:
		counter, value = "quizzes_created", c.Run.QuizzesCreated+1
	case UnitMaterial:
		counter, value = "materials_created", c.Run.MaterialsCreated+1
	}
	if counter != "" {
		updates[counter] = value
	}

	return c.writeLocked(EventRunProgress, updates, func(r *types.GenerationRun) {
		r.CompletedUnits = completed
		r.Progress = pct
		r.Phase = phase
		r.CurrentStage = stage
		switch kind {
		case UnitCourse:
			r.CoursesCreated = value
		case UnitModule:
			r.ModulesCreated = value
		case UnitQuiz:
			r.QuizzesCreated = value
		case UnitMaterial:
			r.MaterialsCreated = value
		}
	})
}

// Heartbeat refreshes heartbeat_at without notifying listeners.
func (c *Context) Heartbeat() {
	if c.Repo == nil || c.Run == nil {
		return
	}
	if err := c.Repo.Heartbeat(dbctx.New(c.Ctx), c.Run.ID); err != nil {
		c.Log.Debug("heartbeat failed", "error", err)
	}
}

/*
Fail ends the run with the error sentinel.
  - status=failed, progress=-1, phase=failed
  - current_stage carries the human readable reason
  - error carries the structured ErrorInfo

The write uses a background context so a canceled pipeline context cannot
swallow the terminal state.
*/
func (c *Context) Fail(stage string, info types.RunErrorInfo) bool {
	stage = textutil.Truncate(stage, maxStageBytes)
	info.Message = textutil.Truncate(info.Message, maxStageBytes)
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	ok := c.writeTerminalLocked(EventRunFailed, map[string]interface{}{
		"status":        types.RunStatusFailed,
		"progress":      types.ProgressErrored,
		"phase":         types.PhaseFailed,
		"current_stage": stage,
		"error":         info.JSON(),
		"finished_at":   now,
	}, func(r *types.GenerationRun) {
		r.Status = types.RunStatusFailed
		r.Progress = types.ProgressErrored
		r.Phase = types.PhaseFailed
		r.CurrentStage = stage
		r.Error = info.JSON()
		r.FinishedAt = &now
	})
	if ok {
		c.Log.Warn("generation run failed", "stage", stage, "code", info.Code, "unit", info.Unit, "error", info.Message)
	}
	return ok
}

// Succeed ends the run at 100%.
func (c *Context) Succeed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	ok := c.writeTerminalLocked(EventRunDone, map[string]interface{}{
		"status":        types.RunStatusSucceeded,
		"progress":      100,
		"phase":         types.PhaseComplete,
		"current_stage": types.StageComplete,
		"finished_at":   now,
	}, func(r *types.GenerationRun) {
		r.Status = types.RunStatusSucceeded
		r.Progress = 100
		r.Phase = types.PhaseComplete
		r.CurrentStage = types.StageComplete
		r.FinishedAt = &now
	})
	if ok {
		c.Log.Info("generation run complete",
			"courses", c.Run.CoursesCreated,
			"modules", c.Run.ModulesCreated,
			"quizzes", c.Run.QuizzesCreated,
			"materials", c.Run.MaterialsCreated,
		)
	}
	return ok
}

// Canceled records a cooperative stop. A row that is already terminal
// (including one canceled by the API) is left untouched.
func (c *Context) Canceled(stage string) bool {
	stage = textutil.Truncate(stage, maxStageBytes)
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	info := types.RunErrorInfo{Code: "canceled", Message: stage}
	return c.writeTerminalLocked(EventRunCanceled, map[string]interface{}{
		"status":        types.RunStatusCanceled,
		"progress":      types.ProgressErrored,
		"phase":         types.PhaseCanceled,
		"current_stage": stage,
		"error":         info.JSON(),
		"finished_at":   now,
	}, func(r *types.GenerationRun) {
		r.Status = types.RunStatusCanceled
		r.Progress = types.ProgressErrored
		r.Phase = types.PhaseCanceled
		r.CurrentStage = stage
		r.Error = info.JSON()
		r.FinishedAt = &now
	})
}

func (c *Context) writeLocked(event Event, updates map[string]interface{}, apply func(r *types.GenerationRun)) bool {
	if c.closed || c.Ctx.Err() != nil {
		return false
	}
	return c.persistLocked(c.Ctx, event, updates, apply)
}

func (c *Context) writeTerminalLocked(event Event, updates map[string]interface{}, apply func(r *types.GenerationRun)) bool {
	if c.closed {
		return false
	}
	ok := c.persistLocked(context.WithoutCancel(c.Ctx), event, updates, apply)
	c.closed = true
	return ok
}

func (c *Context) persistLocked(ctx context.Context, event Event, updates map[string]interface{}, apply func(r *types.GenerationRun)) bool {
	now := time.Now()
	updates["heartbeat_at"] = now
	updates["updated_at"] = now
	if c.Repo != nil && c.Run.ID != uuid.Nil {
		ok, err := c.Repo.UpdateFieldsUnlessStatus(dbctx.New(ctx), c.Run.ID, types.TerminalRunStatuses, updates)
		if err != nil {
			c.Log.Warn("run update failed", "event", event, "error", err)
			return false
		}
		if !ok {
			c.closed = true
			return false
		}
	}
	apply(c.Run)
	c.Run.HeartbeatAt = &now
	c.Run.UpdatedAt = now
	c.Notify.RunUpdated(ctx, event, c.Run)
	return true
}
