package generationrun

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/yungbote/curriculum-orchestrator/internal/data/repos"
	types "github.com/yungbote/curriculum-orchestrator/internal/domain"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/dbctx"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
)

// ErrWorkflowCanceled is the cancel cause for runs whose workflow was
// canceled or whose activity lost its worker.
var ErrWorkflowCanceled = errors.New("workflow canceled")

// Executor runs a claimed run to a terminal state.
type Executor interface {
	Execute(ctx context.Context, run *types.GenerationRun, interrupted error)
}

type Activities struct {
	Log               *logger.Logger
	Runs              repos.GenerationRunRepo
	Exec              Executor
	HeartbeatInterval time.Duration
}

func (a *Activities) Walk(ctx context.Context, runID string) (WalkResult, error) {
	res := WalkResult{RunID: runID}
	if a == nil || a.Runs == nil || a.Exec == nil {
		return res, temporal.NewNonRetryableApplicationError("generation activity not configured", "not_configured", nil)
	}
	id, err := uuid.Parse(runID)
	if err != nil || id == uuid.Nil {
		return res, temporal.NewNonRetryableApplicationError("invalid run id", "invalid_input", err)
	}

	claimed, err := a.Runs.Claim(dbctx.New(ctx), id)
	if err != nil {
		return res, fmt.Errorf("claim run: %w", err)
	}
	run, err := a.Runs.GetByID(dbctx.New(ctx), id)
	if err != nil {
		return res, fmt.Errorf("load run: %w", err)
	}
	if run == nil {
		return res, temporal.NewNonRetryableApplicationError("run not found", "not_found", nil)
	}
	if !claimed {
		a.Log.Info("Run already claimed elsewhere", "run_id", id, "status", run.Status)
		return result(res, run, false), nil
	}

	stop := a.startHeartbeat(ctx)
	a.Exec.Execute(ctx, run, ErrWorkflowCanceled)
	stop()

	final, err := a.Runs.GetByID(dbctx.New(context.WithoutCancel(ctx)), id)
	if err != nil || final == nil {
		return result(res, run, true), nil
	}
	return result(res, final, true), nil
}

func (a *Activities) startHeartbeat(ctx context.Context) func() {
	interval := a.HeartbeatInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				activity.RecordHeartbeat(ctx)
			}
		}
	}()
	return func() { close(done) }
}

func result(res WalkResult, run *types.GenerationRun, claimed bool) WalkResult {
	res.Status = run.Status
	res.Progress = run.Progress
	res.CurrentStage = run.CurrentStage
	res.Claimed = claimed
	return res
}
