package generationrun

import (
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	types "github.com/yungbote/curriculum-orchestrator/internal/domain"
)

// Workflow executes a single walk for runID. Retries happen per unit inside
// the walk, never by re-running the activity, so an activity is attempted
// once.
func Workflow(ctx workflow.Context, runID string) (WalkResult, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return WalkResult{}, temporal.NewNonRetryableApplicationError("missing run id", "invalid_input", nil)
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 24 * time.Hour,
		HeartbeatTimeout:    time.Minute,
		WaitForCancellation: true,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})

	var out WalkResult
	if err := workflow.ExecuteActivity(ctx, ActivityWalk, runID).Get(ctx, &out); err != nil {
		return out, err
	}
	workflow.GetLogger(ctx).Info("generation walk finished", "run_id", runID, "status", out.Status, "claimed", out.Claimed)

	if out.Claimed && out.Status == types.RunStatusFailed {
		return out, fmt.Errorf("generation run failed: %s", out.CurrentStage)
	}
	return out, nil
}
