package temporalx

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	temporalsdkclient "go.temporal.io/sdk/client"

	types "github.com/yungbote/curriculum-orchestrator/internal/domain"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
	"github.com/yungbote/curriculum-orchestrator/internal/temporalx/generationrun"
)

// Dispatcher starts one workflow per generation run.
type Dispatcher struct {
	tc        temporalsdkclient.Client
	taskQueue string
	log       *logger.Logger
}

func NewDispatcher(tc temporalsdkclient.Client, cfg Config, baseLog *logger.Logger) *Dispatcher {
	cfg = cfg.WithDefaults()
	return &Dispatcher{tc: tc, taskQueue: cfg.TaskQueue, log: baseLog.With("component", "TemporalDispatcher")}
}

func (d *Dispatcher) Name() string { return "temporal" }

func (d *Dispatcher) Dispatch(ctx context.Context, run *types.GenerationRun) error {
	if d == nil || d.tc == nil {
		return fmt.Errorf("temporal client not configured")
	}
	runID := run.ID.String()
	_, err := d.tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:                    generationrun.WorkflowID(runID),
		TaskQueue:             d.taskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}, generationrun.WorkflowName, runID)
	if err != nil {
		var already *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &already) {
			d.log.Debug("workflow already started", "run_id", runID)
			return nil
		}
		return fmt.Errorf("start workflow: %w", err)
	}
	d.log.Info("Dispatched generation run", "run_id", runID, "task_queue", d.taskQueue)
	return nil
}

func (d *Dispatcher) Cancel(ctx context.Context, runID uuid.UUID, reason string) error {
	if d == nil || d.tc == nil {
		return nil
	}
	err := d.tc.CancelWorkflow(ctx, generationrun.WorkflowID(runID.String()), "")
	var nf *serviceerror.NotFound
	if err != nil && !errors.As(err, &nf) {
		return fmt.Errorf("cancel workflow: %w", err)
	}
	return nil
}
