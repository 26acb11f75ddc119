package temporalworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/activity"
	temporalsdkclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/yungbote/curriculum-orchestrator/internal/platform/httpx"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
	"github.com/yungbote/curriculum-orchestrator/internal/temporalx"
	"github.com/yungbote/curriculum-orchestrator/internal/temporalx/generationrun"
)

type Runner struct {
	log   *logger.Logger
	tc    temporalsdkclient.Client
	cfg   temporalx.Config
	acts  *generationrun.Activities
	build func() worker.Worker
}

func NewRunner(log *logger.Logger, tc temporalsdkclient.Client, cfg temporalx.Config, acts *generationrun.Activities) (*Runner, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	if acts == nil || acts.Runs == nil || acts.Exec == nil {
		return nil, fmt.Errorf("temporal worker missing deps")
	}
	r := &Runner{log: log.With("component", "TemporalWorker"), tc: tc, cfg: cfg.WithDefaults(), acts: acts}
	r.build = r.newWorker
	return r, nil
}

// Start polls the task queue until ctx is done and returns only after the
// worker has stopped, so no activity outlives the call. Startup is retried
// for up to a minute while the namespace or frontend comes up.
func (r *Runner) Start(ctx context.Context) error {
	deadline := time.Now().Add(time.Minute)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		w := r.build()
		startErr := w.Start()
		if startErr == nil {
			r.log.Info("Temporal worker started", "namespace", r.cfg.Namespace, "task_queue", r.cfg.TaskQueue, "attempts", attempt)
			<-ctx.Done()
			w.Stop()
			r.log.Info("Temporal worker stopped", "task_queue", r.cfg.TaskQueue)
			return ctx.Err()
		}
		w.Stop()

		var nfe *serviceerror.NamespaceNotFound
		if errors.As(startErr, &nfe) && r.cfg.AutoRegisterNamespace {
			if err := temporalx.EnsureNamespace(ctx, r.cfg, r.log); err != nil {
				r.log.Warn("Temporal namespace ensure failed", "namespace", r.cfg.Namespace, "error", err)
			}
		}
		if time.Now().After(deadline) {
			if errors.As(startErr, &nfe) {
				return fmt.Errorf("temporal namespace not found (namespace=%s): %w", r.cfg.Namespace, startErr)
			}
			return startErr
		}
		r.log.Warn("Temporal worker failed to start; retrying", "task_queue", r.cfg.TaskQueue, "attempt", attempt, "error", startErr)
		if err := httpx.Sleep(ctx, time.Duration(attempt)*250*time.Millisecond); err != nil {
			return err
		}
	}
}

func (r *Runner) newWorker() worker.Worker {
	concurrency := r.cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	w := worker.New(r.tc, r.cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     concurrency,
		MaxConcurrentWorkflowTaskExecutionSize: concurrency,
	})
	w.RegisterWorkflowWithOptions(generationrun.Workflow, workflow.RegisterOptions{Name: generationrun.WorkflowName})
	w.RegisterActivityWithOptions(r.acts.Walk, activity.RegisterOptions{Name: generationrun.ActivityWalk})
	return w
}
