package worker

import (
	"context"

	"github.com/google/uuid"

	types "github.com/yungbote/curriculum-orchestrator/internal/domain"
)

// LocalDispatcher hands queued runs to the in-process pool.
type LocalDispatcher struct {
	W *Worker
}

func (d LocalDispatcher) Dispatch(ctx context.Context, run *types.GenerationRun) error {
	d.W.Wake()
	return nil
}

func (d LocalDispatcher) Cancel(ctx context.Context, runID uuid.UUID, reason string) error {
	d.W.Cancel(runID, reason)
	return nil
}

func (d LocalDispatcher) Name() string { return "local" }
