package runtime

import (
	"context"

	types "github.com/yungbote/curriculum-orchestrator/internal/domain"
)

type Event string

const (
	EventRunCreated  Event = "GenerationRunCreated"
	EventRunProgress Event = "GenerationRunProgress"
	EventRunFailed   Event = "GenerationRunFailed"
	EventRunDone     Event = "GenerationRunDone"
	EventRunCanceled Event = "GenerationRunCanceled"
)

// Notifier receives every accepted state change of a run. Implementations
// must not block the walker.
type Notifier interface {
	RunUpdated(ctx context.Context, event Event, run *types.GenerationRun)
}

type NopNotifier struct{}

func (NopNotifier) RunUpdated(context.Context, Event, *types.GenerationRun) {}

// Handler executes one claimed run.
type Handler interface {
	Type() string
	Run(jc *Context) error
}
