package services

import (
	"context"
	"time"

	types "github.com/yungbote/curriculum-orchestrator/internal/domain"
	"github.com/yungbote/curriculum-orchestrator/internal/jobs/runtime"
	"github.com/yungbote/curriculum-orchestrator/internal/observability"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
	"github.com/yungbote/curriculum-orchestrator/internal/realtime"
	"github.com/yungbote/curriculum-orchestrator/internal/realtime/bus"
)

const publishTimeout = 2 * time.Second

type runNotifier struct {
	log     *logger.Logger
	bus     bus.Bus
	metrics *observability.Metrics
}

// NewRunNotifier publishes every accepted run change on the tenant's channel.
func NewRunNotifier(baseLog *logger.Logger, b bus.Bus, metrics *observability.Metrics) runtime.Notifier {
	return &runNotifier{log: baseLog.With("service", "RunNotifier"), bus: b, metrics: metrics}
}

func (n *runNotifier) RunUpdated(ctx context.Context, event runtime.Event, run *types.GenerationRun) {
	if n == nil || n.bus == nil || run == nil {
		return
	}
	snapshot := *run
	msg := realtime.SSEMessage{
		Channel: realtime.TenantChannel(run.TenantID),
		Event:   realtime.SSEEvent(event),
		Data:    map[string]any{"run": &snapshot},
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := n.bus.Publish(pctx, msg); err != nil {
		n.metrics.IncBusPublished(string(event), "error")
		n.log.Warn("publish run update failed", "run_id", run.ID, "event", event, "error", err)
		return
	}
	n.metrics.IncBusPublished(string(event), "ok")
}
