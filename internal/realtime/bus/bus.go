package bus

import (
	"context"

	"github.com/yungbote/curriculum-orchestrator/internal/realtime"
)

// Bus carries SSE messages between processes so every API replica can
// serve every tenant's stream.
type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}
