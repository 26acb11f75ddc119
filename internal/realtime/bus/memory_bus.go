package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
	"github.com/yungbote/curriculum-orchestrator/internal/realtime"
)

type memoryBus struct {
	log    *logger.Logger
	mu     sync.RWMutex
	subs   map[int]func(realtime.SSEMessage)
	nextID int
	closed bool
}

// NewMemoryBus delivers published messages synchronously to the forwarders
// of this process only.
func NewMemoryBus(log *logger.Logger) Bus {
	return &memoryBus{log: log.With("service", "MemorySSEBus"), subs: map[int]func(realtime.SSEMessage){}}
}

func (b *memoryBus) Publish(ctx context.Context, msg realtime.SSEMessage) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("bus closed")
	}
	for _, fn := range b.subs {
		fn(msg)
	}
	return nil
}

func (b *memoryBus) StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error {
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("bus closed")
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = onMsg
	b.mu.Unlock()

	context.AfterFunc(ctx, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	})
	return nil
}

func (b *memoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = map[int]func(realtime.SSEMessage){}
	return nil
}
