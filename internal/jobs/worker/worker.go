package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/curriculum-orchestrator/internal/data/repos"
	types "github.com/yungbote/curriculum-orchestrator/internal/domain"
	"github.com/yungbote/curriculum-orchestrator/internal/jobs/runtime"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/dbctx"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
)

// ErrShutdown is the cancel cause for runs interrupted by process shutdown.
var ErrShutdown = errors.New("worker shutting down")

type Config struct {
	Concurrency       int
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 15 * time.Second
	}
	return c
}

type Worker struct {
	log     *logger.Logger
	repo    repos.GenerationRunRepo
	handler runtime.Handler
	notify  runtime.Notifier
	cfg     Config

	wake chan struct{}
	wg   sync.WaitGroup

	mu     sync.Mutex
	active map[uuid.UUID]context.CancelCauseFunc
}

func NewWorker(repo repos.GenerationRunRepo, handler runtime.Handler, notify runtime.Notifier, cfg Config, baseLog *logger.Logger) *Worker {
	if notify == nil {
		notify = runtime.NopNotifier{}
	}
	return &Worker{
		log:     baseLog.With("component", "GenerationWorker"),
		repo:    repo,
		handler: handler,
		notify:  notify,
		cfg:     cfg.withDefaults(),
		wake:    make(chan struct{}, 1),
		active:  map[uuid.UUID]context.CancelCauseFunc{},
	}
}

// Start launches the polling loops. They stop when ctx is done; runs in
// flight are then canceled with ErrShutdown and Wait blocks until they
// recorded their terminal state.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting generation worker pool", "concurrency", w.cfg.Concurrency, "job_type", w.handler.Type())
	for i := 0; i < w.cfg.Concurrency; i++ {
		w.wg.Add(1)
		go func(workerID int) {
			defer w.wg.Done()
			w.runLoop(ctx, workerID)
		}(i + 1)
	}
}

// Wake nudges an idle loop to claim immediately instead of waiting for the
// next poll tick.
func (w *Worker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Worker) Wait() { w.wg.Wait() }

// Cancel interrupts a run executing in this process. It reports false when
// the run is not active here.
func (w *Worker) Cancel(runID uuid.UUID, reason string) bool {
	w.mu.Lock()
	cancel, ok := w.active[runID]
	w.mu.Unlock()
	if !ok {
		return false
	}
	if reason == "" {
		reason = "canceled"
	}
	cancel(errors.New(reason))
	return true
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
		case <-w.wake:
		}
		// drain everything queued before sleeping again
		for ctx.Err() == nil {
			run, err := w.repo.ClaimNextQueued(dbctx.New(ctx))
			if err != nil {
				w.log.Warn("ClaimNextQueued failed", "worker_id", workerID, "error", err)
				break
			}
			if run == nil {
				break
			}
			w.Execute(ctx, run, ErrShutdown)
		}
	}
}

// Execute runs the handler for an already claimed run. When ctx ends first
// the run is canceled with interrupted as the cause. It never returns before
// the row reached a terminal state or refused writes.
func (w *Worker) Execute(ctx context.Context, run *types.GenerationRun, interrupted error) {
	w.wg.Add(1)
	defer w.wg.Done()
	runCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	defer cancel(nil)
	stop := context.AfterFunc(ctx, func() {
		w.log.Info("Interrupting run", "run_id", run.ID, "cause", interrupted)
		cancel(interrupted)
	})
	defer stop()

	w.mu.Lock()
	w.active[run.ID] = cancel
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		delete(w.active, run.ID)
		w.mu.Unlock()
	}()

	jc := runtime.NewContext(runCtx, run, w.repo, w.notify, w.log)
	hbDone := make(chan struct{})
	defer close(hbDone)
	go w.heartbeat(jc, hbDone)

	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Generation handler panic", "run_id", run.ID, "panic", r)
			jc.Fail("Internal error", types.RunErrorInfo{Code: "internal_error", Message: fmt.Sprintf("panic: %v", r)})
		}
	}()
	if err := w.handler.Run(jc); err != nil {
		// Pipelines write their own terminal state; this is a safety net.
		jc.Fail(err.Error(), types.RunErrorInfo{Code: "internal_error", Message: err.Error()})
	}
}

func (w *Worker) heartbeat(jc *runtime.Context, done <-chan struct{}) {
	t := time.NewTicker(w.cfg.HeartbeatInterval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-jc.Ctx.Done():
			return
		case <-t.C:
			jc.Heartbeat()
		}
	}
}
