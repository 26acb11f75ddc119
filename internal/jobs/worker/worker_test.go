package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yungbote/curriculum-orchestrator/internal/data/repos"
	"github.com/yungbote/curriculum-orchestrator/internal/data/repos/testutil"
	types "github.com/yungbote/curriculum-orchestrator/internal/domain"
	"github.com/yungbote/curriculum-orchestrator/internal/jobs/runtime"
)

type handlerFunc func(jc *runtime.Context) error

func (f handlerFunc) Type() string                  { return "test" }
func (f handlerFunc) Run(jc *runtime.Context) error { return f(jc) }

func blockUntilCanceled(started chan<- struct{}) handlerFunc {
	return func(jc *runtime.Context) error {
		close(started)
		<-jc.Ctx.Done()
		jc.Canceled("Canceled: " + context.Cause(jc.Ctx).Error())
		return nil
	}
}

func setup(t *testing.T, h runtime.Handler) (*Worker, repos.GenerationRunRepo, *types.GenerationRun) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	tenant := testutil.SeedTenant(t, db, "acme")
	repo := repos.NewGenerationRunRepo(db, log)
	run := &types.GenerationRun{
		TenantID:         tenant.ID,
		Status:           types.RunStatusQueued,
		Phase:            types.PhaseInitializing,
		CurrentStage:     types.StageInitializing,
		CourseCount:      1,
		ModulesPerCourse: 1,
	}
	if _, err := repo.Create(testutil.Ctx(), run); err != nil {
		t.Fatalf("create run: %v", err)
	}
	w := NewWorker(repo, h, nil, Config{Concurrency: 1, PollInterval: 10 * time.Millisecond, HeartbeatInterval: 5 * time.Millisecond}, log)
	return w, repo, run
}

func waitTerminal(t *testing.T, repo repos.GenerationRunRepo, run *types.GenerationRun) *types.GenerationRun {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, err := repo.GetByID(testutil.Ctx(), run.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got != nil && types.IsTerminalRunStatus(got.Status) {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("run %s never reached a terminal state", run.ID)
	return nil
}

func TestWorkerClaimsAndRunsQueuedRun(t *testing.T) {
	w, repo, run := setup(t, handlerFunc(func(jc *runtime.Context) error {
		if jc.Run.Status != types.RunStatusRunning {
			t.Errorf("status: expected running got %s", jc.Run.Status)
		}
		jc.Succeed()
		return nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	w.Wake()

	got := waitTerminal(t, repo, run)
	if got.Status != types.RunStatusSucceeded || got.Progress != 100 {
		t.Fatalf("expected succeeded/100 got %s/%d", got.Status, got.Progress)
	}
	if got.StartedAt == nil {
		t.Fatalf("expected started_at to be set on claim")
	}
	cancel()
	w.Wait()
}

func TestWorkerRecoversHandlerPanic(t *testing.T) {
	w, repo, run := setup(t, handlerFunc(func(jc *runtime.Context) error {
		panic("boom")
	}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	got := waitTerminal(t, repo, run)
	if got.Status != types.RunStatusFailed || got.Progress != types.ProgressErrored {
		t.Fatalf("expected failed sentinel got %s/%d", got.Status, got.Progress)
	}
	if info := got.ErrorInfo(); info == nil || info.Code != "internal_error" {
		t.Fatalf("error info: got %+v", info)
	}
	cancel()
	w.Wait()
}

func TestWorkerSafetyNetFailsOnReturnedError(t *testing.T) {
	w, repo, run := setup(t, handlerFunc(func(jc *runtime.Context) error {
		return errors.New("handler gave up")
	}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	got := waitTerminal(t, repo, run)
	if got.Status != types.RunStatusFailed || got.CurrentStage != "handler gave up" {
		t.Fatalf("expected failed with handler message got %s %q", got.Status, got.CurrentStage)
	}
	cancel()
	w.Wait()
}

func TestWorkerCancelInterruptsActiveRun(t *testing.T) {
	started := make(chan struct{})
	w, repo, run := setup(t, blockUntilCanceled(started))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatalf("handler never started")
	}
	if !w.Cancel(run.ID, "requested by user") {
		t.Fatalf("Cancel: expected run to be active")
	}
	got := waitTerminal(t, repo, run)
	if got.Status != types.RunStatusCanceled || got.CurrentStage != "Canceled: requested by user" {
		t.Fatalf("expected canceled got %s %q", got.Status, got.CurrentStage)
	}
	if w.Cancel(run.ID, "again") {
		t.Fatalf("Cancel: expected finished run to be inactive")
	}
	cancel()
	w.Wait()
}

func TestWorkerShutdownCancelsInFlightRuns(t *testing.T) {
	started := make(chan struct{})
	w, repo, run := setup(t, blockUntilCanceled(started))
	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatalf("handler never started")
	}
	cancel()
	w.Wait()

	got, err := repo.GetByID(testutil.Ctx(), run.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != types.RunStatusCanceled || got.CurrentStage != "Canceled: "+ErrShutdown.Error() {
		t.Fatalf("expected shutdown cancel got %s %q", got.Status, got.CurrentStage)
	}
}
