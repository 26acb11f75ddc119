package runtime

import (
	"context"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/yungbote/curriculum-orchestrator/internal/data/repos"
	"github.com/yungbote/curriculum-orchestrator/internal/data/repos/testutil"
	types "github.com/yungbote/curriculum-orchestrator/internal/domain"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/dbctx"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
	pcts   []int
}

func (n *recordingNotifier) RunUpdated(_ context.Context, event Event, run *types.GenerationRun) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	n.pcts = append(n.pcts, run.Progress)
}

func setup(t *testing.T) (*Context, repos.GenerationRunRepo, *recordingNotifier) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := repos.NewGenerationRunRepo(db, log)
	tenant := testutil.SeedTenant(t, db, "acme")

	run := &types.GenerationRun{
		TenantID:         tenant.ID,
		Status:           types.RunStatusRunning,
		Phase:            types.PhaseInitializing,
		CurrentStage:     types.StageInitializing,
		CourseCount:      1,
		ModulesPerCourse: 1,
	}
	if _, err := repo.Create(testutil.Ctx(), run); err != nil {
		t.Fatalf("Create: %v", err)
	}
	n := &recordingNotifier{}
	return NewContext(context.Background(), run, repo, n, log), repo, n
}

func TestUnitDoneCountsAndCapsProgress(t *testing.T) {
	jc, repo, n := setup(t)

	if !jc.Plan(3, types.PhaseCourses, "Planning") {
		t.Fatalf("Plan rejected")
	}
	jc.UnitDone(UnitCourse, types.PhaseCourses, "course 1")
	jc.UnitDone(UnitModule, types.PhaseModules, "module 1")
	jc.UnitDone(UnitQuiz, types.PhaseQuizzes, "quiz 1")
	// More units than planned must not reach 100 before Succeed.
	jc.UnitDone(UnitMaterial, types.PhaseMaterials, "material 1")

	got, err := repo.GetByID(dbctx.New(context.Background()), jc.Run.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Progress != 99 || got.CompletedUnits != 4 {
		t.Fatalf("progress: expected 99 with 4 units got %d/%d", got.Progress, got.CompletedUnits)
	}
	if got.CoursesCreated != 1 || got.ModulesCreated != 1 || got.QuizzesCreated != 1 || got.MaterialsCreated != 1 {
		t.Fatalf("counters: got %+v", got)
	}
	for i := 1; i < len(n.pcts); i++ {
		if n.pcts[i] < n.pcts[i-1] {
			t.Fatalf("progress went backwards: %v", n.pcts)
		}
	}

	if !jc.Succeed() {
		t.Fatalf("Succeed rejected")
	}
	got, _ = repo.GetByID(dbctx.New(context.Background()), jc.Run.ID)
	if got.Progress != 100 || got.Status != types.RunStatusSucceeded || got.CurrentStage != types.StageComplete {
		t.Fatalf("terminal row: got %+v", got)
	}
}

func TestTerminalRunRejectsFurtherWrites(t *testing.T) {
	jc, repo, n := setup(t)
	jc.Plan(10, types.PhaseCourses, "Planning")

	if !jc.Fail("Generating course 1", types.RunErrorInfo{Code: "provider_fatal", Message: "bad request"}) {
		t.Fatalf("Fail rejected")
	}
	if jc.UnitDone(UnitCourse, types.PhaseCourses, "late") {
		t.Fatalf("UnitDone accepted after Fail")
	}
	if jc.Succeed() {
		t.Fatalf("Succeed accepted after Fail")
	}
	if jc.Live() {
		t.Fatalf("Live after Fail")
	}

	got, _ := repo.GetByID(dbctx.New(context.Background()), jc.Run.ID)
	if got.Progress != types.ProgressErrored || got.Status != types.RunStatusFailed {
		t.Fatalf("expected failed sentinel row got %+v", got)
	}
	info := got.ErrorInfo()
	if info == nil || info.Code != "provider_fatal" {
		t.Fatalf("error info: got %+v", info)
	}
	if last := n.events[len(n.events)-1]; last != EventRunFailed {
		t.Fatalf("last event: expected %s got %s", EventRunFailed, last)
	}
}

func TestExternalCancelStopsWriter(t *testing.T) {
	jc, repo, _ := setup(t)
	dbc := dbctx.New(context.Background())

	ok, err := repo.UpdateFieldsUnlessStatus(dbc, jc.Run.ID, types.TerminalRunStatuses, map[string]interface{}{
		"status":   types.RunStatusCanceled,
		"progress": types.ProgressErrored,
	})
	if err != nil || !ok {
		t.Fatalf("cancel row: ok=%v err=%v", ok, err)
	}

	if jc.UnitDone(UnitCourse, types.PhaseCourses, "course 1") {
		t.Fatalf("UnitDone accepted on canceled row")
	}
	if jc.Live() {
		t.Fatalf("Live after row canceled")
	}
	got, _ := repo.GetByID(dbc, jc.Run.ID)
	if got.CoursesCreated != 0 || got.Progress != types.ProgressErrored {
		t.Fatalf("canceled row mutated: %+v", got)
	}
}

func TestCanceledContextStillRecordsTerminalState(t *testing.T) {
	jc, repo, _ := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	jc.Ctx = ctx
	cancel()

	if jc.Stage(types.PhaseCourses, "x") {
		t.Fatalf("Stage accepted with canceled context")
	}
	if !jc.Canceled("Canceled") {
		t.Fatalf("Canceled rejected")
	}
	got, _ := repo.GetByID(dbctx.New(context.Background()), jc.Run.ID)
	if got.Status != types.RunStatusCanceled || got.Phase != types.PhaseCanceled {
		t.Fatalf("expected canceled row got %+v", got)
	}
}

func TestFailStoresValidStageText(t *testing.T) {
	jc, repo, _ := setup(t)
	stage := "Generating course 1: " + strings.Repeat("é", maxStageBytes) + "\xc3"
	if !jc.Fail(stage, types.RunErrorInfo{Code: "provider_fatal", Message: "bad \xff body"}) {
		t.Fatalf("Fail rejected")
	}

	got, _ := repo.GetByID(dbctx.New(context.Background()), jc.Run.ID)
	if !utf8.ValidString(got.CurrentStage) || len(got.CurrentStage) > maxStageBytes {
		t.Fatalf("stage not bounded valid text: len=%d", len(got.CurrentStage))
	}
	if !strings.HasPrefix(got.CurrentStage, "Generating course 1: ") {
		t.Fatalf("stage lost its prefix: %q", got.CurrentStage[:32])
	}
	if info := got.ErrorInfo(); info == nil || info.Message != "bad  body" {
		t.Fatalf("error info: got %+v", info)
	}
}
