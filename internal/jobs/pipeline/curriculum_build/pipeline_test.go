package curriculum_build

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/yungbote/curriculum-orchestrator/internal/data/repos"
	"github.com/yungbote/curriculum-orchestrator/internal/data/repos/testutil"
	types "github.com/yungbote/curriculum-orchestrator/internal/domain"
	"github.com/yungbote/curriculum-orchestrator/internal/generation"
	"github.com/yungbote/curriculum-orchestrator/internal/jobs/runtime"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/throttle"
)

type fakeGenerator struct {
	mu    sync.Mutex
	calls []generation.Request
	at    []time.Time
	// respond may return an error for the n-th call (1-based).
	respond func(n int, req generation.Request) (generation.GeneratedText, error)
}

func (f *fakeGenerator) Name() string { return "fake" }

func (f *fakeGenerator) Generate(ctx context.Context, req generation.Request) (generation.GeneratedText, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.at = append(f.at, time.Now())
	n := len(f.calls)
	f.mu.Unlock()
	if f.respond != nil {
		return f.respond(n, req)
	}
	return generation.GeneratedText{Text: fmt.Sprintf("%s title %d\nbody", req.Kind, n)}, nil
}

func (f *fakeGenerator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type harness struct {
	db       *gorm.DB
	log      *logger.Logger
	runs     repos.GenerationRunRepo
	deps     Deps
	tenant   *types.Tenant
	gen      *fakeGenerator
	prompts  *generation.PromptBook
	quizzes  repos.QuizRepo
	courses  repos.CourseRepo
	modules  repos.ModuleRepo
	material repos.MaterialRepo
}

func newHarness(t *testing.T, faculties ...string) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	prompts, err := generation.DefaultPromptBook()
	if err != nil {
		t.Fatalf("prompts: %v", err)
	}
	h := &harness{
		db:       db,
		log:      log,
		runs:     repos.NewGenerationRunRepo(db, log),
		tenant:   testutil.SeedTenant(t, db, "acme"),
		gen:      &fakeGenerator{},
		prompts:  prompts,
		quizzes:  repos.NewQuizRepo(db, log),
		courses:  repos.NewCourseRepo(db, log),
		modules:  repos.NewModuleRepo(db, log),
		material: repos.NewMaterialRepo(db, log),
	}
	for _, slug := range faculties {
		testutil.SeedFaculty(t, db, h.tenant.ID, slug)
	}
	h.deps = Deps{
		Faculties: repos.NewFacultyRepo(db, log),
		Courses:   h.courses,
		Modules:   h.modules,
		Quizzes:   h.quizzes,
		Materials: h.material,
		Generator: h.gen,
		Limiter:   throttle.New(0),
		Prompts:   prompts,
	}
	return h
}

func (h *harness) pipeline(mode LeafMode, materials int) *Pipeline {
	return New(h.deps, Options{
		MaxAttempts:        3,
		BackoffBase:        time.Millisecond,
		BackoffMax:         5 * time.Millisecond,
		QuestionsPerQuiz:   5,
		MaterialsPerModule: materials,
	}, mode, h.log)
}

func (h *harness) newRun(t *testing.T, courses, modules int) *types.GenerationRun {
	t.Helper()
	run := &types.GenerationRun{
		TenantID:         h.tenant.ID,
		Status:           types.RunStatusRunning,
		Phase:            types.PhaseInitializing,
		CurrentStage:     types.StageInitializing,
		CourseCount:      courses,
		ModulesPerCourse: modules,
	}
	if _, err := h.runs.Create(testutil.Ctx(), run); err != nil {
		t.Fatalf("create run: %v", err)
	}
	return run
}

func (h *harness) exec(t *testing.T, ctx context.Context, p *Pipeline, run *types.GenerationRun) *types.GenerationRun {
	t.Helper()
	jc := runtime.NewContext(ctx, run, h.runs, nil, h.log)
	if err := p.Run(jc); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got, err := h.runs.GetByID(testutil.Ctx(), run.ID)
	if err != nil || got == nil {
		t.Fatalf("reload run: %v", err)
	}
	return got
}

func TestHappyPathSingleBranch(t *testing.T) {
	h := newHarness(t, "science")
	run := h.newRun(t, 1, 1)
	got := h.exec(t, context.Background(), h.pipeline(LeafPlaceholder, 2), run)

	if got.Status != types.RunStatusSucceeded || got.Progress != 100 || got.CurrentStage != types.StageComplete {
		t.Fatalf("expected completed run got status=%s progress=%d stage=%q", got.Status, got.Progress, got.CurrentStage)
	}
	if got.CoursesCreated != 1 || got.ModulesCreated != 1 || got.QuizzesCreated != 1 || got.MaterialsCreated != 2 || got.FacultiesProcessed != 1 {
		t.Fatalf("unexpected counters %+v", got)
	}
	if got.PlannedUnits != got.CompletedUnits {
		t.Fatalf("planned %d != completed %d", got.PlannedUnits, got.CompletedUnits)
	}
	if n := h.gen.count(); n != 2 {
		t.Fatalf("placeholder leaves: expected 2 provider calls got %d", n)
	}

	quizzes, _ := h.quizzes.ListByTenant(testutil.Ctx(), h.tenant.ID)
	if len(quizzes) != 1 || len(quizzes[0].Questions) != 5 {
		t.Fatalf("expected one quiz with 5 questions got %+v", quizzes)
	}
}

func TestEveryEntityCarriesParentTenant(t *testing.T) {
	h := newHarness(t, "science", "arts")
	other := testutil.SeedTenant(t, h.db, "other")
	testutil.SeedFaculty(t, h.db, other.ID, "law")

	run := h.newRun(t, 2, 2)
	got := h.exec(t, context.Background(), h.pipeline(LeafPlaceholder, 1), run)
	if got.Status != types.RunStatusSucceeded {
		t.Fatalf("expected success got %s (%s)", got.Status, got.CurrentStage)
	}

	dbc := testutil.Ctx()
	courses, _ := h.courses.ListByTenant(dbc, h.tenant.ID)
	modules, _ := h.modules.ListByTenant(dbc, h.tenant.ID)
	mats, _ := h.material.ListByTenant(dbc, h.tenant.ID)
	if len(courses) != 4 || len(modules) != 8 || len(mats) != 8 {
		t.Fatalf("expected 4/8/8 got %d/%d/%d", len(courses), len(modules), len(mats))
	}
	courseTenant := map[string]string{}
	for _, c := range courses {
		if c.TenantID != h.tenant.ID {
			t.Fatalf("course %s has tenant %s", c.ID, c.TenantID)
		}
		courseTenant[c.ID.String()] = c.TenantID.String()
	}
	for _, m := range modules {
		if courseTenant[m.CourseID.String()] != m.TenantID.String() {
			t.Fatalf("module %s tenant differs from its course", m.ID)
		}
	}
	if others, _ := h.courses.ListByTenant(dbc, other.ID); len(others) != 0 {
		t.Fatalf("walk leaked into other tenant: %d courses", len(others))
	}
}

func TestEmptyTenantFailsWithoutProviderCalls(t *testing.T) {
	h := newHarness(t)
	run := h.newRun(t, 3, 3)
	got := h.exec(t, context.Background(), h.pipeline(LeafPlaceholder, 1), run)

	want := fmt.Sprintf("No faculties found for tenant %s", h.tenant.ID)
	if got.Status != types.RunStatusFailed || got.Progress != types.ProgressErrored || got.CurrentStage != want {
		t.Fatalf("expected empty tenant failure got status=%s progress=%d stage=%q", got.Status, got.Progress, got.CurrentStage)
	}
	if info := got.ErrorInfo(); info == nil || info.Code != CodeEmptyTenant {
		t.Fatalf("error info: got %+v", info)
	}
	if n := h.gen.count(); n != 0 {
		t.Fatalf("expected no provider calls got %d", n)
	}
}

func TestTransientHiccupCreatesUnitOnce(t *testing.T) {
	h := newHarness(t, "science")
	h.gen.respond = func(n int, req generation.Request) (generation.GeneratedText, error) {
		if n == 1 {
			return generation.GeneratedText{}, &generation.ProviderTransientError{Provider: "fake", Err: errors.New("503")}
		}
		return generation.GeneratedText{Text: fmt.Sprintf("%s %d", req.Kind, n)}, nil
	}
	run := h.newRun(t, 1, 1)
	got := h.exec(t, context.Background(), h.pipeline(LeafPlaceholder, 0), run)

	if got.Status != types.RunStatusSucceeded {
		t.Fatalf("expected success got %s (%s)", got.Status, got.CurrentStage)
	}
	courses, _ := h.courses.ListByTenant(testutil.Ctx(), h.tenant.ID)
	if len(courses) != 1 || got.CoursesCreated != 1 {
		t.Fatalf("expected exactly one course got rows=%d counter=%d", len(courses), got.CoursesCreated)
	}
	if n := h.gen.count(); n != 3 {
		t.Fatalf("expected 3 provider calls (retry + module) got %d", n)
	}
}

func TestPartialFailureKeepsPersistedUnits(t *testing.T) {
	h := newHarness(t, "science")
	h.gen.respond = func(n int, req generation.Request) (generation.GeneratedText, error) {
		// course, module 1, module 2 -> fatal
		if n == 3 {
			return generation.GeneratedText{}, &generation.ProviderFatalError{Provider: "fake", Err: errors.New("400 bad request")}
		}
		return generation.GeneratedText{Text: fmt.Sprintf("%s %d", req.Kind, n)}, nil
	}
	run := h.newRun(t, 1, 3)
	got := h.exec(t, context.Background(), h.pipeline(LeafPlaceholder, 1), run)

	if got.Status != types.RunStatusFailed || got.Progress != types.ProgressErrored {
		t.Fatalf("expected failed sentinel got status=%s progress=%d", got.Status, got.Progress)
	}
	if !strings.Contains(got.CurrentStage, "module 2") {
		t.Fatalf("stage should name the failing unit, got %q", got.CurrentStage)
	}
	info := got.ErrorInfo()
	if info == nil || info.Code != CodeProviderFatal {
		t.Fatalf("error info: got %+v", info)
	}
	modules, _ := h.modules.ListByTenant(testutil.Ctx(), h.tenant.ID)
	if len(modules) != 1 || got.ModulesCreated != 1 {
		t.Fatalf("expected 1 persisted module matching counter, rows=%d counter=%d", len(modules), got.ModulesCreated)
	}
	if got.CoursesCreated != 1 || got.QuizzesCreated != 1 || got.MaterialsCreated != 1 {
		t.Fatalf("unexpected counters %+v", got)
	}
}

func TestTransientExhaustionFailsRun(t *testing.T) {
	h := newHarness(t, "science")
	h.gen.respond = func(n int, req generation.Request) (generation.GeneratedText, error) {
		return generation.GeneratedText{}, &generation.ProviderTransientError{Provider: "fake", Err: errors.New("timeout")}
	}
	run := h.newRun(t, 1, 1)
	got := h.exec(t, context.Background(), h.pipeline(LeafPlaceholder, 0), run)

	if got.Status != types.RunStatusFailed {
		t.Fatalf("expected failure got %s", got.Status)
	}
	if info := got.ErrorInfo(); info == nil || info.Code != CodeProviderUnavailable {
		t.Fatalf("error info: got %+v", info)
	}
	if n := h.gen.count(); n != 3 {
		t.Fatalf("expected MaxAttempts calls got %d", n)
	}
}

func TestCancelStopsBetweenUnits(t *testing.T) {
	h := newHarness(t, "science")
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)
	h.gen.respond = func(n int, req generation.Request) (generation.GeneratedText, error) {
		if n == 2 {
			cancel(errors.New("requested by user"))
		}
		return generation.GeneratedText{Text: fmt.Sprintf("%s %d", req.Kind, n)}, nil
	}
	run := h.newRun(t, 1, 3)
	got := h.exec(t, ctx, h.pipeline(LeafPlaceholder, 0), run)

	if got.Status != types.RunStatusCanceled || got.Progress != types.ProgressErrored {
		t.Fatalf("expected canceled sentinel got status=%s progress=%d", got.Status, got.Progress)
	}
	if got.CurrentStage != "Canceled: requested by user" {
		t.Fatalf("unexpected stage %q", got.CurrentStage)
	}
	if n := h.gen.count(); n != 2 {
		t.Fatalf("walk continued after cancel: %d calls", n)
	}
}

func TestGeneratedLeavesCallProvider(t *testing.T) {
	h := newHarness(t, "science")
	h.gen.respond = func(n int, req generation.Request) (generation.GeneratedText, error) {
		if req.Kind == generation.KindQuiz {
			return generation.GeneratedText{Text: "1. What is force? | push | color | sound | 0\n2. Unit of mass? | meter | kilogram | 1"}, nil
		}
		return generation.GeneratedText{Text: fmt.Sprintf("%s %d\nbody", req.Kind, n)}, nil
	}
	run := h.newRun(t, 1, 1)
	got := h.exec(t, context.Background(), h.pipeline(LeafGenerated, 2), run)

	if got.Status != types.RunStatusSucceeded {
		t.Fatalf("expected success got %s (%s)", got.Status, got.CurrentStage)
	}
	if n := h.gen.count(); n != 5 {
		t.Fatalf("expected course+module+quiz+2 materials = 5 calls got %d", n)
	}
	quizzes, _ := h.quizzes.ListByTenant(testutil.Ctx(), h.tenant.ID)
	qs := quizzes[0].Questions
	if len(qs) != 5 || qs[0].Prompt != "What is force?" || qs[1].AnswerIndex != 1 {
		t.Fatalf("unexpected questions %+v", qs)
	}
}

func TestConcurrentRunsShareRateLimit(t *testing.T) {
	h := newHarness(t, "science")
	const interval = 10 * time.Millisecond
	h.deps.Limiter = throttle.New(interval)
	p := h.pipeline(LeafPlaceholder, 0)

	runA := h.newRun(t, 2, 1)
	runB := h.newRun(t, 2, 1)
	var wg sync.WaitGroup
	for _, r := range []*types.GenerationRun{runA, runB} {
		wg.Add(1)
		go func(run *types.GenerationRun) {
			defer wg.Done()
			jc := runtime.NewContext(context.Background(), run, h.runs, nil, h.log)
			_ = p.Run(jc)
		}(r)
	}
	wg.Wait()

	h.gen.mu.Lock()
	at := append([]time.Time(nil), h.gen.at...)
	h.gen.mu.Unlock()
	if len(at) != 8 {
		t.Fatalf("expected 8 calls got %d", len(at))
	}
	sort.Slice(at, func(i, j int) bool { return at[i].Before(at[j]) })
	for i := 1; i < len(at); i++ {
		if gap := at[i].Sub(at[i-1]); gap < interval-time.Millisecond {
			t.Fatalf("calls %d and %d only %v apart", i-1, i, gap)
		}
	}
}

func TestGeneratorPanicFreesLimiterSlot(t *testing.T) {
	h := newHarness(t, "science")
	h.gen.respond = func(n int, req generation.Request) (generation.GeneratedText, error) {
		if n == 1 {
			panic("provider sdk blew up")
		}
		return generation.GeneratedText{Text: fmt.Sprintf("%s %d", req.Kind, n)}, nil
	}
	p := h.pipeline(LeafPlaceholder, 0)

	first := h.newRun(t, 1, 1)
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatalf("expected the generator panic to propagate")
			}
		}()
		_ = p.Run(runtime.NewContext(context.Background(), first, h.runs, nil, h.log))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	got := h.exec(t, ctx, p, h.newRun(t, 1, 1))
	if got.Status != types.RunStatusSucceeded || got.Progress != 100 {
		t.Fatalf("run after panic: status=%s progress=%d stage=%q", got.Status, got.Progress, got.CurrentStage)
	}
	if n := h.gen.count(); n != 3 {
		t.Fatalf("expected 1 panicking + 2 successful calls got %d", n)
	}
}

func TestFirstParagraphTruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("a", 499) + "é…"
	got := firstParagraph("\n  " + long + "\nsecond")
	if !utf8.ValidString(got) || got != strings.Repeat("a", 499) {
		t.Fatalf("unexpected paragraph len=%d valid=%v", len(got), utf8.ValidString(got))
	}
	if got := firstParagraph("\n\nKurs über Physik\nbody"); got != "Kurs über Physik" {
		t.Fatalf("got %q", got)
	}
}
