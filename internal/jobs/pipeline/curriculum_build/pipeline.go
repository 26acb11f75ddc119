package curriculum_build

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	types "github.com/yungbote/curriculum-orchestrator/internal/domain"
	"github.com/yungbote/curriculum-orchestrator/internal/generation"
	"github.com/yungbote/curriculum-orchestrator/internal/jobs/runtime"
	"github.com/yungbote/curriculum-orchestrator/internal/observability"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/dbctx"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/textutil"
)

type walk struct {
	jc       *runtime.Context
	ctx      context.Context
	run      *types.GenerationRun
	tenantID uuid.UUID
}

// Run executes the walk for a claimed run. Terminal state is always written
// through jc; the returned error is reserved for failures to do even that.
func (p *Pipeline) Run(jc *runtime.Context) error {
	if jc == nil || jc.Run == nil {
		return fmt.Errorf("missing run")
	}
	ctx, span := observability.Tracer().Start(jc.Ctx, "curriculum_build.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.id", jc.Run.ID.String()),
		attribute.String("tenant.id", jc.Run.TenantID.String()),
	)
	p.metrics.RunStarted()
	defer p.metrics.RunStopped()

	w := &walk{jc: jc, ctx: ctx, run: jc.Run, tenantID: jc.Run.TenantID}
	err := p.walk(w)
	switch {
	case err == nil:
		if jc.Succeed() {
			p.metrics.IncRunFinished(types.RunStatusSucceeded)
		}
	case errors.Is(err, runtime.ErrRunClosed) || errors.Is(err, context.Canceled) || ctx.Err() != nil:
		p.stop(w)
	default:
		info := errorInfo(err)
		stage := info.Message
		if info.Unit != "" {
			stage = fmt.Sprintf("Failed at %s: %s", info.Unit, info.Message)
		}
		if jc.Fail(stage, info) {
			p.metrics.IncRunFinished(types.RunStatusFailed)
		}
	}
	return nil
}

// stop handles a walk that ended because the run was canceled, either
// through the row (someone else already wrote the terminal state) or through
// the context.
func (p *Pipeline) stop(w *walk) {
	stage := "Canceled"
	if cause := context.Cause(w.ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		stage = "Canceled: " + cause.Error()
	}
	if w.jc.Canceled(stage) {
		p.metrics.IncRunFinished(types.RunStatusCanceled)
	}
}

func (p *Pipeline) walk(w *walk) error {
	run := w.run
	if !w.jc.Stage(types.PhaseInitializing, "Loading faculties") {
		return p.closedOr(w, persistenceFailure("run", errors.New("could not record stage")))
	}

	faculties, err := p.faculties.ListByTenant(dbctx.New(w.ctx), w.tenantID, run.FacultyFilter)
	if err != nil {
		return persistenceFailure("faculties", err)
	}
	if len(faculties) == 0 {
		return &EmptyTenantError{TenantID: w.tenantID}
	}

	perModule := 1 + p.opts.MaterialsPerModule
	perCourse := 1 + run.ModulesPerCourse*(1+perModule)
	planned := len(faculties) * run.CourseCount * perCourse
	if !w.jc.Plan(planned, types.PhaseCourses, fmt.Sprintf("Generating %d courses across %d faculties", len(faculties)*run.CourseCount, len(faculties))) {
		return p.closedOr(w, persistenceFailure("run", errors.New("could not record plan")))
	}
	p.log.Info("walk planned", "run_id", run.ID, "faculties", len(faculties), "planned_units", planned)

	for _, faculty := range faculties {
		if faculty.TenantID != w.tenantID {
			return &unitError{unit: "faculty " + faculty.Slug, code: CodeTenantMismatch, err: errors.New("faculty belongs to another tenant")}
		}
		for ci := 1; ci <= run.CourseCount; ci++ {
			if err := p.buildCourse(w, faculty, ci); err != nil {
				return err
			}
		}
		if !w.jc.FacultyDone(fmt.Sprintf("Finished faculty %s", faculty.Name)) {
			return p.closedOr(w, persistenceFailure("faculty "+faculty.Slug, errors.New("could not record progress")))
		}
	}
	return nil
}

func (p *Pipeline) buildCourse(w *walk, faculty *types.Faculty, position int) error {
	unit := fmt.Sprintf("course %d of faculty %s", position, faculty.Name)
	if err := p.checkpoint(w); err != nil {
		return err
	}
	req, err := p.render(generation.KindCourse, generation.PromptInput{
		Faculty:  faculty.Name,
		Position: position,
		Total:    w.run.CourseCount,
	})
	if err != nil {
		return providerFailure(unit, err)
	}
	out, err := p.generate(w.ctx, req)
	if err != nil {
		return p.callFailure(w, unit, err)
	}
	title, body := generation.SplitTitle(out.Text, fmt.Sprintf("%s Course %d", faculty.Name, position))
	course := &types.Course{
		TenantID:    faculty.TenantID,
		FacultyID:   faculty.ID,
		RunID:       &w.run.ID,
		Title:       title,
		Description: firstParagraph(body),
		Content:     body,
	}
	if _, err := p.courses.Create(dbctx.New(w.ctx), course); err != nil {
		return persistenceFailure(unit, err)
	}
	p.metrics.IncUnitCreated(string(runtime.UnitCourse))
	if !w.jc.UnitDone(runtime.UnitCourse, types.PhaseCourses, fmt.Sprintf("Created course %q for faculty %s", course.Title, faculty.Name)) {
		return p.closedOr(w, persistenceFailure(unit, errors.New("could not record progress")))
	}

	for mi := 1; mi <= w.run.ModulesPerCourse; mi++ {
		if err := p.buildModule(w, faculty, course, mi); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) buildModule(w *walk, faculty *types.Faculty, course *types.Course, position int) error {
	unit := fmt.Sprintf("module %d of course %q", position, course.Title)
	if err := p.checkpoint(w); err != nil {
		return err
	}
	req, err := p.render(generation.KindModule, generation.PromptInput{
		Faculty:  faculty.Name,
		Course:   course.Title,
		Position: position,
		Total:    w.run.ModulesPerCourse,
	})
	if err != nil {
		return providerFailure(unit, err)
	}
	out, err := p.generate(w.ctx, req)
	if err != nil {
		return p.callFailure(w, unit, err)
	}
	title, body := generation.SplitTitle(out.Text, fmt.Sprintf("%s Module %d", course.Title, position))
	module := &types.Module{
		TenantID: course.TenantID,
		CourseID: course.ID,
		RunID:    &w.run.ID,
		Position: position,
		Title:    title,
		Content:  body,
	}
	if _, err := p.modules.Create(dbctx.New(w.ctx), module); err != nil {
		return persistenceFailure(unit, err)
	}
	p.metrics.IncUnitCreated(string(runtime.UnitModule))
	if !w.jc.UnitDone(runtime.UnitModule, types.PhaseModules, fmt.Sprintf("Created module %q in course %q", module.Title, course.Title)) {
		return p.closedOr(w, persistenceFailure(unit, errors.New("could not record progress")))
	}

	in := LeafInput{Faculty: faculty, Course: course, Module: module}
	if err := p.buildQuiz(w, in); err != nil {
		return err
	}
	for i := 1; i <= p.opts.MaterialsPerModule; i++ {
		if err := p.buildMaterial(w, in, i); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) buildQuiz(w *walk, in LeafInput) error {
	unit := fmt.Sprintf("quiz for module %q", in.Module.Title)
	if err := p.checkpoint(w); err != nil {
		return err
	}
	quiz, err := p.leaves.Quiz(w.ctx, in)
	if err != nil {
		return p.callFailure(w, unit, err)
	}
	quiz.TenantID = in.Module.TenantID
	quiz.ModuleID = in.Module.ID
	quiz.RunID = &w.run.ID
	if _, err := p.quizzes.Create(dbctx.New(w.ctx), quiz); err != nil {
		return persistenceFailure(unit, err)
	}
	p.metrics.IncUnitCreated(string(runtime.UnitQuiz))
	if !w.jc.UnitDone(runtime.UnitQuiz, types.PhaseQuizzes, fmt.Sprintf("Created quiz for module %q", in.Module.Title)) {
		return p.closedOr(w, persistenceFailure(unit, errors.New("could not record progress")))
	}
	return nil
}

func (p *Pipeline) buildMaterial(w *walk, in LeafInput, position int) error {
	unit := fmt.Sprintf("material %d for module %q", position, in.Module.Title)
	if err := p.checkpoint(w); err != nil {
		return err
	}
	material, err := p.leaves.Material(w.ctx, in, position, p.opts.MaterialsPerModule)
	if err != nil {
		return p.callFailure(w, unit, err)
	}
	material.TenantID = in.Module.TenantID
	material.ModuleID = in.Module.ID
	material.RunID = &w.run.ID
	material.Position = position
	if _, err := p.materials.Create(dbctx.New(w.ctx), material); err != nil {
		return persistenceFailure(unit, err)
	}
	p.metrics.IncUnitCreated(string(runtime.UnitMaterial))
	if !w.jc.UnitDone(runtime.UnitMaterial, types.PhaseMaterials, fmt.Sprintf("Created %s material for module %q", material.Kind, in.Module.Title)) {
		return p.closedOr(w, persistenceFailure(unit, errors.New("could not record progress")))
	}
	return nil
}

// checkpoint runs before every unit so cancellation lands between units.
func (p *Pipeline) checkpoint(w *walk) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	if !w.jc.Live() {
		return runtime.ErrRunClosed
	}
	return nil
}

// closedOr distinguishes a rejected write on a closed run from a real
// storage failure.
func (p *Pipeline) closedOr(w *walk, err error) error {
	if !w.jc.Live() {
		if ctxErr := w.ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return runtime.ErrRunClosed
	}
	return err
}

func (p *Pipeline) callFailure(w *walk, unit string, err error) error {
	if ctxErr := w.ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return providerFailure(unit, err)
}

func (p *Pipeline) render(kind generation.Kind, in generation.PromptInput) (generation.Request, error) {
	if p.prompts == nil {
		return generation.Request{Kind: kind, Prompt: fmt.Sprintf("%s %d of %d for %s %s", kind, in.Position, in.Total, in.Faculty, in.Course)}, nil
	}
	req, err := p.prompts.Render(kind, in)
	if err != nil {
		return generation.Request{}, &generation.ProviderFatalError{Provider: "prompts", Err: err}
	}
	return req, nil
}

func firstParagraph(body string) string {
	for _, line := range splitLines(body) {
		if line != "" {
			return textutil.Truncate(line, 500)
		}
	}
	return ""
}
