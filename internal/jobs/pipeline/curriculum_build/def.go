package curriculum_build

import (
	"time"

	"github.com/yungbote/curriculum-orchestrator/internal/data/repos"
	"github.com/yungbote/curriculum-orchestrator/internal/generation"
	"github.com/yungbote/curriculum-orchestrator/internal/observability"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/throttle"
)

const JobType = "curriculum_build"

type Options struct {
	MaxAttempts        int
	BackoffBase        time.Duration
	BackoffMax         time.Duration
	QuestionsPerQuiz   int
	MaterialsPerModule int
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 2 * time.Second
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = time.Minute
	}
	if o.QuestionsPerQuiz < 1 {
		o.QuestionsPerQuiz = 5
	}
	if o.MaterialsPerModule < 0 {
		o.MaterialsPerModule = 0
	}
	return o
}

type Deps struct {
	Faculties repos.FacultyRepo
	Courses   repos.CourseRepo
	Modules   repos.ModuleRepo
	Quizzes   repos.QuizRepo
	Materials repos.MaterialRepo
	Generator generation.Generator
	Limiter   *throttle.Limiter
	Prompts   *generation.PromptBook
	Metrics   *observability.Metrics
}

// Pipeline walks tenant -> faculty -> course -> module -> leaves, one
// provider call and one insert at a time.
type Pipeline struct {
	log       *logger.Logger
	faculties repos.FacultyRepo
	courses   repos.CourseRepo
	modules   repos.ModuleRepo
	quizzes   repos.QuizRepo
	materials repos.MaterialRepo
	gen       generation.Generator
	limiter   *throttle.Limiter
	prompts   *generation.PromptBook
	metrics   *observability.Metrics
	leaves    LeafSource
	opts      Options
}

// LeafMode selects how quizzes and materials are produced.
type LeafMode string

const (
	LeafPlaceholder LeafMode = "placeholder"
	LeafGenerated   LeafMode = "generated"
)

func New(deps Deps, opts Options, mode LeafMode, baseLog *logger.Logger) *Pipeline {
	p := &Pipeline{
		log:       baseLog.With("job", JobType),
		faculties: deps.Faculties,
		courses:   deps.Courses,
		modules:   deps.Modules,
		quizzes:   deps.Quizzes,
		materials: deps.Materials,
		gen:       deps.Generator,
		limiter:   deps.Limiter,
		prompts:   deps.Prompts,
		metrics:   deps.Metrics,
		opts:      opts.withDefaults(),
	}
	if p.limiter == nil {
		p.limiter = throttle.New(0)
	}
	p.leaves = NewPlaceholderLeaves(p.opts.QuestionsPerQuiz)
	if mode == LeafGenerated && p.prompts != nil {
		p.leaves = NewGeneratedLeaves(p.generate, p.prompts, p.opts.QuestionsPerQuiz)
	}
	return p
}

func (p *Pipeline) Type() string { return JobType }
