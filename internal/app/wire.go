package app

import (
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/yungbote/curriculum-orchestrator/internal/data/repos"
	"github.com/yungbote/curriculum-orchestrator/internal/generation"
	httpx "github.com/yungbote/curriculum-orchestrator/internal/http"
	httpH "github.com/yungbote/curriculum-orchestrator/internal/http/handlers"
	httpMW "github.com/yungbote/curriculum-orchestrator/internal/http/middleware"
	"github.com/yungbote/curriculum-orchestrator/internal/jobs/pipeline/curriculum_build"
	"github.com/yungbote/curriculum-orchestrator/internal/jobs/worker"
	"github.com/yungbote/curriculum-orchestrator/internal/observability"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/openai"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/throttle"
	"github.com/yungbote/curriculum-orchestrator/internal/services"
	"github.com/yungbote/curriculum-orchestrator/internal/temporalx"
	"github.com/yungbote/curriculum-orchestrator/internal/temporalx/generationrun"
	"github.com/yungbote/curriculum-orchestrator/internal/temporalx/temporalworker"
)

type Repos struct {
	Tenants     repos.TenantRepo
	UserTenants repos.UserTenantRepo
	Faculties   repos.FacultyRepo
	Courses     repos.CourseRepo
	Modules     repos.ModuleRepo
	Quizzes     repos.QuizRepo
	Materials   repos.MaterialRepo
	Runs        repos.GenerationRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Tenants:     repos.NewTenantRepo(db, log),
		UserTenants: repos.NewUserTenantRepo(db, log),
		Faculties:   repos.NewFacultyRepo(db, log),
		Courses:     repos.NewCourseRepo(db, log),
		Modules:     repos.NewModuleRepo(db, log),
		Quizzes:     repos.NewQuizRepo(db, log),
		Materials:   repos.NewMaterialRepo(db, log),
		Runs:        repos.NewGenerationRunRepo(db, log),
	}
}

func wireGenerator(cfg GeneratorConfig, metrics *observability.Metrics, log *logger.Logger) (generation.Generator, error) {
	var gen generation.Generator
	switch cfg.Provider {
	case "openai":
		client, err := openai.NewClient(openai.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.CallTimeout,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("init openai client: %w", err)
		}
		gen = generation.NewOpenAIGenerator(client, cfg.CallTimeout, metrics, log)
	default:
		gen = generation.NewStubGenerator(cfg.StubLatency)
	}
	log.Info("Generative provider selected", "provider", gen.Name(), "min_interval", cfg.MinInterval)
	return generation.NewBreakerGenerator(gen, generation.BreakerConfig{
		ConsecutiveFailures: cfg.BreakerFailures,
		OpenTimeout:         cfg.BreakerOpenTimeout,
	}, log), nil
}

func loadPromptBook(path string) (*generation.PromptBook, error) {
	if path == "" {
		return generation.DefaultPromptBook()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt book: %w", err)
	}
	return generation.ParsePromptBook(raw)
}

// wireRuns builds the pipeline and picks the executor: the in-process worker
// pool by default, Temporal when an address is configured. The worker always
// exists since Temporal activities execute through it.
func (a *App) wireRuns() error {
	cfg := a.Cfg
	gen, err := wireGenerator(cfg.Generator, a.Metrics, a.Log)
	if err != nil {
		return err
	}
	prompts, err := loadPromptBook(cfg.Generator.PromptBookPath)
	if err != nil {
		return err
	}
	limiter := throttle.New(cfg.Generator.MinInterval, throttle.WithWaitObserver(a.Metrics.ObserveLimiterWait))

	pipeline := curriculum_build.New(curriculum_build.Deps{
		Faculties: a.Repos.Faculties,
		Courses:   a.Repos.Courses,
		Modules:   a.Repos.Modules,
		Quizzes:   a.Repos.Quizzes,
		Materials: a.Repos.Materials,
		Generator: gen,
		Limiter:   limiter,
		Prompts:   prompts,
		Metrics:   a.Metrics,
	}, curriculum_build.Options{
		MaxAttempts:        cfg.Walker.MaxAttempts,
		BackoffBase:        cfg.Walker.BackoffBase,
		BackoffMax:         cfg.Walker.BackoffMax,
		QuestionsPerQuiz:   cfg.Walker.QuestionsPerQuiz,
		MaterialsPerModule: cfg.Walker.MaterialsPerModule,
	}, curriculum_build.LeafMode(cfg.Walker.LeafMode), a.Log)

	notifier := services.NewRunNotifier(a.Log, a.Bus, a.Metrics)
	a.Worker = worker.NewWorker(a.Repos.Runs, pipeline, notifier, worker.Config{
		Concurrency:       cfg.Worker.Concurrency,
		PollInterval:      cfg.Worker.PollInterval,
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
	}, a.Log)

	var dispatcher services.Dispatcher = worker.LocalDispatcher{W: a.Worker}
	if cfg.Temporal.Enabled() {
		tc, err := temporalx.NewClient(cfg.Temporal, a.Log)
		if err != nil {
			return fmt.Errorf("init temporal client: %w", err)
		}
		a.Temporal = tc
		a.Runner, err = temporalworker.NewRunner(a.Log, tc, cfg.Temporal, &generationrun.Activities{
			Log:               a.Log,
			Runs:              a.Repos.Runs,
			Exec:              a.Worker,
			HeartbeatInterval: cfg.Worker.HeartbeatInterval,
		})
		if err != nil {
			return err
		}
		dispatcher = temporalx.NewDispatcher(tc, cfg.Temporal, a.Log)
	}
	a.Log.Info("Run dispatcher selected", "dispatcher", dispatcher.Name())

	resolver := services.NewTenantResolver(a.Log, a.Repos.Tenants, a.Repos.UserTenants, cfg.Tenancy)
	a.Runs = services.NewGenerationService(a.Log, a.Repos.Runs, resolver, dispatcher, notifier)
	return nil
}

func (a *App) wireServer() *httpx.Server {
	cfg := a.Cfg
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return httpx.NewServer(cfg.HTTP.Addr, httpx.RouterConfig{
		Log:               a.Log,
		Metrics:           a.Metrics,
		ServiceName:       serviceName,
		CORSOrigins:       cfg.HTTP.CORSOrigins,
		AuthMiddleware:    httpMW.NewAuthMiddleware(a.Log, cfg.HTTP.JWTSecret),
		TriggerLimiter:    httpMW.NewRateLimiter(cfg.HTTP.TriggerPerMinute, cfg.HTTP.TriggerBurst),
		GenerationHandler: httpH.NewGenerationHandler(a.Runs),
		RealtimeHandler:   httpH.NewRealtimeHandler(a.Log, a.Hub),
		HealthHandler:     httpH.NewHealthHandler(a.DB.Ping),
	})
}
