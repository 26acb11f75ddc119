package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/yungbote/curriculum-orchestrator/internal/realtime/bus"
	"github.com/yungbote/curriculum-orchestrator/internal/services"
	"github.com/yungbote/curriculum-orchestrator/internal/temporalx"
)

const (
	ConfigPathEnvVar = "CONFIG_PATH"
	EnvPrefix        = "CO_"
)

var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/curriculum-orchestrator/config.yaml",
}

// sliceConfigPaths arrive from the environment as comma separated strings.
var sliceConfigPaths = []string{
	"http.cors_origins",
}

type Config struct {
	LogMode   string                 `koanf:"log_mode" validate:"oneof=development production test"`
	HTTP      HTTPConfig             `koanf:"http"`
	Database  DatabaseConfig         `koanf:"database"`
	Generator GeneratorConfig        `koanf:"generator"`
	Walker    WalkerConfig           `koanf:"walker"`
	Worker    WorkerConfig           `koanf:"worker"`
	Tenancy   services.TenancyConfig `koanf:"tenancy"`
	Temporal  temporalx.Config       `koanf:"temporal"`
	Redis     bus.RedisConfig        `koanf:"redis"`
	Otel      OtelConfig             `koanf:"otel"`
}

type HTTPConfig struct {
	Addr             string   `koanf:"addr" validate:"required"`
	JWTSecret        string   `koanf:"jwt_secret"`
	CORSOrigins      []string `koanf:"cors_origins"`
	TriggerPerMinute int      `koanf:"trigger_per_minute" validate:"min=0"`
	TriggerBurst     int      `koanf:"trigger_burst" validate:"min=0"`
}

type DatabaseConfig struct {
	Driver        string        `koanf:"driver" validate:"oneof=postgres sqlite"`
	DSN           string        `koanf:"dsn" validate:"required"`
	MaxOpenConns  int           `koanf:"max_open_conns" validate:"min=0"`
	MaxIdleConns  int           `koanf:"max_idle_conns" validate:"min=0"`
	SlowThreshold time.Duration `koanf:"slow_threshold"`
	AutoMigrate   bool          `koanf:"auto_migrate"`
}

type GeneratorConfig struct {
	Provider           string        `koanf:"provider" validate:"oneof=openai stub"`
	APIKey             string        `koanf:"api_key" validate:"required_if=Provider openai"`
	BaseURL            string        `koanf:"base_url"`
	Model              string        `koanf:"model"`
	CallTimeout        time.Duration `koanf:"call_timeout"`
	MinInterval        time.Duration `koanf:"min_interval" validate:"min=0"`
	StubLatency        time.Duration `koanf:"stub_latency"`
	BreakerFailures    uint32        `koanf:"breaker_failures"`
	BreakerOpenTimeout time.Duration `koanf:"breaker_open_timeout"`
	PromptBookPath     string        `koanf:"prompt_book_path"`
}

type WalkerConfig struct {
	LeafMode           string        `koanf:"leaf_mode" validate:"oneof=placeholder generated"`
	MaxAttempts        int           `koanf:"max_attempts" validate:"min=1,max=10"`
	BackoffBase        time.Duration `koanf:"backoff_base"`
	BackoffMax         time.Duration `koanf:"backoff_max"`
	QuestionsPerQuiz   int           `koanf:"questions_per_quiz" validate:"min=1,max=50"`
	MaterialsPerModule int           `koanf:"materials_per_module" validate:"min=0,max=20"`
}

type WorkerConfig struct {
	Concurrency       int           `koanf:"concurrency" validate:"min=1"`
	PollInterval      time.Duration `koanf:"poll_interval"`
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
}

type OtelConfig struct {
	Enabled     bool    `koanf:"enabled"`
	ServiceName string  `koanf:"service_name"`
	Environment string  `koanf:"environment"`
	Endpoint    string  `koanf:"endpoint"`
	Insecure    bool    `koanf:"insecure"`
	SampleRatio float64 `koanf:"sample_ratio" validate:"min=0,max=1"`
}

func defaultConfig() *Config {
	return &Config{
		LogMode: "development",
		HTTP: HTTPConfig{
			Addr:             ":8080",
			TriggerPerMinute: 6,
			TriggerBurst:     2,
		},
		Database: DatabaseConfig{
			Driver:        "postgres",
			DSN:           "host=localhost user=postgres password=postgres dbname=curriculum port=5432 sslmode=disable",
			MaxOpenConns:  10,
			MaxIdleConns:  5,
			SlowThreshold: time.Second,
			AutoMigrate:   true,
		},
		Generator: GeneratorConfig{
			Provider:           "stub",
			Model:              "gpt-4o-mini",
			CallTimeout:        90 * time.Second,
			MinInterval:        time.Second,
			BreakerFailures:    5,
			BreakerOpenTimeout: 30 * time.Second,
		},
		Walker: WalkerConfig{
			LeafMode:           "placeholder",
			MaxAttempts:        3,
			BackoffBase:        2 * time.Second,
			BackoffMax:         time.Minute,
			QuestionsPerQuiz:   5,
			MaterialsPerModule: 2,
		},
		Worker: WorkerConfig{
			Concurrency:       2,
			PollInterval:      time.Second,
			HeartbeatInterval: 15 * time.Second,
		},
		Tenancy: services.TenancyConfig{
			DefaultSlug: "default",
		},
		Temporal: temporalx.Config{
			Namespace:     "curriculum",
			TaskQueue:     "curriculum-generation",
			RetentionDays: 7,
			DialTimeout:   5 * time.Second,
			DialMaxWait:   time.Minute,
			Concurrency:   2,
		},
		Redis: bus.RedisConfig{
			Channel: "curriculum:sse",
		},
		Otel: OtelConfig{
			ServiceName: "curriculum-orchestrator",
			Environment: "development",
			SampleRatio: 1,
		},
	}
}

// LoadConfig layers struct defaults, an optional YAML file and CO_ prefixed
// environment variables, in that order. CO_DATABASE__DSN sets database.dsn.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Temporal.Enabled() && c.Temporal.TaskQueue == "" {
		return fmt.Errorf("temporal.task_queue is required when temporal.address is set")
	}
	return nil
}

func findConfigFile() string {
	if p := strings.TrimSpace(os.Getenv(ConfigPathEnvVar)); p != "" {
		return p
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func envTransformFunc(key string) string {
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}
