package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	types "github.com/yungbote/curriculum-orchestrator/internal/domain"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Options struct {
	Driver        string
	DSN           string
	MaxOpenConns  int
	MaxIdleConns  int
	SlowThreshold time.Duration
	Silent        bool
}

type Service struct {
	db     *gorm.DB
	driver string
	log    *logger.Logger
}

func Open(opts Options, baseLog *logger.Logger) (*Service, error) {
	serviceLog := baseLog.With("service", "DatabaseService")
	driver := strings.ToLower(strings.TrimSpace(opts.Driver))
	if strings.TrimSpace(opts.DSN) == "" {
		return nil, fmt.Errorf("missing database dsn")
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres, "pg", "postgresql":
		driver = DriverPostgres
		dialector = postgres.Open(opts.DSN)
	case DriverSQLite, "sqlite3":
		driver = DriverSQLite
		dialector = sqlite.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	slow := opts.SlowThreshold
	if slow <= 0 {
		slow = time.Second
	}
	level := gormLogger.Warn
	if opts.Silent {
		level = gormLogger.Silent
	}
	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             slow,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	gdb, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	if driver == DriverSQLite {
		// One writer; in-memory databases are per connection.
		sqlDB.SetMaxOpenConns(1)
	} else {
		if opts.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		}
		if opts.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
		}
	}

	serviceLog.Info("database connected", "driver", driver)
	return &Service{db: gdb, driver: driver, log: serviceLog}, nil
}

func (s *Service) DB() *gorm.DB   { return s.db }
func (s *Service) Driver() string { return s.driver }

func (s *Service) AutoMigrateAll() error {
	if err := AutoMigrateAll(s.db); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	s.log.Info("schema migrated", "tables", len(types.Models()))
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(types.Models()...)
}
