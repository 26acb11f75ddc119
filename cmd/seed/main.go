package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/curriculum-orchestrator/internal/app"
	"github.com/yungbote/curriculum-orchestrator/internal/data/db"
	"github.com/yungbote/curriculum-orchestrator/internal/data/repos"
	types "github.com/yungbote/curriculum-orchestrator/internal/domain"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/dbctx"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
	"github.com/yungbote/curriculum-orchestrator/internal/platform/textutil"
)

// seed creates a tenant and its faculties so a generation run has
// something to walk. Existing rows are left alone.
func main() {
	var (
		slug      = flag.String("tenant", "default", "tenant slug")
		name      = flag.String("name", "", "tenant display name (defaults to the slug)")
		faculties = flag.String("faculties", "engineering,sciences,humanities", "comma separated faculty slugs")
		selectFor = flag.String("select-user", "", "user id whose selected tenant becomes this tenant")
	)
	flag.Parse()

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	var userID uuid.UUID
	if *selectFor != "" {
		if userID, err = uuid.Parse(strings.TrimSpace(*selectFor)); err != nil {
			fmt.Fprintf(os.Stderr, "invalid -select-user: %v\n", err)
			os.Exit(2)
		}
	}

	if err := run(log, cfg, *slug, *name, *faculties, userID); err != nil {
		log.Error("Seed failed", "error", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger, cfg *app.Config, slug, name, faculties string, selectFor uuid.UUID) error {
	svc, err := db.Open(db.Options{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN}, log)
	if err != nil {
		return err
	}
	defer svc.Close()
	if err := svc.AutoMigrateAll(); err != nil {
		return err
	}

	dbc := dbctx.New(context.Background())
	tenantRepo := repos.NewTenantRepo(svc.DB(), log)
	facultyRepo := repos.NewFacultyRepo(svc.DB(), log)

	tenant, err := tenantRepo.GetBySlug(dbc, slug)
	if err != nil {
		return err
	}
	if tenant == nil {
		if name == "" {
			name = slug
		}
		tenant, err = tenantRepo.Create(dbc, &types.Tenant{Slug: slug, Name: name, Active: true})
		if err != nil {
			return err
		}
		log.Info("Tenant created", "tenant_id", tenant.ID, "slug", slug)
	}

	existing, err := facultyRepo.ListByTenant(dbc, tenant.ID, "")
	if err != nil {
		return err
	}
	have := map[string]bool{}
	for _, f := range existing {
		have[f.Slug] = true
	}
	for _, fs := range strings.Split(faculties, ",") {
		fs = strings.TrimSpace(fs)
		if fs == "" || have[fs] {
			continue
		}
		f, err := facultyRepo.Create(dbc, &types.Faculty{TenantID: tenant.ID, Slug: fs, Name: textutil.Capitalize(fs)})
		if errors.Is(err, db.ErrDuplicate) {
			have[fs] = true
			continue
		}
		if err != nil {
			return err
		}
		have[fs] = true
		log.Info("Faculty created", "faculty_id", f.ID, "slug", fs)
	}
	if selectFor != uuid.Nil {
		if err := repos.NewUserTenantRepo(svc.DB(), log).Select(dbc, selectFor, tenant.ID); err != nil {
			return fmt.Errorf("select tenant for user %s: %w", selectFor, err)
		}
		log.Info("Tenant selected", "user_id", selectFor, "tenant_id", tenant.ID)
	}
	log.Info("Seed complete", "tenant_id", tenant.ID, "faculties", len(have))
	return nil
}
