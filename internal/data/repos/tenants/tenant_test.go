package tenants

import (
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/curriculum-orchestrator/internal/data/repos/testutil"
	types "github.com/yungbote/curriculum-orchestrator/internal/domain"
)

func TestTenantRepo(t *testing.T) {
	db := testutil.DB(t)
	repo := NewTenantRepo(db, testutil.Logger(t))
	dbc := testutil.Ctx()

	created, err := repo.Create(dbc, &types.Tenant{Slug: " acme ", Name: "Acme", Active: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == uuid.Nil || created.Slug != "acme" {
		t.Fatalf("Create: expected id and trimmed slug got %+v", created)
	}

	got, err := repo.GetBySlug(dbc, "acme")
	if err != nil || got == nil || got.ID != created.ID {
		t.Fatalf("GetBySlug: err=%v got=%+v", err, got)
	}
	got, err = repo.GetByID(dbc, created.ID)
	if err != nil || got == nil || got.Name != "Acme" {
		t.Fatalf("GetByID: err=%v got=%+v", err, got)
	}
	missing, err := repo.GetByID(dbc, uuid.New())
	if err != nil || missing != nil {
		t.Fatalf("GetByID missing: expected nil,nil got %+v,%v", missing, err)
	}
	if _, err := repo.Create(dbc, &types.Tenant{Slug: ""}); err == nil {
		t.Fatalf("Create: expected error for empty slug")
	}
	list, err := repo.List(dbc)
	if err != nil || len(list) != 1 {
		t.Fatalf("List: err=%v len=%d", err, len(list))
	}
}

func TestUserTenantRepoSelectUpserts(t *testing.T) {
	db := testutil.DB(t)
	repo := NewUserTenantRepo(db, testutil.Logger(t))
	dbc := testutil.Ctx()

	userID := uuid.New()
	if sel, err := repo.GetSelected(dbc, userID); err != nil || sel != uuid.Nil {
		t.Fatalf("GetSelected before select: expected nil got %v,%v", sel, err)
	}

	first, second := uuid.New(), uuid.New()
	if err := repo.Select(dbc, userID, first); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := repo.Select(dbc, userID, second); err != nil {
		t.Fatalf("Select again: %v", err)
	}
	sel, err := repo.GetSelected(dbc, userID)
	if err != nil {
		t.Fatalf("GetSelected: %v", err)
	}
	if sel != second {
		t.Fatalf("GetSelected: expected %v got %v", second, sel)
	}
}
