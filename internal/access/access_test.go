package access_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"jornada/internal/access"
	"jornada/internal/clock"
	"jornada/internal/db"
	"jornada/internal/domain"
	"jornada/internal/migrate"
	"jornada/internal/repo"
)

type gateEnv struct {
	Gate access.Gate
	Repo repo.Repo
	Ctx  context.Context
	Dept domain.Department
}

func newGateEnv(t *testing.T) *gateEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := repo.Repo{DB: conn}
	clk := clock.Clock{Loc: time.UTC, NowFunc: func() time.Time {
		return time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	}}
	env := &gateEnv{Gate: access.New(r, clk), Repo: r, Ctx: context.Background()}
	env.Dept, err = r.EnsureDepartment(env.Ctx, "obras", "Obras")
	if err != nil {
		t.Fatalf("seed department: %v", err)
	}
	return env
}

func TestEnsureCollaboratorIsStable(t *testing.T) {
	env := newGateEnv(t)
	id := access.Identity{UserID: "u-1", Email: "ana@empresa.com", Name: "Ana"}

	first, err := env.Gate.EnsureCollaborator(env.Ctx, id, env.Dept)
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	second, err := env.Gate.EnsureCollaborator(env.Ctx, id, env.Dept)
	if err != nil {
		t.Fatalf("repeat: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("same user provisioned twice: %d vs %d", first.ID, second.ID)
	}
	if first.Email == nil || *first.Email != "ana@empresa.com" {
		t.Fatalf("expected real e-mail kept, got %v", first.Email)
	}
}

func TestEnsureCollaboratorRecyclesEmailMatch(t *testing.T) {
	env := newGateEnv(t)
	email := "ana@empresa.com"
	seeded := repo.NewCollaborator("Ana Pré-cadastrada", env.Dept.ID, time.Now())
	seeded.Email = &email
	var err error
	if seeded.ID, err = env.Repo.InsertCollaborator(env.Ctx, seeded); err != nil {
		t.Fatal(err)
	}

	c, err := env.Gate.EnsureCollaborator(env.Ctx, access.Identity{UserID: "u-1", Email: email, Name: "Ana"}, env.Dept)
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if c.ID != seeded.ID {
		t.Fatalf("expected the pre-registered record linked, got a new one")
	}
	if c.UserID == nil || *c.UserID != "u-1" {
		t.Fatalf("record not linked to user: %+v", c)
	}
}

func TestEnsureCollaboratorPlaceholderWhenEmailTaken(t *testing.T) {
	env := newGateEnv(t)
	email := "ana@empresa.com"
	if _, err := env.Gate.EnsureCollaborator(env.Ctx, access.Identity{UserID: "u-1", Email: email, Name: "Ana"}, env.Dept); err != nil {
		t.Fatal(err)
	}
	// second user presenting the same e-mail must not steal the record
	c, err := env.Gate.EnsureCollaborator(env.Ctx, access.Identity{UserID: "u-2", Email: email, Name: "Outra Ana"}, env.Dept)
	if err != nil {
		t.Fatalf("provision with taken e-mail: %v", err)
	}
	if c.Email == nil || !strings.HasSuffix(*c.Email, "@local.invalid") {
		t.Fatalf("expected placeholder e-mail, got %v", c.Email)
	}
	if !strings.HasPrefix(*c.Email, "collab-obras-uu-2-") {
		t.Fatalf("unexpected placeholder shape: %s", *c.Email)
	}
}

func TestRequireCollaboratorDeniesStranger(t *testing.T) {
	env := newGateEnv(t)
	_, err := env.Gate.RequireCollaborator(env.Ctx, access.Identity{UserID: "ghost"}, env.Dept.ID)
	var perr access.PermissionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PermissionError, got %v", err)
	}
}

func TestRequireManager(t *testing.T) {
	env := newGateEnv(t)
	id := access.Identity{UserID: "u-1", Name: "Ana"}
	c, err := env.Gate.EnsureCollaborator(env.Ctx, id, env.Dept)
	if err != nil {
		t.Fatal(err)
	}
	_, err = env.Gate.RequireManager(env.Ctx, id, env.Dept.ID)
	var perr access.PermissionError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PermissionError for non-manager, got %v", err)
	}
	if _, err := env.Repo.DB.ExecContext(env.Ctx, `UPDATE collaborators SET is_manager=1 WHERE id=?`, c.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Gate.RequireManager(env.Ctx, id, env.Dept.ID); err != nil {
		t.Fatalf("manager denied: %v", err)
	}
}

func TestEnsureCollaboratorSameUserOtherDepartment(t *testing.T) {
	env := newGateEnv(t)
	other, err := env.Repo.EnsureDepartment(env.Ctx, "epe", "EPE")
	if err != nil {
		t.Fatal(err)
	}
	id := access.Identity{UserID: "u-1", Email: "ana@empresa.com", Name: "Ana"}
	a, err := env.Gate.EnsureCollaborator(env.Ctx, id, env.Dept)
	if err != nil {
		t.Fatal(err)
	}
	b, err := env.Gate.EnsureCollaborator(env.Ctx, id, other)
	if err != nil {
		t.Fatalf("second department: %v", err)
	}
	if a.ID == b.ID {
		t.Fatalf("departments must not share collaborator records")
	}
	if b.Email == nil || !strings.HasSuffix(*b.Email, "@local.invalid") {
		t.Fatalf("second record should fall back to a placeholder, got %v", b.Email)
	}
}
