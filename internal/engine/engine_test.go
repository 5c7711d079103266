package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"jornada/internal/clock"
	"jornada/internal/db"
	"jornada/internal/domain"
	"jornada/internal/engine"
	"jornada/internal/migrate"
	"jornada/internal/repo"
)

type testEnv struct {
	Engine  engine.Engine
	Repo    repo.Repo
	Ctx     context.Context
	Dept    domain.Department
	Collab  domain.Collaborator
	Marco   domain.CatalogNode
	General domain.CatalogNode
	Project domain.Project
	now     time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	env := &testEnv{
		Ctx: context.Background(),
		now: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
	}
	clk := clock.Clock{Loc: time.UTC, NowFunc: func() time.Time { return env.now }}
	env.Engine = engine.New(conn, clk)
	env.Repo = env.Engine.Repo

	env.Dept, err = env.Repo.EnsureDepartment(env.Ctx, "obras", "Obras")
	if err != nil {
		t.Fatalf("seed department: %v", err)
	}
	c := repo.NewCollaborator("Ana", env.Dept.ID, env.now)
	if c.ID, err = env.Repo.InsertCollaborator(env.Ctx, c); err != nil {
		t.Fatalf("seed collaborator: %v", err)
	}
	env.Collab = c

	env.Marco = domain.CatalogNode{DepartmentID: env.Dept.ID, Axis: 0, Name: "Fundações", IsActive: true}
	if env.Marco.ID, err = env.Repo.InsertCatalogNode(env.Ctx, env.Marco); err != nil {
		t.Fatalf("seed catalog axis 0: %v", err)
	}
	env.General = domain.CatalogNode{DepartmentID: env.Dept.ID, Axis: 1, ParentID: &env.Marco.ID, Name: "Armação", IsActive: true}
	if env.General.ID, err = env.Repo.InsertCatalogNode(env.Ctx, env.General); err != nil {
		t.Fatalf("seed catalog axis 1: %v", err)
	}
	env.Project = domain.Project{DepartmentID: env.Dept.ID, Name: "Obra Norte", IsActive: true}
	if env.Project.ID, err = env.Repo.InsertProject(env.Ctx, env.Project); err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return env
}

func (env *testEnv) advance(d time.Duration) { env.now = env.now.Add(d) }

func (env *testEnv) classification() domain.Classification {
	var class domain.Classification
	class.NodeIDs[0] = env.Marco.ID
	class.NodeIDs[1] = env.General.ID
	return class
}

func (env *testEnv) createActivity(t *testing.T) domain.Activity {
	t.Helper()
	a, err := env.Engine.CreateActivity(env.Ctx, env.Collab, engine.ActivityCreateOptions{
		ProjectID: env.Project.ID,
		Class:     env.classification(),
	})
	if err != nil {
		t.Fatalf("create activity: %v", err)
	}
	return a
}

func TestStartWorkdayIdempotent(t *testing.T) {
	env := newTestEnv(t)
	w1, err := env.Engine.StartWorkday(env.Ctx, env.Collab, "")
	if err != nil {
		t.Fatalf("start workday: %v", err)
	}
	if !w1.IsOpen || w1.Date != "2024-03-04" {
		t.Fatalf("unexpected workday: %+v", w1)
	}
	env.advance(time.Hour)
	w2, err := env.Engine.StartWorkday(env.Ctx, env.Collab, "")
	if err != nil {
		t.Fatalf("repeat start: %v", err)
	}
	if w2.ID != w1.ID || !w2.StartedAt.Equal(w1.StartedAt) {
		t.Fatalf("repeat start changed the workday: %+v vs %+v", w1, w2)
	}
}

func TestStartWorkdayReopensClosedDay(t *testing.T) {
	env := newTestEnv(t)
	w, err := env.Engine.StartWorkday(env.Ctx, env.Collab, "")
	if err != nil {
		t.Fatal(err)
	}
	env.advance(4 * time.Hour)
	if _, err := env.Engine.CloseWorkday(env.Ctx, env.Collab, ""); err != nil {
		t.Fatalf("close: %v", err)
	}
	env.advance(time.Hour)
	reopened, err := env.Engine.StartWorkday(env.Ctx, env.Collab, "")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.ID != w.ID || !reopened.IsOpen || reopened.EndedAt != nil {
		t.Fatalf("expected reopened day, got %+v", reopened)
	}
}

func TestCloseWorkdayStopsEverything(t *testing.T) {
	env := newTestEnv(t)
	a := env.createActivity(t)
	env.advance(45 * time.Minute)

	w, err := env.Engine.CloseWorkday(env.Ctx, env.Collab, "")
	if err != nil {
		t.Fatalf("close workday: %v", err)
	}
	if w.IsOpen || w.EndedAt == nil {
		t.Fatalf("workday not closed: %+v", w)
	}
	open, err := env.Repo.CountOpenSessions(env.Ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if open != 0 {
		t.Fatalf("expected 0 open sessions after close, got %d", open)
	}
	got, err := env.Repo.GetOwnedActivity(env.Ctx, env.Collab.ID, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsActive {
		t.Fatalf("activity still active after close")
	}
	if got.IsFinished() {
		t.Fatalf("close must pause, not finish, the activity")
	}
}

func TestCloseWorkdayRepeatIsNoop(t *testing.T) {
	env := newTestEnv(t)
	env.createActivity(t)
	env.advance(30 * time.Minute)
	first, err := env.Engine.CloseWorkday(env.Ctx, env.Collab, "")
	if err != nil {
		t.Fatal(err)
	}
	env.advance(2 * time.Hour)
	second, err := env.Engine.CloseWorkday(env.Ctx, env.Collab, "")
	if err != nil {
		t.Fatalf("repeat close: %v", err)
	}
	if second.EndedAt == nil || !second.EndedAt.Equal(*first.EndedAt) {
		t.Fatalf("repeat close moved ended_at: %v vs %v", first.EndedAt, second.EndedAt)
	}
}

func TestCloseWorkdayMissingDay(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CloseWorkday(env.Ctx, env.Collab, "2024-03-01")
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateActivityOpensWorkdayAndSession(t *testing.T) {
	env := newTestEnv(t)
	a := env.createActivity(t)
	if !a.IsActive {
		t.Fatalf("new activity should be timing")
	}
	w, err := env.Repo.GetWorkday(env.Ctx, env.Collab.ID, "2024-03-04")
	if err != nil {
		t.Fatalf("implicit workday missing: %v", err)
	}
	if !w.IsOpen {
		t.Fatalf("implicit workday not open")
	}
	open, err := env.Repo.CountOpenSessions(env.Ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if open != 1 {
		t.Fatalf("expected 1 open session, got %d", open)
	}
}

func TestCreateActivityRequiresClassification(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateActivity(env.Ctx, env.Collab, engine.ActivityCreateOptions{
		ProjectID: env.Project.ID,
	})
	var verr engine.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCreateActivityAdHocOnly(t *testing.T) {
	env := newTestEnv(t)
	var class domain.Classification
	class.AdHoc[0] = "Reunião de obra"
	a, err := env.Engine.CreateActivity(env.Ctx, env.Collab, engine.ActivityCreateOptions{Class: class})
	if err != nil {
		t.Fatalf("ad-hoc activity: %v", err)
	}
	if a.Class.AdHoc[0] != "Reunião de obra" {
		t.Fatalf("ad-hoc text lost: %+v", a.Class)
	}
}

func TestClassificationParentMismatch(t *testing.T) {
	env := newTestEnv(t)
	other := domain.CatalogNode{DepartmentID: env.Dept.ID, Axis: 0, Name: "Acabamento", IsActive: true}
	var err error
	if other.ID, err = env.Repo.InsertCatalogNode(env.Ctx, other); err != nil {
		t.Fatal(err)
	}
	var class domain.Classification
	class.NodeIDs[0] = other.ID
	class.NodeIDs[1] = env.General.ID
	_, err = env.Engine.CreateActivity(env.Ctx, env.Collab, engine.ActivityCreateOptions{Class: class})
	var verr engine.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for parent mismatch, got %v", err)
	}
}

func TestClassificationChildWithoutParent(t *testing.T) {
	env := newTestEnv(t)
	var class domain.Classification
	class.NodeIDs[1] = env.General.ID
	a, err := env.Engine.CreateActivity(env.Ctx, env.Collab, engine.ActivityCreateOptions{Class: class})
	if err != nil {
		t.Fatalf("child-only classification: %v", err)
	}
	if a.Class.NodeIDs[1] != env.General.ID || a.Class.NodeIDs[0] != 0 {
		t.Fatalf("classification lost: %+v", a.Class)
	}
}

func TestClassificationWrongDepartment(t *testing.T) {
	env := newTestEnv(t)
	foreign, err := env.Repo.EnsureDepartment(env.Ctx, "epe", "EPE")
	if err != nil {
		t.Fatal(err)
	}
	node := domain.CatalogNode{DepartmentID: foreign.ID, Axis: 0, Name: "Painel", IsActive: true}
	if node.ID, err = env.Repo.InsertCatalogNode(env.Ctx, node); err != nil {
		t.Fatal(err)
	}
	var class domain.Classification
	class.NodeIDs[0] = node.ID
	_, err = env.Engine.CreateActivity(env.Ctx, env.Collab, engine.ActivityCreateOptions{Class: class})
	var verr engine.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for foreign catalog node, got %v", err)
	}
}

func TestPauseResumeFinishAccumulates(t *testing.T) {
	env := newTestEnv(t)
	a := env.createActivity(t)

	env.advance(30 * time.Minute)
	if _, err := env.Engine.PauseActivity(env.Ctx, env.Collab, a.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}
	env.advance(10 * time.Minute)
	if _, err := env.Engine.StartActivity(env.Ctx, env.Collab, a.ID); err != nil {
		t.Fatalf("resume: %v", err)
	}
	env.advance(15 * time.Minute)
	if _, err := env.Engine.FinishActivity(env.Ctx, env.Collab, a.ID); err != nil {
		t.Fatalf("finish: %v", err)
	}

	sessions, err := env.Repo.SessionsByActivity(env.Ctx, []int64{a.ID})
	if err != nil {
		t.Fatal(err)
	}
	total := domain.TotalActiveSeconds(sessions[a.ID], env.now)
	if total != 2700 {
		t.Fatalf("expected 2700 active seconds, got %d", total)
	}
	open, err := env.Repo.CountOpenSessions(env.Ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if open != 0 {
		t.Fatalf("finished activity still has %d open sessions", open)
	}
}

func TestResumeWhileTimingIsNoop(t *testing.T) {
	env := newTestEnv(t)
	a := env.createActivity(t)
	env.advance(5 * time.Minute)
	if _, err := env.Engine.StartActivity(env.Ctx, env.Collab, a.ID); err != nil {
		t.Fatalf("resume running: %v", err)
	}
	open, err := env.Repo.CountOpenSessions(env.Ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if open != 1 {
		t.Fatalf("expected exactly 1 open session, got %d", open)
	}
}

func TestResumeFinishedActivityRejected(t *testing.T) {
	env := newTestEnv(t)
	a := env.createActivity(t)
	env.advance(time.Minute)
	if _, err := env.Engine.FinishActivity(env.Ctx, env.Collab, a.ID); err != nil {
		t.Fatal(err)
	}
	_, err := env.Engine.StartActivity(env.Ctx, env.Collab, a.ID)
	var serr engine.StateError
	if !errors.As(err, &serr) {
		t.Fatalf("expected StateError, got %v", err)
	}
}

func TestFinishKeepsOriginalTimestamp(t *testing.T) {
	env := newTestEnv(t)
	a := env.createActivity(t)
	env.advance(time.Minute)
	first, err := env.Engine.FinishActivity(env.Ctx, env.Collab, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	env.advance(time.Hour)
	second, err := env.Engine.FinishActivity(env.Ctx, env.Collab, a.ID)
	if err != nil {
		t.Fatalf("repeat finish: %v", err)
	}
	if second.FinishedAt == nil || !second.FinishedAt.Equal(*first.FinishedAt) {
		t.Fatalf("repeat finish moved finished_at: %v vs %v", first.FinishedAt, second.FinishedAt)
	}
}

func TestForeignActivityIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	a := env.createActivity(t)
	other := repo.NewCollaborator("Bruno", env.Dept.ID, env.now)
	var err error
	if other.ID, err = env.Repo.InsertCollaborator(env.Ctx, other); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.PauseActivity(env.Ctx, other, a.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign activity, got %v", err)
	}
	if _, err := env.Engine.StartActivity(env.Ctx, other, a.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign activity, got %v", err)
	}
}

func TestDashboardSnapshotStats(t *testing.T) {
	env := newTestEnv(t)
	running := env.createActivity(t)
	paused := env.createActivity(t)
	done := env.createActivity(t)
	env.advance(10 * time.Minute)
	if _, err := env.Engine.PauseActivity(env.Ctx, env.Collab, paused.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.FinishActivity(env.Ctx, env.Collab, done.ID); err != nil {
		t.Fatal(err)
	}
	env.advance(5 * time.Minute)

	d, err := env.Engine.DashboardSnapshot(env.Ctx, env.Collab, "")
	if err != nil {
		t.Fatal(err)
	}
	if d.Workday == nil {
		t.Fatalf("expected workday on dashboard")
	}
	if d.Stats.Total != 3 || d.Stats.Active != 1 || d.Stats.Paused != 1 || d.Stats.Done != 1 {
		t.Fatalf("unexpected stats: %+v", d.Stats)
	}
	for _, st := range d.Activities {
		if st.Activity.ID == running.ID && st.Seconds != 15*60 {
			t.Fatalf("running activity should have 900s, got %d", st.Seconds)
		}
		if st.Activity.ID == paused.ID && st.Seconds != 10*60 {
			t.Fatalf("paused activity should have 600s, got %d", st.Seconds)
		}
	}
}

func TestDashboardSnapshotEmptyDay(t *testing.T) {
	env := newTestEnv(t)
	d, err := env.Engine.DashboardSnapshot(env.Ctx, env.Collab, "2024-01-01")
	if err != nil {
		t.Fatal(err)
	}
	if d.Workday != nil || len(d.Activities) != 0 {
		t.Fatalf("expected empty dashboard, got %+v", d)
	}
}

func TestDashboardNavMarksWorkedDays(t *testing.T) {
	env := newTestEnv(t)
	env.createActivity(t)

	d, err := env.Engine.DashboardSnapshot(env.Ctx, env.Collab, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Nav) != 7 {
		t.Fatalf("expected a 7-day nav, got %d entries", len(d.Nav))
	}
	if d.Nav[0].Date != "2024-02-27" || d.Nav[0].HasWorkday {
		t.Fatalf("unexpected first nav day: %+v", d.Nav[0])
	}
	last := d.Nav[6]
	if last.Date != "2024-03-04" || !last.HasWorkday {
		t.Fatalf("worked day not marked: %+v", last)
	}
}
