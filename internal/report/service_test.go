package report_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jornada/internal/clock"
	"jornada/internal/config"
	"jornada/internal/db"
	"jornada/internal/domain"
	"jornada/internal/engine"
	"jornada/internal/migrate"
	"jornada/internal/repo"
	"jornada/internal/report"
)

type svcEnv struct {
	Ctx     context.Context
	Engine  engine.Engine
	Service report.Service
	Schema  config.DepartmentSchema
	Dept    domain.Department
	Ana     domain.Collaborator
	Bruno   domain.Collaborator
	Marco   domain.CatalogNode
	Project domain.Project
	now     time.Time
}

func newSvcEnv(t *testing.T) *svcEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, migrate.Migrate(conn))

	env := &svcEnv{
		Ctx: context.Background(),
		now: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
		Schema: config.DepartmentSchema{
			Namespace: "obras",
			Slug:      "obras",
			Label:     "Obras",
			Axes: []config.AxisSchema{
				{Key: "milestone", Label: "Marco"},
				{Key: "general", Label: "Atividade Geral"},
			},
		},
	}
	clk := clock.Clock{Loc: time.UTC, NowFunc: func() time.Time { return env.now }}
	env.Engine = engine.New(conn, clk)
	env.Service = report.NewService(env.Engine.Repo, clk)
	r := env.Engine.Repo

	env.Dept, err = r.EnsureDepartment(env.Ctx, "obras", "Obras")
	require.NoError(t, err)

	env.Ana = repo.NewCollaborator("Ana", env.Dept.ID, env.now)
	env.Ana.ID, err = r.InsertCollaborator(env.Ctx, env.Ana)
	require.NoError(t, err)
	env.Bruno = repo.NewCollaborator("Bruno", env.Dept.ID, env.now)
	env.Bruno.ID, err = r.InsertCollaborator(env.Ctx, env.Bruno)
	require.NoError(t, err)

	env.Marco = domain.CatalogNode{DepartmentID: env.Dept.ID, Axis: 0, Name: "Fundações", IsActive: true}
	env.Marco.ID, err = r.InsertCatalogNode(env.Ctx, env.Marco)
	require.NoError(t, err)

	env.Project = domain.Project{DepartmentID: env.Dept.ID, Name: "Obra Norte", IsActive: true}
	env.Project.ID, err = r.InsertProject(env.Ctx, env.Project)
	require.NoError(t, err)
	return env
}

func (env *svcEnv) work(t *testing.T, c domain.Collaborator, d time.Duration) {
	t.Helper()
	var class domain.Classification
	class.NodeIDs[0] = env.Marco.ID
	a, err := env.Engine.CreateActivity(env.Ctx, c, engine.ActivityCreateOptions{
		ProjectID: env.Project.ID,
		Class:     class,
	})
	require.NoError(t, err)
	env.now = env.now.Add(d)
	_, err = env.Engine.FinishActivity(env.Ctx, c, a.ID)
	require.NoError(t, err)
}

func TestCollaboratorReportEndToEnd(t *testing.T) {
	env := newSvcEnv(t)
	env.work(t, env.Ana, 45*time.Minute)

	rep, err := env.Service.Collaborator(env.Ctx, env.Schema, env.Ana, report.Options{
		From: "2024-03-04", To: "2024-03-04",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2700), rep.TotalSeconds)
	assert.Equal(t, "00:45:00", rep.TotalHMS)
	assert.Equal(t, 0.75, rep.TotalHours)
	assert.Equal(t, 1, rep.WorkedDays)
	assert.Equal(t, 1, rep.DistinctProjects)

	require.Len(t, rep.Days, 1)
	assert.Equal(t, 100.0, rep.Days[0].PctOfMax)
	assert.Equal(t, "00:45:00", rep.Days[0].HMS)

	require.Len(t, rep.Projects, 1)
	assert.Equal(t, "Obra Norte", rep.Projects[0].Label)
	assert.Equal(t, 100.0, rep.Projects[0].Pct)
	assert.Equal(t, 0.75, rep.Projects[0].Hours)

	require.Len(t, rep.Axes, 2)
	assert.Equal(t, "Marco", rep.Axes[0].Label)
	require.Len(t, rep.Axes[0].Slices, 1)
	assert.Equal(t, "Fundações", rep.Axes[0].Slices[0].Label)
	require.Len(t, rep.Axes[1].Slices, 1)
	assert.Equal(t, report.NoValueLabel, rep.Axes[1].Slices[0].Label)

	require.Len(t, rep.Rows, 1)
	assert.Equal(t, "00:45:00", rep.Rows[0].HMS)
	assert.Equal(t, []string{"Fundações", report.NoValueLabel}, rep.Rows[0].Axes)
}

func TestCollaboratorReportScopedToOwner(t *testing.T) {
	env := newSvcEnv(t)
	env.work(t, env.Ana, 30*time.Minute)
	env.work(t, env.Bruno, time.Hour)

	rep, err := env.Service.Collaborator(env.Ctx, env.Schema, env.Ana, report.Options{
		From: "2024-03-04", To: "2024-03-04",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1800), rep.TotalSeconds, "other collaborators' time must not leak in")
}

func TestRowKeepsFullSessionDuration(t *testing.T) {
	env := newSvcEnv(t)
	env.work(t, env.Ana, 16*time.Hour)

	rep, err := env.Service.Collaborator(env.Ctx, env.Schema, env.Ana, report.Options{
		From: "2024-03-04", To: "2024-03-04",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(15*3600), rep.TotalSeconds, "day buckets stop at midnight")
	require.Len(t, rep.Rows, 1)
	assert.Equal(t, int64(16*3600), rep.Rows[0].Seconds, "the table row keeps the whole session")
	assert.Equal(t, "16:00:00", rep.Rows[0].HMS)
}

func TestDepartmentCollaboratorChartCapped(t *testing.T) {
	env := newSvcEnv(t)
	for i := 0; i < 12; i++ {
		c := repo.NewCollaborator(fmt.Sprintf("Colab %02d", i), env.Dept.ID, env.now)
		var err error
		c.ID, err = env.Engine.Repo.InsertCollaborator(env.Ctx, c)
		require.NoError(t, err)
		env.work(t, c, time.Duration(i+1)*time.Minute)
	}

	rep, err := env.Service.Department(env.Ctx, env.Schema, env.Dept, nil, report.Options{
		From: "2024-03-04", To: "2024-03-04",
	})
	require.NoError(t, err)

	assert.Equal(t, 12, rep.KPIs.Collaborators, "KPIs count everyone")
	require.Len(t, rep.Collaborators, 10, "chart cuts at the series cap")
	assert.Equal(t, "Colab 11", rep.Collaborators[0].Label)
}

func TestDepartmentReportAggregatesEveryone(t *testing.T) {
	env := newSvcEnv(t)
	env.work(t, env.Ana, 30*time.Minute)
	env.work(t, env.Bruno, time.Hour)

	rep, err := env.Service.Department(env.Ctx, env.Schema, env.Dept, nil, report.Options{
		From: "2024-03-04", To: "2024-03-04", Order: "name",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(5400), rep.TotalSeconds)
	assert.Equal(t, 2, rep.KPIs.Collaborators)
	assert.Equal(t, 1.5, rep.KPIs.TotalHours)
	assert.Equal(t, 0.75, rep.KPIs.AvgHoursPerHead)

	require.Len(t, rep.Collaborators, 2)
	assert.Equal(t, "Bruno", rep.Collaborators[0].Label, "largest share first")

	require.Len(t, rep.Rows, 2)
	assert.Equal(t, "Ana", rep.Rows[0].Collaborator, "name ordering")
}

func TestRealtimeBoardListsOnlyRunning(t *testing.T) {
	env := newSvcEnv(t)
	var class domain.Classification
	class.NodeIDs[0] = env.Marco.ID

	running, err := env.Engine.CreateActivity(env.Ctx, env.Ana, engine.ActivityCreateOptions{Class: class, ProjectID: env.Project.ID})
	require.NoError(t, err)
	paused, err := env.Engine.CreateActivity(env.Ctx, env.Bruno, engine.ActivityCreateOptions{Class: class})
	require.NoError(t, err)
	env.now = env.now.Add(20 * time.Minute)
	_, err = env.Engine.PauseActivity(env.Ctx, env.Bruno, paused.ID)
	require.NoError(t, err)

	board, err := env.Service.Realtime(env.Ctx, env.Schema, env.Dept)
	require.NoError(t, err)
	require.Len(t, board.Entries, 1)
	assert.Equal(t, running.ID, board.Entries[0].ActivityID)
	assert.Equal(t, "Ana", board.Entries[0].Collaborator)
	assert.Equal(t, "00:20:00", board.Entries[0].HMS)
}

func TestFiltersListOnlyUsedValues(t *testing.T) {
	env := newSvcEnv(t)
	env.work(t, env.Ana, 10*time.Minute)

	// second project never used by Ana
	other := domain.Project{DepartmentID: env.Dept.ID, Name: "Obra Sul", IsActive: true}
	_, err := env.Engine.Repo.InsertProject(env.Ctx, other)
	require.NoError(t, err)

	opts, err := env.Service.Filters(env.Ctx, env.Schema, env.Ana.ID)
	require.NoError(t, err)
	require.Len(t, opts.Projects, 1)
	assert.Equal(t, "Obra Norte", opts.Projects[0].Name)
	require.Len(t, opts.Axes, 2)
	require.Len(t, opts.Axes[0], 1)
	assert.Equal(t, "Fundações", opts.Axes[0][0].Name)
	assert.Empty(t, opts.Axes[1])
}
