package repo

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"jornada/internal/domain"
)

// SessionFilters scope the session set handed to the aggregator. All
// id slices are optional; empty means "no filter on that dimension".
type SessionFilters struct {
	DepartmentID    int64
	CollaboratorID  int64
	CollaboratorIDs []int64
	PeriodStart     time.Time
	PeriodEnd       time.Time
	ProjectIDs      []int64
	NodeIDs         [domain.MaxAxes][]int64
}

// SessionRecord is one session joined with the display labels of its
// activity's classification axes.
type SessionRecord struct {
	Session        domain.ActivitySession
	ActivityID     int64
	CollaboratorID int64
	Collaborator   string
	ProjectName    *string
	NodeNames      [domain.MaxAxes]*string
	AdHoc          [domain.MaxAxes]string
}

// ListSessions fetches the sessions that can intersect the reporting
// period, oldest first. Stored timestamps are UTC RFC3339, so string
// comparison against the bounds is chronological.
func (r Repo) ListSessions(ctx context.Context, f SessionFilters) ([]SessionRecord, error) {
	clauses := []string{"c.department_id=?", "s.started_at<=?", "(s.ended_at IS NULL OR s.ended_at>=?)"}
	args := []any{f.DepartmentID, fmtTime(f.PeriodEnd), fmtTime(f.PeriodStart)}
	if f.CollaboratorID != 0 {
		clauses = append(clauses, "a.collaborator_id=?")
		args = append(args, f.CollaboratorID)
	}
	inClause("a.collaborator_id", f.CollaboratorIDs, &clauses, &args)
	inClause("a.project_id", f.ProjectIDs, &clauses, &args)
	axisCols := []string{"a.node_axis0", "a.node_axis1", "a.node_axis2"}
	for axis, ids := range f.NodeIDs {
		inClause(axisCols[axis], ids, &clauses, &args)
	}
	query := `SELECT s.id, s.activity_id, s.started_at, s.ended_at,
a.collaborator_id, c.name, p.name,
n0.name, n1.name, n2.name,
a.adhoc_axis0, a.adhoc_axis1, a.adhoc_axis2
FROM activity_sessions s
JOIN activities a ON a.id=s.activity_id
JOIN collaborators c ON c.id=a.collaborator_id
LEFT JOIN projects p ON p.id=a.project_id
LEFT JOIN catalog_nodes n0 ON n0.id=a.node_axis0
LEFT JOIN catalog_nodes n1 ON n1.id=a.node_axis1
LEFT JOIN catalog_nodes n2 ON n2.id=a.node_axis2
WHERE ` + strings.Join(clauses, " AND ") + `
ORDER BY s.started_at ASC, s.id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var started string
		var ended, project sql.NullString
		var names [domain.MaxAxes]sql.NullString
		if err := rows.Scan(&rec.Session.ID, &rec.Session.ActivityID, &started, &ended,
			&rec.CollaboratorID, &rec.Collaborator, &project,
			&names[0], &names[1], &names[2],
			&rec.AdHoc[0], &rec.AdHoc[1], &rec.AdHoc[2]); err != nil {
			return nil, err
		}
		if rec.Session.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if rec.Session.EndedAt, err = parseTimePtr(ended); err != nil {
			return nil, err
		}
		if project.Valid {
			rec.ProjectName = &project.String
		}
		for i, n := range names {
			if n.Valid {
				name := n.String
				rec.NodeNames[i] = &name
			}
		}
		rec.ActivityID = rec.Session.ActivityID
		res = append(res, rec)
	}
	return res, rows.Err()
}

// ActivityFilters scope the flat per-activity rows of the tabular
// reports and spreadsheet exports. Dates bound the owning workday.
type ActivityFilters struct {
	DepartmentID    int64
	CollaboratorID  int64
	CollaboratorIDs []int64
	DateFrom        string
	DateTo          string
	ProjectIDs      []int64
	NodeIDs         [domain.MaxAxes][]int64
}

// ActivityRecord is one activity joined with its display labels and the
// owning workday's date. Sessions are attached by the caller.
type ActivityRecord struct {
	Activity     domain.Activity
	Collaborator string
	ProjectName  *string
	NodeNames    [domain.MaxAxes]*string
	WorkdayDate  string
	Sessions     []domain.ActivitySession
}

func (r Repo) ListActivityRecords(ctx context.Context, f ActivityFilters) ([]ActivityRecord, error) {
	clauses := []string{"c.department_id=?"}
	args := []any{f.DepartmentID}
	if f.CollaboratorID != 0 {
		clauses = append(clauses, "a.collaborator_id=?")
		args = append(args, f.CollaboratorID)
	}
	inClause("a.collaborator_id", f.CollaboratorIDs, &clauses, &args)
	if f.DateFrom != "" {
		clauses = append(clauses, "w.date>=?")
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		clauses = append(clauses, "w.date<=?")
		args = append(args, f.DateTo)
	}
	inClause("a.project_id", f.ProjectIDs, &clauses, &args)
	axisCols := []string{"a.node_axis0", "a.node_axis1", "a.node_axis2"}
	for axis, ids := range f.NodeIDs {
		inClause(axisCols[axis], ids, &clauses, &args)
	}
	query := `SELECT ` + prefixedActivityCols("a") + `, c.name, p.name,
n0.name, n1.name, n2.name, w.date
FROM activities a
JOIN workdays w ON w.id=a.workday_id
JOIN collaborators c ON c.id=a.collaborator_id
LEFT JOIN projects p ON p.id=a.project_id
LEFT JOIN catalog_nodes n0 ON n0.id=a.node_axis0
LEFT JOIN catalog_nodes n1 ON n1.id=a.node_axis1
LEFT JOIN catalog_nodes n2 ON n2.id=a.node_axis2
WHERE ` + strings.Join(clauses, " AND ") + `
ORDER BY w.date ASC, a.id ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanActivityRecords(rows)
}

// RunningActivities lists every activity currently timing across the
// department, for the managers' realtime board.
func (r Repo) RunningActivities(ctx context.Context, departmentID int64) ([]ActivityRecord, error) {
	query := `SELECT ` + prefixedActivityCols("a") + `, c.name, p.name,
n0.name, n1.name, n2.name, w.date
FROM activities a
JOIN workdays w ON w.id=a.workday_id
JOIN collaborators c ON c.id=a.collaborator_id
LEFT JOIN projects p ON p.id=a.project_id
LEFT JOIN catalog_nodes n0 ON n0.id=a.node_axis0
LEFT JOIN catalog_nodes n1 ON n1.id=a.node_axis1
LEFT JOIN catalog_nodes n2 ON n2.id=a.node_axis2
WHERE c.department_id=? AND a.is_active=1 AND a.finished_at IS NULL
ORDER BY c.name ASC, a.id DESC`
	rows, err := r.DB.QueryContext(ctx, query, departmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanActivityRecords(rows)
}

func scanActivityRecords(rows *sql.Rows) ([]ActivityRecord, error) {
	var res []ActivityRecord
	for rows.Next() {
		var rec ActivityRecord
		var buf activityRow
		var project sql.NullString
		var names [domain.MaxAxes]sql.NullString
		dests := append(buf.dests(), &rec.Collaborator, &project, &names[0], &names[1], &names[2], &rec.WorkdayDate)
		if err := rows.Scan(dests...); err != nil {
			return nil, err
		}
		var err error
		if rec.Activity, err = buf.activity(); err != nil {
			return nil, err
		}
		if project.Valid {
			rec.ProjectName = &project.String
		}
		for i, n := range names {
			if n.Valid {
				name := n.String
				rec.NodeNames[i] = &name
			}
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// UsedFilterOptions lists the distinct dimension values a collaborator
// has actually classified activities with, for the report filter selects.
type FilterOption struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (r Repo) UsedProjects(ctx context.Context, collaboratorID int64) ([]FilterOption, error) {
	return r.filterOptions(ctx, `SELECT DISTINCT p.id, p.name FROM activities a JOIN projects p ON p.id=a.project_id WHERE a.collaborator_id=? ORDER BY p.name`, collaboratorID)
}

func (r Repo) UsedCatalogNodes(ctx context.Context, collaboratorID int64, axis int) ([]FilterOption, error) {
	col := []string{"node_axis0", "node_axis1", "node_axis2"}[axis]
	return r.filterOptions(ctx, `SELECT DISTINCT n.id, n.name FROM activities a JOIN catalog_nodes n ON n.id=a.`+col+` WHERE a.collaborator_id=? ORDER BY n.ord, n.name`, collaboratorID)
}

func (r Repo) filterOptions(ctx context.Context, query string, args ...any) ([]FilterOption, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []FilterOption
	for rows.Next() {
		var o FilterOption
		if err := rows.Scan(&o.ID, &o.Name); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}
