package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"jornada/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableID(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}

func nullableIDPtr(v *int64) any {
	if v == nil || *v == 0 {
		return nil
	}
	return *v
}

func idPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// querier abstracts *sql.DB and *sql.Tx so read helpers can run inside
// or outside the engine's transactions.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ---------------------------------------------------------------- workdays

const workdayCols = `id,collaborator_id,date,started_at,ended_at,is_open`

func scanWorkday(scan func(dest ...any) error) (domain.Workday, error) {
	var w domain.Workday
	var started string
	var ended sql.NullString
	if err := scan(&w.ID, &w.CollaboratorID, &w.Date, &started, &ended, &w.IsOpen); err != nil {
		return w, err
	}
	var err error
	if w.StartedAt, err = parseTime(started); err != nil {
		return w, err
	}
	if w.EndedAt, err = parseTimePtr(ended); err != nil {
		return w, err
	}
	return w, nil
}

func (r Repo) GetWorkday(ctx context.Context, collaboratorID int64, date string) (domain.Workday, error) {
	return r.getWorkday(ctx, r.DB, collaboratorID, date)
}

func (r Repo) GetWorkdayTx(ctx context.Context, tx *sql.Tx, collaboratorID int64, date string) (domain.Workday, error) {
	return r.getWorkday(ctx, tx, collaboratorID, date)
}

func (r Repo) getWorkday(ctx context.Context, q querier, collaboratorID int64, date string) (domain.Workday, error) {
	row := q.QueryRowContext(ctx, `SELECT `+workdayCols+` FROM workdays WHERE collaborator_id=? AND date=?`, collaboratorID, date)
	w, err := scanWorkday(row.Scan)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	return w, err
}

func (r Repo) InsertWorkdayTx(ctx context.Context, tx *sql.Tx, w domain.Workday) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO workdays(collaborator_id,date,started_at,ended_at,is_open) VALUES (?,?,?,?,?)`,
		w.CollaboratorID, w.Date, fmtTime(w.StartedAt), fmtTimePtr(w.EndedAt), w.IsOpen)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ReopenWorkdayTx puts a closed workday back in the open state.
func (r Repo) ReopenWorkdayTx(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE workdays SET is_open=1, ended_at=NULL WHERE id=?`, id)
	return err
}

// CloseWorkdayTx stamps ended_at and clears is_open, only while still open.
func (r Repo) CloseWorkdayTx(ctx context.Context, tx *sql.Tx, id int64, endedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE workdays SET is_open=0, ended_at=? WHERE id=? AND is_open=1`, fmtTime(endedAt), id)
	return err
}

// WorkdayDates reports which of the given dates have a workday row.
func (r Repo) WorkdayDates(ctx context.Context, collaboratorID int64, dates []string) (map[string]bool, error) {
	if len(dates) == 0 {
		return map[string]bool{}, nil
	}
	args := []any{collaboratorID}
	for _, d := range dates {
		args = append(args, d)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT date FROM workdays WHERE collaborator_id=? AND date IN (`+placeholders(len(dates))+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]bool{}
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out[d] = true
	}
	return out, rows.Err()
}

// --------------------------------------------------------------- activities

const activityCols = `id,collaborator_id,workday_id,project_id,node_axis0,node_axis1,node_axis2,adhoc_axis0,adhoc_axis1,adhoc_axis2,description,started_at,finished_at,is_active`

func scanActivity(scan func(dest ...any) error) (domain.Activity, error) {
	var b activityRow
	if err := scan(b.dests()...); err != nil {
		return domain.Activity{}, err
	}
	return b.activity()
}

func (r Repo) InsertActivityTx(ctx context.Context, tx *sql.Tx, a domain.Activity) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO activities(collaborator_id,workday_id,project_id,node_axis0,node_axis1,node_axis2,adhoc_axis0,adhoc_axis1,adhoc_axis2,description,started_at,finished_at,is_active)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.CollaboratorID, a.WorkdayID, nullableIDPtr(a.ProjectID),
		nullableID(a.Class.NodeIDs[0]), nullableID(a.Class.NodeIDs[1]), nullableID(a.Class.NodeIDs[2]),
		a.Class.AdHoc[0], a.Class.AdHoc[1], a.Class.AdHoc[2],
		a.Description, fmtTime(a.StartedAt), fmtTimePtr(a.FinishedAt), a.IsActive)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetOwnedActivity fetches an activity only when it belongs to the given
// collaborator. A foreign activity is indistinguishable from a missing one.
func (r Repo) GetOwnedActivity(ctx context.Context, collaboratorID, id int64) (domain.Activity, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+activityCols+` FROM activities WHERE id=? AND collaborator_id=?`, id, collaboratorID)
	a, err := scanActivity(row.Scan)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

func (r Repo) SetActivityActiveTx(ctx context.Context, tx *sql.Tx, id int64, active bool) error {
	_, err := tx.ExecContext(ctx, `UPDATE activities SET is_active=? WHERE id=?`, active, id)
	return err
}

// FinishActivityTx stamps finished_at only when still null so a repeat
// finish never moves the original timestamp.
func (r Repo) FinishActivityTx(ctx context.Context, tx *sql.Tx, id int64, finishedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE activities SET is_active=0, finished_at=COALESCE(finished_at, ?) WHERE id=?`, fmtTime(finishedAt), id)
	return err
}

// DeactivateWorkdayActivitiesTx pauses every unfinished activity of a workday.
func (r Repo) DeactivateWorkdayActivitiesTx(ctx context.Context, tx *sql.Tx, workdayID int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE activities SET is_active=0 WHERE workday_id=? AND finished_at IS NULL AND is_active=1`, workdayID)
	return err
}

func (r Repo) ListWorkdayActivities(ctx context.Context, workdayID int64) ([]domain.Activity, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+activityCols+` FROM activities WHERE workday_id=? ORDER BY id DESC`, workdayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Activity
	for rows.Next() {
		a, err := scanActivity(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// ----------------------------------------------------------------- sessions

const sessionCols = `id,activity_id,started_at,ended_at`

func scanSession(scan func(dest ...any) error) (domain.ActivitySession, error) {
	var s domain.ActivitySession
	var started string
	var ended sql.NullString
	if err := scan(&s.ID, &s.ActivityID, &started, &ended); err != nil {
		return s, err
	}
	var err error
	if s.StartedAt, err = parseTime(started); err != nil {
		return s, err
	}
	if s.EndedAt, err = parseTimePtr(ended); err != nil {
		return s, err
	}
	return s, nil
}

func (r Repo) InsertSessionTx(ctx context.Context, tx *sql.Tx, s domain.ActivitySession) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO activity_sessions(activity_id,started_at,ended_at) VALUES (?,?,?)`,
		s.ActivityID, fmtTime(s.StartedAt), fmtTimePtr(s.EndedAt))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// LatestSession returns the most recent session of an activity.
func (r Repo) LatestSession(ctx context.Context, activityID int64) (domain.ActivitySession, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM activity_sessions WHERE activity_id=? ORDER BY id DESC LIMIT 1`, activityID)
	s, err := scanSession(row.Scan)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

// StopActivitySessionsTx closes every still-open session of one activity.
func (r Repo) StopActivitySessionsTx(ctx context.Context, tx *sql.Tx, activityID int64, endedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE activity_sessions SET ended_at=? WHERE activity_id=? AND ended_at IS NULL`, fmtTime(endedAt), activityID)
	return err
}

// StopWorkdaySessionsTx closes every still-open session of a whole workday.
func (r Repo) StopWorkdaySessionsTx(ctx context.Context, tx *sql.Tx, workdayID int64, endedAt time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE activity_sessions
SET ended_at=?
WHERE ended_at IS NULL AND activity_id IN (SELECT id FROM activities WHERE workday_id=?)`, fmtTime(endedAt), workdayID)
	return err
}

// SessionsByActivity fetches all sessions of the given activities, keyed
// by activity id, oldest first.
func (r Repo) SessionsByActivity(ctx context.Context, activityIDs []int64) (map[int64][]domain.ActivitySession, error) {
	out := map[int64][]domain.ActivitySession{}
	if len(activityIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(activityIDs))
	for i, id := range activityIDs {
		args[i] = id
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+sessionCols+` FROM activity_sessions WHERE activity_id IN (`+placeholders(len(activityIDs))+`) ORDER BY started_at ASC, id ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		s, err := scanSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		out[s.ActivityID] = append(out[s.ActivityID], s)
	}
	return out, rows.Err()
}

// CountOpenSessions is a test/diagnostic helper.
func (r Repo) CountOpenSessions(ctx context.Context, activityID int64) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM activity_sessions WHERE activity_id=? AND ended_at IS NULL`, activityID).Scan(&n)
	return n, err
}

// activityRow buffers the raw column values of one activity row so
// joined queries can append their own destinations after the shared set.
type activityRow struct {
	act      domain.Activity
	project  sql.NullInt64
	nodes    [domain.MaxAxes]sql.NullInt64
	started  string
	finished sql.NullString
}

func (b *activityRow) dests() []any {
	return []any{&b.act.ID, &b.act.CollaboratorID, &b.act.WorkdayID, &b.project,
		&b.nodes[0], &b.nodes[1], &b.nodes[2],
		&b.act.Class.AdHoc[0], &b.act.Class.AdHoc[1], &b.act.Class.AdHoc[2],
		&b.act.Description, &b.started, &b.finished, &b.act.IsActive}
}

func (b *activityRow) activity() (domain.Activity, error) {
	a := b.act
	a.ProjectID = idPtr(b.project)
	for i, n := range b.nodes {
		if n.Valid {
			a.Class.NodeIDs[i] = n.Int64
		}
	}
	var err error
	if a.StartedAt, err = parseTime(b.started); err != nil {
		return a, err
	}
	if a.FinishedAt, err = parseTimePtr(b.finished); err != nil {
		return a, err
	}
	return a, nil
}

// prefixedActivityCols qualifies the activity column list with a table alias.
func prefixedActivityCols(alias string) string {
	cols := strings.Split(activityCols, ",")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ",")
}

func inClause(col string, ids []int64, clauses *[]string, args *[]any) {
	if len(ids) == 0 {
		return
	}
	*clauses = append(*clauses, fmt.Sprintf("%s IN (%s)", col, placeholders(len(ids))))
	for _, id := range ids {
		*args = append(*args, id)
	}
}
