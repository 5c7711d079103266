package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"jornada/internal/clock"
	"jornada/internal/domain"
	"jornada/internal/events"
	"jornada/internal/repo"
)

// ValidationError marks input the caller can fix.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// StateError marks an operation the entity's lifecycle no longer allows.
type StateError struct {
	Msg string
}

func (e StateError) Error() string { return e.Msg }

// Engine runs the workday and activity lifecycle. Every mutation is one
// transaction with its audit event appended before commit.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Clock  clock.Clock
}

func New(db *sql.DB, clk clock.Clock) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db, Now: clk.Now},
		Clock:  clk,
	}
}

func userOf(c domain.Collaborator) string {
	if c.UserID != nil {
		return *c.UserID
	}
	return "collab:" + strconv.FormatInt(c.ID, 10)
}

func idStr(id int64) string { return strconv.FormatInt(id, 10) }

// StartWorkday opens the collaborator's workday for the date, creating
// the row on first call and reopening it after a close. Calling it on a
// day already open changes nothing.
func (e Engine) StartWorkday(ctx context.Context, c domain.Collaborator, date string) (domain.Workday, error) {
	if date == "" {
		date = e.Clock.Today()
	} else {
		var err error
		if date, err = e.Clock.ParseDate(date); err != nil {
			return domain.Workday{}, ValidationError{Msg: err.Error()}
		}
	}
	now := e.Clock.Now()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Workday{}, err
	}
	defer tx.Rollback()

	w, err := e.Repo.GetWorkdayTx(ctx, tx, c.ID, date)
	switch {
	case err == nil && w.IsOpen:
		return w, nil
	case err == nil:
		if err := e.Repo.ReopenWorkdayTx(ctx, tx, w.ID); err != nil {
			return w, err
		}
		w.IsOpen = true
		w.EndedAt = nil
		if err := e.Events.Append(ctx, tx, "workday.reopened", c.DepartmentID, "workday", idStr(w.ID), userOf(c), events.EventPayload{"date": date}); err != nil {
			return w, err
		}
	case errors.Is(err, repo.ErrNotFound):
		w = domain.Workday{CollaboratorID: c.ID, Date: date, StartedAt: now, IsOpen: true}
		if w.ID, err = e.Repo.InsertWorkdayTx(ctx, tx, w); err != nil {
			return w, err
		}
		if err := e.Events.Append(ctx, tx, "workday.started", c.DepartmentID, "workday", idStr(w.ID), userOf(c), events.EventPayload{"date": date}); err != nil {
			return w, err
		}
	default:
		return w, err
	}
	if err := tx.Commit(); err != nil {
		return w, err
	}
	return w, nil
}

// CloseWorkday ends the day: every open session is stopped at the same
// instant, every unfinished activity is paused and the workday itself is
// stamped. The three effects land in one transaction. Closing a day that
// is already closed changes nothing and is not an error.
func (e Engine) CloseWorkday(ctx context.Context, c domain.Collaborator, date string) (domain.Workday, error) {
	if date == "" {
		date = e.Clock.Today()
	}
	w, err := e.Repo.GetWorkday(ctx, c.ID, date)
	if err != nil {
		return w, err
	}
	if !w.IsOpen {
		return w, nil
	}
	now := e.Clock.Now()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return w, err
	}
	defer tx.Rollback()

	if err := e.Repo.StopWorkdaySessionsTx(ctx, tx, w.ID, now); err != nil {
		return w, err
	}
	if err := e.Repo.DeactivateWorkdayActivitiesTx(ctx, tx, w.ID); err != nil {
		return w, err
	}
	if err := e.Repo.CloseWorkdayTx(ctx, tx, w.ID, now); err != nil {
		return w, err
	}
	if err := e.Events.Append(ctx, tx, "workday.closed", c.DepartmentID, "workday", idStr(w.ID), userOf(c), events.EventPayload{"date": date}); err != nil {
		return w, err
	}
	if err := tx.Commit(); err != nil {
		return w, err
	}
	w.IsOpen = false
	ended := now
	w.EndedAt = &ended
	return w, nil
}

// ActivityCreateOptions are the parameters for opening a new activity.
type ActivityCreateOptions struct {
	Date        string
	ProjectID   int64
	Class       domain.Classification
	Description string
}

// CreateActivity registers a classified activity on the collaborator's
// workday for the date, creating the workday implicitly when absent, and
// immediately starts its first timing session.
func (e Engine) CreateActivity(ctx context.Context, c domain.Collaborator, opts ActivityCreateOptions) (domain.Activity, error) {
	date := opts.Date
	if date == "" {
		date = e.Clock.Today()
	} else {
		var err error
		if date, err = e.Clock.ParseDate(date); err != nil {
			return domain.Activity{}, ValidationError{Msg: err.Error()}
		}
	}
	if opts.Class.IsEmpty() {
		return domain.Activity{}, ValidationError{Msg: "activity needs a catalog classification or ad-hoc text"}
	}
	if err := e.checkClassification(ctx, c.DepartmentID, opts.Class); err != nil {
		return domain.Activity{}, err
	}
	if opts.ProjectID != 0 {
		p, err := e.Repo.GetProject(ctx, opts.ProjectID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return domain.Activity{}, validationf("project %d not found", opts.ProjectID)
			}
			return domain.Activity{}, err
		}
		if p.DepartmentID != c.DepartmentID {
			return domain.Activity{}, validationf("project %d not found", opts.ProjectID)
		}
	}
	now := e.Clock.Now()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Activity{}, err
	}
	defer tx.Rollback()

	w, err := e.Repo.GetWorkdayTx(ctx, tx, c.ID, date)
	if errors.Is(err, repo.ErrNotFound) {
		w = domain.Workday{CollaboratorID: c.ID, Date: date, StartedAt: now, IsOpen: true}
		if w.ID, err = e.Repo.InsertWorkdayTx(ctx, tx, w); err != nil {
			return domain.Activity{}, err
		}
		if err := e.Events.Append(ctx, tx, "workday.started", c.DepartmentID, "workday", idStr(w.ID), userOf(c), events.EventPayload{"date": date}); err != nil {
			return domain.Activity{}, err
		}
	} else if err != nil {
		return domain.Activity{}, err
	}

	a := domain.Activity{
		CollaboratorID: c.ID,
		WorkdayID:      w.ID,
		Class:          opts.Class,
		Description:    opts.Description,
		StartedAt:      now,
		IsActive:       true,
	}
	if opts.ProjectID != 0 {
		pid := opts.ProjectID
		a.ProjectID = &pid
	}
	if a.ID, err = e.Repo.InsertActivityTx(ctx, tx, a); err != nil {
		return a, err
	}
	if _, err := e.Repo.InsertSessionTx(ctx, tx, domain.ActivitySession{ActivityID: a.ID, StartedAt: now}); err != nil {
		return a, err
	}
	if err := e.Events.Append(ctx, tx, "activity.created", c.DepartmentID, "activity", idStr(a.ID), userOf(c), events.EventPayload{"date": date, "description": a.Description}); err != nil {
		return a, err
	}
	if err := tx.Commit(); err != nil {
		return a, err
	}
	return a, nil
}

// checkClassification verifies every referenced catalog node belongs to
// the department and sits on the axis it is used for. Parent agreement
// is only checked when the axis above is also set: picking a child node
// on its own is valid.
func (e Engine) checkClassification(ctx context.Context, departmentID int64, class domain.Classification) error {
	for axis, id := range class.NodeIDs {
		if id == 0 {
			continue
		}
		n, err := e.Repo.GetCatalogNode(ctx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return validationf("catalog node %d not found", id)
			}
			return err
		}
		if n.DepartmentID != departmentID {
			return validationf("catalog node %d not found", id)
		}
		if n.Axis != axis {
			return validationf("catalog node %q belongs to another axis", n.Name)
		}
		if axis > 0 && n.ParentID != nil {
			if sel := class.NodeIDs[axis-1]; sel != 0 && sel != *n.ParentID {
				return validationf("catalog node %q does not belong to the selected parent", n.Name)
			}
		}
	}
	return nil
}

// StartActivity resumes a paused activity by opening a fresh session.
// If the latest session is still open the call changes nothing. Finished
// activities cannot be resumed.
func (e Engine) StartActivity(ctx context.Context, c domain.Collaborator, activityID int64) (domain.Activity, error) {
	a, err := e.Repo.GetOwnedActivity(ctx, c.ID, activityID)
	if err != nil {
		return a, err
	}
	if a.IsFinished() {
		return a, StateError{Msg: "activity is finished and cannot be resumed"}
	}
	last, err := e.Repo.LatestSession(ctx, a.ID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return a, err
	}
	if err == nil && last.IsOpen() {
		return a, nil
	}
	now := e.Clock.Now()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return a, err
	}
	defer tx.Rollback()

	if _, err := e.Repo.InsertSessionTx(ctx, tx, domain.ActivitySession{ActivityID: a.ID, StartedAt: now}); err != nil {
		return a, err
	}
	if err := e.Repo.SetActivityActiveTx(ctx, tx, a.ID, true); err != nil {
		return a, err
	}
	if err := e.Events.Append(ctx, tx, "activity.resumed", c.DepartmentID, "activity", idStr(a.ID), userOf(c), nil); err != nil {
		return a, err
	}
	if err := tx.Commit(); err != nil {
		return a, err
	}
	a.IsActive = true
	return a, nil
}

// PauseActivity stops the activity's open sessions. Pausing an already
// paused activity changes nothing.
func (e Engine) PauseActivity(ctx context.Context, c domain.Collaborator, activityID int64) (domain.Activity, error) {
	a, err := e.Repo.GetOwnedActivity(ctx, c.ID, activityID)
	if err != nil {
		return a, err
	}
	now := e.Clock.Now()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return a, err
	}
	defer tx.Rollback()

	if err := e.Repo.StopActivitySessionsTx(ctx, tx, a.ID, now); err != nil {
		return a, err
	}
	if err := e.Repo.SetActivityActiveTx(ctx, tx, a.ID, false); err != nil {
		return a, err
	}
	if err := e.Events.Append(ctx, tx, "activity.paused", c.DepartmentID, "activity", idStr(a.ID), userOf(c), nil); err != nil {
		return a, err
	}
	if err := tx.Commit(); err != nil {
		return a, err
	}
	a.IsActive = false
	return a, nil
}

// FinishActivity closes the activity for good: open sessions stop and
// finished_at is stamped once. Repeat calls keep the original timestamp.
func (e Engine) FinishActivity(ctx context.Context, c domain.Collaborator, activityID int64) (domain.Activity, error) {
	a, err := e.Repo.GetOwnedActivity(ctx, c.ID, activityID)
	if err != nil {
		return a, err
	}
	now := e.Clock.Now()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return a, err
	}
	defer tx.Rollback()

	if err := e.Repo.StopActivitySessionsTx(ctx, tx, a.ID, now); err != nil {
		return a, err
	}
	if err := e.Repo.FinishActivityTx(ctx, tx, a.ID, now); err != nil {
		return a, err
	}
	if err := e.Events.Append(ctx, tx, "activity.finished", c.DepartmentID, "activity", idStr(a.ID), userOf(c), nil); err != nil {
		return a, err
	}
	if err := tx.Commit(); err != nil {
		return a, err
	}
	return e.Repo.GetOwnedActivity(ctx, c.ID, activityID)
}

// ActivityStatus pairs an activity with its sessions and derived state
// for the day board.
type ActivityStatus struct {
	Activity domain.Activity          `json:"activity"`
	Sessions []domain.ActivitySession `json:"sessions"`
	Seconds  int64                    `json:"seconds"`
	State    string                   `json:"state" enum:"active,paused,done"`
}

// DashboardStats counts the day's activities by state.
type DashboardStats struct {
	Total  int `json:"total"`
	Active int `json:"active"`
	Paused int `json:"paused"`
	Done   int `json:"done"`
}

// DayNav marks one recent date and whether a workday exists on it.
type DayNav struct {
	Date       string `json:"date" format:"date"`
	HasWorkday bool   `json:"has_workday"`
}

// Dashboard is the collaborator's live view of one workday.
type Dashboard struct {
	Date       string           `json:"date" format:"date"`
	Workday    *domain.Workday  `json:"workday,omitempty"`
	Activities []ActivityStatus `json:"activities"`
	Stats      DashboardStats   `json:"stats"`
	Nav        []DayNav         `json:"nav"`
}

// DashboardSnapshot assembles the day board for a date, newest activity
// first, with elapsed time of open sessions counted against one instant.
func (e Engine) DashboardSnapshot(ctx context.Context, c domain.Collaborator, date string) (Dashboard, error) {
	if date == "" {
		date = e.Clock.Today()
	} else {
		var err error
		if date, err = e.Clock.ParseDate(date); err != nil {
			return Dashboard{}, ValidationError{Msg: err.Error()}
		}
	}
	d := Dashboard{Date: date, Activities: []ActivityStatus{}}
	var err error
	if d.Nav, err = e.dayNav(ctx, c.ID, date); err != nil {
		return d, err
	}
	w, err := e.Repo.GetWorkday(ctx, c.ID, date)
	if errors.Is(err, repo.ErrNotFound) {
		return d, nil
	}
	if err != nil {
		return d, err
	}
	d.Workday = &w

	acts, err := e.Repo.ListWorkdayActivities(ctx, w.ID)
	if err != nil {
		return d, err
	}
	ids := make([]int64, len(acts))
	for i, a := range acts {
		ids[i] = a.ID
	}
	sessions, err := e.Repo.SessionsByActivity(ctx, ids)
	if err != nil {
		return d, err
	}
	now := e.Clock.Now()
	for _, a := range acts {
		st := ActivityStatus{
			Activity: a,
			Sessions: sessions[a.ID],
			Seconds:  domain.TotalActiveSeconds(sessions[a.ID], now),
			State:    activityState(a),
		}
		d.Activities = append(d.Activities, st)
		d.Stats.Total++
		switch st.State {
		case "active":
			d.Stats.Active++
		case "paused":
			d.Stats.Paused++
		default:
			d.Stats.Done++
		}
	}
	return d, nil
}

// dayNav marks the trailing week ending at the requested date so the
// day board can link back to recent workdays.
func (e Engine) dayNav(ctx context.Context, collaboratorID int64, date string) ([]DayNav, error) {
	end, err := e.Clock.DayStart(date)
	if err != nil {
		return nil, err
	}
	from := e.Clock.DateOf(end.AddDate(0, 0, -6))
	days, err := e.Clock.DaysBetween(from, date)
	if err != nil {
		return nil, err
	}
	have, err := e.Repo.WorkdayDates(ctx, collaboratorID, days)
	if err != nil {
		return nil, err
	}
	nav := make([]DayNav, len(days))
	for i, d := range days {
		nav[i] = DayNav{Date: d, HasWorkday: have[d]}
	}
	return nav, nil
}

func activityState(a domain.Activity) string {
	switch {
	case a.IsFinished():
		return "done"
	case a.IsActive:
		return "active"
	default:
		return "paused"
	}
}

// ActivityDetail returns one owned activity with its sessions and the
// running total.
func (e Engine) ActivityDetail(ctx context.Context, c domain.Collaborator, activityID int64) (ActivityStatus, error) {
	a, err := e.Repo.GetOwnedActivity(ctx, c.ID, activityID)
	if err != nil {
		return ActivityStatus{}, err
	}
	sessions, err := e.Repo.SessionsByActivity(ctx, []int64{a.ID})
	if err != nil {
		return ActivityStatus{}, err
	}
	return ActivityStatus{
		Activity: a,
		Sessions: sessions[a.ID],
		Seconds:  domain.TotalActiveSeconds(sessions[a.ID], e.Clock.Now()),
		State:    activityState(a),
	}, nil
}
