package report

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"jornada/internal/clock"
	"jornada/internal/config"
	"jornada/internal/domain"
	"jornada/internal/repo"
)

// Chart and table caps. Everything past the cap is cut, not regrouped.
const (
	TopProjects   = 8
	TopAxisValues = 10
	TableLimit    = 50
)

// FormatHMS renders seconds as HH:MM:SS with unbounded, zero-padded
// hours, so 90000s is "25:00:00".
func FormatHMS(secs int64) string {
	if secs < 0 {
		secs = 0
	}
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// Percent is the share of total in percent, rounded to 2 decimals. A
// zero total is treated as 1 so empty periods yield 0 instead of NaN.
func Percent(secs, total int64) float64 {
	if total <= 0 {
		total = 1
	}
	return round2(float64(secs) * 100 / float64(total))
}

// Hours converts seconds to decimal hours, rounded to 2 decimals.
func Hours(secs int64) float64 {
	return round2(float64(secs) / 3600)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ChartSlice is one labeled share of a distribution chart.
type ChartSlice struct {
	Label string  `json:"label"`
	Hours float64 `json:"hours"`
	Pct   float64 `json:"pct"`
}

// DayPoint is one bar of the per-day series, scaled against the
// busiest day of the period.
type DayPoint struct {
	Date     string  `json:"date" format:"date"`
	Seconds  int64   `json:"seconds"`
	Hours    float64 `json:"hours"`
	HMS      string  `json:"hms"`
	PctOfMax float64 `json:"pct_of_max"`
}

// AxisChart is the distribution over one configured classification axis.
type AxisChart struct {
	Key    string       `json:"key"`
	Label  string       `json:"label"`
	Slices []ChartSlice `json:"slices"`
}

// ActivityRow is one flat line of the tabular report and the exports.
type ActivityRow struct {
	ActivityID   int64    `json:"activity_id"`
	Date         string   `json:"date" format:"date"`
	Collaborator string   `json:"collaborator"`
	Project      string   `json:"project"`
	Axes         []string `json:"axes"`
	Description  string   `json:"description,omitempty"`
	Seconds      int64    `json:"seconds"`
	Hours        float64  `json:"hours"`
	HMS          string   `json:"hms"`
}

// Options scope a report. Zero dates default to month-to-date.
type Options struct {
	From       string
	To         string
	ProjectIDs []int64
	NodeIDs    [domain.MaxAxes][]int64
	Order      string
	Limit      int
}

// CollaboratorReport is one person's time distribution over a period.
type CollaboratorReport struct {
	Collaborator     domain.Collaborator `json:"collaborator"`
	From             string              `json:"from" format:"date"`
	To               string              `json:"to" format:"date"`
	TotalSeconds     int64               `json:"total_seconds"`
	TotalHours       float64             `json:"total_hours"`
	TotalHMS         string              `json:"total_hms"`
	WorkedDays       int                 `json:"worked_days"`
	DistinctProjects int                 `json:"distinct_projects"`
	Days             []DayPoint          `json:"days"`
	Projects         []ChartSlice        `json:"projects"`
	Axes             []AxisChart         `json:"axes"`
	Rows             []ActivityRow       `json:"rows"`
}

// DepartmentKPIs summarize a department period at a glance.
type DepartmentKPIs struct {
	TotalHours      float64 `json:"total_hours"`
	Collaborators   int     `json:"collaborators"`
	AvgHoursPerHead float64 `json:"avg_hours_per_head"`
	Activities      int     `json:"activities"`
}

// DepartmentReport is the aggregated view across a whole department.
type DepartmentReport struct {
	Department    domain.Department `json:"department"`
	From          string            `json:"from" format:"date"`
	To            string            `json:"to" format:"date"`
	TotalSeconds  int64             `json:"total_seconds"`
	TotalHours    float64           `json:"total_hours"`
	TotalHMS      string            `json:"total_hms"`
	KPIs          DepartmentKPIs    `json:"kpis"`
	Days          []DayPoint        `json:"days"`
	Projects      []ChartSlice      `json:"projects"`
	Axes          []AxisChart       `json:"axes"`
	Collaborators []ChartSlice      `json:"collaborators"`
	Rows          []ActivityRow     `json:"rows"`
}

// RealtimeEntry is one activity timing right now.
type RealtimeEntry struct {
	Collaborator string   `json:"collaborator"`
	ActivityID   int64    `json:"activity_id"`
	Project      string   `json:"project"`
	Axes         []string `json:"axes"`
	Description  string   `json:"description,omitempty"`
	Date         string   `json:"date" format:"date"`
	Seconds      int64    `json:"seconds"`
	HMS          string   `json:"hms"`
}

// RealtimeBoard is the managers' live view of who is timing what.
type RealtimeBoard struct {
	GeneratedAt time.Time       `json:"generated_at" format:"date-time"`
	Entries     []RealtimeEntry `json:"entries"`
}

// FilterOptions are the dimension values a collaborator has used,
// offered as report filters.
type FilterOptions struct {
	Projects []repo.FilterOption   `json:"projects"`
	Axes     [][]repo.FilterOption `json:"axes"`
}

// Service builds report projections from raw session records.
type Service struct {
	Repo  repo.Repo
	Clock clock.Clock
}

func NewService(r repo.Repo, clk clock.Clock) Service {
	return Service{Repo: r, Clock: clk}
}

func (s Service) period(opts *Options) error {
	today := s.Clock.Today()
	if opts.To == "" {
		opts.To = today
	}
	if opts.From == "" {
		start, err := s.Clock.DayStart(opts.To)
		if err != nil {
			return err
		}
		opts.From = time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, start.Location()).Format(clock.DateLayout)
	}
	if opts.From > opts.To {
		opts.From, opts.To = opts.To, opts.From
	}
	if opts.Limit <= 0 {
		opts.Limit = TableLimit
	}
	return nil
}

// Collaborator assembles the personal report for a period.
func (s Service) Collaborator(ctx context.Context, schema config.DepartmentSchema, c domain.Collaborator, opts Options) (CollaboratorReport, error) {
	if err := s.period(&opts); err != nil {
		return CollaboratorReport{}, err
	}
	agg, err := s.aggregate(ctx, c.DepartmentID, c.ID, nil, opts)
	if err != nil {
		return CollaboratorReport{}, err
	}
	rows, err := s.rows(ctx, schema, repo.ActivityFilters{
		DepartmentID:   c.DepartmentID,
		CollaboratorID: c.ID,
		DateFrom:       opts.From,
		DateTo:         opts.To,
		ProjectIDs:     opts.ProjectIDs,
		NodeIDs:        opts.NodeIDs,
	}, opts, agg.Now)
	if err != nil {
		return CollaboratorReport{}, err
	}
	worked := 0
	for _, d := range agg.Days {
		if d.Seconds > 0 {
			worked++
		}
	}
	distinct := 0
	for _, sl := range agg.Projects {
		if sl.Label != NoProjectLabel {
			distinct++
		}
	}
	return CollaboratorReport{
		Collaborator:     c,
		From:             opts.From,
		To:               opts.To,
		TotalSeconds:     agg.Total,
		TotalHours:       Hours(agg.Total),
		TotalHMS:         FormatHMS(agg.Total),
		WorkedDays:       worked,
		DistinctProjects: distinct,
		Days:             dayPoints(agg),
		Projects:         chartSlices(agg.Projects, agg.Total, TopProjects),
		Axes:             axisCharts(schema, agg),
		Rows:             rows,
	}, nil
}

// Department assembles the aggregated report across every collaborator
// of the department.
func (s Service) Department(ctx context.Context, schema config.DepartmentSchema, dept domain.Department, collaboratorIDs []int64, opts Options) (DepartmentReport, error) {
	if err := s.period(&opts); err != nil {
		return DepartmentReport{}, err
	}
	agg, err := s.aggregate(ctx, dept.ID, 0, collaboratorIDs, opts)
	if err != nil {
		return DepartmentReport{}, err
	}
	rows, err := s.rows(ctx, schema, repo.ActivityFilters{
		DepartmentID:    dept.ID,
		CollaboratorIDs: collaboratorIDs,
		DateFrom:        opts.From,
		DateTo:          opts.To,
		ProjectIDs:      opts.ProjectIDs,
		NodeIDs:         opts.NodeIDs,
	}, opts, agg.Now)
	if err != nil {
		return DepartmentReport{}, err
	}
	heads := len(agg.Collaborators)
	kpis := DepartmentKPIs{
		TotalHours:    Hours(agg.Total),
		Collaborators: heads,
		Activities:    len(rows),
	}
	if heads > 0 {
		kpis.AvgHoursPerHead = round2(Hours(agg.Total) / float64(heads))
	}
	return DepartmentReport{
		Department:    dept,
		From:          opts.From,
		To:            opts.To,
		TotalSeconds:  agg.Total,
		TotalHours:    Hours(agg.Total),
		TotalHMS:      FormatHMS(agg.Total),
		KPIs:          kpis,
		Days:          dayPoints(agg),
		Projects:      chartSlices(agg.Projects, agg.Total, TopProjects),
		Axes:          axisCharts(schema, agg),
		Collaborators: chartSlices(agg.Collaborators, agg.Total, TopAxisValues),
		Rows:          rows,
	}, nil
}

// Realtime lists every activity timing right now across the department.
func (s Service) Realtime(ctx context.Context, schema config.DepartmentSchema, dept domain.Department) (RealtimeBoard, error) {
	now := s.Clock.Now()
	board := RealtimeBoard{GeneratedAt: now, Entries: []RealtimeEntry{}}
	records, err := s.Repo.RunningActivities(ctx, dept.ID)
	if err != nil {
		return board, err
	}
	ids := make([]int64, len(records))
	for i, rec := range records {
		ids[i] = rec.Activity.ID
	}
	sessions, err := s.Repo.SessionsByActivity(ctx, ids)
	if err != nil {
		return board, err
	}
	for _, rec := range records {
		secs := domain.TotalActiveSeconds(sessions[rec.Activity.ID], now)
		board.Entries = append(board.Entries, RealtimeEntry{
			Collaborator: rec.Collaborator,
			ActivityID:   rec.Activity.ID,
			Project:      recordProject(rec),
			Axes:         recordAxes(schema, rec),
			Description:  rec.Activity.Description,
			Date:         rec.WorkdayDate,
			Seconds:      secs,
			HMS:          FormatHMS(secs),
		})
	}
	return board, nil
}

// Filters lists the projects and catalog nodes a collaborator has
// actually used, one list per configured axis.
func (s Service) Filters(ctx context.Context, schema config.DepartmentSchema, collaboratorID int64) (FilterOptions, error) {
	projects, err := s.Repo.UsedProjects(ctx, collaboratorID)
	if err != nil {
		return FilterOptions{}, err
	}
	out := FilterOptions{Projects: projects, Axes: make([][]repo.FilterOption, len(schema.Axes))}
	for axis := range schema.Axes {
		nodes, err := s.Repo.UsedCatalogNodes(ctx, collaboratorID, axis)
		if err != nil {
			return FilterOptions{}, err
		}
		out.Axes[axis] = nodes
	}
	return out, nil
}

func (s Service) aggregate(ctx context.Context, departmentID, collaboratorID int64, collaboratorIDs []int64, opts Options) (Aggregation, error) {
	periodStart, err := s.Clock.DayStart(opts.From)
	if err != nil {
		return Aggregation{}, err
	}
	periodEnd, err := s.Clock.DayEnd(opts.To)
	if err != nil {
		return Aggregation{}, err
	}
	records, err := s.Repo.ListSessions(ctx, repo.SessionFilters{
		DepartmentID:    departmentID,
		CollaboratorID:  collaboratorID,
		CollaboratorIDs: collaboratorIDs,
		PeriodStart:     periodStart,
		PeriodEnd:       periodEnd,
		ProjectIDs:      opts.ProjectIDs,
		NodeIDs:         opts.NodeIDs,
	})
	if err != nil {
		return Aggregation{}, err
	}
	return Aggregator{Clock: s.Clock}.Aggregate(records, opts.From, opts.To)
}

func (s Service) rows(ctx context.Context, schema config.DepartmentSchema, f repo.ActivityFilters, opts Options, now time.Time) ([]ActivityRow, error) {
	records, err := s.Repo.ListActivityRecords(ctx, f)
	if err != nil {
		return []ActivityRow{}, err
	}
	ids := make([]int64, len(records))
	for i, rec := range records {
		ids[i] = rec.Activity.ID
	}
	sessions, err := s.Repo.SessionsByActivity(ctx, ids)
	if err != nil {
		return []ActivityRow{}, err
	}

	// Row seconds are each session's full duration. Only the per-day
	// buckets clamp to the period, so a session crossing the window
	// boundary still shows its whole length in the table and exports.
	rows := make([]ActivityRow, 0, len(records))
	for _, rec := range records {
		secs := domain.TotalActiveSeconds(sessions[rec.Activity.ID], now)
		rows = append(rows, ActivityRow{
			ActivityID:   rec.Activity.ID,
			Date:         rec.WorkdayDate,
			Collaborator: rec.Collaborator,
			Project:      recordProject(rec),
			Axes:         recordAxes(schema, rec),
			Description:  rec.Activity.Description,
			Seconds:      secs,
			Hours:        Hours(secs),
			HMS:          FormatHMS(secs),
		})
	}
	orderRows(rows, opts.Order)
	if len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}
	return rows, nil
}

// orderRows applies the requested ordering. The default and the "-hours"
// key put the longest activities first.
func orderRows(rows []ActivityRow, order string) {
	switch order {
	case "hours":
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Seconds < rows[j].Seconds })
	case "name":
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Collaborator < rows[j].Collaborator })
	case "project":
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Project < rows[j].Project })
	default:
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Seconds > rows[j].Seconds })
	}
}

func dayPoints(agg Aggregation) []DayPoint {
	max := agg.MaxDaySeconds()
	out := make([]DayPoint, len(agg.Days))
	for i, d := range agg.Days {
		out[i] = DayPoint{
			Date:     d.Date,
			Seconds:  d.Seconds,
			Hours:    Hours(d.Seconds),
			HMS:      FormatHMS(d.Seconds),
			PctOfMax: Percent(d.Seconds, max),
		}
	}
	return out
}

// chartSlices converts aggregation slices to chart shares, percentages
// taken against the period total, cut at limit when limit is positive.
func chartSlices(slices []Slice, total int64, limit int) []ChartSlice {
	if limit > 0 && len(slices) > limit {
		slices = slices[:limit]
	}
	out := make([]ChartSlice, len(slices))
	for i, sl := range slices {
		out[i] = ChartSlice{Label: sl.Label, Hours: Hours(sl.Seconds), Pct: Percent(sl.Seconds, total)}
	}
	return out
}

func axisCharts(schema config.DepartmentSchema, agg Aggregation) []AxisChart {
	out := make([]AxisChart, len(schema.Axes))
	for i, ax := range schema.Axes {
		out[i] = AxisChart{
			Key:    ax.Key,
			Label:  ax.Label,
			Slices: chartSlices(agg.Axes[i], agg.Total, TopAxisValues),
		}
	}
	return out
}

func recordProject(rec repo.ActivityRecord) string {
	if rec.ProjectName != nil && *rec.ProjectName != "" {
		return *rec.ProjectName
	}
	return NoProjectLabel
}

// recordAxes renders the classification labels for the configured axes,
// catalog name first, ad-hoc text second, sentinel last.
func recordAxes(schema config.DepartmentSchema, rec repo.ActivityRecord) []string {
	out := make([]string, len(schema.Axes))
	for axis := range schema.Axes {
		switch {
		case rec.NodeNames[axis] != nil && *rec.NodeNames[axis] != "":
			out[axis] = *rec.NodeNames[axis]
		case rec.Activity.Class.AdHoc[axis] != "":
			out[axis] = rec.Activity.Class.AdHoc[axis]
		default:
			out[axis] = NoValueLabel
		}
	}
	return out
}
