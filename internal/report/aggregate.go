package report

import (
	"sort"
	"time"

	"jornada/internal/clock"
	"jornada/internal/domain"
	"jornada/internal/repo"
)

// Sentinels used when an activity carries no project or leaves an axis
// unset. Reports group such time under these labels instead of dropping it.
const (
	NoProjectLabel = "Sem projeto"
	NoValueLabel   = "—"
)

// Slice is one labeled share of the aggregated time.
type Slice struct {
	Label   string `json:"label"`
	Seconds int64  `json:"seconds"`
}

// DayBucket is the time worked inside one calendar day of the period.
type DayBucket struct {
	Date    string `json:"date" format:"date"`
	Seconds int64  `json:"seconds"`
}

// Aggregation is the distribution of session time over a period, split
// by calendar day and by every reporting dimension. Slices keep
// descending order with first-seen label order breaking ties.
type Aggregation struct {
	From          string
	To            string
	Now           time.Time
	Total         int64
	Days          []DayBucket
	Projects      []Slice
	Axes          [domain.MaxAxes][]Slice
	Collaborators []Slice
}

// MaxDaySeconds is the largest single-day total, used to scale day bars.
func (a Aggregation) MaxDaySeconds() int64 {
	var max int64
	for _, d := range a.Days {
		if d.Seconds > max {
			max = d.Seconds
		}
	}
	return max
}

// overlapSeconds is the whole seconds shared by [aStart,aEnd) and
// [bStart,bEnd), never negative.
func overlapSeconds(aStart, aEnd, bStart, bEnd time.Time) int64 {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	d := int64(end.Sub(start) / time.Second)
	if d < 0 {
		return 0
	}
	return d
}

type accumulator struct {
	seconds map[string]int64
	order   []string
}

func newAccumulator() *accumulator {
	return &accumulator{seconds: map[string]int64{}}
}

func (acc *accumulator) add(label string, secs int64) {
	if _, seen := acc.seconds[label]; !seen {
		acc.order = append(acc.order, label)
	}
	acc.seconds[label] += secs
}

// slices returns the accumulated shares sorted by seconds descending.
// Equal shares keep the order their labels were first seen in, so the
// output is deterministic for a given record order.
func (acc *accumulator) slices() []Slice {
	out := make([]Slice, 0, len(acc.order))
	for _, label := range acc.order {
		out = append(out, Slice{Label: label, Seconds: acc.seconds[label]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seconds > out[j].Seconds })
	return out
}

// Aggregator splits session time across calendar days and reporting
// dimensions. Sessions crossing midnight contribute to each day exactly
// the part that falls inside it.
type Aggregator struct {
	Clock clock.Clock
}

// Aggregate walks every day of [from,to] and distributes each session's
// overlap with that day. Open sessions count up to a single "now" taken
// once at the start, so all dimensions see the same instant.
func (g Aggregator) Aggregate(records []repo.SessionRecord, from, to string) (Aggregation, error) {
	now := g.Clock.Now()
	agg := Aggregation{From: from, To: to, Now: now}

	days, err := g.Clock.DaysBetween(from, to)
	if err != nil {
		return agg, err
	}
	dayTotals := make([]int64, len(days))

	projects := newAccumulator()
	collaborators := newAccumulator()
	axes := [domain.MaxAxes]*accumulator{}
	for i := range axes {
		axes[i] = newAccumulator()
	}

	for di, date := range days {
		dayStart, err := g.Clock.DayStart(date)
		if err != nil {
			return agg, err
		}
		dayEnd, err := g.Clock.DayEnd(date)
		if err != nil {
			return agg, err
		}
		for _, rec := range records {
			end := now
			if rec.Session.EndedAt != nil {
				end = *rec.Session.EndedAt
			}
			secs := overlapSeconds(rec.Session.StartedAt, end, dayStart, dayEnd)
			if secs <= 0 {
				continue
			}
			dayTotals[di] += secs
			agg.Total += secs
			projects.add(projectLabel(rec), secs)
			collaborators.add(rec.Collaborator, secs)
			for axis := range axes {
				axes[axis].add(axisLabel(rec, axis), secs)
			}
		}
	}

	agg.Days = make([]DayBucket, len(days))
	for i, date := range days {
		agg.Days[i] = DayBucket{Date: date, Seconds: dayTotals[i]}
	}
	agg.Projects = projects.slices()
	agg.Collaborators = collaborators.slices()
	for i := range axes {
		agg.Axes[i] = axes[i].slices()
	}
	return agg, nil
}

func projectLabel(rec repo.SessionRecord) string {
	if rec.ProjectName != nil && *rec.ProjectName != "" {
		return *rec.ProjectName
	}
	return NoProjectLabel
}

func axisLabel(rec repo.SessionRecord, axis int) string {
	if rec.NodeNames[axis] != nil && *rec.NodeNames[axis] != "" {
		return *rec.NodeNames[axis]
	}
	if rec.AdHoc[axis] != "" {
		return rec.AdHoc[axis]
	}
	return NoValueLabel
}
