package domain

import "time"

// MaxAxes is the deepest work-breakdown hierarchy any department may configure.
const MaxAxes = 3

type Department struct {
	ID       int64  `json:"id"`
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

type Collaborator struct {
	ID           int64     `json:"id"`
	UserID       *string   `json:"user_id,omitempty"`
	Name         string    `json:"name"`
	Email        *string   `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	DepartmentID int64     `json:"department_id"`
	IsManager    bool      `json:"is_manager"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at" format:"date-time"`
}

type Project struct {
	ID           int64  `json:"id"`
	DepartmentID int64  `json:"department_id"`
	Name         string `json:"name"`
	Code         string `json:"code,omitempty"`
	CostCenter   string `json:"cost_center,omitempty"`
	Location     string `json:"location,omitempty"`
	IsActive     bool   `json:"is_active"`
}

// CatalogNode is one entry of a department's work-breakdown catalog.
// Axis is the zero-based hierarchy level; a node's parent always lives
// on axis-1 of the same department.
type CatalogNode struct {
	ID           int64  `json:"id"`
	DepartmentID int64  `json:"department_id"`
	Axis         int    `json:"axis"`
	ParentID     *int64 `json:"parent_id,omitempty"`
	Name         string `json:"name"`
	Order        int    `json:"order"`
	IsActive     bool   `json:"is_active"`
}

// Classification tags an activity against the catalog, or with ad-hoc
// free text when no catalog node fits. Both arrays are axis-indexed;
// a zero id / empty string means the axis is unset.
type Classification struct {
	NodeIDs [MaxAxes]int64  `json:"node_ids"`
	AdHoc   [MaxAxes]string `json:"ad_hoc"`
}

// HasCatalogRef reports whether any axis references a catalog node.
func (c Classification) HasCatalogRef() bool {
	for _, id := range c.NodeIDs {
		if id != 0 {
			return true
		}
	}
	return false
}

// HasAdHoc reports whether any axis carries ad-hoc text.
func (c Classification) HasAdHoc() bool {
	for _, s := range c.AdHoc {
		if s != "" {
			return true
		}
	}
	return false
}

func (c Classification) IsEmpty() bool {
	return !c.HasCatalogRef() && !c.HasAdHoc()
}

type Workday struct {
	ID             int64      `json:"id"`
	CollaboratorID int64      `json:"collaborator_id"`
	Date           string     `json:"date" format:"date"`
	StartedAt      time.Time  `json:"started_at" format:"date-time"`
	EndedAt        *time.Time `json:"ended_at,omitempty" format:"date-time"`
	IsOpen         bool       `json:"is_open"`
}

type Activity struct {
	ID             int64          `json:"id"`
	CollaboratorID int64          `json:"collaborator_id"`
	WorkdayID      int64          `json:"workday_id"`
	ProjectID      *int64         `json:"project_id,omitempty"`
	Class          Classification `json:"classification"`
	Description    string         `json:"description,omitempty"`
	StartedAt      time.Time      `json:"started_at" format:"date-time"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty" format:"date-time"`
	IsActive       bool           `json:"is_active"`
}

func (a Activity) IsFinished() bool { return a.FinishedAt != nil }

// ActivitySession is one contiguous timed interval within an activity.
type ActivitySession struct {
	ID         int64      `json:"id"`
	ActivityID int64      `json:"activity_id"`
	StartedAt  time.Time  `json:"started_at" format:"date-time"`
	EndedAt    *time.Time `json:"ended_at,omitempty" format:"date-time"`
}

func (s ActivitySession) IsOpen() bool { return s.EndedAt == nil }

// DurationSeconds is the elapsed whole seconds of the session, counting
// up to now while the session is still open. Never negative.
func (s ActivitySession) DurationSeconds(now time.Time) int64 {
	end := now
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	d := int64(end.Sub(s.StartedAt) / time.Second)
	if d < 0 {
		return 0
	}
	return d
}

// TotalActiveSeconds sums all session durations of an activity, open
// sessions counted against the supplied instant.
func TotalActiveSeconds(sessions []ActivitySession, now time.Time) int64 {
	var total int64
	for _, s := range sessions {
		total += s.DurationSeconds(now)
	}
	return total
}

type Event struct {
	ID           int64  `json:"id"`
	TS           string `json:"ts" format:"date-time"`
	Type         string `json:"type"`
	DepartmentID int64  `json:"department_id,omitempty"`
	EntityKind   string `json:"entity_kind"`
	EntityID     string `json:"entity_id,omitempty"`
	UserID       string `json:"user_id"`
	Payload      string `json:"payload_json"`
}
