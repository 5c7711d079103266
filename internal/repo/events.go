package repo

import (
	"context"

	"jornada/internal/domain"
)

// LatestEvents returns the newest audit events, optionally scoped to a
// department and event type.
func (r Repo) LatestEvents(ctx context.Context, n int, departmentID int64, evtType string) ([]domain.Event, error) {
	query := `SELECT id, ts, type, COALESCE(department_id,0), entity_kind, COALESCE(entity_id,''), user_id, payload_json FROM events`
	var where []string
	var args []any
	if departmentID != 0 {
		where = append(where, "department_id=?")
		args = append(args, departmentID)
	}
	if evtType != "" {
		where = append(where, "type=?")
		args = append(args, evtType)
	}
	for i, w := range where {
		if i == 0 {
			query += " WHERE " + w
		} else {
			query += " AND " + w
		}
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, n)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.DepartmentID, &e.EntityKind, &e.EntityID, &e.UserID, &e.Payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
