package repo

import (
	"context"
	"database/sql"

	"jornada/internal/domain"
)

const catalogCols = `id,department_id,axis,parent_id,name,ord,is_active`

func scanCatalogNode(scan func(dest ...any) error) (domain.CatalogNode, error) {
	var n domain.CatalogNode
	var parent sql.NullInt64
	if err := scan(&n.ID, &n.DepartmentID, &n.Axis, &parent, &n.Name, &n.Order, &n.IsActive); err != nil {
		return n, err
	}
	n.ParentID = idPtr(parent)
	return n, nil
}

func (r Repo) InsertCatalogNode(ctx context.Context, n domain.CatalogNode) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO catalog_nodes(department_id,axis,parent_id,name,ord,is_active) VALUES (?,?,?,?,?,?)`,
		n.DepartmentID, n.Axis, nullableIDPtr(n.ParentID), n.Name, n.Order, n.IsActive)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetCatalogNode(ctx context.Context, id int64) (domain.CatalogNode, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+catalogCols+` FROM catalog_nodes WHERE id=?`, id)
	n, err := scanCatalogNode(row.Scan)
	if err == sql.ErrNoRows {
		return n, ErrNotFound
	}
	return n, err
}

// ListCatalogAxis lists the active nodes of one axis in catalog order,
// inactive nodes excluded so they disappear from selection but keep history.
func (r Repo) ListCatalogAxis(ctx context.Context, departmentID int64, axis int) ([]domain.CatalogNode, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+catalogCols+` FROM catalog_nodes WHERE department_id=? AND axis=? AND is_active=1 ORDER BY ord, name`, departmentID, axis)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CatalogNode
	for rows.Next() {
		n, err := scanCatalogNode(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

// ListCatalogChildren lists the active children of a node in catalog order.
func (r Repo) ListCatalogChildren(ctx context.Context, parentID int64) ([]domain.CatalogNode, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+catalogCols+` FROM catalog_nodes WHERE parent_id=? AND is_active=1 ORDER BY ord, name`, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.CatalogNode
	for rows.Next() {
		n, err := scanCatalogNode(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

// CatalogNames resolves display names for a set of node ids.
func (r Repo) CatalogNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	out := map[int64]string{}
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,name FROM catalog_nodes WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	return out, rows.Err()
}
