package repo

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"jornada/internal/domain"
)

// Departments, collaborators and projects are reference data for the
// time-accounting tables: they are looked up and linked, never cascaded.

func (r Repo) GetDepartmentBySlug(ctx context.Context, slug string) (domain.Department, error) {
	var d domain.Department
	err := r.DB.QueryRowContext(ctx, `SELECT id,slug,name,is_active FROM departments WHERE slug=?`, slug).
		Scan(&d.ID, &d.Slug, &d.Name, &d.IsActive)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	return d, err
}

func (r Repo) InsertDepartment(ctx context.Context, d domain.Department) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO departments(slug,name,is_active) VALUES (?,?,?)`, d.Slug, d.Name, d.IsActive)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// EnsureDepartment get-or-creates a department row for a registry entry.
func (r Repo) EnsureDepartment(ctx context.Context, slug, name string) (domain.Department, error) {
	d, err := r.GetDepartmentBySlug(ctx, slug)
	if err == nil {
		return d, nil
	}
	if err != ErrNotFound {
		return d, err
	}
	if name == "" {
		name = strings.ToUpper(slug)
	}
	id, err := r.InsertDepartment(ctx, domain.Department{Slug: slug, Name: name, IsActive: true})
	if err != nil {
		return domain.Department{}, err
	}
	return domain.Department{ID: id, Slug: slug, Name: name, IsActive: true}, nil
}

// ------------------------------------------------------------ collaborators

const collaboratorCols = `id,user_id,name,email,phone,department_id,is_manager,is_active,created_at`

func scanCollaborator(scan func(dest ...any) error) (domain.Collaborator, error) {
	var c domain.Collaborator
	var userID, email sql.NullString
	var created string
	if err := scan(&c.ID, &userID, &c.Name, &email, &c.Phone, &c.DepartmentID, &c.IsManager, &c.IsActive, &created); err != nil {
		return c, err
	}
	if userID.Valid {
		c.UserID = &userID.String
	}
	if email.Valid {
		c.Email = &email.String
	}
	var err error
	c.CreatedAt, err = parseTime(created)
	return c, err
}

func (r Repo) InsertCollaborator(ctx context.Context, c domain.Collaborator) (int64, error) {
	var userID, email any
	if c.UserID != nil {
		userID = *c.UserID
	}
	if c.Email != nil && *c.Email != "" {
		email = *c.Email
	}
	res, err := r.DB.ExecContext(ctx, `INSERT INTO collaborators(user_id,name,email,phone,department_id,is_manager,is_active,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		userID, c.Name, email, c.Phone, c.DepartmentID, c.IsManager, c.IsActive, fmtTime(c.CreatedAt))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetCollaborator(ctx context.Context, id int64) (domain.Collaborator, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+collaboratorCols+` FROM collaborators WHERE id=?`, id)
	c, err := scanCollaborator(row.Scan)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

// FindCollaboratorByUser resolves the active collaborator linking a user
// to a department.
func (r Repo) FindCollaboratorByUser(ctx context.Context, userID string, departmentID int64) (domain.Collaborator, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+collaboratorCols+` FROM collaborators WHERE user_id=? AND department_id=? AND is_active=1`, userID, departmentID)
	c, err := scanCollaborator(row.Scan)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

// FindCollaboratorByEmail matches a collaborator by e-mail across the
// whole directory; the unique index guarantees at most one.
func (r Repo) FindCollaboratorByEmail(ctx context.Context, email string) (domain.Collaborator, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+collaboratorCols+` FROM collaborators WHERE email=?`, email)
	c, err := scanCollaborator(row.Scan)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

// LinkCollaboratorUser attaches a user to an unlinked collaborator record.
func (r Repo) LinkCollaboratorUser(ctx context.Context, collaboratorID int64, userID string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE collaborators SET user_id=? WHERE id=? AND user_id IS NULL`, userID, collaboratorID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListCollaborators(ctx context.Context, departmentID int64, includeInactive bool) ([]domain.Collaborator, error) {
	query := `SELECT ` + collaboratorCols + ` FROM collaborators WHERE department_id=?`
	if !includeInactive {
		query += ` AND is_active=1`
	}
	query += ` ORDER BY name`
	rows, err := r.DB.QueryContext(ctx, query, departmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Collaborator
	for rows.Next() {
		c, err := scanCollaborator(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// --------------------------------------------------------------- projects

func (r Repo) InsertProject(ctx context.Context, p domain.Project) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO projects(department_id,name,code,cost_center,location,is_active) VALUES (?,?,?,?,?,?)`,
		p.DepartmentID, p.Name, p.Code, p.CostCenter, p.Location, p.IsActive)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetProject(ctx context.Context, id int64) (domain.Project, error) {
	var p domain.Project
	err := r.DB.QueryRowContext(ctx, `SELECT id,department_id,name,code,cost_center,location,is_active FROM projects WHERE id=?`, id).
		Scan(&p.ID, &p.DepartmentID, &p.Name, &p.Code, &p.CostCenter, &p.Location, &p.IsActive)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) ListProjects(ctx context.Context, departmentID int64, q string) ([]domain.Project, error) {
	clauses := []string{"department_id=?", "is_active=1"}
	args := []any{departmentID}
	if q != "" {
		clauses = append(clauses, "(name LIKE ? OR code LIKE ? OR cost_center LIKE ? OR location LIKE ?)")
		like := "%" + q + "%"
		args = append(args, like, like, like, like)
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,department_id,name,code,cost_center,location,is_active FROM projects WHERE `+strings.Join(clauses, " AND ")+` ORDER BY name`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.DepartmentID, &p.Name, &p.Code, &p.CostCenter, &p.Location, &p.IsActive); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// NewCollaborator builds a directory record with the creation timestamp set.
func NewCollaborator(name string, departmentID int64, now time.Time) domain.Collaborator {
	return domain.Collaborator{
		Name:         name,
		DepartmentID: departmentID,
		IsActive:     true,
		CreatedAt:    now,
	}
}
