package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"jornada/internal/clock"
	"jornada/internal/domain"
	"jornada/internal/repo"
)

// PermissionError marks a caller who is authenticated but not allowed.
type PermissionError struct {
	Msg string
}

func (e PermissionError) Error() string { return e.Msg }

// Identity is the authenticated user as the tokens present them.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// Gate resolves identities to collaborator records and enforces the
// department boundary. Every portal operation passes through here first.
type Gate struct {
	Repo  repo.Repo
	Clock clock.Clock
}

func New(r repo.Repo, clk clock.Clock) Gate {
	return Gate{Repo: r, Clock: clk}
}

// RequireCollaborator resolves the identity's active collaborator record
// in the department. Users without one are denied, not provisioned.
func (g Gate) RequireCollaborator(ctx context.Context, id Identity, departmentID int64) (domain.Collaborator, error) {
	if id.UserID == "" {
		return domain.Collaborator{}, PermissionError{Msg: "missing user identity"}
	}
	c, err := g.Repo.FindCollaboratorByUser(ctx, id.UserID, departmentID)
	if errors.Is(err, repo.ErrNotFound) {
		return c, PermissionError{Msg: "no collaborator record in this department"}
	}
	return c, err
}

// RequireManager additionally demands the manager flag.
func (g Gate) RequireManager(ctx context.Context, id Identity, departmentID int64) (domain.Collaborator, error) {
	c, err := g.RequireCollaborator(ctx, id, departmentID)
	if err != nil {
		return c, err
	}
	if !c.IsManager {
		return c, PermissionError{Msg: "manager access required"}
	}
	return c, nil
}

// EnsureCollaborator resolves or provisions the identity's collaborator
// record in the department. An unlinked directory record matching the
// user's e-mail is recycled by linking it; otherwise a fresh record is
// created, with a generated placeholder e-mail when the real one is
// taken or absent.
func (g Gate) EnsureCollaborator(ctx context.Context, id Identity, dept domain.Department) (domain.Collaborator, error) {
	if id.UserID == "" {
		return domain.Collaborator{}, PermissionError{Msg: "missing user identity"}
	}
	c, err := g.Repo.FindCollaboratorByUser(ctx, id.UserID, dept.ID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return c, err
	}

	email := strings.ToLower(strings.TrimSpace(id.Email))
	if email != "" {
		existing, err := g.Repo.FindCollaboratorByEmail(ctx, email)
		switch {
		case err == nil && existing.DepartmentID == dept.ID && existing.UserID == nil:
			if err := g.Repo.LinkCollaboratorUser(ctx, existing.ID, id.UserID); err != nil {
				return existing, err
			}
			uid := id.UserID
			existing.UserID = &uid
			return existing, nil
		case err == nil:
			// e-mail taken by a linked or foreign record; the new
			// collaborator gets a placeholder instead
			email = ""
		case !errors.Is(err, repo.ErrNotFound):
			return domain.Collaborator{}, err
		}
	}
	if email == "" {
		email = placeholderEmail(dept.Slug, id.UserID)
	}

	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = id.UserID
	}
	uid := id.UserID
	c = repo.NewCollaborator(name, dept.ID, g.Clock.Now())
	c.UserID = &uid
	c.Email = &email
	if c.ID, err = g.Repo.InsertCollaborator(ctx, c); err != nil {
		return c, err
	}
	return c, nil
}

// placeholderEmail builds a unique non-routable address so the e-mail
// uniqueness index never blocks provisioning.
func placeholderEmail(slug, userID string) string {
	return fmt.Sprintf("collab-%s-u%s-%s@local.invalid", slug, userID, strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
