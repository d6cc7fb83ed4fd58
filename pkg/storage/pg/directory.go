package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/openidx/authcore/pkg/directory"
	apperrors "github.com/openidx/authcore/pkg/errors"
)

// Directory lookups over the identity tables. These are read-only: the CRUD
// surfaces that own the tables live outside this repository.

func (s *Store) FindUserByID(ctx context.Context, id string) (directory.User, error) {
	const q = `
		SELECT id, tenant_id, COALESCE(organization_id, ''), email, status, password_hash
		  FROM users
		 WHERE id = $1`
	return s.scanUser(s.pool.QueryRow(ctx, q, id))
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (directory.User, error) {
	const q = `
		SELECT id, tenant_id, COALESCE(organization_id, ''), email, status, password_hash
		  FROM users
		 WHERE email = $1`
	return s.scanUser(s.pool.QueryRow(ctx, q, email))
}

func (s *Store) scanUser(row pgx.Row) (directory.User, error) {
	var u directory.User
	var status string
	err := row.Scan(&u.ID, &u.TenantID, &u.OrganizationID, &u.Email, &status, &u.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return directory.User{}, apperrors.NewNotFound("user")
		}
		return directory.User{}, err
	}
	u.Status = directory.SubjectStatus(status)
	return u, nil
}

func (s *Store) FindOrganizationByID(ctx context.Context, id string) (directory.Organization, error) {
	const q = `SELECT id, tenant_id, name FROM organizations WHERE id = $1`
	var o directory.Organization
	err := s.pool.QueryRow(ctx, q, id).Scan(&o.ID, &o.TenantID, &o.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return directory.Organization{}, apperrors.NewNotFound("organization")
		}
		return directory.Organization{}, err
	}
	return o, nil
}

func (s *Store) FindTenantByID(ctx context.Context, id string) (directory.Tenant, error) {
	const q = `SELECT id, name FROM tenants WHERE id = $1`
	var t directory.Tenant
	err := s.pool.QueryRow(ctx, q, id).Scan(&t.ID, &t.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return directory.Tenant{}, apperrors.NewNotFound("tenant")
		}
		return directory.Tenant{}, err
	}
	return t, nil
}

func (s *Store) RolesForUser(ctx context.Context, userID string) ([]directory.Role, error) {
	const q = `
		SELECT r.id, r.name
		  FROM roles r
		  JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = $1`
	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []directory.Role
	for rows.Next() {
		var r directory.Role
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) PermissionsForRoles(ctx context.Context, roleIDs []string) ([]directory.Permission, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	const q = `
		SELECT DISTINCT p.id, p.resource, p.action
		  FROM permissions p
		  JOIN role_permissions rp ON rp.permission_id = p.id
		 WHERE rp.role_id = ANY($1)`
	rows, err := s.pool.Query(ctx, q, roleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []directory.Permission
	for rows.Next() {
		var p directory.Permission
		if err := rows.Scan(&p.ID, &p.Resource, &p.Action); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) FindPermissionByID(ctx context.Context, id string) (directory.Permission, error) {
	const q = `SELECT id, resource, action FROM permissions WHERE id = $1`
	var p directory.Permission
	err := s.pool.QueryRow(ctx, q, id).Scan(&p.ID, &p.Resource, &p.Action)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return directory.Permission{}, apperrors.NewNotFound("permission")
		}
		return directory.Permission{}, err
	}
	return p, nil
}

func (s *Store) ListEndpoints(ctx context.Context) ([]directory.PermissionEndpoint, error) {
	const q = `
		SELECT id, permission_id, url_pattern, http_method, COALESCE(description, ''),
		       deleted, created_at, updated_at
		  FROM permission_endpoints
		 WHERE deleted = false`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []directory.PermissionEndpoint
	for rows.Next() {
		var e directory.PermissionEndpoint
		err := rows.Scan(&e.ID, &e.PermissionID, &e.URLPattern, &e.Method,
			&e.Description, &e.Deleted, &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) LastUpdatedAt(ctx context.Context) (time.Time, error) {
	// Deleted rows count: a soft-delete must advance the freshness signal so
	// gateway caches drop the mapping.
	const q = `SELECT COALESCE(MAX(updated_at), 'epoch'::timestamptz) FROM permission_endpoints`
	var ts time.Time
	if err := s.pool.QueryRow(ctx, q).Scan(&ts); err != nil {
		return time.Time{}, err
	}
	return ts, nil
}
