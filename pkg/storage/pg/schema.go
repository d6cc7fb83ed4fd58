package pg

import "context"

// The auth core owns only the refresh_tokens table. The identity tables are
// created here for development convenience; in production they are owned by
// the CRUD services and already exist.
const schema = `
CREATE TABLE IF NOT EXISTS refresh_tokens (
	subject_id  text PRIMARY KEY,
	token       text NOT NULL,
	created_at  timestamptz NOT NULL DEFAULT now(),
	updated_at  timestamptz NOT NULL DEFAULT now(),
	expires_at  timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS refresh_tokens_token_idx ON refresh_tokens (token);

CREATE TABLE IF NOT EXISTS tenants (
	id    text PRIMARY KEY,
	name  text NOT NULL
);

CREATE TABLE IF NOT EXISTS organizations (
	id         text PRIMARY KEY,
	tenant_id  text NOT NULL REFERENCES tenants (id),
	name       text NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id               text PRIMARY KEY,
	tenant_id        text NOT NULL REFERENCES tenants (id),
	organization_id  text REFERENCES organizations (id),
	email            text NOT NULL UNIQUE,
	status           text NOT NULL DEFAULT 'ACTIVE',
	password_hash    text NOT NULL
);

CREATE TABLE IF NOT EXISTS roles (
	id    text PRIMARY KEY,
	name  text NOT NULL
);

CREATE TABLE IF NOT EXISTS user_roles (
	user_id  text NOT NULL REFERENCES users (id),
	role_id  text NOT NULL REFERENCES roles (id),
	PRIMARY KEY (user_id, role_id)
);

CREATE TABLE IF NOT EXISTS permissions (
	id        text PRIMARY KEY,
	resource  text NOT NULL,
	action    text NOT NULL
);

CREATE TABLE IF NOT EXISTS role_permissions (
	role_id        text NOT NULL REFERENCES roles (id),
	permission_id  text NOT NULL REFERENCES permissions (id),
	PRIMARY KEY (role_id, permission_id)
);

CREATE TABLE IF NOT EXISTS permission_endpoints (
	id             text PRIMARY KEY,
	permission_id  text NOT NULL REFERENCES permissions (id),
	url_pattern    text NOT NULL,
	http_method    text NOT NULL,
	description    text,
	deleted        boolean NOT NULL DEFAULT false,
	created_at     timestamptz NOT NULL DEFAULT now(),
	updated_at     timestamptz NOT NULL DEFAULT now()
);
CREATE UNIQUE INDEX IF NOT EXISTS permission_endpoints_pattern_method_idx
	ON permission_endpoints (url_pattern, http_method) WHERE deleted = false;
`

// EnsureSchema creates the tables if they do not exist
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}
