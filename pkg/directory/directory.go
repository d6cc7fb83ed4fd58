// Package directory defines the read-only lookup ports the auth core consumes
// for identity data. Users, organizations, tenants, roles, permissions, and
// permission-endpoint mappings are owned and mutated elsewhere; the core only
// reads them through these interfaces.
package directory

import (
	"context"
	"time"
)

// SubjectStatus is the lifecycle status of a user account
type SubjectStatus string

const (
	StatusActive    SubjectStatus = "ACTIVE"
	StatusSuspended SubjectStatus = "SUSPENDED"
	StatusLocked    SubjectStatus = "LOCKED"
	StatusDeleted   SubjectStatus = "DELETED"
)

// User is the identity record behind a subject id
type User struct {
	ID             string
	TenantID       string
	OrganizationID string // empty when the user belongs to no organization
	Email          string
	Status         SubjectStatus
	PasswordHash   string
}

// Active reports whether the user may authenticate
func (u User) Active() bool {
	return u.Status == StatusActive
}

// Organization is a read-only organization record
type Organization struct {
	ID       string
	TenantID string
	Name     string
}

// Tenant is a read-only tenant record
type Tenant struct {
	ID   string
	Name string
}

// Role is a read-only role record
type Role struct {
	ID   string
	Name string
}

// Permission is a read-only (resource, action) capability
type Permission struct {
	ID       string
	Resource string
	Action   string
}

// Key returns the canonical "resource:action" permission key
func (p Permission) Key() string {
	return p.Resource + ":" + p.Action
}

// PermissionEndpoint maps a (urlPattern, httpMethod) pair to a permission.
// The pair is unique among non-deleted records; rows are soft-deleted.
type PermissionEndpoint struct {
	ID           string
	PermissionID string
	URLPattern   string
	Method       string
	Description  string
	Deleted      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserDirectory resolves user records
type UserDirectory interface {
	FindUserByID(ctx context.Context, id string) (User, error)
	FindUserByEmail(ctx context.Context, email string) (User, error)
}

// OrganizationDirectory resolves organization records
type OrganizationDirectory interface {
	FindOrganizationByID(ctx context.Context, id string) (Organization, error)
}

// TenantDirectory resolves tenant records
type TenantDirectory interface {
	FindTenantByID(ctx context.Context, id string) (Tenant, error)
}

// RoleDirectory resolves the roles granted to a user
type RoleDirectory interface {
	RolesForUser(ctx context.Context, userID string) ([]Role, error)
}

// PermissionDirectory resolves permissions
type PermissionDirectory interface {
	PermissionsForRoles(ctx context.Context, roleIDs []string) ([]Permission, error)
	FindPermissionByID(ctx context.Context, id string) (Permission, error)
}

// EndpointDirectory resolves permission-endpoint mappings. LastUpdatedAt moves
// forward whenever any mapping changes, so callers can cache the whole table
// and re-pull only when the timestamp advances.
type EndpointDirectory interface {
	ListEndpoints(ctx context.Context) ([]PermissionEndpoint, error)
	LastUpdatedAt(ctx context.Context) (time.Time, error)
}

// CredentialVerifier checks a presented secret against a stored hash. Hashing
// mechanics are opaque to the core.
type CredentialVerifier interface {
	Verify(hash, secret string) bool
}
