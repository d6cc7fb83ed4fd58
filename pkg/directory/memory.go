package directory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/openidx/authcore/pkg/errors"
)

// Memory is an in-process directory backed by maps. It implements every lookup
// port and is used for tests and single-node development.
type Memory struct {
	mu          sync.RWMutex
	users       map[string]User
	usersByMail map[string]string
	orgs        map[string]Organization
	tenants     map[string]Tenant
	userRoles   map[string][]Role
	rolePerms   map[string][]Permission
	perms       map[string]Permission
	endpoints   map[string]PermissionEndpoint
	updatedAt   time.Time
}

// NewMemory creates an empty in-memory directory
func NewMemory() *Memory {
	return &Memory{
		users:       make(map[string]User),
		usersByMail: make(map[string]string),
		orgs:        make(map[string]Organization),
		tenants:     make(map[string]Tenant),
		userRoles:   make(map[string][]Role),
		rolePerms:   make(map[string][]Permission),
		perms:       make(map[string]Permission),
		endpoints:   make(map[string]PermissionEndpoint),
	}
}

// AddUser registers a user record
func (m *Memory) AddUser(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	m.usersByMail[u.Email] = u.ID
}

// AddOrganization registers an organization record
func (m *Memory) AddOrganization(o Organization) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orgs[o.ID] = o
}

// AddTenant registers a tenant record
func (m *Memory) AddTenant(t Tenant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[t.ID] = t
}

// GrantRole grants a role to a user and records the role's permissions
func (m *Memory) GrantRole(userID string, role Role, perms ...Permission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userRoles[userID] = append(m.userRoles[userID], role)
	m.rolePerms[role.ID] = append(m.rolePerms[role.ID], perms...)
	for _, p := range perms {
		m.perms[p.ID] = p
	}
}

// AddPermission registers a standalone permission record
func (m *Memory) AddPermission(p Permission) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.perms[p.ID] = p
}

// AddEndpoint registers a permission-endpoint mapping and advances the
// freshness timestamp
func (m *Memory) AddEndpoint(e PermissionEndpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	m.endpoints[e.ID] = e
	m.updatedAt = now
}

// RemoveEndpoint soft-deletes a mapping
func (m *Memory) RemoveEndpoint(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.endpoints[id]
	if !ok {
		return
	}
	e.Deleted = true
	e.UpdatedAt = time.Now().UTC()
	m.endpoints[id] = e
	m.updatedAt = e.UpdatedAt
}

func (m *Memory) FindUserByID(ctx context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, apperrors.NewNotFound("user")
	}
	return u, nil
}

func (m *Memory) FindUserByEmail(ctx context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.usersByMail[email]
	if !ok {
		return User{}, apperrors.NewNotFound("user")
	}
	return m.users[id], nil
}

func (m *Memory) FindOrganizationByID(ctx context.Context, id string) (Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orgs[id]
	if !ok {
		return Organization{}, apperrors.NewNotFound("organization")
	}
	return o, nil
}

func (m *Memory) FindTenantByID(ctx context.Context, id string) (Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tenants[id]
	if !ok {
		return Tenant{}, apperrors.NewNotFound("tenant")
	}
	return t, nil
}

func (m *Memory) RolesForUser(ctx context.Context, userID string) ([]Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	roles := make([]Role, len(m.userRoles[userID]))
	copy(roles, m.userRoles[userID])
	return roles, nil
}

func (m *Memory) PermissionsForRoles(ctx context.Context, roleIDs []string) ([]Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Permission
	for _, id := range roleIDs {
		out = append(out, m.rolePerms[id]...)
	}
	return out, nil
}

func (m *Memory) FindPermissionByID(ctx context.Context, id string) (Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.perms[id]
	if !ok {
		return Permission{}, apperrors.NewNotFound("permission")
	}
	return p, nil
}

func (m *Memory) ListEndpoints(ctx context.Context) ([]PermissionEndpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]PermissionEndpoint, 0, len(m.endpoints))
	for _, e := range m.endpoints {
		if e.Deleted {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *Memory) LastUpdatedAt(ctx context.Context) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updatedAt, nil
}

// BcryptVerifier verifies secrets against bcrypt hashes
type BcryptVerifier struct{}

// Verify reports whether secret matches the bcrypt hash
func (BcryptVerifier) Verify(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// HashSecret produces a bcrypt hash for seeding and tests
func HashSecret(secret string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
