package claims

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openidx/authcore/pkg/directory"
	apperrors "github.com/openidx/authcore/pkg/errors"
)

func newTestDirectory(t *testing.T) *directory.Memory {
	t.Helper()

	mem := directory.NewMemory()
	mem.AddTenant(directory.Tenant{ID: "tenant-1", Name: "Acme"})
	mem.AddOrganization(directory.Organization{ID: "org-1", TenantID: "tenant-1", Name: "Engineering"})
	mem.AddUser(directory.User{
		ID:             "user-1",
		TenantID:       "tenant-1",
		OrganizationID: "org-1",
		Email:          "jordan@acme.test",
		Status:         directory.StatusActive,
	})
	mem.GrantRole("user-1",
		directory.Role{ID: "role-admin", Name: "ADMIN"},
		directory.Permission{ID: "p1", Resource: "user", Action: "read"},
		directory.Permission{ID: "p2", Resource: "user", Action: "write"},
	)
	mem.GrantRole("user-1",
		directory.Role{ID: "role-auditor", Name: "AUDITOR"},
		directory.Permission{ID: "p1", Resource: "user", Action: "read"},
		directory.Permission{ID: "p3", Resource: "audit", Action: "read"},
	)
	return mem
}

// downRoleDirectory fails every lookup the way a broken backend would
type downRoleDirectory struct{}

func (downRoleDirectory) RolesForUser(ctx context.Context, userID string) ([]directory.Role, error) {
	return nil, errors.New("dial tcp 10.0.0.5:5432: i/o timeout")
}

func TestCompose(t *testing.T) {
	mem := newTestDirectory(t)
	composer := NewComposer(mem, mem, mem, mem, mem)

	t.Run("full identity context", func(t *testing.T) {
		tc, err := composer.Compose(context.Background(), "user-1")
		require.NoError(t, err)

		assert.Equal(t, "user-1", tc.SubjectID)
		assert.Equal(t, "tenant-1", tc.TenantID)
		assert.Equal(t, "Acme", tc.TenantName)
		assert.Equal(t, "org-1", tc.OrganizationID)
		assert.Equal(t, "Engineering", tc.OrganizationName)
		assert.Equal(t, "jordan@acme.test", tc.Email)
		assert.Equal(t, []string{"ADMIN", "AUDITOR"}, tc.Roles)
		// permission keys are a deduplicated union across roles
		assert.Equal(t, []string{"audit:read", "user:read", "user:write"}, tc.Permissions)
	})

	t.Run("organization is optional", func(t *testing.T) {
		mem.AddUser(directory.User{
			ID:       "user-2",
			TenantID: "tenant-1",
			Email:    "solo@acme.test",
			Status:   directory.StatusActive,
		})

		tc, err := composer.Compose(context.Background(), "user-2")
		require.NoError(t, err)
		assert.Empty(t, tc.OrganizationID)
		assert.Empty(t, tc.OrganizationName)
	})

	t.Run("no roles means empty permissions, not an error", func(t *testing.T) {
		tc, err := composer.Compose(context.Background(), "user-2")
		require.NoError(t, err)
		assert.Empty(t, tc.Roles)
		assert.Empty(t, tc.Permissions)
	})

	t.Run("unknown subject is NotFound", func(t *testing.T) {
		_, err := composer.Compose(context.Background(), "nobody")
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
	})

	t.Run("directory outage is retryable, not internal", func(t *testing.T) {
		down := NewComposer(mem, mem, mem, downRoleDirectory{}, mem)

		_, err := down.Compose(context.Background(), "user-1")
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnavailable))
	})

	t.Run("dangling tenant is NotFound", func(t *testing.T) {
		mem.AddUser(directory.User{
			ID:       "user-3",
			TenantID: "tenant-gone",
			Email:    "lost@acme.test",
			Status:   directory.StatusActive,
		})

		_, err := composer.Compose(context.Background(), "user-3")
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
	})
}
