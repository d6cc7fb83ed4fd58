package claims

import (
	"context"
	"errors"
	"sort"

	"github.com/openidx/authcore/pkg/directory"
	apperrors "github.com/openidx/authcore/pkg/errors"
)

// Composer builds TokenClaims from the read-only directory lookups. It is a
// pure function of current state: no side effects, no caching of its own, so
// a refreshed token always reflects current grants.
type Composer struct {
	users   directory.UserDirectory
	orgs    directory.OrganizationDirectory
	tenants directory.TenantDirectory
	roles   directory.RoleDirectory
	perms   directory.PermissionDirectory
}

// NewComposer creates a Composer over the given directories
func NewComposer(
	users directory.UserDirectory,
	orgs directory.OrganizationDirectory,
	tenants directory.TenantDirectory,
	roles directory.RoleDirectory,
	perms directory.PermissionDirectory,
) *Composer {
	return &Composer{
		users:   users,
		orgs:    orgs,
		tenants: tenants,
		roles:   roles,
		perms:   perms,
	}
}

// Compose resolves the full claim set for a subject. It fails with a NotFound
// error when the subject, its organization, or its tenant cannot be resolved,
// and with UNAVAILABLE when a directory backend fails outright. An empty role
// set yields an empty permission set, not an error.
func (c *Composer) Compose(ctx context.Context, subjectID string) (TokenClaims, error) {
	user, err := c.users.FindUserByID(ctx, subjectID)
	if err != nil {
		return TokenClaims{}, lookupErr(err, "user directory")
	}

	tenant, err := c.tenants.FindTenantByID(ctx, user.TenantID)
	if err != nil {
		return TokenClaims{}, lookupErr(err, "tenant directory")
	}

	out := TokenClaims{
		SubjectID:  user.ID,
		TenantID:   tenant.ID,
		TenantName: tenant.Name,
		Email:      user.Email,
	}

	// Organization membership is optional.
	if user.OrganizationID != "" {
		org, err := c.orgs.FindOrganizationByID(ctx, user.OrganizationID)
		if err != nil {
			return TokenClaims{}, lookupErr(err, "organization directory")
		}
		out.OrganizationID = org.ID
		out.OrganizationName = org.Name
	}

	roles, err := c.roles.RolesForUser(ctx, user.ID)
	if err != nil {
		return TokenClaims{}, lookupErr(err, "role directory")
	}

	roleIDs := make([]string, 0, len(roles))
	roleNames := make([]string, 0, len(roles))
	seenRole := make(map[string]bool, len(roles))
	for _, r := range roles {
		if seenRole[r.Name] {
			continue
		}
		seenRole[r.Name] = true
		roleIDs = append(roleIDs, r.ID)
		roleNames = append(roleNames, r.Name)
	}
	sort.Strings(roleNames)
	out.Roles = roleNames

	perms, err := c.perms.PermissionsForRoles(ctx, roleIDs)
	if err != nil {
		return TokenClaims{}, lookupErr(err, "permission directory")
	}

	// Union of permission keys across all roles.
	keys := make([]string, 0, len(perms))
	seenPerm := make(map[string]bool, len(perms))
	for _, p := range perms {
		key := p.Key()
		if seenPerm[key] {
			continue
		}
		seenPerm[key] = true
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out.Permissions = keys

	return out, nil
}

// lookupErr leaves taxonomy-tagged errors (NotFound in particular) intact and
// tags everything else as a retryable infrastructure failure, so a directory
// outage surfaces as UNAVAILABLE rather than an internal error.
func lookupErr(err error, what string) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.NewUnavailable(err, what)
}
