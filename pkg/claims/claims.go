// Package claims assembles the set of facts embedded in an issued token:
// identity, tenant, organization, roles, and the union of permission keys.
package claims

// TokenClaims is the immutable fact set minted into an access token. It is
// built fresh on every issuance and rotation and never persisted as-is.
type TokenClaims struct {
	SubjectID        string   `json:"subject_id"`
	TenantID         string   `json:"tenant_id"`
	TenantName       string   `json:"tenant_name"`
	OrganizationID   string   `json:"organization_id,omitempty"`
	OrganizationName string   `json:"organization_name,omitempty"`
	Email            string   `json:"email"`
	Roles            []string `json:"roles"`
	Permissions      []string `json:"permissions"`
}
