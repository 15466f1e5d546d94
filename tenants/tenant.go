// Package tenants keeps the business places the signed-in user belongs to
// and which one is currently selected.
package tenants

// Role is the user's role within one business place.
type Role string

const (
	RoleOwner   Role = "OWNER"
	RoleManager Role = "MANAGER"
	RoleStaff   Role = "STAFF"
)

// Tenant is a business place together with the user's membership in it.
type Tenant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Address     string `json:"address,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Role        Role   `json:"role"`
	MemberCount int    `json:"memberCount"`
}

// CanManage reports whether the role allows managing the business place.
func (t *Tenant) CanManage() bool {
	return t != nil && (t.Role == RoleOwner || t.Role == RoleManager)
}
