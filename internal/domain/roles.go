package domain

// UserRoleType is a role carried in a bearer token
type UserRoleType string

const (
	RoleSuperAdmin   UserRoleType = "super_admin"
	RoleCompanyAdmin UserRoleType = "company_admin"
	RoleAccountant   UserRoleType = "accountant"
	RoleViewer       UserRoleType = "viewer"
	// RoleAPIService is assigned to requests authenticated with the API key
	RoleAPIService UserRoleType = "api_service"
)

// IsValid reports whether the role is known
func (r UserRoleType) IsValid() bool {
	switch r {
	case RoleSuperAdmin, RoleCompanyAdmin, RoleAccountant, RoleViewer, RoleAPIService:
		return true
	}
	return false
}
