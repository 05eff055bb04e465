package auth

import (
	"context"

	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/google/uuid"
)

// UserContext holds authenticated caller information
type UserContext struct {
	UserID      uuid.UUID
	DisplayName string
	Email       string
	Roles       []domain.UserRoleType
	CompanyID   domain.CompanyID
}

type contextKey string

const userContextKey contextKey = "userContext"
const companyFilterKey contextKey = "companyFilter"

// WithUserContext adds user context to the context
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok
}

// HasRole checks if user has a specific role
func (u *UserContext) HasRole(role domain.UserRoleType) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole checks if user has any of the specified roles
func (u *UserContext) HasAnyRole(roles ...domain.UserRoleType) bool {
	for _, role := range roles {
		if u.HasRole(role) {
			return true
		}
	}
	return false
}

// IsSuperAdmin checks if user may act on every company
func (u *UserContext) IsSuperAdmin() bool {
	return u.HasRole(domain.RoleSuperAdmin)
}

// IsCompanyAdmin checks if user is an admin for their company
func (u *UserContext) IsCompanyAdmin() bool {
	return u.HasAnyRole(domain.RoleSuperAdmin, domain.RoleCompanyAdmin)
}

// CanWrite reports whether the caller may record payments and trigger batches
func (u *UserContext) CanWrite() bool {
	return u.HasAnyRole(domain.RoleSuperAdmin, domain.RoleCompanyAdmin, domain.RoleAccountant, domain.RoleAPIService)
}

// CanAccessCompany checks if user can access data for a specific company
func (u *UserContext) CanAccessCompany(companyID domain.CompanyID) bool {
	if u.IsSuperAdmin() {
		return true
	}
	return u.CompanyID == companyID
}

// GetCompanyFilter returns the company ID to filter queries by.
// Returns nil for super admins without a selected company.
func (u *UserContext) GetCompanyFilter() *domain.CompanyID {
	if u.IsSuperAdmin() && u.CompanyID == "" {
		return nil
	}
	id := u.CompanyID
	return &id
}

// RolesAsStrings returns roles as a slice of strings
func (u *UserContext) RolesAsStrings() []string {
	result := make([]string, len(u.Roles))
	for i, role := range u.Roles {
		result[i] = string(role)
	}
	return result
}

// CompanyFilter represents the effective company filter for queries.
// It is set by middleware from the user context and the X-Company-ID header.
type CompanyFilter struct {
	// CompanyID is the company to filter by (nil means all companies)
	CompanyID *domain.CompanyID
}

// WithCompanyFilter adds company filter to the context
func WithCompanyFilter(ctx context.Context, filter *CompanyFilter) context.Context {
	return context.WithValue(ctx, companyFilterKey, filter)
}

// CompanyFilterFromContext extracts company filter from the context
func CompanyFilterFromContext(ctx context.Context) (*CompanyFilter, bool) {
	filter, ok := ctx.Value(companyFilterKey).(*CompanyFilter)
	return filter, ok
}

// GetEffectiveCompanyFilter returns the company ID repositories must scope by,
// or nil when the caller may see every company. Background jobs run without a
// user context and therefore see every company.
func GetEffectiveCompanyFilter(ctx context.Context) *domain.CompanyID {
	if filter, ok := CompanyFilterFromContext(ctx); ok && filter != nil {
		return filter.CompanyID
	}

	if userCtx, ok := FromContext(ctx); ok {
		return userCtx.GetCompanyFilter()
	}

	return nil
}
