package repository

import (
	"context"

	"github.com/alaraf/fleet-finance/internal/auth"
	"gorm.io/gorm"
)

// MaxPageSize is the maximum allowed page size for paginated queries
const MaxPageSize = 200

// NormalizePagination clamps page and page size to sane bounds
func NormalizePagination(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// ApplyCompanyFilter applies the multi-tenant company filter to a GORM query.
// If no filter is set (caller may see every company, e.g. a background job),
// the query is returned unchanged.
func ApplyCompanyFilter(ctx context.Context, query *gorm.DB) *gorm.DB {
	return ApplyCompanyFilterWithColumn(ctx, query, "company_id")
}

// ApplyCompanyFilterWithColumn applies the company filter using a specific column name.
// Use this when the column needs table qualification in a join.
func ApplyCompanyFilterWithColumn(ctx context.Context, query *gorm.DB, columnName string) *gorm.DB {
	companyID := auth.GetEffectiveCompanyFilter(ctx)
	if companyID != nil {
		return query.Where(columnName+" = ?", *companyID)
	}
	return query
}
