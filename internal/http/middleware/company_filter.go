package middleware

import (
	"net/http"

	"github.com/alaraf/fleet-finance/internal/auth"
	"github.com/alaraf/fleet-finance/internal/domain"
	"go.uber.org/zap"
)

// CompanyFilterMiddleware scopes every request to one tenant
type CompanyFilterMiddleware struct {
	logger *zap.Logger
}

// NewCompanyFilterMiddleware creates a new company filter middleware
func NewCompanyFilterMiddleware(logger *zap.Logger) *CompanyFilterMiddleware {
	return &CompanyFilterMiddleware{
		logger: logger,
	}
}

// Filter sets the effective company filter in context:
//   - super admins may pick a company with ?company_id=, or see every company without it
//   - everyone else is pinned to the company in their token
func (m *CompanyFilterMiddleware) Filter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userCtx, ok := auth.FromContext(r.Context())
		if !ok {
			// Authenticate runs first and rejects anonymous requests
			next.ServeHTTP(w, r)
			return
		}

		filter := &auth.CompanyFilter{CompanyID: userCtx.GetCompanyFilter()}

		if requested := r.URL.Query().Get("company_id"); requested != "" {
			if !domain.IsValidCompanyID(requested) {
				http.Error(w, "Invalid company_id parameter", http.StatusBadRequest)
				return
			}
			companyID := domain.CompanyID(requested)
			if !userCtx.CanAccessCompany(companyID) {
				m.logger.Warn("user attempted to access unauthorized company",
					zap.String("user_id", userCtx.UserID.String()),
					zap.String("user_company", string(userCtx.CompanyID)),
					zap.String("requested_company", requested),
				)
				http.Error(w, "Access denied: you cannot access data for this company", http.StatusForbidden)
				return
			}
			filter.CompanyID = &companyID
		}

		ctx := auth.WithCompanyFilter(r.Context(), filter)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
