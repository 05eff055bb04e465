package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/alaraf/fleet-finance/internal/auth"
	"github.com/alaraf/fleet-finance/internal/config"
	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"
)

// RateLimiter throttles requests per client address before authentication and
// per caller after it
type RateLimiter struct {
	enabled     bool
	logger      *zap.Logger
	exemptIPs   map[string]struct{}
	exemptPaths []string
	byIP        func(http.Handler) http.Handler
	byCaller    func(http.Handler) http.Handler
}

// NewRateLimiter builds both limiters from the rate limit config
func NewRateLimiter(cfg *config.RateLimitConfig, logger *zap.Logger) *RateLimiter {
	rl := &RateLimiter{
		enabled:     cfg.Enabled,
		logger:      logger,
		exemptIPs:   make(map[string]struct{}, len(cfg.WhitelistIPs)),
		exemptPaths: cfg.WhitelistPaths,
	}
	for _, ip := range cfg.WhitelistIPs {
		rl.exemptIPs[ip] = struct{}{}
	}

	rl.byIP = httprate.Limit(cfg.RequestsPerMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(rl.tooManyRequests),
	)
	rl.byCaller = httprate.Limit(cfg.RequestsPerMinuteAuth, time.Minute,
		httprate.WithKeyFuncs(callerKey),
		httprate.WithLimitHandler(rl.tooManyRequests),
	)

	if cfg.Enabled {
		logger.Info("Rate limiter initialized",
			zap.Int("requests_per_minute", cfg.RequestsPerMinute),
			zap.Int("requests_per_minute_auth", cfg.RequestsPerMinuteAuth),
		)
	}
	return rl
}

// LimitByIP limits every request by client address; mount it before auth
func (rl *RateLimiter) LimitByIP(next http.Handler) http.Handler {
	return rl.wrap(rl.byIP, next)
}

// LimitByCaller limits authenticated requests per user, and API key requests per
// company and address
func (rl *RateLimiter) LimitByCaller(next http.Handler) http.Handler {
	return rl.wrap(rl.byCaller, next)
}

func (rl *RateLimiter) wrap(limit func(http.Handler) http.Handler, next http.Handler) http.Handler {
	if !rl.enabled {
		return next
	}
	limited := limit(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.exempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		limited.ServeHTTP(w, r)
	})
}

// exempt matches whitelisted addresses, exact paths and "/prefix/*" patterns
func (rl *RateLimiter) exempt(r *http.Request) bool {
	if ip, err := httprate.KeyByRealIP(r); err == nil {
		if _, ok := rl.exemptIPs[ip]; ok {
			return true
		}
	}
	for _, p := range rl.exemptPaths {
		if prefix, ok := strings.CutSuffix(p, "/*"); ok {
			if strings.HasPrefix(r.URL.Path, prefix) {
				return true
			}
		} else if r.URL.Path == p {
			return true
		}
	}
	return false
}

func callerKey(r *http.Request) (string, error) {
	ip, err := httprate.KeyByRealIP(r)
	if err != nil {
		return "", err
	}
	user, ok := auth.FromContext(r.Context())
	switch {
	case !ok || user == nil:
		return "ip:" + ip, nil
	case user.UserID == auth.SystemUserID:
		return "system:" + string(user.CompanyID) + ":" + ip, nil
	default:
		return "user:" + user.UserID.String(), nil
	}
}

func (rl *RateLimiter) tooManyRequests(w http.ResponseWriter, r *http.Request) {
	key, _ := callerKey(r)
	rl.logger.Warn("rate limit exceeded",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("caller", key),
	)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "60")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(domain.APIError{
		Type:   domain.ErrorTypeRateLimited,
		Title:  http.StatusText(http.StatusTooManyRequests),
		Status: http.StatusTooManyRequests,
		Detail: "Too many requests. Please try again later.",
	})
}
