package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/alaraf/fleet-finance/internal/config"
	"github.com/alaraf/fleet-finance/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrNoSecret     = errors.New("jwt secret not configured")
)

// Claims is the payload of tokens accepted by the API
type Claims struct {
	Name      string   `json:"name,omitempty"`
	Email     string   `json:"email,omitempty"`
	CompanyID string   `json:"company_id"`
	Roles     []string `json:"roles"`
	jwt.RegisteredClaims
}

// JWTValidator validates and issues HS256 tokens
type JWTValidator struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewJWTValidator creates a new JWT validator
func NewJWTValidator(cfg *config.JWTConfig) *JWTValidator {
	return &JWTValidator{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttl:      cfg.TokenTTLDuration(),
		now:      time.Now,
	}
}

// ValidateToken validates a JWT token and returns user context
func (v *JWTValidator) ValidateToken(tokenString string) (*UserContext, error) {
	if len(v.secret) == 0 {
		return nil, ErrNoSecret
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !domain.IsValidCompanyID(claims.CompanyID) {
		return nil, fmt.Errorf("%w: missing company_id claim", ErrInvalidToken)
	}

	userCtx := &UserContext{
		DisplayName: claims.Name,
		Email:       claims.Email,
		Roles:       ExtractRoles(claims.Roles),
		CompanyID:   domain.CompanyID(claims.CompanyID),
	}
	if uid, err := uuid.Parse(claims.Subject); err == nil {
		userCtx.UserID = uid
	}

	return userCtx, nil
}

// IssueToken signs a token for the given caller. Used by the operator CLI to
// hand out short-lived service tokens.
func (v *JWTValidator) IssueToken(user *UserContext) (string, error) {
	if len(v.secret) == 0 {
		return "", ErrNoSecret
	}

	now := v.now()
	claims := Claims{
		Name:      user.DisplayName,
		Email:     user.Email,
		CompanyID: string(user.CompanyID),
		Roles:     user.RolesAsStrings(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UserID.String(),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
			ID:        uuid.NewString(),
		},
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// ExtractRoles keeps the known roles from a claim list
func ExtractRoles(raw []string) []domain.UserRoleType {
	roles := make([]domain.UserRoleType, 0, len(raw))
	for _, r := range raw {
		role := domain.UserRoleType(r)
		if role.IsValid() {
			roles = append(roles, role)
		}
	}
	return roles
}
