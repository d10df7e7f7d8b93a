package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Rzouga01/LearnHub-sub001/internal/models"
	appErrors "github.com/Rzouga01/LearnHub-sub001/pkg/errors"
)

// TokenConfig describes how access tokens from the identity directory are verified.
type TokenConfig struct {
	Secret   string
	Issuer   string
	Audience []string
	Leeway   time.Duration
}

// TokenService verifies bearer tokens and resolves the caller's roles. It
// never authenticates credentials; tokens are minted by the identity directory.
type TokenService struct {
	cfg    TokenConfig
	parser *jwt.Parser
}

// NewTokenService constructs a verifier for HS256 tokens.
func NewTokenService(cfg TokenConfig) *TokenService {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if len(cfg.Audience) > 0 {
		opts = append(opts, jwt.WithAudience(cfg.Audience[0]))
	}
	return &TokenService{cfg: cfg, parser: jwt.NewParser(opts...)}
}

// ValidateToken parses and validates an access token returning the claims.
// Unknown role names are dropped so they can never match a capability. The
// subject must be a UUID.
func (s *TokenService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := s.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.Secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	if !token.Valid || claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	// Reviewer references are UUID columns; other directory ids cannot be recorded.
	subject, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token subject")
	}
	claims.UserID = subject.String()

	roles := make([]models.UserRole, 0, len(claims.Roles))
	for _, raw := range claims.Roles {
		if role, ok := models.ParseUserRole(string(raw)); ok {
			roles = append(roles, role)
		}
	}
	claims.Roles = roles
	return claims, nil
}

// IssueToken signs claims with the shared secret. It backs local tooling and
// tests; production tokens come from the identity directory.
func (s *TokenService) IssueToken(userID string, roles []models.UserRole, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := &models.JWTClaims{
		UserID: userID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if len(s.cfg.Audience) > 0 {
		claims.Audience = jwt.ClaimStrings(s.cfg.Audience)
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
