package service

import (
	"fmt"

	"webhook-engine/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTTokenVerifier implements ports.TokenVerifier for bearer tokens issued
// by the platform's identity service. Tokens are HS256-signed with a shared
// secret; this engine only validates them and extracts the principal.
type JWTTokenVerifier struct {
	secret []byte
	issuer string
}

// NewJWTTokenVerifier creates a verifier for platform-issued tokens.
func NewJWTTokenVerifier(secret string, issuer string) *JWTTokenVerifier {
	return &JWTTokenVerifier{secret: []byte(secret), issuer: issuer}
}

// Validate parses and verifies a token, returning the authenticated
// principal (userId, optional companyId, role).
func (s *JWTTokenVerifier) Validate(tokenString string) (*domain.Principal, error) {
	token, err := jwt.Parse(tokenString,
		func(t *jwt.Token) (interface{}, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("missing subject claim")
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("parsing subject claim: %w", err)
	}

	role, _ := claims["role"].(string)
	if role == "" {
		return nil, fmt.Errorf("missing role claim")
	}

	principal := &domain.Principal{
		UserID: userID,
		Role:   role,
	}

	if raw, ok := claims["company_id"].(string); ok && raw != "" {
		companyID, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing company_id claim: %w", err)
		}
		principal.CompanyID = &companyID
	}

	return principal, nil
}
