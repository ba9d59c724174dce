package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/kevin07696/course-payments/internal/domain"
)

// MinSecretLength is the shortest HMAC secret accepted for HS384
const MinSecretLength = 48

const rolePrefix = "ROLE_"

// JWTClaims are the claims issued by the learning platform's auth service.
// The subject is the account email.
type JWTClaims struct {
	jwt.RegisteredClaims
	UserID string   `json:"id"`
	Name   string   `json:"name,omitempty"`
	Roles  []string `json:"role"`
}

// JWTManager validates and issues HMAC signed tokens
type JWTManager struct {
	method jwt.SigningMethod
	secret []byte
	issuer string
	expiry time.Duration
}

// NewJWTManager creates a manager sharing secret with the platform's auth
// service. Tokens are signed HS384.
func NewJWTManager(secret string, issuer string, expiry time.Duration) (*JWTManager, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d characters, got %d", MinSecretLength, len(secret))
	}
	return &JWTManager{
		method: jwt.SigningMethodHS384,
		secret: []byte(secret),
		issuer: issuer,
		expiry: expiry,
	}, nil
}

// GenerateToken issues a token for identity
func (jm *JWTManager) GenerateToken(identity domain.Identity) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    jm.issuer,
			Subject:   identity.Email,
			ExpiresAt: jwt.NewNumericDate(now.Add(jm.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		UserID: identity.ID,
		Name:   identity.Name,
		Roles:  []string{rolePrefix + string(identity.Role)},
	}

	return jwt.NewWithClaims(jm.method, claims).SignedString(jm.secret)
}

// ValidateToken parses tokenString and checks signature and expiry
func (jm *JWTManager) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jm.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Resolve implements ports.IdentityResolver
func (jm *JWTManager) Resolve(_ context.Context, bearerToken string) (*domain.Identity, error) {
	tokenString := strings.TrimSpace(strings.TrimPrefix(bearerToken, "Bearer "))
	if tokenString == "" {
		return nil, domain.ErrUnauthenticated
	}

	claims, err := jm.ValidateToken(tokenString)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorCodeUnauthenticated, "invalid bearer token", err)
	}
	if claims.UserID == "" {
		return nil, domain.NewDomainError(domain.ErrorCodeUnauthenticated, "token carries no user id")
	}

	role, ok := roleFromClaims(claims.Roles)
	if !ok {
		return nil, domain.NewDomainError(domain.ErrorCodeUnauthenticated, "token carries no recognised role")
	}

	return &domain.Identity{
		ID:    claims.UserID,
		Email: claims.Subject,
		Name:  claims.Name,
		Role:  role,
	}, nil
}

// roleFromClaims picks the most privileged recognised role
func roleFromClaims(roles []string) (domain.Role, bool) {
	rank := map[domain.Role]int{
		domain.RoleStudent:    1,
		domain.RoleInstructor: 2,
		domain.RoleAdmin:      3,
	}

	var best domain.Role
	for _, r := range roles {
		role := domain.Role(strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(r), rolePrefix)))
		if rank[role] > rank[best] {
			best = role
		}
	}
	return best, best != ""
}
