package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/bankimport/fints-firefly-go/internal/domain"
)

var authTracer = otel.Tracer("service/auth")

// AuthService protects the importer with a single application password.
// The importer handles bank credentials and TANs, so the HTTP surface is
// never left open even on a private network. Leave the password hash
// unset to disable authentication entirely (e.g. behind a reverse proxy
// that does its own).
type AuthService struct {
	logger *zap.Logger

	passwordHash []byte
	jwtSecret    []byte
	accessTTL    time.Duration
}

// NewAuthService creates the auth service. passwordHash is a bcrypt
// hash; empty disables authentication.
func NewAuthService(logger *zap.Logger, passwordHash, jwtSecret string, accessTTL time.Duration) *AuthService {
	return &AuthService{
		logger:       logger,
		passwordHash: []byte(passwordHash),
		jwtSecret:    []byte(jwtSecret),
		accessTTL:    accessTTL,
	}
}

// Enabled reports whether requests must carry an access token.
func (s *AuthService) Enabled() bool {
	return len(s.passwordHash) > 0
}

// Login verifies the application password and issues an access token.
func (s *AuthService) Login(ctx context.Context, password string) (*domain.LoginResponse, error) {
	_, span := authTracer.Start(ctx, "AuthService.Login")
	defer span.End()

	if !s.Enabled() {
		return nil, &domain.ErrValidation{Field: "password", Message: "authentication is disabled"}
	}

	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		s.logger.Warn("login: failed password attempt")
		return nil, &domain.ErrUnauthorized{Message: "invalid credentials"}
	}

	token, err := s.signAccessToken()
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	s.logger.Info("importer login successful")
	return &domain.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int(s.accessTTL.Seconds()),
	}, nil
}

// JWTClaims represents the custom claims in access tokens.
type JWTClaims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// ValidateAccessToken parses and verifies an access token. Used by the
// auth middleware.
func (s *AuthService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}

	if claims.Type != "access" {
		return nil, &domain.ErrUnauthorized{Message: "invalid token type"}
	}

	return claims, nil
}

func (s *AuthService) signAccessToken() (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Type: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			Issuer:    "fints-importer",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
