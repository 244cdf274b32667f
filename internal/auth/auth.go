package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/emilythestrangee/stackit/backend/internal/errs"
	"github.com/emilythestrangee/stackit/backend/internal/models"
	"github.com/emilythestrangee/stackit/backend/internal/store"
)

// Gate resolves a bearer credential to the ID of an existing user.
type Gate interface {
	ResolveUser(ctx context.Context, token string) (string, error)
}

// Claims are the JWT claims issued at login and registration.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// JWTGate issues HS256 tokens and resolves them against the user store.
type JWTGate struct {
	secret []byte
	ttl    time.Duration
	users  store.UserStore
	now    func() time.Time
}

func NewJWTGate(secret string, ttl time.Duration, users store.UserStore) *JWTGate {
	return &JWTGate{secret: []byte(secret), ttl: ttl, users: users, now: time.Now}
}

// IssueToken signs a token for u that expires after the configured TTL.
func (g *JWTGate) IssueToken(u *models.User) (string, error) {
	now := g.now()
	claims := Claims{
		UserID: u.ID,
		Email:  u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ResolveUser verifies the token signature and expiry and checks that the
// user it names still exists.
func (g *JWTGate) ResolveUser(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", errs.Unauthorized("access token required")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", errs.Wrap(errs.KindUnauthorized, err, "token expired")
		}
		return "", errs.Wrap(errs.KindUnauthorized, err, "invalid token")
	}
	if claims.UserID == "" {
		return "", errs.Unauthorized("invalid token")
	}

	if _, err := g.users.GetUser(ctx, claims.UserID); err != nil {
		if errs.KindOf(err) == errs.KindNotFound {
			return "", errs.Unauthorized("user no longer exists")
		}
		return "", err
	}
	return claims.UserID, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
