package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/gridcast/gridcast/internal/config"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const userIDContextKey contextKey = "userID"

const issuer = "gridcast"

// ErrLoginDisabled is returned when no admin password is configured.
var ErrLoginDisabled = errors.New("admin login is disabled")

// Config holds authentication configuration. The admin password is kept only
// as a bcrypt hash.
type Config struct {
	JWTSecret     string
	PasswordHash  string
	TokenDuration time.Duration
}

// NewConfig hashes the configured admin password. An empty password leaves
// login disabled.
func NewConfig(cfg config.AuthConfig) (Config, error) {
	out := Config{
		JWTSecret:     cfg.JWTSecret,
		TokenDuration: cfg.TokenDuration,
	}

	if cfg.AdminPassword != "" {
		hash, err := HashPassword(cfg.AdminPassword)
		if err != nil {
			return Config{}, fmt.Errorf("failed to hash admin password: %w", err)
		}
		out.PasswordHash = hash
	}

	return out, nil
}

// Login checks password and returns a signed token with its expiry.
func (c Config) Login(password string) (string, time.Time, error) {
	if c.PasswordHash == "" {
		return "", time.Time{}, ErrLoginDisabled
	}
	if !CheckPassword(password, c.PasswordHash) {
		return "", time.Time{}, fmt.Errorf("invalid credentials")
	}

	expiresAt := time.Now().Add(c.TokenDuration)
	token, err := GenerateToken("admin", c.JWTSecret, c.TokenDuration)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Claims represents the JWT claims
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// GenerateToken creates a new JWT token
func GenerateToken(userID string, secret string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken validates a JWT token and returns the user ID
func ValidateToken(tokenString string, secret string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))

	if err != nil {
		return "", err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims.UserID, nil
	}

	return "", fmt.Errorf("invalid token")
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword compares a password with a hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware(config Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "Authorization header required")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				unauthorized(w, "Invalid authorization header format")
				return
			}

			userID, err := ValidateToken(parts[1], config.JWTSecret)
			if err != nil {
				unauthorized(w, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), userIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	return userID, ok
}
