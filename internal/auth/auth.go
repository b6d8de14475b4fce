package auth

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const principalContextKey contextKey = "principal"

const issuer = "guardian"

// Config holds authentication configuration
type Config struct {
	JWTSecret string
	// AdminPassword is compared directly unless AdminPasswordHash is set.
	AdminPassword     string
	AdminPasswordHash string
	// AdminAddress is the principal an admin password login acts as.
	AdminAddress  common.Address
	TokenDuration time.Duration
	ChallengeTTL  time.Duration
}

// LoadConfigFromEnv loads auth config from environment variables
func LoadConfigFromEnv() Config {
	secret := os.Getenv("ADMIN_JWT_SECRET")
	if secret == "" {
		secret = "change-this-secret" // Default (should be changed)
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin" // Default (should be changed)
	}

	var adminAddress common.Address
	if v := os.Getenv("ADMIN_ADDRESS"); common.IsHexAddress(v) {
		adminAddress = common.HexToAddress(v)
	}

	return Config{
		JWTSecret:         secret,
		AdminPassword:     password,
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		AdminAddress:      adminAddress,
		TokenDuration:     24 * time.Hour, // Tokens valid for 24 hours
		ChallengeTTL:      5 * time.Minute,
	}
}

// CheckAdminPassword verifies an admin login attempt.
func (c Config) CheckAdminPassword(password string) bool {
	if c.AdminPasswordHash != "" {
		return CheckPassword(password, c.AdminPasswordHash)
	}
	return password != "" && password == c.AdminPassword
}

// Claims represents the JWT claims
type Claims struct {
	Principal string `json:"principal"`
	Method    string `json:"method"` // password, wallet or issued
	jwt.RegisteredClaims
}

// GenerateToken creates a new JWT token acting as principal
func GenerateToken(principal common.Address, method string, secret string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Principal: principal.Hex(),
		Method:    method,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.Hex(),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken validates a JWT token and returns its principal
func ValidateToken(tokenString string, secret string) (common.Address, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(issuer))

	if err != nil {
		return common.Address{}, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return common.Address{}, fmt.Errorf("invalid token")
	}
	if !common.IsHexAddress(claims.Principal) {
		return common.Address{}, fmt.Errorf("invalid token principal")
	}
	return common.HexToAddress(claims.Principal), nil
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

// AuthMiddleware is a middleware that validates JWT tokens
func AuthMiddleware(config Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Set CORS headers first, before any auth checks
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			// Extract token from Authorization header
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			// Check for Bearer token format
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			principal, err := ValidateToken(parts[1], config.JWTSecret)
			if err != nil {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// WithPrincipal returns a context carrying principal.
func WithPrincipal(ctx context.Context, principal common.Address) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated principal from the request context
func PrincipalFromContext(ctx context.Context) (common.Address, bool) {
	principal, ok := ctx.Value(principalContextKey).(common.Address)
	return principal, ok
}
