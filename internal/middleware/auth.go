package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
)

type contextKey string

const claimsKey contextKey = "claims"

// Claims is the token payload. UserID is the owning account's identifier.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// BlacklistKey is the redis key marking a token ID as revoked.
func BlacklistKey(tokenID string) string {
	return fmt.Sprintf("blacklist:%s", tokenID)
}

// WithClaims stores verified claims on ctx.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns the claims the auth middleware verified.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok && claims != nil
}

// AccountIDFromContext returns the authenticated account's identifier.
func AccountIDFromContext(ctx context.Context) (int64, bool) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims.UserID <= 0 {
		return 0, false
	}
	return claims.UserID, true
}

// InitAuthMiddleware verifies bearer tokens and rejects revoked ones.
// A nil redis client disables the revocation check.
func InitAuthMiddleware(redisClient *redis.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "Authorization header required")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				unauthorized(w, "Invalid authorization header format")
				return
			}

			claims, err := ValidateToken(parts[1])
			if err != nil {
				log.Printf("[AUTH] Token rejected from %s: %v", r.RemoteAddr, err)
				unauthorized(w, "Invalid token")
				return
			}

			if redisClient != nil && claims.ID != "" {
				revoked, err := redisClient.Exists(r.Context(), BlacklistKey(claims.ID)).Result()
				if err != nil {
					log.Printf("[AUTH] Blacklist lookup failed for token %s: %v", claims.ID, err)
					writeJSONError(w, "Authentication temporarily unavailable", kindUnavailable, http.StatusServiceUnavailable)
					return
				}
				if revoked > 0 {
					unauthorized(w, "Token has been revoked")
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// ValidateToken parses an HMAC-signed token issued by this service.
func ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(5 * time.Second),
	}
	if issuer := viper.GetString("jwt.issuer"); issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return []byte(viper.GetString("jwt.secret_key")), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token is not valid")
	}
	if claims.UserID <= 0 {
		return nil, errors.New("token carries no user_id")
	}
	return claims, nil
}

// Error kinds written by this package; they match the service error kinds.
const (
	kindUnauthenticated = "UNAUTHENTICATED"
	kindUnavailable     = "UNAVAILABLE"
)

func unauthorized(w http.ResponseWriter, message string) {
	writeJSONError(w, message, kindUnauthenticated, http.StatusUnauthorized)
}

func writeJSONError(w http.ResponseWriter, message, kind string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message, "kind": kind})
}
