package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"streetbasket/internal/domain"
)

type contextKey string

const (
	CallerKey contextKey = "caller"
)

// AuthMiddleware validates JWT tokens and attaches the caller to the request context
func AuthMiddleware(jwtSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Debug("Missing authorization header")
				RespondWithError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			// Check for Bearer token format
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				logger.Debug("Invalid authorization header format")
				RespondWithError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
				return []byte(jwtSecret), nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

			if err != nil {
				logger.Debug("Token validation failed", zap.Error(err))
				if errors.Is(err, jwt.ErrTokenExpired) {
					RespondWithError(w, http.StatusUnauthorized, "token expired")
				} else {
					RespondWithError(w, http.StatusUnauthorized, "invalid token")
				}
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok || !token.Valid {
				logger.Debug("Invalid token")
				RespondWithError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			caller, ok := callerFromClaims(claims)
			if !ok {
				logger.Warn("Token carries malformed account claims")
				RespondWithError(w, http.StatusUnauthorized, "invalid token claims")
				return
			}

			logger.Debug("Account authenticated",
				zap.Int64("account_id", caller.AccountID),
				zap.String("role", caller.Role.String()),
			)

			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// JSON numbers decode as float64 in map claims
func callerFromClaims(claims jwt.MapClaims) (domain.Caller, bool) {
	rawID, ok := claims["account_id"].(float64)
	if !ok || rawID < 1 || rawID != float64(int64(rawID)) {
		return domain.Caller{}, false
	}

	rawRole, ok := claims["role"].(string)
	if !ok {
		return domain.Caller{}, false
	}
	role, ok := domain.ParseRole(rawRole)
	if !ok {
		return domain.Caller{}, false
	}

	return domain.Caller{AccountID: int64(rawID), Role: role}, true
}

// WithCaller returns a copy of ctx carrying caller
func WithCaller(ctx context.Context, caller domain.Caller) context.Context {
	return context.WithValue(ctx, CallerKey, caller)
}

// GetCaller extracts the authenticated caller from request context
func GetCaller(ctx context.Context) (domain.Caller, bool) {
	caller, ok := ctx.Value(CallerKey).(domain.Caller)
	return caller, ok
}
