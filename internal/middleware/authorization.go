package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"streetbasket/internal/domain"
)

// RequireRole middleware ensures the caller has one of the specified roles
func RequireRole(logger *zap.Logger, allowedRoles ...domain.Role) func(http.Handler) http.Handler {
	allowed := make([]string, len(allowedRoles))
	for i, role := range allowedRoles {
		allowed[i] = role.String()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := GetCaller(r.Context())
			if !ok {
				logger.Warn("Caller not found in context")
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			for _, role := range allowedRoles {
				if caller.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			logger.Warn("Account role not authorized",
				zap.Int64("account_id", caller.AccountID),
				zap.String("role", caller.Role.String()),
				zap.Strings("allowed_roles", allowed),
			)
			RespondWithError(w, http.StatusForbidden, "insufficient permissions")
		})
	}
}
