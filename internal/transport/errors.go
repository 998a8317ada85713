package transport

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"streetbasket/internal/domain"
	"streetbasket/internal/filter"
	"streetbasket/internal/middleware"
	"streetbasket/internal/service"
	"streetbasket/internal/storage"
)

// respondServiceError maps service errors onto HTTP statuses.
// Unexpected errors are logged and answered with a generic 500.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error, msg string) {
	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.Is(err, service.ErrValidation):
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrDuplicateIdentifier):
		middleware.RespondWithError(w, http.StatusConflict, "email or phone already registered")
	case errors.Is(err, service.ErrInvalidCredentials):
		middleware.RespondWithError(w, http.StatusUnauthorized, "invalid identifier or password")
	case errors.Is(err, service.ErrTokenExpired):
		middleware.RespondWithError(w, http.StatusUnauthorized, "token expired")
	case errors.Is(err, service.ErrInvalidToken):
		middleware.RespondWithError(w, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, service.ErrNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, service.ErrForbidden):
		middleware.RespondWithError(w, http.StatusForbidden, "insufficient permissions")
	case errors.Is(err, service.ErrInvalidImageFormat):
		middleware.RespondWithError(w, http.StatusUnsupportedMediaType, "image must be png, jpg, jpeg or gif")
	case errors.Is(err, service.ErrInvalidDocument):
		middleware.RespondWithError(w, http.StatusUnsupportedMediaType, "document must be pdf, png, jpg or jpeg")
	case errors.Is(err, service.ErrInvalidTransition):
		middleware.RespondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrConflict):
		middleware.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, storage.ErrFileTooLarge), errors.As(err, &maxBytesErr):
		middleware.RespondWithError(w, http.StatusRequestEntityTooLarge, "upload exceeds the size limit")
	default:
		logger.Error(msg, zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

// respondDecodeError answers a body that failed to decode or validate
func respondDecodeError(w http.ResponseWriter, err error) {
	if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
		middleware.RespondWithValidationErrors(w, validationErrors)
		return
	}
	middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
}

// requireCaller fetches the authenticated caller; the auth middleware guarantees it on protected routes
func requireCaller(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (domain.Caller, bool) {
	caller, ok := middleware.GetCaller(r.Context())
	if !ok {
		logger.Error("Caller not found in context", zap.String("path", r.URL.Path))
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
	}
	return caller, ok
}

// pathID parses a positive integer URL parameter
func pathID(w http.ResponseWriter, raw, name string) (int64, bool) {
	id, ok := filter.ParseID(raw)
	if !ok {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid "+name)
	}
	return id, ok
}
