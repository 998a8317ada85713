package transport

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"streetbasket/internal/domain"
	"streetbasket/internal/middleware"
	"streetbasket/internal/service"
)

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Role     string `json:"role" validate:"required,oneof=vendor supplier"`
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Location string `json:"location" validate:"max=200"`
}

// LoginRequest represents the login request payload. Identifier is an email or phone.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// RefreshRequest represents the token refresh request payload
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// ProfileRequest represents a partial profile update
type ProfileRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=100"`
	Location *string `json:"location" validate:"omitempty,max=200"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	Account      AccountProfile `json:"account"`
}

// RefreshResponse represents the token refresh response
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
}

// AccountProfile is the public view of an account
type AccountProfile struct {
	ID          int64     `json:"id"`
	Role        string    `json:"role"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       *string   `json:"phone,omitempty"`
	Location    string    `json:"location"`
	HasDocument bool      `json:"has_document"`
	CreatedAt   time.Time `json:"created_at"`
}

func newAccountProfile(a *domain.Account) AccountProfile {
	return AccountProfile{
		ID:          a.ID,
		Role:        a.Role.String(),
		Name:        a.Name,
		Email:       a.Email,
		Phone:       a.Phone,
		Location:    a.Location,
		HasDocument: a.DocumentPath != nil,
		CreatedAt:   a.CreatedAt,
	}
}

// AccountHandler handles HTTP requests for account operations
type AccountHandler struct {
	accountService service.AccountService
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(accountService service.AccountService, maxUploadBytes int64, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// RegisterRoutes registers all account routes. loginLimiter guards the login endpoint.
func (h *AccountHandler) RegisterRoutes(r chi.Router, authMiddleware, loginLimiter func(http.Handler) http.Handler) {
	// Public routes
	r.Post("/api/accounts/register", h.Register)
	r.With(loginLimiter).Post("/api/accounts/login", h.Login)
	r.Post("/api/accounts/refresh", h.RefreshToken)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/api/accounts/logout", h.Logout)
		r.Get("/api/accounts/me", h.GetProfile)
		r.Patch("/api/accounts/me", h.UpdateProfile)
		r.Put("/api/accounts/me/document", h.UploadDocument)
	})
}

// Register handles account registration
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Registration validation failed", zap.Error(err))
		respondDecodeError(w, err)
		return
	}

	account, err := h.accountService.Register(r.Context(), service.RegisterInput{
		Role:     req.Role,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		Location: req.Location,
	})
	if err != nil {
		respondServiceError(w, h.logger, err, "Registration failed")
		return
	}

	h.logger.Info("Account registered",
		zap.Int64("account_id", account.ID),
		zap.String("role", account.Role.String()),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, newAccountProfile(account))
}

// Login handles account authentication
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Login validation failed", zap.Error(err))
		respondDecodeError(w, err)
		return
	}

	accessToken, refreshToken, account, err := h.accountService.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.logger.Info("Login rejected", zap.String("remote_addr", r.RemoteAddr))
		}
		respondServiceError(w, h.logger, err, "Login failed")
		return
	}

	h.logger.Info("Account logged in", zap.Int64("account_id", account.ID))
	middleware.RespondWithJSON(w, http.StatusOK, LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Account:      newAccountProfile(account),
	})
}

// Logout handles account logout
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Logout validation failed", zap.Error(err))
		respondDecodeError(w, err)
		return
	}

	if err := h.accountService.Logout(r.Context(), req.RefreshToken); err != nil {
		respondServiceError(w, h.logger, err, "Logout failed")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
}

// RefreshToken handles token refresh
func (h *AccountHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Refresh token validation failed", zap.Error(err))
		respondDecodeError(w, err)
		return
	}

	newAccessToken, err := h.accountService.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		respondServiceError(w, h.logger, err, "Token refresh failed")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, RefreshResponse{AccessToken: newAccessToken})
}

// GetProfile returns the caller's account
func (h *AccountHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	account, err := h.accountService.GetByID(r.Context(), caller.AccountID)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to get account profile")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newAccountProfile(account))
}

// UpdateProfile edits the caller's name and location
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	var req ProfileRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}

	account, err := h.accountService.UpdateProfile(r.Context(), caller.AccountID, service.ProfileInput{
		Name:     req.Name,
		Location: req.Location,
	})
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to update account profile")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newAccountProfile(account))
}

// UploadDocument stores the caller's identity document from the multipart field "document"
func (h *AccountHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r, h.logger)
	if !ok {
		return
	}

	if err := parseMultipart(w, r, h.maxUploadBytes); err != nil {
		respondMultipartError(w, h.logger, err)
		return
	}

	upload, err := formUpload(r, "document")
	if err != nil {
		respondMultipartError(w, h.logger, err)
		return
	}
	if upload == nil {
		middleware.RespondWithValidationErrors(w, []middleware.ValidationError{{Field: "document", Message: "This field is required"}})
		return
	}
	defer upload.close()

	account, err := h.accountService.UploadDocument(r.Context(), caller.AccountID, upload.Filename, upload.Content)
	if err != nil {
		respondServiceError(w, h.logger, err, "Failed to store document")
		return
	}

	h.logger.Info("Identity document uploaded", zap.Int64("account_id", account.ID))
	middleware.RespondWithJSON(w, http.StatusOK, newAccountProfile(account))
}
