package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"streetbasket/internal/domain"
	"streetbasket/internal/repository"
	"streetbasket/internal/storage"
)

const (
	// BcryptCost is the cost factor for bcrypt hashing
	BcryptCost = 10

	// Default token expiration times
	AccessTokenExpiration  = 15 * time.Minute
	RefreshTokenExpiration = 7 * 24 * time.Hour
)

// TokenConfig holds the signing secret and token lifetimes.
// Zero lifetimes fall back to the defaults.
type TokenConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (c TokenConfig) withDefaults() TokenConfig {
	if c.AccessTTL <= 0 {
		c.AccessTTL = AccessTokenExpiration
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = RefreshTokenExpiration
	}
	return c
}

// AccountService defines the interface for account business logic
type AccountService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.Account, error)
	Authenticate(ctx context.Context, identifier, password string) (*domain.Account, error)
	Login(ctx context.Context, identifier, password string) (accessToken, refreshToken string, account *domain.Account, err error)
	Logout(ctx context.Context, refreshToken string) error
	RefreshToken(ctx context.Context, refreshToken string) (newAccessToken string, err error)
	ValidateToken(tokenString string) (*Claims, error)
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	UpdateProfile(ctx context.Context, callerID int64, in ProfileInput) (*domain.Account, error)
	UploadDocument(ctx context.Context, callerID int64, filename string, r io.Reader) (*domain.Account, error)
}

// RegisterInput carries the fields of a new account
type RegisterInput struct {
	Role     string
	Name     string
	Email    string
	Phone    string
	Password string
	Location string
}

// ProfileInput is a partial profile update; nil fields are left unchanged
type ProfileInput struct {
	Name     *string
	Location *string
}

// Claims represents the JWT claims
type Claims struct {
	AccountID int64  `json:"account_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Caller converts the claims into the identity services authorize against
func (c *Claims) Caller() domain.Caller {
	role, _ := domain.ParseRole(c.Role)
	return domain.Caller{AccountID: c.AccountID, Role: role}
}

type accountService struct {
	accounts      repository.AccountRepository
	refreshTokens repository.RefreshTokenRepository
	tx            repository.Transactor
	files         storage.FileStore
	tokens        TokenConfig
	logger        *zap.Logger
}

// NewAccountService creates a new instance of AccountService
func NewAccountService(
	accounts repository.AccountRepository,
	refreshTokens repository.RefreshTokenRepository,
	tx repository.Transactor,
	files storage.FileStore,
	tokens TokenConfig,
	logger *zap.Logger,
) AccountService {
	return &accountService{
		accounts:      accounts,
		refreshTokens: refreshTokens,
		tx:            tx,
		files:         files,
		tokens:        tokens.withDefaults(),
		logger:        logger,
	}
}

// Register creates a new account with a hashed password
func (s *accountService) Register(ctx context.Context, in RegisterInput) (*domain.Account, error) {
	role, ok := domain.ParseRole(in.Role)
	if !ok {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, in.Role)
	}

	name := strings.TrimSpace(in.Name)
	email := domain.NormalizeEmail(in.Email)
	switch {
	case name == "":
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	case email == "":
		return nil, fmt.Errorf("%w: email is required", ErrValidation)
	case in.Password == "":
		return nil, fmt.Errorf("%w: password is required", ErrValidation)
	}

	var phone *string
	if p := strings.TrimSpace(in.Phone); p != "" {
		phone = &p
	}

	exists, err := s.accounts.ExistsByIdentifiers(ctx, email, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing account: %w", err)
	}
	if exists {
		return nil, ErrDuplicateIdentifier
	}

	hashedPassword, err := hashPassword(in.Password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: password is too long", ErrValidation)
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &domain.Account{
		Role:         role,
		Name:         name,
		Email:        email,
		Phone:        phone,
		PasswordHash: hashedPassword,
		Location:     strings.TrimSpace(in.Location),
	}

	// The unique constraints still decide races the pre-check cannot see
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrAccountAlreadyExists) {
			return nil, ErrDuplicateIdentifier
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return account, nil
}

// Authenticate verifies an email or phone and password pair
func (s *accountService) Authenticate(ctx context.Context, identifier, password string) (*domain.Account, error) {
	account, err := s.accounts.FindByIdentifier(ctx, strings.TrimSpace(identifier))
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			// Spend the same bcrypt work as a real comparison
			_ = verifyPassword(dummyPasswordHash, password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	if err := verifyPassword(account.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	return account, nil
}

// Login authenticates an account and returns JWT tokens
func (s *accountService) Login(ctx context.Context, identifier, password string) (accessToken, refreshToken string, account *domain.Account, err error) {
	account, err = s.Authenticate(ctx, identifier, password)
	if err != nil {
		return "", "", nil, err
	}

	accessToken, err = s.generateAccessToken(account)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err = s.generateRefreshToken(ctx, account)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return accessToken, refreshToken, account, nil
}

// Logout invalidates the refresh token
func (s *accountService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.refreshTokens.Revoke(ctx, refreshToken); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			// Token doesn't exist, consider it already logged out
			return nil
		}
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// RefreshToken generates a new access token using a valid refresh token
func (s *accountService) RefreshToken(ctx context.Context, refreshTokenString string) (string, error) {
	refreshToken, err := s.refreshTokens.FindByToken(ctx, refreshTokenString)
	if err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) || errors.Is(err, repository.ErrRefreshTokenRevoked) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("failed to find refresh token: %w", err)
	}

	if time.Now().After(refreshToken.ExpiresAt) {
		return "", ErrTokenExpired
	}

	account, err := s.accounts.FindByID(ctx, refreshToken.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("failed to find account: %w", err)
	}

	newAccessToken, err := s.generateAccessToken(account)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}

	return newAccessToken, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *accountService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.tokens.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.AccountID < 1 {
		return nil, ErrInvalidToken
	}
	if _, ok := domain.ParseRole(claims.Role); !ok {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GetByID retrieves an account by ID
func (s *accountService) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// UpdateProfile edits the caller's name and location
func (s *accountService) UpdateProfile(ctx context.Context, callerID int64, in ProfileInput) (*domain.Account, error) {
	account, err := s.GetByID(ctx, callerID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be blank", ErrValidation)
		}
		account.Name = name
	}
	if in.Location != nil {
		account.Location = strings.TrimSpace(*in.Location)
	}

	if err := s.accounts.UpdateProfile(ctx, account); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return account, nil
}

// UploadDocument stores an identity document for the caller, replacing any previous one
func (s *accountService) UploadDocument(ctx context.Context, callerID int64, filename string, r io.Reader) (*domain.Account, error) {
	if !storage.DocumentExtensions.Allows(filename) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDocument, filename)
	}

	var account *domain.Account
	var previous *string

	stored, err := s.files.Save(ctx, storage.DocumentsDir, filename, r)
	if err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		found, err := s.accounts.FindByIDForUpdate(ctx, callerID)
		if err != nil {
			return err
		}
		previous = found.DocumentPath
		if err := s.accounts.UpdateDocument(ctx, callerID, stored); err != nil {
			return err
		}
		found.DocumentPath = &stored
		account = found
		return nil
	})
	if err != nil {
		s.removeFile(ctx, stored)
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	if previous != nil {
		s.removeFile(ctx, *previous)
	}

	return account, nil
}

func (s *accountService) removeFile(ctx context.Context, path string) {
	if err := s.files.Delete(context.WithoutCancel(ctx), path); err != nil {
		s.logger.Warn("Failed to remove stored document",
			zap.String("path", path),
			zap.Error(err),
		)
	}
}

// generateAccessToken generates a JWT access token with account ID and role claims
func (s *accountService) generateAccessToken(account *domain.Account) (string, error) {
	now := time.Now()
	claims := &Claims{
		AccountID: account.ID,
		Role:      account.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokens.AccessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.tokens.Secret))
}

// generateRefreshToken generates a refresh token and stores it in the database
func (s *accountService) generateRefreshToken(ctx context.Context, account *domain.Account) (string, error) {
	now := time.Now()
	refreshToken := &domain.RefreshToken{
		ID:        uuid.New(),
		AccountID: account.ID,
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(s.tokens.RefreshTTL),
		CreatedAt: now,
	}

	if err := s.refreshTokens.Create(ctx, refreshToken); err != nil {
		return "", err
	}

	return refreshToken.Token, nil
}

func hashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func verifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// dummyPasswordHash is compared against when the identifier matches no account.
// It is built at package init so every miss costs exactly one bcrypt comparison.
var dummyPasswordHash = mustHashPassword("streetbasket-no-such-account")

func mustHashPassword(password string) string {
	h, err := hashPassword(password)
	if err != nil {
		panic(fmt.Sprintf("failed to hash password: %v", err))
	}
	return h
}
