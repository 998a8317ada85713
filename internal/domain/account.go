package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role distinguishes the two kinds of marketplace accounts
type Role string

const (
	RoleVendor   Role = "vendor"
	RoleSupplier Role = "supplier"
)

// ParseRole normalizes a role label, reporting whether it is known
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleVendor:
		return RoleVendor, true
	case RoleSupplier:
		return RoleSupplier, true
	}
	return "", false
}

func (r Role) String() string {
	return string(r)
}

// Account is a registered vendor or supplier
type Account struct {
	ID           int64     `json:"id" db:"id"`
	Role         Role      `json:"role" db:"role"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	Phone        *string   `json:"phone,omitempty" db:"phone"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Location     string    `json:"location" db:"location"`
	DocumentPath *string   `json:"document_path,omitempty" db:"document_path"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Caller is the authenticated identity the web layer attaches to a request
type Caller struct {
	AccountID int64
	Role      Role
}

// NormalizeEmail lower-cases and trims an email so uniqueness is case-insensitive
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RefreshToken is a long-lived token used to mint new access tokens
type RefreshToken struct {
	ID        uuid.UUID `json:"id" db:"id"`
	AccountID int64     `json:"account_id" db:"account_id"`
	Token     string    `json:"token" db:"token"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Revoked   bool      `json:"revoked" db:"revoked"`
}
