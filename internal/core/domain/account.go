package domain

import (
	"errors"
	"strings"
	"time"
)

// Role distinguishes operators from paying clients.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleClient
}

// AccountStatus is the soft lifecycle of an account. Accounts are never hard-deleted.
type AccountStatus string

const (
	StatusActive  AccountStatus = "active"
	StatusRevoked AccountStatus = "revoked"
)

// Valid reports whether s is a known status.
func (s AccountStatus) Valid() bool {
	return s == StatusActive || s == StatusRevoked
}

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrDuplicateEmail     = errors.New("an account with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrAccountRevoked     = errors.New("account is revoked")
	ErrForbidden          = errors.New("access forbidden")
	ErrInvalidAccount     = errors.New("invalid account data")
)

// Account is a user or API client together with its spendable balance.
//
// Credits is only ever changed through the credit ledger (reserve, settle, top-up);
// partial updates from admin tooling never touch it.
type Account struct {
	ID           string        `json:"id"`
	Email        string        `json:"email"`
	Name         string        `json:"name"`
	PasswordHash string        `json:"-"`
	APIKeyHash   string        `json:"-"`
	APIKeyPrefix string        `json:"api_key_prefix"`
	Role         Role          `json:"role"`
	Status       AccountStatus `json:"status"`
	Credits      int           `json:"credits"`
	CreditLimit  int           `json:"credit_limit"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// IsActive reports whether the account may spend credits.
func (a *Account) IsActive() bool {
	return a.Status == StatusActive
}

// IsAdmin reports whether the account carries the admin role.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// AccountUpdate is a partial update. Nil fields are left untouched.
type AccountUpdate struct {
	Name         *string
	CreditLimit  *int
	Status       *AccountStatus
	Role         *Role
	APIKeyHash   *string
	APIKeyPrefix *string
}

// Empty reports whether the update carries no fields.
func (u AccountUpdate) Empty() bool {
	return u.Name == nil && u.CreditLimit == nil && u.Status == nil &&
		u.Role == nil && u.APIKeyHash == nil && u.APIKeyPrefix == nil
}

// NormalizeEmail lowercases and trims an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DisplayNameFromEmail derives a default display name from the local part of an email.
func DisplayNameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
