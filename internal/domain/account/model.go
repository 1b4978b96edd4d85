// Package account implements the credential store: registration with email
// verification codes, password authentication, optional TOTP second factor,
// and session issuance.
package account

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Account roles. Authorization checks are case-sensitive exact matches
// against this enumeration.
const (
	RolePatient    = "patient"
	RoleDoctor     = "doctor"
	RoleAdmin      = "admin"
	RoleStaff      = "staff"
	RoleHCProvider = "hcprovider"
	RoleHCManager  = "hcmanager"
)

// Account statuses. New accounts start inactive and become active after
// code verification. Suspended accounts cannot authenticate.
const (
	StatusInactive  = "inactive"
	StatusActive    = "active"
	StatusSuspended = "suspended"
)

var validRoles = map[string]bool{
	RolePatient:    true,
	RoleDoctor:     true,
	RoleAdmin:      true,
	RoleStaff:      true,
	RoleHCProvider: true,
	RoleHCManager:  true,
}

var validStatuses = map[string]bool{
	StatusInactive:  true,
	StatusActive:    true,
	StatusSuspended: true,
}

// ValidRole reports whether role is in the fixed enumeration.
func ValidRole(role string) bool { return validRoles[role] }

// ValidStatus reports whether status is in the fixed enumeration.
func ValidStatus(status string) bool { return validStatuses[status] }

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// NormalizeEmail lowercases and trims an email address. All storage and
// lookup goes through this so the unique index sees one spelling.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether a normalized email address is well formed.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// MinPasswordLength is the registration password policy.
const MinPasswordLength = 6

// Account is a CareLink account record. The password hash, verification code
// state, and second-factor secrets never serialize to JSON.
type Account struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"display_name"`
	Phone        string    `json:"phone,omitempty"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`

	// One-time verification code state. Only the hash is stored; the code
	// itself goes out through the notification sink and is never persisted.
	OTPHash      string     `json:"-"`
	OTPExpiresAt *time.Time `json:"-"`

	// Second-factor state. The pending secret exists only between
	// BeginTwoFactorSetup and ConfirmTwoFactorSetup.
	TwoFactorEnabled       bool   `json:"two_factor_enabled"`
	TwoFactorSecret        string `json:"-"`
	PendingTwoFactorSecret string `json:"-"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
