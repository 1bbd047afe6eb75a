package account

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/auth"
)

var validRoles = map[string]bool{
	auth.RoleAdmin:        true,
	auth.RoleProfessional: true,
	auth.RoleSecretary:    true,
	auth.RoleFamily:       true,
}

// User is a login account as stored. It is never sent to clients; use
// Public for responses.
type User struct {
	ID             uuid.UUID   `json:"id"`
	Email          string      `json:"email"`
	Name           string      `json:"name"`
	PasswordHash   string      `json:"password_hash"`
	Role           string      `json:"role"`
	ProfessionalID *uuid.UUID  `json:"professional_id,omitempty"`
	PatientIDs     []uuid.UUID `json:"patient_ids,omitempty"`
	MFASecret      string      `json:"mfa_secret,omitempty"`
	MFAEnabled     bool        `json:"mfa_enabled"`
	Active         bool        `json:"active"`
	LastLoginAt    *time.Time  `json:"last_login_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// PublicUser is the client-facing view of a User.
type PublicUser struct {
	ID             uuid.UUID   `json:"id"`
	Email          string      `json:"email"`
	Name           string      `json:"name"`
	Role           string      `json:"role"`
	ProfessionalID *uuid.UUID  `json:"professional_id,omitempty"`
	PatientIDs     []uuid.UUID `json:"patient_ids,omitempty"`
	MFAEnabled     bool        `json:"mfa_enabled"`
	Active         bool        `json:"active"`
	LastLoginAt    *time.Time  `json:"last_login_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:             u.ID,
		Email:          u.Email,
		Name:           u.Name,
		Role:           u.Role,
		ProfessionalID: u.ProfessionalID,
		PatientIDs:     u.PatientIDs,
		MFAEnabled:     u.MFAEnabled,
		Active:         u.Active,
		LastLoginAt:    u.LastLoginAt,
		CreatedAt:      u.CreatedAt,
	}
}

// NewUser is the input for creating an account.
type NewUser struct {
	Email          string      `json:"email"`
	Name           string      `json:"name"`
	Password       string      `json:"password"`
	Role           string      `json:"role"`
	ProfessionalID *uuid.UUID  `json:"professional_id,omitempty"`
	PatientIDs     []uuid.UUID `json:"patient_ids,omitempty"`
}

// LoginResult is the outcome of a login attempt. A failed attempt is a
// result with Success false and a message, not an error.
type LoginResult struct {
	Success     bool        `json:"success"`
	Message     string      `json:"message,omitempty"`
	RequiresMFA bool        `json:"requires_mfa,omitempty"`
	Token       string      `json:"token,omitempty"`
	ExpiresAt   *time.Time  `json:"expires_at,omitempty"`
	User        *PublicUser `json:"user,omitempty"`
}

// MFAEnrollment carries a freshly generated TOTP secret.
type MFAEnrollment struct {
	Secret string `json:"secret"`
	URL    string `json:"url"`
}
