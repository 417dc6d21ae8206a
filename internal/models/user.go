package models

import "time"

// Roles assignable to a user account.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents an account stored in the internal database.
// Identity and auth only; learning preferences live in Profile.
type User struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"password_hash"`
	Provider     string    `json:"provider"` // "email", "google", "github", "dev"
	Role         string    `json:"role"`
	Onboarded    bool      `json:"onboarded"`
	CreatedAt    time.Time `json:"created_at"`
	ModifiedAt   time.Time `json:"modified_at"`
}

// Profile holds the per-user learning preferences collected during
// onboarding. One profile per user.
type Profile struct {
	UserID          string    `json:"user_id"`
	ExperienceLevel string    `json:"experience_level"` // "beginner", "intermediate", "advanced"
	Objectives      []string  `json:"objectives"`
	RiskTolerance   string    `json:"risk_tolerance"` // "low", "medium", "high"
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Session is a server-side record of an issued token, keyed by the
// token's jti claim so logout can revoke it.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `json:"revoked"`
	RevokedAt time.Time `json:"revoked_at,omitempty"`
}
