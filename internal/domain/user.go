package domain

import "time"

// Roles asignados por vías confiables, nunca desde el request.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID                     int64      `json:"id"`
	Email                  string     `json:"email"`
	Name                   string     `json:"name"`
	Phone                  string     `json:"phone,omitempty"`
	PasswordHash           string     `json:"-"`
	Role                   string     `json:"role"`
	IsEmailVerified        bool       `json:"is_email_verified"`
	VerificationToken      string     `json:"-"`
	TokenExpiresAt         *time.Time `json:"-"`
	PasswordResetTokenHash string     `json:"-"`
	ResetTokenExpiresAt    *time.Time `json:"-"`
	RefreshToken           string     `json:"-"`
	CreatedAt              time.Time  `json:"created_at"`
}
