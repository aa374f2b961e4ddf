package model

import "time"

// Role enumerates the user roles recognized by the platform.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleTeacher Role = "TEACHER"
	RoleAdmin   Role = "ADMIN"
)

// User represents a platform account (student, teacher or admin).
type User struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Requester identifies the caller of a domain operation.
type Requester struct {
	UserID int
	Role   Role
}

// IsStaff reports whether the requester is a teacher or an admin.
func (r Requester) IsStaff() bool {
	return r.Role == RoleTeacher || r.Role == RoleAdmin
}

// LoginRequest is the payload for authentication.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=4,max=128"`
}

// LoginResponse is returned after successful login.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
