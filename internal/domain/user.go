package domain

import "time"

// UserRole separates administrators from regular operators.
type UserRole string

const (
	UserRoleAdmin UserRole = "ADMIN"
	UserRoleUser  UserRole = "USER"
)

// User is an operator allowed to log incidents and move them through the workflow.
type User struct {
	ID           string
	Username     string
	Name         string
	Email        string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
