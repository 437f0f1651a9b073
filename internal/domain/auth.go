package domain

import "time"

// Token represents issued authentication token metadata.
type Token struct {
	Value     string
	SubjectID string
	Role      UserRole
	ExpiresAt time.Time
	IssuedAt  time.Time
}
