package models

import "time"

// RefreshToken is the single refresh slot of a subject. Issuing a new token
// overwrites the slot.
type RefreshToken struct {
	UserID      string
	TokenHash   []byte
	Authorities []string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}
