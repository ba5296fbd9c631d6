package models

import "time"

// InvitationToken is the stored side of a reviewer invitation. The raw token
// is never persisted; only its keyed digest is.
type InvitationToken struct {
	ID        string
	TokenHash []byte
	Email     string
	ArticleID string
	// AssignmentID binds the token to the assignment it was issued for. It is
	// empty for a token created on its own.
	AssignmentID string
	ExpiresAt    time.Time
	// UsedAt is set exactly once; a used record never authorizes anything again.
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is past its expiry at now.
func (t *InvitationToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
