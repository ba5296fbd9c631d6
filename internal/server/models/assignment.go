package models

import (
	"fmt"
	"strings"
	"time"
)

// InvitationStatus tracks a reviewer's answer to an invitation.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationDeclined InvitationStatus = "DECLINED"
	InvitationRevoked  InvitationStatus = "REVOKED"
)

// Active reports whether the assignment still occupies the reviewer's seat on
// the article.
func (s InvitationStatus) Active() bool {
	return s == InvitationPending || s == InvitationAccepted
}

// ParseInvitationStatus validates a persisted status string.
func ParseInvitationStatus(v string) (InvitationStatus, error) {
	s := InvitationStatus(strings.ToUpper(strings.TrimSpace(v)))
	switch s {
	case InvitationPending, InvitationAccepted, InvitationDeclined, InvitationRevoked:
		return s, nil
	}
	return "", fmt.Errorf("unknown invitation status %q", v)
}

// ReviewerAssignment relates a reviewer to an article. Assignments are never
// recycled: re-inviting a reviewer creates a new row.
type ReviewerAssignment struct {
	ID               string
	ArticleID        string
	ReviewerID       string
	ReviewerEmail    string
	InvitedBy        string
	InvitationStatus InvitationStatus
	InvitedAt        time.Time
	DecidedAt        *time.Time
	// DisplayIndex is nil until assigned; once set it never changes.
	DisplayIndex *int
}

// Label is the anonymized name shown to authors, e.g. "Reviewer 2".
func (a *ReviewerAssignment) Label() string {
	if a.DisplayIndex == nil {
		return ""
	}
	return fmt.Sprintf("Reviewer %d", *a.DisplayIndex)
}
