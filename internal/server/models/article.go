// Package models defines server-side data models persisted in the database.
package models

import (
	"fmt"
	"strings"
	"time"
)

// ArticleStatus is the workflow state of an article. It is persisted as its
// ordinal, so the declaration order below must never change.
type ArticleStatus int

const (
	StatusSubmitted ArticleStatus = iota
	StatusPendingReview
	StatusInReview
	StatusRevisionsRequested
	StatusRevisions
	StatusAccepted
	StatusRejected
	StatusRejectRequested
	StatusAcceptRequested
)

var statusNames = [...]string{
	StatusSubmitted:          "SUBMITTED",
	StatusPendingReview:      "PENDING_REVIEW",
	StatusInReview:           "IN_REVIEW",
	StatusRevisionsRequested: "REVISIONS_REQUESTED",
	StatusRevisions:          "REVISIONS",
	StatusAccepted:           "ACCEPTED",
	StatusRejected:           "REJECTED",
	StatusRejectRequested:    "REJECT_REQUESTED",
	StatusAcceptRequested:    "ACCEPT_REQUESTED",
}

// AllStatuses lists every status in ordinal order.
func AllStatuses() []ArticleStatus {
	out := make([]ArticleStatus, len(statusNames))
	for i := range statusNames {
		out[i] = ArticleStatus(i)
	}
	return out
}

func (s ArticleStatus) String() string {
	if !s.Valid() {
		return fmt.Sprintf("ArticleStatus(%d)", int(s))
	}
	return statusNames[s]
}

// Valid reports whether s is a declared status.
func (s ArticleStatus) Valid() bool {
	return s >= 0 && int(s) < len(statusNames)
}

// Terminal reports whether no further transitions leave s.
func (s ArticleStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// ParseStatus maps a status name (case-insensitive) to its value.
func ParseStatus(name string) (ArticleStatus, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for i, n := range statusNames {
		if n == name {
			return ArticleStatus(i), nil
		}
	}
	return 0, fmt.Errorf("unknown article status %q", name)
}

// Article is a submitted manuscript. Only Status (with the initial review
// note fields and Version) is mutated by the workflow; the rest is payload.
type Article struct {
	ID                     string
	TrackID                string
	AuthorID               string
	Title                  string
	Status                 ArticleStatus
	InitialReviewNote      *string
	InitialReviewNextSteps *string
	// Version increments on every status write and backs optimistic checks.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}
