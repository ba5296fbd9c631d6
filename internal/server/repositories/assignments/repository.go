// Package assignments declares the repository contract for reviewer
// assignments.
package assignments

import (
	"context"
	"time"

	"github.com/hungtran3011/research-review-sub001/internal/server/models"
)

// Repository persists reviewer assignments. Assignments are never deleted.
type Repository interface {
	// Create inserts a. A second active assignment for the same reviewer and
	// article yields common.ErrorAlreadyExists.
	Create(ctx context.Context, a *models.ReviewerAssignment) error

	// Get returns the assignment or common.ErrorNotFound.
	Get(ctx context.Context, id string) (*models.ReviewerAssignment, error)

	// FindActive returns the PENDING or ACCEPTED assignment of reviewerID on
	// articleID, or common.ErrorNotFound.
	FindActive(ctx context.Context, articleID, reviewerID string) (*models.ReviewerAssignment, error)

	// FindPendingByEmail returns the PENDING assignment addressed to email on
	// articleID, or common.ErrorNotFound.
	FindPendingByEmail(ctx context.Context, articleID, email string) (*models.ReviewerAssignment, error)

	// ListByArticle returns all assignments of the article ordered by display
	// index, unindexed ones last.
	ListByArticle(ctx context.Context, articleID string) ([]models.ReviewerAssignment, error)

	// MaxDisplayIndex returns the highest display index on the article, or 0.
	MaxDisplayIndex(ctx context.Context, articleID string) (int, error)

	// SetDisplayIndex sets the index of an unindexed assignment. An already
	// indexed assignment is left untouched and common.ErrorAlreadyExists is
	// returned.
	SetDisplayIndex(ctx context.Context, id string, index int) error

	// UpdateStatus records the reviewer's answer or a revocation.
	UpdateStatus(ctx context.Context, id string, status models.InvitationStatus, decidedAt time.Time) error
}
