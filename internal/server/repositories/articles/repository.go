// Package articles declares the repository contract for articles and their
// workflow status.
package articles

import (
	"context"

	"github.com/hungtran3011/research-review-sub001/internal/server/models"
)

// Repository persists articles.
type Repository interface {
	// Create inserts a new article. a.Version is set to 1.
	Create(ctx context.Context, a *models.Article) error

	// Get returns the article or common.ErrorNotFound.
	Get(ctx context.Context, id string) (*models.Article, error)

	// GetForUpdate is Get that also locks the article row until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*models.Article, error)

	// UpdateStatus writes a's status and initial review fields if the stored
	// version still equals a.Version, then bumps a.Version. A stale version
	// yields common.ErrVersionConflict.
	UpdateStatus(ctx context.Context, a *models.Article) error

	// ListByAuthor returns the author's articles, newest first.
	ListByAuthor(ctx context.Context, authorID string) ([]models.Article, error)
}
