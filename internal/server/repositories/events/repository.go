// Package events declares the append-only audit log of workflow transitions.
package events

import (
	"context"

	"github.com/hungtran3011/research-review-sub001/internal/server/models"
)

// Repository persists transition events. Events are never updated or deleted.
type Repository interface {
	Append(ctx context.Context, e *models.TransitionEvent) error
	ListByArticle(ctx context.Context, articleID string) ([]models.TransitionEvent, error)
}
