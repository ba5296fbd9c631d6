// Package invitations declares the repository contract for single-use
// reviewer invitation tokens. Only keyed digests of tokens are stored.
package invitations

import (
	"context"
	"time"

	"github.com/hungtran3011/research-review-sub001/internal/server/models"
)

// Repository persists invitation token records.
type Repository interface {
	// Create inserts t. A digest collision yields common.ErrorAlreadyExists.
	Create(ctx context.Context, t *models.InvitationToken) error

	// FindByHash returns the record for a digest or common.ErrorNotFound.
	FindByHash(ctx context.Context, hash []byte) (*models.InvitationToken, error)

	// FindByHashForUpdate is FindByHash holding the row lock.
	FindByHashForUpdate(ctx context.Context, hash []byte) (*models.InvitationToken, error)

	// MarkUsed sets used_at if it is still unset. An already used record
	// yields common.ErrTokenAlreadyUsed.
	MarkUsed(ctx context.Context, id string, usedAt time.Time) error

	// BurnOutstanding marks every unused token for (articleID, email) as used
	// and returns how many were burned.
	BurnOutstanding(ctx context.Context, articleID, email string, at time.Time) (int64, error)
}
