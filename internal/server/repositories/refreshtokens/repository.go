// Package refreshtokens declares the server-side repository contract for
// the per-subject refresh token slot.
package refreshtokens

import (
	"context"

	"github.com/hungtran3011/research-review-sub001/internal/server/models"
)

// Repository defines operations on refresh token slots. Each subject owns at
// most one slot.
type Repository interface {
	// Upsert stores t in its subject's slot, overwriting any prior token.
	Upsert(ctx context.Context, t *models.RefreshToken) error

	// GetForUpdate returns the subject's slot and locks it until the
	// surrounding transaction ends. An empty slot yields common.ErrorNotFound.
	GetForUpdate(ctx context.Context, userID string) (*models.RefreshToken, error)

	// Delete empties the subject's slot. Deleting an empty slot is not an
	// error.
	Delete(ctx context.Context, userID string) error
}
