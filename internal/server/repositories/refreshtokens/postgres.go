// Package refreshtokens provides a PostgreSQL-backed repository for managing
// refresh tokens used in the server's authentication flow.
package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/hungtran3011/research-review-sub001/internal/common"
	"github.com/hungtran3011/research-review-sub001/internal/dbx"
	"github.com/hungtran3011/research-review-sub001/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Authorities are stored space separated, the way OAuth scopes are, so an
// authority may not be empty or contain whitespace.
func joinAuthorities(a []string) (string, error) {
	for _, v := range a {
		if v == "" || strings.ContainsFunc(v, unicode.IsSpace) {
			return "", fmt.Errorf("%w: authority %q cannot be stored", common.ErrorValidation, v)
		}
	}
	return strings.Join(a, " "), nil
}

func splitAuthorities(s string) []string { return strings.Fields(s) }

// Upsert writes the subject's slot.
func (r *PostgresRepository) Upsert(ctx context.Context, t *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (user_id, token_hash, authorities, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE
		SET token_hash = EXCLUDED.token_hash,
		    authorities = EXCLUDED.authorities,
		    expires_at = EXCLUDED.expires_at,
		    created_at = EXCLUDED.created_at
	`
	authorities, err := joinAuthorities(t.Authorities)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, query, t.UserID, t.TokenHash, authorities, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

// GetForUpdate returns the subject's slot under a row lock.
// If not found, it returns common.ErrorNotFound.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, userID string) (*models.RefreshToken, error) {
	query := `
		SELECT user_id, token_hash, authorities, expires_at, created_at
		FROM refresh_tokens
		WHERE user_id = $1
		FOR UPDATE
	`
	t := &models.RefreshToken{}
	var authorities string
	err := r.db.QueryRowContext(ctx, query, userID).
		Scan(&t.UserID, &t.TokenHash, &authorities, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	t.Authorities = splitAuthorities(authorities)
	return t, nil
}

// Delete removes the subject's slot.
func (r *PostgresRepository) Delete(ctx context.Context, userID string) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE user_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
