package invitations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hungtran3011/research-review-sub001/internal/common"
	"github.com/hungtran3011/research-review-sub001/internal/dbx"
	"github.com/hungtran3011/research-review-sub001/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new unused token record.
func (r *PostgresRepository) Create(ctx context.Context, t *models.InvitationToken) error {
	query := `
		INSERT INTO invitation_tokens (id, token_hash, email, article_id, assignment_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query, t.ID, t.TokenHash, t.Email, t.ArticleID, t.AssignmentID, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err, "") {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) find(ctx context.Context, query string, hash []byte) (*models.InvitationToken, error) {
	t := &models.InvitationToken{}
	var used sql.NullTime
	err := r.db.QueryRowContext(ctx, query, hash).
		Scan(&t.ID, &t.TokenHash, &t.Email, &t.ArticleID, &t.AssignmentID, &t.ExpiresAt, &used, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if used.Valid {
		t.UsedAt = &used.Time
	}
	return t, nil
}

// FindByHash returns the token record matching hash.
func (r *PostgresRepository) FindByHash(ctx context.Context, hash []byte) (*models.InvitationToken, error) {
	query := `
		SELECT id, token_hash, email, article_id, assignment_id, expires_at, used_at, created_at
		FROM invitation_tokens
		WHERE token_hash = $1
	`
	return r.find(ctx, query, hash)
}

// FindByHashForUpdate returns the token record matching hash and locks it.
func (r *PostgresRepository) FindByHashForUpdate(ctx context.Context, hash []byte) (*models.InvitationToken, error) {
	query := `
		SELECT id, token_hash, email, article_id, assignment_id, expires_at, used_at, created_at
		FROM invitation_tokens
		WHERE token_hash = $1
		FOR UPDATE
	`
	return r.find(ctx, query, hash)
}

// MarkUsed consumes the token exactly once.
func (r *PostgresRepository) MarkUsed(ctx context.Context, id string, usedAt time.Time) error {
	query := `
		UPDATE invitation_tokens
		SET used_at = $1
		WHERE id = $2 AND used_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, usedAt, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrTokenAlreadyUsed
	}
	return nil
}

// BurnOutstanding invalidates all unused tokens for the reviewer on the article.
func (r *PostgresRepository) BurnOutstanding(ctx context.Context, articleID, email string, at time.Time) (int64, error) {
	query := `
		UPDATE invitation_tokens
		SET used_at = $1
		WHERE article_id = $2 AND email = $3 AND used_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, at, articleID, email)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
