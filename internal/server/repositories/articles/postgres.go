package articles

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

const selectColumns = `id, track_id, author_id, title, status, initial_review_note,
		       initial_review_next_steps, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*models.Article, error) {
	a := &models.Article{}
	var note, steps sql.NullString
	if err := row.Scan(&a.ID, &a.TrackID, &a.AuthorID, &a.Title, &a.Status, &note, &steps,
		&a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if note.Valid {
		a.InitialReviewNote = &note.String
	}
	if steps.Valid {
		a.InitialReviewNextSteps = &steps.String
	}
	return a, nil
}

// Create inserts a new article in version 1.
func (r *PostgresRepository) Create(ctx context.Context, a *models.Article) error {
	query := `
		INSERT INTO articles (id, track_id, author_id, title, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 1, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query, a.ID, a.TrackID, a.AuthorID, a.Title, a.Status, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err, "") {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("error performing sql request: %w", err)
	}
	a.Version = 1
	return nil
}

func (r *PostgresRepository) get(ctx context.Context, query, id string) (*models.Article, error) {
	a, err := scanArticle(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

// Get returns the article with the given ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Article, error) {
	return r.get(ctx, `SELECT `+selectColumns+` FROM articles WHERE id = $1`, id)
}

// GetForUpdate returns the article and holds its row lock.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.Article, error) {
	return r.get(ctx, `SELECT `+selectColumns+` FROM articles WHERE id = $1 FOR UPDATE`, id)
}

// UpdateStatus performs a version-checked write of the workflow fields.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, a *models.Article) error {
	query := `
		UPDATE articles
		SET status = $1, initial_review_note = $2, initial_review_next_steps = $3,
		    version = version + 1, updated_at = $4
		WHERE id = $5 AND version = $6
		RETURNING version
	`
	var version int64
	err := r.db.QueryRowContext(ctx, query, a.Status, a.InitialReviewNote, a.InitialReviewNextSteps,
		a.UpdatedAt, a.ID, a.Version).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrVersionConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	a.Version = version
	return nil
}

// ListByAuthor returns the author's articles, newest first.
func (r *PostgresRepository) ListByAuthor(ctx context.Context, authorID string) ([]models.Article, error) {
	query := `SELECT ` + selectColumns + ` FROM articles WHERE author_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, authorID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}
