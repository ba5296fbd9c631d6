package assignments

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

const (
	activeConstraint       = "reviewer_assignments_active_key"
	displayIndexConstraint = "reviewer_assignments_display_index_key"
)

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `id, article_id, reviewer_id, reviewer_email, invited_by, invitation_status,
		       invited_at, decided_at, display_index`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssignment(row rowScanner) (*models.ReviewerAssignment, error) {
	a := &models.ReviewerAssignment{}
	var (
		status  string
		decided sql.NullTime
		index   sql.NullInt32
	)
	if err := row.Scan(&a.ID, &a.ArticleID, &a.ReviewerID, &a.ReviewerEmail, &a.InvitedBy, &status,
		&a.InvitedAt, &decided, &index); err != nil {
		return nil, err
	}
	s, err := models.ParseInvitationStatus(status)
	if err != nil {
		return nil, err
	}
	a.InvitationStatus = s
	if decided.Valid {
		a.DecidedAt = &decided.Time
	}
	if index.Valid {
		i := int(index.Int32)
		a.DisplayIndex = &i
	}
	return a, nil
}

// Create inserts a new assignment.
func (r *PostgresRepository) Create(ctx context.Context, a *models.ReviewerAssignment) error {
	query := `
		INSERT INTO reviewer_assignments
		    (id, article_id, reviewer_id, reviewer_email, invited_by, invitation_status, invited_at, display_index)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query, a.ID, a.ArticleID, a.ReviewerID, a.ReviewerEmail, a.InvitedBy,
		string(a.InvitationStatus), a.InvitedAt, a.DisplayIndex)
	if err != nil {
		if dbx.IsUniqueViolation(err, "") {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (*models.ReviewerAssignment, error) {
	a, err := scanAssignment(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

// Get returns the assignment with the given ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.ReviewerAssignment, error) {
	return r.one(ctx, `SELECT `+selectColumns+` FROM reviewer_assignments WHERE id = $1`, id)
}

// FindActive returns the reviewer's active assignment on the article.
func (r *PostgresRepository) FindActive(ctx context.Context, articleID, reviewerID string) (*models.ReviewerAssignment, error) {
	query := `SELECT ` + selectColumns + ` FROM reviewer_assignments
		WHERE article_id = $1 AND reviewer_id = $2 AND invitation_status IN ('PENDING', 'ACCEPTED')`
	return r.one(ctx, query, articleID, reviewerID)
}

// FindPendingByEmail returns the pending assignment addressed to email.
func (r *PostgresRepository) FindPendingByEmail(ctx context.Context, articleID, email string) (*models.ReviewerAssignment, error) {
	query := `SELECT ` + selectColumns + ` FROM reviewer_assignments
		WHERE article_id = $1 AND reviewer_email = $2 AND invitation_status = 'PENDING'
		ORDER BY invited_at DESC LIMIT 1`
	return r.one(ctx, query, articleID, email)
}

// ListByArticle returns the article's assignments in display order.
func (r *PostgresRepository) ListByArticle(ctx context.Context, articleID string) ([]models.ReviewerAssignment, error) {
	query := `SELECT ` + selectColumns + ` FROM reviewer_assignments
		WHERE article_id = $1 ORDER BY display_index ASC NULLS LAST, invited_at ASC`

	rows, err := r.db.QueryContext(ctx, query, articleID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.ReviewerAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
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

// MaxDisplayIndex returns the highest assigned index on the article.
func (r *PostgresRepository) MaxDisplayIndex(ctx context.Context, articleID string) (int, error) {
	query := `SELECT COALESCE(MAX(display_index), 0) FROM reviewer_assignments WHERE article_id = $1`
	var top int
	if err := r.db.QueryRowContext(ctx, query, articleID).Scan(&top); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return top, nil
}

// SetDisplayIndex assigns index to an unindexed assignment.
func (r *PostgresRepository) SetDisplayIndex(ctx context.Context, id string, index int) error {
	query := `UPDATE reviewer_assignments SET display_index = $1 WHERE id = $2 AND display_index IS NULL`
	res, err := r.db.ExecContext(ctx, query, index, id)
	if err != nil {
		if dbx.IsUniqueViolation(err, displayIndexConstraint) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorAlreadyExists
	}
	return nil
}

// UpdateStatus sets the invitation status and decision time.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status models.InvitationStatus, decidedAt time.Time) error {
	query := `UPDATE reviewer_assignments SET invitation_status = $1, decided_at = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, string(status), decidedAt, id)
	if err != nil {
		if dbx.IsUniqueViolation(err, activeConstraint) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
