package events

import (
	"context"
	"fmt"

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

// Append records e.
func (r *PostgresRepository) Append(ctx context.Context, e *models.TransitionEvent) error {
	query := `
		INSERT INTO transition_events (id, article_id, actor_id, event, from_status, to_status, note, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query, e.ID, e.ArticleID, e.ActorID, e.Event, e.FromStatus, e.ToStatus, e.Note, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

// ListByArticle returns the article's events in the order they happened.
// ULIDs sort by time, so id breaks ties within the same instant.
func (r *PostgresRepository) ListByArticle(ctx context.Context, articleID string) ([]models.TransitionEvent, error) {
	query := `
		SELECT id, article_id, actor_id, event, from_status, to_status, note, occurred_at
		FROM transition_events
		WHERE article_id = $1
		ORDER BY occurred_at ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, articleID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.TransitionEvent
	for rows.Next() {
		var e models.TransitionEvent
		if err := rows.Scan(&e.ID, &e.ArticleID, &e.ActorID, &e.Event, &e.FromStatus, &e.ToStatus, &e.Note, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}
