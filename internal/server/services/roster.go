package services

import (
	"context"
	"fmt"

	"github.com/hungtran3011/research-review-sub001/internal/server/models"
	"github.com/hungtran3011/research-review-sub001/internal/server/repositories/repomanager"
)

// RosterService assigns the stable per-article reviewer numbers behind the
// anonymized "Reviewer N" labels shown to authors.
type RosterService struct {
	base
	repomanager repomanager.RepositoryManager
}

// NewRosterService constructs a RosterService.
func NewRosterService(m repomanager.RepositoryManager, opts ...Option) *RosterService {
	return &RosterService{base: newBase("roster", opts), repomanager: m}
}

// EnsureDisplayIndexFor gives the assignment a display index if it has none
// and returns the index. It is idempotent.
func (s *RosterService) EnsureDisplayIndexFor(ctx context.Context, assignmentID string) (int, error) {
	var idx int
	err := s.repomanager.InTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		a, err := r.Assignments().Get(ctx, assignmentID)
		if err != nil {
			return err
		}
		// the article lock serializes index allocation per article; the
		// assignment is read again under it since a racing call may have
		// indexed it in the meantime
		if _, err := r.Articles().GetForUpdate(ctx, a.ArticleID); err != nil {
			return err
		}
		if a, err = r.Assignments().Get(ctx, assignmentID); err != nil {
			return err
		}
		idx, err = s.ensureDisplayIndexTx(ctx, r, a)
		return err
	})
	return idx, err
}

// ensureDisplayIndexTx must run with the article row locked.
func (s *RosterService) ensureDisplayIndexTx(ctx context.Context, r repomanager.Repositories, a *models.ReviewerAssignment) (int, error) {
	if a.DisplayIndex != nil {
		return *a.DisplayIndex, nil
	}

	top, err := r.Assignments().MaxDisplayIndex(ctx, a.ArticleID)
	if err != nil {
		return 0, err
	}
	next := top + 1
	if err := r.Assignments().SetDisplayIndex(ctx, a.ID, next); err != nil {
		return 0, fmt.Errorf("error setting display index: %w", err)
	}
	a.DisplayIndex = &next
	return next, nil
}

// ReviewerLabels maps reviewer IDs to their anonymized labels on the
// article. A reviewer invited more than once keeps the earliest number.
func (s *RosterService) ReviewerLabels(ctx context.Context, articleID string) (map[string]string, error) {
	list, err := s.repomanager.Repositories().Assignments().ListByArticle(ctx, articleID)
	if err != nil {
		return nil, err
	}

	labels := make(map[string]string, len(list))
	for i := range list {
		a := &list[i]
		if a.DisplayIndex == nil {
			continue
		}
		if _, seen := labels[a.ReviewerID]; seen {
			continue
		}
		labels[a.ReviewerID] = a.Label()
	}
	return labels, nil
}
