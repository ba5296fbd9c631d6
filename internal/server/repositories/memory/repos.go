package memory

import (
	"context"
	"encoding/hex"
	"sort"
	"time"

	"github.com/hungtran3011/research-review-sub001/internal/common"
	"github.com/hungtran3011/research-review-sub001/internal/server/models"
)

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyArticle(a models.Article) models.Article {
	a.InitialReviewNote = clonePtr(a.InitialReviewNote)
	a.InitialReviewNextSteps = clonePtr(a.InitialReviewNextSteps)
	return a
}

func copyAssignment(a models.ReviewerAssignment) models.ReviewerAssignment {
	a.DecidedAt = clonePtr(a.DecidedAt)
	a.DisplayIndex = clonePtr(a.DisplayIndex)
	return a
}

func copyInvitation(t models.InvitationToken) models.InvitationToken {
	t.TokenHash = cloneBytes(t.TokenHash)
	t.UsedAt = clonePtr(t.UsedAt)
	return t
}

func copyRefresh(t models.RefreshToken) models.RefreshToken {
	t.TokenHash = cloneBytes(t.TokenHash)
	t.Authorities = append([]string(nil), t.Authorities...)
	return t
}

type articleRepo struct{ v *view }

func (r *articleRepo) Create(_ context.Context, a *models.Article) error {
	return r.v.do(func(s *state) error {
		if _, ok := s.articles[a.ID]; ok {
			return common.ErrorAlreadyExists
		}
		a.Version = 1
		s.articles[a.ID] = copyArticle(*a)
		return nil
	})
}

func (r *articleRepo) Get(_ context.Context, id string) (*models.Article, error) {
	var out models.Article
	err := r.v.do(func(s *state) error {
		a, ok := s.articles[id]
		if !ok {
			return common.ErrorNotFound
		}
		out = copyArticle(a)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetForUpdate needs no lock of its own: transactions are serialized.
func (r *articleRepo) GetForUpdate(ctx context.Context, id string) (*models.Article, error) {
	return r.Get(ctx, id)
}

func (r *articleRepo) UpdateStatus(_ context.Context, a *models.Article) error {
	return r.v.do(func(s *state) error {
		cur, ok := s.articles[a.ID]
		if !ok || cur.Version != a.Version {
			return common.ErrVersionConflict
		}
		cur.Status = a.Status
		cur.InitialReviewNote = clonePtr(a.InitialReviewNote)
		cur.InitialReviewNextSteps = clonePtr(a.InitialReviewNextSteps)
		cur.UpdatedAt = a.UpdatedAt
		cur.Version++
		s.articles[a.ID] = cur
		a.Version = cur.Version
		return nil
	})
}

func (r *articleRepo) ListByAuthor(_ context.Context, authorID string) ([]models.Article, error) {
	var out []models.Article
	err := r.v.do(func(s *state) error {
		for _, a := range s.articles {
			if a.AuthorID == authorID {
				out = append(out, copyArticle(a))
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

type assignmentRepo struct{ v *view }

func activeFor(s *state, articleID, reviewerID, exceptID string) bool {
	for id, a := range s.assignments {
		if id != exceptID && a.ArticleID == articleID && a.ReviewerID == reviewerID && a.InvitationStatus.Active() {
			return true
		}
	}
	return false
}

func indexTaken(s *state, articleID string, index int) bool {
	for _, a := range s.assignments {
		if a.ArticleID == articleID && a.DisplayIndex != nil && *a.DisplayIndex == index {
			return true
		}
	}
	return false
}

func (r *assignmentRepo) Create(_ context.Context, a *models.ReviewerAssignment) error {
	return r.v.do(func(s *state) error {
		if _, ok := s.assignments[a.ID]; ok {
			return common.ErrorAlreadyExists
		}
		if a.InvitationStatus.Active() && activeFor(s, a.ArticleID, a.ReviewerID, "") {
			return common.ErrorAlreadyExists
		}
		if a.DisplayIndex != nil && indexTaken(s, a.ArticleID, *a.DisplayIndex) {
			return common.ErrorAlreadyExists
		}
		s.assignments[a.ID] = copyAssignment(*a)
		return nil
	})
}

func (r *assignmentRepo) find(match func(a models.ReviewerAssignment) bool, newer bool) (*models.ReviewerAssignment, error) {
	var (
		out   models.ReviewerAssignment
		found bool
	)
	err := r.v.do(func(s *state) error {
		for _, a := range s.assignments {
			if !match(a) {
				continue
			}
			if !found || (newer && a.InvitedAt.After(out.InvitedAt)) {
				out, found = copyAssignment(a), true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, common.ErrorNotFound
	}
	return &out, nil
}

func (r *assignmentRepo) Get(_ context.Context, id string) (*models.ReviewerAssignment, error) {
	return r.find(func(a models.ReviewerAssignment) bool { return a.ID == id }, false)
}

func (r *assignmentRepo) FindActive(_ context.Context, articleID, reviewerID string) (*models.ReviewerAssignment, error) {
	return r.find(func(a models.ReviewerAssignment) bool {
		return a.ArticleID == articleID && a.ReviewerID == reviewerID && a.InvitationStatus.Active()
	}, false)
}

func (r *assignmentRepo) FindPendingByEmail(_ context.Context, articleID, email string) (*models.ReviewerAssignment, error) {
	return r.find(func(a models.ReviewerAssignment) bool {
		return a.ArticleID == articleID && a.ReviewerEmail == email && a.InvitationStatus == models.InvitationPending
	}, true)
}

func (r *assignmentRepo) ListByArticle(_ context.Context, articleID string) ([]models.ReviewerAssignment, error) {
	var out []models.ReviewerAssignment
	err := r.v.do(func(s *state) error {
		for _, a := range s.assignments {
			if a.ArticleID == articleID {
				out = append(out, copyAssignment(a))
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := out[i].DisplayIndex, out[j].DisplayIndex
		switch {
		case ai != nil && aj != nil && *ai != *aj:
			return *ai < *aj
		case ai != nil && aj == nil:
			return true
		case ai == nil && aj != nil:
			return false
		}
		return out[i].InvitedAt.Before(out[j].InvitedAt)
	})
	return out, err
}

func (r *assignmentRepo) MaxDisplayIndex(_ context.Context, articleID string) (int, error) {
	top := 0
	err := r.v.do(func(s *state) error {
		for _, a := range s.assignments {
			if a.ArticleID == articleID && a.DisplayIndex != nil && *a.DisplayIndex > top {
				top = *a.DisplayIndex
			}
		}
		return nil
	})
	return top, err
}

func (r *assignmentRepo) SetDisplayIndex(_ context.Context, id string, index int) error {
	return r.v.do(func(s *state) error {
		a, ok := s.assignments[id]
		if !ok || a.DisplayIndex != nil || indexTaken(s, a.ArticleID, index) {
			return common.ErrorAlreadyExists
		}
		a.DisplayIndex = &index
		s.assignments[id] = a
		return nil
	})
}

func (r *assignmentRepo) UpdateStatus(_ context.Context, id string, status models.InvitationStatus, decidedAt time.Time) error {
	return r.v.do(func(s *state) error {
		a, ok := s.assignments[id]
		if !ok {
			return common.ErrorNotFound
		}
		if status.Active() && activeFor(s, a.ArticleID, a.ReviewerID, id) {
			return common.ErrorAlreadyExists
		}
		a.InvitationStatus = status
		a.DecidedAt = &decidedAt
		s.assignments[id] = a
		return nil
	})
}

type invitationRepo struct{ v *view }

func (r *invitationRepo) Create(_ context.Context, t *models.InvitationToken) error {
	return r.v.do(func(s *state) error {
		key := hex.EncodeToString(t.TokenHash)
		if _, ok := s.byHash[key]; ok {
			return common.ErrorAlreadyExists
		}
		if _, ok := s.invitations[t.ID]; ok {
			return common.ErrorAlreadyExists
		}
		s.invitations[t.ID] = copyInvitation(*t)
		s.byHash[key] = t.ID
		return nil
	})
}

func (r *invitationRepo) FindByHash(_ context.Context, hash []byte) (*models.InvitationToken, error) {
	var out models.InvitationToken
	err := r.v.do(func(s *state) error {
		id, ok := s.byHash[hex.EncodeToString(hash)]
		if !ok {
			return common.ErrorNotFound
		}
		out = copyInvitation(s.invitations[id])
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *invitationRepo) FindByHashForUpdate(ctx context.Context, hash []byte) (*models.InvitationToken, error) {
	return r.FindByHash(ctx, hash)
}

func (r *invitationRepo) MarkUsed(_ context.Context, id string, usedAt time.Time) error {
	return r.v.do(func(s *state) error {
		t, ok := s.invitations[id]
		if !ok || t.UsedAt != nil {
			return common.ErrTokenAlreadyUsed
		}
		t.UsedAt = &usedAt
		s.invitations[id] = t
		return nil
	})
}

func (r *invitationRepo) BurnOutstanding(_ context.Context, articleID, email string, at time.Time) (int64, error) {
	var n int64
	err := r.v.do(func(s *state) error {
		for id, t := range s.invitations {
			if t.ArticleID == articleID && t.Email == email && t.UsedAt == nil {
				used := at
				t.UsedAt = &used
				s.invitations[id] = t
				n++
			}
		}
		return nil
	})
	return n, err
}

type refreshRepo struct{ v *view }

func (r *refreshRepo) Upsert(_ context.Context, t *models.RefreshToken) error {
	return r.v.do(func(s *state) error {
		s.refresh[t.UserID] = copyRefresh(*t)
		return nil
	})
}

func (r *refreshRepo) GetForUpdate(_ context.Context, userID string) (*models.RefreshToken, error) {
	var out models.RefreshToken
	err := r.v.do(func(s *state) error {
		t, ok := s.refresh[userID]
		if !ok {
			return common.ErrorNotFound
		}
		out = copyRefresh(t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *refreshRepo) Delete(_ context.Context, userID string) error {
	return r.v.do(func(s *state) error {
		delete(s.refresh, userID)
		return nil
	})
}

type eventRepo struct{ v *view }

func (r *eventRepo) Append(_ context.Context, e *models.TransitionEvent) error {
	return r.v.do(func(s *state) error {
		s.events = append(s.events, *e)
		return nil
	})
}

func (r *eventRepo) ListByArticle(_ context.Context, articleID string) ([]models.TransitionEvent, error) {
	var out []models.TransitionEvent
	err := r.v.do(func(s *state) error {
		for _, e := range s.events {
			if e.ArticleID == articleID {
				out = append(out, e)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, err
}
