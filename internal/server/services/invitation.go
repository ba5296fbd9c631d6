package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hungtran3011/research-review-sub001/internal/common"
	"github.com/hungtran3011/research-review-sub001/internal/server/auth"
	"github.com/hungtran3011/research-review-sub001/internal/server/config"
	"github.com/hungtran3011/research-review-sub001/internal/server/models"
	"github.com/hungtran3011/research-review-sub001/internal/server/repositories/repomanager"
	"go.opentelemetry.io/otel/attribute"
)

// inviteTokenBytes is the entropy of an invitation token before encoding.
const inviteTokenBytes = 32

// InvitePreview describes an invitation token without consuming it.
type InvitePreview struct {
	Email     string
	ArticleID string
	ExpiresAt time.Time
	Expired   bool
	Used      bool
}

// InvitationService manages single-use invitation tokens. Only keyed digests
// are stored; the raw token is returned once, from CreateInvite.
type InvitationService struct {
	base
	repomanager                repomanager.RepositoryManager
	hasher                     *auth.Hasher
	invitationValidityDuration time.Duration
}

// NewInvitationService constructs an InvitationService.
func NewInvitationService(m repomanager.RepositoryManager, hasher *auth.Hasher, cfg *config.Config, opts ...Option) *InvitationService {
	return &InvitationService{
		base:                       newBase("invitations", opts),
		repomanager:                m,
		hasher:                     hasher,
		invitationValidityDuration: cfg.InvitationValidityDuration,
	}
}

// CreateInvite stores a new token for (email, articleID) and returns the raw
// token together with its expiry.
func (s *InvitationService) CreateInvite(ctx context.Context, email, articleID string) (raw string, expiresAt time.Time, err error) {
	ctx, end := s.startSpan(ctx, "InvitationService.CreateInvite", attribute.String("article.id", articleID))
	defer func() { s.metrics.ObserveInvitation("create", err); end(err) }()

	err = s.repomanager.InTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		var txErr error
		raw, expiresAt, txErr = s.createInviteTx(ctx, r, email, articleID, "")
		return txErr
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return raw, expiresAt, nil
}

// createInviteTx stores the token inside the caller's transaction. A non-empty
// assignmentID binds the token to that assignment.
func (s *InvitationService) createInviteTx(ctx context.Context, r repomanager.Repositories, email, articleID, assignmentID string) (string, time.Time, error) {
	email = normalizeEmail(email)
	if email == "" || articleID == "" {
		return "", time.Time{}, fmt.Errorf("%w: invitation needs an email and an article", common.ErrorValidation)
	}

	raw, err := common.MakeRandURLToken(inviteTokenBytes)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: generate invitation token: %v", common.ErrorInternal, err)
	}

	now := s.now()
	tok := &models.InvitationToken{
		ID:        uuid.NewString(),
		TokenHash: s.hasher.Digest(raw),
		Email:     email,
		ArticleID:    articleID,
		AssignmentID: assignmentID,
		ExpiresAt:    now.Add(s.invitationValidityDuration),
		CreatedAt:    now,
	}
	if err := r.Invitations().Create(ctx, tok); err != nil {
		return "", time.Time{}, fmt.Errorf("error storing invitation token: %w", err)
	}
	return raw, tok.ExpiresAt, nil
}

// Resolve looks the token up without changing it. An expired token yields
// common.ErrTokenExpired along with a preview marked Expired. A used token
// is reported through Used, not as an error.
func (s *InvitationService) Resolve(ctx context.Context, raw string) (*InvitePreview, error) {
	if raw == "" {
		return nil, common.ErrTokenNotFound
	}

	tok, err := s.repomanager.Repositories().Invitations().FindByHash(ctx, s.hasher.Digest(raw))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrTokenNotFound
		}
		return nil, fmt.Errorf("error searching invitation token: %w", err)
	}

	p := &InvitePreview{
		Email:     tok.Email,
		ArticleID: tok.ArticleID,
		ExpiresAt: tok.ExpiresAt,
		Expired:   tok.Expired(s.now()),
		Used:      tok.UsedAt != nil,
	}
	if p.Expired {
		return p, common.ErrTokenExpired
	}
	return p, nil
}

// Consume marks the token used and returns what it was issued for. Exactly
// one of any number of concurrent calls with the same token succeeds; the
// rest get common.ErrTokenAlreadyUsed.
func (s *InvitationService) Consume(ctx context.Context, raw string) (tok *models.InvitationToken, err error) {
	ctx, end := s.startSpan(ctx, "InvitationService.Consume")
	defer func() { end(err) }()

	err = s.repomanager.InTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		var txErr error
		tok, txErr = s.consumeTx(ctx, r, raw)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return tok, nil
}

// consumeTx holds the token row lock from the checks to the update.
// Expiry is checked before use.
func (s *InvitationService) consumeTx(ctx context.Context, r repomanager.Repositories, raw string) (tok *models.InvitationToken, err error) {
	defer func() { s.metrics.ObserveInvitation("consume", err) }()

	if raw == "" {
		return nil, common.ErrTokenNotFound
	}

	digest := s.hasher.Digest(raw)
	tok, err = r.Invitations().FindByHashForUpdate(ctx, digest)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrTokenNotFound
		}
		return nil, fmt.Errorf("error searching invitation token: %w", err)
	}
	if !s.hasher.Equal(raw, tok.TokenHash) {
		return nil, common.ErrTokenNotFound
	}

	now := s.now()
	if tok.Expired(now) {
		return nil, common.ErrTokenExpired
	}
	if tok.UsedAt != nil {
		return nil, common.ErrTokenAlreadyUsed
	}
	if err := r.Invitations().MarkUsed(ctx, tok.ID, now); err != nil {
		return nil, err
	}
	tok.UsedAt = &now
	return tok, nil
}

// burnOutstandingTx invalidates every unused token of the reviewer on the
// article.
func (s *InvitationService) burnOutstandingTx(ctx context.Context, r repomanager.Repositories, articleID, email string) (int64, error) {
	n, err := r.Invitations().BurnOutstanding(ctx, articleID, normalizeEmail(email), s.now())
	s.metrics.ObserveInvitation("burn", err)
	if err != nil {
		return 0, fmt.Errorf("error burning invitation tokens: %w", err)
	}
	return n, nil
}
