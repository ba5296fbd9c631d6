package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/hungtran3011/research-review-sub001/internal/common"
	"github.com/hungtran3011/research-review-sub001/internal/server/auth"
	"github.com/hungtran3011/research-review-sub001/internal/server/config"
	"github.com/hungtran3011/research-review-sub001/internal/server/models"
	"github.com/hungtran3011/research-review-sub001/internal/server/repositories/repomanager"
	"go.opentelemetry.io/otel/attribute"
)

// refreshTokenBytes is the entropy of a refresh token before hex encoding.
const refreshTokenBytes = 32

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// TokenService issues access tokens and manages the single refresh token
// slot of every subject. Identity verification happens elsewhere: callers
// pass in an already trusted subject ID and its authorities.
type TokenService struct {
	base
	repomanager                  repomanager.RepositoryManager
	issuer                       *auth.Issuer
	hasher                       *auth.Hasher
	refreshTokenValidityDuration time.Duration
}

// NewTokenService constructs a TokenService.
func NewTokenService(m repomanager.RepositoryManager, issuer *auth.Issuer, hasher *auth.Hasher, cfg *config.Config, opts ...Option) *TokenService {
	return &TokenService{
		base:                         newBase("tokens", opts),
		repomanager:                  m,
		issuer:                       issuer,
		hasher:                       hasher,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

// CreateAccessToken signs an access token for subjectID.
func (s *TokenService) CreateAccessToken(subjectID string, authorities []string) (string, time.Time, error) {
	token, exp, err := s.issuer.GenerateToken(subjectID, authorities)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: sign access token: %v", common.ErrorInternal, err)
	}
	return token, exp, nil
}

// ValidateAccessToken verifies token and returns the subject it was issued
// to. It fails with common.ErrTokenExpired or common.ErrInvalidToken.
func (s *TokenService) ValidateAccessToken(token string) (*models.Subject, error) {
	claims, err := s.issuer.ParseToken(token)
	if err != nil {
		return nil, err
	}
	return &models.Subject{
		ID:    claims.Subject,
		Roles: models.RolesFromAuthorities(claims.Authorities),
	}, nil
}

// IssueTokensForUser mints a new token pair and overwrites the subject's
// refresh slot, invalidating any refresh token issued before.
func (s *TokenService) IssueTokensForUser(ctx context.Context, subjectID string, authorities []string) (pair *TokenPair, err error) {
	ctx, end := s.startSpan(ctx, "TokenService.IssueTokensForUser", attribute.String("subject.id", subjectID))
	defer func() { s.metrics.ObserveToken("issue", err); end(err) }()

	if subjectID == "" {
		return nil, fmt.Errorf("%w: empty subject", common.ErrorValidation)
	}

	err = s.repomanager.InTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, r, subjectID, authorities)
		return genErr
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// RefreshTokens validates the presented refresh token against the subject's
// slot and rotates it. The slot row stays locked from the comparison to the
// overwrite, so of two concurrent refreshes with the same token exactly one
// wins. A nil authorities reuses the authorities stored with the slot.
func (s *TokenService) RefreshTokens(ctx context.Context, subjectID, refreshToken string, authorities []string) (pair *TokenPair, err error) {
	ctx, end := s.startSpan(ctx, "TokenService.RefreshTokens", attribute.String("subject.id", subjectID))
	defer func() { s.metrics.ObserveToken("refresh", err); end(err) }()

	if subjectID == "" || refreshToken == "" {
		return nil, common.ErrInvalidToken
	}

	err = s.repomanager.InTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		slot, err := r.RefreshTokens().GetForUpdate(ctx, subjectID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidToken
			}
			return fmt.Errorf("error searching refresh token: %w", err)
		}
		if !s.hasher.Equal(refreshToken, slot.TokenHash) {
			s.logger.Warn(ctx, "refresh token mismatch", "subject_id", subjectID)
			return common.ErrInvalidToken
		}
		if s.now().After(slot.ExpiresAt) {
			return common.ErrInvalidToken
		}

		if authorities == nil {
			authorities = slot.Authorities
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, r, subjectID, authorities)
		return genErr
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// RevokeRefreshForUser empties the subject's refresh slot. Access tokens
// already issued stay valid until they expire.
func (s *TokenService) RevokeRefreshForUser(ctx context.Context, subjectID string) (err error) {
	ctx, end := s.startSpan(ctx, "TokenService.RevokeRefreshForUser", attribute.String("subject.id", subjectID))
	defer func() { s.metrics.ObserveToken("revoke", err); end(err) }()

	if err := s.repomanager.Repositories().RefreshTokens().Delete(ctx, subjectID); err != nil {
		return fmt.Errorf("error deleting refresh token: %w", err)
	}
	return nil
}

func (s *TokenService) generateRefreshToken() (string, error) {
	return common.MakeRandHexString(refreshTokenBytes)
}

// checkAuthorities rejects empty authorities and ones containing whitespace;
// neither survives a round trip through the refresh slot.
func checkAuthorities(authorities []string) error {
	for _, a := range authorities {
		if a == "" || strings.ContainsFunc(a, unicode.IsSpace) {
			return fmt.Errorf("%w: invalid authority %q", common.ErrorValidation, a)
		}
	}
	return nil
}

func (s *TokenService) generateTokenPair(ctx context.Context, r repomanager.Repositories, subjectID string, authorities []string) (*TokenPair, error) {
	if err := checkAuthorities(authorities); err != nil {
		return nil, err
	}
	access, accessExp, err := s.CreateAccessToken(subjectID, authorities)
	if err != nil {
		return nil, err
	}
	refresh, err := s.generateRefreshToken()
	if err != nil {
		return nil, common.ErrorInternal
	}

	now := s.now()
	slot := &models.RefreshToken{
		UserID:      subjectID,
		TokenHash:   s.hasher.Digest(refresh),
		Authorities: authorities,
		ExpiresAt:   now.Add(s.refreshTokenValidityDuration),
		CreatedAt:   now,
	}
	if err := r.RefreshTokens().Upsert(ctx, slot); err != nil {
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: slot.ExpiresAt,
	}, nil
}
