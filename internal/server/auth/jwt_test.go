package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hungtran3011/research-review-sub001/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T, secret string) *Issuer {
	t.Helper()
	i, err := NewIssuer([]byte(secret), "reviewflow", time.Hour)
	require.NoError(t, err)
	return i
}

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	i := newTestIssuer(t, "super-secret")

	tok, exp, err := i.GenerateToken("user-123", []string{"author", "reviewer"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := i.ParseToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, []string{"author", "reviewer"}, claims.Authorities)
	assert.Equal(t, "reviewflow", claims.Issuer)
}

func TestParseToken_Expired(t *testing.T) {
	t.Parallel()

	i := newTestIssuer(t, "secret")
	i.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	tok, _, err := i.GenerateToken("u1", nil)
	require.NoError(t, err)

	i.now = time.Now
	_, err = i.ParseToken(tok)
	if !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("expected common.ErrTokenExpired, got %v", err)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, _, err := newTestIssuer(t, "right-secret").GenerateToken("u2", nil)
	require.NoError(t, err)

	_, err = newTestIssuer(t, "wrong-secret").ParseToken(tok)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestParseToken_WrongIssuer(t *testing.T) {
	t.Parallel()

	other, err := NewIssuer([]byte("k"), "someone-else", time.Hour)
	require.NoError(t, err)
	tok, _, err := other.GenerateToken("u3", nil)
	require.NoError(t, err)

	_, err = newTestIssuer(t, "k").ParseToken(tok)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestParseToken_MalformedString(t *testing.T) {
	t.Parallel()

	_, err := newTestIssuer(t, "k").ParseToken("not.a.jwt")
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestParseToken_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	secret := []byte("k")
	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u4",
			Issuer:    "reviewflow",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := tok.SignedString(secret)
	require.NoError(t, err)

	_, err = newTestIssuer(t, "k").ParseToken(s)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestParseToken_RequiresSubject(t *testing.T) {
	t.Parallel()

	i := newTestIssuer(t, "k")
	tok, _, err := i.GenerateToken("", nil)
	require.NoError(t, err)

	_, err = i.ParseToken(tok)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestNewIssuer_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewIssuer(nil, "x", time.Minute)
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = NewIssuer([]byte("k"), "x", 0)
	assert.ErrorIs(t, err, common.ErrorValidation)
}
