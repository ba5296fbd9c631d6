package invitations

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hungtran3011/research-review-sub001/internal/common"
	"github.com/hungtran3011/research-review-sub001/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var cols = []string{"id", "token_hash", "email", "article_id", "assignment_id", "expires_at", "used_at", "created_at"}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	tok := &models.InvitationToken{ID: "i1", TokenHash: []byte{1, 2}, Email: "r@x.org", ArticleID: "a1",
		AssignmentID: "as1", ExpiresAt: now.Add(time.Hour), CreatedAt: now}

	mock.ExpectExec(`(?s)^\s*INSERT\s+INTO\s+invitation_tokens\b.*assignment_id.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$7\)\s*$`).
		WithArgs("i1", []byte{1, 2}, "r@x.org", "a1", "as1", tok.ExpiresAt, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), tok))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_Collision(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+invitation_tokens`).WillReturnError(&pgconn.PgError{Code: "23505"})
	assert.ErrorIs(t, repo.Create(context.Background(), &models.InvitationToken{}), common.ErrorAlreadyExists)
}

func TestFindByHash(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^\s*SELECT\s+id,.*FROM\s+invitation_tokens\s+WHERE\s+token_hash\s*=\s*\$1\s*$`).
		WithArgs([]byte{9}).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("i1", []byte{9}, "r@x.org", "a1", "as1", now, nil, now))

	got, err := repo.FindByHash(context.Background(), []byte{9})
	require.NoError(t, err)
	assert.Equal(t, "r@x.org", got.Email)
	assert.Equal(t, "as1", got.AssignmentID)
	assert.Nil(t, got.UsedAt)
}

func TestFindByHashForUpdate_Used(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)WHERE\s+token_hash\s*=\s*\$1\s+FOR\s+UPDATE\s*$`).
		WithArgs([]byte{9}).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("i1", []byte{9}, "r@x.org", "a1", "", now, now, now))

	got, err := repo.FindByHashForUpdate(context.Background(), []byte{9})
	require.NoError(t, err)
	require.NotNil(t, got.UsedAt)
}

func TestFindByHash_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+invitation_tokens`).WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByHash(context.Background(), []byte{0})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestMarkUsed(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	q := `(?s)UPDATE\s+invitation_tokens\s+SET\s+used_at\s*=\s*\$1\s+WHERE\s+id\s*=\s*\$2\s+AND\s+used_at\s+IS\s+NULL`

	mock.ExpectExec(q).WithArgs(now, "i1").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkUsed(context.Background(), "i1", now))

	mock.ExpectExec(q).WithArgs(now, "i1").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.MarkUsed(context.Background(), "i1", now), common.ErrTokenAlreadyUsed)

	mock.ExpectExec(q).WillReturnError(errors.New("db down"))
	err := repo.MarkUsed(context.Background(), "i1", now)
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestBurnOutstanding(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`(?s)UPDATE\s+invitation_tokens\s+SET\s+used_at\s*=\s*\$1\s+WHERE\s+article_id\s*=\s*\$2\s+AND\s+email\s*=\s*\$3\s+AND\s+used_at\s+IS\s+NULL`).
		WithArgs(now, "a1", "r@x.org").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.BurnOutstanding(context.Background(), "a1", "r@x.org", now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
