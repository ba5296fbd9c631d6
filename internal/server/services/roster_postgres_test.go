package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/hungtran3011/research-review-sub001/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	assignmentCols = []string{"id", "article_id", "reviewer_id", "reviewer_email", "invited_by",
		"invitation_status", "invited_at", "decided_at", "display_index"}
	articleCols = []string{"id", "track_id", "author_id", "title", "status", "initial_review_note",
		"initial_review_next_steps", "version", "created_at", "updated_at"}
)

const (
	getAssignmentQuery = `(?s)SELECT\s+id,.*FROM\s+reviewer_assignments\s+WHERE\s+id\s*=\s*\$1\s*$`
	lockArticleQuery   = `(?s)SELECT\s+id,.*FROM\s+articles\s+WHERE\s+id\s*=\s*\$1\s+FOR\s+UPDATE`
)

func newPostgresRoster(t *testing.T) (*RosterService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m, err := repomanager.NewPostgresRepositoryManager(db)
	require.NoError(t, err)
	return NewRosterService(m), mock
}

func assignmentRow(index any) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(assignmentCols).
		AddRow("as1", "a1", "rev-1", "rev1@example.org", "editor-1", "PENDING", now, nil, index)
}

func articleRow() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(articleCols).
		AddRow("a1", "track-1", "author-1", "On Testing", int64(2), nil, nil, int64(3), now, now)
}

func TestRosterService_EnsureDisplayIndexRereadsUnderLock(t *testing.T) {
	s, mock := newPostgresRoster(t)

	// a racing call indexes the assignment while this one waits for the lock
	mock.ExpectBegin()
	mock.ExpectQuery(getAssignmentQuery).WithArgs("as1").WillReturnRows(assignmentRow(nil))
	mock.ExpectQuery(lockArticleQuery).WithArgs("a1").WillReturnRows(articleRow())
	mock.ExpectQuery(getAssignmentQuery).WithArgs("as1").WillReturnRows(assignmentRow(int64(1)))
	mock.ExpectCommit()

	idx, err := s.EnsureDisplayIndexFor(context.Background(), "as1")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterService_EnsureDisplayIndexAllocatesUnderLock(t *testing.T) {
	s, mock := newPostgresRoster(t)

	mock.ExpectBegin()
	mock.ExpectQuery(getAssignmentQuery).WithArgs("as1").WillReturnRows(assignmentRow(nil))
	mock.ExpectQuery(lockArticleQuery).WithArgs("a1").WillReturnRows(articleRow())
	mock.ExpectQuery(getAssignmentQuery).WithArgs("as1").WillReturnRows(assignmentRow(nil))
	mock.ExpectQuery(`SELECT\s+COALESCE\(MAX\(display_index\),\s*0\)`).WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(int64(2)))
	mock.ExpectExec(`UPDATE\s+reviewer_assignments\s+SET\s+display_index\s*=\s*\$1\s+WHERE\s+id\s*=\s*\$2\s+AND\s+display_index\s+IS\s+NULL`).
		WithArgs(3, "as1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	idx, err := s.EnsureDisplayIndexFor(context.Background(), "as1")
	require.NoError(t, err)
	assert.Equal(t, 3, idx)
	require.NoError(t, mock.ExpectationsWereMet())
}
