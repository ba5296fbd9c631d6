package repomanager

import (
	"context"

	"github.com/hungtran3011/research-review-sub001/internal/server/repositories/articles"
	"github.com/hungtran3011/research-review-sub001/internal/server/repositories/assignments"
	"github.com/hungtran3011/research-review-sub001/internal/server/repositories/events"
	"github.com/hungtran3011/research-review-sub001/internal/server/repositories/invitations"
	"github.com/hungtran3011/research-review-sub001/internal/server/repositories/refreshtokens"
)

// Repositories is a set of repositories bound to the same connection or
// transaction.
type Repositories interface {
	Articles() articles.Repository
	Assignments() assignments.Repository
	Invitations() invitations.Repository
	RefreshTokens() refreshtokens.Repository
	Events() events.Repository
}

// RepositoryManager vends repositories and runs units of work.
type RepositoryManager interface {
	// RunMigrations brings the schema up to date.
	RunMigrations(ctx context.Context) error

	// Repositories returns repositories that run each call on its own.
	Repositories() Repositories

	// InTx runs fn inside a transaction. All writes made through the given
	// Repositories commit together if fn returns nil and are discarded
	// otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error

	// Close releases the underlying storage.
	Close() error
}
