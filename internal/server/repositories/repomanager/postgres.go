// Package repomanager defines the RepositoryManager contract and provides a
// concrete implementation for PostgreSQL, wiring together repository
// constructors, transactions and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hungtran3011/research-review-sub001/internal/dbx"
	"github.com/hungtran3011/research-review-sub001/internal/server/migrations"
	"github.com/hungtran3011/research-review-sub001/internal/server/repositories/articles"
	"github.com/hungtran3011/research-review-sub001/internal/server/repositories/assignments"
	"github.com/hungtran3011/research-review-sub001/internal/server/repositories/events"
	"github.com/hungtran3011/research-review-sub001/internal/server/repositories/invitations"
	"github.com/hungtran3011/research-review-sub001/internal/server/repositories/refreshtokens"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// pgRepositories binds PostgreSQL repositories to one DBTX.
type pgRepositories struct {
	db dbx.DBTX
}

func (r pgRepositories) Articles() articles.Repository { return articles.NewPostgresRepository(r.db) }

func (r pgRepositories) Assignments() assignments.Repository {
	return assignments.NewPostgresRepository(r.db)
}

func (r pgRepositories) Invitations() invitations.Repository {
	return invitations.NewPostgresRepository(r.db)
}

func (r pgRepositories) RefreshTokens() refreshtokens.Repository {
	return refreshtokens.NewPostgresRepository(r.db)
}

func (r pgRepositories) Events() events.Repository { return events.NewPostgresRepository(r.db) }

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct {
	db *sql.DB
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the manager's database.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, m.db, "."); err != nil {
		return err
	}
	return nil
}

// Repositories returns repositories bound to the connection pool.
func (m *PostgresRepositoryManager) Repositories() Repositories {
	return pgRepositories{db: m.db}
}

// InTx runs fn in a read-committed transaction. Row locks taken through the
// repositories are held until fn returns.
func (m *PostgresRepositoryManager) InTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	return dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, pgRepositories{db: tx})
	})
}

// Close closes the connection pool.
func (m *PostgresRepositoryManager) Close() error {
	return m.db.Close()
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(db *sql.DB) (*PostgresRepositoryManager, error) {
	if db == nil {
		return nil, fmt.Errorf("nil database handle")
	}
	return &PostgresRepositoryManager{db: db}, nil
}

// OpenPostgres opens a pgx-backed pool for dsn and wraps it in a manager.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresRepositoryManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewPostgresRepositoryManager(db)
}
