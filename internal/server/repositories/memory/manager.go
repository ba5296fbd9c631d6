// Package memory is a process-local RepositoryManager for development and
// tests. Transactions are serialized by one mutex and run against a private
// copy of the state that replaces the live state only on success, so a
// failed unit of work leaves no trace.
package memory

import (
	"context"
	"sync"

	"github.com/hungtran3011/research-review-sub001/internal/server/models"
	"github.com/hungtran3011/research-review-sub001/internal/server/repositories/articles"
	"github.com/hungtran3011/research-review-sub001/internal/server/repositories/assignments"
	"github.com/hungtran3011/research-review-sub001/internal/server/repositories/events"
	"github.com/hungtran3011/research-review-sub001/internal/server/repositories/invitations"
	"github.com/hungtran3011/research-review-sub001/internal/server/repositories/refreshtokens"
	"github.com/hungtran3011/research-review-sub001/internal/server/repositories/repomanager"
)

// state holds every table. Stored values are never written through: updates
// replace the map entry, which keeps clone shallow.
type state struct {
	articles    map[string]models.Article
	assignments map[string]models.ReviewerAssignment
	invitations map[string]models.InvitationToken
	byHash      map[string]string
	refresh     map[string]models.RefreshToken
	events      []models.TransitionEvent
}

func newState() *state {
	return &state{
		articles:    map[string]models.Article{},
		assignments: map[string]models.ReviewerAssignment{},
		invitations: map[string]models.InvitationToken{},
		byHash:      map[string]string{},
		refresh:     map[string]models.RefreshToken{},
	}
}

func (s *state) clone() *state {
	c := &state{
		articles:    make(map[string]models.Article, len(s.articles)),
		assignments: make(map[string]models.ReviewerAssignment, len(s.assignments)),
		invitations: make(map[string]models.InvitationToken, len(s.invitations)),
		byHash:      make(map[string]string, len(s.byHash)),
		refresh:     make(map[string]models.RefreshToken, len(s.refresh)),
		events:      append([]models.TransitionEvent(nil), s.events...),
	}
	for k, v := range s.articles {
		c.articles[k] = v
	}
	for k, v := range s.assignments {
		c.assignments[k] = v
	}
	for k, v := range s.invitations {
		c.invitations[k] = v
	}
	for k, v := range s.byHash {
		c.byHash[k] = v
	}
	for k, v := range s.refresh {
		c.refresh[k] = v
	}
	return c
}

type noopLocker struct{}

func (noopLocker) Lock()   {}
func (noopLocker) Unlock() {}

// view gives repositories access to a state. Outside a transaction it locks
// the manager for each call; inside one the manager is already held.
type view struct {
	mu  sync.Locker
	get func() *state
}

func (v *view) do(fn func(s *state) error) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return fn(v.get())
}

type repos struct {
	v *view
}

func (r repos) Articles() articles.Repository           { return &articleRepo{r.v} }
func (r repos) Assignments() assignments.Repository     { return &assignmentRepo{r.v} }
func (r repos) Invitations() invitations.Repository     { return &invitationRepo{r.v} }
func (r repos) RefreshTokens() refreshtokens.Repository { return &refreshRepo{r.v} }
func (r repos) Events() events.Repository               { return &eventRepo{r.v} }

// Manager implements repomanager.RepositoryManager in memory.
type Manager struct {
	mu sync.Mutex
	st *state
}

var _ repomanager.RepositoryManager = (*Manager)(nil)

// NewRepositoryManager returns an empty in-memory manager.
func NewRepositoryManager() *Manager {
	return &Manager{st: newState()}
}

// RunMigrations is a no-op; the schema is the Go types.
func (m *Manager) RunMigrations(context.Context) error { return nil }

// Repositories returns repositories that lock the manager per call.
func (m *Manager) Repositories() repomanager.Repositories {
	return repos{v: &view{mu: &m.mu, get: func() *state { return m.st }}}
}

// InTx runs fn against a private copy of the state and publishes it if fn
// succeeds and ctx is still live. Transactions never overlap.
func (m *Manager) InTx(ctx context.Context, fn func(ctx context.Context, repos repomanager.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.st.clone()
	if err := fn(ctx, repos{v: &view{mu: noopLocker{}, get: func() *state { return work }}}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.st = work
	return nil
}

// Close is a no-op.
func (m *Manager) Close() error { return nil }
