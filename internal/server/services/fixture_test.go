package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hungtran3011/research-review-sub001/internal/server/auth"
	"github.com/hungtran3011/research-review-sub001/internal/server/config"
	"github.com/hungtran3011/research-review-sub001/internal/server/metrics"
	"github.com/hungtran3011/research-review-sub001/internal/server/models"
	"github.com/hungtran3011/research-review-sub001/internal/server/repositories/memory"
	"github.com/hungtran3011/research-review-sub001/internal/server/workflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []models.Notification
	err error
}

func (n *recordingNotifier) Notify(_ context.Context, msg models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, msg)
	return n.err
}

func (n *recordingNotifier) byType(typ string) []models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []models.Notification
	for _, m := range n.got {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

type recordingEmailer struct {
	mu  sync.Mutex
	got []Invitation
	err error
}

func (e *recordingEmailer) SendInvitation(_ context.Context, inv Invitation) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.got = append(e.got, inv)
	return e.err
}

func (e *recordingEmailer) last(t *testing.T) Invitation {
	t.Helper()
	e.mu.Lock()
	defer e.mu.Unlock()
	require.NotEmpty(t, e.got, "no invitation sent")
	return e.got[len(e.got)-1]
}

type fixture struct {
	m           *memory.Manager
	clock       *fakeClock
	cfg         *config.Config
	notifier    *recordingNotifier
	emailer     *recordingEmailer
	tokens      *TokenService
	invitations *InvitationService
	roster      *RosterService
	workflow    *WorkflowService
	manuscripts *ManuscriptService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.Storage = config.StorageMemory

	issuer, err := auth.NewIssuer([]byte(cfg.SecretKey), cfg.Issuer, cfg.AccessTokenValidityDuration)
	require.NoError(t, err)
	hasher, err := auth.NewHasher([]byte(cfg.DigestKey))
	require.NoError(t, err)
	mtr, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	f := &fixture{
		m:        memory.NewRepositoryManager(),
		clock:    &fakeClock{t: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)},
		cfg:      cfg,
		notifier: &recordingNotifier{},
		emailer:  &recordingEmailer{},
	}
	opts := []Option{WithClock(f.clock.Now), WithMetrics(mtr)}

	f.tokens = NewTokenService(f.m, issuer, hasher, cfg, opts...)
	f.invitations = NewInvitationService(f.m, hasher, cfg, opts...)
	f.roster = NewRosterService(f.m, opts...)
	f.workflow = NewWorkflowService(f.m, f.invitations, f.roster, f.notifier, f.emailer, opts...)
	f.manuscripts = NewManuscriptService(f.m, cfg, opts...)
	return f
}

var (
	author    = models.Subject{ID: "author-1", Roles: []models.Role{models.RoleAuthor}}
	stranger  = models.Subject{ID: "author-2", Roles: []models.Role{models.RoleAuthor}}
	editor    = models.Subject{ID: "editor-1", Roles: []models.Role{models.RoleEditor}}
	senior    = models.Subject{ID: "senior-1", Roles: []models.Role{models.RoleSeniorEditor}}
	reviewer1 = models.Subject{ID: "rev-1", Email: "rev1@example.org", Roles: []models.Role{models.RoleReviewer}}
	reviewer2 = models.Subject{ID: "rev-2", Email: "rev2@example.org", Roles: []models.Role{models.RoleReviewer}}
)

func asReviewer(s models.Subject) Reviewer {
	return Reviewer{ID: s.ID, Email: s.Email}
}

func (f *fixture) submit(t *testing.T) *models.Article {
	t.Helper()
	a, err := f.workflow.SubmitArticle(context.Background(), author, NewArticle{TrackID: "track-1", Title: "On Testing"})
	require.NoError(t, err)
	return a
}

func (f *fixture) sendToReview(t *testing.T) *models.Article {
	t.Helper()
	a := f.submit(t)
	a, err := f.workflow.InitialReview(context.Background(), editor, Command{ArticleID: a.ID}, workflow.DecisionSendToReview)
	require.NoError(t, err)
	require.Equal(t, models.StatusPendingReview, a.Status)
	return a
}

// invite assigns r and returns the raw token handed to the emailer.
func (f *fixture) invite(t *testing.T, articleID string, r models.Subject) string {
	t.Helper()
	_, err := f.workflow.AssignReviewer(context.Background(), editor, Command{ArticleID: articleID}, asReviewer(r))
	require.NoError(t, err)
	inv := f.emailer.last(t)
	require.Equal(t, r.Email, inv.Email)
	return inv.Token
}

// inReview returns an IN_REVIEW article whose first reviewer has accepted.
func (f *fixture) inReview(t *testing.T) *models.Article {
	t.Helper()
	a := f.sendToReview(t)
	raw := f.invite(t, a.ID, reviewer1)
	_, err := f.workflow.AcceptInvite(context.Background(), raw)
	require.NoError(t, err)

	a, err = f.workflow.GetArticle(context.Background(), editor, a.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusInReview, a.Status)
	return a
}
