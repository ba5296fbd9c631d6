package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/hungtran3011/research-review-sub001/internal/common"
	"github.com/hungtran3011/research-review-sub001/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAssignments(t *testing.T, f *fixture, articleID string, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("as-%d", i)
		require.NoError(t, f.m.Repositories().Assignments().Create(context.Background(), &models.ReviewerAssignment{
			ID:               ids[i],
			ArticleID:        articleID,
			ReviewerID:       fmt.Sprintf("rev-%d", i),
			ReviewerEmail:    fmt.Sprintf("rev%d@example.org", i),
			InvitationStatus: models.InvitationPending,
			InvitedAt:        f.clock.Now(),
		}))
	}
	return ids
}

func TestRosterService_EnsureDisplayIndexIsIdempotent(t *testing.T) {
	f := newFixture(t)
	a := f.submit(t)
	ids := seedAssignments(t, f, a.ID, 2)
	ctx := context.Background()

	first, err := f.roster.EnsureDisplayIndexFor(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, 1, first)

	again, err := f.roster.EnsureDisplayIndexFor(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, 1, again)

	second, err := f.roster.EnsureDisplayIndexFor(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, 2, second)
}

func TestRosterService_EnsureDisplayIndexUnknownAssignment(t *testing.T) {
	f := newFixture(t)

	_, err := f.roster.EnsureDisplayIndexFor(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRosterService_ConcurrentIndexesAreDistinct(t *testing.T) {
	f := newFixture(t)
	a := f.submit(t)
	const n = 12
	ids := seedAssignments(t, f, a.ID, n)
	ctx := context.Background()

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		got []int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			idx, err := f.roster.EnsureDisplayIndexFor(ctx, id)
			assert.NoError(t, err)
			mu.Lock()
			got = append(got, idx)
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	sort.Ints(got)
	want := make([]int, n)
	for i := range want {
		want[i] = i + 1
	}
	assert.Equal(t, want, got)
}

func TestRosterService_ReviewerLabels(t *testing.T) {
	f := newFixture(t)
	a := f.submit(t)
	ids := seedAssignments(t, f, a.ID, 3)
	ctx := context.Background()

	for _, id := range []string{ids[2], ids[0]} {
		_, err := f.roster.EnsureDisplayIndexFor(ctx, id)
		require.NoError(t, err)
	}

	labels, err := f.roster.ReviewerLabels(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"rev-2": "Reviewer 1",
		"rev-0": "Reviewer 2",
	}, labels, "unnumbered assignments have no label")
}
