package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Harshitk-cp/synapse/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCreateLink_NeighborHasClampedStrength(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	tests := []struct {
		name    string
		initial float64
		want    float64
	}{
		{"in range", 0.42, 0.42},
		{"above one", 1.7, 1.0},
		{"below zero", -0.3, 0.0},
		{"default", DefaultInitialStrength, 0.5},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from := sem("from-" + tt.name)
			to := epi("to-" + tt.name)
			id, err := e.Links.CreateLink(ctx, testProject, from, to, domain.LinkSemantic, tt.initial)
			require.NoError(t, err)

			links, err := e.Links.GetNeighbors(ctx, testProject, from, 0)
			require.NoError(t, err)
			require.Len(t, links, 1, "case %d", i)
			assert.Equal(t, id, links[0].ID)
			assert.Equal(t, to, links[0].To)
			assert.InDelta(t, tt.want, links[0].Strength, 1e-9)
		})
	}
}

func TestCreateLink_TwiceReturnsSameID(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	first := mustLink(t, e, sem("1"), sem("2"), 0.5)
	second := mustLink(t, e, sem("1"), sem("2"), 0.9)
	assert.Equal(t, first, second)

	l, err := e.Links.GetLink(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 2, l.CoOccurrenceCount)
	assert.InDelta(t, 0.5, l.Strength, 1e-9)
}

func TestCreateLink_InvalidInput(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	tests := []struct {
		name     string
		project  domain.ProjectID
		from, to domain.NodeRef
		linkType domain.LinkType
	}{
		{"self link", testProject, sem("x"), sem("x"), domain.LinkSemantic},
		{"unknown layer", testProject, domain.Node("x", "dream"), sem("y"), domain.LinkSemantic},
		{"empty memory id", testProject, sem(""), sem("y"), domain.LinkSemantic},
		{"unknown link type", testProject, sem("x"), sem("y"), "telepathic"},
		{"missing project", "", sem("x"), sem("y"), domain.LinkSemantic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Links.CreateLink(ctx, tt.project, tt.from, tt.to, tt.linkType, 0.5)
			assert.ErrorIs(t, err, domain.ErrInvalidOperation)
		})
	}

	// Same id on different layers is not a self link.
	_, err := e.Links.CreateLink(ctx, testProject, sem("x"), epi("x"), domain.LinkSemantic, 0.5)
	assert.NoError(t, err)
}

func TestStrengthenAndWeakenLink(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	id := mustLink(t, e, sem("1"), sem("2"), 0.5)

	s, err := e.Links.StrengthenLink(ctx, id, 0.2)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, s, 1e-9)

	s, err = e.Links.StrengthenLink(ctx, id, 0.8)
	require.NoError(t, err)
	assert.Equal(t, 1.0, s)

	s, err = e.Links.WeakenLink(ctx, id, 0.25)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, s, 1e-9)

	s, err = e.Links.WeakenLink(ctx, id, 5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s)

	// Weakening to zero keeps the link.
	_, err = e.Links.GetLink(ctx, id)
	assert.NoError(t, err)

	_, err = e.Links.StrengthenLink(ctx, id, -0.1)
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
	_, err = e.Links.WeakenLink(ctx, id, -0.1)
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	_, err = e.Links.StrengthenLink(ctx, uuid.New(), 0.1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.Links.WeakenLink(ctx, uuid.New(), 0.1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetNeighbors_BidirectionalAndFiltered(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	mustLink(t, e, sem("hub"), sem("out"), 0.8)
	mustLink(t, e, sem("in"), sem("hub"), 0.6)
	mustLink(t, e, sem("hub"), sem("weak"), 0.05)

	links, err := e.Links.GetNeighbors(ctx, testProject, sem("hub"), DefaultMinStrength)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, sem("out"), links[0].To)
	assert.Equal(t, sem("in"), links[1].From)
	for _, l := range links {
		assert.GreaterOrEqual(t, l.Strength, DefaultMinStrength)
	}
}

func TestFindPath(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	// a -> b <- c -> d
	mustLink(t, e, sem("a"), sem("b"), 0.5)
	mustLink(t, e, sem("c"), sem("b"), 0.5)
	mustLink(t, e, sem("c"), sem("d"), 0.5)
	mustLink(t, e, sem("island"), sem("other"), 0.9)

	t.Run("shortest path over undirected links", func(t *testing.T) {
		path, found, err := e.Links.FindPath(ctx, testProject, sem("a"), sem("d"))
		require.NoError(t, err)
		require.True(t, found)
		require.Len(t, path, 3)
		assert.True(t, path[0].Touches(sem("a")))
		assert.True(t, path[1].Touches(sem("b")) && path[1].Touches(sem("c")))
		assert.True(t, path[2].Touches(sem("d")))
	})

	t.Run("same node is an empty path", func(t *testing.T) {
		path, found, err := e.Links.FindPath(ctx, testProject, sem("a"), sem("a"))
		require.NoError(t, err)
		assert.True(t, found)
		assert.NotNil(t, path)
		assert.Empty(t, path)
	})

	t.Run("unreachable is not an error", func(t *testing.T) {
		path, found, err := e.Links.FindPath(ctx, testProject, sem("a"), sem("island"))
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, path)
	})

	t.Run("weak shortcut is the shortest path", func(t *testing.T) {
		mustLink(t, e, sem("a"), sem("d"), 0.05)
		path, found, err := e.Links.FindPath(ctx, testProject, sem("a"), sem("d"))
		require.NoError(t, err)
		require.True(t, found)
		require.Len(t, path, 1)
		assert.InDelta(t, 0.05, path[0].Strength, 1e-9)
	})
}

func TestFindPath_FollowsLearnedLinks(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	at := time.Now().Add(-time.Hour)

	// Two co-access episodes far apart: x -> y, then y -> z.
	for _, step := range []struct {
		pre, post string
		at        time.Time
	}{
		{"x", "y", at},
		{"y", "z", at.Add(30 * time.Minute)},
	} {
		_, err := e.Hebbian.LogAccessAt(ctx, testProject, sem(step.pre), 0.8, step.at)
		require.NoError(t, err)
		_, err = e.Hebbian.LogAccessAt(ctx, testProject, sem(step.post), 0.6, step.at)
		require.NoError(t, err)
	}
	n, err := e.Hebbian.DetectAndStrengthen(ctx, testProject)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	path, found, err := e.Links.FindPath(ctx, testProject, sem("x"), sem("z"))
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, path, 2)
	for _, l := range path {
		assert.InDelta(t, 0.1*0.8*0.6, l.Strength, 1e-9)
	}
}

func TestDecayAllLinks_NeverDeletes(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	id := mustLink(t, e, sem("1"), sem("2"), 0.3)
	mustLink(t, e, sem("2"), sem("3"), 0.9)

	n, err := e.Links.DecayAllLinks(ctx, testProject, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	l, err := e.Links.GetLink(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0.0, l.Strength)

	count, err := e.Links.GetLinkCount(ctx, testProject, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = e.Links.DecayAllLinks(ctx, testProject, -1)
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
}

func TestPruneWeakLinks(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	mustLink(t, e, sem("1"), sem("2"), 0.05)
	mustLink(t, e, sem("2"), sem("3"), 0.1)
	keep := mustLink(t, e, sem("3"), sem("4"), 0.11)

	n, err := e.Links.PruneWeakLinks(ctx, testProject, 0.1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := e.Links.GetLinkCount(ctx, testProject, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = e.Links.GetLink(ctx, keep)
	assert.NoError(t, err)
}

func TestLinks_ProjectIsolation(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	other := domain.ProjectID("project-2")

	mustLink(t, e, sem("1"), sem("2"), 0.5)
	_, err := e.Links.CreateLink(ctx, other, sem("1"), sem("3"), domain.LinkSemantic, 0.5)
	require.NoError(t, err)

	links, err := e.Links.GetNeighbors(ctx, testProject, sem("1"), 0)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, sem("2"), links[0].To)

	pruned, err := e.Links.PruneWeakLinks(ctx, other, 1.0)
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	count, err := e.Links.GetLinkCount(ctx, testProject, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestProjectLinkOperations_RejectOtherProjects(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	other := domain.ProjectID("project-2")
	id := mustLink(t, e, sem("1"), sem("2"), 0.5)

	_, err := e.Links.GetProjectLink(ctx, other, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.Links.StrengthenProjectLink(ctx, other, id, 0.3)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.Links.WeakenProjectLink(ctx, other, id, 0.3)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.Links.GetProjectLink(ctx, "", id)
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)

	l, err := e.Links.GetProjectLink(ctx, testProject, id)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, l.Strength, 1e-9)

	s, err := e.Links.StrengthenProjectLink(ctx, testProject, id, 0.2)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, s, 1e-9)
	s, err = e.Links.WeakenProjectLink(ctx, testProject, id, 0.4)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, s, 1e-9)

	_, err = e.Links.StrengthenProjectLink(ctx, testProject, uuid.New(), 0.1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteLinksForNode(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	mustLink(t, e, sem("gone"), sem("2"), 0.5)
	mustLink(t, e, sem("3"), sem("gone"), 0.5)
	mustLink(t, e, sem("2"), sem("3"), 0.5)

	n, err := e.Links.DeleteLinksForNode(ctx, testProject, sem("gone"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCreateLink_ConcurrentCallersShareOneLink(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)

	const workers = 20
	ids := make([]uuid.UUID, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = e.Links.CreateLink(ctx, testProject, sem("a"), sem("b"), domain.LinkTemporal, 0.5)
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	l, err := e.Links.GetLink(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, workers, l.CoOccurrenceCount)
}

func TestStrengthenLink_ConcurrentUpdatesNotLost(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	id := mustLink(t, e, sem("a"), sem("b"), 0.2)

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Links.StrengthenLink(ctx, id, 0.05)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	l, err := e.Links.GetLink(ctx, id)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, l.Strength, 1e-9)
}

func TestCreateLink_RetriesTransientErrors(t *testing.T) {
	ctx := context.Background()
	store := new(MockLinkStore)
	svc := NewLinkService(store, zap.NewNop())

	store.On("UpsertLink", mock.Anything, mock.Anything).Return(transientErr).Twice()
	store.On("UpsertLink", mock.Anything, mock.Anything).Return(nil).Once()

	id, err := svc.CreateLink(ctx, testProject, sem("1"), sem("2"), domain.LinkSemantic, 0.5)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	store.AssertNumberOfCalls(t, "UpsertLink", 3)
}

func TestCreateLink_GivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	store := new(MockLinkStore)
	svc := NewLinkService(store, zap.NewNop())

	store.On("UpsertLink", mock.Anything, mock.Anything).Return(transientErr)

	_, err := svc.CreateLink(ctx, testProject, sem("1"), sem("2"), domain.LinkSemantic, 0.5)
	assert.ErrorIs(t, err, domain.ErrStorage)
	store.AssertNumberOfCalls(t, "UpsertLink", maxWriteAttempts)
}

func TestStrengthenLink_DoesNotRetryPermanentErrors(t *testing.T) {
	ctx := context.Background()
	store := new(MockLinkStore)
	svc := NewLinkService(store, zap.NewNop())
	id := uuid.New()

	permanent := &domain.StorageError{Op: "adjust", Err: errors.New("disk full")}
	store.On("AdjustStrength", mock.Anything, id, 0.1).Return(0.0, permanent)

	_, err := svc.StrengthenLink(ctx, id, 0.1)
	assert.ErrorIs(t, err, domain.ErrStorage)
	store.AssertNumberOfCalls(t, "AdjustStrength", 1)
}

func TestCreateLink_ValidationNeverReachesStore(t *testing.T) {
	store := new(MockLinkStore)
	svc := NewLinkService(store, zap.NewNop())

	_, err := svc.CreateLink(context.Background(), testProject, sem("x"), sem("x"), domain.LinkSemantic, 0.5)
	assert.ErrorIs(t, err, domain.ErrInvalidOperation)
	store.AssertNotCalled(t, "UpsertLink", mock.Anything, mock.Anything)
}
