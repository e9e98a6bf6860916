package service

import (
	"context"
	"testing"
	"time"

	"github.com/Harshitk-cp/synapse/internal/domain"
	"github.com/Harshitk-cp/synapse/internal/store/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockLinkStore mocks the LinkStore interface.
type MockLinkStore struct {
	mock.Mock
}

func (m *MockLinkStore) UpsertLink(ctx context.Context, l *domain.Link) error {
	args := m.Called(ctx, l)
	if args.Error(0) == nil {
		l.ID = uuid.New()
		l.CoOccurrenceCount = 1
	}
	return args.Error(0)
}

func (m *MockLinkStore) ReinforceLink(ctx context.Context, projectID domain.ProjectID, from, to domain.NodeRef, linkType domain.LinkType, rate float64) (*domain.Link, bool, error) {
	args := m.Called(ctx, projectID, from, to, linkType, rate)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.Link), args.Bool(1), args.Error(2)
}

func (m *MockLinkStore) GetLink(ctx context.Context, id uuid.UUID) (*domain.Link, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Link), args.Error(1)
}

func (m *MockLinkStore) GetLinkBetween(ctx context.Context, projectID domain.ProjectID, from, to domain.NodeRef) (*domain.Link, error) {
	args := m.Called(ctx, projectID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Link), args.Error(1)
}

func (m *MockLinkStore) AdjustStrength(ctx context.Context, id uuid.UUID, delta float64) (float64, error) {
	args := m.Called(ctx, id, delta)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockLinkStore) GetNeighbors(ctx context.Context, projectID domain.ProjectID, nodes []domain.NodeRef, minStrength float64) ([]domain.Link, error) {
	args := m.Called(ctx, projectID, nodes, minStrength)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Link), args.Error(1)
}

func (m *MockLinkStore) CountLinks(ctx context.Context, projectID domain.ProjectID, minStrength float64) (int, error) {
	args := m.Called(ctx, projectID, minStrength)
	return args.Int(0), args.Error(1)
}

func (m *MockLinkStore) PruneLinks(ctx context.Context, projectID domain.ProjectID, threshold float64) (int, error) {
	args := m.Called(ctx, projectID, threshold)
	return args.Int(0), args.Error(1)
}

func (m *MockLinkStore) DecayLinks(ctx context.Context, projectID domain.ProjectID, rate float64) (int, error) {
	args := m.Called(ctx, projectID, rate)
	return args.Int(0), args.Error(1)
}

func (m *MockLinkStore) AverageStrength(ctx context.Context, projectID domain.ProjectID) (float64, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).(float64), args.Error(1)
}

func (m *MockLinkStore) DeleteLinksForNode(ctx context.Context, projectID domain.ProjectID, node domain.NodeRef) (int, error) {
	args := m.Called(ctx, projectID, node)
	return args.Int(0), args.Error(1)
}

func (m *MockLinkStore) ListProjects(ctx context.Context) ([]domain.ProjectID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ProjectID), args.Error(1)
}

// MockAccessLogStore mocks the AccessLogStore interface.
type MockAccessLogStore struct {
	mock.Mock
}

func (m *MockAccessLogStore) AppendAccess(ctx context.Context, e *domain.AccessEvent) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockAccessLogStore) ListAccesses(ctx context.Context, projectID domain.ProjectID, from, to time.Time) ([]domain.AccessEvent, error) {
	args := m.Called(ctx, projectID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AccessEvent), args.Error(1)
}

func (m *MockAccessLogStore) ListUnlearned(ctx context.Context, projectID domain.ProjectID) ([]domain.AccessEvent, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AccessEvent), args.Error(1)
}

func (m *MockAccessLogStore) MarkLearned(ctx context.Context, projectID domain.ProjectID, ids []uuid.UUID, at time.Time) (int, error) {
	args := m.Called(ctx, projectID, ids, at)
	return args.Int(0), args.Error(1)
}

func (m *MockAccessLogStore) DeleteAccessesBefore(ctx context.Context, projectID domain.ProjectID, cutoff time.Time) (int, error) {
	args := m.Called(ctx, projectID, cutoff)
	return args.Int(0), args.Error(1)
}

func (m *MockAccessLogStore) ListProjects(ctx context.Context) ([]domain.ProjectID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ProjectID), args.Error(1)
}

// MockHebbianStatsStore mocks the HebbianStatsStore interface.
type MockHebbianStatsStore struct {
	mock.Mock
}

func (m *MockHebbianStatsStore) GetStats(ctx context.Context, projectID domain.ProjectID) (*domain.HebbianStats, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.HebbianStats), args.Error(1)
}

func (m *MockHebbianStatsStore) RecordLearningRun(ctx context.Context, projectID domain.ProjectID, created, strengthened int, avgStrength float64, at time.Time) error {
	args := m.Called(ctx, projectID, created, strengthened, avgStrength, at)
	return args.Error(0)
}

func (m *MockHebbianStatsStore) RecordWeakened(ctx context.Context, projectID domain.ProjectID, weakened int, avgStrength float64) error {
	args := m.Called(ctx, projectID, weakened, avgStrength)
	return args.Error(0)
}

// MockActivationStore mocks the ActivationStore interface.
type MockActivationStore struct {
	mock.Mock
}

func (m *MockActivationStore) UpsertActivations(ctx context.Context, projectID domain.ProjectID, states []domain.ActivationState) error {
	args := m.Called(ctx, projectID, states)
	return args.Error(0)
}

func (m *MockActivationStore) GetActivation(ctx context.Context, projectID domain.ProjectID, node domain.NodeRef) (*domain.ActivationState, error) {
	args := m.Called(ctx, projectID, node)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ActivationState), args.Error(1)
}

func (m *MockActivationStore) TopActivations(ctx context.Context, projectID domain.ProjectID, limit int) ([]domain.ActivationState, error) {
	args := m.Called(ctx, projectID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ActivationState), args.Error(1)
}

func (m *MockActivationStore) DecayActivations(ctx context.Context, projectID domain.ProjectID, rate float64) (int, error) {
	args := m.Called(ctx, projectID, rate)
	return args.Int(0), args.Error(1)
}

func (m *MockActivationStore) ClearActivations(ctx context.Context, projectID domain.ProjectID) (int, error) {
	args := m.Called(ctx, projectID)
	return args.Int(0), args.Error(1)
}

const testProject domain.ProjectID = "project-1"

func sem(id string) domain.NodeRef {
	return domain.Node(id, domain.LayerSemantic)
}

func epi(id string) domain.NodeRef {
	return domain.Node(id, domain.LayerEpisodic)
}

// newTestEngine builds an engine over an in-memory SQLite backend.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return newTestEngineWithConfig(t, DefaultHebbianConfig())
}

func newTestEngineWithConfig(t *testing.T, cfg HebbianConfig) *Engine {
	t.Helper()
	db, err := sqlite.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	engine, err := NewEngine(db.Backend(), cfg, DefaultMaintenanceConfig(), zap.NewNop())
	require.NoError(t, err)
	return engine
}

// mustLink creates a link and fails the test on error.
func mustLink(t *testing.T, e *Engine, from, to domain.NodeRef, strength float64) uuid.UUID {
	t.Helper()
	id, err := e.Links.CreateLink(context.Background(), testProject, from, to, domain.LinkSemantic, strength)
	require.NoError(t, err)
	return id
}

var transientErr = &domain.StorageError{Op: "test", Err: context.DeadlineExceeded, Transient: true}
