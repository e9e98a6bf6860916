package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Harshitk-cp/synapse/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultLearningRate     = 0.1
	DefaultHebbianWindow    = 5 * time.Minute
	DefaultAccessActivation = 1.0

	// temporalSteepness sets how fast reinforcement fades across the
	// window: exp(-3) leaves about 5% at the window edge.
	temporalSteepness = 3.0
)

type HebbianConfig struct {
	// LearningRate is eta in the update rule. Must be in [0, 1].
	LearningRate float64
	// Window is the co-occurrence window. Accesses further apart never
	// interact. Must be >= 0.
	Window time.Duration
	// LinkType is assigned to links the learner creates.
	LinkType domain.LinkType
}

func DefaultHebbianConfig() HebbianConfig {
	return HebbianConfig{
		LearningRate: DefaultLearningRate,
		Window:       DefaultHebbianWindow,
		LinkType:     domain.LinkTemporal,
	}
}

// HebbianService turns the access log into graph structure: memories
// accessed close together in time get linked, and repeated co-access
// strengthens the link.
type HebbianService struct {
	links    *LinkService
	accesses domain.AccessLogStore
	stats    domain.HebbianStatsStore
	cfg      HebbianConfig
	locks    *projectLocks
	logger   *zap.Logger
}

func NewHebbianService(links *LinkService, accesses domain.AccessLogStore, stats domain.HebbianStatsStore, cfg HebbianConfig, logger *zap.Logger) (*HebbianService, error) {
	if !(cfg.LearningRate >= 0 && cfg.LearningRate <= 1) {
		return nil, fmt.Errorf("%w: learning_rate must be in [0, 1], got %v", domain.ErrInvalidOperation, cfg.LearningRate)
	}
	if cfg.Window < 0 {
		return nil, fmt.Errorf("%w: window must be >= 0, got %s", domain.ErrInvalidOperation, cfg.Window)
	}
	if cfg.LinkType == "" {
		cfg.LinkType = domain.LinkTemporal
	}
	if !domain.ValidLinkType(string(cfg.LinkType)) {
		return nil, fmt.Errorf("%w: unknown link type %q", domain.ErrInvalidOperation, cfg.LinkType)
	}

	return &HebbianService{
		links:    links,
		accesses: accesses,
		stats:    stats,
		cfg:      cfg,
		locks:    newProjectLocks(),
		logger:   logger,
	}, nil
}

func (s *HebbianService) Config() HebbianConfig {
	return s.cfg
}

// LogAccess appends an access event stamped now.
func (s *HebbianService) LogAccess(ctx context.Context, projectID domain.ProjectID, node domain.NodeRef, activation float64) (uuid.UUID, error) {
	return s.LogAccessAt(ctx, projectID, node, activation, time.Now())
}

// LogAccessAt appends an access event with an explicit timestamp, for
// backfilling or replaying a log.
func (s *HebbianService) LogAccessAt(ctx context.Context, projectID domain.ProjectID, node domain.NodeRef, activation float64, at time.Time) (uuid.UUID, error) {
	if err := ValidateNode(projectID, node); err != nil {
		return uuid.Nil, err
	}
	if !(activation >= 0 && activation <= 1) {
		return uuid.Nil, fmt.Errorf("%w: activation_level must be in [0, 1], got %v", domain.ErrInvalidOperation, activation)
	}

	e := &domain.AccessEvent{
		ID:              uuid.New(),
		ProjectID:       projectID,
		Node:            node,
		ActivationLevel: activation,
		AccessedAt:      at,
	}
	if err := s.accesses.AppendAccess(ctx, e); err != nil {
		return uuid.Nil, fmt.Errorf("log access to %s: %w", node, err)
	}
	return e.ID, nil
}

// DetectAndStrengthen scans the access log for co-occurring accesses and
// reinforces the link from the earlier to the later memory of every pair.
// Each access event is consumed by exactly one pass: pairs are formed only
// when at least one side has not been learned from yet, and the consumed
// events are marked afterwards. Backfilled or late-committed events are
// therefore learned whatever their timestamp. It returns the number of
// links created or strengthened.
func (s *HebbianService) DetectAndStrengthen(ctx context.Context, projectID domain.ProjectID) (int, error) {
	if err := domain.ValidateProject(projectID); err != nil {
		return 0, err
	}
	unlock := s.locks.lock(projectID)
	defer unlock()

	fresh, err := s.accesses.ListUnlearned(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("list unlearned accesses: %w", err)
	}
	runAt := time.Now()

	var events []domain.AccessEvent
	freshIDs := make(map[uuid.UUID]bool, len(fresh))
	if len(fresh) > 0 {
		first, last := fresh[0].AccessedAt, fresh[0].AccessedAt
		for _, e := range fresh {
			freshIDs[e.ID] = true
			if e.AccessedAt.Before(first) {
				first = e.AccessedAt
			}
			if e.AccessedAt.After(last) {
				last = e.AccessedAt
			}
		}

		// Learned neighbours within two windows decide which fresh
		// occurrences overlap one already counted.
		nearby, err := s.accesses.ListAccesses(ctx, projectID, first.Add(-2*s.cfg.Window), last.Add(s.cfg.Window))
		if err != nil {
			return 0, fmt.Errorf("list accesses: %w", err)
		}
		for _, e := range nearby {
			// Events appended after ListUnlearned wait for the next pass.
			if e.Learned() || freshIDs[e.ID] {
				events = append(events, e)
			}
		}
	}

	pairs := coOccurrences(events, s.cfg.Window, freshIDs)

	var created, strengthened int
	for _, p := range pairs {
		gap := p.post.AccessedAt.Sub(p.pre.AccessedAt)
		k := s.cfg.LearningRate * p.pre.ActivationLevel * p.post.ActivationLevel * temporalFactor(gap, s.cfg.Window)
		if k <= 0 {
			continue
		}

		_, isNew, err := s.links.ReinforceLink(ctx, projectID, p.pre.Node, p.post.Node, s.cfg.LinkType, k)
		if err != nil {
			return created + strengthened, err
		}
		if isNew {
			created++
		} else {
			strengthened++
		}
	}

	if len(fresh) > 0 {
		ids := make([]uuid.UUID, 0, len(fresh))
		for _, e := range fresh {
			ids = append(ids, e.ID)
		}
		if _, err := s.accesses.MarkLearned(ctx, projectID, ids, runAt); err != nil {
			return created + strengthened, fmt.Errorf("mark accesses learned: %w", err)
		}
	}

	avg, err := s.links.AverageStrength(ctx, projectID)
	if err != nil {
		return created + strengthened, fmt.Errorf("average link strength: %w", err)
	}
	if err := s.stats.RecordLearningRun(ctx, projectID, created, strengthened, avg, runAt); err != nil {
		return created + strengthened, fmt.Errorf("record learning run: %w", err)
	}

	if created+strengthened > 0 {
		s.logger.Info("hebbian pass complete",
			zap.String("project_id", string(projectID)),
			zap.Int("events", len(fresh)),
			zap.Int("links_created", created),
			zap.Int("links_strengthened", strengthened),
			zap.Float64("avg_link_strength", avg))
	}
	return created + strengthened, nil
}

// temporalFactor scales reinforcement by how close in time two accesses
// were: 1.0 for simultaneous accesses, exp(-3) at the window edge.
func temporalFactor(gap, window time.Duration) float64 {
	if window <= 0 {
		return 1.0
	}
	if gap < 0 {
		gap = -gap
	}
	return math.Exp(-temporalSteepness * float64(gap) / float64(window))
}

type coOccurrence struct {
	pre, post domain.AccessEvent
}

// coOccurrences pairs every two accesses of distinct memories that fall
// within window of each other, oriented earlier -> later. An occurrence of
// a memory pair is counted only when it starts after the previous counted
// occurrence of the same pair ended, so one burst of interleaved accesses
// counts once while separate episodes each count. Counted occurrences are
// emitted only when at least one side is in fresh; a nil fresh treats
// every event as fresh.
func coOccurrences(events []domain.AccessEvent, window time.Duration, fresh map[uuid.UUID]bool) []coOccurrence {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].AccessedAt.Before(events[j].AccessedAt)
	})
	isFresh := func(e domain.AccessEvent) bool {
		return fresh == nil || fresh[e.ID]
	}

	lastEnd := make(map[[2]domain.NodeRef]time.Time)
	var pairs []coOccurrence
	for i := range events {
		for j := i + 1; j < len(events); j++ {
			pre, post := events[i], events[j]
			if post.AccessedAt.Sub(pre.AccessedAt) > window {
				break
			}
			if pre.Node == post.Node {
				continue
			}

			key := [2]domain.NodeRef{pre.Node, post.Node}
			if post.Node.Less(pre.Node) {
				key = [2]domain.NodeRef{post.Node, pre.Node}
			}
			if end, ok := lastEnd[key]; ok && !pre.AccessedAt.After(end) {
				continue
			}
			lastEnd[key] = post.AccessedAt
			if isFresh(pre) || isFresh(post) {
				pairs = append(pairs, coOccurrence{pre: pre, post: post})
			}
		}
	}
	return pairs
}

// ApplyDecay fades every link in the project by rate and records the
// affected links as weakened.
func (s *HebbianService) ApplyDecay(ctx context.Context, projectID domain.ProjectID, rate float64) (int, error) {
	n, err := s.links.DecayAllLinks(ctx, projectID, rate)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}

	avg, err := s.links.AverageStrength(ctx, projectID)
	if err != nil {
		return n, fmt.Errorf("average link strength: %w", err)
	}
	if err := s.stats.RecordWeakened(ctx, projectID, n, avg); err != nil {
		return n, fmt.Errorf("record weakened: %w", err)
	}
	return n, nil
}

func (s *HebbianService) GetStats(ctx context.Context, projectID domain.ProjectID) (*domain.HebbianStats, error) {
	if err := domain.ValidateProject(projectID); err != nil {
		return nil, err
	}
	return s.stats.GetStats(ctx, projectID)
}

// ClearOldAccesses deletes access events older than days days.
func (s *HebbianService) ClearOldAccesses(ctx context.Context, projectID domain.ProjectID, days int) (int, error) {
	if err := domain.ValidateProject(projectID); err != nil {
		return 0, err
	}
	if days < 0 {
		return 0, fmt.Errorf("%w: days must be >= 0, got %d", domain.ErrInvalidOperation, days)
	}
	unlock := s.locks.lock(projectID)
	defer unlock()

	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	n, err := s.accesses.DeleteAccessesBefore(ctx, projectID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("clear old accesses: %w", err)
	}
	if n > 0 {
		s.logger.Info("cleared old accesses",
			zap.String("project_id", string(projectID)),
			zap.Int("days", days),
			zap.Int("deleted", n))
	}
	return n, nil
}

// ListProjects returns every project with logged accesses.
func (s *HebbianService) ListProjects(ctx context.Context) ([]domain.ProjectID, error) {
	return s.accesses.ListProjects(ctx)
}
