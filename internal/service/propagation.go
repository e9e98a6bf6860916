package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Harshitk-cp/synapse/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxHops       = 2
	DefaultDecayFactor   = 0.5
	DefaultMinActivation = 0.1
	DefaultMaxFrontier   = 1000
	defaultTopActivated  = 10
)

// PropagateOptions tunes a spreading-activation run.
type PropagateOptions struct {
	MaxHops       int
	DecayFactor   float64
	MinActivation float64
	// MaxFrontier caps how many nodes are expanded per hop. The strongest
	// are kept. Zero means DefaultMaxFrontier.
	MaxFrontier int
}

func DefaultPropagateOptions() PropagateOptions {
	return PropagateOptions{
		MaxHops:       DefaultMaxHops,
		DecayFactor:   DefaultDecayFactor,
		MinActivation: DefaultMinActivation,
		MaxFrontier:   DefaultMaxFrontier,
	}
}

func (o PropagateOptions) validate() error {
	if o.MaxHops < 0 {
		return fmt.Errorf("%w: max_hops must be >= 0, got %d", domain.ErrInvalidOperation, o.MaxHops)
	}
	if !(o.DecayFactor >= 0 && o.DecayFactor <= 1) {
		return fmt.Errorf("%w: decay_factor must be in [0, 1], got %v", domain.ErrInvalidOperation, o.DecayFactor)
	}
	if !(o.MinActivation >= 0 && o.MinActivation <= 1) {
		return fmt.Errorf("%w: min_activation must be in [0, 1], got %v", domain.ErrInvalidOperation, o.MinActivation)
	}
	if o.MaxFrontier < 0 {
		return fmt.Errorf("%w: max_frontier must be >= 0, got %d", domain.ErrInvalidOperation, o.MaxFrontier)
	}
	return nil
}

// reach is the activation one run assigned to a node.
type reach struct {
	level float64
	hop   int
}

// PropagationService runs spreading activation over the link graph and
// keeps the last result per node in the activation store.
type PropagationService struct {
	links       domain.LinkStore
	activations domain.ActivationStore
	locks       *projectLocks
	logger      *zap.Logger
}

func NewPropagationService(links domain.LinkStore, activations domain.ActivationStore, logger *zap.Logger) *PropagationService {
	return &PropagationService{
		links:       links,
		activations: activations,
		locks:       newProjectLocks(),
		logger:      logger,
	}
}

// Propagate spreads activation outward from source. The source starts at
// 1.0; each hop passes parent * link strength * decay factor to the other
// endpoint of every link, summing contributions that arrive at the same
// hop. Nodes below MinActivation are dropped and not expanded. The source
// is always part of the result.
func (s *PropagationService) Propagate(ctx context.Context, projectID domain.ProjectID, source domain.NodeRef, opts PropagateOptions) ([]domain.Activation, error) {
	if err := ValidateNode(projectID, source); err != nil {
		return nil, err
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	reached, err := s.spread(ctx, projectID, source, 1.0, opts, opts.MinActivation)
	if err != nil {
		return nil, err
	}

	result := make([]domain.Activation, 0, len(reached))
	states := make([]domain.ActivationState, 0, len(reached))
	for node, r := range reached {
		if r.level < opts.MinActivation {
			continue
		}
		result = append(result, domain.Activation{NodeRef: node, Level: r.level, HopDistance: r.hop})
		states = append(states, domain.ActivationState{
			ProjectID:   projectID,
			Node:        node,
			Level:       r.level,
			HopDistance: r.hop,
			Source:      source,
		})
	}
	sortActivations(result)

	if err := s.persist(ctx, projectID, states); err != nil {
		return nil, err
	}

	s.logger.Debug("propagation complete",
		zap.String("project_id", string(projectID)),
		zap.String("source", source.String()),
		zap.Int("max_hops", opts.MaxHops),
		zap.Int("activated", len(result)))
	return result, nil
}

// MultiSourcePropagate runs one propagation per source, seeded at the
// source's weight, and sums the per-node activation across runs before
// filtering by MinActivation. A node's hop distance is the smallest any
// run assigned it and its recorded source is the run that contributed most.
func (s *PropagationService) MultiSourcePropagate(ctx context.Context, projectID domain.ProjectID, sources []domain.NodeRef, weights []float64, opts PropagateOptions) ([]domain.Activation, error) {
	if err := domain.ValidateProject(projectID); err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: at least one source is required", domain.ErrInvalidOperation)
	}
	if len(weights) != len(sources) {
		return nil, fmt.Errorf("%w: %d weights for %d sources", domain.ErrInvalidOperation, len(weights), len(sources))
	}
	for i, src := range sources {
		if err := src.Validate(); err != nil {
			return nil, err
		}
		if !(weights[i] >= 0) {
			return nil, fmt.Errorf("%w: weight for %s must be >= 0, got %v", domain.ErrInvalidOperation, src, weights[i])
		}
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	// Each run may contribute only part of the final sum, so the per-run
	// expansion cut-off is scaled down by the number of sources. Weaker
	// nodes are still returned by each run and only the sum is filtered.
	threshold := opts.MinActivation / float64(len(sources))

	runs := make([]map[domain.NodeRef]reach, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i := range sources {
		if weights[i] == 0 {
			continue
		}
		g.Go(func() error {
			reached, err := s.spread(gctx, projectID, sources[i], weights[i], opts, threshold)
			if err != nil {
				return err
			}
			runs[i] = reached
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	type total struct {
		level   float64
		hop     int
		source  domain.NodeRef
		largest float64
	}
	totals := make(map[domain.NodeRef]*total)
	for i, reached := range runs {
		for node, r := range reached {
			t, ok := totals[node]
			if !ok {
				t = &total{hop: r.hop}
				totals[node] = t
			}
			t.level += r.level
			if r.hop < t.hop {
				t.hop = r.hop
			}
			if r.level > t.largest {
				t.largest = r.level
				t.source = sources[i]
			}
		}
	}

	var (
		result []domain.Activation
		states []domain.ActivationState
	)
	for node, t := range totals {
		if t.level < opts.MinActivation {
			continue
		}
		result = append(result, domain.Activation{NodeRef: node, Level: t.level, HopDistance: t.hop})
		states = append(states, domain.ActivationState{
			ProjectID:   projectID,
			Node:        node,
			Level:       t.level,
			HopDistance: t.hop,
			Source:      t.source,
		})
	}
	sortActivations(result)

	if err := s.persist(ctx, projectID, states); err != nil {
		return nil, err
	}

	s.logger.Debug("multi-source propagation complete",
		zap.String("project_id", string(projectID)),
		zap.Int("sources", len(sources)),
		zap.Int("activated", len(result)))
	return result, nil
}

// spread runs the hop-by-hop expansion from one source seeded at seed.
// The frontier of each hop is fetched in a single neighbor query. Only
// nodes at or above threshold are expanded; weaker nodes with a positive
// level are returned as well so callers can filter or sum them. A weak node
// reached again at a later hop above threshold takes the later value.
func (s *PropagationService) spread(ctx context.Context, projectID domain.ProjectID, source domain.NodeRef, seed float64, opts PropagateOptions, threshold float64) (map[domain.NodeRef]reach, error) {
	maxFrontier := opts.MaxFrontier
	if maxFrontier == 0 {
		maxFrontier = DefaultMaxFrontier
	}

	reached := map[domain.NodeRef]reach{source: {level: seed, hop: 0}}
	weak := make(map[domain.NodeRef]reach)
	frontier := []domain.NodeRef{source}

	for hop := 1; hop <= opts.MaxHops && len(frontier) > 0; hop++ {
		links, err := s.links.GetNeighbors(ctx, projectID, frontier, 0)
		if err != nil {
			return nil, fmt.Errorf("propagate from %s at hop %d: %w", source, hop, err)
		}

		inFrontier := make(map[domain.NodeRef]bool, len(frontier))
		for _, n := range frontier {
			inFrontier[n] = true
		}

		incoming := make(map[domain.NodeRef]float64)
		for _, l := range links {
			for _, parent := range [2]domain.NodeRef{l.From, l.To} {
				if !inFrontier[parent] {
					continue
				}
				neighbor := l.Other(parent)
				if _, done := reached[neighbor]; done {
					continue
				}
				incoming[neighbor] += reached[parent].level * l.Strength * opts.DecayFactor
			}
		}

		next := make([]domain.NodeRef, 0, len(incoming))
		for node, level := range incoming {
			if level <= 0 {
				continue
			}
			if level < threshold {
				if _, ok := weak[node]; !ok {
					weak[node] = reach{level: level, hop: hop}
				}
				continue
			}
			delete(weak, node)
			reached[node] = reach{level: level, hop: hop}
			next = append(next, node)
		}

		sort.Slice(next, func(i, j int) bool {
			li, lj := reached[next[i]].level, reached[next[j]].level
			if li != lj {
				return li > lj
			}
			return next[i].Less(next[j])
		})
		if len(next) > maxFrontier {
			s.logger.Debug("propagation frontier truncated",
				zap.String("project_id", string(projectID)),
				zap.Int("hop", hop),
				zap.Int("size", len(next)),
				zap.Int("max_frontier", maxFrontier))
			next = next[:maxFrontier]
		}
		frontier = next
	}

	for node, r := range weak {
		reached[node] = r
	}
	return reached, nil
}

func (s *PropagationService) persist(ctx context.Context, projectID domain.ProjectID, states []domain.ActivationState) error {
	if len(states) == 0 {
		return nil
	}
	now := time.Now()
	for i := range states {
		states[i].UpdatedAt = now
	}
	if err := s.activations.UpsertActivations(ctx, projectID, states); err != nil {
		return fmt.Errorf("store activations: %w", err)
	}
	return nil
}

func sortActivations(as []domain.Activation) {
	sort.Slice(as, func(i, j int) bool {
		if as[i].Level != as[j].Level {
			return as[i].Level > as[j].Level
		}
		return as[i].NodeRef.Less(as[j].NodeRef)
	})
}

// GetActivationLevel returns the stored activation of node, or 0 when the
// node has never been reached.
func (s *PropagationService) GetActivationLevel(ctx context.Context, projectID domain.ProjectID, node domain.NodeRef) (float64, error) {
	if err := ValidateNode(projectID, node); err != nil {
		return 0, err
	}
	st, err := s.activations.GetActivation(ctx, projectID, node)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("get activation of %s: %w", node, err)
	}
	return st.Level, nil
}

// GetTopActivated returns the most activated nodes of the last runs.
func (s *PropagationService) GetTopActivated(ctx context.Context, projectID domain.ProjectID, limit int) ([]domain.ActivationState, error) {
	if err := domain.ValidateProject(projectID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultTopActivated
	}
	return s.activations.TopActivations(ctx, projectID, limit)
}

// DecayAllActivations lowers every stored activation by rate, flooring at 0.
func (s *PropagationService) DecayAllActivations(ctx context.Context, projectID domain.ProjectID, rate float64) (int, error) {
	if err := domain.ValidateProject(projectID); err != nil {
		return 0, err
	}
	if err := validateAmount(rate); err != nil {
		return 0, err
	}
	unlock := s.locks.lock(projectID)
	defer unlock()

	n, err := s.activations.DecayActivations(ctx, projectID, rate)
	if err != nil {
		return 0, fmt.Errorf("decay activations: %w", err)
	}
	return n, nil
}

func (s *PropagationService) ClearActivations(ctx context.Context, projectID domain.ProjectID) (int, error) {
	if err := domain.ValidateProject(projectID); err != nil {
		return 0, err
	}
	unlock := s.locks.lock(projectID)
	defer unlock()

	n, err := s.activations.ClearActivations(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("clear activations: %w", err)
	}
	return n, nil
}
