package service

import (
	"context"
	"fmt"
	"math"

	"github.com/Harshitk-cp/synapse/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultInitialStrength = 0.5
	DefaultMinStrength     = 0.1
)

// LinkService owns the association graph: creation, strength updates,
// neighborhood queries and graph maintenance.
type LinkService struct {
	links  domain.LinkStore
	locks  *projectLocks
	logger *zap.Logger
}

func NewLinkService(links domain.LinkStore, logger *zap.Logger) *LinkService {
	return &LinkService{
		links:  links,
		locks:  newProjectLocks(),
		logger: logger,
	}
}

// CreateLink links from to to. When a link between the same endpoints
// already exists its co-occurrence count is bumped and its id returned;
// the existing link type and strength are kept.
func (s *LinkService) CreateLink(ctx context.Context, projectID domain.ProjectID, from, to domain.NodeRef, linkType domain.LinkType, initialStrength float64) (uuid.UUID, error) {
	l := &domain.Link{
		ProjectID: projectID,
		From:      from,
		To:        to,
		LinkType:  linkType,
		Strength:  domain.ClampStrength(initialStrength),
	}
	if err := l.Validate(); err != nil {
		return uuid.Nil, err
	}

	err := withRetry(ctx, s.logger, "create link", func() error {
		l.ID = uuid.Nil
		return s.links.UpsertLink(ctx, l)
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("create link %s -> %s: %w", from, to, err)
	}

	if l.CoOccurrenceCount > 1 {
		s.logger.Debug("link co-occurrence incremented",
			zap.String("project_id", string(projectID)),
			zap.String("link_id", l.ID.String()),
			zap.Int("co_occurrence_count", l.CoOccurrenceCount))
	}
	return l.ID, nil
}

// StrengthenLink raises the link strength by amount, capped at 1. Link ids
// are global; callers acting for a project use StrengthenProjectLink.
func (s *LinkService) StrengthenLink(ctx context.Context, id uuid.UUID, amount float64) (float64, error) {
	if err := validateAmount(amount); err != nil {
		return 0, err
	}
	return s.adjust(ctx, "strengthen link", id, amount)
}

// WeakenLink lowers the link strength by amount, floored at 0. The link
// is never deleted here.
func (s *LinkService) WeakenLink(ctx context.Context, id uuid.UUID, amount float64) (float64, error) {
	if err := validateAmount(amount); err != nil {
		return 0, err
	}
	return s.adjust(ctx, "weaken link", id, -amount)
}

// StrengthenProjectLink is StrengthenLink restricted to links owned by
// projectID. A link of another project is reported as ErrNotFound.
func (s *LinkService) StrengthenProjectLink(ctx context.Context, projectID domain.ProjectID, id uuid.UUID, amount float64) (float64, error) {
	if _, err := s.GetProjectLink(ctx, projectID, id); err != nil {
		return 0, err
	}
	return s.StrengthenLink(ctx, id, amount)
}

func (s *LinkService) WeakenProjectLink(ctx context.Context, projectID domain.ProjectID, id uuid.UUID, amount float64) (float64, error) {
	if _, err := s.GetProjectLink(ctx, projectID, id); err != nil {
		return 0, err
	}
	return s.WeakenLink(ctx, id, amount)
}

func (s *LinkService) adjust(ctx context.Context, op string, id uuid.UUID, delta float64) (float64, error) {
	var strength float64
	err := withRetry(ctx, s.logger, op, func() error {
		var err error
		strength, err = s.links.AdjustStrength(ctx, id, delta)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", op, id, err)
	}
	return strength, nil
}

func validateAmount(amount float64) error {
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("%w: amount must be a non-negative number, got %v", domain.ErrInvalidOperation, amount)
	}
	return nil
}

// ReinforceLink applies the saturating update s + rate*(1-s) to the link
// from -> to, creating it with strength rate when it does not exist. It
// reports whether the link was created.
func (s *LinkService) ReinforceLink(ctx context.Context, projectID domain.ProjectID, from, to domain.NodeRef, linkType domain.LinkType, rate float64) (*domain.Link, bool, error) {
	candidate := domain.Link{ProjectID: projectID, From: from, To: to, LinkType: linkType}
	if err := candidate.Validate(); err != nil {
		return nil, false, err
	}
	rate = domain.ClampStrength(rate)

	var (
		link    *domain.Link
		created bool
	)
	err := withRetry(ctx, s.logger, "reinforce link", func() error {
		var err error
		link, created, err = s.links.ReinforceLink(ctx, projectID, from, to, linkType, rate)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("reinforce link %s -> %s: %w", from, to, err)
	}
	return link, created, nil
}

func (s *LinkService) GetLink(ctx context.Context, id uuid.UUID) (*domain.Link, error) {
	return s.links.GetLink(ctx, id)
}

// GetProjectLink loads a link by id and reports ErrNotFound unless it
// belongs to projectID. A link never changes project.
func (s *LinkService) GetProjectLink(ctx context.Context, projectID domain.ProjectID, id uuid.UUID) (*domain.Link, error) {
	if err := domain.ValidateProject(projectID); err != nil {
		return nil, err
	}
	l, err := s.links.GetLink(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.ProjectID != projectID {
		return nil, fmt.Errorf("%w: link %s in project %s", domain.ErrNotFound, id, projectID)
	}
	return l, nil
}

func (s *LinkService) GetLinkBetween(ctx context.Context, projectID domain.ProjectID, from, to domain.NodeRef) (*domain.Link, error) {
	return s.links.GetLinkBetween(ctx, projectID, from, to)
}

// GetNeighbors returns every link touching node in either direction with
// strength >= minStrength, strongest first.
func (s *LinkService) GetNeighbors(ctx context.Context, projectID domain.ProjectID, node domain.NodeRef, minStrength float64) ([]domain.Link, error) {
	if err := ValidateNode(projectID, node); err != nil {
		return nil, err
	}
	links, err := s.links.GetNeighbors(ctx, projectID, []domain.NodeRef{node}, minStrength)
	if err != nil {
		return nil, fmt.Errorf("get neighbors of %s: %w", node, err)
	}
	return links, nil
}

// FindPath returns the shortest chain of links (by hop count) joining from
// and to, treating links as undirected. Any stored link counts regardless of
// strength. The bool is false when no path exists.
func (s *LinkService) FindPath(ctx context.Context, projectID domain.ProjectID, from, to domain.NodeRef) ([]domain.Link, bool, error) {
	if err := ValidateNode(projectID, from); err != nil {
		return nil, false, err
	}
	if err := to.Validate(); err != nil {
		return nil, false, err
	}
	if from == to {
		return []domain.Link{}, true, nil
	}

	parent := map[domain.NodeRef]pathStep{}
	visited := map[domain.NodeRef]bool{from: true}
	frontier := []domain.NodeRef{from}

	for len(frontier) > 0 {
		links, err := s.links.GetNeighbors(ctx, projectID, frontier, 0)
		if err != nil {
			return nil, false, fmt.Errorf("find path %s -> %s: %w", from, to, err)
		}

		inFrontier := make(map[domain.NodeRef]bool, len(frontier))
		for _, n := range frontier {
			inFrontier[n] = true
		}

		var next []domain.NodeRef
		for _, l := range links {
			for _, end := range [2]domain.NodeRef{l.From, l.To} {
				if !inFrontier[end] {
					continue
				}
				other := l.Other(end)
				if visited[other] {
					continue
				}
				visited[other] = true
				parent[other] = pathStep{prev: end, via: l}
				if other == to {
					return buildPath(parent, from, to), true, nil
				}
				next = append(next, other)
			}
		}
		frontier = next
	}
	return nil, false, nil
}

type pathStep struct {
	prev domain.NodeRef
	via  domain.Link
}

func buildPath(parent map[domain.NodeRef]pathStep, from, to domain.NodeRef) []domain.Link {
	var path []domain.Link
	for n := to; n != from; {
		st := parent[n]
		path = append(path, st.via)
		n = st.prev
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func (s *LinkService) GetLinkCount(ctx context.Context, projectID domain.ProjectID, minStrength float64) (int, error) {
	if err := domain.ValidateProject(projectID); err != nil {
		return 0, err
	}
	return s.links.CountLinks(ctx, projectID, minStrength)
}

// PruneWeakLinks permanently deletes links with strength <= threshold.
func (s *LinkService) PruneWeakLinks(ctx context.Context, projectID domain.ProjectID, threshold float64) (int, error) {
	if err := domain.ValidateProject(projectID); err != nil {
		return 0, err
	}
	unlock := s.locks.lock(projectID)
	defer unlock()

	n, err := s.links.PruneLinks(ctx, projectID, threshold)
	if err != nil {
		return 0, fmt.Errorf("prune links: %w", err)
	}
	if n > 0 {
		s.logger.Info("pruned weak links",
			zap.String("project_id", string(projectID)),
			zap.Float64("threshold", threshold),
			zap.Int("pruned", n))
	}
	return n, nil
}

// DecayAllLinks subtracts rate from every link strength in the project,
// flooring at 0. Links that reach 0 are kept until pruned.
func (s *LinkService) DecayAllLinks(ctx context.Context, projectID domain.ProjectID, rate float64) (int, error) {
	if err := domain.ValidateProject(projectID); err != nil {
		return 0, err
	}
	if err := validateAmount(rate); err != nil {
		return 0, err
	}
	unlock := s.locks.lock(projectID)
	defer unlock()

	n, err := s.links.DecayLinks(ctx, projectID, rate)
	if err != nil {
		return 0, fmt.Errorf("decay links: %w", err)
	}
	s.logger.Debug("decayed links",
		zap.String("project_id", string(projectID)),
		zap.Float64("rate", rate),
		zap.Int("affected", n))
	return n, nil
}

// DeleteLinksForNode removes every link touching node. Callers use it
// when the underlying memory item is deleted.
func (s *LinkService) DeleteLinksForNode(ctx context.Context, projectID domain.ProjectID, node domain.NodeRef) (int, error) {
	if err := ValidateNode(projectID, node); err != nil {
		return 0, err
	}
	return s.links.DeleteLinksForNode(ctx, projectID, node)
}

// ValidateNode checks a project-scoped node address.
func ValidateNode(projectID domain.ProjectID, node domain.NodeRef) error {
	if err := domain.ValidateProject(projectID); err != nil {
		return err
	}
	return node.Validate()
}

// AverageStrength is the mean strength over every link in the project.
func (s *LinkService) AverageStrength(ctx context.Context, projectID domain.ProjectID) (float64, error) {
	return s.links.AverageStrength(ctx, projectID)
}

func (s *LinkService) ListProjects(ctx context.Context) ([]domain.ProjectID, error) {
	return s.links.ListProjects(ctx)
}
