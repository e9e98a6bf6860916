package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/Harshitk-cp/synapse/internal/domain"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultMaintenanceInterval = 1 * time.Hour
	maintenanceRunTimeout      = 10 * time.Minute

	DefaultLinkDecayRate       = 0.01
	DefaultActivationDecayRate = 0.1
	DefaultPruneThreshold      = 0.05
	DefaultAccessRetentionDays = 30
)

type MaintenanceConfig struct {
	Interval            time.Duration
	LinkDecayRate       float64
	ActivationDecayRate float64
	PruneThreshold      float64
	AccessRetentionDays int
	// ProjectsPerSecond paces the sweep so maintenance does not starve
	// foreground traffic. Zero means unlimited.
	ProjectsPerSecond float64
	// BreakerMaxFailures consecutive storage failures open the breaker and
	// end the sweep early; it is retried after BreakerTimeout.
	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration
}

func DefaultMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		Interval:            defaultMaintenanceInterval,
		LinkDecayRate:       DefaultLinkDecayRate,
		ActivationDecayRate: DefaultActivationDecayRate,
		PruneThreshold:      DefaultPruneThreshold,
		AccessRetentionDays: DefaultAccessRetentionDays,
		ProjectsPerSecond:   10,
		BreakerMaxFailures:  3,
		BreakerTimeout:      30 * time.Second,
	}
}

type MaintenanceReport struct {
	Projects           int `json:"projects"`
	Failed             int `json:"failed"`
	Skipped            int `json:"skipped"`
	LinksReinforced    int `json:"links_reinforced"`
	LinksDecayed       int `json:"links_decayed"`
	ActivationsDecayed int `json:"activations_decayed"`
	LinksPruned        int `json:"links_pruned"`
	AccessesCleared    int `json:"accesses_cleared"`
}

func (r *MaintenanceReport) add(o *MaintenanceReport) {
	r.LinksReinforced += o.LinksReinforced
	r.LinksDecayed += o.LinksDecayed
	r.ActivationsDecayed += o.ActivationsDecayed
	r.LinksPruned += o.LinksPruned
	r.AccessesCleared += o.AccessesCleared
}

// MaintenanceService is the background worker that runs the learning and
// forgetting cycle for every project: Hebbian pass, link decay, activation
// decay, pruning and access-log cleanup.
type MaintenanceService struct {
	links       *LinkService
	hebbian     *HebbianService
	propagation *PropagationService
	cfg         MaintenanceConfig
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	logger      *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewMaintenanceService(links *LinkService, hebbian *HebbianService, propagation *PropagationService, cfg MaintenanceConfig, logger *zap.Logger) *MaintenanceService {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultMaintenanceInterval
	}
	if cfg.BreakerMaxFailures == 0 {
		cfg.BreakerMaxFailures = 3
	}

	limit := rate.Inf
	if cfg.ProjectsPerSecond > 0 {
		limit = rate.Limit(cfg.ProjectsPerSecond)
	}

	s := &MaintenanceService{
		links:       links,
		hebbian:     hebbian,
		propagation: propagation,
		cfg:         cfg,
		limiter:     rate.NewLimiter(limit, 1),
		logger:      logger,
		interval:    cfg.Interval,
		stopCh:      make(chan struct{}),
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "maintenance",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
		},
		// Only storage failures count against the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, domain.ErrStorage)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("maintenance circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return s
}

func (s *MaintenanceService) SetInterval(d time.Duration) {
	s.interval = d
}

func (s *MaintenanceService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("maintenance worker started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), maintenanceRunTimeout)
				s.RunOnce(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("maintenance worker stopped")
				return
			}
		}
	}()
}

func (s *MaintenanceService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// RunOnce sweeps every known project once. Per-project failures are
// logged and counted; the sweep stops early when the breaker opens or
// ctx ends.
func (s *MaintenanceService) RunOnce(ctx context.Context) *MaintenanceReport {
	report := &MaintenanceReport{}

	projects, err := s.listProjects(ctx)
	if err != nil {
		s.logger.Error("failed to list projects for maintenance", zap.Error(err))
		return report
	}

	for i, projectID := range projects {
		if err := s.limiter.Wait(ctx); err != nil {
			report.Skipped += len(projects) - i
			s.logger.Warn("maintenance sweep interrupted", zap.Error(err))
			break
		}

		result, err := s.breaker.Execute(func() (interface{}, error) {
			return s.MaintainProject(ctx, projectID)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			report.Skipped += len(projects) - i
			s.logger.Warn("maintenance sweep halted by circuit breaker",
				zap.Int("remaining", len(projects)-i))
			break
		}

		report.Projects++
		if err != nil {
			report.Failed++
			s.logger.Error("maintenance failed for project",
				zap.String("project_id", string(projectID)),
				zap.Error(err))
		}
		if r, ok := result.(*MaintenanceReport); ok && r != nil {
			report.add(r)
		}
	}

	s.logger.Info("maintenance sweep complete",
		zap.Int("projects", report.Projects),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Int("links_reinforced", report.LinksReinforced),
		zap.Int("links_decayed", report.LinksDecayed),
		zap.Int("links_pruned", report.LinksPruned),
		zap.Int("accesses_cleared", report.AccessesCleared))
	return report
}

// MaintainProject runs one learning and forgetting cycle for projectID.
// The partial report is returned alongside the first error.
func (s *MaintenanceService) MaintainProject(ctx context.Context, projectID domain.ProjectID) (*MaintenanceReport, error) {
	r := &MaintenanceReport{}
	var err error

	if r.LinksReinforced, err = s.hebbian.DetectAndStrengthen(ctx, projectID); err != nil {
		return r, err
	}
	if s.cfg.LinkDecayRate > 0 {
		if r.LinksDecayed, err = s.hebbian.ApplyDecay(ctx, projectID, s.cfg.LinkDecayRate); err != nil {
			return r, err
		}
	}
	if s.cfg.ActivationDecayRate > 0 {
		if r.ActivationsDecayed, err = s.propagation.DecayAllActivations(ctx, projectID, s.cfg.ActivationDecayRate); err != nil {
			return r, err
		}
	}
	if r.LinksPruned, err = s.links.PruneWeakLinks(ctx, projectID, s.cfg.PruneThreshold); err != nil {
		return r, err
	}
	if s.cfg.AccessRetentionDays > 0 {
		if r.AccessesCleared, err = s.hebbian.ClearOldAccesses(ctx, projectID, s.cfg.AccessRetentionDays); err != nil {
			return r, err
		}
	}
	return r, nil
}

// listProjects returns the sorted union of projects with links and
// projects with logged accesses.
func (s *MaintenanceService) listProjects(ctx context.Context) ([]domain.ProjectID, error) {
	fromLinks, err := s.links.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	fromAccesses, err := s.hebbian.ListProjects(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[domain.ProjectID]bool, len(fromLinks)+len(fromAccesses))
	var projects []domain.ProjectID
	for _, p := range append(fromLinks, fromAccesses...) {
		if !seen[p] {
			seen[p] = true
			projects = append(projects, p)
		}
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i] < projects[j] })
	return projects, nil
}
