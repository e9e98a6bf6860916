package service

import (
	"github.com/Harshitk-cp/synapse/internal/domain"
	"go.uber.org/zap"
)

// Engine wires the link, propagation and Hebbian services over one
// backend. The services share a single set of per-project maintenance
// locks.
type Engine struct {
	Links       *LinkService
	Propagation *PropagationService
	Hebbian     *HebbianService
	Maintenance *MaintenanceService
}

func NewEngine(backend domain.Backend, hebbianCfg HebbianConfig, maintenanceCfg MaintenanceConfig, logger *zap.Logger) (*Engine, error) {
	locks := newProjectLocks()

	links := NewLinkService(backend.Links, logger.Named("links"))
	links.locks = locks

	propagation := NewPropagationService(backend.Links, backend.Activations, logger.Named("propagation"))
	propagation.locks = locks

	hebbian, err := NewHebbianService(links, backend.Accesses, backend.Stats, hebbianCfg, logger.Named("hebbian"))
	if err != nil {
		return nil, err
	}
	hebbian.locks = locks

	return &Engine{
		Links:       links,
		Propagation: propagation,
		Hebbian:     hebbian,
		Maintenance: NewMaintenanceService(links, hebbian, propagation, maintenanceCfg, logger.Named("maintenance")),
	}, nil
}
