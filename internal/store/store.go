package store

import (
	"github.com/Harshitk-cp/synapse/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewBackend returns the PostgreSQL implementations of every store.
func NewBackend(db *pgxpool.Pool) domain.Backend {
	return domain.Backend{
		Links:       NewLinkStore(db),
		Activations: NewActivationStore(db),
		Accesses:    NewAccessLogStore(db),
		Stats:       NewHebbianStatsStore(db),
	}
}
