package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AccessEvent records that a memory item was touched. Events are
// append-only and only removed by age-based cleanup. LearnedAt is set once
// a Hebbian pass has consumed the event.
type AccessEvent struct {
	ID              uuid.UUID  `json:"id"`
	ProjectID       ProjectID  `json:"project_id"`
	Node            NodeRef    `json:"node"`
	ActivationLevel float64    `json:"activation_level"`
	AccessedAt      time.Time  `json:"accessed_at"`
	LearnedAt       *time.Time `json:"learned_at,omitempty"`
}

func (e AccessEvent) Learned() bool {
	return e.LearnedAt != nil
}

// HebbianStats are per-project learning counters.
type HebbianStats struct {
	ProjectID         ProjectID  `json:"project_id"`
	TotalAccesses     int64      `json:"total_accesses"`
	LinksCreated      int64      `json:"links_created"`
	LinksStrengthened int64      `json:"links_strengthened"`
	LinksWeakened     int64      `json:"links_weakened"`
	AvgLinkStrength   float64    `json:"avg_link_strength"`
	LastRunAt         *time.Time `json:"last_run_at,omitempty"`
}

type AccessLogStore interface {
	// AppendAccess stores e and bumps the project's total_accesses
	// counter in the same transaction.
	AppendAccess(ctx context.Context, e *AccessEvent) error
	// ListAccesses returns events with from <= accessed_at <= to, oldest
	// first, ties in insertion order. A zero to leaves the range open.
	ListAccesses(ctx context.Context, projectID ProjectID, from, to time.Time) ([]AccessEvent, error)
	// ListUnlearned returns events no Hebbian pass has consumed yet, in
	// the same order as ListAccesses.
	ListUnlearned(ctx context.Context, projectID ProjectID) ([]AccessEvent, error)
	// MarkLearned stamps the given events as consumed. Events already
	// marked are left alone.
	MarkLearned(ctx context.Context, projectID ProjectID, ids []uuid.UUID, at time.Time) (int, error)
	DeleteAccessesBefore(ctx context.Context, projectID ProjectID, cutoff time.Time) (int, error)
	ListProjects(ctx context.Context) ([]ProjectID, error)
}

type HebbianStatsStore interface {
	// GetStats returns zeroed stats for a project with no history.
	GetStats(ctx context.Context, projectID ProjectID) (*HebbianStats, error)
	RecordLearningRun(ctx context.Context, projectID ProjectID, created, strengthened int, avgStrength float64, at time.Time) error
	RecordWeakened(ctx context.Context, projectID ProjectID, weakened int, avgStrength float64) error
}

// Backend groups the stores one engine runs against.
type Backend struct {
	Links       LinkStore
	Activations ActivationStore
	Accesses    AccessLogStore
	Stats       HebbianStatsStore
}
