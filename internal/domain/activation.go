package domain

import (
	"context"
	"time"
)

// Activation is one node of a spreading-activation result.
type Activation struct {
	NodeRef
	Level       float64 `json:"activation_level"`
	HopDistance int     `json:"hop_distance"`
}

// ActivationState is the persisted snapshot of the last propagation that
// reached a node. It is a cache and goes stale until the next run.
type ActivationState struct {
	ProjectID   ProjectID `json:"project_id"`
	Node        NodeRef   `json:"node"`
	Level       float64   `json:"activation_level"`
	HopDistance int       `json:"hop_distance"`
	Source      NodeRef   `json:"source"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ActivationStore interface {
	// UpsertActivations writes all states in one transaction.
	UpsertActivations(ctx context.Context, projectID ProjectID, states []ActivationState) error
	GetActivation(ctx context.Context, projectID ProjectID, node NodeRef) (*ActivationState, error)
	TopActivations(ctx context.Context, projectID ProjectID, limit int) ([]ActivationState, error)
	DecayActivations(ctx context.Context, projectID ProjectID, rate float64) (int, error)
	ClearActivations(ctx context.Context, projectID ProjectID) (int, error)
}
