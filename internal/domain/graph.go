package domain

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

type LinkType string

const (
	LinkSemantic   LinkType = "semantic"
	LinkTemporal   LinkType = "temporal"
	LinkCausal     LinkType = "causal"
	LinkSimilarity LinkType = "similarity"
)

func ValidLinkType(t string) bool {
	switch LinkType(t) {
	case LinkSemantic, LinkTemporal, LinkCausal, LinkSimilarity:
		return true
	}
	return false
}

// Link is a directed, weighted association between two memory items.
// Storage is directed but neighborhood queries treat it symmetrically.
type Link struct {
	ID                 uuid.UUID `json:"id"`
	ProjectID          ProjectID `json:"project_id"`
	From               NodeRef   `json:"from"`
	To                 NodeRef   `json:"to"`
	LinkType           LinkType  `json:"link_type"`
	Strength           float64   `json:"link_strength"`
	CoOccurrenceCount  int       `json:"co_occurrence_count"`
	CreatedAt          time.Time `json:"created_at"`
	LastStrengthenedAt time.Time `json:"last_strengthened_at"`
}

// Touches reports whether n is either endpoint of the link.
func (l Link) Touches(n NodeRef) bool {
	return l.From == n || l.To == n
}

// Other returns the endpoint opposite to n.
func (l Link) Other(n NodeRef) NodeRef {
	if l.From == n {
		return l.To
	}
	return l.From
}

func (l Link) Validate() error {
	if err := ValidateProject(l.ProjectID); err != nil {
		return err
	}
	if err := l.From.Validate(); err != nil {
		return err
	}
	if err := l.To.Validate(); err != nil {
		return err
	}
	if l.From == l.To {
		return fmt.Errorf("%w: self-link on %s", ErrInvalidOperation, l.From)
	}
	if !ValidLinkType(string(l.LinkType)) {
		return fmt.Errorf("%w: unknown link type %q", ErrInvalidOperation, l.LinkType)
	}
	return nil
}

// ClampStrength restricts a strength to [0, 1].
func ClampStrength(s float64) float64 {
	if math.IsNaN(s) || s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// LinkStore persists the link graph. Implementations must make
// UpsertLink, ReinforceLink and AdjustStrength atomic per row.
type LinkStore interface {
	// UpsertLink inserts l, or increments co_occurrence_count of the link
	// that already joins the same endpoints. l is overwritten with the
	// stored row.
	UpsertLink(ctx context.Context, l *Link) error
	// ReinforceLink applies strength = min(1, s + rate*(1-s)) to the link
	// joining from and to, inserting it with strength rate when absent.
	ReinforceLink(ctx context.Context, projectID ProjectID, from, to NodeRef, linkType LinkType, rate float64) (*Link, bool, error)
	GetLink(ctx context.Context, id uuid.UUID) (*Link, error)
	GetLinkBetween(ctx context.Context, projectID ProjectID, from, to NodeRef) (*Link, error)
	// AdjustStrength adds delta to the strength and clamps to [0, 1].
	AdjustStrength(ctx context.Context, id uuid.UUID, delta float64) (float64, error)
	// GetNeighbors returns every link touching any of nodes with
	// strength >= minStrength, strongest first.
	GetNeighbors(ctx context.Context, projectID ProjectID, nodes []NodeRef, minStrength float64) ([]Link, error)
	CountLinks(ctx context.Context, projectID ProjectID, minStrength float64) (int, error)
	PruneLinks(ctx context.Context, projectID ProjectID, threshold float64) (int, error)
	DecayLinks(ctx context.Context, projectID ProjectID, rate float64) (int, error)
	AverageStrength(ctx context.Context, projectID ProjectID) (float64, error)
	DeleteLinksForNode(ctx context.Context, projectID ProjectID, node NodeRef) (int, error)
	ListProjects(ctx context.Context) ([]ProjectID, error)
}
