package domain

import (
	"fmt"
	"strings"
)

// ProjectID is the tenancy boundary. Every entity and operation is
// partitioned by it.
type ProjectID string

// Layer identifies which memory store a memory id belongs to.
type Layer string

const (
	LayerEpisodic    Layer = "episodic"
	LayerSemantic    Layer = "semantic"
	LayerProcedural  Layer = "procedural"
	LayerProspective Layer = "prospective"
)

// Layers lists every supported layer.
var Layers = []Layer{LayerEpisodic, LayerSemantic, LayerProcedural, LayerProspective}

func (l Layer) Valid() bool {
	switch l {
	case LayerEpisodic, LayerSemantic, LayerProcedural, LayerProspective:
		return true
	}
	return false
}

// ParseLayer converts a free-form tag into a Layer.
func ParseLayer(s string) (Layer, error) {
	l := Layer(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("%w: unknown layer %q", ErrInvalidOperation, s)
	}
	return l, nil
}

// NodeRef addresses a single memory item in the association graph.
type NodeRef struct {
	MemoryID string `json:"memory_id"`
	Layer    Layer  `json:"layer"`
}

// Node is shorthand for building a NodeRef.
func Node(memoryID string, layer Layer) NodeRef {
	return NodeRef{MemoryID: memoryID, Layer: layer}
}

func (n NodeRef) String() string {
	return string(n.Layer) + ":" + n.MemoryID
}

// Less orders nodes by layer, then memory id.
func (n NodeRef) Less(o NodeRef) bool {
	if n.Layer != o.Layer {
		return n.Layer < o.Layer
	}
	return n.MemoryID < o.MemoryID
}

func (n NodeRef) Validate() error {
	if n.MemoryID == "" {
		return fmt.Errorf("%w: memory_id is required", ErrInvalidOperation)
	}
	if !n.Layer.Valid() {
		return fmt.Errorf("%w: unknown layer %q", ErrInvalidOperation, n.Layer)
	}
	return nil
}

func ValidateProject(p ProjectID) error {
	if p == "" {
		return fmt.Errorf("%w: project_id is required", ErrInvalidOperation)
	}
	return nil
}
