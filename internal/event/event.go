package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind is an editor trigger that may change a node's preview connectors.
type Kind string

const (
	NodeConfigured Kind = "node_configured"
	NodeMoved      Kind = "node_moved"
	NodeDeleted    Kind = "node_deleted"
	EdgeConnected  Kind = "edge_connected"
	EdgeRemoved    Kind = "edge_removed"
	StateChanged   Kind = "state_changed"
	LayoutReady    Kind = "layout_ready"
)

// Event is the canonical input model for editor triggers.
type Event struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	NodeID     string    `json:"node_id,omitempty"` // source node for edge events
	State      string    `json:"state,omitempty"`   // requested connector state
	Force      bool      `json:"force,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New stamps an event with a fresh id and the current time.
func New(kind Kind, nodeID string) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		NodeID:     nodeID,
		OccurredAt: time.Now(),
	}
}

// Validate reports events that cannot be routed.
func (e Event) Validate() error {
	switch e.Kind {
	case LayoutReady:
		return nil
	case NodeConfigured, NodeMoved, NodeDeleted, EdgeConnected, EdgeRemoved, StateChanged:
		if e.NodeID == "" {
			return fmt.Errorf("event %s: node_id is required for %s", e.ID, e.Kind)
		}
		return nil
	}
	return fmt.Errorf("event %s: unknown kind %q", e.ID, e.Kind)
}
