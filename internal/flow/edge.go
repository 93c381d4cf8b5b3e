package flow

// State is the interaction state of a preview connector.
type State string

const (
	StateInteractive State = "interactive"
	StateDragging    State = "dragging"
	StateConnected   State = "connected"
	StateHover       State = "hover"
	StatePending     State = "pending"
	StateInvalid     State = "invalid"
)

// Rendered is the renderer's handle for a drawn connector.
type Rendered interface {
	// Removed reports whether the graphical object has been torn down.
	Removed() bool
	// SourcePoint is the connector's rendered start point, if known.
	SourcePoint() (Point, bool)
}

// Edge is an outgoing line of a node: a real connection when Target is set
// and Preview is false, otherwise a preview connector.
type Edge struct {
	ID       string   `json:"id"`
	Source   string   `json:"source"`
	Target   string   `json:"target,omitempty"`
	BranchID string   `json:"branch_id,omitempty"`
	Preview  bool     `json:"preview,omitempty"`
	State    State    `json:"state,omitempty"`
	Rendered Rendered `json:"-"`
}

// IsReal reports whether the edge is a completed connection.
func (e Edge) IsReal() bool {
	return e.Target != "" && !e.Preview
}
