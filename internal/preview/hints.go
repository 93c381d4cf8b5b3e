package preview

import (
	"context"

	"github.com/gyaneshwarpardhi/previewline/internal/config"
	"github.com/gyaneshwarpardhi/previewline/internal/flow"
)

// Hints tells the renderer where and how to draw one connector.
type Hints struct {
	BranchID string       `json:"branchId,omitempty"`
	Label    string       `json:"label,omitempty"`
	Start    flow.Point   `json:"start"`
	End      flow.Point   `json:"end"`
	State    flow.State   `json:"state"`
	Style    config.Style `json:"style"`
	Index    int          `json:"index"`
	Count    int          `json:"count"`
}

// Renderer turns hints into drawn connectors. Implementations may block.
type Renderer interface {
	Materialize(ctx context.Context, node *flow.Node, h Hints) (flow.Rendered, error)
	Restyle(ctx context.Context, handle flow.Rendered, h Hints) error
	Discard(ctx context.Context, handle flow.Rendered) error
}

// Geometry spreads branch connectors below their node.
type Geometry struct {
	Length    float64 // default downward extent
	Spacing   float64 // horizontal distance per branch
	MaxSpread float64 // cap on the total horizontal spread
}

func geometryFrom(c config.EngineConf) Geometry {
	return Geometry{Length: c.PreviewLength, Spacing: c.BranchSpacing, MaxSpread: c.MaxSpread}
}

// Endpoints returns the start and end of the connector for the branch at
// index out of count. Branch ends fan out symmetrically around the anchor;
// the end y comes from the layout engine when it can locate the next layer.
func (g Geometry) Endpoints(n *flow.Node, index, count int, layout flow.LayoutEngine) (start, end flow.Point) {
	start = n.OutputAnchor()
	end = flow.Point{X: start.X, Y: start.Y + g.Length}

	if count > 1 {
		total := float64(count) * g.Spacing
		if g.MaxSpread > 0 && total > g.MaxSpread {
			total = g.MaxSpread
		}
		step := total / float64(count-1)
		end.X = start.X - total/2 + float64(index)*step
	}
	if loc, ok := layout.(flow.LayerLocator); ok {
		if y, ok := loc.NextLayerY(n.ID); ok {
			end.Y = y
		}
	}
	return start, end
}
