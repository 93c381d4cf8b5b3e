package validator

import (
	"fmt"
	"math"

	"github.com/gyaneshwarpardhi/previewline/internal/flow"
)

const (
	DefaultAxisTolerance     = 5.0
	DefaultDistanceTolerance = 10.0
)

// Coordinates checks that a preview connector starts at its node's output
// anchor. The zero value uses the default tolerances.
type Coordinates struct {
	AxisTolerance     float64
	DistanceTolerance float64
}

// Deviation is the offset of the actual start point from the anchor.
type Deviation struct {
	DX       float64 `json:"dx"`
	DY       float64 `json:"dy"`
	Distance float64 `json:"distance"`
}

// CoordinateResult describes one connector's start point check.
type CoordinateResult struct {
	EdgeID     string     `json:"edgeId,omitempty"`
	IsValid    bool       `json:"isValid"`
	Expected   flow.Point `json:"expected"`
	Actual     flow.Point `json:"actual"`
	Deviations Deviation  `json:"deviations"`
	Errors     []string   `json:"errors,omitempty"`
}

func (c Coordinates) tolerances() (axis, dist float64) {
	axis, dist = c.AxisTolerance, c.DistanceTolerance
	if axis <= 0 {
		axis = DefaultAxisTolerance
	}
	if dist <= 0 {
		dist = DefaultDistanceTolerance
	}
	return axis, dist
}

// Check compares the rendered start point of e with n's bottom-center anchor.
func (c Coordinates) Check(n *flow.Node, e flow.Edge) CoordinateResult {
	res := CoordinateResult{EdgeID: e.ID}
	if n == nil {
		res.Errors = append(res.Errors, "node is nil")
		return res
	}
	if !finite(n.Position.X, n.Position.Y, n.Size.Width, n.Size.Height) {
		res.Errors = append(res.Errors, "node geometry is not finite")
		return res
	}
	res.Expected = n.OutputAnchor()

	if e.Rendered == nil {
		res.Errors = append(res.Errors, "connector has no rendered object")
		return res
	}
	actual, ok := e.Rendered.SourcePoint()
	if !ok || !finite(actual.X, actual.Y) {
		res.Errors = append(res.Errors, "connector start point unavailable")
		return res
	}
	res.Actual = actual

	axis, dist := c.tolerances()
	dx := math.Abs(actual.X - res.Expected.X)
	dy := math.Abs(actual.Y - res.Expected.Y)
	res.Deviations = Deviation{DX: dx, DY: dy, Distance: math.Hypot(dx, dy)}

	if dx > axis {
		res.Errors = append(res.Errors, fmt.Sprintf("x deviation %.2f exceeds %.2f", dx, axis))
	}
	if dy > axis {
		res.Errors = append(res.Errors, fmt.Sprintf("y deviation %.2f exceeds %.2f", dy, axis))
	}
	if res.Deviations.Distance > dist {
		res.Errors = append(res.Errors, fmt.Sprintf("distance %.2f exceeds %.2f", res.Deviations.Distance, dist))
	}
	res.IsValid = len(res.Errors) == 0
	return res
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
