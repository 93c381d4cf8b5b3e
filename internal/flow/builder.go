package flow

import (
	"fmt"

	"github.com/gyaneshwarpardhi/previewline/internal/config"
)

// Build constructs a Graph from a validated Config's flow document.
func Build(cfg *config.Config) (*Graph, error) {
	g := NewGraph()
	for _, nd := range cfg.Nodes {
		g.AddNode(&Node{
			ID:       nd.ID,
			Type:     nd.Type,
			Shape:    nd.Shape,
			Position: Point{X: nd.X, Y: nd.Y},
			Size:     Size{Width: nd.Width, Height: nd.Height},
			Data:     nd.Data,
		})
	}
	for _, ed := range cfg.Edges {
		e := Edge{
			ID:       ed.ID,
			Source:   ed.Source,
			Target:   ed.Target,
			BranchID: ed.BranchID,
			Preview:  ed.Preview,
		}
		if err := g.AddEdge(e); err != nil {
			return nil, fmt.Errorf("edge %s: %w", ed.ID, err)
		}
	}
	return g, nil
}
