package classify_test

import (
	"testing"

	"github.com/gyaneshwarpardhi/previewline/internal/branch"
	"github.com/gyaneshwarpardhi/previewline/internal/classify"
	"github.com/gyaneshwarpardhi/previewline/internal/flow"
)

type handle struct {
	removed bool
}

func (h *handle) Removed() bool                   { return h.removed }
func (h *handle) SourcePoint() (flow.Point, bool) { return flow.Point{}, false }

func newNodes(t *testing.T) *classify.Nodes {
	t.Helper()
	cache := branch.NewCache(branch.WithSweepInterval(-1))
	t.Cleanup(cache.Stop)
	return classify.NewNodes(cache, nil)
}

func TestNodes_Classify(t *testing.T) {
	nodes := newNodes(t)
	cases := []struct {
		name         string
		node         *flow.Node
		wantCategory classify.Category
		wantRequired int
	}{
		{"start", &flow.Node{ID: "s", Type: flow.TypeStart}, classify.CategoryStart, 1},
		{"end", &flow.Node{ID: "e", Type: flow.TypeEnd}, classify.CategoryEnd, 0},
		{"plain", &flow.Node{ID: "p", Type: "sms"}, classify.CategorySingle, 1},
		{"plain unconfigured", &flow.Node{ID: "u", Type: "sms", Data: map[string]interface{}{"isConfigured": false}}, classify.CategorySingle, 0},
		{"nested unconfigured", &flow.Node{ID: "nu", Type: "wait", Data: map[string]interface{}{
			"config": map[string]interface{}{"isConfigured": false},
		}}, classify.CategorySingle, 0},
		{"unknown type", &flow.Node{ID: "x", Data: map[string]interface{}{"type": 42}}, classify.CategorySingle, 1},
		{"event split", &flow.Node{ID: "ev", Data: map[string]interface{}{"nodeType": "event-split", "yesLabel": "y"}}, classify.CategoryBranching, 2},
		{"unconfigured split", &flow.Node{ID: "as", Type: flow.TypeAudienceSplit}, classify.CategoryBranching, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := nodes.Classify(tc.node, false)
			if got.Category != tc.wantCategory {
				t.Errorf("category = %s, want %s", got.Category, tc.wantCategory)
			}
			if len(got.Required) != tc.wantRequired {
				t.Errorf("required = %v, want %d branches", got.Required, tc.wantRequired)
			}
		})
	}
}

func TestNodes_ImplicitBranchID(t *testing.T) {
	got := newNodes(t).Classify(&flow.Node{ID: "s", Type: "start"}, false)
	if len(got.Required) != 1 || got.Required[0].ID != classify.ImplicitBranch {
		t.Fatalf("required = %+v", got.Required)
	}
}

func TestEdges_Branching(t *testing.T) {
	live := &handle{}
	edges := []flow.Edge{
		{ID: "r1", Source: "n", Target: "t1", BranchID: "a"},
		{ID: "p1", Source: "n", BranchID: "b", Preview: true, Rendered: live},
		{ID: "p2", Source: "n", BranchID: "b", Rendered: live},
		{ID: "gone", Source: "n", BranchID: "c", Preview: true, Rendered: &handle{removed: true}},
		{ID: "bare", Source: "n", BranchID: "c", Preview: true},
		{ID: "loose", Source: "n", Preview: true, Rendered: live},
		{ID: "real-loose", Source: "n", Target: "t2"},
		{ID: "other", Source: "m", Target: "t1", BranchID: "a"},
		{ID: "flagged", Source: "n", Target: "t3", BranchID: "d", Preview: true, Rendered: live},
	}
	set := classify.Edges(edges, "n", true)

	if got := ids(set.RealByBranch["a"]); got != "r1" {
		t.Errorf("real a = %s", got)
	}
	if got := ids(set.PreviewByBranch["b"]); got != "p1,p2" {
		t.Errorf("preview b = %s", got)
	}
	if got := ids(set.PreviewByBranch["d"]); got != "flagged" {
		t.Errorf("marker-flagged preview = %s", got)
	}
	if got := ids(set.InvalidPreview); got != "gone,bare" {
		t.Errorf("invalid = %s", got)
	}
	if got := ids(set.Unassociated); got != "loose,real-loose" {
		t.Errorf("unassociated = %s", got)
	}
}

func TestEdges_NonBranching(t *testing.T) {
	edges := []flow.Edge{
		{ID: "r", Source: "n", Target: "t", BranchID: "whatever"},
		{ID: "p", Source: "n", Preview: true, Rendered: &handle{}},
	}
	set := classify.Edges(edges, "n", false)
	if ids(set.RealByBranch[classify.ImplicitBranch]) != "r" || ids(set.PreviewByBranch[classify.ImplicitBranch]) != "p" {
		t.Errorf("implicit branch edges = %+v", set)
	}
	if len(set.Unassociated) != 0 {
		t.Errorf("non-branching node produced unassociated edges: %v", set.Unassociated)
	}
}

func ids(edges []flow.Edge) string {
	out := ""
	for i, e := range edges {
		if i > 0 {
			out += ","
		}
		out += e.ID
	}
	return out
}
