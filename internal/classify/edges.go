package classify

import "github.com/gyaneshwarpardhi/previewline/internal/flow"

// EdgeSet is a node's outgoing edges partitioned by role and branch id.
type EdgeSet struct {
	RealByBranch    map[string][]flow.Edge
	PreviewByBranch map[string][]flow.Edge
	// InvalidPreview holds preview records whose drawn object is missing or
	// torn down.
	InvalidPreview []flow.Edge
	// Unassociated holds edges of a branching node that name no branch.
	Unassociated []flow.Edge
}

// Edges partitions the edges leaving sourceID. Edges of other nodes are
// ignored. On non-branching nodes every edge serves the implicit branch.
func Edges(edges []flow.Edge, sourceID string, branching bool) EdgeSet {
	set := EdgeSet{
		RealByBranch:    make(map[string][]flow.Edge),
		PreviewByBranch: make(map[string][]flow.Edge),
	}
	for _, e := range edges {
		if e.Source != sourceID {
			continue
		}
		isReal := e.IsReal()
		if !isReal && !validPreview(e) {
			set.InvalidPreview = append(set.InvalidPreview, e)
			continue
		}

		key := ImplicitBranch
		if branching {
			if e.BranchID == "" {
				set.Unassociated = append(set.Unassociated, e)
				continue
			}
			key = e.BranchID
		}
		if isReal {
			set.RealByBranch[key] = append(set.RealByBranch[key], e)
		} else {
			set.PreviewByBranch[key] = append(set.PreviewByBranch[key], e)
		}
	}
	return set
}

func validPreview(e flow.Edge) bool {
	return e.ID != "" && e.Rendered != nil && !e.Rendered.Removed()
}
