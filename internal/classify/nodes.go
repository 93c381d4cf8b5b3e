// Package classify sorts nodes into categories with their required
// branches, and partitions a node's outgoing edges by the branch they serve.
package classify

import (
	"log/slog"

	"github.com/gyaneshwarpardhi/previewline/internal/branch"
	"github.com/gyaneshwarpardhi/previewline/internal/flow"
)

// Category groups node types by how many outputs they need.
type Category string

const (
	CategoryStart     Category = "start"
	CategoryEnd       Category = "end"
	CategoryBranching Category = "branching"
	CategorySingle    Category = "single"
)

// ImplicitBranch is the branch id of the only output of a non-branching node.
const ImplicitBranch = ""

// BranchSource supplies required branches for branching node types.
// *branch.Cache satisfies it.
type BranchSource interface {
	Branching(nodeType string) bool
	Get(nodeID, nodeType string, cfg map[string]interface{}, forceRefresh bool) []branch.Branch
}

// NodeClass is the classification of one node.
type NodeClass struct {
	NodeID   string
	Type     flow.TypeResolution
	Category Category
	Required []branch.Branch
}

// Branching reports whether edges of this node are keyed by branch id.
func (c NodeClass) Branching() bool { return c.Category == CategoryBranching }

// Nodes classifies nodes, delegating branch extraction to a BranchSource.
type Nodes struct {
	branches BranchSource
	log      *slog.Logger
}

func NewNodes(src BranchSource, log *slog.Logger) *Nodes {
	if log == nil {
		log = slog.Default()
	}
	return &Nodes{branches: src, log: log}
}

// Classify never fails: a node whose type cannot be resolved is treated as
// a single-output node.
func (c *Nodes) Classify(n *flow.Node, refresh bool) NodeClass {
	id, _ := flow.ResolveID(n)
	res := flow.ResolveType(n)
	class := NodeClass{NodeID: id, Type: res}

	if !res.Known {
		c.log.Debug("node type unresolved, treating as single output", "node_id", id)
		class.Category = CategorySingle
		class.Required = implicit(n)
		return class
	}

	switch {
	case res.Type == flow.TypeEnd:
		class.Category = CategoryEnd
	case c.branches != nil && c.branches.Branching(res.Type):
		class.Category = CategoryBranching
		class.Required = c.branches.Get(id, res.Type, n.Data, refresh)
	case res.Type == flow.TypeStart:
		class.Category = CategoryStart
		class.Required = implicit(n)
	default:
		class.Category = CategorySingle
		class.Required = implicit(n)
	}
	return class
}

// implicit returns the single unnamed branch unless the node is explicitly
// marked unconfigured.
func implicit(n *flow.Node) []branch.Branch {
	if n != nil && unconfigured(n.Data) {
		return nil
	}
	return []branch.Branch{{ID: ImplicitBranch, Order: 1}}
}

func unconfigured(data map[string]interface{}) bool {
	if v, ok := data["isConfigured"]; ok && v != nil {
		return v == false
	}
	if inner, ok := data["config"].(map[string]interface{}); ok {
		return inner["isConfigured"] == false
	}
	return false
}
