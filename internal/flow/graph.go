package flow

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNodeNotFound  = errors.New("node not found")
	ErrEdgeNotFound  = errors.New("edge not found")
	ErrDuplicateEdge = errors.New("duplicate edge id")
)

// Canvas is the query surface of the editor's graph runtime.
type Canvas interface {
	Nodes() []*Node
	Node(id string) (*Node, bool)
	HasNode(id string) bool
	OutgoingEdges(nodeID string) []Edge
	AddEdge(e Edge) error
	RemoveEdge(id string) error
}

// LayoutEngine reports whether node geometry can be trusted yet.
type LayoutEngine interface {
	Ready() bool
}

// LayerLocator is optionally implemented by a LayoutEngine that knows the
// y coordinate of the layer below a node.
type LayerLocator interface {
	NextLayerY(nodeID string) (float64, bool)
}

// LayoutFunc adapts a predicate to LayoutEngine.
type LayoutFunc func() bool

func (f LayoutFunc) Ready() bool { return f() }

// Graph is an in-memory Canvas. Nodes keep insertion order; edges are
// indexed by id and by source node.
type Graph struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	order []string
	edges map[string]Edge
	out   map[string][]string // source id → edge ids
}

// NewGraph allocates an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
		edges: make(map[string]Edge),
		out:   make(map[string][]string),
	}
}

// AddNode registers a node by its ID, replacing any node with the same ID.
func (g *Graph) AddNode(n *Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.nodes[n.ID]; !exists {
		g.order = append(g.order, n.ID)
	}
	g.nodes[n.ID] = n
}

// RemoveNode deletes a node and every edge that touches it.
func (g *Graph) RemoveNode(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[id]; !ok {
		return fmt.Errorf("remove node %s: %w", id, ErrNodeNotFound)
	}
	delete(g.nodes, id)
	for i, nid := range g.order {
		if nid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	for eid, e := range g.edges {
		if e.Source == id || e.Target == id {
			g.removeEdgeLocked(eid)
		}
	}
	return nil
}

// Node returns a node by ID.
func (g *Graph) Node(id string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// HasNode reports whether id is on the canvas.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.Node(id)
	return ok
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// AddEdge records an edge. The source node must exist.
func (g *Graph) AddEdge(e Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.edges[e.ID]; ok {
		return fmt.Errorf("add edge %s: %w", e.ID, ErrDuplicateEdge)
	}
	if _, ok := g.nodes[e.Source]; !ok {
		return fmt.Errorf("add edge %s: source %s: %w", e.ID, e.Source, ErrNodeNotFound)
	}
	g.edges[e.ID] = e
	g.out[e.Source] = append(g.out[e.Source], e.ID)
	return nil
}

// RemoveEdge deletes an edge by ID.
func (g *Graph) RemoveEdge(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.edges[id]; !ok {
		return fmt.Errorf("remove edge %s: %w", id, ErrEdgeNotFound)
	}
	g.removeEdgeLocked(id)
	return nil
}

func (g *Graph) removeEdgeLocked(id string) {
	e := g.edges[id]
	delete(g.edges, id)
	ids := g.out[e.Source]
	for i, eid := range ids {
		if eid == id {
			g.out[e.Source] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(g.out[e.Source]) == 0 {
		delete(g.out, e.Source)
	}
}

// OutgoingEdges returns the edges whose source is nodeID, in insertion order.
func (g *Graph) OutgoingEdges(nodeID string) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := g.out[nodeID]
	out := make([]Edge, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.edges[id])
	}
	return out
}

// NodeCount returns the total number of registered nodes.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the total number of edges.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}
