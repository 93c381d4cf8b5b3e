package flow

import "strings"

// Node types known to the editor.
const (
	TypeStart         = "start"
	TypeEnd           = "end"
	TypeAudienceSplit = "audience-split"
	TypeEventSplit    = "event-split"
	TypeABTest        = "ab-test"
)

// Point is a canvas coordinate.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Size is a node's rendered width and height.
type Size struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Node is a canvas node as seen by the decision engine. It is owned by the
// canvas; nothing in this module mutates it.
type Node struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"type,omitempty"`
	Shape    string                 `json:"shape,omitempty"`
	Position Point                  `json:"position"`
	Size     Size                   `json:"size"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// OutputAnchor is the bottom-center point where outgoing connectors start.
func (n *Node) OutputAnchor() Point {
	return Point{
		X: n.Position.X + n.Size.Width/2,
		Y: n.Position.Y + n.Size.Height,
	}
}

// ResolveID returns the node's identifier, falling back to data.id.
func ResolveID(n *Node) (string, bool) {
	if n == nil {
		return "", false
	}
	if n.ID != "" {
		return n.ID, true
	}
	if s, ok := n.Data["id"].(string); ok && s != "" {
		return s, true
	}
	return "", false
}

// TypeResolution is the tagged result of ResolveType: either Known with a
// Type string, or unknown.
type TypeResolution struct {
	Type   string
	Known  bool
	Source string // where the type string was found
}

type typeSource struct {
	name string
	get  func(n *Node) interface{}
}

// typeSources is the fixed priority order for type lookup.
var typeSources = []typeSource{
	{"type", func(n *Node) interface{} { return n.Type }},
	{"data.type", func(n *Node) interface{} { return n.Data["type"] }},
	{"data.nodeType", func(n *Node) interface{} { return n.Data["nodeType"] }},
	{"data.node_type", func(n *Node) interface{} { return n.Data["node_type"] }},
	{"data.data.type", func(n *Node) interface{} { return nested(n.Data, "data", "type") }},
	{"data.data.nodeType", func(n *Node) interface{} { return nested(n.Data, "data", "nodeType") }},
	{"data.config.type", func(n *Node) interface{} { return nested(n.Data, "config", "type") }},
	{"shape", func(n *Node) interface{} { return shapeType(n.Shape) }},
	{"data.shape", func(n *Node) interface{} {
		s, _ := n.Data["shape"].(string)
		return shapeType(s)
	}},
	{"data.kind", func(n *Node) interface{} { return n.Data["kind"] }},
}

// ResolveType extracts the node type string. Only non-empty strings are
// accepted; objects found under an alias key are skipped, never stringified.
func ResolveType(n *Node) TypeResolution {
	if n == nil {
		return TypeResolution{}
	}
	for _, src := range typeSources {
		if s, ok := src.get(n).(string); ok {
			s = strings.TrimSpace(s)
			if s != "" {
				return TypeResolution{Type: s, Known: true, Source: src.name}
			}
		}
	}
	return TypeResolution{}
}

func nested(m map[string]interface{}, keys ...string) interface{} {
	var cur interface{} = m
	for _, k := range keys {
		mm, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = mm[k]
	}
	return cur
}

// shapeType maps a renderer shape name such as "audience-split-node" to its
// node type.
func shapeType(shape string) string {
	return strings.TrimSuffix(strings.TrimSpace(shape), "-node")
}
