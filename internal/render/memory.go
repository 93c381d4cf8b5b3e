// Package render provides an in-memory preview.Renderer. It records the
// connectors it would draw, for the CLI and for tests.
package render

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gyaneshwarpardhi/previewline/internal/flow"
	"github.com/gyaneshwarpardhi/previewline/internal/preview"
)

var ErrForeignHandle = errors.New("handle was not created by this renderer")

// Connector is a drawn preview line.
type Connector struct {
	mu      sync.RWMutex
	id      int
	nodeID  string
	hints   preview.Hints
	removed bool
}

func (c *Connector) Removed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.removed
}

func (c *Connector) SourcePoint() (flow.Point, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hints.Start, true
}

// Hints returns the hints the connector was last drawn with.
func (c *Connector) Hints() preview.Hints {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hints
}

func (c *Connector) NodeID() string { return c.nodeID }

// Move shifts the drawn start point, as a drag of the line would.
func (c *Connector) Move(p flow.Point) {
	c.mu.Lock()
	c.hints.Start = p
	c.mu.Unlock()
}

// Memory keeps every live connector in a map.
type Memory struct {
	mu   sync.Mutex
	next int
	live map[int]*Connector
	fail error
}

func NewMemory() *Memory {
	return &Memory{live: make(map[int]*Connector)}
}

// SetMaterializeError makes every following Materialize fail with err.
// A nil err restores normal behaviour.
func (m *Memory) SetMaterializeError(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

func (m *Memory) Materialize(_ context.Context, node *flow.Node, h preview.Hints) (flow.Rendered, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	m.next++
	c := &Connector{id: m.next, nodeID: node.ID, hints: h}
	m.live[c.id] = c
	return c, nil
}

func (m *Memory) Restyle(_ context.Context, handle flow.Rendered, h preview.Hints) error {
	c, err := m.own(handle)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.hints = h
	c.mu.Unlock()
	return nil
}

func (m *Memory) Discard(_ context.Context, handle flow.Rendered) error {
	c, err := m.own(handle)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.live, c.id)
	m.mu.Unlock()
	c.mu.Lock()
	c.removed = true
	c.mu.Unlock()
	return nil
}

func (m *Memory) own(handle flow.Rendered) (*Connector, error) {
	c, ok := handle.(*Connector)
	if !ok || c == nil {
		return nil, fmt.Errorf("render: %T: %w", handle, ErrForeignHandle)
	}
	return c, nil
}

// Live returns the connectors that have not been discarded, in creation order.
func (m *Memory) Live() []*Connector {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Connector, 0, len(m.live))
	for _, c := range m.live {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// LiveFor returns the live connectors of one node.
func (m *Memory) LiveFor(nodeID string) []*Connector {
	var out []*Connector
	for _, c := range m.Live() {
		if c.nodeID == nodeID {
			out = append(out, c)
		}
	}
	return out
}
