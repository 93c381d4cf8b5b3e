// Package preview owns the live preview connector instances of a canvas and
// applies requirement verdicts to them through a Renderer.
package preview

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gyaneshwarpardhi/previewline/internal/branch"
	"github.com/gyaneshwarpardhi/previewline/internal/flow"
	"github.com/gyaneshwarpardhi/previewline/internal/metrics"
)

var (
	ErrDuplicateInstance = errors.New("preview instance already registered")
	ErrInstanceNotFound  = errors.New("preview instance not found")
)

// Key identifies the single instance allowed per node output.
type Key struct {
	NodeID   string
	BranchID string
}

func (k Key) String() string {
	if k.BranchID == "" {
		return k.NodeID
	}
	return k.NodeID + "/" + k.BranchID
}

// Instance is one preview connector owned by the Registry.
type Instance struct {
	ID           string        `json:"id"`
	SourceNodeID string        `json:"sourceNodeId"`
	BranchID     string        `json:"branchId,omitempty"`
	BranchLabel  string        `json:"branchLabel,omitempty"`
	State        flow.State    `json:"state"`
	Handle       flow.Rendered `json:"-"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

func (i Instance) Key() Key { return Key{NodeID: i.SourceNodeID, BranchID: i.BranchID} }

// Edge presents the instance as a preview edge for classification.
func (i Instance) Edge() flow.Edge {
	return flow.Edge{
		ID:       i.ID,
		Source:   i.SourceNodeID,
		BranchID: i.BranchID,
		Preview:  true,
		State:    i.State,
		Rendered: i.Handle,
	}
}

// Registry maps (node, branch) keys to preview instances. It never holds two
// instances for the same key.
type Registry struct {
	mu      sync.RWMutex
	byKey   map[Key]*Instance
	byID    map[string]Key
	checked map[string]time.Time
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		byKey:   make(map[Key]*Instance),
		byID:    make(map[string]Key),
		checked: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Register records a new pending instance for b on nodeID. It fails with
// ErrDuplicateInstance when the key is taken.
func (r *Registry) Register(nodeID string, b branch.Branch) (Instance, error) {
	k := Key{NodeID: nodeID, BranchID: b.ID}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byKey[k]; ok {
		metrics.DuplicateRejections.Inc()
		return *existing, fmt.Errorf("register %s: %w (instance %s)", k, ErrDuplicateInstance, existing.ID)
	}
	now := r.now()
	inst := &Instance{
		ID:           ulid.Make().String(),
		SourceNodeID: nodeID,
		BranchID:     b.ID,
		BranchLabel:  b.Label,
		State:        flow.StatePending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.byKey[k] = inst
	r.byID[inst.ID] = k
	metrics.RegistryInstances.Inc()
	return *inst, nil
}

// Get returns the instance registered under k.
func (r *Registry) Get(k Key) (Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.byKey[k]
	if !ok {
		return Instance{}, false
	}
	return *inst, true
}

// ByID returns the instance with the given id.
func (r *Registry) ByID(id string) (Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.byID[id]
	if !ok {
		return Instance{}, false
	}
	return *r.byKey[k], true
}

// Update applies fn to the instance with the given id and bumps UpdatedAt.
// fn must not change the instance's id or key.
func (r *Registry) Update(id string, fn func(*Instance)) (Instance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.byID[id]
	if !ok {
		return Instance{}, fmt.Errorf("update %s: %w", id, ErrInstanceNotFound)
	}
	inst := r.byKey[k]
	fn(inst)
	inst.ID, inst.SourceNodeID, inst.BranchID = id, k.NodeID, k.BranchID
	inst.UpdatedAt = r.now()
	return *inst, nil
}

// Remove deregisters an instance. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) (Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.byID[id]
	if !ok {
		return Instance{}, false
	}
	inst := r.byKey[k]
	delete(r.byKey, k)
	delete(r.byID, id)
	metrics.RegistryInstances.Dec()
	return *inst, true
}

// RemoveNode deregisters every instance of nodeID and forgets its
// bookkeeping.
func (r *Registry) RemoveNode(nodeID string) []Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Instance
	for k, inst := range r.byKey {
		if k.NodeID != nodeID {
			continue
		}
		out = append(out, *inst)
		delete(r.byKey, k)
		delete(r.byID, inst.ID)
		metrics.RegistryInstances.Dec()
	}
	delete(r.checked, nodeID)
	sortInstances(out)
	return out
}

// ForNode returns the instances of nodeID, oldest first.
func (r *Registry) ForNode(nodeID string) []Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Instance
	for k, inst := range r.byKey {
		if k.NodeID == nodeID {
			out = append(out, *inst)
		}
	}
	sortInstances(out)
	return out
}

// All returns every instance, oldest first.
func (r *Registry) All() []Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Instance, 0, len(r.byKey))
	for _, inst := range r.byKey {
		out = append(out, *inst)
	}
	sortInstances(out)
	return out
}

// Nodes returns the ids of nodes that own at least one instance.
func (r *Registry) Nodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for k := range r.byKey {
		if !seen[k.NodeID] {
			seen[k.NodeID] = true
			out = append(out, k.NodeID)
		}
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byKey)
}

// Touch records that nodeID was checked.
func (r *Registry) Touch(nodeID string) {
	r.mu.Lock()
	r.checked[nodeID] = r.now()
	r.mu.Unlock()
}

// LastChecked returns when nodeID was last checked.
func (r *Registry) LastChecked(nodeID string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.checked[nodeID]
	return t, ok
}

// ULIDs sort by creation time.
func sortInstances(in []Instance) {
	sort.Slice(in, func(i, j int) bool { return in[i].ID < in[j].ID })
}
