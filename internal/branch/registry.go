package branch

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gyaneshwarpardhi/previewline/internal/flow"
)

// Extractor derives the branches of one branching node type.
type Extractor interface {
	// Type returns the node type this extractor is registered under.
	Type() string
	// Extract builds branches from the node configuration. Malformed entries
	// are skipped and reported through log.
	Extract(cfg map[string]interface{}, log *slog.Logger) []Branch
	// StoredValid reports whether branches persisted in the configuration
	// are still backed by real type-specific configuration.
	StoredValid(cfg map[string]interface{}, stored []Branch) bool
}

// Registry maps node types to their extractors.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]Extractor
	log        *slog.Logger
}

// NewRegistry creates an empty Registry. A nil logger means slog.Default().
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{extractors: make(map[string]Extractor), log: log}
}

// NewDefaultRegistry returns a Registry with the audience-split, event-split
// and ab-test extractors registered.
func NewDefaultRegistry(log *slog.Logger) *Registry {
	r := NewRegistry(log)
	r.Register(audienceSplit{})
	r.Register(eventSplit{})
	r.Register(abTest{})
	return r
}

// Register adds an extractor. Panics on duplicate type to surface misconfiguration early.
func (r *Registry) Register(e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.extractors[e.Type()]; exists {
		panic(fmt.Sprintf("branch registry: duplicate type %q", e.Type()))
	}
	r.extractors[e.Type()] = e
}

// Branching reports whether nodeType has a registered extractor.
func (r *Registry) Branching(nodeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.extractors[nodeType]
	return ok
}

// Extract returns the required branches for a node. It never panics: a
// failing extractor yields an empty list. Unregistered types have no
// branches.
func (r *Registry) Extract(nodeType string, cfg map[string]interface{}) (branches []Branch) {
	r.mu.RLock()
	ex, ok := r.extractors[nodeType]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("branch extraction panicked", "node_type", nodeType, "panic", rec)
			branches = nil
		}
	}()
	if cfg == nil {
		cfg = map[string]interface{}{}
	}

	if stored, ok := storedBranches(cfg, r.log); ok && ex.StoredValid(cfg, stored) {
		branches = stored
	} else {
		branches = ex.Extract(cfg, r.log)
	}
	return RepairLabels(nodeType, branches)
}

var defaultRegistry = NewDefaultRegistry(nil)

// Extract runs the default registry.
func Extract(nodeType string, cfg map[string]interface{}) []Branch {
	return defaultRegistry.Extract(nodeType, cfg)
}

// storedBranches parses config.branches. It reports false when the field is
// absent or holds no usable branch.
func storedBranches(cfg map[string]interface{}, log *slog.Logger) ([]Branch, bool) {
	raw, ok := nonEmptyList(lookup(cfg, "branches"))
	if !ok {
		return nil, false
	}
	out := make([]Branch, 0, len(raw))
	for i, item := range raw {
		m, ok := asMap(item)
		if !ok {
			log.Warn("skipping malformed stored branch", "index", i)
			continue
		}
		id := idText(m["id"])
		if id == "" {
			log.Warn("skipping stored branch without id", "index", i)
			continue
		}
		b := Branch{
			ID:        id,
			Label:     text(m["label"]),
			Kind:      normalizeKind(text(m["type"])),
			CrowdName: text(m["crowdName"]),
			CrowdID:   idText(m["crowdId"]),
			Order:     i + 1,
		}
		if d, ok := m["isDefault"].(bool); ok {
			b.IsDefault = d
		}
		if o, ok := number(m["order"]); ok && o > 0 {
			b.Order = int(o)
		}
		if r, ok := number(m["ratio"]); ok {
			b.Ratio = r
		}
		out = append(out, b)
	}
	return out, len(out) > 0
}

func normalizeKind(s string) Kind {
	switch s {
	case "ab-test", string(KindVariant):
		return KindVariant
	case string(KindAudience):
		return KindAudience
	case string(KindEvent):
		return KindEvent
	}
	return Kind(s)
}

func hasKind(branches []Branch, k Kind) bool {
	for _, b := range branches {
		if b.Kind == k {
			return true
		}
	}
	return false
}

// IsBranchingType reports whether t is one of the built-in branching types.
func IsBranchingType(t string) bool {
	switch t {
	case flow.TypeAudienceSplit, flow.TypeEventSplit, flow.TypeABTest:
		return true
	}
	return false
}
