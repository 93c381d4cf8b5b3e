// Package validator decides, for one node at a time, whether its preview
// connectors must be created, updated, cleaned up or left alone.
package validator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/previewline/internal/branch"
	"github.com/gyaneshwarpardhi/previewline/internal/classify"
	"github.com/gyaneshwarpardhi/previewline/internal/flow"
	"github.com/gyaneshwarpardhi/previewline/internal/metrics"
)

// Validator computes requirement verdicts. Its collaborators may be swapped
// at runtime; the check itself holds no other mutable state besides the
// branch cache.
type Validator struct {
	cache  *branch.Cache
	nodes  *classify.Nodes
	coords Coordinates
	strict bool
	log    *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	layout flow.LayoutEngine
	canvas flow.Canvas
}

// Option configures a Validator.
type Option func(*Validator)

func WithLayoutEngine(l flow.LayoutEngine) Option {
	return func(v *Validator) { v.layout = l }
}

// WithCanvas enables the "node is in the graph" gate.
func WithCanvas(c flow.Canvas) Option {
	return func(v *Validator) { v.canvas = c }
}

func WithCoordinates(c Coordinates) Option {
	return func(v *Validator) { v.coords = c }
}

// WithStrictCoordinates makes a misplaced preview start point a reason for
// NEEDS_CLEANUP instead of a diagnostic only.
func WithStrictCoordinates(strict bool) Option {
	return func(v *Validator) { v.strict = strict }
}

func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.log = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// New creates a Validator backed by cache.
func New(cache *branch.Cache, opts ...Option) *Validator {
	v := &Validator{
		cache: cache,
		log:   slog.Default(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	var src classify.BranchSource
	if cache != nil {
		src = cache
	}
	v.nodes = classify.NewNodes(src, v.log)
	return v
}

// SetLayoutEngine replaces the layout readiness source.
func (v *Validator) SetLayoutEngine(l flow.LayoutEngine) {
	v.mu.Lock()
	v.layout = l
	v.mu.Unlock()
}

// SetCanvas replaces the graph used by the presence gate. A nil canvas
// disables that gate.
func (v *Validator) SetCanvas(c flow.Canvas) {
	v.mu.Lock()
	v.canvas = c
	v.mu.Unlock()
}

// IsLayoutEngineReady reports false while no layout engine is attached.
func (v *Validator) IsLayoutEngineReady() bool {
	v.mu.RLock()
	l := v.layout
	v.mu.RUnlock()
	return l != nil && l.Ready()
}

// LayoutEngine returns the attached layout engine, possibly nil.
func (v *Validator) LayoutEngine() flow.LayoutEngine {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.layout
}

// ClearNodeCache drops the memoized branches of one node.
func (v *Validator) ClearNodeCache(nodeID string) {
	if v.cache != nil {
		v.cache.Clear(nodeID)
	}
}

// Classify exposes the node classification used by CheckRequirement.
func (v *Validator) Classify(n *flow.Node) classify.NodeClass {
	return v.nodes.Classify(n, false)
}

// CheckRequirement decides what must happen to node's preview connectors,
// given the requested state and the node's existing outgoing edges. It
// never panics: unexpected failures yield NEEDS_CREATION. Every call is
// logged and counted once.
func (v *Validator) CheckRequirement(node *flow.Node, state flow.State, existing []flow.Edge, force bool) Verdict {
	verdict, failed := v.evaluate(node, state, existing, force)
	if failed {
		metrics.Verdicts.WithLabelValues(string(verdict.Type)).Inc()
		return verdict
	}
	v.record(verdict)
	return verdict
}

// Evaluate is an unforced CheckRequirement that neither logs nor counts
// its outcome. Callers use it for follow-up passes within one operation.
func (v *Validator) Evaluate(node *flow.Node, state flow.State, existing []flow.Edge) Verdict {
	verdict, _ := v.evaluate(node, state, existing, false)
	return verdict
}

func (v *Validator) evaluate(node *flow.Node, state flow.State, existing []flow.Edge, force bool) (verdict Verdict, failed bool) {
	nodeID, hasID := flow.ResolveID(node)
	defer func() {
		if rec := recover(); rec != nil {
			verdict = v.verdict(nodeID, NeedsCreation, CodeUnexpected, fmt.Sprintf("检查异常: %v", rec), nil)
			failed = true
			v.log.Error("requirement check failed",
				"node_id", nodeID, "panic", rec, "stack", string(debug.Stack()))
		}
	}()
	return v.check(node, nodeID, hasID, state, existing, force), false
}

func (v *Validator) check(node *flow.Node, nodeID string, hasID bool, state flow.State, existing []flow.Edge, force bool) Verdict {
	switch {
	case node == nil:
		return v.verdict("", NoCreation, CodeNodeMissing, "节点不存在", nil)
	case !hasID:
		return v.verdict("", NoCreation, CodeNodeNoID, "节点缺少id属性", nil)
	case !v.IsLayoutEngineReady():
		return v.verdict(nodeID, NoCreation, CodeLayoutNotReady, "布局引擎未就绪", nil)
	}
	v.mu.RLock()
	canvas := v.canvas
	v.mu.RUnlock()
	if canvas != nil && !canvas.HasNode(nodeID) {
		return v.verdict(nodeID, NoCreation, CodeNotInGraph, "节点不在图中", nil)
	}
	if force {
		return v.verdict(nodeID, NeedsUpdate, CodeForced, "强制更新", nil)
	}

	class := v.nodes.Classify(node, false)
	details := &Details{
		Category: class.Category,
		NodeType: class.Type.Type,
		Required: class.Required,
	}

	if class.Category == classify.CategoryEnd {
		return v.verdict(nodeID, NoCreation, CodeEndNode, "结束节点无需预览线", details)
	}
	if len(class.Required) == 0 {
		reason := "节点未配置，无需预览线"
		if class.Branching() {
			reason = "分支节点未配置分支"
		}
		return v.verdict(nodeID, NoCreation, CodeNoBranches, reason, details)
	}

	edges := classify.Edges(existing, nodeID, class.Branching())

	coords, drifted := v.checkCoordinates(node, edges)
	details.Coordinates = coords
	if v.strict && len(drifted) > 0 {
		// Drifted connectors are treated as invalid so the plan removes
		// and recreates them whoever owns them.
		ops, perBranch, _ := plan(class.Required, invalidate(edges, drifted), state)
		details.Operations = ops
		details.PerBranch = perBranch
		return v.verdict(nodeID, NeedsCleanup, CodeCoordinateDrift,
			"预览线坐标偏差: "+strings.Join(drifted, ", "), details)
	}

	ops, perBranch, satisfied := plan(class.Required, edges, state)
	details.Operations = ops
	details.PerBranch = perBranch

	if class.Branching() {
		if ops.Empty() {
			return v.verdict(nodeID, NoCreation, CodeSatisfied,
				fmt.Sprintf("所有分支预览线已存在且有效 (%d/%d)", satisfied, len(class.Required)), details)
		}
		return v.verdict(nodeID, NeedsUpdate, CodeAdjust, "分支预览线需要调整: "+summary(ops), details)
	}

	switch {
	case ops.Empty():
		return v.verdict(nodeID, NoCreation, CodeSatisfied, "预览线已存在且有效", details)
	case len(ops.CreateNew) > 0 && ops.removals() == 0:
		return v.verdict(nodeID, NeedsCreation, CodeCreate, "需要创建单一预览线", details)
	case len(ops.UpdateExisting) > 0 && ops.removals() == 0:
		u := ops.UpdateExisting[0]
		return v.verdict(nodeID, NeedsUpdate, CodeStateChange,
			fmt.Sprintf("状态需要更新: %s -> %s", u.From, u.To), details)
	}
	return v.verdict(nodeID, NeedsUpdate, CodeAdjust, "预览线需要调整: "+summary(ops), details)
}

// plan compares the required branches with the classified edges. It
// returns the operations, the per-branch status and how many branches are
// already satisfied.
func plan(required []branch.Branch, edges classify.EdgeSet, state flow.State) (Operations, []BranchStatus, int) {
	var ops Operations
	perBranch := make([]BranchStatus, 0, len(required))
	satisfied := 0
	want := make(map[string]bool, len(required))

	for _, b := range required {
		want[b.ID] = true
		st := BranchStatus{BranchID: b.ID, Label: b.Label}
		reals := edges.RealByBranch[b.ID]
		previews := edges.PreviewByBranch[b.ID]

		switch {
		case len(reals) > 0:
			st.Status, st.EdgeID = StatusSatisfiedReal, reals[0].ID
			ops.RemoveExtra = append(ops.RemoveExtra, previews...)
			satisfied++
		case len(previews) > 0:
			keep := previews[0]
			ops.RemoveExtra = append(ops.RemoveExtra, previews[1:]...)
			st.EdgeID = keep.ID
			if keep.State == state {
				st.Status = StatusSatisfiedPreview
				satisfied++
			} else {
				st.Status = StatusNeedsUpdate
				ops.UpdateExisting = append(ops.UpdateExisting, Update{Branch: b, Edge: keep, From: keep.State, To: state})
			}
		default:
			st.Status = StatusNeedsCreation
			ops.CreateNew = append(ops.CreateNew, b)
		}
		perBranch = append(perBranch, st)
	}

	stale := make([]string, 0)
	for id := range edges.PreviewByBranch {
		if !want[id] {
			stale = append(stale, id)
		}
	}
	sort.Strings(stale)
	for _, id := range stale {
		ops.RemoveExtra = append(ops.RemoveExtra, edges.PreviewByBranch[id]...)
	}
	for _, e := range edges.Unassociated {
		if !e.IsReal() {
			ops.RemoveExtra = append(ops.RemoveExtra, e)
		}
	}
	ops.RemoveInvalid = append(ops.RemoveInvalid, edges.InvalidPreview...)
	return ops, perBranch, satisfied
}

// checkCoordinates validates every live preview's start point and returns
// the results plus the ids of the connectors that drifted.
func (v *Validator) checkCoordinates(node *flow.Node, edges classify.EdgeSet) ([]CoordinateResult, []string) {
	keys := make([]string, 0, len(edges.PreviewByBranch))
	for k := range edges.PreviewByBranch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var results []CoordinateResult
	var drifted []string
	for _, k := range keys {
		for _, e := range edges.PreviewByBranch[k] {
			res := v.coords.Check(node, e)
			results = append(results, res)
			if !res.IsValid {
				drifted = append(drifted, e.ID)
			}
		}
	}
	return results, drifted
}

// invalidate returns a copy of edges with the given preview ids moved to
// InvalidPreview.
func invalidate(edges classify.EdgeSet, ids []string) classify.EdgeSet {
	bad := make(map[string]bool, len(ids))
	for _, id := range ids {
		bad[id] = true
	}
	out := edges
	out.PreviewByBranch = make(map[string][]flow.Edge, len(edges.PreviewByBranch))
	out.InvalidPreview = append([]flow.Edge(nil), edges.InvalidPreview...)
	for k, list := range edges.PreviewByBranch {
		for _, e := range list {
			if bad[e.ID] {
				out.InvalidPreview = append(out.InvalidPreview, e)
				continue
			}
			out.PreviewByBranch[k] = append(out.PreviewByBranch[k], e)
		}
	}
	return out
}

func summary(ops Operations) string {
	var parts []string
	if n := len(ops.CreateNew); n > 0 {
		parts = append(parts, fmt.Sprintf("创建%d", n))
	}
	if n := len(ops.UpdateExisting); n > 0 {
		parts = append(parts, fmt.Sprintf("更新%d", n))
	}
	if n := len(ops.RemoveExtra); n > 0 {
		parts = append(parts, fmt.Sprintf("移除多余%d", n))
	}
	if n := len(ops.RemoveInvalid); n > 0 {
		parts = append(parts, fmt.Sprintf("移除无效%d", n))
	}
	return strings.Join(parts, ", ")
}

func (v *Validator) verdict(nodeID string, t Type, code Code, reason string, d *Details) Verdict {
	return Verdict{
		NeedsCreation: t != NoCreation,
		Type:          t,
		Reason:        reason,
		Code:          code,
		NodeID:        nodeID,
		Details:       d,
		Timestamp:     v.now(),
	}
}

func (v *Validator) record(verdict Verdict) {
	metrics.Verdicts.WithLabelValues(string(verdict.Type)).Inc()
	level := slog.LevelDebug
	if verdict.Type != NoCreation {
		level = slog.LevelInfo
	}
	v.log.Log(context.Background(), level, "requirement checked",
		"node_id", verdict.NodeID,
		"verdict", string(verdict.Type),
		"code", string(verdict.Code),
		"reason", verdict.Reason)
}
