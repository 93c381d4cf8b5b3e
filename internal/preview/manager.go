package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gyaneshwarpardhi/previewline/internal/branch"
	"github.com/gyaneshwarpardhi/previewline/internal/config"
	"github.com/gyaneshwarpardhi/previewline/internal/event"
	"github.com/gyaneshwarpardhi/previewline/internal/flow"
	"github.com/gyaneshwarpardhi/previewline/internal/metrics"
	"github.com/gyaneshwarpardhi/previewline/internal/validator"
)

const tracerName = "github.com/gyaneshwarpardhi/previewline/internal/preview"

// Action is what Process did for a node.
type Action string

const (
	ActionSkipped         Action = "skipped"
	ActionDeferred        Action = "deferred"
	ActionIgnored         Action = "ignored"
	ActionCreated         Action = "created"
	ActionUpdated         Action = "updated"
	ActionCleanupRecreate Action = "cleanup_and_recreate"
	ActionFailed          Action = "failed"
)

// Details records what Process changed.
type Details struct {
	Verdict     validator.Verdict `json:"verdict"`
	Created     []Instance        `json:"created,omitempty"`
	Updated     []Instance        `json:"updated,omitempty"`
	Removed     []string          `json:"removed,omitempty"`
	Errors      []string          `json:"errors,omitempty"`
	ShouldRetry bool              `json:"shouldRetry,omitempty"`
	RetryAfter  time.Duration     `json:"retryAfter,omitempty"`
}

// Result is the outcome of processing one node.
type Result struct {
	Success bool    `json:"success"`
	Action  Action  `json:"action"`
	NodeID  string  `json:"nodeId"`
	Details Details `json:"details"`
}

// BatchResult is the outcome of a recompute over every canvas node.
type BatchResult struct {
	RunID    string        `json:"runId"`
	Results  []Result      `json:"results"`
	Duration time.Duration `json:"duration"`
}

// Failed returns the results that did not succeed.
func (b BatchResult) Failed() []Result {
	var out []Result
	for _, r := range b.Results {
		if !r.Success {
			out = append(out, r)
		}
	}
	return out
}

type processOpts struct {
	afterDeletion bool
}

// ProcessOption tunes a single Process call.
type ProcessOption func(*processOpts)

// AfterDeletion makes missing-node lookups no-ops that purge whatever the
// registry still holds for the node.
func AfterDeletion() ProcessOption {
	return func(o *processOpts) { o.afterDeletion = true }
}

// Manager applies requirement verdicts to the Registry and the Renderer.
type Manager struct {
	validator *validator.Validator
	cache     *branch.Cache
	registry  *Registry
	renderer  Renderer
	tracer    trace.Tracer
	log       *slog.Logger

	cfg    atomic.Pointer[config.Config]
	mu     sync.RWMutex
	canvas flow.Canvas
}

// Option configures a Manager.
type Option func(*managerOpts)

type managerOpts struct {
	cfg      *config.Config
	layout   flow.LayoutEngine
	tracer   trace.Tracer
	log      *slog.Logger
	registry *Registry
}

// WithConfig supplies engine tunables and styles. Defaults apply otherwise.
func WithConfig(c *config.Config) Option {
	return func(o *managerOpts) { o.cfg = c }
}

func WithLayoutEngine(l flow.LayoutEngine) Option {
	return func(o *managerOpts) { o.layout = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(o *managerOpts) { o.tracer = t }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *managerOpts) { o.log = l }
}

// WithRegistry shares an existing registry.
func WithRegistry(r *Registry) Option {
	return func(o *managerOpts) { o.registry = r }
}

// NewManager wires a Manager over canvas. It owns a branch cache whose sweep
// goroutine runs until Close.
func NewManager(canvas flow.Canvas, renderer Renderer, opts ...Option) *Manager {
	o := managerOpts{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cfg == nil {
		o.cfg = config.Default()
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer(tracerName)
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}
	if renderer == nil {
		renderer = nopRenderer{}
	}

	ec := o.cfg.Engine
	cache := branch.NewCache(
		branch.WithTimeout(time.Duration(ec.CacheTimeoutMs)*time.Millisecond),
		branch.WithSweepInterval(time.Duration(ec.CacheSweepIntervalMs)*time.Millisecond),
		branch.WithLogger(o.log),
	)
	m := &Manager{
		cache:    cache,
		registry: o.registry,
		renderer: renderer,
		tracer:   o.tracer,
		log:      o.log,
		canvas:   canvas,
	}
	m.cfg.Store(o.cfg)
	m.validator = validator.New(cache,
		validator.WithLayoutEngine(o.layout),
		validator.WithCanvas(canvas),
		validator.WithCoordinates(validator.Coordinates{
			AxisTolerance:     ec.AxisTolerance,
			DistanceTolerance: ec.DistanceTolerance,
		}),
		validator.WithStrictCoordinates(ec.StrictCoordinates),
		validator.WithLogger(o.log),
	)
	return m
}

// Registry exposes the instance registry for inspection.
func (m *Manager) Registry() *Registry { return m.registry }

// Validator exposes the requirement validator.
func (m *Manager) Validator() *validator.Validator { return m.validator }

// SetLayoutEngine replaces the layout readiness source.
func (m *Manager) SetLayoutEngine(l flow.LayoutEngine) { m.validator.SetLayoutEngine(l) }

// IsLayoutEngineReady reports whether node geometry can be trusted.
func (m *Manager) IsLayoutEngineReady() bool { return m.validator.IsLayoutEngineReady() }

// ClearNodeCache drops the memoized branches of one node.
func (m *Manager) ClearNodeCache(nodeID string) { m.validator.ClearNodeCache(nodeID) }

// SetCanvas swaps the graph, e.g. after a document reload. Instances of
// nodes that no longer exist are purged.
func (m *Manager) SetCanvas(ctx context.Context, c flow.Canvas) {
	m.mu.Lock()
	m.canvas = c
	m.mu.Unlock()
	m.validator.SetCanvas(c)
	m.cache.Reset()
	for _, id := range m.registry.Nodes() {
		if c == nil || !c.HasNode(id) {
			m.purge(ctx, id)
		}
	}
}

// SetConfig replaces styles and geometry. Cache and coordinate tunables are
// fixed at construction.
func (m *Manager) SetConfig(c *config.Config) {
	if c != nil {
		m.cfg.Store(c)
	}
}

func (m *Manager) getCanvas() flow.Canvas {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.canvas
}

// Close stops the branch cache sweep.
func (m *Manager) Close() {
	m.cache.Stop()
}

func (m *Manager) defaultState() flow.State {
	return flow.State(m.cfg.Load().Engine.DefaultState)
}

// ProcessID looks nodeID up on the canvas and processes it.
func (m *Manager) ProcessID(ctx context.Context, nodeID string, state flow.State, force bool, opts ...ProcessOption) Result {
	var node *flow.Node
	if c := m.getCanvas(); c != nil {
		node, _ = c.Node(nodeID)
	}
	return m.process(ctx, node, nodeID, state, force, opts)
}

// Check returns the verdict for nodeID without applying it.
func (m *Manager) Check(nodeID string, state flow.State) validator.Verdict {
	var node *flow.Node
	if c := m.getCanvas(); c != nil {
		node, _ = c.Node(nodeID)
	}
	if state == "" {
		state = m.defaultState()
	}
	return m.validator.CheckRequirement(node, state, m.existing(nodeID), false)
}

// Process checks node's requirement and applies the verdict. It is
// idempotent: a second call without external changes does nothing.
func (m *Manager) Process(ctx context.Context, node *flow.Node, state flow.State, force bool, opts ...ProcessOption) Result {
	id, _ := flow.ResolveID(node)
	return m.process(ctx, node, id, state, force, opts)
}

func (m *Manager) process(ctx context.Context, node *flow.Node, nodeID string, state flow.State, force bool, opts []ProcessOption) Result {
	var o processOpts
	for _, opt := range opts {
		opt(&o)
	}
	if state == "" {
		state = m.defaultState()
	}
	start := time.Now()
	ctx, span := m.tracer.Start(ctx, "preview.process", trace.WithAttributes(
		attribute.String("previewline.node_id", nodeID),
		attribute.String("previewline.state", string(state)),
		attribute.Bool("previewline.force", force),
		attribute.Bool("previewline.after_deletion", o.afterDeletion),
	))
	defer span.End()

	verdict := m.validator.CheckRequirement(node, state, m.existing(nodeID), force)
	res := m.dispatch(ctx, node, nodeID, state, verdict, o)
	if res.NodeID == "" {
		res.NodeID = nodeID
	}

	metrics.Actions.WithLabelValues(string(res.Action)).Inc()
	metrics.ProcessDuration.Observe(float64(time.Since(start).Microseconds()) / 1000)
	span.SetAttributes(
		attribute.String("previewline.verdict", string(res.Details.Verdict.Type)),
		attribute.String("previewline.action", string(res.Action)),
	)
	if !res.Success {
		span.SetStatus(codes.Error, res.Details.Verdict.Reason)
	}
	if len(res.Details.Errors) > 0 {
		m.log.Warn("preview process finished with errors",
			"node_id", res.NodeID, "action", string(res.Action), "errors", res.Details.Errors)
	} else {
		m.log.Debug("preview processed", "node_id", res.NodeID, "action", string(res.Action))
	}
	return res
}

func (m *Manager) dispatch(ctx context.Context, node *flow.Node, nodeID string, state flow.State, v validator.Verdict, o processOpts) Result {
	res := Result{Success: true, NodeID: nodeID, Details: Details{Verdict: v}}

	switch v.Code {
	case validator.CodeNodeMissing, validator.CodeNodeNoID, validator.CodeNotInGraph:
		if o.afterDeletion {
			res.Action = ActionSkipped
			if nodeID != "" {
				res.Details.Removed = m.purge(ctx, nodeID)
			}
			return res
		}
		res.Action = ActionIgnored
		return res
	case validator.CodeLayoutNotReady:
		res.Action = ActionDeferred
		res.Details.ShouldRetry = true
		res.Details.RetryAfter = time.Duration(m.cfg.Load().Engine.RetryAfterMs) * time.Millisecond
		return res
	case validator.CodeForced:
		return m.forced(ctx, node, nodeID, state, res)
	}

	m.registry.Touch(nodeID)
	switch v.Type {
	case validator.NoCreation:
		res.Action = ActionSkipped
		if v.Code == validator.CodeNoBranches || v.Code == validator.CodeEndNode {
			// The node no longer wants any preview; drop what is left over.
			for _, e := range m.existing(nodeID) {
				if !e.IsReal() {
					m.removeEdge(ctx, e, &res)
				}
			}
			if len(res.Details.Removed) > 0 {
				res.Action = ActionUpdated
			}
		}
		if m.cfg.Load().Engine.RevalidateOnSkip {
			m.revalidate(nodeID, &res)
		}
	case validator.NeedsCreation, validator.NeedsUpdate:
		m.apply(ctx, node, nodeID, state, v, &res)
		res.Action = ActionUpdated
		if len(res.Details.Created) > 0 && len(res.Details.Updated) == 0 && len(res.Details.Removed) == 0 {
			res.Action = ActionCreated
		}
	case validator.NeedsCleanup:
		m.cleanup(ctx, node, nodeID, state, v, &res)
		res.Action = ActionCleanupRecreate
	}
	if len(res.Details.Errors) > 0 {
		res.Success = false
		if res.Action != ActionCleanupRecreate && len(res.Details.Created)+len(res.Details.Updated)+len(res.Details.Removed) == 0 {
			res.Action = ActionFailed
		}
	}
	return res
}

// forced bypasses the branch cache, reconciles, then re-applies the state
// and current geometry to every instance of the node.
func (m *Manager) forced(ctx context.Context, node *flow.Node, nodeID string, state flow.State, res Result) Result {
	m.validator.ClearNodeCache(nodeID)
	m.registry.Touch(nodeID)
	v := m.validator.Evaluate(node, state, m.existing(nodeID))
	if v.Type != validator.NoCreation {
		m.apply(ctx, node, nodeID, state, v, &res)
	}

	var required []branch.Branch
	if v.Details != nil {
		required = v.Details.Required
	}
	touched := make(map[string]bool)
	for _, inst := range res.Details.Created {
		touched[inst.ID] = true
	}
	for _, inst := range res.Details.Updated {
		touched[inst.ID] = true
	}
	for _, inst := range m.registry.ForNode(nodeID) {
		if touched[inst.ID] || inst.Handle == nil {
			continue
		}
		idx, b := indexOf(required, inst.BranchID)
		if idx < 0 {
			b = branch.Branch{ID: inst.BranchID, Label: inst.BranchLabel}
			idx = 0
		}
		if updated, ok := m.restyle(ctx, node, inst, b, idx, len(required), state, &res); ok {
			res.Details.Updated = append(res.Details.Updated, updated)
		}
	}
	res.Action = ActionUpdated
	if len(res.Details.Errors) > 0 {
		res.Success = false
	}
	return res
}

// cleanup drops every registry instance of the node plus the canvas-owned
// connectors the verdict names, then reconciles from scratch.
func (m *Manager) cleanup(ctx context.Context, node *flow.Node, nodeID string, state flow.State, v validator.Verdict, res *Result) {
	purged := m.purge(ctx, nodeID)
	res.Details.Removed = append(res.Details.Removed, purged...)
	if v.Details != nil {
		gone := make(map[string]bool, len(purged))
		for _, id := range purged {
			gone[id] = true
		}
		ops := v.Details.Operations
		for _, list := range [][]flow.Edge{ops.RemoveInvalid, ops.RemoveExtra} {
			for _, e := range list {
				if !gone[e.ID] {
					m.removeEdge(ctx, e, res)
				}
			}
		}
	}

	again := m.validator.Evaluate(node, state, m.existing(nodeID))
	if again.Type == validator.NeedsCleanup {
		res.Details.Errors = append(res.Details.Errors, "cleanup incomplete: "+again.Reason)
		return
	}
	m.apply(ctx, node, nodeID, state, again, res)
}

// apply executes a verdict's operations: removals, then updates, then
// creations, so a key freed by a removal can be registered again.
func (m *Manager) apply(ctx context.Context, node *flow.Node, nodeID string, state flow.State, v validator.Verdict, res *Result) {
	if v.Type == validator.NoCreation {
		return
	}
	var ops validator.Operations
	var required []branch.Branch
	if v.Details != nil {
		ops = v.Details.Operations
		required = v.Details.Required
	} else {
		// The check failed unexpectedly; fall back to creating whatever the
		// node's classification says is missing.
		class := m.validator.Classify(node)
		required = class.Required
		for _, b := range required {
			if _, ok := m.registry.Get(Key{NodeID: nodeID, BranchID: b.ID}); !ok {
				ops.CreateNew = append(ops.CreateNew, b)
			}
		}
	}

	for _, e := range ops.RemoveInvalid {
		m.removeEdge(ctx, e, res)
	}
	for _, e := range ops.RemoveExtra {
		m.removeEdge(ctx, e, res)
	}

	for _, u := range ops.UpdateExisting {
		inst, ok := m.registry.ByID(u.Edge.ID)
		if !ok {
			// A preview that lives only on the canvas is replaced by a
			// registry-owned one.
			m.removeEdge(ctx, u.Edge, res)
			ops.CreateNew = append(ops.CreateNew, u.Branch)
			continue
		}
		idx, _ := indexOf(required, u.Branch.ID)
		if updated, ok := m.restyle(ctx, node, inst, u.Branch, idx, len(required), u.To, res); ok {
			res.Details.Updated = append(res.Details.Updated, updated)
		}
	}

	for _, b := range ops.CreateNew {
		idx, _ := indexOf(required, b.ID)
		if inst, ok := m.create(ctx, node, nodeID, b, idx, len(required), state, res); ok {
			res.Details.Created = append(res.Details.Created, inst)
		}
	}
}

// create registers the instance before asking the renderer to draw it. A
// render failure leaves the instance invalid and without a handle, so the
// next check replaces it.
func (m *Manager) create(ctx context.Context, node *flow.Node, nodeID string, b branch.Branch, idx, count int, state flow.State, res *Result) (Instance, bool) {
	inst, err := m.registry.Register(nodeID, b)
	if err != nil {
		m.log.Warn("rejected duplicate preview instance", "node_id", nodeID, "branch_id", b.ID, "err", err)
		res.Details.Errors = append(res.Details.Errors, err.Error())
		return Instance{}, false
	}
	if node == nil {
		return inst, true
	}
	h := m.hints(node, b, idx, count, state)
	handle, err := m.renderer.Materialize(ctx, node, h)
	if err != nil {
		metrics.RenderFailures.WithLabelValues("materialize").Inc()
		res.Details.Errors = append(res.Details.Errors, fmt.Sprintf("materialize %s: %v", inst.Key(), err))
		inst, _ = m.registry.Update(inst.ID, func(i *Instance) { i.State = flow.StateInvalid })
		return inst, true
	}
	inst, err = m.registry.Update(inst.ID, func(i *Instance) {
		i.Handle = handle
		i.State = state
	})
	if err != nil {
		// Removed concurrently; the renderer's object is orphaned.
		_ = m.renderer.Discard(ctx, handle)
		res.Details.Errors = append(res.Details.Errors, err.Error())
		return Instance{}, false
	}
	return inst, true
}

func (m *Manager) restyle(ctx context.Context, node *flow.Node, inst Instance, b branch.Branch, idx, count int, state flow.State, res *Result) (Instance, bool) {
	updated, err := m.registry.Update(inst.ID, func(i *Instance) { i.State = state })
	if err != nil {
		res.Details.Errors = append(res.Details.Errors, err.Error())
		return Instance{}, false
	}
	if inst.Handle == nil || node == nil {
		return updated, true
	}
	if err := m.renderer.Restyle(ctx, inst.Handle, m.hints(node, b, idx, count, state)); err != nil {
		metrics.RenderFailures.WithLabelValues("restyle").Inc()
		res.Details.Errors = append(res.Details.Errors, fmt.Sprintf("restyle %s: %v", inst.Key(), err))
	}
	return updated, true
}

// removeEdge deregisters a registry instance or, for a canvas-owned
// preview, removes it from the canvas. Unknown edges are ignored.
func (m *Manager) removeEdge(ctx context.Context, e flow.Edge, res *Result) {
	if inst, ok := m.registry.Remove(e.ID); ok {
		res.Details.Removed = append(res.Details.Removed, inst.ID)
		m.discard(ctx, inst.Handle, res)
		return
	}
	if c := m.getCanvas(); c != nil {
		err := c.RemoveEdge(e.ID)
		switch {
		case err == nil:
			res.Details.Removed = append(res.Details.Removed, e.ID)
		case !errors.Is(err, flow.ErrEdgeNotFound):
			res.Details.Errors = append(res.Details.Errors, err.Error())
		}
	}
	m.discard(ctx, e.Rendered, res)
}

func (m *Manager) discard(ctx context.Context, h flow.Rendered, res *Result) {
	if h == nil || h.Removed() {
		return
	}
	if err := m.renderer.Discard(ctx, h); err != nil {
		metrics.RenderFailures.WithLabelValues("discard").Inc()
		if res != nil {
			res.Details.Errors = append(res.Details.Errors, err.Error())
		}
	}
}

// purge removes every instance of nodeID and returns their ids.
func (m *Manager) purge(ctx context.Context, nodeID string) []string {
	removed := m.registry.RemoveNode(nodeID)
	ids := make([]string, 0, len(removed))
	for _, inst := range removed {
		ids = append(ids, inst.ID)
		m.discard(ctx, inst.Handle, nil)
	}
	return ids
}

// revalidate marks instances whose drawn object disappeared as invalid.
func (m *Manager) revalidate(nodeID string, res *Result) {
	for _, inst := range m.registry.ForNode(nodeID) {
		if inst.State == flow.StateInvalid || (inst.Handle != nil && !inst.Handle.Removed()) {
			continue
		}
		if updated, err := m.registry.Update(inst.ID, func(i *Instance) { i.State = flow.StateInvalid }); err == nil {
			res.Details.Updated = append(res.Details.Updated, updated)
		}
	}
}

// existing merges the canvas edges of nodeID with its registry instances.
func (m *Manager) existing(nodeID string) []flow.Edge {
	if nodeID == "" {
		return nil
	}
	owned := m.registry.ForNode(nodeID)
	out := make([]flow.Edge, 0, len(owned))
	seen := make(map[string]bool, len(owned))
	for _, inst := range owned {
		out = append(out, inst.Edge())
		seen[inst.ID] = true
	}
	if c := m.getCanvas(); c != nil {
		for _, e := range c.OutgoingEdges(nodeID) {
			if !seen[e.ID] {
				out = append(out, e)
			}
		}
	}
	return out
}

func (m *Manager) hints(node *flow.Node, b branch.Branch, idx, count int, state flow.State) Hints {
	cfg := m.cfg.Load()
	start, end := geometryFrom(cfg.Engine).Endpoints(node, idx, count, m.validator.LayoutEngine())
	return Hints{
		BranchID: b.ID,
		Label:    b.Label,
		Start:    start,
		End:      end,
		State:    state,
		Style:    cfg.StyleFor(string(state)),
		Index:    idx,
		Count:    count,
	}
}

func indexOf(bs []branch.Branch, id string) (int, branch.Branch) {
	for i, b := range bs {
		if b.ID == id {
			return i, b
		}
	}
	return -1, branch.Branch{}
}

// Recompute processes every canvas node on the worker pool. Nodes are
// independent, so no order is assumed.
func (m *Manager) Recompute(ctx context.Context, state flow.State, opts ...ProcessOption) BatchResult {
	runID := uuid.NewString()
	start := time.Now()
	ctx, span := m.tracer.Start(ctx, "preview.recompute",
		trace.WithAttributes(attribute.String("previewline.run_id", runID)))
	defer span.End()

	c := m.getCanvas()
	if c == nil {
		return BatchResult{RunID: runID}
	}
	nodes := c.Nodes()
	pool := newWorkerPool[*flow.Node, Result](ctx, m.cfg.Load().Engine.BatchWorkers, len(nodes),
		func(ctx context.Context, n *flow.Node) Result {
			return m.Process(ctx, n, state, false, opts...)
		})
	for _, n := range nodes {
		pool.Submit(n)
	}
	results := pool.Drain()

	batch := BatchResult{RunID: runID, Results: results, Duration: time.Since(start)}
	failed := len(batch.Failed())
	span.SetAttributes(
		attribute.Int("previewline.nodes", len(nodes)),
		attribute.Int("previewline.failed", failed),
	)
	m.log.Info("recompute finished",
		"run_id", runID, "nodes", len(nodes), "failed", failed, "duration_ms", batch.Duration.Milliseconds())
	return batch
}

// nodeRemover is implemented by canvases the manager may delete nodes from,
// such as *flow.Graph.
type nodeRemover interface {
	RemoveNode(id string) error
}

// OnNodeDeleted removes the node from the canvas when the canvas allows it,
// purges its instances and cache entry, then recomputes every remaining
// node in after-deletion mode.
func (m *Manager) OnNodeDeleted(ctx context.Context, nodeID string) BatchResult {
	if c, ok := m.getCanvas().(nodeRemover); ok {
		if err := c.RemoveNode(nodeID); err != nil && !errors.Is(err, flow.ErrNodeNotFound) {
			m.log.Warn("remove deleted node from canvas", "node_id", nodeID, "err", err)
		}
	}
	removed := m.purge(ctx, nodeID)
	m.validator.ClearNodeCache(nodeID)
	m.log.Info("node deleted", "node_id", nodeID, "purged", len(removed))
	return m.Recompute(ctx, m.defaultState(), AfterDeletion())
}

// Handle routes an editor trigger.
func (m *Manager) Handle(ctx context.Context, ev event.Event) (BatchResult, error) {
	if err := ev.Validate(); err != nil {
		return BatchResult{}, err
	}
	state := flow.State(ev.State)
	single := func(r Result) BatchResult {
		return BatchResult{RunID: ev.ID, Results: []Result{r}}
	}

	switch ev.Kind {
	case event.NodeConfigured:
		m.validator.ClearNodeCache(ev.NodeID)
		return single(m.ProcessID(ctx, ev.NodeID, state, ev.Force)), nil
	case event.NodeMoved:
		// Geometry changed: re-apply hints to every instance.
		return single(m.ProcessID(ctx, ev.NodeID, state, true)), nil
	case event.NodeDeleted:
		return m.OnNodeDeleted(ctx, ev.NodeID), nil
	case event.EdgeConnected, event.EdgeRemoved, event.StateChanged:
		return single(m.ProcessID(ctx, ev.NodeID, state, ev.Force)), nil
	case event.LayoutReady:
		if state == "" {
			state = m.defaultState()
		}
		return m.Recompute(ctx, state), nil
	}
	return BatchResult{}, fmt.Errorf("event %s: unhandled kind %q", ev.ID, ev.Kind)
}

// nopRenderer draws nothing; its handles report the hinted start point.
type nopRenderer struct{}

type nopHandle struct{ start flow.Point }

func (nopHandle) Removed() bool                     { return false }
func (h nopHandle) SourcePoint() (flow.Point, bool) { return h.start, true }

func (nopRenderer) Materialize(_ context.Context, _ *flow.Node, h Hints) (flow.Rendered, error) {
	return nopHandle{start: h.Start}, nil
}
func (nopRenderer) Restyle(context.Context, flow.Rendered, Hints) error { return nil }
func (nopRenderer) Discard(context.Context, flow.Rendered) error        { return nil }
