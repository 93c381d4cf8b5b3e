package validator_test

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/gyaneshwarpardhi/previewline/internal/branch"
	"github.com/gyaneshwarpardhi/previewline/internal/flow"
	"github.com/gyaneshwarpardhi/previewline/internal/validator"
)

type handle struct {
	at      flow.Point
	hasAt   bool
	removed bool
}

func (h *handle) Removed() bool                   { return h.removed }
func (h *handle) SourcePoint() (flow.Point, bool) { return h.at, h.hasAt }

func at(x, y float64) *handle { return &handle{at: flow.Point{X: x, Y: y}, hasAt: true} }

var ready = flow.LayoutFunc(func() bool { return true })

func newValidator(t *testing.T, opts ...validator.Option) *validator.Validator {
	t.Helper()
	cache := branch.NewCache(branch.WithSweepInterval(-1))
	t.Cleanup(cache.Stop)
	return validator.New(cache, append([]validator.Option{validator.WithLayoutEngine(ready)}, opts...)...)
}

func eventNode(id string) *flow.Node {
	return &flow.Node{
		ID:       id,
		Type:     flow.TypeEventSplit,
		Position: flow.Point{X: 0, Y: 0},
		Size:     flow.Size{Width: 100, Height: 40},
		Data:     map[string]interface{}{"yesLabel": "已登录", "noLabel": "未登录"},
	}
}

func preview(id, source, branchID string, state flow.State) flow.Edge {
	return flow.Edge{ID: id, Source: source, BranchID: branchID, Preview: true, State: state, Rendered: at(50, 40)}
}

func TestCheckRequirement_Gates(t *testing.T) {
	g := flow.NewGraph()
	g.AddNode(&flow.Node{ID: "present", Type: "sms"})

	cases := []struct {
		name       string
		v          *validator.Validator
		node       *flow.Node
		force      bool
		wantType   validator.Type
		wantReason string
	}{
		{"missing node", newValidator(t), nil, false, validator.NoCreation, "节点不存在"},
		{"missing id", newValidator(t), &flow.Node{Type: flow.TypeEventSplit, Data: map[string]interface{}{"yesLabel": "y"}},
			false, validator.NoCreation, "id属性"},
		{"missing id wins over force", newValidator(t), &flow.Node{Type: "sms"}, true, validator.NoCreation, "id属性"},
		{"layout not attached", validator.New(nil), &flow.Node{ID: "a"}, false, validator.NoCreation, "布局引擎未就绪"},
		{"layout not ready", newValidator(t, validator.WithLayoutEngine(flow.LayoutFunc(func() bool { return false }))),
			&flow.Node{ID: "a"}, false, validator.NoCreation, "布局引擎未就绪"},
		{"not in graph", newValidator(t, validator.WithCanvas(g)), &flow.Node{ID: "absent"}, false, validator.NoCreation, "节点不在图中"},
		{"force", newValidator(t, validator.WithCanvas(g)), &flow.Node{ID: "present"}, true, validator.NeedsUpdate, "强制更新"},
		{"id from data", newValidator(t), &flow.Node{Type: "sms", Data: map[string]interface{}{"id": "d1"}}, false, validator.NeedsCreation, "需要创建单一预览线"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.v.CheckRequirement(tc.node, flow.StateInteractive, nil, tc.force)
			if got.Type != tc.wantType || !strings.Contains(got.Reason, tc.wantReason) {
				t.Errorf("verdict = %s %q, want %s containing %q", got.Type, got.Reason, tc.wantType, tc.wantReason)
			}
		})
	}
}

func TestCheckRequirement_ZeroBranchesNeverCreates(t *testing.T) {
	v := newValidator(t)
	nodes := []*flow.Node{
		{ID: "a", Type: flow.TypeAudienceSplit},
		{ID: "b", Type: flow.TypeEventSplit, Data: map[string]interface{}{}},
		{ID: "c", Type: flow.TypeABTest, Data: map[string]interface{}{"versions": []interface{}{}}},
		{ID: "d", Type: flow.TypeEnd},
	}
	for _, n := range nodes {
		existing := []flow.Edge{
			preview("p-"+n.ID, n.ID, "x", flow.StateHover),
			{ID: "broken-" + n.ID, Source: n.ID, Preview: true},
		}
		for _, state := range []flow.State{flow.StateInteractive, flow.StateDragging} {
			got := v.CheckRequirement(n, state, existing, false)
			if got.Type != validator.NoCreation || got.NeedsCreation {
				t.Errorf("node %s: verdict = %s (%s), want NO_CREATION", n.ID, got.Type, got.Reason)
			}
		}
	}
}

func TestCheckRequirement_SingleOutput(t *testing.T) {
	v := newValidator(t)
	n := &flow.Node{ID: "s", Type: flow.TypeStart, Size: flow.Size{Width: 100, Height: 40}}

	got := v.CheckRequirement(n, flow.StateInteractive, nil, false)
	if got.Type != validator.NeedsCreation || len(got.Details.Operations.CreateNew) != 1 {
		t.Fatalf("empty start: %s %+v", got.Type, got.Details.Operations)
	}

	existing := []flow.Edge{preview("p", "s", "", flow.StateInteractive)}
	if got := v.CheckRequirement(n, flow.StateInteractive, existing, false); got.Type != validator.NoCreation {
		t.Errorf("satisfied start: %s %q", got.Type, got.Reason)
	}

	got = v.CheckRequirement(n, flow.StateDragging, existing, false)
	if got.Type != validator.NeedsUpdate || got.Code != validator.CodeStateChange {
		t.Fatalf("state change: %s %s", got.Type, got.Code)
	}
	if got.Reason != "状态需要更新: interactive -> dragging" {
		t.Errorf("reason = %q", got.Reason)
	}

	existing = append(existing, flow.Edge{ID: "r", Source: "s", Target: "t"})
	got = v.CheckRequirement(n, flow.StateInteractive, existing, false)
	if got.Type != validator.NeedsUpdate || len(got.Details.Operations.RemoveExtra) != 1 || got.Details.Operations.RemoveExtra[0].ID != "p" {
		t.Errorf("connected start with stale preview: %s %+v", got.Type, got.Details.Operations)
	}

	got = v.CheckRequirement(n, flow.StateInteractive, []flow.Edge{{ID: "r", Source: "s", Target: "t"}}, false)
	if got.Type != validator.NoCreation {
		t.Errorf("connected start: %s %q", got.Type, got.Reason)
	}
}

func TestCheckRequirement_Branching(t *testing.T) {
	v := newValidator(t)
	n := eventNode("ev")

	existing := []flow.Edge{
		preview("p-yes", "ev", "event_yes", flow.StateInteractive),
		preview("p-yes-dup", "ev", "event_yes", flow.StateInteractive),
		preview("p-old", "ev", "group_a", flow.StateInteractive),
		preview("p-loose", "ev", "", flow.StateInteractive),
		{ID: "p-dead", Source: "ev", BranchID: "event_no", Preview: true, Rendered: &handle{removed: true}},
	}
	got := v.CheckRequirement(n, flow.StateInteractive, existing, false)
	if got.Type != validator.NeedsUpdate || !strings.HasPrefix(got.Reason, "分支预览线需要调整") {
		t.Fatalf("verdict = %s %q", got.Type, got.Reason)
	}
	ops := got.Details.Operations
	if len(ops.CreateNew) != 1 || ops.CreateNew[0].ID != "event_no" || ops.CreateNew[0].Label != "未登录" {
		t.Errorf("createNew = %+v", ops.CreateNew)
	}
	if ids := edgeIDs(ops.RemoveExtra); ids != "p-yes-dup,p-old,p-loose" {
		t.Errorf("removeExtra = %s", ids)
	}
	if ids := edgeIDs(ops.RemoveInvalid); ids != "p-dead" {
		t.Errorf("removeInvalid = %s", ids)
	}
	if len(got.Details.PerBranch) != 2 || got.Details.PerBranch[0].Status != validator.StatusSatisfiedPreview {
		t.Errorf("perBranch = %+v", got.Details.PerBranch)
	}

	// Real edge for yes, preview in another state for no.
	existing = []flow.Edge{
		{ID: "r-yes", Source: "ev", Target: "t", BranchID: "event_yes"},
		preview("p-no", "ev", "event_no", flow.StateHover),
	}
	got = v.CheckRequirement(n, flow.StateInteractive, existing, false)
	ops = got.Details.Operations
	if len(ops.UpdateExisting) != 1 || ops.UpdateExisting[0].Edge.ID != "p-no" || ops.UpdateExisting[0].To != flow.StateInteractive {
		t.Errorf("updateExisting = %+v", ops.UpdateExisting)
	}

	existing = []flow.Edge{
		{ID: "r-yes", Source: "ev", Target: "t", BranchID: "event_yes"},
		preview("p-no", "ev", "event_no", flow.StateInteractive),
	}
	got = v.CheckRequirement(n, flow.StateInteractive, existing, false)
	if got.Type != validator.NoCreation || got.Reason != "所有分支预览线已存在且有效 (2/2)" {
		t.Errorf("satisfied: %s %q", got.Type, got.Reason)
	}
}

func TestCheckRequirement_StrictCoordinates(t *testing.T) {
	n := eventNode("ev")
	drifted := flow.Edge{ID: "p-yes", Source: "ev", BranchID: "event_yes", Preview: true,
		State: flow.StateInteractive, Rendered: at(70, 40)}
	existing := []flow.Edge{drifted, preview("p-no", "ev", "event_no", flow.StateInteractive)}

	got := newValidator(t, validator.WithStrictCoordinates(true)).CheckRequirement(n, flow.StateInteractive, existing, false)
	if got.Type != validator.NeedsCleanup || !strings.Contains(got.Reason, "p-yes") {
		t.Errorf("strict: %s %q", got.Type, got.Reason)
	}
	ops := got.Details.Operations
	if len(ops.RemoveInvalid) != 1 || ops.RemoveInvalid[0].ID != "p-yes" ||
		len(ops.CreateNew) != 1 || ops.CreateNew[0].ID != "event_yes" ||
		len(ops.RemoveExtra) != 0 || len(ops.UpdateExisting) != 0 {
		t.Errorf("strict operations = %+v", ops)
	}

	got = newValidator(t).CheckRequirement(n, flow.StateInteractive, existing, false)
	if got.Type != validator.NoCreation {
		t.Fatalf("lenient: %s %q", got.Type, got.Reason)
	}
	invalid := 0
	for _, c := range got.Details.Coordinates {
		if !c.IsValid {
			invalid++
		}
	}
	if invalid != 1 {
		t.Errorf("coordinate diagnostics = %+v", got.Details.Coordinates)
	}
}

type panickingCanvas struct{ flow.Canvas }

func (panickingCanvas) HasNode(string) bool { panic("canvas exploded") }

func TestCheckRequirement_RecoversPanics(t *testing.T) {
	v := newValidator(t, validator.WithCanvas(panickingCanvas{}))
	got := v.CheckRequirement(&flow.Node{ID: "x"}, flow.StateInteractive, nil, false)
	if got.Type != validator.NeedsCreation || got.Reason != "检查异常: canvas exploded" || got.NodeID != "x" {
		t.Errorf("verdict = %+v", got)
	}
}

type recorder struct {
	mu      sync.Mutex
	records []string
}

func (r *recorder) Enabled(context.Context, slog.Level) bool { return true }
func (r *recorder) Handle(_ context.Context, rec slog.Record) error {
	r.mu.Lock()
	r.records = append(r.records, rec.Message)
	r.mu.Unlock()
	return nil
}
func (r *recorder) WithAttrs([]slog.Attr) slog.Handler { return r }
func (r *recorder) WithGroup(string) slog.Handler      { return r }

func (r *recorder) count(msg string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.records {
		if m == msg {
			n++
		}
	}
	return n
}

func TestCheckRequirement_LogsOncePerCall(t *testing.T) {
	rec := &recorder{}
	v := newValidator(t, validator.WithLogger(slog.New(rec)))

	v.CheckRequirement(nil, flow.StateInteractive, nil, false)
	v.CheckRequirement(eventNode("ev"), flow.StateInteractive, nil, false)
	v.CheckRequirement(&flow.Node{ID: "s", Type: "start"}, flow.StateInteractive, nil, true)

	if n := rec.count("requirement checked"); n != 3 {
		t.Errorf("outcome records = %d, want 3", n)
	}
}

func TestEvaluate_Silent(t *testing.T) {
	rec := &recorder{}
	v := newValidator(t, validator.WithLogger(slog.New(rec)))

	got := v.Evaluate(eventNode("ev"), flow.StateInteractive, nil)
	if got.Type != validator.NeedsUpdate || len(got.Details.Operations.CreateNew) != 2 {
		t.Fatalf("evaluate: %s %+v", got.Type, got.Details)
	}
	if n := rec.count("requirement checked"); n != 0 {
		t.Errorf("evaluate logged %d outcome records", n)
	}
}

func TestSetLayoutEngine(t *testing.T) {
	v := validator.New(nil)
	if v.IsLayoutEngineReady() {
		t.Fatal("ready without a layout engine")
	}
	v.SetLayoutEngine(ready)
	if !v.IsLayoutEngineReady() {
		t.Error("not ready after SetLayoutEngine")
	}
}

func TestCoordinates_Check(t *testing.T) {
	n := &flow.Node{ID: "n", Position: flow.Point{X: 10, Y: 20}, Size: flow.Size{Width: 100, Height: 40}}
	cases := []struct {
		name      string
		handle    flow.Rendered
		wantValid bool
		wantErrs  int
	}{
		{"on anchor", at(60, 60), true, 0},
		{"within tolerance", at(63, 58), true, 0},
		{"deviates by 20", at(80, 60), false, 2},
		{"y axis only over", at(60, 66), false, 1},
		{"no start point", &handle{}, false, 1},
		{"no rendered object", nil, false, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := validator.Coordinates{}.Check(n, flow.Edge{ID: "e", Rendered: tc.handle})
			if got.IsValid != tc.wantValid || len(got.Errors) != tc.wantErrs {
				t.Errorf("result = %+v", got)
			}
			if got.Expected != (flow.Point{X: 60, Y: 60}) && tc.handle != nil {
				t.Errorf("expected anchor = %+v", got.Expected)
			}
		})
	}
}

func edgeIDs(edges []flow.Edge) string {
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.ID
	}
	return strings.Join(ids, ",")
}
