package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gyaneshwarpardhi/previewline/internal/config"
	"github.com/gyaneshwarpardhi/previewline/internal/flow"
	"github.com/gyaneshwarpardhi/previewline/internal/preview"
	"github.com/gyaneshwarpardhi/previewline/internal/render"
)

const flowDoc = `
version: v1
nodes:
  - id: start
    type: start
    x: 100
    y: 20
    width: 100
    height: 40
  - id: split
    type: audience-split
    x: 100
    y: 160
    width: 120
    height: 40
    data:
      isConfigured: true
      crowdLayers:
        - id: c1
          crowdName: 高价值用户
        - id: c2
          crowdName: 普通用户
edges:
  - id: e1
    source: start
    target: split
`

type fixture struct {
	srv  *httptest.Server
	mgr  *preview.Manager
	mem  *render.Memory
	path string
}

func newServer(t *testing.T, doc string) fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flow.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	loader, err := config.NewLoader(path)
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	mem := render.NewMemory()
	mgr := preview.NewManager(nil, mem,
		preview.WithConfig(loader.Config()),
		preview.WithLayoutEngine(flow.LayoutFunc(func() bool { return true })),
	)
	t.Cleanup(mgr.Close)
	if _, err := Apply(context.Background(), mgr, loader.Config()); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	srv := httptest.NewServer(New(mgr, loader))
	t.Cleanup(srv.Close)
	return fixture{srv: srv, mgr: mgr, mem: mem, path: path}
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestApply_CreatesBranchPreviews(t *testing.T) {
	f := newServer(t, flowDoc)
	mgr, mem := f.mgr, f.mem
	if got := len(mgr.Registry().ForNode("split")); got != 2 {
		t.Fatalf("split instances: got %d, want 2", got)
	}
	if got := len(mgr.Registry().ForNode("start")); got != 0 {
		t.Errorf("start has a real edge, got %d instances", got)
	}
	if got := len(mem.Live()); got != 2 {
		t.Errorf("live connectors: got %d, want 2", got)
	}
}

func TestApply_InvalidConfig(t *testing.T) {
	mgr := preview.NewManager(nil, render.NewMemory())
	defer mgr.Close()
	if _, err := Apply(context.Background(), mgr, &config.Config{}); err == nil {
		t.Fatal("expected error for config without version")
	}
}

func TestListInstances(t *testing.T) {
	srv := newServer(t, flowDoc).srv

	tests := []struct {
		query string
		want  int
	}{
		{"", 2},
		{"?node=split", 2},
		{"?node=start", 0},
		{"?node=missing", 0},
	}
	for _, tc := range tests {
		resp, err := http.Get(srv.URL + "/v1/instances" + tc.query)
		if err != nil {
			t.Fatal(err)
		}
		var body struct {
			Count     int                `json:"count"`
			Instances []preview.Instance `json:"instances"`
		}
		decode(t, resp, &body)
		if body.Count != tc.want || len(body.Instances) != tc.want {
			t.Errorf("%q: got count=%d len=%d, want %d", tc.query, body.Count, len(body.Instances), tc.want)
		}
	}
}

func TestIngestEvent(t *testing.T) {
	f := newServer(t, flowDoc)
	srv, mgr := f.srv, f.mgr

	body := `{"kind":"state_changed","node_id":"split","state":"dragging"}`
	resp, err := http.Post(srv.URL+"/v1/events", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d", resp.StatusCode)
	}
	var res preview.BatchResult
	decode(t, resp, &res)
	if res.RunID == "" {
		t.Error("expected a generated event id as run id")
	}
	if len(res.Results) != 1 || res.Results[0].Action != preview.ActionUpdated {
		t.Fatalf("unexpected results: %+v", res.Results)
	}
	for _, inst := range mgr.Registry().ForNode("split") {
		if inst.State != flow.StateDragging {
			t.Errorf("instance %s state: got %s", inst.ID, inst.State)
		}
	}
}

func TestIngestEvent_BadInput(t *testing.T) {
	srv := newServer(t, flowDoc).srv

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{`},
		{"unknown kind", `{"id":"ev-1","kind":"exploded","node_id":"split"}`},
		{"missing node", `{"id":"ev-2","kind":"node_moved"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/v1/events", "application/json", strings.NewReader(tc.body))
			if err != nil {
				t.Fatal(err)
			}
			var e errorResponse
			decode(t, resp, &e)
			if resp.StatusCode != http.StatusBadRequest || e.Error == "" {
				t.Errorf("got %d %q, want 400 with message", resp.StatusCode, e.Error)
			}
			if tc.name != "malformed" && e.EventID == "" {
				t.Errorf("error envelope lacks event id: %+v", e)
			}
			if tc.name == "unknown kind" && e.NodeID != "split" {
				t.Errorf("error envelope node id = %q", e.NodeID)
			}
		})
	}
}

func TestNodeDeletedEvent(t *testing.T) {
	f := newServer(t, flowDoc)

	body := `{"kind":"node_deleted","node_id":"split"}`
	resp, err := http.Post(f.srv.URL+"/v1/events", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	var res preview.BatchResult
	decode(t, resp, &res)
	for _, r := range res.Results {
		if r.NodeID == "split" {
			t.Errorf("deleted node was processed again: %+v", r)
		}
	}
	if got := len(f.mgr.Registry().ForNode("split")); got != 0 {
		t.Errorf("split instances after delete = %d", got)
	}
	if got := len(f.mem.LiveFor("split")); got != 0 {
		t.Errorf("split connectors after delete = %d", got)
	}
}

func TestIngestBatch(t *testing.T) {
	srv := newServer(t, flowDoc).srv

	body := `[{"kind":"node_configured","node_id":"split"},{"kind":"bogus","node_id":"x"}]`
	resp, err := http.Post(srv.URL+"/v1/events/batch", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		Total    int         `json:"total"`
		Rejected int         `json:"rejected"`
		Items    []batchItem `json:"items"`
	}
	decode(t, resp, &out)
	if out.Total != 2 || out.Rejected != 1 || len(out.Items) != 2 {
		t.Fatalf("unexpected batch response: %+v", out)
	}
	if out.Items[0].Result == nil || out.Items[1].Error == "" {
		t.Errorf("items: %+v", out.Items)
	}

	resp, err = http.Post(srv.URL+"/v1/events/batch", "application/json", strings.NewReader(`[]`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty batch: got %d", resp.StatusCode)
	}
}

func TestRequirement_DryRun(t *testing.T) {
	f := newServer(t, flowDoc)
	srv, mgr := f.srv, f.mgr
	before := mgr.Registry().Len()

	resp, err := http.Get(srv.URL + "/v1/nodes/split/requirement")
	if err != nil {
		t.Fatal(err)
	}
	var v struct {
		Type          string `json:"type"`
		NeedsCreation bool   `json:"needsCreation"`
	}
	decode(t, resp, &v)
	if v.Type != "NO_CREATION" || v.NeedsCreation {
		t.Errorf("got %+v, want satisfied NO_CREATION", v)
	}
	if mgr.Registry().Len() != before {
		t.Error("dry run must not change the registry")
	}
}

func TestReloadFlow(t *testing.T) {
	f := newServer(t, flowDoc)

	reload := func() map[string]interface{} {
		t.Helper()
		resp, err := http.Post(f.srv.URL+"/v1/flow/reload", "application/json", nil)
		if err != nil {
			t.Fatal(err)
		}
		var out map[string]interface{}
		decode(t, resp, &out)
		if out["reloaded"] != true {
			t.Fatalf("reload: %v", out)
		}
		return out
	}

	reload()
	if got := f.mgr.Registry().Len(); got != 2 {
		t.Errorf("instances after identical reload: got %d, want 2", got)
	}

	// Dropping the split node purges its previews.
	doc := flowDoc[:strings.Index(flowDoc, "  - id: split")] + "edges: []\n"
	if err := os.WriteFile(f.path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	out := reload()
	if out["nodes"] != float64(1) {
		t.Errorf("nodes: got %v, want 1", out["nodes"])
	}
	if got := len(f.mgr.Registry().ForNode("split")); got != 0 {
		t.Errorf("split instances after removal: got %d", got)
	}
	if got := len(f.mem.LiveFor("split")); got != 0 {
		t.Errorf("split connectors after removal: got %d", got)
	}
}

func TestProbes(t *testing.T) {
	f := newServer(t, flowDoc)
	srv, mgr := f.srv, f.mgr

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: got %d", path, resp.StatusCode)
		}
	}

	mgr.SetLayoutEngine(nil)
	resp, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("readyz without layout: got %d", resp.StatusCode)
	}
}
