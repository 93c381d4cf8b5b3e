package config

// Config is the top-level YAML structure.
// Nodes and Edges are optional; a library user that owns its own canvas
// only needs Engine and Styles.
type Config struct {
	Version string           `yaml:"version"`
	Engine  EngineConf       `yaml:"engine"`
	Styles  map[string]Style `yaml:"styles"`
	Nodes   []NodeDef        `yaml:"nodes"`
	Edges   []EdgeDef        `yaml:"edges"`
}

// EngineConf holds the tunables of the decision engine and orchestrator.
type EngineConf struct {
	CacheTimeoutMs       int     `yaml:"cache_timeout_ms"`
	CacheSweepIntervalMs int     `yaml:"cache_sweep_interval_ms"`
	AxisTolerance        float64 `yaml:"axis_tolerance"`
	DistanceTolerance    float64 `yaml:"distance_tolerance"`
	StrictCoordinates    bool    `yaml:"strict_coordinate_validation"`
	DefaultState         string  `yaml:"default_state"`
	PreviewLength        float64 `yaml:"preview_length"`
	BranchSpacing        float64 `yaml:"branch_spacing"`
	MaxSpread            float64 `yaml:"max_spread"`
	BatchWorkers         int     `yaml:"batch_workers"`
	RetryAfterMs         int     `yaml:"retry_after_ms"`
	RevalidateOnSkip     bool    `yaml:"revalidate_on_skip"`
}

// Style is the set of hints handed to the renderer for one connector state.
type Style struct {
	Stroke      string  `yaml:"stroke" json:"stroke"`
	StrokeWidth float64 `yaml:"stroke_width" json:"stroke_width"`
	DashArray   string  `yaml:"dash_array,omitempty" json:"dash_array,omitempty"`
	Opacity     float64 `yaml:"opacity" json:"opacity"`
	Cursor      string  `yaml:"cursor,omitempty" json:"cursor,omitempty"`
}

// NodeDef describes one canvas node in a flow document.
type NodeDef struct {
	ID     string                 `yaml:"id"`
	Type   string                 `yaml:"type"`
	Shape  string                 `yaml:"shape"`
	X      float64                `yaml:"x"`
	Y      float64                `yaml:"y"`
	Width  float64                `yaml:"width"`
	Height float64                `yaml:"height"`
	Data   map[string]interface{} `yaml:"data"`
}

// EdgeDef describes one edge. An empty Target or Preview=true makes it a
// preview edge.
type EdgeDef struct {
	ID       string `yaml:"id"`
	Source   string `yaml:"source"`
	Target   string `yaml:"target"`
	BranchID string `yaml:"branch_id"`
	Preview  bool   `yaml:"preview"`
}
