package config

// States recognised by the renderer styles and by DefaultState.
var knownStates = []string{"interactive", "dragging", "connected", "hover", "pending", "invalid"}

// defaultStyles mirror the editor's stock palette.
var defaultStyles = map[string]Style{
	"interactive": {Stroke: "#40a9ff", StrokeWidth: 2, Opacity: 0.8, Cursor: "pointer"},
	"dragging":    {Stroke: "#ff7875", StrokeWidth: 3, DashArray: "5,5", Opacity: 0.9, Cursor: "grabbing"},
	"connected":   {Stroke: "#52c41a", StrokeWidth: 2, Opacity: 1, Cursor: "default"},
	"hover":       {Stroke: "#722ed1", StrokeWidth: 3, Opacity: 1, Cursor: "pointer"},
	"pending":     {Stroke: "#1890ff", StrokeWidth: 2, DashArray: "2,4", Opacity: 0.6, Cursor: "wait"},
	"invalid":     {Stroke: "#ff4d4f", StrokeWidth: 2, DashArray: "3,3", Opacity: 0.8, Cursor: "not-allowed"},
}

// Default returns a Config with every default applied and no flow document.
func Default() *Config {
	cfg := &Config{Version: "v1"}
	applyDefaults(cfg)
	return cfg
}

// StyleFor returns the style configured for state, falling back to the
// interactive style.
func (c *Config) StyleFor(state string) Style {
	if s, ok := c.Styles[state]; ok {
		return s
	}
	if s, ok := defaultStyles[state]; ok {
		return s
	}
	return defaultStyles["interactive"]
}

func applyDefaults(cfg *Config) {
	e := &cfg.Engine
	if e.CacheTimeoutMs == 0 {
		e.CacheTimeoutMs = 5000
	}
	if e.CacheSweepIntervalMs == 0 {
		e.CacheSweepIntervalMs = 10000
	}
	if e.AxisTolerance == 0 {
		e.AxisTolerance = 5
	}
	if e.DistanceTolerance == 0 {
		e.DistanceTolerance = 10
	}
	if e.DefaultState == "" {
		e.DefaultState = "interactive"
	}
	if e.PreviewLength == 0 {
		e.PreviewLength = 120
	}
	if e.BranchSpacing == 0 {
		e.BranchSpacing = 60
	}
	if e.MaxSpread == 0 {
		e.MaxSpread = 300
	}
	if e.BatchWorkers == 0 {
		e.BatchWorkers = 4
	}
	if e.RetryAfterMs == 0 {
		e.RetryAfterMs = 100
	}
	if cfg.Styles == nil {
		cfg.Styles = make(map[string]Style, len(defaultStyles))
	}
	for state, s := range defaultStyles {
		if _, ok := cfg.Styles[state]; !ok {
			cfg.Styles[state] = s
		}
	}
	for i := range cfg.Nodes {
		n := &cfg.Nodes[i]
		if n.Width == 0 {
			n.Width = 120
		}
		if n.Height == 0 {
			n.Height = 40
		}
	}
}
