package config

import (
	"fmt"
	"slices"
	"strings"
)

// Validate checks the config for:
//   - Required fields and sane engine tunables
//   - Unknown state names in styles and default_state
//   - Duplicate node and edge IDs
//   - Edges whose source or target node does not exist
func Validate(cfg *Config) error {
	if cfg.Version == "" {
		return fmt.Errorf("config: version is required")
	}
	var errs []string

	e := cfg.Engine
	if e.CacheTimeoutMs < 0 {
		errs = append(errs, "engine.cache_timeout_ms must not be negative")
	}
	if e.CacheSweepIntervalMs < 0 {
		errs = append(errs, "engine.cache_sweep_interval_ms must not be negative")
	}
	if e.AxisTolerance < 0 || e.DistanceTolerance < 0 {
		errs = append(errs, "engine tolerances must not be negative")
	}
	if e.BatchWorkers < 0 {
		errs = append(errs, "engine.batch_workers must not be negative")
	}
	if e.DefaultState != "" && !slices.Contains(knownStates, e.DefaultState) {
		errs = append(errs, fmt.Sprintf("engine.default_state: unknown state %q", e.DefaultState))
	}
	for state := range cfg.Styles {
		if !slices.Contains(knownStates, state) {
			errs = append(errs, fmt.Sprintf("styles: unknown state %q", state))
		}
	}

	nodes := make(map[string]int)
	for i, n := range cfg.Nodes {
		if n.ID == "" {
			errs = append(errs, fmt.Sprintf("nodes[%d]: id is required", i))
			continue
		}
		if prev, ok := nodes[n.ID]; ok {
			errs = append(errs, fmt.Sprintf("duplicate node id %q (nodes[%d] and nodes[%d])", n.ID, prev, i))
			continue
		}
		nodes[n.ID] = i
		if n.Width < 0 || n.Height < 0 {
			errs = append(errs, fmt.Sprintf("node %s: size must not be negative", n.ID))
		}
	}

	edges := make(map[string]int)
	for i, ed := range cfg.Edges {
		if ed.ID == "" {
			errs = append(errs, fmt.Sprintf("edges[%d]: id is required", i))
			continue
		}
		if prev, ok := edges[ed.ID]; ok {
			errs = append(errs, fmt.Sprintf("duplicate edge id %q (edges[%d] and edges[%d])", ed.ID, prev, i))
			continue
		}
		edges[ed.ID] = i
		if _, ok := nodes[ed.Source]; !ok {
			errs = append(errs, fmt.Sprintf("edge %s: unknown source node %q", ed.ID, ed.Source))
		}
		if ed.Target != "" {
			if _, ok := nodes[ed.Target]; !ok {
				errs = append(errs, fmt.Sprintf("edge %s: unknown target node %q", ed.ID, ed.Target))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
