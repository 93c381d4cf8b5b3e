package branch

import (
	"math"
	"strconv"
	"strings"
)

// lookup reads key from the node data, then from its nested "config" map.
func lookup(cfg map[string]interface{}, key string) interface{} {
	if v, ok := cfg[key]; ok && v != nil {
		return v
	}
	if inner, ok := cfg["config"].(map[string]interface{}); ok {
		return inner[key]
	}
	return nil
}

// truthy follows the editor's loose notion of "set": nil, false, "", 0 and
// NaN are unset; everything else, including empty containers, is set.
func truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	}
	if f, ok := number(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	return true
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok && m != nil
}

// asList accepts the two list shapes produced by YAML/JSON decoding and by
// Go callers.
func asList(v interface{}) ([]interface{}, bool) {
	switch x := v.(type) {
	case []interface{}:
		return x, true
	case []map[string]interface{}:
		out := make([]interface{}, len(x))
		for i, m := range x {
			out[i] = m
		}
		return out, true
	}
	return nil, false
}

func nonEmptyList(v interface{}) ([]interface{}, bool) {
	l, ok := asList(v)
	return l, ok && len(l) > 0
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// text returns v when it is a non-empty string.
func text(v interface{}) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// idText renders string and numeric ids alike.
func idText(v interface{}) string {
	if s := text(v); s != "" {
		return s
	}
	if f, ok := number(v); ok && !math.IsNaN(f) && f != 0 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

// firstText returns the first non-empty string among m[keys...].
func firstText(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s := text(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func firstID(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if s := idText(m[k]); s != "" {
			return s
		}
	}
	return ""
}
