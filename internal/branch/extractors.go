package branch

import (
	"fmt"
	"log/slog"

	"github.com/gyaneshwarpardhi/previewline/internal/flow"
)

// audienceSplit produces one branch per crowd layer plus an optional
// unmatched-crowd branch, which always comes last.
type audienceSplit struct{}

func (audienceSplit) Type() string { return flow.TypeAudienceSplit }

func (audienceSplit) Extract(cfg map[string]interface{}, log *slog.Logger) []Branch {
	entries, ok := audienceEntries(cfg)
	if !ok {
		if lookup(cfg, "isConfigured") == true {
			return []Branch{
				{ID: "default_branch_1", Label: "分支1", Kind: KindAudience, IsDefault: true, Order: 1},
				{ID: "default_branch_2", Label: "分支2", Kind: KindAudience, IsDefault: true, Order: 2},
			}
		}
		return nil
	}

	branches := make([]Branch, 0, len(entries)+1)
	for i, item := range entries {
		m, ok := asMap(item)
		if !ok {
			log.Warn("skipping malformed audience entry", "index", i)
			continue
		}
		id := firstID(m, "id", "crowdId")
		if id == "" {
			id = fmt.Sprintf("audience_%d", i)
		}
		label := firstText(m, "crowdName", "name", "audienceName", "label")
		if label == "" {
			label = fmt.Sprintf("人群%d", i+1)
		}
		crowdID := firstID(m, "crowdId", "id")
		branches = append(branches, Branch{
			ID:        id,
			Label:     label,
			Kind:      KindAudience,
			Order:     i + 1,
			CrowdName: label,
			CrowdID:   crowdID,
		})
	}

	if um, ok := asMap(lookup(cfg, "unmatchBranch")); ok {
		id := idText(um["id"])
		if id == "" {
			id = "unmatch_default"
		}
		label := firstText(um, "name", "crowdName")
		if label == "" {
			label = "未命中人群"
		}
		branches = append(branches, Branch{
			ID:        id,
			Label:     label,
			Kind:      KindAudience,
			IsDefault: true,
			Order:     len(branches) + 1,
			CrowdName: label,
			CrowdID:   idText(um["crowdId"]),
		})
	}
	return branches
}

func (audienceSplit) StoredValid(cfg map[string]interface{}, stored []Branch) bool {
	if _, ok := audienceEntries(cfg); ok {
		return true
	}
	if truthy(cfg["crowdLayers"]) || truthy(cfg["audiences"]) {
		return true
	}
	for _, b := range stored {
		if b.Kind == KindAudience && (b.CrowdName != "" || b.Label != "") {
			return true
		}
	}
	return false
}

// audienceEntries returns the first non-empty audience list in priority order.
func audienceEntries(cfg map[string]interface{}) ([]interface{}, bool) {
	if l, ok := nonEmptyList(cfg["crowdLayers"]); ok {
		return l, true
	}
	if l, ok := nonEmptyList(cfg["audiences"]); ok {
		return l, true
	}
	if inner, ok := asMap(cfg["config"]); ok {
		if l, ok := nonEmptyList(inner["crowdLayers"]); ok {
			return l, true
		}
		if l, ok := nonEmptyList(inner["audiences"]); ok {
			return l, true
		}
	}
	return nil, false
}

// eventSplit always yields the yes/no pair once any event setting exists.
type eventSplit struct{}

func (eventSplit) Type() string { return flow.TypeEventSplit }

func (eventSplit) Extract(cfg map[string]interface{}, _ *slog.Logger) []Branch {
	if !eventConfigured(cfg) && !truthy(lookup(cfg, "isConfigured")) {
		return nil
	}
	yes := text(lookup(cfg, "yesLabel"))
	if yes == "" {
		yes = "是"
	}
	no := text(lookup(cfg, "noLabel"))
	if no == "" {
		no = "否"
	}
	return []Branch{
		{ID: "event_yes", Label: yes, Kind: KindEvent, Order: 1},
		{ID: "event_no", Label: no, Kind: KindEvent, Order: 2},
	}
}

func (eventSplit) StoredValid(cfg map[string]interface{}, stored []Branch) bool {
	return eventConfigured(cfg) || hasKind(stored, KindEvent)
}

func eventConfigured(cfg map[string]interface{}) bool {
	return truthy(lookup(cfg, "eventCondition")) ||
		truthy(lookup(cfg, "yesLabel")) ||
		truthy(lookup(cfg, "noLabel"))
}

// abTest yields one branch per version, or a synthetic A/B pair.
type abTest struct{}

func (abTest) Type() string { return flow.TypeABTest }

func (abTest) Extract(cfg map[string]interface{}, log *slog.Logger) []Branch {
	if versions, ok := nonEmptyList(lookup(cfg, "versions")); ok {
		branches := make([]Branch, 0, len(versions))
		for i, item := range versions {
			m, ok := asMap(item)
			if !ok {
				log.Warn("skipping malformed ab-test version", "index", i)
				continue
			}
			id := idText(m["id"])
			if id == "" {
				id = fmt.Sprintf("version_%d", i)
			}
			label := text(m["name"])
			if label == "" {
				label = fmt.Sprintf("版本%d", i+1)
			}
			b := Branch{ID: id, Label: label, Kind: KindVariant, Order: i + 1}
			if r, ok := number(m["ratio"]); ok {
				b.Ratio = r
			}
			branches = append(branches, b)
		}
		return branches
	}

	if !abConfigured(cfg) {
		return nil
	}
	a := text(lookup(cfg, "groupALabel"))
	if a == "" {
		a = "A组"
	}
	b := text(lookup(cfg, "groupBLabel"))
	if b == "" {
		b = "B组"
	}
	return []Branch{
		{ID: "group_a", Label: a, Kind: KindVariant, Order: 1, Ratio: ratioOr(lookup(cfg, "groupARatio"), 50)},
		{ID: "group_b", Label: b, Kind: KindVariant, Order: 2, Ratio: ratioOr(lookup(cfg, "groupBRatio"), 50)},
	}
}

func (abTest) StoredValid(cfg map[string]interface{}, stored []Branch) bool {
	return truthy(lookup(cfg, "versions")) ||
		truthy(lookup(cfg, "groupALabel")) ||
		truthy(lookup(cfg, "groupBLabel")) ||
		hasKind(stored, KindVariant)
}

func abConfigured(cfg map[string]interface{}) bool {
	for _, k := range []string{"groupALabel", "groupBLabel", "groupARatio", "groupBRatio"} {
		if truthy(lookup(cfg, k)) {
			return true
		}
	}
	return false
}

func ratioOr(v interface{}, def float64) float64 {
	if f, ok := number(v); ok && f != 0 {
		return f
	}
	return def
}
