package branch

import (
	"fmt"
	"strings"

	"github.com/gyaneshwarpardhi/previewline/internal/flow"
)

const unmatchedLabel = "未命中人群"

// RepairLabels returns a copy of branches in which every branch carries a
// user-visible label. For audience splits the crowd name wins over a stale
// label and an unlabelled unmatched branch becomes 未命中人群.
func RepairLabels(nodeType string, branches []Branch) []Branch {
	if branches == nil {
		return nil
	}
	out := make([]Branch, len(branches))
	for i, b := range branches {
		switch {
		case nodeType == flow.TypeAudienceSplit && b.CrowdName != "" && b.CrowdName != b.Label:
			b.Label = b.CrowdName
		case b.Label == "":
			b.Label = DefaultLabel(b.ID, i, nodeType)
		}
		out[i] = b
	}
	return out
}

// DefaultLabel generates the fallback label for the branch at index i.
func DefaultLabel(id string, i int, nodeType string) string {
	switch {
	case strings.Contains(id, "audience") || nodeType == flow.TypeAudienceSplit:
		if strings.Contains(id, "default") {
			return unmatchedLabel
		}
		return fmt.Sprintf("人群%d", i+1)
	case strings.Contains(id, "event") || nodeType == flow.TypeEventSplit:
		if i == 0 {
			return "是"
		}
		return "否"
	case strings.Contains(id, "group") || strings.Contains(id, "version") || nodeType == flow.TypeABTest:
		if i == 0 {
			return "A组"
		}
		return "B组"
	}
	return fmt.Sprintf("分支%d", i+1)
}
