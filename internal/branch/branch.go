// Package branch derives the logical output slots of a flow node from its
// configuration and memoizes the result per node.
package branch

// Kind discriminates the branch families.
type Kind string

const (
	KindAudience Kind = "audience"
	KindEvent    Kind = "event"
	KindVariant  Kind = "variant"
)

// Branch is one logical output slot of a node.
type Branch struct {
	ID        string  `json:"id" yaml:"id"`
	Label     string  `json:"label" yaml:"label"`
	Kind      Kind    `json:"type,omitempty" yaml:"type,omitempty"`
	IsDefault bool    `json:"isDefault,omitempty" yaml:"isDefault,omitempty"`
	Order     int     `json:"order" yaml:"order"`
	Ratio     float64 `json:"ratio,omitempty" yaml:"ratio,omitempty"`
	CrowdName string  `json:"crowdName,omitempty" yaml:"crowdName,omitempty"`
	CrowdID   string  `json:"crowdId,omitempty" yaml:"crowdId,omitempty"`
}

// IDs returns the branch ids in order.
func IDs(branches []Branch) []string {
	out := make([]string, len(branches))
	for i, b := range branches {
		out[i] = b.ID
	}
	return out
}
