package validator

import (
	"time"

	"github.com/gyaneshwarpardhi/previewline/internal/branch"
	"github.com/gyaneshwarpardhi/previewline/internal/classify"
	"github.com/gyaneshwarpardhi/previewline/internal/flow"
)

// Type is the decision kind of a Verdict.
type Type string

const (
	NoCreation    Type = "NO_CREATION"
	NeedsCreation Type = "NEEDS_CREATION"
	NeedsUpdate   Type = "NEEDS_UPDATE"
	NeedsCleanup  Type = "NEEDS_CLEANUP"
)

// Code is the machine-readable counterpart of a verdict's reason.
type Code string

const (
	CodeNodeMissing     Code = "node_missing"
	CodeNodeNoID        Code = "node_no_id"
	CodeLayoutNotReady  Code = "layout_not_ready"
	CodeNotInGraph      Code = "node_not_in_graph"
	CodeForced          Code = "forced"
	CodeEndNode         Code = "end_node"
	CodeNoBranches      Code = "no_branches"
	CodeSatisfied       Code = "satisfied"
	CodeCreate          Code = "create"
	CodeStateChange     Code = "state_change"
	CodeAdjust          Code = "adjust"
	CodeCoordinateDrift Code = "coordinate_drift"
	CodeUnexpected      Code = "unexpected_error"
)

// Status of one required branch.
type Status string

const (
	StatusSatisfiedReal    Status = "satisfied_real"
	StatusSatisfiedPreview Status = "satisfied_preview"
	StatusNeedsUpdate      Status = "needs_update"
	StatusNeedsCreation    Status = "needs_creation"
)

// BranchStatus is the per-branch detail of a verdict.
type BranchStatus struct {
	BranchID string `json:"branchId"`
	Label    string `json:"label,omitempty"`
	Status   Status `json:"status"`
	EdgeID   string `json:"edgeId,omitempty"`
}

// Update asks for an existing preview to be moved to a new state.
type Update struct {
	Branch branch.Branch `json:"branch"`
	Edge   flow.Edge     `json:"edge"`
	From   flow.State    `json:"from"`
	To     flow.State    `json:"to"`
}

// Operations lists the concrete work a verdict implies, in the form the
// orchestrator executes without recomputing.
type Operations struct {
	CreateNew      []branch.Branch `json:"createNew,omitempty"`
	UpdateExisting []Update        `json:"updateExisting,omitempty"`
	RemoveExtra    []flow.Edge     `json:"removeExtra,omitempty"`
	RemoveInvalid  []flow.Edge     `json:"removeInvalid,omitempty"`
}

// Empty reports whether no work is required.
func (o Operations) Empty() bool {
	return len(o.CreateNew) == 0 && len(o.UpdateExisting) == 0 &&
		len(o.RemoveExtra) == 0 && len(o.RemoveInvalid) == 0
}

func (o Operations) removals() int { return len(o.RemoveExtra) + len(o.RemoveInvalid) }

// Details carries the classification behind a verdict.
type Details struct {
	Category    classify.Category  `json:"category,omitempty"`
	NodeType    string             `json:"nodeType,omitempty"`
	Required    []branch.Branch    `json:"required,omitempty"`
	PerBranch   []BranchStatus     `json:"perBranch,omitempty"`
	Operations  Operations         `json:"operations"`
	Coordinates []CoordinateResult `json:"coordinates,omitempty"`
}

// Verdict is the outcome of a requirement check. It is recomputed on every
// check and never stored.
type Verdict struct {
	NeedsCreation bool      `json:"needsCreation"`
	Type          Type      `json:"type"`
	Reason        string    `json:"reason"`
	Code          Code      `json:"code"`
	NodeID        string    `json:"nodeId,omitempty"`
	Details       *Details  `json:"details,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
