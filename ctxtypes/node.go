// Package ctxtypes holds the type model of the governed context store:
// nodes, proposals, operations, reviews, audit events, conflicts, and
// comments. Wire field names are camelCase throughout.
package ctxtypes

import "ctxstore.dev/governed-context/sensitivity"

// NodeType is the closed set of context-node kinds.
type NodeType string

const (
	NodeGoal       NodeType = "goal"
	NodeDecision   NodeType = "decision"
	NodeConstraint NodeType = "constraint"
	NodeTask       NodeType = "task"
	NodeRisk       NodeType = "risk"
	NodeQuestion   NodeType = "question"
	NodeContext    NodeType = "context"
	NodePlan       NodeType = "plan"
	NodeNote       NodeType = "note"
)

// NodeStatus is the node-level lifecycle status (distinct from proposal
// status). Nodes only ever transition via the apply engine.
type NodeStatus string

const (
	NodeAccepted   NodeStatus = "accepted"
	NodeProposed   NodeStatus = "proposed"
	NodeRejected   NodeStatus = "rejected"
	NodeSuperseded NodeStatus = "superseded"
)

// NodeID is a node's identity. Key returns the canonical store key, which
// is "namespace:id" when a namespace is present, else just "id".
type NodeID struct {
	ID        string  `json:"id"`
	Namespace *string `json:"namespace,omitempty"`
}

// Key returns the canonical lookup key for this identity.
func (n NodeID) Key() string {
	if n.Namespace != nil && *n.Namespace != "" {
		return *n.Namespace + ":" + n.ID
	}
	return n.ID
}

// TextRange anchors a node or comment to a span within a source document.
type TextRange struct {
	Start  uint32  `json:"start"`
	End    uint32  `json:"end"`
	Source *string `json:"source,omitempty"`
}

// RelationshipType is the closed set of typed edges between nodes.
type RelationshipType string

const (
	RelParentChild RelationshipType = "parent-child"
	RelDependsOn   RelationshipType = "depends-on"
	RelReferences  RelationshipType = "references"
	RelSupersedes  RelationshipType = "supersedes"
	RelRelatedTo   RelationshipType = "related-to"
	RelImplements  RelationshipType = "implements"
	RelBlocks      RelationshipType = "blocks"
	RelMitigates   RelationshipType = "mitigates"
)

// RelationshipMetadata carries provenance for a single relationship edge.
type RelationshipMetadata struct {
	CreatedAt   *string `json:"createdAt,omitempty"`
	CreatedBy   *string `json:"createdBy,omitempty"`
	Description *string `json:"description,omitempty"`
}

// NodeRelationship is a single outbound typed edge from a node.
type NodeRelationship struct {
	Type        RelationshipType       `json:"type"`
	Target      NodeID                 `json:"target"`
	ReverseType *RelationshipType      `json:"reverseType,omitempty"`
	Metadata    *RelationshipMetadata  `json:"metadata,omitempty"`
}

// NodeMetadata carries the bookkeeping and IP-attribution fields attached
// to every node. Version is incremented exactly once per successful
// operation that touches the node.
type NodeMetadata struct {
	CreatedAt             string    `json:"createdAt"`
	CreatedBy             string    `json:"createdBy"`
	ModifiedAt            string    `json:"modifiedAt"`
	ModifiedBy            string    `json:"modifiedBy"`
	Tags                  []string  `json:"tags,omitempty"`
	ImplementedInCommit   *string   `json:"implementedInCommit,omitempty"`
	ReferencedInCommits   []string  `json:"referencedInCommits,omitempty"`
	Version               uint32    `json:"version"`
	Sensitivity           *sensitivity.Level `json:"sensitivity,omitempty"`
	ContentHash           *string   `json:"contentHash,omitempty"`
	SourceAttribution     *sensitivity.SourceAttribution `json:"sourceAttribution,omitempty"`
	IPClassification      *sensitivity.IPClassification  `json:"ipClassification,omitempty"`
	License               *string   `json:"license,omitempty"`
}

// SensitivityOrDefault returns the node's configured sensitivity, or the
// package default when unset.
func (m NodeMetadata) SensitivityOrDefault() sensitivity.Level {
	if m.Sensitivity == nil {
		return sensitivity.Default
	}
	return *m.Sensitivity
}

// TaskState is the task-type-specific lifecycle.
type TaskState string

const (
	TaskOpen       TaskState = "open"
	TaskInProgress TaskState = "in-progress"
	TaskBlocked    TaskState = "blocked"
	TaskCompleted  TaskState = "completed"
	TaskCancelled  TaskState = "cancelled"
)

// RiskSeverity is the risk-type-specific severity scale.
type RiskSeverity string

const (
	RiskLow      RiskSeverity = "low"
	RiskMedium   RiskSeverity = "medium"
	RiskHigh     RiskSeverity = "high"
	RiskCritical RiskSeverity = "critical"
)

// RiskLikelihood is the risk-type-specific likelihood scale.
type RiskLikelihood string

const (
	LikelihoodUnlikely RiskLikelihood = "unlikely"
	LikelihoodPossible RiskLikelihood = "possible"
	LikelihoodLikely   RiskLikelihood = "likely"
	LikelihoodCertain  RiskLikelihood = "certain"
)

// Node is the unified context-graph vertex. Type-specific fields are
// optional and only meaningful for the matching NodeType; this mirrors
// the flat shape of the original source rather than a tagged union, which
// SPEC_FULL.md §9 explicitly allows.
type Node struct {
	ID            NodeID             `json:"id"`
	Type          NodeType           `json:"type"`
	Status        NodeStatus         `json:"status"`
	Title         *string            `json:"title,omitempty"`
	Description   *string            `json:"description,omitempty"`
	Content       string             `json:"content"`
	TextRangeVal  *TextRange         `json:"textRange,omitempty"`
	Metadata      NodeMetadata       `json:"metadata"`
	Relationships []NodeRelationship `json:"relationships,omitempty"`
	Relations     []NodeID           `json:"relations,omitempty"`
	ReferencedBy  []NodeID           `json:"referencedBy,omitempty"`
	SourceFiles   []string           `json:"sourceFiles,omitempty"`

	// decision
	Decision     *string  `json:"decision,omitempty"`
	Rationale    *string  `json:"rationale,omitempty"`
	Alternatives []string `json:"alternatives,omitempty"`
	DecidedAt    *string  `json:"decidedAt,omitempty"`

	// task
	State        *TaskState `json:"state,omitempty"`
	Assignee     *string    `json:"assignee,omitempty"`
	DueDate      *string    `json:"dueDate,omitempty"`
	Dependencies []NodeID   `json:"dependencies,omitempty"`

	// risk
	Severity   *RiskSeverity   `json:"severity,omitempty"`
	Likelihood *RiskLikelihood `json:"likelihood,omitempty"`
	Mitigation *string         `json:"mitigation,omitempty"`

	// question
	Question   *string `json:"question,omitempty"`
	Answer     *string `json:"answer,omitempty"`
	AnsweredAt *string `json:"answeredAt,omitempty"`

	// constraint
	Constraint *string `json:"constraint,omitempty"`
	Reason     *string `json:"reason,omitempty"`
}

// Clone returns a deep copy suitable for returning across the store's API
// boundary, so callers can never observe or mutate internal state.
func (n Node) Clone() Node {
	out := n
	if n.Relationships != nil {
		out.Relationships = append([]NodeRelationship(nil), n.Relationships...)
	}
	if n.Relations != nil {
		out.Relations = append([]NodeID(nil), n.Relations...)
	}
	if n.ReferencedBy != nil {
		out.ReferencedBy = append([]NodeID(nil), n.ReferencedBy...)
	}
	if n.SourceFiles != nil {
		out.SourceFiles = append([]string(nil), n.SourceFiles...)
	}
	if n.Metadata.Tags != nil {
		out.Metadata.Tags = append([]string(nil), n.Metadata.Tags...)
	}
	if n.Metadata.ReferencedInCommits != nil {
		out.Metadata.ReferencedInCommits = append([]string(nil), n.Metadata.ReferencedInCommits...)
	}
	if n.Alternatives != nil {
		out.Alternatives = append([]string(nil), n.Alternatives...)
	}
	if n.Dependencies != nil {
		out.Dependencies = append([]NodeID(nil), n.Dependencies...)
	}
	return out
}

// RedactedStub is returned in place of a node's real content when an
// agent's sensitivity ceiling is below the node's classification.
type RedactedStub struct {
	ID          NodeID              `json:"id"`
	Type        NodeType            `json:"type"`
	Status      NodeStatus          `json:"status"`
	Redacted    bool                `json:"redacted"`
	Reason      string              `json:"reason"`
	Sensitivity sensitivity.Level   `json:"sensitivity"`
}

// Redact builds the stub response for a denied agent read.
func Redact(n Node) RedactedStub {
	return RedactedStub{
		ID:          n.ID,
		Type:        n.Type,
		Status:      n.Status,
		Redacted:    true,
		Reason:      "sensitivity",
		Sensitivity: n.Metadata.SensitivityOrDefault(),
	}
}
