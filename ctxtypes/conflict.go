package ctxtypes

// ConflictSeverity classifies how serious a detected proposal conflict is.
type ConflictSeverity string

const (
	SeverityNode     ConflictSeverity = "node"
	SeverityCritical ConflictSeverity = "critical"
)

// ProposalConflict names two proposals that touch overlapping node keys.
// Severity is derived purely from the count of shared node keys
// (spec.md §4.5: |C| > 1 ? Critical : Node); AutoResolvable is always
// false — whether operations can be auto-merged is MergeProposals's
// decision, not DetectConflicts's.
type ProposalConflict struct {
	Proposals        []string         `json:"proposals"`
	ConflictingNodes []string         `json:"conflictingNodes"`
	Severity         ConflictSeverity `json:"severity"`
	AutoResolvable   bool             `json:"autoResolvable"`
}

// ConflictDetectionResult is the output of DetectConflicts for a target
// proposal against every other open proposal.
type ConflictDetectionResult struct {
	Conflicts       []ProposalConflict `json:"conflicts"`
	Mergeable       []string           `json:"mergeable"`
	NeedsResolution []string           `json:"needsResolution"`
}

// FieldChange names a single-field value produced by one proposal,
// feeding into merge grouping.
type FieldChange struct {
	ProposalID string      `json:"proposalId"`
	NodeID     string      `json:"nodeId"`
	Field      string      `json:"field"`
	Value      interface{} `json:"value"`
}

// MergeConflictField records two divergent values for the same
// node/field pair across proposals being merged.
type MergeConflictField struct {
	Field            string      `json:"field"`
	NodeID           string      `json:"nodeId"`
	Proposal1Value   interface{} `json:"proposal1Value"`
	Proposal2Value   interface{} `json:"proposal2Value"`
}

// MergeResult is the output of MergeProposals.
type MergeResult struct {
	Merged     []FieldChange         `json:"merged"`
	Conflicts  []MergeConflictField  `json:"conflicts"`
	AutoMerged []FieldChange         `json:"autoMerged"`
}
