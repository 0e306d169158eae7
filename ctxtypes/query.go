package ctxtypes

// SortOrder controls ordering of paginated node queries.
type SortOrder string

const (
	SortCreatedAsc   SortOrder = "created_asc"
	SortCreatedDesc  SortOrder = "created_desc"
	SortModifiedAsc  SortOrder = "modified_asc"
	SortModifiedDesc SortOrder = "modified_desc"
)

// NodeQuery filters and paginates query_nodes. Limit is capped at 1000
// and defaults to 50 when zero.
type NodeQuery struct {
	Status    []NodeStatus `json:"status,omitempty"`
	Type      []NodeType   `json:"type,omitempty"`
	Search    *string      `json:"search,omitempty"`
	Tags      []string     `json:"tags,omitempty"`
	Namespace *string      `json:"namespace,omitempty"`
	Creator   *string      `json:"creator,omitempty"`
	Modifier  *string      `json:"modifier,omitempty"`
	Sort      *SortOrder   `json:"sort,omitempty"`
	Limit     int          `json:"limit,omitempty"`
	Offset    int          `json:"offset,omitempty"`
}

// NodeQueryResult is the paginated envelope returned by query_nodes.
type NodeQueryResult struct {
	Nodes   []Node `json:"nodes"`
	Total   int    `json:"total"`
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
	HasMore bool   `json:"hasMore"`
}

// ProposalQuery filters query_proposals.
type ProposalQuery struct {
	Status  []ProposalStatus `json:"status,omitempty"`
	Creator *string          `json:"creator,omitempty"`
	Limit   int              `json:"limit,omitempty"`
	Offset  int              `json:"offset,omitempty"`
}
