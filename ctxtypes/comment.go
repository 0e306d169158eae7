package ctxtypes

// CommentStatus tracks whether a proposal comment still needs attention.
type CommentStatus string

const (
	CommentOpen     CommentStatus = "open"
	CommentResolved CommentStatus = "resolved"
)

// CommentRange anchors a comment to a span of a node's content.
type CommentRange struct {
	Start uint32 `json:"start"`
	End   uint32 `json:"end"`
}

// CommentAnchor optionally ties a comment to a specific node and/or a
// range within it. Both fields are independently optional: a comment may
// anchor to a whole node, a range within it, or neither (a general
// proposal-level remark).
type CommentAnchor struct {
	NodeID *NodeID       `json:"nodeId,omitempty"`
	Range  *CommentRange `json:"range,omitempty"`
}

// Comment is a threaded annotation on a proposal. Replies are stored
// flattened (keyed by ParentID) and assembled into a tree on read; see
// memstore's comment accessor.
type Comment struct {
	ID         string          `json:"id"`
	ProposalID string          `json:"proposalId"`
	Author     string          `json:"author"`
	Anchor     *CommentAnchor  `json:"anchor,omitempty"`
	Body       string          `json:"body"`
	Status     CommentStatus   `json:"status"`
	CreatedAt  string          `json:"createdAt"`
	ParentID   *string         `json:"parentId,omitempty"`
	Replies    []Comment       `json:"replies,omitempty"`
}
