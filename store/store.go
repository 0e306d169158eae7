package store

import "ctxstore.dev/governed-context/ctxtypes"

// ContextStore is the transactional boundary owning every node, proposal,
// review, comment, and audit event. Every operation is atomic with
// respect to concurrent callers; callers receive deep copies (value
// semantics at the API boundary per SPEC_FULL.md §3 Ownership).
//
// Implementations: memstore.Store (sole authoritative in-RAM state) and
// filestore.Store (mirrors every mutation to per-entity JSON files).
// Semantics, invariants, and ordering guarantees are identical across
// both per SPEC_FULL.md §6.3.
type ContextStore interface {
	// Reads

	GetNode(key string) (*ctxtypes.Node, error)
	QueryNodes(q ctxtypes.NodeQuery) (ctxtypes.NodeQueryResult, error)
	GetProposal(id string) (*ctxtypes.Proposal, error)
	QueryProposals(q ctxtypes.ProposalQuery) ([]ctxtypes.Proposal, error)
	GetOpenProposals() ([]ctxtypes.Proposal, error)
	GetReviewHistory(proposalID string) ([]ctxtypes.Review, error)
	GetAcceptedNodes() ([]ctxtypes.Node, error)
	GetProposalComments(proposalID string) ([]ctxtypes.Comment, error)
	QueryAudit(q AuditQuery) ([]ctxtypes.AuditEvent, error)

	// Mutations

	CreateProposal(p ctxtypes.Proposal) error
	UpdateProposal(id string, patch ProposalPatch) error
	SubmitReview(r ctxtypes.Review, reeval ReviewReevaluator) error
	ApplyProposal(id, appliedBy string) error
	WithdrawProposal(id string) error
	AddProposalComment(proposalID string, c ctxtypes.Comment) error
	Reset() error
	AppendAudit(e ctxtypes.AuditEvent) error

	// Governance analysis

	DetectConflicts(proposalID string) (ctxtypes.ConflictDetectionResult, error)
	IsProposalStale(proposalID string) (bool, error)
	MergeProposals(ids []string) (ctxtypes.MergeResult, error)
}

// AuditQuery filters QueryAudit. From/To are RFC-3339 strings compared
// lexicographically, valid because the UTC "Z" form sorts correctly as a
// plain string.
type AuditQuery struct {
	Actor      *string
	Action     *ctxtypes.AuditAction
	ResourceID *string
	From       *string
	To         *string
	Limit      int
	Offset     int
}

// ProposalPatch is the sparse, explicitly-typed PATCH document accepted
// by UpdateProposal. Every field is independently optional; the HTTP
// decoder ignores unknown wire fields rather than rejecting them.
// Status may never be set to Applied here — only ApplyProposal produces
// that state.
type ProposalPatch struct {
	Status    *ctxtypes.ProposalStatus
	Rationale *string
	Comments  []ctxtypes.Comment
}

// ReviewReevaluator lets the mediator's policy hook run inside the same
// critical section that appends a review, folding the status decision
// into one atomic step (the REDESIGN FLAG fix for the original's racy
// two-step submit_review). It receives the full review history
// (including the just-appended review) and the status the review action
// alone would produce (accept->Accepted, reject->Rejected, else
// unchanged; not yet persisted), and returns the final status to persist.
type ReviewReevaluator func(p ctxtypes.Proposal, allReviews []ctxtypes.Review, naiveNext ctxtypes.ProposalStatus) ctxtypes.ProposalStatus
