package memstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctxstore.dev/governed-context/ctxtypes"
	"ctxstore.dev/governed-context/store"
)

func createOp(n ctxtypes.Node) ctxtypes.Operation {
	node := n
	return ctxtypes.Operation{Kind: ctxtypes.OpCreate, Node: &node}
}

func goalNode(id string) ctxtypes.Node {
	return ctxtypes.Node{
		ID:       ctxtypes.NodeID{ID: id},
		Type:     ctxtypes.NodeGoal,
		Status:   ctxtypes.NodeAccepted,
		Content:  "ship the governed store",
		Metadata: ctxtypes.NodeMetadata{Version: 1},
	}
}

func acceptedProposal(id string, ops ...ctxtypes.Operation) ctxtypes.Proposal {
	return ctxtypes.Proposal{
		ID:         id,
		Status:     ctxtypes.ProposalAccepted,
		Operations: ops,
		Metadata:   ctxtypes.ProposalMetadata{CreatedBy: "alice", CreatedAt: "2026-01-01T00:00:00Z"},
	}
}

func noopReeval(p ctxtypes.Proposal, reviews []ctxtypes.Review, naive ctxtypes.ProposalStatus) ctxtypes.ProposalStatus {
	return naive
}

func TestCreateApplyRead(t *testing.T) {
	s := New()
	p := acceptedProposal("p1", createOp(goalNode("g1")))
	require.NoError(t, s.CreateProposal(ctxtypes.Proposal{
		ID: "p1", Status: ctxtypes.ProposalOpen, Operations: p.Operations, Metadata: p.Metadata,
	}))

	// move it to Accepted via a review before applying, mirroring the
	// propose->review->apply path.
	require.NoError(t, s.UpdateProposal("p1", store.ProposalPatch{}))
	got, err := s.GetProposal("p1")
	require.NoError(t, err)
	require.Equal(t, ctxtypes.ProposalOpen, got.Status)

	require.NoError(t, s.SubmitReview(ctxtypes.Review{ID: "r1", ProposalID: "p1", Reviewer: "bob", Action: ctxtypes.ReviewAccept}, noopReeval))

	require.NoError(t, s.ApplyProposal("p1", "bob"))

	node, err := s.GetNode("g1")
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, "ship the governed store", node.Content)
	assert.EqualValues(t, 2, node.Metadata.Version)
	assert.NotNil(t, node.Metadata.ContentHash)

	applied, err := s.GetProposal("p1")
	require.NoError(t, err)
	assert.Equal(t, ctxtypes.ProposalApplied, applied.Status)
	require.NotNil(t, applied.Applied)
	assert.Equal(t, "bob", applied.Applied.AppliedBy)
}

func TestApplyIsIdempotent(t *testing.T) {
	s := New()
	p := acceptedProposal("p1", createOp(goalNode("g1")))
	require.NoError(t, s.CreateProposal(ctxtypes.Proposal{ID: p.ID, Status: ctxtypes.ProposalAccepted, Operations: p.Operations, Metadata: p.Metadata}))

	require.NoError(t, s.ApplyProposal("p1", "bob"))
	require.NoError(t, s.ApplyProposal("p1", "bob"))

	node, err := s.GetNode("g1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, node.Metadata.Version, "a second apply must not double-mutate the node")
}

func TestApplyRejectsNonAccepted(t *testing.T) {
	s := New()
	p := ctxtypes.Proposal{ID: "p1", Status: ctxtypes.ProposalOpen, Operations: []ctxtypes.Operation{createOp(goalNode("g1"))}, Metadata: ctxtypes.ProposalMetadata{CreatedBy: "alice"}}
	require.NoError(t, s.CreateProposal(p))

	err := s.ApplyProposal("p1", "bob")
	require.Error(t, err)
	assert.Equal(t, store.KindInvalid, store.KindOf(err))
}

func TestWithdrawTerminalProposalFails(t *testing.T) {
	s := New()
	p := acceptedProposal("p1", createOp(goalNode("g1")))
	require.NoError(t, s.CreateProposal(ctxtypes.Proposal{ID: p.ID, Status: ctxtypes.ProposalAccepted, Operations: p.Operations, Metadata: p.Metadata}))
	require.NoError(t, s.ApplyProposal("p1", "bob"))

	err := s.WithdrawProposal("p1")
	require.Error(t, err)
	assert.Equal(t, store.KindInvalid, store.KindOf(err))
}

func TestAuditSurvivesReset(t *testing.T) {
	s := New()
	p := ctxtypes.Proposal{ID: "p1", Status: ctxtypes.ProposalOpen, Operations: []ctxtypes.Operation{createOp(goalNode("g1"))}, Metadata: ctxtypes.ProposalMetadata{CreatedBy: "alice"}}
	require.NoError(t, s.CreateProposal(p))

	before, err := s.QueryAudit(store.AuditQuery{})
	require.NoError(t, err)
	require.NotEmpty(t, before)

	require.NoError(t, s.Reset())

	after, err := s.QueryAudit(store.AuditQuery{})
	require.NoError(t, err)
	assert.True(t, len(after) > len(before), "reset must append a store_reset event, never clear the log")

	nodes, err := s.QueryNodes(ctxtypes.NodeQuery{})
	require.NoError(t, err)
	assert.Equal(t, 0, nodes.Total)
}

func TestDetectConflictsBetweenOpenProposals(t *testing.T) {
	s := New()
	base := goalNode("g1")
	require.NoError(t, s.CreateProposal(ctxtypes.Proposal{ID: "seed", Status: ctxtypes.ProposalAccepted, Operations: []ctxtypes.Operation{createOp(base)}, Metadata: ctxtypes.ProposalMetadata{CreatedBy: "alice"}}))
	require.NoError(t, s.ApplyProposal("seed", "alice"))

	content1 := "first rewrite"
	content2 := "second rewrite"
	p1 := ctxtypes.Proposal{
		ID:     "p1",
		Status: ctxtypes.ProposalOpen,
		Operations: []ctxtypes.Operation{{
			Kind: ctxtypes.OpUpdate, NodeID: &ctxtypes.NodeID{ID: "g1"},
			Changes: &ctxtypes.UpdateChanges{Content: &content1},
		}},
		Metadata: ctxtypes.ProposalMetadata{CreatedBy: "bob"},
	}
	p2 := ctxtypes.Proposal{
		ID:     "p2",
		Status: ctxtypes.ProposalOpen,
		Operations: []ctxtypes.Operation{{
			Kind: ctxtypes.OpUpdate, NodeID: &ctxtypes.NodeID{ID: "g1"},
			Changes: &ctxtypes.UpdateChanges{Content: &content2},
		}},
		Metadata: ctxtypes.ProposalMetadata{CreatedBy: "carol"},
	}
	require.NoError(t, s.CreateProposal(p1))
	require.NoError(t, s.CreateProposal(p2))

	result, err := s.DetectConflicts("p1")
	require.NoError(t, err)
	require.Len(t, result.Conflicts, 1)
	assert.False(t, result.Conflicts[0].AutoResolvable)
	assert.Equal(t, ctxtypes.SeverityNode, result.Conflicts[0].Severity)
	assert.Equal(t, []string{"g1"}, result.Conflicts[0].ConflictingNodes)
	assert.Equal(t, []string{"p2"}, result.NeedsResolution)
	assert.Empty(t, result.Mergeable)
}

func TestMergeProposalsAutoMergesDisjointFields(t *testing.T) {
	s := New()
	require.NoError(t, s.CreateProposal(ctxtypes.Proposal{ID: "seed", Status: ctxtypes.ProposalAccepted, Operations: []ctxtypes.Operation{createOp(goalNode("g1"))}, Metadata: ctxtypes.ProposalMetadata{CreatedBy: "alice"}}))
	require.NoError(t, s.ApplyProposal("seed", "alice"))

	content := "rewritten"
	rejected := ctxtypes.NodeRejected
	p1 := ctxtypes.Proposal{ID: "p1", Status: ctxtypes.ProposalOpen, Operations: []ctxtypes.Operation{{
		Kind: ctxtypes.OpUpdate, NodeID: &ctxtypes.NodeID{ID: "g1"}, Changes: &ctxtypes.UpdateChanges{Content: &content},
	}}, Metadata: ctxtypes.ProposalMetadata{CreatedBy: "bob"}}
	p2 := ctxtypes.Proposal{ID: "p2", Status: ctxtypes.ProposalOpen, Operations: []ctxtypes.Operation{{
		Kind: ctxtypes.OpUpdate, NodeID: &ctxtypes.NodeID{ID: "g1"}, Changes: &ctxtypes.UpdateChanges{Status: &rejected},
	}}, Metadata: ctxtypes.ProposalMetadata{CreatedBy: "carol"}}
	require.NoError(t, s.CreateProposal(p1))
	require.NoError(t, s.CreateProposal(p2))

	merged, err := s.MergeProposals([]string{"p1", "p2"})
	require.NoError(t, err)
	assert.Empty(t, merged.Conflicts)
	assert.Len(t, merged.AutoMerged, 2)
}

func TestCommentThreading(t *testing.T) {
	s := New()
	require.NoError(t, s.CreateProposal(ctxtypes.Proposal{ID: "p1", Status: ctxtypes.ProposalOpen, Operations: []ctxtypes.Operation{createOp(goalNode("g1"))}, Metadata: ctxtypes.ProposalMetadata{CreatedBy: "alice"}}))

	require.NoError(t, s.AddProposalComment("p1", ctxtypes.Comment{ID: "c1", ProposalID: "p1", Author: "bob", Body: "why this approach?", Status: ctxtypes.CommentOpen}))
	require.NoError(t, s.AddProposalComment("p1", ctxtypes.Comment{ID: "c2", ProposalID: "p1", Author: "alice", Body: "see rationale", Status: ctxtypes.CommentOpen, ParentID: strptr("c1")}))

	tree, err := s.GetProposalComments("p1")
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Replies, 1)
	assert.Equal(t, "see rationale", tree[0].Replies[0].Body)
}

func strptr(s string) *string { return &s }
