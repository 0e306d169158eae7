package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ctxstore.dev/governed-context/ctxtypes"
	"ctxstore.dev/governed-context/sensitivity"
)

func emptyProposal() ctxtypes.Proposal {
	return ctxtypes.Proposal{
		ID:     "p-test",
		Status: ctxtypes.ProposalOpen,
		Metadata: ctxtypes.ProposalMetadata{
			CreatedAt: "2026-01-01T00:00:00Z",
			CreatedBy: "test",
		},
	}
}

func createOp(id string, content string, sens *sensitivity.Level) ctxtypes.Operation {
	n := ctxtypes.Node{
		ID:      ctxtypes.NodeID{ID: id},
		Type:    ctxtypes.NodeGoal,
		Status:  ctxtypes.NodeAccepted,
		Content: content,
	}
	n.Metadata = ctxtypes.NodeMetadata{CreatedAt: "t", CreatedBy: "t", ModifiedAt: "t", ModifiedBy: "t", Version: 1, Sensitivity: sens}
	return ctxtypes.Operation{Kind: ctxtypes.OpCreate, Node: &n}
}

func TestAgentMaxSensitivityDefaultIsInternal(t *testing.T) {
	assert.Equal(t, sensitivity.Internal, AgentMaxSensitivity(Config{}))
}

func TestAgentMaxSensitivityFromEgressControl(t *testing.T) {
	cfg := Config{Rules: []Rule{{Kind: RuleEgressControl, MaxSensitivity: sensitivity.Confidential}}}
	assert.Equal(t, sensitivity.Confidential, AgentMaxSensitivity(cfg))
}

func TestEvaluateOnCreateAgentSizeLimit(t *testing.T) {
	cfg := Config{Rules: []Rule{{Kind: RuleAgentProposalLimit, MaxOperations: 1, MaxContentLength: 10}}}
	p := emptyProposal()
	p.Operations = []ctxtypes.Operation{createOp("n1", "short", nil), createOp("n2", "short", nil)}

	violations := EvaluateOnCreate(p, "agent", cfg)
	assert.NotEmpty(t, violations, "should reject agent: too many operations")
	found := false
	for _, v := range violations {
		if v.Rule == string(RuleAgentProposalLimit) {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEvaluateOnCreateHumanBypassesAgentLimits(t *testing.T) {
	cfg := Config{Rules: []Rule{{Kind: RuleAgentProposalLimit, MaxOperations: 0, MaxContentLength: 0}}}
	violations := EvaluateOnCreate(emptyProposal(), "human", cfg)
	assert.Empty(t, violations, "human should not be affected by agent limits")
}

func TestEvaluateOnApplyChangeWindowBlocks(t *testing.T) {
	cfg := Config{Rules: []Rule{{Kind: RuleChangeWindow, AllowedDays: nil, AllowedHourStart: 0, AllowedHourEnd: 0}}}
	violations := EvaluateOnApply("human", cfg, time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))
	assert.NotEmpty(t, violations, "should block apply outside change window")
}

func TestEvaluateOnApplyAgentRestriction(t *testing.T) {
	cfg := Config{Rules: []Rule{{Kind: RuleAgentRestriction, BlockedActions: []string{"apply"}}}}
	violations := EvaluateOnApply("agent", cfg, time.Now())
	assert.NotEmpty(t, violations, "agent should be blocked from applying")
	assert.Equal(t, string(RuleAgentRestriction), violations[0].Rule)
}

func TestCheckAgentRestrictedNodeModification(t *testing.T) {
	cfg := Config{Rules: []Rule{{Kind: RuleEgressControl, MaxSensitivity: sensitivity.Internal}}}
	restricted := sensitivity.Restricted
	p := emptyProposal()
	p.Operations = []ctxtypes.Operation{createOp("restricted-node", "secret", &restricted)}

	agentViolations := checkAgentRestrictedNodeModification(p, "agent", cfg)
	assert.NotEmpty(t, agentViolations, "agent should be blocked from modifying restricted nodes")

	humanViolations := checkAgentRestrictedNodeModification(p, "human", cfg)
	assert.Empty(t, humanViolations, "human should not be restricted")
}

func TestEvaluateOnReviewRejectionWins(t *testing.T) {
	p := emptyProposal()
	reviews := []ctxtypes.Review{{ID: "r1", ProposalID: p.ID, Reviewer: "bob", Action: ctxtypes.ReviewAccept}, {ID: "r2", ProposalID: p.ID, Reviewer: "carol", Action: ctxtypes.ReviewReject}}
	status, _ := EvaluateOnReview(p, reviews, Config{})
	if assert.NotNil(t, status) {
		assert.Equal(t, ctxtypes.ProposalRejected, *status)
	}
}

func TestEvaluateOnReviewRequiresConfiguredRole(t *testing.T) {
	cfg := Config{Rules: []Rule{{Kind: RuleRequiredReviewerRole, Role: "security"}}}
	p := emptyProposal()
	reviews := []ctxtypes.Review{{ID: "r1", ProposalID: p.ID, Reviewer: "bob", Action: ctxtypes.ReviewAccept}}
	status, violations := EvaluateOnReview(p, reviews, cfg)
	assert.Nil(t, status)
	assert.NotEmpty(t, violations)

	role := "security"
	reviews = append(reviews, ctxtypes.Review{ID: "r2", ProposalID: p.ID, Reviewer: "dana", Action: ctxtypes.ReviewAccept, ReviewerRole: &role})
	status, violations = EvaluateOnReview(p, reviews, cfg)
	assert.Empty(t, violations)
	if assert.NotNil(t, status) {
		assert.Equal(t, ctxtypes.ProposalAccepted, *status)
	}
}
