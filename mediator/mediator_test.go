package mediator

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctxstore.dev/governed-context/ctxauth"
	"ctxstore.dev/governed-context/ctxtypes"
	"ctxstore.dev/governed-context/eventbus"
	"ctxstore.dev/governed-context/memstore"
	"ctxstore.dev/governed-context/policy"
	"ctxstore.dev/governed-context/sensitivity"
	"ctxstore.dev/governed-context/store"
)

func newTestMediator() *Mediator {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(memstore.New(), policy.Config{}, eventbus.New(), logger)
}

func contributor() ctxauth.ActorContext {
	return ctxauth.ActorContext{ActorID: "alice", ActorType: ctxauth.ActorHuman, Roles: []ctxauth.Role{ctxauth.RoleContributor}}
}

func reviewer() ctxauth.ActorContext {
	return ctxauth.ActorContext{ActorID: "bob", ActorType: ctxauth.ActorHuman, Roles: []ctxauth.Role{ctxauth.RoleReviewer}}
}

func applier() ctxauth.ActorContext {
	return ctxauth.ActorContext{ActorID: "carol", ActorType: ctxauth.ActorHuman, Roles: []ctxauth.Role{ctxauth.RoleApplier}}
}

func reader() ctxauth.ActorContext {
	return ctxauth.ActorContext{ActorID: "dan", ActorType: ctxauth.ActorHuman, Roles: []ctxauth.Role{ctxauth.RoleReader}}
}

func agent() ctxauth.ActorContext {
	return ctxauth.ActorContext{ActorID: "agent-1", ActorType: ctxauth.ActorAgent, Roles: []ctxauth.Role{ctxauth.RoleApplier}}
}

func goalNode(id string) ctxtypes.Node {
	return ctxtypes.Node{ID: ctxtypes.NodeID{ID: id}, Type: ctxtypes.NodeGoal, Status: ctxtypes.NodeAccepted, Content: "x"}
}

func TestCreateProposalRejectsReaderRole(t *testing.T) {
	m := newTestMediator()
	node := goalNode("g1")
	_, err := m.CreateProposal(reader(), ctxtypes.Proposal{
		Operations: []ctxtypes.Operation{{Kind: ctxtypes.OpCreate, Node: &node}},
	})
	require.Error(t, err)
	me, ok := AsMediatorError(err)
	require.True(t, ok)
	assert.Equal(t, KindForbidden, me.Kind)
}

func TestFullLifecycleCreateReviewApply(t *testing.T) {
	m := newTestMediator()
	node := goalNode("g1")
	p, err := m.CreateProposal(contributor(), ctxtypes.Proposal{
		Operations: []ctxtypes.Operation{{Kind: ctxtypes.OpCreate, Node: &node}},
	})
	require.NoError(t, err)
	assert.Equal(t, ctxtypes.ProposalOpen, p.Status)

	updated, err := m.SubmitReview(reviewer(), ctxtypes.Review{ProposalID: p.ID, Action: ctxtypes.ReviewAccept})
	require.NoError(t, err)
	assert.Equal(t, ctxtypes.ProposalAccepted, updated.Status)

	applied, err := m.ApplyProposal(applier(), p.ID, "")
	require.NoError(t, err)
	assert.Equal(t, ctxtypes.ProposalApplied, applied.Status)

	n, err := m.Store.GetNode("g1")
	require.NoError(t, err)
	require.NotNil(t, n)
}

func TestAgentCannotReviewOrApply(t *testing.T) {
	m := newTestMediator()
	node := goalNode("g1")
	p, err := m.CreateProposal(contributor(), ctxtypes.Proposal{
		Operations: []ctxtypes.Operation{{Kind: ctxtypes.OpCreate, Node: &node}},
	})
	require.NoError(t, err)

	_, err = m.SubmitReview(agent(), ctxtypes.Review{ProposalID: p.ID, Action: ctxtypes.ReviewAccept})
	require.Error(t, err)
	me, ok := AsMediatorError(err)
	require.True(t, ok)
	assert.Equal(t, KindForbidden, me.Kind)

	_, err = m.ApplyProposal(agent(), p.ID, "")
	require.Error(t, err)
	me, ok = AsMediatorError(err)
	require.True(t, ok)
	assert.Equal(t, KindForbidden, me.Kind)
}

func TestReadNodeRedactsAboveAgentCeiling(t *testing.T) {
	m := newTestMediator()
	restricted := sensitivity.Restricted
	node := goalNode("secret")
	node.Metadata.Sensitivity = &restricted
	p, err := m.CreateProposal(contributor(), ctxtypes.Proposal{
		Operations: []ctxtypes.Operation{{Kind: ctxtypes.OpCreate, Node: &node}},
	})
	require.NoError(t, err)
	updated, err := m.SubmitReview(reviewer(), ctxtypes.Review{ProposalID: p.ID, Action: ctxtypes.ReviewAccept})
	require.NoError(t, err)
	require.Equal(t, ctxtypes.ProposalAccepted, updated.Status)
	_, err = m.ApplyProposal(applier(), p.ID, "")
	require.NoError(t, err)

	result, err := m.ReadNode(agent(), "secret")
	require.NoError(t, err)
	require.Nil(t, result.Node)
	require.NotNil(t, result.Stub)
	assert.True(t, result.Stub.Redacted)

	audit, err := m.Store.QueryAudit(store.AuditQuery{})
	require.NoError(t, err)
	found := false
	for _, e := range audit {
		if e.Action == ctxtypes.ActionSensitiveRead && e.Outcome == ctxtypes.OutcomeDenied {
			found = true
		}
	}
	assert.True(t, found, "expected a denied sensitive_read audit event")
}

func TestResetRequiresAdmin(t *testing.T) {
	m := newTestMediator()
	err := m.Reset(contributor())
	require.Error(t, err)
	me, ok := AsMediatorError(err)
	require.True(t, ok)
	assert.Equal(t, KindForbidden, me.Kind)

	admin := ctxauth.ActorContext{ActorID: "root", ActorType: ctxauth.ActorHuman, Roles: []ctxauth.Role{ctxauth.RoleAdmin}}
	require.NoError(t, m.Reset(admin))
}
