package filestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctxstore.dev/governed-context/ctxtypes"
	"ctxstore.dev/governed-context/store"
)

func goalNode(id string) ctxtypes.Node {
	return ctxtypes.Node{
		ID:      ctxtypes.NodeID{ID: id},
		Type:    ctxtypes.NodeGoal,
		Status:  ctxtypes.NodeAccepted,
		Content: "ship the governed store",
	}
}

func TestOpenEmptyDirStartsClean(t *testing.T) {
	fs, err := Open(t.TempDir())
	require.NoError(t, err)
	defer fs.Close()

	nodes, err := fs.QueryNodes(ctxtypes.NodeQuery{})
	require.NoError(t, err)
	assert.Equal(t, 0, nodes.Total)
}

func TestApplyProposalPersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	fs, err := Open(dir)
	require.NoError(t, err)

	node := goalNode("g1")
	p := ctxtypes.Proposal{
		ID:     "p1",
		Status: ctxtypes.ProposalAccepted,
		Operations: []ctxtypes.Operation{{
			Kind: ctxtypes.OpCreate, Node: &node,
		}},
		Metadata: ctxtypes.ProposalMetadata{CreatedBy: "alice"},
	}
	require.NoError(t, fs.CreateProposal(p))
	require.NoError(t, fs.ApplyProposal("p1", "bob"))
	require.NoError(t, fs.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.GetNode("g1")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "ship the governed store", n.Content)

	applied, err := reopened.GetProposal("p1")
	require.NoError(t, err)
	require.NotNil(t, applied)
	assert.Equal(t, ctxtypes.ProposalApplied, applied.Status)
	assert.EqualValues(t, 1, reopened.Revision())

	audit, err := reopened.QueryAudit(store.AuditQuery{})
	require.NoError(t, err)
	assert.NotEmpty(t, audit)
}

func TestResetClearsDiskState(t *testing.T) {
	dir := t.TempDir()
	fs, err := Open(dir)
	require.NoError(t, err)
	defer fs.Close()

	node := goalNode("g1")
	p := ctxtypes.Proposal{
		ID:         "p1",
		Status:     ctxtypes.ProposalAccepted,
		Operations: []ctxtypes.Operation{{Kind: ctxtypes.OpCreate, Node: &node}},
		Metadata:   ctxtypes.ProposalMetadata{CreatedBy: "alice"},
	}
	require.NoError(t, fs.CreateProposal(p))
	require.NoError(t, fs.ApplyProposal("p1", "bob"))
	require.NoError(t, fs.Reset())

	nodes, err := fs.QueryNodes(ctxtypes.NodeQuery{})
	require.NoError(t, err)
	assert.Equal(t, 0, nodes.Total)

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()
	nodes, err = reopened.QueryNodes(ctxtypes.NodeQuery{})
	require.NoError(t, err)
	assert.Equal(t, 0, nodes.Total, "reset must survive a reload from disk")
}
