package memstore

import (
	"sort"

	"ctxstore.dev/governed-context/ctxtypes"
	"ctxstore.dev/governed-context/sensitivity"
	"ctxstore.dev/governed-context/store"
)

// ApplyProposal executes an Accepted proposal's operations against the
// live node set. Acquisition order is revision -> nodes -> proposals ->
// reviews -> audit; every lock is taken before any state is mutated, and
// any validation failure unlocks everything with no partial effect.
// Re-applying an already-Applied proposal is a no-op success (idempotence).
func (s *Store) ApplyProposal(id, appliedBy string) error {
	s.revMu.Lock()
	defer s.revMu.Unlock()
	s.nodesMu.Lock()
	defer s.nodesMu.Unlock()
	s.proposalsMu.Lock()
	defer s.proposalsMu.Unlock()
	s.reviewsMu.Lock()
	defer s.reviewsMu.Unlock()
	s.auditMu.Lock()
	defer s.auditMu.Unlock()

	p, ok := s.proposals[id]
	if !ok {
		return store.NotFound("proposal %s not found", id)
	}
	if p.Status == ctxtypes.ProposalApplied {
		return nil
	}
	if p.Status != ctxtypes.ProposalAccepted {
		return store.Invalid("proposal %s is %s, not accepted", id, p.Status)
	}

	for key, baseVersion := range p.Metadata.BaseVersions {
		if n, exists := s.nodes[key]; exists && n.Metadata.Version != baseVersion {
			return store.Conflict("node %s has moved past its base version", key)
		}
	}

	ops := append([]ctxtypes.Operation(nil), p.Operations...)
	sort.SliceStable(ops, func(i, j int) bool { return ops[i].Order < ops[j].Order })

	now := nowRFC3339()
	previousRevision := s.revision

	nodesBefore := make(map[string]ctxtypes.Node, len(s.nodes))
	for k, v := range s.nodes {
		nodesBefore[k] = v
	}
	for _, op := range ops {
		if err := s.applyOperation(op, appliedBy, now); err != nil {
			s.nodes = nodesBefore
			return err
		}
	}

	s.revision++
	p.Status = ctxtypes.ProposalApplied
	p.Applied = &ctxtypes.AppliedMetadata{
		PreviousRevisionID:    revisionID(previousRevision),
		AppliedToRevisionID:   revisionID(s.revision),
		AppliedAt:             now,
		AppliedBy:             appliedBy,
		AppliedFromProposalID: id,
		AppliedFromReviewID:   lastReviewID(s.reviews[id]),
	}
	s.proposals[id] = p

	event := ctxtypes.NewAuditEvent(appliedBy, "human", ctxtypes.ActionProposalApplied, id, ctxtypes.OutcomeSuccess)
	s.audit = append(s.audit, event.WithDetails(map[string]interface{}{
		"operationCount": len(ops),
		"revision":       s.revision,
	}))
	return nil
}

// applyOperation mutates s.nodes for a single operation. Caller must hold
// nodesMu for writing.
func (s *Store) applyOperation(op ctxtypes.Operation, actor, now string) error {
	switch op.Kind {
	case ctxtypes.OpCreate:
		if op.Node == nil {
			return store.Invalid("create operation missing node")
		}
		key := op.Node.ID.Key()
		// Replacing an existing key is permitted per spec.md §4.3; this is
		// a plain insert/overwrite, not a conflict.
		n := *op.Node
		n.Metadata.CreatedAt = now
		n.Metadata.CreatedBy = actor
		n.Metadata.ModifiedAt = now
		n.Metadata.ModifiedBy = actor
		n.Metadata.Version++
		hash := sensitivity.ContentHash(n.Content)
		n.Metadata.ContentHash = &hash
		if n.Status == "" {
			n.Status = ctxtypes.NodeAccepted
		}
		s.nodes[key] = n
		return nil

	case ctxtypes.OpUpdate:
		if op.NodeID == nil {
			return store.Invalid("update operation missing nodeId")
		}
		key := op.NodeID.Key()
		n, exists := s.nodes[key]
		if !exists {
			return store.NotFound("node %s not found", key)
		}
		if op.Changes != nil {
			if op.Changes.Content != nil {
				n.Content = *op.Changes.Content
				hash := sensitivity.ContentHash(n.Content)
				n.Metadata.ContentHash = &hash
			}
			if op.Changes.Status != nil {
				n.Status = *op.Changes.Status
			}
		}
		n.Metadata.ModifiedAt = now
		n.Metadata.ModifiedBy = actor
		n.Metadata.Version++
		s.nodes[key] = n
		return nil

	case ctxtypes.OpDelete:
		if op.NodeID == nil {
			return store.Invalid("delete operation missing nodeId")
		}
		key := op.NodeID.Key()
		n, exists := s.nodes[key]
		if !exists {
			return store.NotFound("node %s not found", key)
		}
		n.Status = ctxtypes.NodeRejected
		n.Metadata.ModifiedAt = now
		n.Metadata.ModifiedBy = actor
		n.Metadata.Version++
		s.nodes[key] = n
		return nil

	case ctxtypes.OpStatusChange:
		if op.NodeID == nil || op.NewStatus == nil {
			return store.Invalid("status-change operation missing nodeId or newStatus")
		}
		key := op.NodeID.Key()
		n, exists := s.nodes[key]
		if !exists {
			return store.NotFound("node %s not found", key)
		}
		if op.OldStatus != nil && n.Status != *op.OldStatus {
			return store.Conflict("node %s status is %s, expected %s", key, n.Status, *op.OldStatus)
		}
		n.Status = *op.NewStatus
		n.Metadata.ModifiedAt = now
		n.Metadata.ModifiedBy = actor
		n.Metadata.Version++
		s.nodes[key] = n
		return nil

	default:
		return store.Invalid("unknown operation kind %q", op.Kind)
	}
}

func lastReviewID(history []ctxtypes.Review) *string {
	if len(history) == 0 {
		return nil
	}
	id := history[len(history)-1].ID
	return &id
}

func revisionID(n uint64) string {
	return "rev_" + uintToString(n)
}

func uintToString(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
