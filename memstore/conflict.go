package memstore

import (
	"ctxstore.dev/governed-context/ctxtypes"
	"ctxstore.dev/governed-context/store"
)

// IsProposalStale reports whether any node the proposal's base_versions
// snapshot references has since moved to a different version — the same
// optimistic-lock comparison ApplyProposal makes before executing.
func (s *Store) IsProposalStale(proposalID string) (bool, error) {
	s.proposalsMu.RLock()
	p, ok := s.proposals[proposalID]
	s.proposalsMu.RUnlock()
	if !ok {
		return false, store.NotFound("proposal %s not found", proposalID)
	}

	s.nodesMu.RLock()
	defer s.nodesMu.RUnlock()
	for key, baseVersion := range p.Metadata.BaseVersions {
		if n, exists := s.nodes[key]; exists && n.Metadata.Version != baseVersion {
			return true, nil
		}
	}
	return false, nil
}

// DetectConflicts compares proposalID against every other Open proposal,
// flagging shared touched-node-keys as conflicts. Per spec.md §4.5,
// severity is derived solely from the number of shared node keys
// (more than one shared key is Critical, exactly one is Node) and every
// conflicting proposal needs human resolution — auto_resolvable is always
// false here; mergeable is the set of other open proposals that share no
// touched node with the target. Whether a conflict's operations could
// still be merged automatically is MergeProposals's question, not this
// one's.
func (s *Store) DetectConflicts(proposalID string) (ctxtypes.ConflictDetectionResult, error) {
	s.proposalsMu.RLock()
	target, ok := s.proposals[proposalID]
	if !ok {
		s.proposalsMu.RUnlock()
		return ctxtypes.ConflictDetectionResult{}, store.NotFound("proposal %s not found", proposalID)
	}
	others := make([]ctxtypes.Proposal, 0, len(s.proposals))
	for id, p := range s.proposals {
		if id == proposalID || p.Status != ctxtypes.ProposalOpen {
			continue
		}
		others = append(others, p)
	}
	s.proposalsMu.RUnlock()

	targetKeys := target.TouchedNodeKeys()
	result := ctxtypes.ConflictDetectionResult{}

	for _, other := range others {
		otherKeys := other.TouchedNodeKeys()
		shared := intersect(targetKeys, otherKeys)
		if len(shared) == 0 {
			result.Mergeable = append(result.Mergeable, other.ID)
			continue
		}

		severity := ctxtypes.SeverityNode
		if len(shared) > 1 {
			severity = ctxtypes.SeverityCritical
		}

		result.Conflicts = append(result.Conflicts, ctxtypes.ProposalConflict{
			Proposals:        []string{proposalID, other.ID},
			ConflictingNodes: setToSlice(shared),
			Severity:         severity,
			AutoResolvable:   false,
		})
		result.NeedsResolution = append(result.NeedsResolution, other.ID)
	}
	return result, nil
}

// MergeProposals combines the field-level changes of the given open
// proposals. Disjoint fields merge automatically; two proposals setting
// the same node/field to different values land in Conflicts and are not
// merged.
func (s *Store) MergeProposals(ids []string) (ctxtypes.MergeResult, error) {
	s.proposalsMu.RLock()
	defer s.proposalsMu.RUnlock()

	var proposals []ctxtypes.Proposal
	for _, id := range ids {
		p, ok := s.proposals[id]
		if !ok {
			return ctxtypes.MergeResult{}, store.NotFound("proposal %s not found", id)
		}
		proposals = append(proposals, p)
	}

	type fieldKey struct{ node, field string }
	changesByField := make(map[fieldKey][]ctxtypes.FieldChange)

	for _, p := range proposals {
		for _, op := range p.Operations {
			for _, fc := range fieldChangesOf(p.ID, op) {
				k := fieldKey{fc.NodeID, fc.Field}
				changesByField[k] = append(changesByField[k], fc)
			}
		}
	}

	var result ctxtypes.MergeResult
	for k, changes := range changesByField {
		if len(changes) == 1 {
			result.AutoMerged = append(result.AutoMerged, changes[0])
			result.Merged = append(result.Merged, changes[0])
			continue
		}
		allSame := true
		for _, c := range changes[1:] {
			if c.Value != changes[0].Value {
				allSame = false
				break
			}
		}
		if allSame {
			result.AutoMerged = append(result.AutoMerged, changes[0])
			result.Merged = append(result.Merged, changes[0])
			continue
		}
		result.Conflicts = append(result.Conflicts, ctxtypes.MergeConflictField{
			Field:          k.field,
			NodeID:         k.node,
			Proposal1Value: changes[0].Value,
			Proposal2Value: changes[1].Value,
		})
	}
	return result, nil
}

func fieldChangesOf(proposalID string, op ctxtypes.Operation) []ctxtypes.FieldChange {
	switch op.Kind {
	case ctxtypes.OpUpdate:
		if op.NodeID == nil || op.Changes == nil {
			return nil
		}
		key := op.NodeID.Key()
		var out []ctxtypes.FieldChange
		if op.Changes.Content != nil {
			out = append(out, ctxtypes.FieldChange{ProposalID: proposalID, NodeID: key, Field: "content", Value: *op.Changes.Content})
		}
		if op.Changes.Status != nil {
			out = append(out, ctxtypes.FieldChange{ProposalID: proposalID, NodeID: key, Field: "status", Value: string(*op.Changes.Status)})
		}
		return out
	case ctxtypes.OpStatusChange:
		if op.NodeID == nil || op.NewStatus == nil {
			return nil
		}
		return []ctxtypes.FieldChange{{ProposalID: proposalID, NodeID: op.NodeID.Key(), Field: "status", Value: string(*op.NewStatus)}}
	default:
		return nil
	}
}

func intersect(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for k := range a {
		if _, ok := b[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out
}

func setToSlice(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
