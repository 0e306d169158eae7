package memstore

import (
	"time"

	"ctxstore.dev/governed-context/ctxtypes"
)

// Snapshot is a full, deep-copied view of the store's state, used by
// filestore to persist after every mutation and to restore state at
// startup. It is not part of the store.ContextStore interface: only
// persistence variants need whole-state access.
type Snapshot struct {
	Nodes      map[string]ctxtypes.Node
	Proposals  map[string]ctxtypes.Proposal
	Reviews    map[string][]ctxtypes.Review
	Comments   map[string][]ctxtypes.Comment
	Audit      []ctxtypes.AuditEvent
	Revision   uint64
	Redactions map[string]time.Time
}

// Snapshot returns a deep copy of the entire store, locking every
// aggregate in the same revision->nodes->proposals->reviews->audit order
// used elsewhere to avoid deadlocks against a concurrent ApplyProposal.
func (s *Store) Snapshot() Snapshot {
	s.revMu.RLock()
	defer s.revMu.RUnlock()
	s.nodesMu.RLock()
	defer s.nodesMu.RUnlock()
	s.proposalsMu.RLock()
	defer s.proposalsMu.RUnlock()
	s.reviewsMu.RLock()
	defer s.reviewsMu.RUnlock()
	s.commentsMu.RLock()
	defer s.commentsMu.RUnlock()
	s.auditMu.RLock()
	defer s.auditMu.RUnlock()
	s.redactionsMu.RLock()
	defer s.redactionsMu.RUnlock()

	snap := Snapshot{
		Nodes:      make(map[string]ctxtypes.Node, len(s.nodes)),
		Proposals:  make(map[string]ctxtypes.Proposal, len(s.proposals)),
		Reviews:    make(map[string][]ctxtypes.Review, len(s.reviews)),
		Comments:   make(map[string][]ctxtypes.Comment, len(s.comments)),
		Audit:      append([]ctxtypes.AuditEvent(nil), s.audit...),
		Revision:   s.revision,
		Redactions: make(map[string]time.Time, len(s.redactions)),
	}
	for k, v := range s.nodes {
		snap.Nodes[k] = v.Clone()
	}
	for k, v := range s.proposals {
		snap.Proposals[k] = v.Clone()
	}
	for k, v := range s.reviews {
		snap.Reviews[k] = append([]ctxtypes.Review(nil), v...)
	}
	for k, v := range s.comments {
		snap.Comments[k] = append([]ctxtypes.Comment(nil), v...)
	}
	for k, v := range s.redactions {
		snap.Redactions[k] = v
	}
	return snap
}

// Restore replaces the store's entire state with snap. Intended for
// filestore's startup load, before the store is exposed to any request;
// callers must not invoke Restore concurrently with other store traffic.
func (s *Store) Restore(snap Snapshot) {
	s.revMu.Lock()
	defer s.revMu.Unlock()
	s.nodesMu.Lock()
	defer s.nodesMu.Unlock()
	s.proposalsMu.Lock()
	defer s.proposalsMu.Unlock()
	s.reviewsMu.Lock()
	defer s.reviewsMu.Unlock()
	s.commentsMu.Lock()
	defer s.commentsMu.Unlock()
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	s.redactionsMu.Lock()
	defer s.redactionsMu.Unlock()

	s.nodes = make(map[string]ctxtypes.Node, len(snap.Nodes))
	for k, v := range snap.Nodes {
		s.nodes[k] = v
	}
	s.proposals = make(map[string]ctxtypes.Proposal, len(snap.Proposals))
	for k, v := range snap.Proposals {
		s.proposals[k] = v
	}
	s.reviews = make(map[string][]ctxtypes.Review, len(snap.Reviews))
	for k, v := range snap.Reviews {
		s.reviews[k] = append([]ctxtypes.Review(nil), v...)
	}
	s.comments = make(map[string][]ctxtypes.Comment, len(snap.Comments))
	for k, v := range snap.Comments {
		s.comments[k] = append([]ctxtypes.Comment(nil), v...)
	}
	s.audit = append([]ctxtypes.AuditEvent(nil), snap.Audit...)
	s.revision = snap.Revision
	s.redactions = make(map[string]time.Time, len(snap.Redactions))
	for k, v := range snap.Redactions {
		s.redactions[k] = v
	}
}

// Revision reports the current monotonic revision counter.
func (s *Store) Revision() uint64 {
	s.revMu.RLock()
	defer s.revMu.RUnlock()
	return s.revision
}
