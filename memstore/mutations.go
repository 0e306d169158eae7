package memstore

import (
	"time"

	"ctxstore.dev/governed-context/ctxtypes"
	"ctxstore.dev/governed-context/store"
)

// CreateProposal inserts a new proposal, keeping the caller's status and
// defaulting it to Open when empty. IDs must be unique; callers
// (the mediator) are responsible for generating them.
func (s *Store) CreateProposal(p ctxtypes.Proposal) error {
	s.proposalsMu.Lock()
	defer s.proposalsMu.Unlock()
	s.auditMu.Lock()
	defer s.auditMu.Unlock()

	if _, exists := s.proposals[p.ID]; exists {
		return store.Conflict("proposal %s already exists", p.ID)
	}
	if len(p.Operations) == 0 {
		return store.Invalid("proposal %s has no operations", p.ID)
	}
	if p.Status == "" {
		p.Status = ctxtypes.ProposalOpen
	}
	s.proposals[p.ID] = p.Clone()

	event := ctxtypes.NewAuditEvent(p.Metadata.CreatedBy, "human", ctxtypes.ActionProposalCreated, p.ID, ctxtypes.OutcomeSuccess)
	s.audit = append(s.audit, event.WithDetails(map[string]interface{}{"operationCount": len(p.Operations)}))
	return nil
}

// UpdateProposal applies a sparse patch to an Open proposal. Status may
// never be forced to Applied here; see store.ProposalPatch.
func (s *Store) UpdateProposal(id string, patch store.ProposalPatch) error {
	s.proposalsMu.Lock()
	defer s.proposalsMu.Unlock()
	s.auditMu.Lock()
	defer s.auditMu.Unlock()

	p, ok := s.proposals[id]
	if !ok {
		return store.NotFound("proposal %s not found", id)
	}
	if p.Status != ctxtypes.ProposalOpen {
		return store.Invalid("proposal %s is %s, not open", id, p.Status)
	}
	if patch.Status != nil {
		if *patch.Status == ctxtypes.ProposalApplied {
			return store.Invalid("proposal status may not be set to applied directly")
		}
		p.Status = *patch.Status
	}
	if patch.Rationale != nil {
		p.Metadata.Rationale = patch.Rationale
	}
	if patch.Comments != nil {
		p.Comments = patch.Comments
	}
	s.proposals[id] = p

	event := ctxtypes.NewAuditEvent(p.Metadata.CreatedBy, "human", ctxtypes.ActionProposalUpdated, id, ctxtypes.OutcomeSuccess)
	s.audit = append(s.audit, event)
	return nil
}

// SubmitReview appends r to the proposal's review history and, within the
// same critical section, invokes reeval to decide the proposal's resulting
// status — this folds policy re-evaluation into the append itself so no
// other goroutine can observe the proposal between "review recorded" and
// "status decided" (the REDESIGN FLAG fix: the original's submit_review did
// these as two separate locked steps).
func (s *Store) SubmitReview(r ctxtypes.Review, reeval store.ReviewReevaluator) error {
	s.proposalsMu.Lock()
	defer s.proposalsMu.Unlock()
	s.reviewsMu.Lock()
	defer s.reviewsMu.Unlock()
	s.auditMu.Lock()
	defer s.auditMu.Unlock()

	p, ok := s.proposals[r.ProposalID]
	if !ok {
		return store.NotFound("proposal %s not found", r.ProposalID)
	}
	if p.Status != ctxtypes.ProposalOpen {
		return store.Invalid("proposal %s is %s, not open", r.ProposalID, p.Status)
	}

	s.reviews[r.ProposalID] = append(s.reviews[r.ProposalID], r)
	allReviews := append([]ctxtypes.Review(nil), s.reviews[r.ProposalID]...)

	naiveNext := p.Status
	switch r.Action {
	case ctxtypes.ReviewAccept:
		naiveNext = ctxtypes.ProposalAccepted
	case ctxtypes.ReviewReject:
		naiveNext = ctxtypes.ProposalRejected
	}

	final := naiveNext
	if reeval != nil {
		final = reeval(p, allReviews, naiveNext)
	}
	p.Status = final
	s.proposals[r.ProposalID] = p

	event := ctxtypes.NewAuditEvent(r.Reviewer, "human", ctxtypes.ActionReviewSubmitted, r.ProposalID, ctxtypes.OutcomeSuccess)
	s.audit = append(s.audit, event.WithDetails(map[string]interface{}{
		"action":       r.Action,
		"resultStatus": final,
	}))
	return nil
}

// WithdrawProposal moves an Open proposal to Withdrawn. Legal only from
// Open per spec.md §4.1/§3 — Accepted, Rejected, Withdrawn, and Applied
// proposals all reject withdrawal.
func (s *Store) WithdrawProposal(id string) error {
	s.proposalsMu.Lock()
	defer s.proposalsMu.Unlock()
	s.auditMu.Lock()
	defer s.auditMu.Unlock()

	p, ok := s.proposals[id]
	if !ok {
		return store.NotFound("proposal %s not found", id)
	}
	if p.Status != ctxtypes.ProposalOpen {
		return store.Invalid("proposal %s is %s, cannot withdraw", id, p.Status)
	}
	p.Status = ctxtypes.ProposalWithdrawn
	s.proposals[id] = p

	event := ctxtypes.NewAuditEvent(p.Metadata.CreatedBy, "human", ctxtypes.ActionProposalWithdrawn, id, ctxtypes.OutcomeSuccess)
	s.audit = append(s.audit, event)
	return nil
}

// AddProposalComment appends a threaded comment. c.ParentID, if set, must
// reference an existing comment on the same proposal.
func (s *Store) AddProposalComment(proposalID string, c ctxtypes.Comment) error {
	s.proposalsMu.RLock()
	_, ok := s.proposals[proposalID]
	s.proposalsMu.RUnlock()
	if !ok {
		return store.NotFound("proposal %s not found", proposalID)
	}

	s.commentsMu.Lock()
	defer s.commentsMu.Unlock()
	if c.ParentID != nil {
		found := false
		for _, existing := range s.comments[proposalID] {
			if existing.ID == *c.ParentID {
				found = true
				break
			}
		}
		if !found {
			return store.Invalid("parent comment %s not found on proposal %s", *c.ParentID, proposalID)
		}
	}
	s.comments[proposalID] = append(s.comments[proposalID], c)
	return nil
}

// Reset clears nodes, proposals, reviews, comments, and the revision
// counter. The audit log is never cleared; a store_reset event is appended
// instead so the reset itself is part of the permanent record.
func (s *Store) Reset() error {
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

	s.nodes = make(map[string]ctxtypes.Node)
	s.proposals = make(map[string]ctxtypes.Proposal)
	s.reviews = make(map[string][]ctxtypes.Review)
	s.revision = 0

	s.commentsMu.Lock()
	s.comments = make(map[string][]ctxtypes.Comment)
	s.commentsMu.Unlock()

	event := ctxtypes.NewAuditEvent("system", "system", ctxtypes.ActionStoreReset, "store", ctxtypes.OutcomeSuccess)
	s.audit = append(s.audit, event)
	return nil
}

// AppendAudit records an externally-constructed event (e.g. a policy
// denial recorded by the mediator before it ever reaches the store).
func (s *Store) AppendAudit(e ctxtypes.AuditEvent) error {
	s.auditMu.Lock()
	defer s.auditMu.Unlock()
	s.audit = append(s.audit, e)
	return nil
}

// Erase marks actorID's audit rows for redaction on read, implementing the
// DSAR "right to erasure" without mutating the append-only log itself.
func (s *Store) Erase(actorID string, at time.Time) {
	s.redactionsMu.Lock()
	defer s.redactionsMu.Unlock()
	s.redactions[actorID] = at
}
