// Package mediator implements the six-step request skeleton every
// mutating endpoint runs: RBAC -> agent-reject-on-review/apply -> policy
// evaluate -> store mutate -> audit append -> event publish. Grounded on
// spec.md §4.4 and SPEC_FULL.md §4.4, which folds the REDESIGN FLAG fix
// (policy re-evaluation inside SubmitReview's single critical section)
// into the store layer rather than the mediator, so this package never
// observes an intermediate proposal status.
package mediator

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ctxstore.dev/governed-context/ctxauth"
	"ctxstore.dev/governed-context/ctxtypes"
	"ctxstore.dev/governed-context/eventbus"
	"ctxstore.dev/governed-context/policy"
	"ctxstore.dev/governed-context/sensitivity"
	"ctxstore.dev/governed-context/store"
)

// Mediator is the sole entry point mutating endpoints call through; it
// never exposes the raw store to the HTTP layer.
type Mediator struct {
	Store  store.ContextStore
	Policy policy.Config
	Bus    *eventbus.Bus
	Logger *logrus.Logger
}

// New builds a Mediator wired to the given collaborators.
func New(s store.ContextStore, policyCfg policy.Config, bus *eventbus.Bus, logger *logrus.Logger) *Mediator {
	return &Mediator{Store: s, Policy: policyCfg, Bus: bus, Logger: logger}
}

func (m *Mediator) publish(eventType, resourceID, actorID string, data map[string]interface{}) {
	m.Bus.Publish(eventbus.ServerEvent{
		EventType:  eventType,
		ResourceID: resourceID,
		ActorID:    actorID,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Data:       data,
	})
}

// denyForbidden builds an RBAC/agent-restriction denial and records
// exactly one audit event with outcome "denied" for it, so that per
// spec.md §7 every rejected mutation attempt — not just policy
// violations — leaves a trace in the audit log.
func (m *Mediator) denyForbidden(actor ctxauth.ActorContext, resourceID string, action ctxtypes.AuditAction, format string, args ...interface{}) error {
	err := Forbidden(format, args...)
	me, _ := AsMediatorError(err)
	event := ctxtypes.NewAuditEvent(actor.ActorID, string(actor.ActorType), action, resourceID, ctxtypes.OutcomeDenied).
		WithDetails(map[string]interface{}{"reason": me.Msg})
	if aerr := m.Store.AppendAudit(event); aerr != nil {
		m.Logger.WithError(aerr).Warn("mediator: failed to record forbidden-denial audit event")
	}
	return err
}

func (m *Mediator) denyPolicyViolation(actorID, actorType, resourceID string, action ctxtypes.AuditAction, violations []policy.Violation) error {
	details := make(map[string]interface{}, len(violations))
	for i, v := range violations {
		details["violation_"+uintToString(i)] = map[string]string{"rule": v.Rule, "message": v.Message}
	}
	event := ctxtypes.NewAuditEvent(actorID, actorType, action, resourceID, ctxtypes.OutcomePolicyViolation).WithDetails(details)
	if err := m.Store.AppendAudit(event); err != nil {
		m.Logger.WithError(err).Warn("mediator: failed to record policy violation audit event")
	}
	return PolicyViolation(violations)
}

func uintToString(n int) string {
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

// CreateProposal enforces Contributor RBAC, the agent size/sensitivity
// policy hook, assigns a fresh proposal ID when none is given, creates it, and publishes
// proposal_updated.
func (m *Mediator) CreateProposal(actor ctxauth.ActorContext, p ctxtypes.Proposal) (ctxtypes.Proposal, error) {
	if !actor.HasRole(ctxauth.RoleContributor) {
		return ctxtypes.Proposal{}, m.denyForbidden(actor, p.ID, ctxtypes.ActionProposalCreated, "role %v may not create proposals", actor.Roles)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Metadata.CreatedBy == "" {
		p.Metadata.CreatedBy = actor.ActorID
	}
	if p.Metadata.CreatedAt == "" {
		p.Metadata.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if p.Status == "" {
		p.Status = ctxtypes.ProposalOpen
	}

	if violations := policy.EvaluateOnCreate(p, string(actor.ActorType), m.Policy); len(violations) > 0 {
		return ctxtypes.Proposal{}, m.denyPolicyViolation(actor.ActorID, string(actor.ActorType), p.ID, ctxtypes.ActionProposalCreated, violations)
	}

	if err := m.Store.CreateProposal(p); err != nil {
		return ctxtypes.Proposal{}, err
	}
	m.publish("proposal_updated", p.ID, actor.ActorID, map[string]interface{}{"status": p.Status})
	return p, nil
}

// UpdateProposal enforces Contributor RBAC and applies a sparse patch.
// Policy has no update-time hook per spec.md §4.2.
func (m *Mediator) UpdateProposal(actor ctxauth.ActorContext, id string, patch store.ProposalPatch) (*ctxtypes.Proposal, error) {
	if !actor.HasRole(ctxauth.RoleContributor) {
		return nil, m.denyForbidden(actor, id, ctxtypes.ActionProposalUpdated, "role %v may not update proposals", actor.Roles)
	}
	if err := m.Store.UpdateProposal(id, patch); err != nil {
		return nil, err
	}
	updated, err := m.Store.GetProposal(id)
	if err != nil {
		return nil, err
	}
	m.publish("proposal_updated", id, actor.ActorID, nil)
	return updated, nil
}

// SubmitReview rejects agents outright (step 2 of the skeleton), enforces
// Reviewer RBAC, and folds the policy re-evaluation into the store's
// single-locked SubmitReview call via the ReviewReevaluator callback.
func (m *Mediator) SubmitReview(actor ctxauth.ActorContext, r ctxtypes.Review) (*ctxtypes.Proposal, error) {
	if !actor.HasRole(ctxauth.RoleReviewer) {
		return nil, m.denyForbidden(actor, r.ProposalID, ctxtypes.ActionReviewSubmitted, "role %v may not review proposals", actor.Roles)
	}
	if violations := policy.EvaluateAgentAction(string(actor.ActorType), "review", m.Policy); len(violations) > 0 {
		return nil, m.denyPolicyViolation(actor.ActorID, string(actor.ActorType), r.ProposalID, ctxtypes.ActionReviewSubmitted, violations)
	}
	if actor.IsAgent() {
		return nil, m.denyForbidden(actor, r.ProposalID, ctxtypes.ActionReviewSubmitted, "agents may not submit reviews")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Reviewer == "" {
		r.Reviewer = actor.ActorID
	}
	if r.ReviewedAt == "" {
		r.ReviewedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if r.ReviewerRole == nil && len(actor.Roles) > 0 {
		role := string(actor.Roles[0])
		r.ReviewerRole = &role
	}

	reeval := func(p ctxtypes.Proposal, allReviews []ctxtypes.Review, naiveNext ctxtypes.ProposalStatus) ctxtypes.ProposalStatus {
		status, violations := policy.EvaluateOnReview(p, allReviews, m.Policy)
		if len(violations) > 0 {
			// Violations block acceptance but never force rejection; the
			// proposal simply remains open pending further review.
			return ctxtypes.ProposalOpen
		}
		if status != nil {
			return *status
		}
		if naiveNext == ctxtypes.ProposalRejected {
			return naiveNext
		}
		return p.Status
	}

	if err := m.Store.SubmitReview(r, reeval); err != nil {
		return nil, err
	}
	updated, err := m.Store.GetProposal(r.ProposalID)
	if err != nil {
		return nil, err
	}
	m.publish("review_submitted", r.ProposalID, actor.ActorID, map[string]interface{}{
		"action": r.Action, "resultStatus": updated.Status,
	})
	return updated, nil
}

// ApplyProposal rejects agents outright, enforces Applier RBAC, runs the
// change-window/agent-restriction apply hook, and invokes the store's
// atomic apply engine.
func (m *Mediator) ApplyProposal(actor ctxauth.ActorContext, id, appliedBy string) (*ctxtypes.Proposal, error) {
	if !actor.HasRole(ctxauth.RoleApplier) {
		return nil, m.denyForbidden(actor, id, ctxtypes.ActionProposalApplied, "role %v may not apply proposals", actor.Roles)
	}
	if appliedBy == "" {
		appliedBy = actor.ActorID
	}

	// Policy runs before the hard agent reject below: an agent apply
	// blocked by a configured AgentRestriction rule must surface as a 422
	// policy violation (spec.md §8 scenario 3), not a bare 403. Only an
	// agent apply with no matching rule falls through to the unconditional
	// reject.
	if violations := policy.EvaluateOnApply(string(actor.ActorType), m.Policy, time.Now()); len(violations) > 0 {
		return nil, m.denyPolicyViolation(actor.ActorID, string(actor.ActorType), id, ctxtypes.ActionProposalApplied, violations)
	}

	if actor.IsAgent() {
		return nil, m.denyForbidden(actor, id, ctxtypes.ActionProposalApplied, "agents may not apply proposals")
	}

	if err := m.Store.ApplyProposal(id, appliedBy); err != nil {
		return nil, err
	}
	applied, err := m.Store.GetProposal(id)
	if err != nil {
		return nil, err
	}
	m.publish("proposal_updated", id, actor.ActorID, map[string]interface{}{"status": applied.Status})
	return applied, nil
}

// WithdrawProposal enforces Contributor RBAC; withdrawal carries no
// policy hook.
func (m *Mediator) WithdrawProposal(actor ctxauth.ActorContext, id string) (*ctxtypes.Proposal, error) {
	if !actor.HasRole(ctxauth.RoleContributor) {
		return nil, m.denyForbidden(actor, id, ctxtypes.ActionProposalWithdrawn, "role %v may not withdraw proposals", actor.Roles)
	}
	if err := m.Store.WithdrawProposal(id); err != nil {
		return nil, err
	}
	updated, err := m.Store.GetProposal(id)
	if err != nil {
		return nil, err
	}
	m.publish("proposal_updated", id, actor.ActorID, map[string]interface{}{"status": updated.Status})
	return updated, nil
}

// AddComment enforces Contributor RBAC for posting a threaded annotation,
// the comment supplement restored from original_source/ per SPEC_FULL.md
// §3.
func (m *Mediator) AddComment(actor ctxauth.ActorContext, proposalID string, c ctxtypes.Comment) (ctxtypes.Comment, error) {
	if !actor.HasRole(ctxauth.RoleContributor) {
		return ctxtypes.Comment{}, m.denyForbidden(actor, proposalID, ctxtypes.ActionProposalUpdated, "role %v may not comment on proposals", actor.Roles)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.ProposalID = proposalID
	if c.Author == "" {
		c.Author = actor.ActorID
	}
	if c.CreatedAt == "" {
		c.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if c.Status == "" {
		c.Status = ctxtypes.CommentOpen
	}
	if err := m.Store.AddProposalComment(proposalID, c); err != nil {
		return ctxtypes.Comment{}, err
	}
	m.publish("proposal_updated", proposalID, actor.ActorID, map[string]interface{}{"commentId": c.ID})
	return c, nil
}

// Reset enforces Admin RBAC and clears all governance state except the
// audit log, which the store itself guarantees is append-only.
func (m *Mediator) Reset(actor ctxauth.ActorContext) error {
	if !actor.HasRole(ctxauth.RoleAdmin) {
		return m.denyForbidden(actor, "store", ctxtypes.ActionStoreReset, "role %v may not reset the store", actor.Roles)
	}
	if err := m.Store.Reset(); err != nil {
		return err
	}
	m.publish("config_changed", "store", actor.ActorID, map[string]interface{}{"action": "reset"})
	return nil
}

// NodeReadResult is either a full Node or, for an agent capped below the
// node's sensitivity, a RedactedStub.
type NodeReadResult struct {
	Node *ctxtypes.Node
	Stub *ctxtypes.RedactedStub
}

// ReadNode enforces the sensitivity predicate for agent callers (spec.md
// §4.4): agent_can_read(node_sensitivity, agent_max_sensitivity). Denied
// reads return a redacted stub and record a sensitive_read/denied audit
// event; confidential/restricted reads that succeed record a
// sensitive_read/success event. Human and system callers are never gated.
func (m *Mediator) ReadNode(actor ctxauth.ActorContext, key string) (NodeReadResult, error) {
	n, err := m.Store.GetNode(key)
	if err != nil {
		return NodeReadResult{}, err
	}
	if n == nil {
		return NodeReadResult{}, nil
	}

	nodeSensitivity := n.Metadata.SensitivityOrDefault()

	if actor.IsAgent() {
		maxSensitivity := policy.AgentMaxSensitivity(m.Policy)
		if !sensitivity.AgentCanRead(nodeSensitivity, maxSensitivity) {
			event := ctxtypes.NewAuditEvent(actor.ActorID, string(actor.ActorType), ctxtypes.ActionSensitiveRead, key, ctxtypes.OutcomeDenied).
				WithDetails(map[string]interface{}{"sensitivity": nodeSensitivity.String()})
			if aerr := m.Store.AppendAudit(event); aerr != nil {
				m.Logger.WithError(aerr).Warn("mediator: failed to record sensitive_read audit event")
			}
			stub := ctxtypes.Redact(*n)
			return NodeReadResult{Stub: &stub}, nil
		}
	}

	if nodeSensitivity >= sensitivity.Confidential {
		event := ctxtypes.NewAuditEvent(actor.ActorID, string(actor.ActorType), ctxtypes.ActionSensitiveRead, key, ctxtypes.OutcomeSuccess).
			WithDetails(map[string]interface{}{"sensitivity": nodeSensitivity.String()})
		if aerr := m.Store.AppendAudit(event); aerr != nil {
			m.Logger.WithError(aerr).Warn("mediator: failed to record sensitive_read audit event")
		}
	}

	return NodeReadResult{Node: n}, nil
}

// NodeOrStub is either a full node (json-marshaled as-is) or a redacted
// stub, used by QueryNodes to return a mixed-type list.
type NodeOrStub struct {
	Node *ctxtypes.Node
	Stub *ctxtypes.RedactedStub
}

// QueryNodes runs the list query and, for agent callers, replaces any
// node above the configured sensitivity ceiling with a redacted stub.
// Unlike ReadNode, list reads do not each emit a sensitive_read audit
// event — auditing every row of a paginated scan would flood the ledger
// for a bulk, low-intent read; ReadNode's single-resource path is the
// one that records provenance.
func (m *Mediator) QueryNodes(actor ctxauth.ActorContext, q ctxtypes.NodeQuery) ([]NodeOrStub, ctxtypes.NodeQueryResult, error) {
	result, err := m.Store.QueryNodes(q)
	if err != nil {
		return nil, ctxtypes.NodeQueryResult{}, err
	}

	maxSensitivity := policy.AgentMaxSensitivity(m.Policy)
	out := make([]NodeOrStub, 0, len(result.Nodes))
	for _, n := range result.Nodes {
		node := n
		if actor.IsAgent() && !sensitivity.AgentCanRead(node.Metadata.SensitivityOrDefault(), maxSensitivity) {
			stub := ctxtypes.Redact(node)
			out = append(out, NodeOrStub{Stub: &stub})
			continue
		}
		out = append(out, NodeOrStub{Node: &node})
	}
	return out, result, nil
}
