package ctxtypes

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction is the closed set of recorded governance actions.
type AuditAction string

const (
	ActionProposalCreated   AuditAction = "proposal_created"
	ActionProposalUpdated   AuditAction = "proposal_updated"
	ActionProposalApplied   AuditAction = "proposal_applied"
	ActionProposalWithdrawn AuditAction = "proposal_withdrawn"
	ActionReviewSubmitted   AuditAction = "review_submitted"
	ActionNodeCreated       AuditAction = "node_created"
	ActionNodeUpdated       AuditAction = "node_updated"
	ActionNodeDeleted       AuditAction = "node_deleted"
	ActionRoleChanged       AuditAction = "role_changed"
	ActionPolicyEvaluated   AuditAction = "policy_evaluated"
	ActionStoreReset        AuditAction = "store_reset"
	ActionSensitiveRead     AuditAction = "sensitive_read"
)

// AuditOutcome is the result recorded alongside an audit action.
type AuditOutcome string

const (
	OutcomeSuccess         AuditOutcome = "success"
	OutcomeDenied          AuditOutcome = "denied"
	OutcomePolicyViolation AuditOutcome = "policy_violation"
	OutcomeError           AuditOutcome = "error"
)

// AuditEvent is a single immutable ledger entry. The log is strictly
// append-only; reset() never clears it.
type AuditEvent struct {
	EventID     string                 `json:"eventId"`
	Timestamp   string                 `json:"timestamp"`
	ActorID     string                 `json:"actorId"`
	ActorType   string                 `json:"actorType"`
	Action      AuditAction            `json:"action"`
	ResourceID  string                 `json:"resourceId"`
	WorkspaceID *string                `json:"workspaceId,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
	Outcome     AuditOutcome           `json:"outcome"`
}

// NewAuditEvent stamps a new event with a fresh uuid-v4 id and the
// current wall-clock RFC-3339 timestamp.
func NewAuditEvent(actorID, actorType string, action AuditAction, resourceID string, outcome AuditOutcome) AuditEvent {
	return AuditEvent{
		EventID:    uuid.NewString(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		ActorID:    actorID,
		ActorType:  actorType,
		Action:     action,
		ResourceID: resourceID,
		Outcome:    outcome,
	}
}

// WithDetails attaches structured context to the event and returns it for
// chaining at the call site.
func (e AuditEvent) WithDetails(details map[string]interface{}) AuditEvent {
	e.Details = details
	return e
}
