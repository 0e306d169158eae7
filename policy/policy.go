// Package policy implements the configurable rule engine that gates
// proposal creation, review, and apply: MinApprovals, RequiredReviewerRole,
// ChangeWindow, AgentRestriction, AgentProposalLimit, and EgressControl.
package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"ctxstore.dev/governed-context/ctxtypes"
	"ctxstore.dev/governed-context/sensitivity"
)

// Violation is a single unmet rule, returned in batches (empty = pass).
type Violation struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// RuleKind tags a Rule's variant.
type RuleKind string

const (
	RuleMinApprovals         RuleKind = "min_approvals"
	RuleRequiredReviewerRole RuleKind = "required_reviewer_role"
	RuleChangeWindow         RuleKind = "change_window"
	RuleAgentRestriction     RuleKind = "agent_restriction"
	RuleAgentProposalLimit   RuleKind = "agent_proposal_limit"
	RuleEgressControl        RuleKind = "egress_control"
)

const defaultMaxContentLength = 50_000

// Rule is a single configured policy rule. Only the fields relevant to
// Kind are populated, mirroring ctxtypes.Operation's tagged-union shape.
type Rule struct {
	Kind RuleKind `json:"type"`

	// MinApprovals / RequiredReviewerRole
	NodeTypes []ctxtypes.NodeType `json:"nodeTypes,omitempty"`
	Min       uint32              `json:"min,omitempty"`
	Role      string              `json:"role,omitempty"`

	// ChangeWindow. AllowedDays uses spec.md §4.2's convention, 0=Monday
	// through 6=Sunday, NOT Go's time.Weekday (0=Sunday) — see specWeekday.
	AllowedDays      []int `json:"allowedDays,omitempty"`
	AllowedHourStart int   `json:"allowedHourStart,omitempty"`
	AllowedHourEnd   int   `json:"allowedHourEnd,omitempty"`

	// AgentRestriction
	BlockedActions []string `json:"blockedActions,omitempty"`

	// AgentProposalLimit
	MaxOperations    uint32 `json:"maxOperations,omitempty"`
	MaxContentLength uint32 `json:"maxContentLength,omitempty"`

	// EgressControl
	MaxSensitivity sensitivity.Level `json:"maxSensitivity,omitempty"`
	Destinations   []string          `json:"destinations,omitempty"`
}

// Config is the full policy document, typically loaded from policies.json.
type Config struct {
	Rules []Rule `json:"rules"`
}

// Load reads a policy document from path. A missing file, or one that
// fails to parse, yields an empty Config rather than an error — policy is
// opt-in, matching the original's load-or-default behavior.
func Load(path string) Config {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}

// EvaluateOnCreate checks rules that apply when a proposal is first
// submitted: agent size limits and the restricted-sensitivity guard.
func EvaluateOnCreate(p ctxtypes.Proposal, actorType string, cfg Config) []Violation {
	var violations []Violation

	if actorType == "agent" {
		for _, r := range cfg.Rules {
			if r.Kind != RuleAgentProposalLimit {
				continue
			}
			maxContent := r.MaxContentLength
			if maxContent == 0 {
				maxContent = defaultMaxContentLength
			}
			if uint32(len(p.Operations)) > r.MaxOperations {
				violations = append(violations, Violation{
					Rule:    string(RuleAgentProposalLimit),
					Message: fmt.Sprintf("agent proposals limited to %d operations, got %d", r.MaxOperations, len(p.Operations)),
				})
			}
			var totalContent uint32
			for _, op := range p.Operations {
				totalContent += contentLengthOf(op)
			}
			if totalContent > maxContent {
				violations = append(violations, Violation{
					Rule:    string(RuleAgentProposalLimit),
					Message: fmt.Sprintf("agent proposal content limited to %d bytes, got %d", maxContent, totalContent),
				})
			}
		}
	}

	violations = append(violations, checkAgentRestrictedNodeModification(p, actorType, cfg)...)
	return violations
}

func contentLengthOf(op ctxtypes.Operation) uint32 {
	switch op.Kind {
	case ctxtypes.OpCreate:
		if op.Node != nil {
			return uint32(len(op.Node.Content))
		}
	case ctxtypes.OpUpdate:
		if op.Changes != nil && op.Changes.Content != nil {
			return uint32(len(*op.Changes.Content))
		}
	}
	return 0
}

// EvaluateOnReview is the sole place policy decides whether a proposal
// moves to Accepted. It is designed to run inside store.ReviewReevaluator
// so the decision is folded into SubmitReview's single critical section
// rather than computed in a second, separately-locked step.
func EvaluateOnReview(p ctxtypes.Proposal, allReviews []ctxtypes.Review, cfg Config) (*ctxtypes.ProposalStatus, []Violation) {
	var violations []Violation

	for _, r := range allReviews {
		if r.Action == ctxtypes.ReviewReject {
			rejected := ctxtypes.ProposalRejected
			return &rejected, violations
		}
	}

	var acceptCount uint32
	for _, r := range allReviews {
		if r.Action == ctxtypes.ReviewAccept {
			acceptCount++
		}
	}

	var minApprovalsNeeded uint32 = 1
	for _, r := range cfg.Rules {
		switch r.Kind {
		case RuleMinApprovals:
			if len(r.NodeTypes) == 0 || touchesAnyType(p, r.NodeTypes) {
				if r.Min > minApprovalsNeeded {
					minApprovalsNeeded = r.Min
				}
			}
		case RuleRequiredReviewerRole:
			if len(r.NodeTypes) == 0 || touchesAnyType(p, r.NodeTypes) {
				if !hasAcceptingReviewerWithRole(allReviews, r.Role) {
					violations = append(violations, Violation{
						Rule:    string(RuleRequiredReviewerRole),
						Message: fmt.Sprintf("requires reviewer with role '%s'", r.Role),
					})
				}
			}
		}
	}

	if acceptCount >= minApprovalsNeeded && len(violations) == 0 {
		accepted := ctxtypes.ProposalAccepted
		return &accepted, violations
	}
	return nil, violations
}

func touchesAnyType(p ctxtypes.Proposal, types []ctxtypes.NodeType) bool {
	for _, t := range types {
		if p.TouchesNodeType(t) {
			return true
		}
	}
	return false
}

func hasAcceptingReviewerWithRole(reviews []ctxtypes.Review, role string) bool {
	for _, r := range reviews {
		if r.Action == ctxtypes.ReviewAccept && r.ReviewerRole != nil && *r.ReviewerRole == role {
			return true
		}
	}
	return false
}

// EvaluateOnApply checks rules enforced at apply time: the change window
// and any agent apply restriction.
func EvaluateOnApply(actorType string, cfg Config, now time.Time) []Violation {
	var violations []Violation

	for _, r := range cfg.Rules {
		switch r.Kind {
		case RuleChangeWindow:
			day := specWeekday(now.UTC())
			hour := now.UTC().Hour()
			if !containsDay(r.AllowedDays, day) {
				violations = append(violations, Violation{
					Rule:    string(RuleChangeWindow),
					Message: fmt.Sprintf("apply not allowed on day %d (allowed: %v)", day, r.AllowedDays),
				})
			}
			if hour < r.AllowedHourStart || hour >= r.AllowedHourEnd {
				violations = append(violations, Violation{
					Rule:    string(RuleChangeWindow),
					Message: fmt.Sprintf("apply not allowed at hour %d (allowed: %d-%d)", hour, r.AllowedHourStart, r.AllowedHourEnd),
				})
			}
		case RuleAgentRestriction:
			if actorType == "agent" && containsString(r.BlockedActions, "apply") {
				violations = append(violations, Violation{
					Rule:    string(RuleAgentRestriction),
					Message: "agents cannot apply proposals",
				})
			}
		}
	}
	return violations
}

// EvaluateAgentAction checks AgentRestriction rules for a single named
// action (e.g. "review", "apply") independent of any other apply-time
// checks, so callers gating an action other than apply (review,
// currently) can still surface an agent_restriction violation through
// the normal 422 policy path instead of a bare RBAC denial.
func EvaluateAgentAction(actorType, action string, cfg Config) []Violation {
	if actorType != "agent" {
		return nil
	}
	var violations []Violation
	for _, r := range cfg.Rules {
		if r.Kind == RuleAgentRestriction && containsString(r.BlockedActions, action) {
			violations = append(violations, Violation{
				Rule:    string(RuleAgentRestriction),
				Message: fmt.Sprintf("agents cannot %s proposals", action),
			})
		}
	}
	return violations
}

// specWeekday converts t to spec.md §4.2's 0=Mon..6=Sun convention
// (matching the original's now.format("%u") - 1), since time.Weekday's
// native numbering is 0=Sun..6=Sat.
func specWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

func containsDay(days []int, d int) bool {
	for _, w := range days {
		if w == d {
			return true
		}
	}
	return false
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// AgentMaxSensitivity returns the ceiling an agent may read, per the
// configured EgressControl rule, defaulting to Internal when unset.
func AgentMaxSensitivity(cfg Config) sensitivity.Level {
	for _, r := range cfg.Rules {
		if r.Kind == RuleEgressControl {
			return r.MaxSensitivity
		}
	}
	return sensitivity.Internal
}

// checkAgentRestrictedNodeModification blocks agents from creating nodes
// above the configured egress ceiling.
func checkAgentRestrictedNodeModification(p ctxtypes.Proposal, actorType string, cfg Config) []Violation {
	if actorType != "agent" {
		return nil
	}
	maxSens := AgentMaxSensitivity(cfg)
	var violations []Violation
	for _, op := range p.Operations {
		if op.Kind != ctxtypes.OpCreate || op.Node == nil || op.Node.Metadata.Sensitivity == nil {
			continue
		}
		if *op.Node.Metadata.Sensitivity > maxSens {
			violations = append(violations, Violation{
				Rule: "agent_restricted_modification",
				Message: fmt.Sprintf("agents cannot create nodes with sensitivity '%s' (max allowed: '%s')",
					op.Node.Metadata.Sensitivity, maxSens),
			})
		}
	}
	return violations
}
