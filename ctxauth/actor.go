// Package ctxauth resolves the ActorContext (identity, actor type, and
// RBAC roles) that every mutating request carries, either from a verified
// HS256 JWT or, in dev mode, a fixed admin default. Token verification
// adapts security.JWTService (lestrrat-go/jwx/v2) to a decode-only use:
// this service never issues tokens itself, since minting is external to
// the store per SPEC_FULL.md §6.1.
package ctxauth

// ActorType is the closed set of request originators.
type ActorType string

const (
	ActorHuman  ActorType = "human"
	ActorAgent  ActorType = "agent"
	ActorSystem ActorType = "system"
)

// Role is the RBAC role hierarchy. Higher roles implicitly include lower
// ones: Admin > Applier > Reviewer > Contributor > Reader.
type Role string

const (
	RoleReader      Role = "reader"
	RoleContributor Role = "contributor"
	RoleReviewer    Role = "reviewer"
	RoleApplier     Role = "applier"
	RoleAdmin       Role = "admin"
)

var roleRank = map[Role]int{
	RoleReader:      0,
	RoleContributor: 1,
	RoleReviewer:    2,
	RoleApplier:     3,
	RoleAdmin:       4,
}

// Includes reports whether r outranks (or equals) other in the hierarchy.
func (r Role) Includes(other Role) bool {
	return roleRank[r] >= roleRank[other]
}

// ActorContext is the identity and role set resolved for one request.
type ActorContext struct {
	ActorID   string
	ActorType ActorType
	Roles     []Role
}

// HasRole reports whether the actor holds the given role or a higher one.
func (a ActorContext) HasRole(role Role) bool {
	for _, r := range a.Roles {
		if r.Includes(role) {
			return true
		}
	}
	return false
}

// IsAgent reports whether the actor is an automated agent, the distinction
// the policy engine and mediator use to apply agent-only restrictions.
func (a ActorContext) IsAgent() bool {
	return a.ActorType == ActorAgent
}

// DevDefault is the fixed admin actor used when AUTH_DISABLED is set,
// matching the development bypass default in SPEC_FULL.md §6.1.
func DevDefault() ActorContext {
	return ActorContext{ActorID: "dev-user", ActorType: ActorHuman, Roles: []Role{RoleAdmin}}
}
