// ABOUTME: Channel Authorizer: pure decision of whether a verified subject may subscribe to a channel
// ABOUTME: Ownership-scoped channels delegate to a single policy hook, mirroring the donor's RequireAdmin shape

package auth

import "github.com/2389/courier/internal/channel"

// OwnershipChecker decides whether userID owns the resource named by a
// strategy/forge.job/backtest-scoped channel's <id>. The default
// implementation allows any authenticated subject, matching the spec's
// note that ownership enforcement for these scopes "may be tightened in a
// later revision." A deployment that needs real ownership checks supplies
// its own implementation at wiring time; the authorizer itself never
// changes.
type OwnershipChecker interface {
	Owns(userID string, scope channel.Scope, resourceID string) bool
}

// AllowAllOwnership is the default OwnershipChecker: every authenticated
// subject owns every scoped resource.
type AllowAllOwnership struct{}

// Owns always returns true.
func (AllowAllOwnership) Owns(userID string, scope channel.Scope, resourceID string) bool {
	return true
}

// Authorizer decides subscribe access by channel-name grammar. It has no
// side effects beyond the single injected ownership hook; constructing an
// Authorizer never fails.
type Authorizer struct {
	ownership OwnershipChecker
}

// NewAuthorizer constructs an Authorizer. A nil checker defaults to
// AllowAllOwnership.
func NewAuthorizer(checker OwnershipChecker) *Authorizer {
	if checker == nil {
		checker = AllowAllOwnership{}
	}
	return &Authorizer{ownership: checker}
}

// Allow reports whether userID may subscribe to name.
func (a *Authorizer) Allow(userID string, name channel.Name) bool {
	switch name.Scope() {
	case channel.ScopeGlobal:
		return true
	case channel.ScopeUser:
		return name.ScopeID() == userID
	case channel.ScopeStrategy, channel.ScopeForgeJob, channel.ScopeBacktest:
		return a.ownership.Owns(userID, name.Scope(), name.ScopeID())
	default:
		return false
	}
}
