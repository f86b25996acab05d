// Package policy ships the reference approval policies consumed by the
// execution engine: role-weighted threshold voting and a CEL-programmable
// approval predicate. The engine itself never inspects approval state; these
// types implement the Outcome contract and the satisfaction checks callers
// run on the copy ExecuteIntent hands back.
package policy

import (
	"errors"
	"fmt"
)

var (
	ErrNotMember           = errors.New("address is not a member of this account")
	ErrAlreadyApproved     = errors.New("member already approved this intent")
	ErrNotApproved         = errors.New("member has not approved this intent")
	ErrThresholdNotReached = errors.New("approval threshold not reached")
)

// Member is one account member with a voting weight and optional roles.
type Member struct {
	Addr   string   `json:"addr"`
	Weight uint64   `json:"weight"`
	Roles  []string `json:"roles,omitempty"`
}

// Role pairs a role key with its dedicated approval threshold.
type Role struct {
	Name      string `json:"name"`
	Threshold uint64 `json:"threshold"`
}

// Config is the weighted-multisig configuration stored in the account.
type Config struct {
	Members         []Member `json:"members"`
	GlobalThreshold uint64   `json:"global_threshold"`
	Roles           []Role   `json:"roles,omitempty"`
}

// Member returns the member registered under addr.
func (c Config) Member(addr string) (Member, error) {
	for _, m := range c.Members {
		if m.Addr == addr {
			return m, nil
		}
	}
	return Member{}, fmt.Errorf("%w: %s", ErrNotMember, addr)
}

// RoleThreshold returns the threshold for a role key, or 0 if the role has
// no dedicated threshold.
func (c Config) RoleThreshold(role string) uint64 {
	for _, r := range c.Roles {
		if r.Name == role {
			return r.Threshold
		}
	}
	return 0
}

// Approvals is the mutable vote state of one intent: the weighted-multisig
// Outcome type. The engine treats it as opaque and only ever copies it.
type Approvals struct {
	Role        string              `json:"role"`
	Approved    map[string]struct{} `json:"approved"`
	TotalWeight uint64              `json:"total_weight"`
	RoleWeight  uint64              `json:"role_weight"`
}

// NewApprovals creates empty vote state for an intent staged under role.
func NewApprovals(role string) *Approvals {
	return &Approvals{Role: role, Approved: make(map[string]struct{})}
}

// Clone returns an independent copy, satisfying the Outcome contract.
func (a *Approvals) Clone() *Approvals {
	approved := make(map[string]struct{}, len(a.Approved))
	for addr := range a.Approved {
		approved[addr] = struct{}{}
	}
	return &Approvals{
		Role:        a.Role,
		Approved:    approved,
		TotalWeight: a.TotalWeight,
		RoleWeight:  a.RoleWeight,
	}
}

// Approve records a member's approval, weighted by the config.
func (a *Approvals) Approve(cfg Config, addr string) error {
	member, err := cfg.Member(addr)
	if err != nil {
		return err
	}
	if _, ok := a.Approved[addr]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyApproved, addr)
	}
	a.Approved[addr] = struct{}{}
	a.TotalWeight += member.Weight
	if memberHasRole(member, a.Role) {
		a.RoleWeight += member.Weight
	}
	return nil
}

// Disapprove withdraws a member's prior approval.
func (a *Approvals) Disapprove(cfg Config, addr string) error {
	member, err := cfg.Member(addr)
	if err != nil {
		return err
	}
	if _, ok := a.Approved[addr]; !ok {
		return fmt.Errorf("%w: %s", ErrNotApproved, addr)
	}
	delete(a.Approved, addr)
	a.TotalWeight -= member.Weight
	if memberHasRole(member, a.Role) {
		a.RoleWeight -= member.Weight
	}
	return nil
}

// Satisfied reports whether the global threshold, or the role threshold for
// the intent's role, has been reached.
func (a *Approvals) Satisfied(cfg Config) bool {
	if cfg.GlobalThreshold > 0 && a.TotalWeight >= cfg.GlobalThreshold {
		return true
	}
	if t := cfg.RoleThreshold(a.Role); t > 0 && a.RoleWeight >= t {
		return true
	}
	return false
}

// AssertSatisfied fails with ErrThresholdNotReached unless Satisfied.
func (a *Approvals) AssertSatisfied(cfg Config) error {
	if !a.Satisfied(cfg) {
		return fmt.Errorf("%w: %d of %d (role %q: %d of %d)",
			ErrThresholdNotReached, a.TotalWeight, cfg.GlobalThreshold,
			a.Role, a.RoleWeight, cfg.RoleThreshold(a.Role))
	}
	return nil
}

func memberHasRole(m Member, role string) bool {
	for _, r := range m.Roles {
		if r == role {
			return true
		}
	}
	return false
}
