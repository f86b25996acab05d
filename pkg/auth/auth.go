package auth

import (
	"fmt"

	"github.com/covenant-labs/covenant/pkg/deps"
)

// Auth is a single-use capability asserting that the holder's package is a
// whitelisted extension acting on a specific account. It can only be minted
// by New and must be consumed by exactly one privileged call.
type Auth struct {
	accountAddr string
	role        string
	consumed    bool
}

// New mints an Auth for accountAddr on behalf of the witness's package.
// The package must appear in the trusted-extensions registry.
func New(extensions *deps.Extensions, accountAddr string, witness any) (*Auth, error) {
	return NewWithName(extensions, accountAddr, witness, "")
}

// NewWithName mints an Auth under a named role, for modules that manage
// several roles behind one witness type.
func NewWithName(extensions *deps.Extensions, accountAddr string, witness any, name string) (*Auth, error) {
	addr, err := AddrOf(witness)
	if err != nil {
		return nil, err
	}
	if !extensions.ContainsAddr(addr) {
		return nil, fmt.Errorf("%w: %s", deps.ErrNotExtension, addr)
	}
	role, err := RoleOf(witness)
	if err != nil {
		return nil, err
	}
	return &Auth{accountAddr: accountAddr, role: FullRole(role, name)}, nil
}

// Verify fails unless the capability was minted for accountAddr.
func (a *Auth) Verify(accountAddr string) error {
	if a.accountAddr != accountAddr {
		return fmt.Errorf("%w: auth for %s, account %s", ErrWrongAccount, a.accountAddr, accountAddr)
	}
	return nil
}

// VerifyWithRole additionally checks that the capability's role matches the
// Role type parameter and optional name.
func VerifyWithRole[Role any](a *Auth, accountAddr, name string) error {
	if err := a.Verify(accountAddr); err != nil {
		return err
	}
	var role Role
	roleType, err := RoleOf(role)
	if err != nil {
		return err
	}
	if want := FullRole(roleType, name); a.role != want {
		return fmt.Errorf("%w: have %s, want %s", ErrWrongRole, a.role, want)
	}
	return nil
}

// Consume marks the capability spent. A second consume is a caller bug.
func (a *Auth) Consume() error {
	if a.consumed {
		return fmt.Errorf("auth already consumed for account %s", a.accountAddr)
	}
	a.consumed = true
	return nil
}

// Role returns the role type the capability was minted under.
func (a *Auth) Role() string { return a.role }

// AccountAddr returns the account the capability is scoped to.
func (a *Auth) AccountAddr() string { return a.accountAddr }
