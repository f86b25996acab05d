package auth

import "fmt"

// Issuer is the immutable provenance record fixed on an intent at creation.
// Only the module holding the original witness type can later mutate or
// destroy what the intent gates.
type Issuer struct {
	accountAddr string
	roleType    string
	roleName    string
}

// NewIssuer records the constructing module's identity for accountAddr.
func NewIssuer(accountAddr string, witness any, roleName string) (Issuer, error) {
	roleType, err := RoleOf(witness)
	if err != nil {
		return Issuer{}, err
	}
	return Issuer{accountAddr: accountAddr, roleType: roleType, roleName: roleName}, nil
}

// AccountAddr returns the account the issuer is scoped to.
func (i Issuer) AccountAddr() string { return i.accountAddr }

// RoleType returns the constructing module's role type.
func (i Issuer) RoleType() string { return i.roleType }

// RoleName returns the optional role name.
func (i Issuer) RoleName() string { return i.roleName }

// FullRole returns the approval-policy role key, package::Type[::name].
func (i Issuer) FullRole() string {
	return FullRole(i.roleType, i.roleName)
}

// AssertIsAccount fails unless the issuer was recorded for accountAddr.
func (i Issuer) AssertIsAccount(accountAddr string) error {
	if i.accountAddr != accountAddr {
		return fmt.Errorf("%w: issuer for %s, account %s", ErrWrongAccount, i.accountAddr, accountAddr)
	}
	return nil
}

// AssertIsConstructor fails unless witness has the exact type recorded at
// construction time.
func (i Issuer) AssertIsConstructor(witness any) error {
	roleType, err := RoleOf(witness)
	if err != nil {
		return err
	}
	if roleType != i.roleType {
		return fmt.Errorf("%w: have %s, want %s", ErrWrongWitness, roleType, i.roleType)
	}
	return nil
}
