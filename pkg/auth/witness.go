// Package auth provides the provenance primitives of the framework: witness
// identity, the Auth capability, and the Issuer record that binds an intent
// to the module that constructed it.
//
// A witness is any value whose nominal type lives in the calling package.
// Go type identity includes the defining package's import path, so no other
// package can mint a value whose derived role matches — that is the whole
// unforgeability guarantee.
package auth

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/Masterminds/semver/v3"
)

var (
	ErrWrongAccount = errors.New("capability was issued for a different account")
	ErrWrongWitness = errors.New("witness does not match the constructing module")
	ErrWrongRole    = errors.New("witness role does not match")
	ErrNotWitness   = errors.New("value cannot act as a witness")
)

// AddrOf returns the package address of a witness: its defining package's
// import path.
func AddrOf(witness any) (string, error) {
	t := reflect.TypeOf(witness)
	if t == nil {
		return "", fmt.Errorf("%w: nil value", ErrNotWitness)
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return "", fmt.Errorf("%w: unnamed type %s", ErrNotWitness, t)
	}
	return t.PkgPath(), nil
}

// RoleOf returns the role type string of a witness: package::Type.
func RoleOf(witness any) (string, error) {
	t := reflect.TypeOf(witness)
	if t == nil {
		return "", fmt.Errorf("%w: nil value", ErrNotWitness)
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" || t.Name() == "" {
		return "", fmt.Errorf("%w: unnamed type %s", ErrNotWitness, t)
	}
	return t.PkgPath() + "::" + t.Name(), nil
}

// FullRole joins a role type with an optional role name. The result is the
// key an approval policy tracks weighted approval under.
func FullRole(roleType, roleName string) string {
	if roleName == "" {
		return roleType
	}
	return roleType + "::" + roleName
}

// VersionWitness proves the caller's package identity at a declared version.
// The version must match what the account's dependency registry recorded.
type VersionWitness struct {
	addr    string
	version *semver.Version
}

// NewVersionWitness derives a version witness from a witness value and the
// caller's package version.
func NewVersionWitness(witness any, version string) (VersionWitness, error) {
	addr, err := AddrOf(witness)
	if err != nil {
		return VersionWitness{}, err
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return VersionWitness{}, fmt.Errorf("invalid version %q: %w", version, err)
	}
	return VersionWitness{addr: addr, version: v}, nil
}

// Addr returns the witnessed package address.
func (vw VersionWitness) Addr() string { return vw.addr }

// Version returns the declared package version.
func (vw VersionWitness) Version() *semver.Version { return vw.version }
