// Package account implements the shared multisig account: the sole
// gatekeeper for its dependency registry, approval-policy config, managed
// storage, and the intent lifecycle. Every mutation goes through an
// authorization-checked entry point; nothing hands out raw mutable state.
package account

import "github.com/covenant-labs/covenant/pkg/auth"

// Witness is the engine's own witness type. It identifies this package in
// the trusted-extensions registry and sits at index 0 of every account's
// dependency registry.
type Witness struct{}

// Name is the engine's registered extension name.
const Name = "CovenantProtocol"

// Version is the engine's current package version.
const Version = "1.0.0"

// Addr returns the engine's package address.
func Addr() string {
	addr, err := auth.AddrOf(Witness{})
	if err != nil {
		// The engine's own witness is always a named type.
		panic(err)
	}
	return addr
}

// VersionWitness returns the engine's version witness.
func VersionWitness() auth.VersionWitness {
	vw, err := auth.NewVersionWitness(Witness{}, Version)
	if err != nil {
		panic(err)
	}
	return vw
}
