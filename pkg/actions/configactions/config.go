// Package configactions is the action module for account configuration
// changes: metadata edits, dependency-registry updates, and the
// unverified-deps toggle. Like every action module it owns a witness type,
// stages typed payloads behind an intent, interprets them during execution,
// and drains them from the Expired token afterwards.
package configactions

import (
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/covenant-labs/covenant/pkg/account"
	"github.com/covenant-labs/covenant/pkg/auth"
	"github.com/covenant-labs/covenant/pkg/intents"
)

// Witness identifies this module as the constructor of its intents.
type Witness struct{}

// Name is the module's registered extension name.
const Name = "ConfigActions"

// Version is the module's current package version.
const Version = "1.0.0"

// Addr returns the module's package address.
func Addr() string {
	addr, err := auth.AddrOf(Witness{})
	if err != nil {
		panic(err)
	}
	return addr
}

func versionWitness() auth.VersionWitness {
	vw, err := auth.NewVersionWitness(Witness{}, Version)
	if err != nil {
		panic(err)
	}
	return vw
}

// SetMetadataAction updates one metadata field.
type SetMetadataAction struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// AddDepAction registers a trusted package.
type AddDepAction struct {
	Name    string `json:"name"`
	Addr    string `json:"addr"`
	Version string `json:"version"`
}

// RemoveDepAction drops a trusted package.
type RemoveDepAction struct {
	Name string `json:"name"`
}

// ToggleUnverifiedAction flips the unverified-deps policy.
type ToggleUnverifiedAction struct {
	Allowed bool `json:"allowed"`
}

// Request stages a config-change intent carrying the given actions and moves
// it into the account's collection.
func Request[C any, O intents.Outcome[O]](acct *account.Account[C, O], params intents.Params, outcome O, actions ...any) (*intents.Intent[O], error) {
	au, err := acct.NewAuth(Witness{})
	if err != nil {
		return nil, err
	}
	intent, err := acct.CreateIntent(au, params, outcome, versionWitness(), Witness{}, "")
	if err != nil {
		return nil, err
	}
	for _, action := range actions {
		switch action.(type) {
		case SetMetadataAction, AddDepAction, RemoveDepAction, ToggleUnverifiedAction:
		default:
			return nil, fmt.Errorf("unsupported config action %T", action)
		}
		if err := intent.AddAction(Witness{}, action); err != nil {
			return nil, err
		}
	}
	if err := acct.AddIntent(intent, versionWitness(), Witness{}); err != nil {
		return nil, err
	}
	return intent, nil
}

// Execute runs one scheduled execution of the intent under key, applying
// every staged config action in order and confirming the executable. The
// caller has already checked the approval outcome on the returned copy.
func Execute[C any, O intents.Outcome[O]](acct *account.Account[C, O], key string, now time.Time) (O, error) {
	var zero O
	exec, outcome, err := acct.ExecuteIntent(key, now, versionWitness())
	if err != nil {
		return zero, err
	}
	for exec.Cursor() < exec.Total() {
		action, err := acct.ProcessAction(exec, versionWitness(), Witness{})
		if err != nil {
			return zero, err
		}
		if err := apply(acct, action); err != nil {
			return zero, err
		}
	}
	if err := acct.ConfirmExecution(exec, versionWitness(), Witness{}); err != nil {
		return zero, err
	}
	return outcome, nil
}

func apply[C any, O intents.Outcome[O]](acct *account.Account[C, O], action any) error {
	switch a := action.(type) {
	case SetMetadataAction:
		return acct.SetMetadata(a.Key, a.Value, versionWitness())
	case AddDepAction:
		version, err := semver.NewVersion(a.Version)
		if err != nil {
			return fmt.Errorf("invalid dep version %q: %w", a.Version, err)
		}
		return acct.AddDep(a.Name, a.Addr, version, versionWitness())
	case RemoveDepAction:
		return acct.RemoveDep(a.Name, versionWitness())
	case ToggleUnverifiedAction:
		return acct.SetUnverifiedDepsAllowed(a.Allowed, versionWitness())
	default:
		return fmt.Errorf("unsupported config action %T", action)
	}
}

// Cleanup drains this module's actions from an Expired token, in order. Each
// removal is typed, so a payload this module never stages fails the drain
// instead of being consumed.
func Cleanup(expired *intents.Expired) error {
	if err := expired.Issuer().AssertIsConstructor(Witness{}); err != nil {
		return err
	}
	for expired.Remaining() > 0 {
		switch {
		case removeAs[SetMetadataAction](expired):
		case removeAs[AddDepAction](expired):
		case removeAs[RemoveDepAction](expired):
		case removeAs[ToggleUnverifiedAction](expired):
		default:
			return fmt.Errorf("unsupported config action in expired intent %q", expired.Key())
		}
	}
	return nil
}

func removeAs[A any](expired *intents.Expired) bool {
	_, err := intents.RemoveAction[A](expired)
	return err == nil
}
