package account

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"

	"github.com/covenant-labs/covenant/pkg/auth"
	"github.com/covenant-labs/covenant/pkg/deps"
	"github.com/covenant-labs/covenant/pkg/intents"
	"github.com/covenant-labs/covenant/pkg/ledger"
)

// Recorder receives lifecycle notifications for metrics. All methods must be
// cheap and non-blocking.
type Recorder interface {
	IntentCreated(role string)
	IntentExecuted(key string)
	ActionProcessed(key string)
	IntentRemoved(key string, expired bool)
}

// Account is the shared, versioned container a member group acts through.
// It owns the dependency registry, the approval-policy config, the pending
// intents, and dependency-gated managed storage. Execution is single
// threaded: each entry point is one atomic step.
type Account[C any, O intents.Outcome[O]] struct {
	addr       string
	metadata   *Metadata
	deps       *deps.Deps
	intents    *intents.Intents[O]
	config     C
	managed    map[string]any
	extensions *deps.Extensions
	logger     *slog.Logger
	ledger     *ledger.Ledger
	recorder   Recorder
}

// Option configures an account at construction time.
type Option func(*options)

type options struct {
	addr              string
	logger            *slog.Logger
	recorder          Recorder
	metadata          *Metadata
	extraDeps         []deps.Pair
	unverifiedAllowed bool
}

// WithAddr fixes the account address instead of generating one.
func WithAddr(addr string) Option {
	return func(o *options) { o.addr = addr }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithMetadata seeds the human-readable metadata.
func WithMetadata(m *Metadata) Option {
	return func(o *options) { o.metadata = m }
}

// WithDeps registers additional trusted packages beyond the engine itself.
func WithDeps(pairs ...deps.Pair) Option {
	return func(o *options) { o.extraDeps = append(o.extraDeps, pairs...) }
}

// WithUnverifiedDepsAllowed lets the account register packages missing from
// the extensions whitelist.
func WithUnverifiedDepsAllowed() Option {
	return func(o *options) { o.unverifiedAllowed = true }
}

// New creates an account whose dependency registry is seeded with the engine
// package from the trusted-extensions whitelist. It fails if the whitelist
// does not recognize the engine.
func New[C any, O intents.Outcome[O]](extensions *deps.Extensions, config C, opts ...Option) (*Account[C, O], error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.addr == "" {
		o.addr = uuid.NewString()
	}
	if o.logger == nil {
		o.logger = slog.Default().With("component", "account")
	}
	if o.metadata == nil {
		o.metadata = NewMetadata()
	}

	pairs := append([]deps.Pair{{Name: Name, Addr: Addr()}}, o.extraDeps...)
	registry, err := deps.New(extensions, o.unverifiedAllowed, pairs...)
	if err != nil {
		return nil, fmt.Errorf("failed to seed dependency registry: %w", err)
	}

	a := &Account[C, O]{
		addr:       o.addr,
		metadata:   o.metadata,
		deps:       registry,
		intents:    intents.NewIntents[O](),
		config:     config,
		managed:    make(map[string]any),
		extensions: extensions,
		logger:     o.logger.With("account", o.addr),
		ledger:     ledger.New(o.addr),
		recorder:   o.recorder,
	}
	return a, nil
}

// Addr returns the account's address.
func (a *Account[C, O]) Addr() string { return a.addr }

// Metadata returns a copy of the human-readable metadata.
func (a *Account[C, O]) Metadata() *Metadata { return a.metadata.clone() }

// SetMetadata updates one metadata field. Dependency-gated.
func (a *Account[C, O]) SetMetadata(key, value string, vw auth.VersionWitness) error {
	if err := a.assertIsDep(vw); err != nil {
		return err
	}
	a.metadata.Set(key, value)
	return nil
}

// Config returns the approval-policy configuration by value.
func (a *Account[C, O]) Config() C { return a.config }

// SetConfig replaces the approval-policy configuration. Dependency-gated;
// in normal operation only a config action module calls this during intent
// execution.
func (a *Account[C, O]) SetConfig(config C, vw auth.VersionWitness) error {
	if err := a.assertIsDep(vw); err != nil {
		return err
	}
	a.config = config
	a.appendLedger(ledger.EventConfigChanged, "", "", nil)
	return nil
}

// Deps returns the registered dependencies in order.
func (a *Account[C, O]) Deps() []deps.Dep { return a.deps.List() }

// UnverifiedDepsAllowed reports whether non-whitelisted deps may be added.
func (a *Account[C, O]) UnverifiedDepsAllowed() bool { return a.deps.UnverifiedAllowed() }

// AddDep registers a further trusted package. Dependency-gated.
func (a *Account[C, O]) AddDep(name, addr string, version *semver.Version, vw auth.VersionWitness) error {
	if err := a.assertIsDep(vw); err != nil {
		return err
	}
	if err := a.deps.Add(a.extensions, name, addr, version); err != nil {
		return err
	}
	a.appendLedger(ledger.EventDepsChanged, "", "", map[string]any{"added": name})
	return nil
}

// RemoveDep drops a trusted package by name. Dependency-gated; the engine
// itself cannot be removed.
func (a *Account[C, O]) RemoveDep(name string, vw auth.VersionWitness) error {
	if err := a.assertIsDep(vw); err != nil {
		return err
	}
	if err := a.deps.Remove(name); err != nil {
		return err
	}
	a.appendLedger(ledger.EventDepsChanged, "", "", map[string]any{"removed": name})
	return nil
}

// SetUnverifiedDepsAllowed toggles the unverified-deps policy. Dependency-gated.
func (a *Account[C, O]) SetUnverifiedDepsAllowed(allowed bool, vw auth.VersionWitness) error {
	if err := a.assertIsDep(vw); err != nil {
		return err
	}
	a.deps.SetUnverifiedAllowed(allowed)
	return nil
}

// Ledger returns the account's lifecycle ledger.
func (a *Account[C, O]) Ledger() *ledger.Ledger { return a.ledger }

// NewAuth mints a single-use capability for this account on behalf of the
// witness's package. The package must be a whitelisted extension.
func (a *Account[C, O]) NewAuth(witness any) (*auth.Auth, error) {
	return auth.New(a.extensions, a.addr, witness)
}

// NewAuthWithName mints a capability under a named role.
func (a *Account[C, O]) NewAuthWithName(witness any, name string) (*auth.Auth, error) {
	return auth.NewWithName(a.extensions, a.addr, witness, name)
}

// CreateIntent verifies the capability and the caller's dependency
// registration, validates the schedule, and returns a fresh empty intent
// carrying the constructing module's provenance.
func (a *Account[C, O]) CreateIntent(au *auth.Auth, params intents.Params, outcome O, vw auth.VersionWitness, roleWitness any, roleName string) (*intents.Intent[O], error) {
	if err := au.Verify(a.addr); err != nil {
		return nil, err
	}
	if err := au.Consume(); err != nil {
		return nil, err
	}
	if err := a.assertIsDep(vw); err != nil {
		return nil, err
	}
	issuer, err := auth.NewIssuer(a.addr, roleWitness, roleName)
	if err != nil {
		return nil, err
	}
	intent, err := intents.NewIntent(issuer, params, outcome)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("intent created", "key", params.Key, "role", issuer.FullRole())
	a.appendLedger(ledger.EventIntentCreated, params.Key, issuer.FullRole(), nil)
	if a.recorder != nil {
		a.recorder.IntentCreated(issuer.FullRole())
	}
	return intent, nil
}

// AddIntent moves a staged intent into the collection. The intent must have
// been constructed for this account by the module holding roleWitness.
func (a *Account[C, O]) AddIntent(intent *intents.Intent[O], vw auth.VersionWitness, roleWitness any) error {
	if err := a.assertIsDep(vw); err != nil {
		return err
	}
	if err := intent.Issuer().AssertIsAccount(a.addr); err != nil {
		return err
	}
	if err := intent.Issuer().AssertIsConstructor(roleWitness); err != nil {
		return err
	}
	if err := a.intents.Add(intent); err != nil {
		return err
	}
	a.logger.Info("intent staged", "key", intent.Key(), "actions", intent.ActionCount())
	a.appendLedger(ledger.EventIntentStaged, intent.Key(), intent.Issuer().FullRole(), map[string]any{
		"actions": intent.ActionCount(),
	})
	return nil
}

// Intent returns the pending intent stored under key. Policy modules use
// this to mutate the approval outcome in place.
func (a *Account[C, O]) Intent(key string) (*intents.Intent[O], error) {
	return a.intents.Get(key)
}

// IntentKeys returns the pending intent keys in insertion order.
func (a *Account[C, O]) IntentKeys() []string { return a.intents.Keys() }

// LockObject reserves an object id for a pending intent. Only the intent's
// constructing module may lock.
func (a *Account[C, O]) LockObject(intent *intents.Intent[O], objectID string, vw auth.VersionWitness, roleWitness any) error {
	if err := a.assertIsDep(vw); err != nil {
		return err
	}
	if err := intent.Issuer().AssertIsAccount(a.addr); err != nil {
		return err
	}
	if err := intent.Issuer().AssertIsConstructor(roleWitness); err != nil {
		return err
	}
	if err := a.intents.Lock(objectID); err != nil {
		return err
	}
	a.appendLedger(ledger.EventObjectLocked, intent.Key(), "", map[string]any{"object": objectID})
	return nil
}

// UnlockObject releases an object id during expired-intent cleanup. Only the
// intent's constructing module may unlock.
func (a *Account[C, O]) UnlockObject(expired *intents.Expired, objectID string, vw auth.VersionWitness, roleWitness any) error {
	if err := a.assertIsDep(vw); err != nil {
		return err
	}
	if err := expired.Issuer().AssertIsAccount(a.addr); err != nil {
		return err
	}
	if err := expired.Issuer().AssertIsConstructor(roleWitness); err != nil {
		return err
	}
	if err := a.intents.Unlock(objectID); err != nil {
		return err
	}
	a.appendLedger(ledger.EventObjectUnlocked, expired.Key(), "", map[string]any{"object": objectID})
	return nil
}

// AssertObjectNotLocked fails with ErrObjectLocked when objectID is reserved
// by a pending intent. Action modules call this before any side-channel
// mutation of an object they hold.
func (a *Account[C, O]) AssertObjectNotLocked(objectID string) error {
	return a.intents.AssertNotLocked(objectID)
}

// ExecuteIntent pops the earliest scheduled time of the intent under key and
// returns a fresh executable plus a copy of the approval outcome. The engine
// does not gate on approval satisfaction: the caller's policy module checks
// the returned copy. Callable by anyone holding a registered version witness.
func (a *Account[C, O]) ExecuteIntent(key string, now time.Time, vw auth.VersionWitness) (*intents.Executable, O, error) {
	var zero O
	if err := a.assertIsDep(vw); err != nil {
		return nil, zero, err
	}
	exec, outcome, err := a.intents.Execute(key, now)
	if err != nil {
		return nil, zero, err
	}
	a.logger.Info("intent executing", "key", key, "actions", exec.Total())
	a.appendLedger(ledger.EventIntentExecuted, key, exec.Issuer().FullRole(), map[string]any{
		"actions": exec.Total(),
	})
	if a.recorder != nil {
		a.recorder.IntentExecuted(key)
	}
	return exec, outcome, nil
}

// ProcessAction advances the executable's cursor by exactly one and returns
// a read-only view of the action at that position for the calling module to
// interpret. Only the intent's constructing module may advance.
func (a *Account[C, O]) ProcessAction(exec *intents.Executable, vw auth.VersionWitness, roleWitness any) (any, error) {
	if err := a.assertIsDep(vw); err != nil {
		return nil, err
	}
	if err := exec.Issuer().AssertIsAccount(a.addr); err != nil {
		return nil, err
	}
	if err := exec.Issuer().AssertIsConstructor(roleWitness); err != nil {
		return nil, err
	}
	action, err := a.intents.ProcessAction(exec)
	if err != nil {
		return nil, err
	}
	if a.recorder != nil {
		a.recorder.ActionProcessed(exec.Key())
	}
	return action, nil
}

// ConfirmExecution consumes the executable. Fails with ErrActionsRemaining
// unless every staged action was processed.
func (a *Account[C, O]) ConfirmExecution(exec *intents.Executable, vw auth.VersionWitness, roleWitness any) error {
	if err := a.assertIsDep(vw); err != nil {
		return err
	}
	if err := exec.Issuer().AssertIsAccount(a.addr); err != nil {
		return err
	}
	if err := exec.Issuer().AssertIsConstructor(roleWitness); err != nil {
		return err
	}
	if err := a.intents.ConfirmExecution(exec); err != nil {
		return err
	}
	a.logger.Info("intent execution confirmed", "key", exec.Key())
	a.appendLedger(ledger.EventIntentConfirmed, exec.Key(), exec.Issuer().FullRole(), nil)
	return nil
}

// DestroyEmptyIntent removes a fully executed intent (no scheduled times
// left) and returns the Expired token the action modules drain.
func (a *Account[C, O]) DestroyEmptyIntent(key string) (*intents.Expired, error) {
	expired, err := a.intents.DestroyEmpty(key)
	if err != nil {
		return nil, err
	}
	a.logger.Info("intent destroyed", "key", key)
	a.appendLedger(ledger.EventIntentDestroyed, key, expired.Issuer().FullRole(), nil)
	if a.recorder != nil {
		a.recorder.IntentRemoved(key, false)
	}
	return expired, nil
}

// DeleteExpiredIntent removes an intent whose expiration time has passed,
// regardless of approval or execution state. Callable by anyone.
func (a *Account[C, O]) DeleteExpiredIntent(key string, now time.Time) (*intents.Expired, error) {
	expired, err := a.intents.DeleteExpired(key, now)
	if err != nil {
		return nil, err
	}
	a.logger.Info("intent expired", "key", key)
	a.appendLedger(ledger.EventIntentExpired, key, expired.Issuer().FullRole(), nil)
	if a.recorder != nil {
		a.recorder.IntentRemoved(key, true)
	}
	return expired, nil
}

func (a *Account[C, O]) assertIsDep(vw auth.VersionWitness) error {
	return a.deps.AssertIsDep(vw.Addr(), vw.Version())
}

func (a *Account[C, O]) appendLedger(event ledger.EventType, key, role string, data map[string]any) {
	if _, err := a.ledger.Append(event, key, role, data); err != nil {
		a.logger.Error("ledger append failed", "event", string(event), "error", err)
	}
}
