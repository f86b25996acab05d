package account_test

import (
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenant-labs/covenant/pkg/account"
	"github.com/covenant-labs/covenant/pkg/auth"
	"github.com/covenant-labs/covenant/pkg/deps"
	"github.com/covenant-labs/covenant/pkg/intents"
	"github.com/covenant-labs/covenant/pkg/ledger"
)

// simpleOutcome stands in for an approval policy's state.
type simpleOutcome struct {
	Approved bool
}

func (o simpleOutcome) Clone() simpleOutcome { return o }

// payWitness and sweepWitness model two action modules. They share this test
// package's addr but have distinct role types.
type payWitness struct{}

type sweepWitness struct{}

type payAction struct {
	Amount uint64
}

const testModName = "TestMod"

var (
	day0 = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	day1 = day0.AddDate(0, 0, 1)
	day2 = day0.AddDate(0, 0, 2)
)

func testModAddr(t *testing.T) string {
	t.Helper()
	addr, err := auth.AddrOf(payWitness{})
	require.NoError(t, err)
	return addr
}

func testModVW(t *testing.T) auth.VersionWitness {
	t.Helper()
	vw, err := auth.NewVersionWitness(payWitness{}, "1.0.0")
	require.NoError(t, err)
	return vw
}

func testExtensions(t *testing.T) *deps.Extensions {
	t.Helper()
	extensions := deps.NewExtensions()
	require.NoError(t, extensions.Add(account.Name, account.Addr(), semver.MustParse(account.Version)))
	require.NoError(t, extensions.Add(testModName, testModAddr(t), semver.MustParse("1.0.0")))
	return extensions
}

func testAccount(t *testing.T, opts ...account.Option) *account.Account[string, simpleOutcome] {
	t.Helper()
	opts = append([]account.Option{
		account.WithDeps(deps.Pair{Name: testModName, Addr: testModAddr(t)}),
	}, opts...)
	acct, err := account.New[string, simpleOutcome](testExtensions(t), "policy-config", opts...)
	require.NoError(t, err)
	return acct
}

func stagePayIntent(t *testing.T, acct *account.Account[string, simpleOutcome], key string, times []time.Time, expiration time.Time, actions int) {
	t.Helper()
	au, err := acct.NewAuth(payWitness{})
	require.NoError(t, err)
	intent, err := acct.CreateIntent(au, intents.Params{
		Key:            key,
		Description:    "pay something",
		ExecutionTimes: times,
		ExpirationTime: expiration,
	}, simpleOutcome{}, testModVW(t), payWitness{}, "")
	require.NoError(t, err)
	for i := 0; i < actions; i++ {
		require.NoError(t, intent.AddAction(payWitness{}, payAction{Amount: uint64(i + 1)}))
	}
	require.NoError(t, acct.AddIntent(intent, testModVW(t), payWitness{}))
}

func TestNewRequiresWhitelistedEngine(t *testing.T) {
	_, err := account.New[string, simpleOutcome](deps.NewExtensions(), "cfg")
	assert.Error(t, err)
}

func TestNewSeedsRegistryAndAddr(t *testing.T) {
	acct := testAccount(t)

	assert.NotEmpty(t, acct.Addr())
	registered := acct.Deps()
	require.Len(t, registered, 2)
	assert.Equal(t, account.Name, registered[0].Name)
	assert.Equal(t, testModName, registered[1].Name)

	fixed := testAccount(t, account.WithAddr("acct-fixed"))
	assert.Equal(t, "acct-fixed", fixed.Addr())
}

func TestDependencyGatedMutations(t *testing.T) {
	acct := testAccount(t)

	// A version witness at an unregistered version is rejected everywhere.
	stale, err := auth.NewVersionWitness(payWitness{}, "9.9.9")
	require.NoError(t, err)
	assert.ErrorIs(t, acct.SetMetadata("name", "Treasury", stale), deps.ErrNotDependency)

	require.NoError(t, acct.SetMetadata("name", "Treasury", testModVW(t)))
	got, ok := acct.Metadata().Get("name")
	require.True(t, ok)
	assert.Equal(t, "Treasury", got)

	require.NoError(t, acct.SetConfig("new-config", account.VersionWitness()))
	assert.Equal(t, "new-config", acct.Config())
}

func TestAddAndRemoveDeps(t *testing.T) {
	extensions := testExtensions(t)
	require.NoError(t, extensions.Add("Sidecar", "pkg/sidecar", semver.MustParse("0.2.0")))
	acct, err := account.New[string, simpleOutcome](extensions, "cfg",
		account.WithDeps(deps.Pair{Name: testModName, Addr: testModAddr(t)}))
	require.NoError(t, err)

	vw := account.VersionWitness()

	err = acct.AddDep("Ghost", "pkg/ghost", semver.MustParse("1.0.0"), vw)
	assert.ErrorIs(t, err, deps.ErrNotExtension)

	require.NoError(t, acct.AddDep("Sidecar", "pkg/sidecar", semver.MustParse("0.2.0"), vw))
	require.NoError(t, acct.RemoveDep("Sidecar", vw))
	assert.ErrorIs(t, acct.RemoveDep(account.Name, vw), deps.ErrNotCoreDependency)

	assert.False(t, acct.UnverifiedDepsAllowed())
	require.NoError(t, acct.SetUnverifiedDepsAllowed(true, vw))
	require.NoError(t, acct.AddDep("Ghost", "pkg/ghost", semver.MustParse("1.0.0"), vw))
}

func TestCreateIntentConsumesAuth(t *testing.T) {
	acct := testAccount(t)

	au, err := acct.NewAuth(payWitness{})
	require.NoError(t, err)
	params := intents.Params{
		Key:            "pay-1",
		ExecutionTimes: []time.Time{day1},
		ExpirationTime: day2,
	}
	_, err = acct.CreateIntent(au, params, simpleOutcome{}, testModVW(t), payWitness{}, "")
	require.NoError(t, err)

	// The capability is single use.
	params.Key = "pay-2"
	_, err = acct.CreateIntent(au, params, simpleOutcome{}, testModVW(t), payWitness{}, "")
	assert.Error(t, err)
}

func TestAuthScopedToAccount(t *testing.T) {
	acct1 := testAccount(t, account.WithAddr("acct-1"))
	acct2 := testAccount(t, account.WithAddr("acct-2"))

	au, err := acct1.NewAuth(payWitness{})
	require.NoError(t, err)
	_, err = acct2.CreateIntent(au, intents.Params{
		Key:            "cross",
		ExecutionTimes: []time.Time{day1},
		ExpirationTime: day2,
	}, simpleOutcome{}, testModVW(t), payWitness{}, "")
	assert.ErrorIs(t, err, auth.ErrWrongAccount)
}

func TestAddIntentChecksProvenance(t *testing.T) {
	acct1 := testAccount(t, account.WithAddr("acct-1"))
	acct2 := testAccount(t, account.WithAddr("acct-2"))

	au, err := acct1.NewAuth(payWitness{})
	require.NoError(t, err)
	intent, err := acct1.CreateIntent(au, intents.Params{
		Key:            "pay-1",
		ExecutionTimes: []time.Time{day1},
		ExpirationTime: day2,
	}, simpleOutcome{}, testModVW(t), payWitness{}, "")
	require.NoError(t, err)

	// Wrong account and wrong constructing module are both rejected.
	assert.ErrorIs(t, acct2.AddIntent(intent, testModVW(t), payWitness{}), auth.ErrWrongAccount)
	assert.ErrorIs(t, acct1.AddIntent(intent, testModVW(t), sweepWitness{}), auth.ErrWrongWitness)

	require.NoError(t, acct1.AddIntent(intent, testModVW(t), payWitness{}))
	assert.Equal(t, []string{"pay-1"}, acct1.IntentKeys())
}

func TestFullLifecycle(t *testing.T) {
	acct := testAccount(t, account.WithAddr("acct-1"))
	stagePayIntent(t, acct, "pay-1", []time.Time{day1}, day2, 3)
	vw := testModVW(t)

	_, _, err := acct.ExecuteIntent("pay-1", day0, vw)
	assert.ErrorIs(t, err, intents.ErrCantBeExecutedYet)

	exec, outcome, err := acct.ExecuteIntent("pay-1", day1, vw)
	require.NoError(t, err)
	assert.False(t, outcome.Approved)
	assert.Equal(t, 3, exec.Total())

	// Only the constructing module may advance the cursor.
	_, err = acct.ProcessAction(exec, vw, sweepWitness{})
	assert.ErrorIs(t, err, auth.ErrWrongWitness)

	var total uint64
	for i := 0; i < 3; i++ {
		action, err := acct.ProcessAction(exec, vw, payWitness{})
		require.NoError(t, err)
		total += action.(payAction).Amount
	}
	assert.Equal(t, uint64(6), total)

	require.NoError(t, acct.ConfirmExecution(exec, vw, payWitness{}))

	expired, err := acct.DestroyEmptyIntent("pay-1")
	require.NoError(t, err)
	assert.Equal(t, 3, expired.Remaining())
	for expired.Remaining() > 0 {
		_, err := intents.RemoveAction[payAction](expired)
		require.NoError(t, err)
	}
	require.NoError(t, expired.DestroyEmpty())
	assert.Empty(t, acct.IntentKeys())

	// The ledger recorded the whole lifecycle and its hash chain holds.
	ok, reason := acct.Ledger().Verify()
	assert.True(t, ok, reason)
	events := make(map[ledger.EventType]bool)
	for _, entry := range acct.Ledger().Entries() {
		events[entry.Event] = true
	}
	for _, want := range []ledger.EventType{
		ledger.EventIntentCreated,
		ledger.EventIntentStaged,
		ledger.EventIntentExecuted,
		ledger.EventIntentConfirmed,
		ledger.EventIntentDestroyed,
	} {
		assert.True(t, events[want], string(want))
	}
}

func TestConfirmExecutionRequiresAllActions(t *testing.T) {
	acct := testAccount(t)
	stagePayIntent(t, acct, "pay-1", []time.Time{day1}, day2, 2)
	vw := testModVW(t)

	exec, _, err := acct.ExecuteIntent("pay-1", day1, vw)
	require.NoError(t, err)
	_, err = acct.ProcessAction(exec, vw, payWitness{})
	require.NoError(t, err)

	assert.ErrorIs(t, acct.ConfirmExecution(exec, vw, payWitness{}), intents.ErrActionsRemaining)
}

func TestDeleteExpiredIntent(t *testing.T) {
	acct := testAccount(t)
	stagePayIntent(t, acct, "pay-1", []time.Time{day1}, day2, 1)

	_, err := acct.DeleteExpiredIntent("pay-1", day1)
	assert.ErrorIs(t, err, intents.ErrHasntExpired)

	expired, err := acct.DeleteExpiredIntent("pay-1", day2)
	require.NoError(t, err)
	assert.Equal(t, 1, expired.Remaining())
	assert.Empty(t, acct.IntentKeys())
}

func TestObjectLockRoundTrip(t *testing.T) {
	acct := testAccount(t)
	vw := testModVW(t)

	require.NoError(t, acct.ManageObject("vault-1", &payAction{Amount: 10}, vw))

	stagePayIntent(t, acct, "pay-1", []time.Time{day1}, day2, 1)
	intent, err := acct.Intent("pay-1")
	require.NoError(t, err)

	// Only the constructing module may lock.
	assert.ErrorIs(t, acct.LockObject(intent, "vault-1", vw, sweepWitness{}), auth.ErrWrongWitness)
	require.NoError(t, acct.LockObject(intent, "vault-1", vw, payWitness{}))
	assert.ErrorIs(t, acct.LockObject(intent, "vault-1", vw, payWitness{}), intents.ErrObjectAlreadyLocked)

	// Locked objects cannot be removed or mutated.
	_, err = acct.RemoveObject("vault-1", vw)
	assert.ErrorIs(t, err, intents.ErrObjectLocked)
	assert.ErrorIs(t, acct.AssertObjectNotLocked("vault-1"), intents.ErrObjectLocked)

	expired, err := acct.DeleteExpiredIntent("pay-1", day2)
	require.NoError(t, err)
	require.NoError(t, acct.UnlockObject(expired, "vault-1", vw, payWitness{}))

	_, err = acct.RemoveObject("vault-1", vw)
	assert.NoError(t, err)
}

func TestManagedStorage(t *testing.T) {
	acct := testAccount(t)
	vw := testModVW(t)

	require.NoError(t, acct.ManageStruct("treasury", payAction{Amount: 42}, vw))
	assert.ErrorIs(t, acct.ManageStruct("treasury", payAction{}, vw), account.ErrManagedKeyExists)
	assert.True(t, acct.HasManaged("treasury"))

	value, err := account.BorrowStructAs[payAction](acct, "treasury", vw)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), value.Amount)

	// A type mismatch must not destroy the stored value.
	_, err = account.RemoveStructAs[string](acct, "treasury", vw)
	assert.ErrorIs(t, err, account.ErrManagedWrongType)
	assert.True(t, acct.HasManaged("treasury"))

	removed, err := account.RemoveStructAs[payAction](acct, "treasury", vw)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), removed.Amount)
	assert.False(t, acct.HasManaged("treasury"))

	_, err = acct.BorrowStruct("treasury", vw)
	assert.ErrorIs(t, err, account.ErrManagedKeyNotFound)
}

type countingRecorder struct {
	created, executed, processed, removed int
	expired                               bool
}

func (r *countingRecorder) IntentCreated(string)  { r.created++ }
func (r *countingRecorder) IntentExecuted(string) { r.executed++ }
func (r *countingRecorder) ActionProcessed(string) {
	r.processed++
}
func (r *countingRecorder) IntentRemoved(_ string, expired bool) {
	r.removed++
	r.expired = expired
}

func TestRecorderNotifications(t *testing.T) {
	recorder := &countingRecorder{}
	acct := testAccount(t, account.WithRecorder(recorder))
	vw := testModVW(t)

	stagePayIntent(t, acct, "pay-1", []time.Time{day1}, day2, 2)
	exec, _, err := acct.ExecuteIntent("pay-1", day1, vw)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = acct.ProcessAction(exec, vw, payWitness{})
		require.NoError(t, err)
	}
	require.NoError(t, acct.ConfirmExecution(exec, vw, payWitness{}))
	_, err = acct.DestroyEmptyIntent("pay-1")
	require.NoError(t, err)

	assert.Equal(t, 1, recorder.created)
	assert.Equal(t, 1, recorder.executed)
	assert.Equal(t, 2, recorder.processed)
	assert.Equal(t, 1, recorder.removed)
	assert.False(t, recorder.expired)
}
