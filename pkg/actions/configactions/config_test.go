package configactions_test

import (
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenant-labs/covenant/pkg/account"
	"github.com/covenant-labs/covenant/pkg/actions/configactions"
	"github.com/covenant-labs/covenant/pkg/auth"
	"github.com/covenant-labs/covenant/pkg/deps"
	"github.com/covenant-labs/covenant/pkg/intents"
)

type approveAll struct{}

func (o approveAll) Clone() approveAll { return o }

var (
	day0 = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	day1 = day0.AddDate(0, 0, 1)
	day7 = day0.AddDate(0, 0, 7)
)

func configAccount(t *testing.T) *account.Account[struct{}, approveAll] {
	t.Helper()
	extensions := deps.NewExtensions()
	require.NoError(t, extensions.Add(account.Name, account.Addr(), semver.MustParse(account.Version)))
	require.NoError(t, extensions.Add(configactions.Name, configactions.Addr(), semver.MustParse(configactions.Version)))
	require.NoError(t, extensions.Add("Sidecar", "pkg/sidecar", semver.MustParse("0.3.0")))
	acct, err := account.New[struct{}, approveAll](extensions, struct{}{},
		account.WithDeps(deps.Pair{Name: configactions.Name, Addr: configactions.Addr()}))
	require.NoError(t, err)
	return acct
}

func params(key string) intents.Params {
	return intents.Params{
		Key:            key,
		ExecutionTimes: []time.Time{day1},
		ExpirationTime: day7,
	}
}

func TestRequestRejectsForeignActions(t *testing.T) {
	acct := configAccount(t)

	_, err := configactions.Request(acct, params("cfg-1"), approveAll{}, "not an action")
	assert.Error(t, err)
}

func TestExecuteAppliesActionsInOrder(t *testing.T) {
	acct := configAccount(t)

	_, err := configactions.Request(acct, params("cfg-1"), approveAll{},
		configactions.SetMetadataAction{Key: "name", Value: "Treasury"},
		configactions.AddDepAction{Name: "Sidecar", Addr: "pkg/sidecar", Version: "0.3.0"},
		configactions.ToggleUnverifiedAction{Allowed: true},
	)
	require.NoError(t, err)

	_, err = configactions.Execute(acct, "cfg-1", day0)
	assert.ErrorIs(t, err, intents.ErrCantBeExecutedYet)

	_, err = configactions.Execute(acct, "cfg-1", day1)
	require.NoError(t, err)

	name, ok := acct.Metadata().Get("name")
	require.True(t, ok)
	assert.Equal(t, "Treasury", name)

	registered := acct.Deps()
	require.Len(t, registered, 3)
	assert.Equal(t, "Sidecar", registered[2].Name)
	assert.True(t, acct.UnverifiedDepsAllowed())

	expired, err := acct.DestroyEmptyIntent("cfg-1")
	require.NoError(t, err)
	require.NoError(t, configactions.Cleanup(expired))
	require.NoError(t, expired.DestroyEmpty())
}

func TestExecuteRemoveDep(t *testing.T) {
	acct := configAccount(t)

	_, err := configactions.Request(acct, params("add"), approveAll{},
		configactions.AddDepAction{Name: "Sidecar", Addr: "pkg/sidecar", Version: "0.3.0"})
	require.NoError(t, err)
	_, err = configactions.Execute(acct, "add", day1)
	require.NoError(t, err)

	_, err = configactions.Request(acct, params("remove"), approveAll{},
		configactions.RemoveDepAction{Name: "Sidecar"})
	require.NoError(t, err)
	_, err = configactions.Execute(acct, "remove", day1)
	require.NoError(t, err)

	require.Len(t, acct.Deps(), 2)
}

func TestExecuteFailsOnBadDepVersion(t *testing.T) {
	acct := configAccount(t)

	_, err := configactions.Request(acct, params("cfg-1"), approveAll{},
		configactions.AddDepAction{Name: "Sidecar", Addr: "pkg/sidecar", Version: "not-semver"})
	require.NoError(t, err)

	_, err = configactions.Execute(acct, "cfg-1", day1)
	assert.Error(t, err)
}

func TestCleanupDrainsExpired(t *testing.T) {
	acct := configAccount(t)

	_, err := configactions.Request(acct, params("cfg-1"), approveAll{},
		configactions.SetMetadataAction{Key: "name", Value: "never applied"})
	require.NoError(t, err)

	expired, err := acct.DeleteExpiredIntent("cfg-1", day7)
	require.NoError(t, err)
	require.NoError(t, configactions.Cleanup(expired))
	require.NoError(t, expired.DestroyEmpty())

	_, ok := acct.Metadata().Get("name")
	assert.False(t, ok)
}

func TestCleanupDrainsMixedActionTypes(t *testing.T) {
	acct := configAccount(t)

	_, err := configactions.Request(acct, params("cfg-1"), approveAll{},
		configactions.SetMetadataAction{Key: "name", Value: "never applied"},
		configactions.AddDepAction{Name: "Sidecar", Addr: "pkg/sidecar", Version: "0.3.0"},
		configactions.RemoveDepAction{Name: "Sidecar"},
		configactions.ToggleUnverifiedAction{Allowed: true},
	)
	require.NoError(t, err)

	expired, err := acct.DeleteExpiredIntent("cfg-1", day7)
	require.NoError(t, err)
	require.NoError(t, configactions.Cleanup(expired))
	require.NoError(t, expired.DestroyEmpty())
}

func TestCleanupRefusesForeignPayload(t *testing.T) {
	issuer, err := auth.NewIssuer("acct-1", configactions.Witness{}, "")
	require.NoError(t, err)
	intent, err := intents.NewIntent(issuer, params("cfg-1"), approveAll{})
	require.NoError(t, err)
	require.NoError(t, intent.AddAction(configactions.Witness{}, configactions.SetMetadataAction{Key: "k", Value: "v"}))
	require.NoError(t, intent.AddAction(configactions.Witness{}, "smuggled"))

	collection := intents.NewIntents[approveAll]()
	require.NoError(t, collection.Add(intent))
	expired, err := collection.DeleteExpired("cfg-1", day7)
	require.NoError(t, err)

	// The drain stops at the payload this module never stages, leaving it
	// in the token instead of consuming it.
	assert.Error(t, configactions.Cleanup(expired))
	assert.Equal(t, 1, expired.Remaining())
	assert.ErrorIs(t, expired.DestroyEmpty(), intents.ErrActionsNotEmpty)
}
