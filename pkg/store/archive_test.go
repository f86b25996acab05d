package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenant-labs/covenant/pkg/store"
)

var recordedAt = time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

func TestRecordChainsReceipts(t *testing.T) {
	ctx := context.Background()
	archive := store.NewMemoryArchive()

	first, err := store.Record(ctx, archive, "acct-1", "pay-1", "pkg::Witness", store.StatusExecuted, 2, recordedAt)
	require.NoError(t, err)
	assert.Equal(t, "genesis", first.PrevHash)
	assert.NotEmpty(t, first.ContentHash)

	second, err := store.Record(ctx, archive, "acct-1", "pay-2", "pkg::Witness", store.StatusExpired, 1, recordedAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, first.ContentHash, second.PrevHash)

	// A different account chains from its own genesis.
	other, err := store.Record(ctx, archive, "acct-2", "pay-1", "", store.StatusExecuted, 0, recordedAt)
	require.NoError(t, err)
	assert.Equal(t, "genesis", other.PrevHash)

	require.NoError(t, store.Verify(ctx, archive, "acct-1"))
	require.NoError(t, store.Verify(ctx, archive, "acct-2"))
}

func TestVerifyDetectsBrokenChain(t *testing.T) {
	ctx := context.Background()
	archive := store.NewMemoryArchive()

	_, err := store.Record(ctx, archive, "acct-1", "pay-1", "", store.StatusExecuted, 0, recordedAt)
	require.NoError(t, err)

	// A receipt forged onto the wrong prev hash breaks the chain.
	forged, err := store.NewReceipt("acct-1", "pay-2", "", store.StatusExecuted, 0, recordedAt, "sha256:bogus")
	require.NoError(t, err)
	require.NoError(t, archive.Store(ctx, forged))

	assert.Error(t, store.Verify(ctx, archive, "acct-1"))
}

func TestMemoryArchiveLookups(t *testing.T) {
	ctx := context.Background()
	archive := store.NewMemoryArchive()

	r, err := store.Record(ctx, archive, "acct-1", "pay-1", "", store.StatusExecuted, 0, recordedAt)
	require.NoError(t, err)

	got, err := archive.Get(ctx, r.ReceiptID)
	require.NoError(t, err)
	assert.Equal(t, r.ContentHash, got.ContentHash)

	_, err = archive.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrReceiptNotFound)

	_, err = store.Record(ctx, archive, "acct-1", "pay-2", "", store.StatusExecuted, 0, recordedAt)
	require.NoError(t, err)

	limited, err := archive.ListByAccount(ctx, "acct-1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
	assert.Equal(t, "pay-1", limited[0].IntentKey)

	head, err := archive.Head(ctx, "acct-1")
	require.NoError(t, err)
	all, err := archive.ListByAccount(ctx, "acct-1", 0)
	require.NoError(t, err)
	assert.Equal(t, all[len(all)-1].ContentHash, head)

	head, err = archive.Head(ctx, "acct-unknown")
	require.NoError(t, err)
	assert.Equal(t, "genesis", head)
}
