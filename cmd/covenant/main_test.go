package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covenant-labs/covenant/pkg/store"
)

func TestRunUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer

	assert.Equal(t, 2, Run([]string{"covenant"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "usage:")

	stderr.Reset()
	assert.Equal(t, 0, Run([]string{"covenant", "help"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "receipts")

	assert.Equal(t, 2, Run([]string{"covenant", "bogus"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "unknown command")
}

func TestRunDemoInMemory(t *testing.T) {
	var stdout bytes.Buffer
	archive := store.NewMemoryArchive()

	require.NoError(t, runDemo(context.Background(), archive, &stdout))

	out := stdout.String()
	assert.Contains(t, out, "staged intent \"pay-auditor\"")
	assert.Contains(t, out, "alice approved")
	assert.Contains(t, out, "transferred 250 USD to auditor")
	assert.Contains(t, out, "archived receipt sha256:")

	receipts, err := archive.ListByAccount(context.Background(), accountAddrFromOutput(t, out), 0)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, "pay-auditor", receipts[0].IntentKey)
	assert.Equal(t, store.StatusExecuted, receipts[0].Status)
}

func accountAddrFromOutput(t *testing.T, out string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "account ") {
			return strings.TrimPrefix(line, "account ")
		}
	}
	t.Fatal("account address not printed")
	return ""
}

func TestReceiptsAndVerifyCommands(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "archive.db")

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, Run([]string{"covenant", "demo", "-db", dbPath}, &stdout, &stderr), stderr.String())
	addr := accountAddrFromOutput(t, stdout.String())

	stdout.Reset()
	stderr.Reset()
	require.Equal(t, 0, Run([]string{"covenant", "receipts", "-db", dbPath, "-account", addr}, &stdout, &stderr), stderr.String())
	assert.Contains(t, stdout.String(), "pay-auditor")
	assert.Contains(t, stdout.String(), "1 receipts")

	stdout.Reset()
	require.Equal(t, 0, Run([]string{"covenant", "verify", "-db", dbPath, "-account", addr}, &stdout, &stderr), stderr.String())
	assert.Contains(t, stdout.String(), "chain verified")

	// Missing -account is a usage error.
	assert.Equal(t, 2, Run([]string{"covenant", "receipts", "-db", dbPath}, &stdout, &stderr))
	assert.Equal(t, 2, Run([]string{"covenant", "verify", "-db", dbPath}, &stdout, &stderr))
}
