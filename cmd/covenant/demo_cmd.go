package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/covenant-labs/covenant/pkg/account"
	"github.com/covenant-labs/covenant/pkg/actions/vault"
	"github.com/covenant-labs/covenant/pkg/deps"
	"github.com/covenant-labs/covenant/pkg/intents"
	"github.com/covenant-labs/covenant/pkg/policy"
	"github.com/covenant-labs/covenant/pkg/store"
)

// runDemoCmd stages a vault spend behind a weighted-multisig intent,
// collects approvals, executes it, and archives the receipt.
func runDemoCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("demo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "", "optional SQLite archive to record the receipt in")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var archive store.Archive = store.NewMemoryArchive()
	if *dbPath != "" {
		sqlite, err := store.OpenSQLiteArchive(*dbPath)
		if err != nil {
			fmt.Fprintf(stderr, "demo: %v\n", err)
			return 1
		}
		defer func() { _ = sqlite.Close() }()
		archive = sqlite
	}

	if err := runDemo(context.Background(), archive, stdout); err != nil {
		fmt.Fprintf(stderr, "demo: %v\n", err)
		return 1
	}
	return 0
}

func runDemo(ctx context.Context, archive store.Archive, stdout io.Writer) error {
	version := semver.MustParse("1.0.0")
	extensions := deps.NewExtensions()
	for _, ext := range []struct{ name, addr string }{
		{account.Name, account.Addr()},
		{vault.Name, vault.Addr()},
	} {
		if err := extensions.Add(ext.name, ext.addr, version); err != nil {
			return err
		}
	}

	cfg := policy.Config{
		Members: []policy.Member{
			{Addr: "alice", Weight: 2},
			{Addr: "bob", Weight: 1},
			{Addr: "carol", Weight: 1},
		},
		GlobalThreshold: 3,
	}
	acct, err := account.New[policy.Config, *policy.Approvals](extensions, cfg,
		account.WithDeps(deps.Pair{Name: vault.Name, Addr: vault.Addr()}),
		account.WithMetadata(account.NewMetadata("name", "treasury demo")),
	)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "account %s\n", acct.Addr())

	vaultID, err := vault.Open(acct, "operations")
	if err != nil {
		return err
	}
	if err := vault.Deposit(acct, vaultID, "USD", 1_000); err != nil {
		return err
	}

	now := time.Now()
	intent, err := vault.RequestSpend(acct, intents.Params{
		Key:            "pay-auditor",
		Description:    "quarterly audit invoice",
		ExecutionTimes: []time.Time{now},
		ExpirationTime: now.Add(24 * time.Hour),
	}, policy.NewApprovals(""), vault.SpendAction{
		VaultID: vaultID, Coin: "USD", Amount: 250, Recipient: "auditor",
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "staged intent %q with %d action(s)\n", intent.Key(), intent.ActionCount())

	for _, member := range []string{"alice", "bob"} {
		if err := (*intent.Outcome()).Approve(acct.Config(), member); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s approved\n", member)
	}
	if err := (*intent.Outcome()).AssertSatisfied(acct.Config()); err != nil {
		return err
	}

	transfers, _, err := vault.ExecuteSpend(acct, "pay-auditor", now)
	if err != nil {
		return err
	}
	for _, t := range transfers {
		fmt.Fprintf(stdout, "transferred %d %s to %s\n", t.Amount, t.Coin, t.Recipient)
	}

	expired, err := acct.DestroyEmptyIntent("pay-auditor")
	if err != nil {
		return err
	}
	if err := vault.Cleanup(acct, expired); err != nil {
		return err
	}
	if err := expired.DestroyEmpty(); err != nil {
		return err
	}

	receipt, err := store.Record(ctx, archive, acct.Addr(), "pay-auditor",
		expired.Issuer().FullRole(), store.StatusExecuted, 1, now)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "archived receipt %s\n", receipt.ContentHash)

	ok, detail := acct.Ledger().Verify()
	if !ok {
		return fmt.Errorf("ledger verification failed: %s", detail)
	}
	for _, entry := range acct.Ledger().Entries() {
		fmt.Fprintf(stdout, "ledger %02d %-18s %s\n", entry.Sequence, entry.Event, entry.IntentKey)
	}
	return nil
}
