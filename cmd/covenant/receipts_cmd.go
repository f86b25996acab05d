package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/covenant-labs/covenant/pkg/store"
)

func runReceiptsCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("receipts", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "covenant.db", "path to the SQLite archive")
	account := fs.String("account", "", "account address (required)")
	limit := fs.Int("limit", 50, "maximum receipts to list")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *account == "" {
		fmt.Fprintln(stderr, "receipts: -account is required")
		return 2
	}

	archive, err := store.OpenSQLiteArchive(*dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "receipts: %v\n", err)
		return 1
	}
	defer func() { _ = archive.Close() }()

	receipts, err := archive.ListByAccount(context.Background(), *account, *limit)
	if err != nil {
		fmt.Fprintf(stderr, "receipts: %v\n", err)
		return 1
	}
	for _, r := range receipts {
		fmt.Fprintf(stdout, "%s  %-8s  %-24s  actions=%d  %s\n",
			r.RecordedAt.Format("2006-01-02 15:04:05"), r.Status, r.IntentKey, r.ActionCount, r.ContentHash)
	}
	fmt.Fprintf(stdout, "%d receipts\n", len(receipts))
	return 0
}

func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dbPath := fs.String("db", "covenant.db", "path to the SQLite archive")
	account := fs.String("account", "", "account address (required)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *account == "" {
		fmt.Fprintln(stderr, "verify: -account is required")
		return 2
	}

	archive, err := store.OpenSQLiteArchive(*dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "verify: %v\n", err)
		return 1
	}
	defer func() { _ = archive.Close() }()

	if err := store.Verify(context.Background(), archive, *account); err != nil {
		fmt.Fprintf(stderr, "verify: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "chain verified")
	return 0
}
