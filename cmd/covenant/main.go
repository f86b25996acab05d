// Command covenant is the operator tool for the intent-execution engine:
// it lists and verifies archived receipts and runs a self-contained demo of
// the weighted-multisig lifecycle.
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint, split out for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}
	switch args[1] {
	case "receipts":
		return runReceiptsCmd(args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "demo":
		return runDemoCmd(args[2:], stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[1])
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `usage: covenant <command> [flags]

commands:
  receipts   list archived intent receipts
  verify     verify an account's receipt hash chain
  demo       run a weighted-multisig lifecycle end to end`)
}
