// Command thawgate manages allow and block lists gating permissionless thaw
// on a local ledger, and answers thaw queries against them.
package main

import (
	"fmt"
	"io"
	"os"
)

const version = "0.1.0"

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing. Exit codes: 0 success, 1 the ledger
// rejected the operation or denied thaw, 2 usage or runtime error.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "keygen":
		return runKeygenCmd(args[2:], stdout, stderr)
	case "airdrop":
		return runAirdropCmd(args[2:], stdout, stderr)
	case "init-mint":
		return runInitMintCmd(args[2:], stdout, stderr)
	case "create-list":
		return runCreateListCmd(args[2:], stdout, stderr)
	case "delete-list":
		return runDeleteListCmd(args[2:], stdout, stderr)
	case "add-wallet":
		return runAddWalletCmd(args[2:], stdout, stderr)
	case "remove-wallet":
		return runRemoveWalletCmd(args[2:], stdout, stderr)
	case "apply-lists-to-mint":
		return runApplyListsCmd(args[2:], stdout, stderr)
	case "can-thaw":
		return runCanThawCmd(args[2:], stdout, stderr)
	case "show":
		return runShowCmd(args[2:], stdout, stderr)
	case "receipts":
		return runReceiptsCmd(args[2:], stdout, stderr)
	case "version":
		_, _ = fmt.Fprintf(stdout, "thawgate %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

// ANSI Colors
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorBlue  = "\033[34m"
	ColorCyan  = "\033[36m"
	ColorGreen = "\033[32m"
	ColorGray  = "\033[37m"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sthawgate %s%s\n", ColorBold+ColorBlue, version, ColorReset)
	fmt.Fprintf(w, "%sAllow and block lists for permissionless thaw.%s\n", ColorGray, ColorReset)
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sUSAGE:%s\n", ColorBold, ColorReset)
	fmt.Fprintln(w, "  thawgate <command> [--config FILE] [--keypair FILE] [flags]")
	fmt.Fprintln(w, "")

	printSection(w, "LISTS")
	printCommand(w, "create-list", "Create a list (--mode allow|allow-all-eoas|block)")
	printCommand(w, "delete-list", "Delete an empty list (--list)")
	printCommand(w, "add-wallet", "Add a wallet to a list (--list, --wallet)")
	printCommand(w, "remove-wallet", "Remove a wallet from a list (--list, --wallet)")
	printCommand(w, "apply-lists-to-mint", "Gate a mint's thaw on lists (--mint, --list ...)")

	printSection(w, "LOCAL LEDGER")
	printCommand(w, "keygen", "Write a new keypair file (--out)")
	printCommand(w, "airdrop", "Fund an address (--to, --lamports)")
	printCommand(w, "init-mint", "Seed a mint and its token-ACL config (--mint)")
	printCommand(w, "can-thaw", "Ask whether a wallet may thaw (--mint, --owner)")
	printCommand(w, "show", "Show lists and members (--json)")
	printCommand(w, "receipts", "Show and verify transaction receipts (--limit)")

	printSection(w, "UTILITIES")
	printCommand(w, "version", "Show version information")
	printCommand(w, "help", "Show this help")
	fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "%s%s:%s\n", ColorBold+ColorCyan, title, ColorReset)
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %s%-20s%s %s\n", ColorGreen, name, ColorReset, desc)
}
