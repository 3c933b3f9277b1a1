package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/Mindburn-Labs/thawgate/pkg/gate"
	"github.com/Mindburn-Labs/thawgate/pkg/ledger"
	"github.com/Mindburn-Labs/thawgate/pkg/records"
	"github.com/gagliardetto/solana-go"
)

const lamportsPerSOL = 1_000_000_000

// runKeygenCmd implements `thawgate keygen`.
func runKeygenCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("keygen", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	out := cmd.String("out", "", "Keypair file to write (REQUIRED)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if *out == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --out is required")
		return 2
	}

	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if err := writeKeygenFile(*out, key); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: write %s: %v\n", *out, err)
		return 2
	}
	_, _ = fmt.Fprintf(stdout, "pubkey: %s\n", key.PublicKey())
	return 0
}

// runAirdropCmd implements `thawgate airdrop`. Without --to it funds the
// keypair's address.
func runAirdropCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("airdrop", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var flags commonFlags
	flags.register(cmd)
	to := cmd.String("to", "", "Address to fund (default: keypair address)")
	lamports := cmd.Uint64("lamports", 10*lamportsPerSOL, "Lamports to credit")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	var target solana.PublicKey
	var err error
	if *to != "" {
		target, err = parsePubkey("to", *to)
	} else {
		var key solana.PrivateKey
		key, err = flags.authority()
		if err == nil {
			target = key.PublicKey()
		}
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	return withEnv(&flags, stderr, func(ctx context.Context, e *env) int {
		if err := e.bank.Airdrop(ctx, target, *lamports); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		a, err := e.bank.GetAccount(ctx, target)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		_, _ = fmt.Fprintf(stdout, "%s: %d lamports\n", target, a.Lamports)
		return 0
	})
}

// runInitMintCmd implements `thawgate init-mint`: it seeds a mint whose
// freeze authority is the keypair (or --freeze-authority) together with a
// token-ACL mint config enabling permissionless thaw through this program.
func runInitMintCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("init-mint", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var flags commonFlags
	flags.register(cmd)
	mintFlag := cmd.String("mint", "", "Mint address (default: new random address)")
	freezeFlag := cmd.String("freeze-authority", "", "Freeze authority (default: keypair address)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	mint := solana.NewWallet().PublicKey()
	var err error
	if *mintFlag != "" {
		if mint, err = parsePubkey("mint", *mintFlag); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	}
	var freeze solana.PublicKey
	if *freezeFlag != "" {
		freeze, err = parsePubkey("freeze-authority", *freezeFlag)
	} else {
		var key solana.PrivateKey
		key, err = flags.authority()
		if err == nil {
			freeze = key.PublicKey()
		}
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	return withEnv(&flags, stderr, func(ctx context.Context, e *env) int {
		cfgKey, err := e.gate.InitMint(ctx, mint, freeze)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		_, _ = fmt.Fprintf(stdout, "mint: %s\n", mint)
		_, _ = fmt.Fprintf(stdout, "mint_config: %s\n", cfgKey)
		return 0
	})
}

// runCreateListCmd implements `thawgate create-list`. Without --seed a
// random seed is used and printed, since the seed is needed to re-derive
// the list address.
func runCreateListCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("create-list", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var flags commonFlags
	flags.register(cmd)
	modeFlag := cmd.String("mode", "", "List mode: allow, allow-all-eoas or block (REQUIRED)")
	seedFlag := cmd.String("seed", "", "32-byte seed as a base58 address (default: random)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	mode, err := records.ModeFromString(*modeFlag)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: --mode: %v\n", err)
		return 2
	}
	seed := solana.NewWallet().PublicKey()
	if *seedFlag != "" {
		if seed, err = parsePubkey("seed", *seedFlag); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	}
	authority, err := flags.authority()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	return withEnv(&flags, stderr, func(ctx context.Context, e *env) int {
		list, r, err := e.gate.CreateList(ctx, authority, seed, mode)
		if err != nil {
			return reportFailure(stderr, r, err)
		}
		_, _ = fmt.Fprintf(stdout, "list_config: %s\n", list)
		_, _ = fmt.Fprintf(stdout, "seed: %s\n", seed)
		_, _ = fmt.Fprintf(stdout, "receipt: %s\n", r.ID)
		return 0
	})
}

// runDeleteListCmd implements `thawgate delete-list`.
func runDeleteListCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("delete-list", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var flags commonFlags
	flags.register(cmd)
	listFlag := cmd.String("list", "", "List address (REQUIRED)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	list, err := parsePubkey("list", *listFlag)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	authority, err := flags.authority()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	return withEnv(&flags, stderr, func(ctx context.Context, e *env) int {
		r, err := e.gate.DeleteList(ctx, authority, list)
		if err != nil {
			return reportFailure(stderr, r, err)
		}
		_, _ = fmt.Fprintf(stdout, "receipt: %s\n", r.ID)
		return 0
	})
}

// memberArgs parses the flags shared by add-wallet and remove-wallet.
func memberArgs(name string, args []string, stderr io.Writer) (*commonFlags, solana.PrivateKey, solana.PublicKey, solana.PublicKey, bool) {
	cmd := flag.NewFlagSet(name, flag.ContinueOnError)
	cmd.SetOutput(stderr)
	flags := &commonFlags{}
	flags.register(cmd)
	listFlag := cmd.String("list", "", "List address (REQUIRED)")
	walletFlag := cmd.String("wallet", "", "Wallet address (REQUIRED)")
	if err := cmd.Parse(args); err != nil {
		return nil, nil, solana.PublicKey{}, solana.PublicKey{}, false
	}

	list, err := parsePubkey("list", *listFlag)
	if err == nil {
		var wallet solana.PublicKey
		if wallet, err = parsePubkey("wallet", *walletFlag); err == nil {
			var authority solana.PrivateKey
			if authority, err = flags.authority(); err == nil {
				return flags, authority, list, wallet, true
			}
		}
	}
	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
	return nil, nil, solana.PublicKey{}, solana.PublicKey{}, false
}

// runAddWalletCmd implements `thawgate add-wallet`.
func runAddWalletCmd(args []string, stdout, stderr io.Writer) int {
	flags, authority, list, wallet, ok := memberArgs("add-wallet", args, stderr)
	if !ok {
		return 2
	}
	return withEnv(flags, stderr, func(ctx context.Context, e *env) int {
		entry, r, err := e.gate.AddWallet(ctx, authority, list, wallet)
		if err != nil {
			return reportFailure(stderr, r, err)
		}
		_, _ = fmt.Fprintf(stdout, "wallet_entry: %s\n", entry)
		_, _ = fmt.Fprintf(stdout, "receipt: %s\n", r.ID)
		return 0
	})
}

// runRemoveWalletCmd implements `thawgate remove-wallet`.
func runRemoveWalletCmd(args []string, stdout, stderr io.Writer) int {
	flags, authority, list, wallet, ok := memberArgs("remove-wallet", args, stderr)
	if !ok {
		return 2
	}
	return withEnv(flags, stderr, func(ctx context.Context, e *env) int {
		r, err := e.gate.RemoveWallet(ctx, authority, list, wallet)
		if err != nil {
			return reportFailure(stderr, r, err)
		}
		_, _ = fmt.Fprintf(stdout, "receipt: %s\n", r.ID)
		return 0
	})
}

// runApplyListsCmd implements `thawgate apply-lists-to-mint`. Passing no
// --list clears the mint's lists, which allows every thaw.
func runApplyListsCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("apply-lists-to-mint", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var flags commonFlags
	flags.register(cmd)
	mintFlag := cmd.String("mint", "", "Mint address (REQUIRED)")
	var lists pubkeyList
	cmd.Var(&lists, "list", "List address, in evaluation order (repeatable, up to 5)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	mint, err := parsePubkey("mint", *mintFlag)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	authority, err := flags.authority()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	return withEnv(&flags, stderr, func(ctx context.Context, e *env) int {
		metas, r, err := e.gate.ApplyListsToMint(ctx, authority, mint, lists)
		if err != nil {
			return reportFailure(stderr, r, err)
		}
		_, _ = fmt.Fprintf(stdout, "extra_metas: %s\n", metas)
		_, _ = fmt.Fprintf(stdout, "receipt: %s\n", r.ID)
		return 0
	})
}

// runCanThawCmd implements `thawgate can-thaw`. It opens the owner's frozen
// token account for the mint when none exists, then evaluates the mint's
// lists against it without changing the ledger.
func runCanThawCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("can-thaw", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var flags commonFlags
	flags.register(cmd)
	mintFlag := cmd.String("mint", "", "Mint address (REQUIRED)")
	ownerFlag := cmd.String("owner", "", "Token account owner (REQUIRED)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	mint, err := parsePubkey("mint", *mintFlag)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	owner, err := parsePubkey("owner", *ownerFlag)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	return withEnv(&flags, stderr, func(ctx context.Context, e *env) int {
		tokenAccount, err := e.gate.OpenTokenAccount(ctx, mint, owner)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		v, err := e.gate.CanThaw(ctx, tokenAccount)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		_, _ = fmt.Fprintf(stdout, "token_account: %s\n", tokenAccount)
		if v.Allowed {
			_, _ = fmt.Fprintln(stdout, "verdict: allowed")
			return 0
		}
		_, _ = fmt.Fprintf(stdout, "verdict: denied (%v)\n", v.Reason)
		for _, l := range v.Logs {
			_, _ = fmt.Fprintf(stdout, "  %s\n", l)
		}
		return 1
	})
}

type listJSON struct {
	Address     string   `json:"address"`
	Authority   string   `json:"authority"`
	Seed        string   `json:"seed"`
	Mode        string   `json:"mode"`
	MemberCount uint64   `json:"member_count"`
	Members     []string `json:"members"`
}

func toListJSON(v gate.ListView) listJSON {
	out := listJSON{
		Address:     v.Address.String(),
		Authority:   v.Config.Authority.String(),
		Seed:        solana.PublicKeyFromBytes(v.Config.Seed[:]).String(),
		Mode:        v.Config.Mode.String(),
		MemberCount: v.Config.MemberCount,
		Members:     []string{},
	}
	for _, m := range v.Members {
		out.Members = append(out.Members, m.String())
	}
	return out
}

// runShowCmd implements `thawgate show`.
func runShowCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("show", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var flags commonFlags
	flags.register(cmd)
	jsonOutput := cmd.Bool("json", false, "Output as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	return withEnv(&flags, stderr, func(ctx context.Context, e *env) int {
		views, err := e.gate.Lists(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		out := make([]listJSON, 0, len(views))
		for _, v := range views {
			out = append(out, toListJSON(v))
		}
		if *jsonOutput {
			if err := printJSON(stdout, out); err != nil {
				return 2
			}
			return 0
		}
		if len(out) == 0 {
			_, _ = fmt.Fprintln(stdout, "no lists")
			return 0
		}
		for _, l := range out {
			_, _ = fmt.Fprintf(stdout, "%s%s%s  mode=%s members=%d authority=%s\n",
				ColorBold, l.Address, ColorReset, l.Mode, l.MemberCount, l.Authority)
			for _, m := range l.Members {
				_, _ = fmt.Fprintf(stdout, "  %s\n", m)
			}
		}
		return 0
	})
}

// runReceiptsCmd implements `thawgate receipts`.
func runReceiptsCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("receipts", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	var flags commonFlags
	flags.register(cmd)
	limit := cmd.Int("limit", 20, "Newest receipts to show (0 for all)")
	verify := cmd.Bool("verify", false, "Verify the whole receipt hash chain")
	jsonOutput := cmd.Bool("json", false, "Output as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	return withEnv(&flags, stderr, func(ctx context.Context, e *env) int {
		store := e.bank.Receipts()
		receipts, err := store.List(ctx, *limit)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		if *jsonOutput {
			if err := printJSON(stdout, receipts); err != nil {
				return 2
			}
		} else {
			for _, r := range receipts {
				line := fmt.Sprintf("%d %s %s", r.Sequence, r.ID, r.Status)
				if r.Error != "" {
					line += " " + r.Error
				}
				_, _ = fmt.Fprintln(stdout, line)
			}
		}
		if !*verify {
			return 0
		}
		return verifyReceipts(ctx, store, stdout, stderr)
	})
}

func verifyReceipts(ctx context.Context, store ledger.ReceiptStore, stdout, stderr io.Writer) int {
	all, err := store.List(ctx, 0)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	// List is newest first; the chain is checked from genesis.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	if err := ledger.VerifyChain(all); err != nil {
		_, _ = fmt.Fprintf(stdout, "chain: BROKEN (%v)\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "chain: verified (%d receipts)\n", len(all))
	return 0
}
