// Package gate drives the gating program on a local ledger: it builds the
// instructions, signs and executes them, seeds the token-side accounts the
// program reads, and answers thaw queries the way the token-ACL program
// would.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Mindburn-Labs/thawgate/pkg/extrametas"
	"github.com/Mindburn-Labs/thawgate/pkg/ledger"
	"github.com/Mindburn-Labs/thawgate/pkg/mintconfig"
	"github.com/Mindburn-Labs/thawgate/pkg/pda"
	"github.com/Mindburn-Labs/thawgate/pkg/program"
	"github.com/Mindburn-Labs/thawgate/pkg/records"
	"github.com/Mindburn-Labs/thawgate/pkg/runtime"
	"github.com/gagliardetto/solana-go"
)

// MintLen is the size of a base mint account.
const MintLen = 82

// Gate is a client bound to one program deployment on one ledger.
type Gate struct {
	bank   *ledger.Bank
	client *program.Client
	logger *slog.Logger
}

// New registers the gating program on bank and returns a Gate for it.
func New(bank *ledger.Bank, client *program.Client) *Gate {
	bank.Register(client.ProgramID, program.NewProcessor(program.Config{
		TokenACLProgramID: client.TokenACLProgramID,
		SystemProgramID:   client.SystemProgramID,
	}))
	return &Gate{
		bank:   bank,
		client: client,
		logger: slog.Default().With("component", "gate"),
	}
}

// Client returns the instruction builder.
func (g *Gate) Client() *program.Client { return g.client }

// Bank returns the ledger.
func (g *Gate) Bank() *ledger.Bank { return g.bank }

func (g *Gate) execute(ctx context.Context, ix runtime.Instruction, signers ...solana.PrivateKey) (*ledger.Receipt, error) {
	return g.bank.Execute(ctx, ledger.Transaction{
		Instructions: []runtime.Instruction{ix},
		Signers:      signers,
	})
}

// CreateList creates a list owned by authority.
func (g *Gate) CreateList(ctx context.Context, authority solana.PrivateKey, seed [32]byte, mode records.Mode) (solana.PublicKey, *ledger.Receipt, error) {
	ix, list, err := g.client.CreateList(authority.PublicKey(), seed, mode)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	r, err := g.execute(ctx, ix, authority)
	if err != nil {
		return solana.PublicKey{}, r, fmt.Errorf("create list: %w", err)
	}
	g.logger.InfoContext(ctx, "list created", "list", list, "mode", mode, "receipt", r.ID)
	return list, r, nil
}

// DeleteList closes an empty list and refunds its authority.
func (g *Gate) DeleteList(ctx context.Context, authority solana.PrivateKey, list solana.PublicKey) (*ledger.Receipt, error) {
	r, err := g.execute(ctx, g.client.DeleteList(authority.PublicKey(), list), authority)
	if err != nil {
		return r, fmt.Errorf("delete list: %w", err)
	}
	g.logger.InfoContext(ctx, "list deleted", "list", list, "receipt", r.ID)
	return r, nil
}

// AddWallet records wallet as a member of list.
func (g *Gate) AddWallet(ctx context.Context, authority solana.PrivateKey, list, wallet solana.PublicKey) (solana.PublicKey, *ledger.Receipt, error) {
	ix, entry, err := g.client.AddWallet(authority.PublicKey(), list, wallet)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	r, err := g.execute(ctx, ix, authority)
	if err != nil {
		return solana.PublicKey{}, r, fmt.Errorf("add wallet: %w", err)
	}
	g.logger.InfoContext(ctx, "wallet added", "list", list, "wallet", wallet, "receipt", r.ID)
	return entry, r, nil
}

// RemoveWallet deletes the membership of wallet in list.
func (g *Gate) RemoveWallet(ctx context.Context, authority solana.PrivateKey, list, wallet solana.PublicKey) (*ledger.Receipt, error) {
	ix, err := g.client.RemoveWallet(authority.PublicKey(), list, wallet)
	if err != nil {
		return nil, err
	}
	r, err := g.execute(ctx, ix, authority)
	if err != nil {
		return r, fmt.Errorf("remove wallet: %w", err)
	}
	g.logger.InfoContext(ctx, "wallet removed", "list", list, "wallet", wallet, "receipt", r.ID)
	return r, nil
}

// ApplyListsToMint replaces the ordered set of lists gating mint.
func (g *Gate) ApplyListsToMint(ctx context.Context, authority solana.PrivateKey, mint solana.PublicKey, lists []solana.PublicKey) (solana.PublicKey, *ledger.Receipt, error) {
	ix, metas, err := g.client.SetupExtraMetas(authority.PublicKey(), mint, lists)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	r, err := g.execute(ctx, ix, authority)
	if err != nil {
		return solana.PublicKey{}, r, fmt.Errorf("apply lists to mint: %w", err)
	}
	g.logger.InfoContext(ctx, "lists applied", "mint", mint, "lists", len(lists), "receipt", r.ID)
	return metas, r, nil
}

// InitMint seeds a mint and its token-ACL configuration, naming
// freezeAuthority and this program as the thaw gate.
func (g *Gate) InitMint(ctx context.Context, mint, freezeAuthority solana.PublicKey) (solana.PublicKey, error) {
	cfgKey, bump, err := pda.MintConfig(g.client.TokenACLProgramID, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	cfg := &mintconfig.MintConfig{
		Bump:                     bump,
		EnablePermissionlessThaw: true,
		Mint:                     mint,
		FreezeAuthority:          freezeAuthority,
		GatingProgram:            g.client.ProgramID,
	}
	rent := g.bank.Rent()
	if err := g.bank.SetAccount(ctx, cfgKey, &ledger.Account{
		Owner:    g.client.TokenACLProgramID,
		Lamports: rent.MinimumBalance(mintconfig.Len),
		Data:     cfg.Encode(),
	}); err != nil {
		return solana.PublicKey{}, err
	}

	mintData := make([]byte, MintLen)
	// freeze_authority: COption tag then key.
	mintData[46] = 1
	copy(mintData[50:82], freezeAuthority[:])
	mintData[45] = 1 // is_initialized
	if err := g.bank.SetAccount(ctx, mint, &ledger.Account{
		Owner:    solana.TokenProgramID,
		Lamports: rent.MinimumBalance(MintLen),
		Data:     mintData,
	}); err != nil {
		return solana.PublicKey{}, err
	}
	g.logger.InfoContext(ctx, "mint initialized", "mint", mint, "mint_config", cfgKey)
	return cfgKey, nil
}

// OpenTokenAccount seeds a frozen associated token account of owner for
// mint, unless one exists.
func (g *Gate) OpenTokenAccount(ctx context.Context, mint, owner solana.PublicKey) (solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive token account: %w", err)
	}
	_, err = g.bank.GetAccount(ctx, ata)
	switch {
	case err == nil:
		return ata, nil
	case !errors.Is(err, ledger.ErrAccountNotFound):
		return solana.PublicKey{}, err
	}
	if err := g.bank.SetAccount(ctx, ata, ledger.TokenAccount(g.bank.Rent(), mint, owner, ledger.TokenStateFrozen)); err != nil {
		return solana.PublicKey{}, err
	}
	return ata, nil
}

// CanThaw asks the program whether tokenAccount may be thawed without the
// freeze authority, resolving the mint's extra references first.
func (g *Gate) CanThaw(ctx context.Context, tokenAccount solana.PublicKey) (*ledger.Verdict, error) {
	acct, err := g.bank.GetAccount(ctx, tokenAccount)
	if err != nil {
		return nil, fmt.Errorf("token account %s: %w", tokenAccount, err)
	}
	owner, ok := ledger.TokenAccountOwner(acct.Data)
	if !ok {
		return nil, fmt.Errorf("token account %s: too short", tokenAccount)
	}
	mint := solana.PublicKeyFromBytes(acct.Data[:32])

	ix, err := g.client.CanThaw(owner, tokenAccount, mint, owner, nil)
	if err != nil {
		return nil, err
	}
	disc := extrametas.CanThawPermissionlessDiscriminator
	extras, err := ledger.ResolveExtraAccountMetas(ctx, g.bank, g.client.ProgramID, disc, ix.Accounts, extrametas.HookExtraMetasIndex, ix.Data)
	if err != nil {
		return nil, fmt.Errorf("resolve extra metas: %w", err)
	}
	ix.Accounts = append(ix.Accounts, extras...)
	return g.bank.Decide(ctx, ix)
}
