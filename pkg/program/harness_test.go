package program_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Mindburn-Labs/thawgate/pkg/gate"
	"github.com/Mindburn-Labs/thawgate/pkg/ledger"
	"github.com/Mindburn-Labs/thawgate/pkg/program"
	"github.com/Mindburn-Labs/thawgate/pkg/records"
	"github.com/Mindburn-Labs/thawgate/pkg/runtime"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

const sol = 1_000_000_000

type harness struct {
	t         *testing.T
	ctx       context.Context
	gate      *gate.Gate
	bank      *ledger.Bank
	client    *program.Client
	authority solana.PrivateKey
	mint      solana.PublicKey
	seeds     int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	bank := ledger.NewBank(ledger.NewMemoryStore())
	client := program.NewClient(randomKey(t).PublicKey(), randomKey(t).PublicKey())
	h := &harness{
		t:         t,
		ctx:       ctx,
		gate:      gate.New(bank, client),
		bank:      bank,
		client:    client,
		authority: randomKey(t),
		mint:      randomKey(t).PublicKey(),
	}
	require.NoError(t, bank.Airdrop(ctx, h.authority.PublicKey(), 100*sol))
	_, err := h.gate.InitMint(ctx, h.mint, h.authority.PublicKey())
	require.NoError(t, err)
	return h
}

func randomKey(t *testing.T) solana.PrivateKey {
	t.Helper()
	k, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return k
}

// offCurveWallet returns an address no private key controls.
func offCurveWallet(t *testing.T, label string) solana.PublicKey {
	t.Helper()
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte(label)}, solana.TokenProgramID)
	require.NoError(t, err)
	return addr
}

func (h *harness) exec(ix runtime.Instruction, signers ...solana.PrivateKey) error {
	h.t.Helper()
	_, err := h.bank.Execute(h.ctx, ledger.Transaction{Instructions: []runtime.Instruction{ix}, Signers: signers})
	return err
}

func (h *harness) account(key solana.PublicKey) *ledger.Account {
	h.t.Helper()
	a, err := h.bank.GetAccount(h.ctx, key)
	require.NoError(h.t, err)
	return a
}

func (h *harness) exists(key solana.PublicKey) bool {
	h.t.Helper()
	_, err := h.bank.GetAccount(h.ctx, key)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return false
	}
	require.NoError(h.t, err)
	return true
}

func (h *harness) listConfig(list solana.PublicKey) *records.ListConfig {
	h.t.Helper()
	cfg, err := records.Load[records.ListConfig](h.account(list).Data)
	require.NoError(h.t, err)
	return cfg
}

func (h *harness) createList(mode records.Mode) solana.PublicKey {
	h.t.Helper()
	h.seeds++
	list, _, err := h.gate.CreateList(h.ctx, h.authority, [32]byte{byte(h.seeds), byte(h.seeds >> 8)}, mode)
	require.NoError(h.t, err)
	return list
}

func (h *harness) add(list, wallet solana.PublicKey) solana.PublicKey {
	h.t.Helper()
	entry, _, err := h.gate.AddWallet(h.ctx, h.authority, list, wallet)
	require.NoError(h.t, err)
	return entry
}

func (h *harness) remove(list, wallet solana.PublicKey) {
	h.t.Helper()
	_, err := h.gate.RemoveWallet(h.ctx, h.authority, list, wallet)
	require.NoError(h.t, err)
}

func (h *harness) configure(lists ...solana.PublicKey) solana.PublicKey {
	h.t.Helper()
	metas, _, err := h.gate.ApplyListsToMint(h.ctx, h.authority, h.mint, lists)
	require.NoError(h.t, err)
	return metas
}

// decide runs the thaw hook for wallet's token account and returns the
// denial, or nil when thaw is allowed.
func (h *harness) decide(wallet solana.PublicKey) error {
	h.t.Helper()
	ata, err := h.gate.OpenTokenAccount(h.ctx, h.mint, wallet)
	require.NoError(h.t, err)
	v, err := h.gate.CanThaw(h.ctx, ata)
	require.NoError(h.t, err)
	if v.Allowed {
		return nil
	}
	require.Error(h.t, v.Reason)
	return v.Reason
}
