package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Mindburn-Labs/thawgate/pkg/programerr"
	"github.com/Mindburn-Labs/thawgate/pkg/runtime"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sol = 1_000_000_000

type programFunc func(host runtime.Host, programID solana.PublicKey, accounts []*runtime.AccountInfo, data []byte) error

func (f programFunc) Process(host runtime.Host, programID solana.PublicKey, accounts []*runtime.AccountInfo, data []byte) error {
	return f(host, programID, accounts, data)
}

func newKey(t *testing.T) solana.PrivateKey {
	t.Helper()
	k, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return k
}

func newBank(t *testing.T) *Bank {
	t.Helper()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return NewBank(NewMemoryStore(), WithClock(func() time.Time { return fixed }))
}

func mustGet(t *testing.T, b *Bank, key solana.PublicKey) *Account {
	t.Helper()
	a, err := b.GetAccount(context.Background(), key)
	require.NoError(t, err)
	return a
}

func TestBank_AirdropAndTransfer(t *testing.T) {
	ctx := context.Background()
	b := newBank(t)
	from, to := newKey(t), newKey(t)

	require.NoError(t, b.Airdrop(ctx, from.PublicKey(), 2*sol))
	r, err := b.Execute(ctx, Transaction{
		Instructions: []runtime.Instruction{SystemTransfer(from.PublicKey(), to.PublicKey(), sol)},
		Signers:      []solana.PrivateKey{from},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, r.Status)
	assert.Equal(t, uint64(1), r.Sequence)

	assert.Equal(t, uint64(sol), mustGet(t, b, from.PublicKey()).Lamports)
	assert.Equal(t, uint64(sol), mustGet(t, b, to.PublicKey()).Lamports)
}

func TestBank_FailedTransactionCommitsNothing(t *testing.T) {
	ctx := context.Background()
	b := newBank(t)
	from, to := newKey(t), newKey(t)
	require.NoError(t, b.Airdrop(ctx, from.PublicKey(), 2*sol))

	r, err := b.Execute(ctx, Transaction{
		Instructions: []runtime.Instruction{
			SystemTransfer(from.PublicKey(), to.PublicKey(), sol),
			SystemTransfer(from.PublicKey(), to.PublicKey(), 5*sol),
		},
		Signers: []solana.PrivateKey{from},
	})
	require.ErrorIs(t, err, programerr.ErrInsufficientFunds)
	require.NotNil(t, r)
	assert.Equal(t, StatusFailed, r.Status)
	require.NotNil(t, r.FailedInstruction)
	assert.Equal(t, 1, *r.FailedInstruction)
	assert.Equal(t, "InsufficientFunds", r.Error)
	assert.Nil(t, r.ErrorCode)

	assert.Equal(t, uint64(2*sol), mustGet(t, b, from.PublicKey()).Lamports)
	_, err = b.GetAccount(ctx, to.PublicKey())
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestBank_MissingSigner(t *testing.T) {
	ctx := context.Background()
	b := newBank(t)
	from, to := newKey(t), newKey(t)
	require.NoError(t, b.Airdrop(ctx, from.PublicKey(), sol))

	_, err := b.Execute(ctx, Transaction{
		Instructions: []runtime.Instruction{SystemTransfer(from.PublicKey(), to.PublicKey(), 1)},
	})
	require.ErrorIs(t, err, programerr.ErrMissingRequiredSignature)
}

func TestBank_UnknownProgram(t *testing.T) {
	b := newBank(t)
	_, err := b.Execute(context.Background(), Transaction{
		Instructions: []runtime.Instruction{{ProgramID: newKey(t).PublicKey()}},
	})
	require.ErrorIs(t, err, programerr.ErrIncorrectProgramID)
}

func TestBank_AccountRules(t *testing.T) {
	ctx := context.Background()
	programID := newKey(t).PublicKey()

	cases := []struct {
		name     string
		writable bool
		owner    func(program solana.PublicKey) solana.PublicKey
		mutate   func(a, b *runtime.AccountInfo)
		wantErr  error
	}{
		{
			name:     "readonly data change",
			writable: false,
			owner:    func(p solana.PublicKey) solana.PublicKey { return p },
			mutate:   func(a, _ *runtime.AccountInfo) { a.Data[0] = 9 },
			wantErr:  programerr.ErrReadonlyAccountModified,
		},
		{
			name:     "foreign data change",
			writable: true,
			owner:    func(solana.PublicKey) solana.PublicKey { return solana.TokenProgramID },
			mutate:   func(a, _ *runtime.AccountInfo) { a.Data[0] = 9 },
			wantErr:  programerr.ErrExternalAccountModified,
		},
		{
			name:     "foreign debit",
			writable: true,
			owner:    func(solana.PublicKey) solana.PublicKey { return solana.TokenProgramID },
			mutate:   func(a, b *runtime.AccountInfo) { a.Lamports--; b.Lamports++ },
			wantErr:  programerr.ErrExternalAccountModified,
		},
		{
			name:     "minted lamports",
			writable: true,
			owner:    func(p solana.PublicKey) solana.PublicKey { return p },
			mutate:   func(a, _ *runtime.AccountInfo) { a.Lamports++ },
			wantErr:  programerr.ErrUnbalancedInstruction,
		},
		{
			name:     "drained below rent",
			writable: true,
			owner:    func(p solana.PublicKey) solana.PublicKey { return p },
			mutate:   func(a, b *runtime.AccountInfo) { a.Lamports -= 10; b.Lamports += 10 },
			wantErr:  programerr.ErrAccountNotRentExempt,
		},
		{
			name:     "owned data change",
			writable: true,
			owner:    func(p solana.PublicKey) solana.PublicKey { return p },
			mutate:   func(a, _ *runtime.AccountInfo) { a.Data[0] = 9 },
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := newBank(t)
			target, sink := newKey(t).PublicKey(), newKey(t).PublicKey()
			rent := b.Rent()
			require.NoError(t, b.SetAccount(ctx, target, &Account{
				Owner:    tc.owner(programID),
				Lamports: rent.MinimumBalance(8),
				Data:     make([]byte, 8),
			}))
			require.NoError(t, b.Airdrop(ctx, sink, sol))
			b.Register(programID, programFunc(func(_ runtime.Host, _ solana.PublicKey, accounts []*runtime.AccountInfo, _ []byte) error {
				tc.mutate(accounts[0], accounts[1])
				return nil
			}))

			_, err := b.Execute(ctx, Transaction{Instructions: []runtime.Instruction{{
				ProgramID: programID,
				Accounts: []runtime.AccountMeta{
					runtime.Meta(target, false, tc.writable),
					runtime.Meta(sink, false, true),
				},
			}}})
			if tc.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, byte(9), mustGet(t, b, target).Data[0])
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, byte(0), mustGet(t, b, target).Data[0])
		})
	}
}

func TestBank_CreateAccountWithSeeds(t *testing.T) {
	ctx := context.Background()
	b := newBank(t)
	programID := newKey(t).PublicKey()
	payer := newKey(t)
	require.NoError(t, b.Airdrop(ctx, payer.PublicKey(), sol))

	seeds := [][]byte{[]byte("vault")}
	addr, bump, err := solana.FindProgramAddress(seeds, programID)
	require.NoError(t, err)

	b.Register(programID, programFunc(func(host runtime.Host, id solana.PublicKey, accounts []*runtime.AccountInfo, data []byte) error {
		signer := append(append([][]byte{}, seeds...), []byte{data[0]})
		if err := host.CreateAccount(accounts[0], accounts[1], host.Rent().MinimumBalance(4), 4, id, signer); err != nil {
			return err
		}
		copy(accounts[1].Data, "ok!!")
		host.Log("created", "space", 4)
		return nil
	}))

	ix := runtime.Instruction{
		ProgramID: programID,
		Accounts: []runtime.AccountMeta{
			runtime.Meta(payer.PublicKey(), true, true),
			runtime.Meta(addr, false, true),
			runtime.Meta(solana.SystemProgramID, false, false),
		},
	}

	// Wrong bump does not authorize the address.
	ix.Data = []byte{bump - 1}
	_, err = b.Execute(ctx, Transaction{Instructions: []runtime.Instruction{ix}, Signers: []solana.PrivateKey{payer}})
	require.ErrorIs(t, err, programerr.ErrMissingRequiredSignature)

	ix.Data = []byte{bump}
	r, err := b.Execute(ctx, Transaction{Instructions: []runtime.Instruction{ix}, Signers: []solana.PrivateKey{payer}})
	require.NoError(t, err)
	assert.Contains(t, r.Logs, "Program log: created space=4")

	got := mustGet(t, b, addr)
	assert.Equal(t, programID, got.Owner)
	assert.Equal(t, []byte("ok!!"), got.Data)
	assert.Equal(t, b.Rent().MinimumBalance(4), got.Lamports)

	// A second allocation of the same address fails.
	_, err = b.Execute(ctx, Transaction{Instructions: []runtime.Instruction{ix}, Signers: []solana.PrivateKey{payer}})
	require.ErrorIs(t, err, programerr.ErrAccountAlreadyInUse)
}

func TestBank_ClosedAccountIsReclaimed(t *testing.T) {
	ctx := context.Background()
	b := newBank(t)
	programID := newKey(t).PublicKey()
	rec, dst := newKey(t).PublicKey(), newKey(t).PublicKey()
	require.NoError(t, b.SetAccount(ctx, rec, &Account{Owner: programID, Lamports: b.Rent().MinimumBalance(3), Data: []byte{1, 2, 3}}))
	require.NoError(t, b.Airdrop(ctx, dst, sol))
	b.Register(programID, programFunc(func(_ runtime.Host, _ solana.PublicKey, accounts []*runtime.AccountInfo, _ []byte) error {
		return accounts[0].Close(accounts[1])
	}))

	_, err := b.Execute(ctx, Transaction{Instructions: []runtime.Instruction{{
		ProgramID: programID,
		Accounts:  []runtime.AccountMeta{runtime.Meta(rec, false, true), runtime.Meta(dst, false, true)},
	}}})
	require.NoError(t, err)

	_, err = b.GetAccount(ctx, rec)
	require.ErrorIs(t, err, ErrAccountNotFound)
	assert.Equal(t, sol+b.Rent().MinimumBalance(3), mustGet(t, b, dst).Lamports)
}

func TestBank_ReceiptChain(t *testing.T) {
	ctx := context.Background()
	b := newBank(t)
	from, to := newKey(t), newKey(t)
	require.NoError(t, b.Airdrop(ctx, from.PublicKey(), sol))

	for i := 0; i < 3; i++ {
		_, err := b.Execute(ctx, Transaction{
			Instructions: []runtime.Instruction{SystemTransfer(from.PublicKey(), to.PublicKey(), b.Rent().MinimumBalance(0))},
			Signers:      []solana.PrivateKey{from},
		})
		require.NoError(t, err)
	}
	// Failed transactions are recorded too.
	_, err := b.Execute(ctx, Transaction{
		Instructions: []runtime.Instruction{SystemTransfer(from.PublicKey(), to.PublicKey(), 10*sol)},
		Signers:      []solana.PrivateKey{from},
	})
	require.Error(t, err)

	all, err := b.Receipts().List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, uint64(4), all[0].Sequence)

	ordered := []*Receipt{all[3], all[2], all[1], all[0]}
	require.NoError(t, VerifyChain(ordered))

	ordered[1].Logs = append(ordered[1].Logs, "tampered")
	require.Error(t, VerifyChain(ordered))
}

func TestBank_SimulateDoesNotCommit(t *testing.T) {
	ctx := context.Background()
	b := newBank(t)
	from, to := newKey(t), newKey(t)
	require.NoError(t, b.Airdrop(ctx, from.PublicKey(), sol))

	r, err := b.Simulate(ctx, Transaction{
		Instructions: []runtime.Instruction{SystemTransfer(from.PublicKey(), to.PublicKey(), b.Rent().MinimumBalance(0))},
		Signers:      []solana.PrivateKey{from},
	})
	require.NoError(t, err)
	assert.Zero(t, r.Sequence)
	assert.Equal(t, uint64(sol), mustGet(t, b, from.PublicKey()).Lamports)
	_, err = b.GetAccount(ctx, to.PublicKey())
	require.ErrorIs(t, err, ErrAccountNotFound)

	last, err := b.Receipts().Last(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)
}

// refusingReceipts fails every Append while refuse is set.
type refusingReceipts struct {
	*MemoryReceipts
	refuse bool
}

func (r *refusingReceipts) Append(ctx context.Context, rec *Receipt) error {
	if r.refuse {
		return errors.New("disk full")
	}
	return r.MemoryReceipts.Append(ctx, rec)
}

func TestBank_ReceiptNotRecorded(t *testing.T) {
	ctx := context.Background()
	receipts := &refusingReceipts{MemoryReceipts: NewMemoryReceipts(), refuse: true}
	b := NewBank(NewMemoryStore(), WithReceipts(receipts))
	from, to := newKey(t), newKey(t)
	require.NoError(t, b.Airdrop(ctx, from.PublicKey(), sol))
	amount := b.Rent().MinimumBalance(0)

	r, err := b.Execute(ctx, Transaction{
		Instructions: []runtime.Instruction{SystemTransfer(from.PublicKey(), to.PublicKey(), amount)},
		Signers:      []solana.PrivateKey{from},
	})
	require.ErrorIs(t, err, ErrReceiptNotRecorded)
	require.NotNil(t, r)
	assert.Equal(t, StatusOK, r.Status)
	assert.Contains(t, err.Error(), "disk full")

	// The transfer itself stands.
	assert.Equal(t, amount, mustGet(t, b, to.PublicKey()).Lamports)
	last, err := receipts.Last(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	// A failed instruction keeps its own error alongside.
	r, err = b.Execute(ctx, Transaction{
		Instructions: []runtime.Instruction{SystemTransfer(from.PublicKey(), to.PublicKey(), 10*sol)},
		Signers:      []solana.PrivateKey{from},
	})
	require.ErrorIs(t, err, ErrReceiptNotRecorded)
	require.NotNil(t, r)
	assert.Equal(t, StatusFailed, r.Status)
	_, isProgramErr := programerr.As(err)
	assert.True(t, isProgramErr)

	// Once the store recovers the chain starts at the first recorded receipt.
	receipts.refuse = false
	r, err = b.Execute(ctx, Transaction{
		Instructions: []runtime.Instruction{SystemTransfer(from.PublicKey(), to.PublicKey(), amount)},
		Signers:      []solana.PrivateKey{from},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r.Sequence)
	require.NoError(t, VerifyChain([]*Receipt{r}))
}

func TestBank_Decide(t *testing.T) {
	ctx := context.Background()
	b := newBank(t)
	programID := newKey(t).PublicKey()
	b.Register(programID, programFunc(func(host runtime.Host, _ solana.PublicKey, _ []*runtime.AccountInfo, data []byte) error {
		if data[0] == 0 {
			host.Log("denied")
			return programerr.ErrAccountBlocked
		}
		return nil
	}))

	v, err := b.Decide(ctx, runtime.Instruction{ProgramID: programID, Data: []byte{1}})
	require.NoError(t, err)
	assert.True(t, v.Allowed)
	assert.NoError(t, v.Reason)

	v, err = b.Decide(ctx, runtime.Instruction{ProgramID: programID, Data: []byte{0}})
	require.NoError(t, err)
	assert.False(t, v.Allowed)
	assert.ErrorIs(t, v.Reason, programerr.ErrAccountBlocked)
	assert.Contains(t, v.Logs, "Program log: denied")
}

func TestBank_CustomErrorCodeInReceipt(t *testing.T) {
	ctx := context.Background()
	b := newBank(t)
	programID := newKey(t).PublicKey()
	b.Register(programID, programFunc(func(runtime.Host, solana.PublicKey, []*runtime.AccountInfo, []byte) error {
		return programerr.ErrListNotEmpty
	}))

	r, err := b.Execute(ctx, Transaction{Instructions: []runtime.Instruction{{ProgramID: programID}}})
	require.ErrorIs(t, err, programerr.ErrListNotEmpty)
	require.NotNil(t, r.ErrorCode)
	assert.Equal(t, uint32(programerr.CodeListNotEmpty), *r.ErrorCode)
	assert.Equal(t, "ListNotEmpty", r.Error)
}
