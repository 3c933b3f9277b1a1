package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Mindburn-Labs/thawgate/pkg/observability"
	"github.com/Mindburn-Labs/thawgate/pkg/programerr"
	"github.com/Mindburn-Labs/thawgate/pkg/runtime"
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Transaction is an ordered list of instructions executed atomically. Every
// account an instruction marks as signer must be backed by one of Signers.
type Transaction struct {
	Instructions []runtime.Instruction
	Signers      []solana.PrivateKey
}

// Option configures a Bank.
type Option func(*Bank)

// WithReceipts sets where receipts are kept. Defaults to memory.
func WithReceipts(rs ReceiptStore) Option { return func(b *Bank) { b.receipts = rs } }

// WithTelemetry sets the observability provider.
func WithTelemetry(p *observability.Provider) Option { return func(b *Bank) { b.obs = p } }

// WithRent overrides the rent schedule.
func WithRent(r runtime.Rent) Option { return func(b *Bank) { b.rent = r } }

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option { return func(b *Bank) { b.logger = l } }

// WithClock overrides the clock used for receipt timestamps.
func WithClock(clock func() time.Time) Option { return func(b *Bank) { b.clock = clock } }

// Bank executes transactions against an AccountStore. Transactions are
// serialized; each one commits all of its writes or none.
type Bank struct {
	mu       sync.Mutex
	store    AccountStore
	receipts ReceiptStore
	programs map[solana.PublicKey]runtime.Program
	rent     runtime.Rent
	obs      *observability.Provider
	logger   *slog.Logger
	clock    func() time.Time

	chainLoaded bool
	seq         uint64
	head        string
}

// NewBank returns a bank over store with the system program registered.
func NewBank(store AccountStore, opts ...Option) *Bank {
	b := &Bank{
		store:    store,
		receipts: NewMemoryReceipts(),
		programs: make(map[solana.PublicKey]runtime.Program),
		rent:     runtime.DefaultRent(),
		logger:   slog.Default().With("component", "ledger"),
		clock:    time.Now,
		head:     genesisHash,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.obs == nil {
		b.obs = observability.Noop()
	}
	b.programs[solana.SystemProgramID] = systemProgram{}
	return b
}

// Register makes program callable at programID.
func (b *Bank) Register(programID solana.PublicKey, program runtime.Program) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.programs[programID] = program
}

// Rent returns the active rent schedule.
func (b *Bank) Rent() runtime.Rent { return b.rent }

// Receipts returns the receipt store.
func (b *Bank) Receipts() ReceiptStore { return b.receipts }

// GetAccount returns the stored state of key.
func (b *Bank) GetAccount(ctx context.Context, key solana.PublicKey) (*Account, error) {
	return b.store.Get(ctx, key)
}

// Accounts lists the accounts owned by owner.
func (b *Bank) Accounts(ctx context.Context, owner solana.PublicKey) ([]KeyedAccount, error) {
	return b.store.ByOwner(ctx, owner)
}

// Airdrop credits lamports to key, creating a system account if needed.
func (b *Bank) Airdrop(ctx context.Context, key solana.PublicKey, lamports uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	a, err := b.store.Get(ctx, key)
	switch {
	case errors.Is(err, ErrAccountNotFound):
		a = emptyAccount()
	case err != nil:
		return err
	}
	if a.Lamports > ^uint64(0)-lamports {
		return programerr.ErrArithmeticOverflow
	}
	a.Lamports += lamports
	b.logger.DebugContext(ctx, "airdrop", "account", key, "lamports", lamports)
	return b.store.Apply(ctx, map[solana.PublicKey]*Account{key: a})
}

// SetAccount overwrites the state of key. Used to seed accounts owned by
// programs this ledger does not run, such as mint configurations.
func (b *Bank) SetAccount(ctx context.Context, key solana.PublicKey, a *Account) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.store.Apply(ctx, map[solana.PublicKey]*Account{key: a.Clone()})
}

// Execute runs tx and commits its writes if every instruction succeeds. The
// receipt is returned, and recorded, whether or not the transaction failed.
// The error is the failing instruction's error.
func (b *Bank) Execute(ctx context.Context, tx Transaction) (*Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ctx, done := b.obs.TrackOperation(ctx, "ledger.execute", attribute.Int("instructions", len(tx.Instructions)))
	r, err := b.run(ctx, tx, true)
	done(err)
	return r, err
}

// Simulate runs tx without committing or recording anything.
func (b *Bank) Simulate(ctx context.Context, tx Transaction) (*Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ctx, done := b.obs.TrackOperation(ctx, "ledger.simulate", attribute.Int("instructions", len(tx.Instructions)))
	r, err := b.run(ctx, tx, false)
	done(err)
	return r, err
}

// Verdict is the outcome of a thaw decision.
type Verdict struct {
	Allowed bool
	// Reason is the denial error; nil when allowed.
	Reason error
	Logs   []string
}

// Decide simulates a single hook invocation and reports its verdict. Any
// instruction failure denies. The error is non-nil only when the ledger
// itself failed.
func (b *Bank) Decide(ctx context.Context, ix runtime.Instruction) (*Verdict, error) {
	r, err := b.Simulate(ctx, Transaction{Instructions: []runtime.Instruction{ix}})
	if r == nil {
		return nil, err
	}
	v := &Verdict{Allowed: err == nil, Reason: err, Logs: r.Logs}
	reason := ""
	if pe, ok := programerr.As(err); ok {
		reason = pe.Name()
	}
	b.obs.RecordVerdict(ctx, v.Allowed, reason)
	b.logger.InfoContext(ctx, "thaw decision", "allowed", v.Allowed, "reason", reason)
	return v, nil
}

// run returns a nil receipt only when the ledger failed before the outcome
// was known. A receipt that could not be recorded is returned together with
// ErrReceiptNotRecorded.
func (b *Bank) run(ctx context.Context, tx Transaction, commit bool) (*Receipt, error) {
	signers := make(map[solana.PublicKey]bool, len(tx.Signers))
	receipt := &Receipt{
		ID:        uuid.New().String(),
		Status:    StatusOK,
		Timestamp: b.clock().UTC(),
		Logs:      []string{},
		Programs:  []string{},
		Signers:   []string{},
	}
	for _, k := range tx.Signers {
		pub := k.PublicKey()
		signers[pub] = true
		receipt.Signers = append(receipt.Signers, pub.String())
	}

	ws := newWorkingSet(b.store)
	var ixErr error
	for i, ix := range tx.Instructions {
		receipt.Programs = append(receipt.Programs, ix.ProgramID.String())
		logs, err := b.invoke(ctx, ws, signers, ix)
		receipt.Logs = append(receipt.Logs, logs...)
		if err != nil {
			var hostErr *storeError
			if errors.As(err, &hostErr) {
				return nil, hostErr.err
			}
			idx := i
			receipt.FailedInstruction = &idx
			ixErr = fmt.Errorf("instruction %d: %w", i, err)
			break
		}
	}

	if ixErr != nil {
		receipt.Status = StatusFailed
		receipt.Error = ixErr.Error()
		if pe, ok := programerr.As(ixErr); ok {
			receipt.Error = pe.Name()
			if pe.Custom() {
				code := uint32(pe.Code())
				receipt.ErrorCode = &code
			}
		}
		b.logger.InfoContext(ctx, "transaction failed", "receipt", receipt.ID, "error", ixErr)
	}

	if !commit {
		return receipt, ixErr
	}
	if ixErr == nil {
		if err := b.store.Apply(ctx, ws.batch()); err != nil {
			return nil, fmt.Errorf("commit transaction: %w", err)
		}
	}
	if err := b.appendReceipt(ctx, receipt); err != nil {
		// The writes, if any, are already committed; the caller keeps the
		// receipt it could not record.
		return receipt, errors.Join(ixErr, fmt.Errorf("%w: %v", ErrReceiptNotRecorded, err))
	}
	return receipt, ixErr
}

func (b *Bank) appendReceipt(ctx context.Context, r *Receipt) error {
	if !b.chainLoaded {
		last, err := b.receipts.Last(ctx)
		if err != nil {
			return fmt.Errorf("load receipt chain: %w", err)
		}
		if last != nil {
			b.seq, b.head = last.Sequence, last.Hash
		}
		b.chainLoaded = true
	}
	r.Sequence = b.seq + 1
	r.PrevHash = b.head
	h, err := r.ComputeHash()
	if err != nil {
		return err
	}
	r.Hash = h
	if err := b.receipts.Append(ctx, r); err != nil {
		return fmt.Errorf("append receipt: %w", err)
	}
	b.seq, b.head = r.Sequence, r.Hash
	return nil
}

// invoke runs one instruction against the working set. Its changes reach the
// working set only when the instruction and its checks succeed.
func (b *Bank) invoke(ctx context.Context, ws *workingSet, signers map[solana.PublicKey]bool, ix runtime.Instruction) ([]string, error) {
	program, ok := b.programs[ix.ProgramID]
	if !ok {
		return nil, fmt.Errorf("program %s: %w", ix.ProgramID, programerr.ErrIncorrectProgramID)
	}

	ctx, done := b.obs.TrackOperation(ctx, "ledger.instruction", attribute.String("program", ix.ProgramID.String()))

	infos := make([]*runtime.AccountInfo, len(ix.Accounts))
	byKey := make(map[solana.PublicKey]*runtime.AccountInfo, len(ix.Accounts))
	var unique []*runtime.AccountInfo
	for i, m := range ix.Accounts {
		if m.IsSigner && !signers[m.PublicKey] {
			err := fmt.Errorf("%s: %w", m.PublicKey, programerr.ErrMissingRequiredSignature)
			done(err)
			return nil, err
		}
		if info, ok := byKey[m.PublicKey]; ok {
			info.IsSigner = info.IsSigner || m.IsSigner
			info.IsWritable = info.IsWritable || m.IsWritable
			infos[i] = info
			continue
		}
		a, err := ws.get(ctx, m.PublicKey)
		if err != nil {
			done(err)
			return nil, &storeError{err: err}
		}
		info := &runtime.AccountInfo{
			Key:        m.PublicKey,
			Owner:      a.Owner,
			Lamports:   a.Lamports,
			Data:       append([]byte(nil), a.Data...),
			IsSigner:   m.IsSigner,
			IsWritable: m.IsWritable,
			Executable: a.Executable,
		}
		byKey[m.PublicKey] = info
		infos[i] = info
		unique = append(unique, info)
	}

	var before uint64
	for _, a := range unique {
		before += a.Lamports
	}

	inv := newInvocation(ix.ProgramID, b.rent, b.logger.With("program", ix.ProgramID.String()), unique)
	err := program.Process(inv, ix.ProgramID, infos, ix.Data)
	if err == nil {
		err = inv.finish(before)
	}
	if err != nil {
		inv.logs = append(inv.logs, fmt.Sprintf("Program %s failed: %v", ix.ProgramID, err))
		done(err)
		return inv.logs, err
	}
	inv.logs = append(inv.logs, fmt.Sprintf("Program %s success", ix.ProgramID))

	for _, info := range unique {
		ws.set(info.Key, &Account{
			Owner:      info.Owner,
			Lamports:   info.Lamports,
			Data:       info.Data,
			Executable: info.Executable,
		})
	}
	done(nil)
	return inv.logs, nil
}

// storeError marks a failure of the backing store, as opposed to a program
// or runtime rule failure.
type storeError struct{ err error }

func (e *storeError) Error() string { return e.err.Error() }
func (e *storeError) Unwrap() error { return e.err }

// workingSet stages account changes for one transaction.
type workingSet struct {
	store    AccountStore
	original map[solana.PublicKey]*Account
	current  map[solana.PublicKey]*Account
}

func newWorkingSet(store AccountStore) *workingSet {
	return &workingSet{
		store:    store,
		original: make(map[solana.PublicKey]*Account),
		current:  make(map[solana.PublicKey]*Account),
	}
}

func (w *workingSet) get(ctx context.Context, key solana.PublicKey) (*Account, error) {
	if a, ok := w.current[key]; ok {
		return a, nil
	}
	a, err := w.store.Get(ctx, key)
	switch {
	case errors.Is(err, ErrAccountNotFound):
		w.original[key] = nil
		a = emptyAccount()
	case err != nil:
		return nil, err
	default:
		w.original[key] = a.Clone()
	}
	w.current[key] = a
	return a, nil
}

// set stages a; accounts drained to zero lamports are reclaimed.
func (w *workingSet) set(key solana.PublicKey, a *Account) {
	if a.Lamports == 0 {
		a = emptyAccount()
	}
	w.current[key] = a
}

// batch returns the changes to persist.
func (w *workingSet) batch() map[solana.PublicKey]*Account {
	out := make(map[solana.PublicKey]*Account)
	for key, cur := range w.current {
		orig := w.original[key]
		switch {
		case cur.Lamports == 0:
			if orig != nil {
				out[key] = nil
			}
		case orig == nil || !orig.Equal(cur):
			out[key] = cur
		}
	}
	return out
}
