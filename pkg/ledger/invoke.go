package ledger

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Mindburn-Labs/thawgate/pkg/programerr"
	"github.com/Mindburn-Labs/thawgate/pkg/runtime"
	"github.com/gagliardetto/solana-go"
)

// snapshot is the last verified state of an account within an instruction.
type snapshot struct {
	owner    solana.PublicKey
	lamports uint64
	data     []byte
}

func takeSnapshot(a *runtime.AccountInfo) snapshot {
	return snapshot{owner: a.Owner, lamports: a.Lamports, data: append([]byte(nil), a.Data...)}
}

// invocation is the runtime.Host handed to one instruction.
type invocation struct {
	programID solana.PublicKey
	rent      runtime.Rent
	logger    *slog.Logger
	accounts  []*runtime.AccountInfo
	snapshots map[*runtime.AccountInfo]snapshot
	logs      []string
}

func newInvocation(programID solana.PublicKey, rent runtime.Rent, logger *slog.Logger, accounts []*runtime.AccountInfo) *invocation {
	inv := &invocation{
		programID: programID,
		rent:      rent,
		logger:    logger,
		accounts:  accounts,
		snapshots: make(map[*runtime.AccountInfo]snapshot, len(accounts)),
	}
	for _, a := range accounts {
		inv.snapshots[a] = takeSnapshot(a)
	}
	inv.logs = append(inv.logs, fmt.Sprintf("Program %s invoke", programID))
	return inv
}

func (inv *invocation) Rent() runtime.Rent { return inv.rent }

func (inv *invocation) Log(msg string, args ...any) {
	var b strings.Builder
	b.WriteString("Program log: ")
	b.WriteString(msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
	}
	inv.logs = append(inv.logs, b.String())
	inv.logger.Debug(msg, args...)
}

func (inv *invocation) CreateAccount(payer, target *runtime.AccountInfo, lamports uint64, space int, owner solana.PublicKey, signerSeeds [][]byte) error {
	if signerSeeds != nil {
		addr, err := solana.CreateProgramAddress(signerSeeds, inv.programID)
		if err != nil || !addr.Equals(target.Key) {
			return programerr.ErrMissingRequiredSignature
		}
	} else if !target.IsSigner {
		return programerr.ErrMissingRequiredSignature
	}
	return inv.systemCall(func() error {
		return createAccount(inv.rent, payer, target, lamports, space, owner)
	}, payer, target)
}

func (inv *invocation) Transfer(from, to *runtime.AccountInfo, lamports uint64) error {
	return inv.systemCall(func() error {
		return transfer(from, to, lamports)
	}, from, to)
}

// systemCall runs a nested system program call. The caller's pending changes
// to the passed accounts are verified first; afterwards the system program's
// effects become the new baseline.
func (inv *invocation) systemCall(call func() error, accounts ...*runtime.AccountInfo) error {
	for _, a := range accounts {
		if err := inv.verify(a, false); err != nil {
			return err
		}
	}
	if err := call(); err != nil {
		return err
	}
	for _, a := range accounts {
		inv.snapshots[a] = takeSnapshot(a)
	}
	inv.logs = append(inv.logs, fmt.Sprintf("Program %s invoke", solana.SystemProgramID), fmt.Sprintf("Program %s success", solana.SystemProgramID))
	return nil
}

// verify applies the runtime's account rules to the changes made to a since
// its last snapshot.
func (inv *invocation) verify(a *runtime.AccountInfo, checkRent bool) error {
	snap, ok := inv.snapshots[a]
	if !ok {
		return fmt.Errorf("account %s not part of the instruction: %w", a.Key, programerr.ErrInvalidArgument)
	}
	ownerChanged := !a.Owner.Equals(snap.owner)
	lamportsChanged := a.Lamports != snap.lamports
	dataChanged := !bytes.Equal(a.Data, snap.data)
	if !ownerChanged && !lamportsChanged && !dataChanged {
		return nil
	}

	if !a.IsWritable {
		return fmt.Errorf("%s: %w", a.Key, programerr.ErrReadonlyAccountModified)
	}
	ownedByCaller := snap.owner.Equals(inv.programID)
	if (ownerChanged || dataChanged) && !ownedByCaller {
		return fmt.Errorf("%s: %w", a.Key, programerr.ErrExternalAccountModified)
	}
	if a.Lamports < snap.lamports && !ownedByCaller {
		return fmt.Errorf("%s: %w", a.Key, programerr.ErrExternalAccountModified)
	}
	if checkRent && a.Lamports > 0 && !inv.rent.IsExempt(a.Lamports, len(a.Data)) {
		return fmt.Errorf("%s: %w", a.Key, programerr.ErrAccountNotRentExempt)
	}
	return nil
}

// finish runs the end-of-instruction checks.
func (inv *invocation) finish(lamportsBefore uint64) error {
	var after uint64
	for _, a := range inv.accounts {
		if err := inv.verify(a, true); err != nil {
			return err
		}
		after += a.Lamports
	}
	if after != lamportsBefore {
		return programerr.ErrUnbalancedInstruction
	}
	return nil
}
