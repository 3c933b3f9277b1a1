package ledger

import (
	"encoding/binary"

	"github.com/Mindburn-Labs/thawgate/pkg/programerr"
	"github.com/Mindburn-Labs/thawgate/pkg/runtime"
	"github.com/gagliardetto/solana-go"
)

// System program instruction tags, u32 little-endian.
const (
	systemCreateAccount uint32 = 0
	systemTransfer      uint32 = 2
)

// systemProgram is the builtin allocator and lamport mover. It runs both as a
// top-level program and behind the Host calls programs make.
type systemProgram struct{}

func (systemProgram) Process(host runtime.Host, _ solana.PublicKey, accounts []*runtime.AccountInfo, data []byte) error {
	if len(data) < 4 {
		return programerr.ErrInvalidInstructionData
	}
	switch binary.LittleEndian.Uint32(data) {
	case systemCreateAccount:
		if len(data) != 4+8+8+32 || len(accounts) < 2 {
			return programerr.ErrInvalidInstructionData
		}
		lamports := binary.LittleEndian.Uint64(data[4:12])
		space := binary.LittleEndian.Uint64(data[12:20])
		owner := solana.PublicKeyFromBytes(data[20:52])
		if !accounts[1].IsSigner {
			return programerr.ErrMissingRequiredSignature
		}
		return createAccount(host.Rent(), accounts[0], accounts[1], lamports, int(space), owner)
	case systemTransfer:
		if len(data) != 4+8 || len(accounts) < 2 {
			return programerr.ErrInvalidInstructionData
		}
		return transfer(accounts[0], accounts[1], binary.LittleEndian.Uint64(data[4:12]))
	}
	return programerr.ErrInvalidInstructionData
}

// createAccount is the system allocation rule shared by top-level and
// program-invoked calls. The caller has already authorized target.
func createAccount(rent runtime.Rent, payer, target *runtime.AccountInfo, lamports uint64, space int, owner solana.PublicKey) error {
	if !payer.IsSigner {
		return programerr.ErrMissingRequiredSignature
	}
	if !payer.IsWritable || !target.IsWritable {
		return programerr.ErrReadonlyAccountModified
	}
	if target.Lamports > 0 || len(target.Data) > 0 || !target.IsOwnedBy(solana.SystemProgramID) {
		return programerr.ErrAccountAlreadyInUse
	}
	if space < 0 || space > maxAccountSpace {
		return programerr.ErrInvalidArgument
	}
	if !payer.IsOwnedBy(solana.SystemProgramID) || len(payer.Data) > 0 {
		return programerr.ErrInvalidArgument
	}
	if err := runtime.MoveLamports(payer, target, lamports); err != nil {
		return err
	}
	target.Data = make([]byte, space)
	target.Owner = owner
	return nil
}

func transfer(from, to *runtime.AccountInfo, lamports uint64) error {
	if !from.IsSigner {
		return programerr.ErrMissingRequiredSignature
	}
	if !from.IsWritable || !to.IsWritable {
		return programerr.ErrReadonlyAccountModified
	}
	if !from.IsOwnedBy(solana.SystemProgramID) || len(from.Data) > 0 {
		return programerr.ErrInvalidArgument
	}
	return runtime.MoveLamports(from, to, lamports)
}

const maxAccountSpace = 10 * 1024 * 1024

// SystemTransfer builds a top-level lamport transfer.
func SystemTransfer(from, to solana.PublicKey, lamports uint64) runtime.Instruction {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data, systemTransfer)
	binary.LittleEndian.PutUint64(data[4:], lamports)
	return runtime.Instruction{
		ProgramID: solana.SystemProgramID,
		Accounts: []runtime.AccountMeta{
			runtime.Meta(from, true, true),
			runtime.Meta(to, false, true),
		},
		Data: data,
	}
}

// SystemCreateAccount builds a top-level allocation of a keypair account.
func SystemCreateAccount(payer, target solana.PublicKey, lamports uint64, space uint64, owner solana.PublicKey) runtime.Instruction {
	data := make([]byte, 52)
	binary.LittleEndian.PutUint32(data, systemCreateAccount)
	binary.LittleEndian.PutUint64(data[4:], lamports)
	binary.LittleEndian.PutUint64(data[12:], space)
	copy(data[20:], owner[:])
	return runtime.Instruction{
		ProgramID: solana.SystemProgramID,
		Accounts: []runtime.AccountMeta{
			runtime.Meta(payer, true, true),
			runtime.Meta(target, true, true),
		},
		Data: data,
	}
}
