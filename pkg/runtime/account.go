// Package runtime is the boundary between the gating program and the ledger
// host that executes it. The host hands the program a fixed, pre-declared set
// of accounts; the program mutates them in place and calls back into the host
// for allocation and balance transfers.
package runtime

import (
	"github.com/gagliardetto/solana-go"
)

// AccountInfo is the program's view of one account for the duration of a
// single instruction. The host owns the backing state and decides, after the
// instruction returns, whether the mutations are committed.
type AccountInfo struct {
	Key        solana.PublicKey
	Owner      solana.PublicKey
	Lamports   uint64
	Data       []byte
	IsSigner   bool
	IsWritable bool
	Executable bool
}

// IsOwnedBy reports whether program owns the account.
func (a *AccountInfo) IsOwnedBy(program solana.PublicKey) bool {
	return a.Owner.Equals(program)
}

// Resize truncates or zero-extends the account data to n bytes.
func (a *AccountInfo) Resize(n int) {
	switch {
	case n <= len(a.Data):
		a.Data = a.Data[:n:n]
	default:
		grown := make([]byte, n)
		copy(grown, a.Data)
		a.Data = grown
	}
}

// Close drains the account's lamports into dst and truncates its data. It
// fails with ArithmeticOverflow if dst cannot hold the balance.
func (a *AccountInfo) Close(dst *AccountInfo) error {
	if err := MoveLamports(a, dst, a.Lamports); err != nil {
		return err
	}
	a.Resize(0)
	return nil
}

// AccountMeta declares one account an instruction touches.
type AccountMeta struct {
	PublicKey  solana.PublicKey
	IsSigner   bool
	IsWritable bool
}

// Meta is shorthand for an AccountMeta literal.
func Meta(key solana.PublicKey, signer, writable bool) AccountMeta {
	return AccountMeta{PublicKey: key, IsSigner: signer, IsWritable: writable}
}

// Instruction is one call into a program.
type Instruction struct {
	ProgramID solana.PublicKey
	Accounts  []AccountMeta
	Data      []byte
}
