package runtime

import (
	"github.com/Mindburn-Labs/thawgate/pkg/programerr"
	"github.com/gagliardetto/solana-go"
)

// Host is what a program may ask of the ledger while an instruction runs.
// Every call is synchronous; the host applies effects to the AccountInfo
// values it handed out.
type Host interface {
	// Rent returns the active rent schedule.
	Rent() Rent

	// CreateAccount funds target with lamports from payer, allocates space
	// zeroed bytes and assigns owner. signerSeeds authorize target when it is
	// an address derived from the calling program.
	CreateAccount(payer, target *AccountInfo, lamports uint64, space int, owner solana.PublicKey, signerSeeds [][]byte) error

	// Transfer moves lamports between accounts through the system program.
	Transfer(from, to *AccountInfo, lamports uint64) error

	// Log appends a program log line.
	Log(msg string, args ...any)
}

// Program is an executable entry point.
type Program interface {
	Process(host Host, programID solana.PublicKey, accounts []*AccountInfo, data []byte) error
}

// MoveLamports debits src and credits dst directly. Only valid when the
// calling program owns src; the host verifies that after the instruction.
func MoveLamports(src, dst *AccountInfo, amount uint64) error {
	if src.Lamports < amount {
		return programerr.ErrInsufficientFunds
	}
	if dst.Lamports > ^uint64(0)-amount {
		return programerr.ErrArithmeticOverflow
	}
	src.Lamports -= amount
	dst.Lamports += amount
	return nil
}
