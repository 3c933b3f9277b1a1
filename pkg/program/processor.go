// Package program is the allow/block-list gating program: list lifecycle,
// membership, extra-reference configuration and the thaw decision.
//
// Each instruction runs synchronously against the accounts the host supplied.
// Nothing here locks, retries or suspends: the host serializes conflicting
// instructions and discards every write of a failed one.
package program

import (
	"github.com/Mindburn-Labs/thawgate/pkg/programerr"
	"github.com/Mindburn-Labs/thawgate/pkg/runtime"
	"github.com/gagliardetto/solana-go"
)

// Opcodes. The first instruction data byte selects the operation.
const (
	OpCreateList      byte = 0x01
	OpAddWallet       byte = 0x02
	OpRemoveWallet    byte = 0x03
	OpSetupExtraMetas byte = 0x04
	OpDeleteList      byte = 0x05
	OpCanThaw         byte = 0x08
)

// OpName returns a printable name for an opcode.
func OpName(op byte) string {
	switch op {
	case OpCreateList:
		return "create_list"
	case OpAddWallet:
		return "add_wallet"
	case OpRemoveWallet:
		return "remove_wallet"
	case OpSetupExtraMetas:
		return "setup_extra_metas"
	case OpDeleteList:
		return "delete_list"
	case OpCanThaw:
		return "can_thaw_permissionless"
	}
	return "unknown"
}

// Config holds the identities the program checks against. They are injected
// at deployment instead of compiled in.
type Config struct {
	// TokenACLProgramID owns the mint configuration records.
	TokenACLProgramID solana.PublicKey
	// SystemProgramID allocates accounts and moves lamports.
	SystemProgramID solana.PublicKey
}

// Processor dispatches instructions.
type Processor struct {
	cfg Config
}

// NewProcessor returns a processor. A zero SystemProgramID defaults to the
// ledger's system program.
func NewProcessor(cfg Config) *Processor {
	if cfg.SystemProgramID.IsZero() {
		cfg.SystemProgramID = solana.SystemProgramID
	}
	return &Processor{cfg: cfg}
}

// Process implements runtime.Program.
func (p *Processor) Process(host runtime.Host, programID solana.PublicKey, accounts []*runtime.AccountInfo, data []byte) error {
	if len(data) == 0 {
		return programerr.ErrInvalidInstruction
	}
	op, payload := data[0], data[1:]

	switch op {
	case OpCanThaw:
		ix, err := parseCanThaw(accounts)
		if err != nil {
			return err
		}
		return ix.process(host, programID)
	case OpCreateList:
		ix, err := p.parseCreateList(accounts)
		if err != nil {
			return err
		}
		return ix.process(host, programID, payload)
	case OpDeleteList:
		ix, err := parseDeleteList(programID, accounts)
		if err != nil {
			return err
		}
		return ix.process()
	case OpAddWallet:
		ix, err := p.parseAddWallet(programID, accounts)
		if err != nil {
			return err
		}
		return ix.process(host, programID)
	case OpRemoveWallet:
		ix, err := parseRemoveWallet(programID, accounts)
		if err != nil {
			return err
		}
		return ix.process()
	case OpSetupExtraMetas:
		ix, err := p.parseSetupExtraMetas(programID, accounts)
		if err != nil {
			return err
		}
		return ix.process(host, programID)
	}
	return programerr.ErrInvalidInstructionData
}

func isAuthorityOf(authority *runtime.AccountInfo, want solana.PublicKey) bool {
	return authority.IsSigner && authority.Key.Equals(want)
}
