package program

import (
	"github.com/Mindburn-Labs/thawgate/pkg/pda"
	"github.com/Mindburn-Labs/thawgate/pkg/programerr"
	"github.com/Mindburn-Labs/thawgate/pkg/records"
	"github.com/Mindburn-Labs/thawgate/pkg/runtime"
	"github.com/gagliardetto/solana-go"
)

type addWallet struct {
	authority  *runtime.AccountInfo
	listConfig *runtime.AccountInfo
	wallet     *runtime.AccountInfo
	entry      *runtime.AccountInfo
	cfg        *records.ListConfig
}

func (p *Processor) parseAddWallet(programID solana.PublicKey, accounts []*runtime.AccountInfo) (*addWallet, error) {
	if len(accounts) != 5 {
		return nil, programerr.ErrNotEnoughAccounts
	}
	authority, listConfig, wallet, entry, systemProgram := accounts[0], accounts[1], accounts[2], accounts[3], accounts[4]

	cfg, err := loadListForUpdate(programID, authority, listConfig, entry)
	if err != nil {
		return nil, err
	}
	if !systemProgram.Key.Equals(p.cfg.SystemProgramID) {
		return nil, programerr.ErrInvalidSystemProgram
	}
	return &addWallet{authority: authority, listConfig: listConfig, wallet: wallet, entry: entry, cfg: cfg}, nil
}

func (ix *addWallet) process(host runtime.Host, programID solana.PublicKey) error {
	_, bump, err := pda.MembershipRecord(programID, ix.listConfig.Key, ix.wallet.Key)
	if err != nil {
		return err
	}
	lamports := host.Rent().MinimumBalance(records.MembershipLen)
	signer := pda.WithBump(pda.MembershipSeeds(ix.listConfig.Key, ix.wallet.Key), bump)
	if err := host.CreateAccount(ix.authority, ix.entry, lamports, records.MembershipLen, programID, signer); err != nil {
		return err
	}

	rec := &records.MembershipRecord{Wallet: ix.wallet.Key, List: ix.listConfig.Key}
	if err := records.Store(ix.entry.Data, rec); err != nil {
		return err
	}

	if err := ix.cfg.IncrementMembers(); err != nil {
		return err
	}
	return records.Store(ix.listConfig.Data, ix.cfg)
}

// loadListForUpdate runs the checks shared by add and remove: the list is
// ours and decodes, the authority signed and matches, and both the list and
// the membership record are writable.
func loadListForUpdate(programID solana.PublicKey, authority, listConfig, entry *runtime.AccountInfo) (*records.ListConfig, error) {
	if !listConfig.IsOwnedBy(programID) {
		return nil, programerr.ErrInvalidConfigAccount
	}
	cfg, err := records.Load[records.ListConfig](listConfig.Data)
	if err != nil {
		return nil, err
	}
	if !isAuthorityOf(authority, cfg.Authority) {
		return nil, programerr.ErrInvalidAuthority
	}
	if !listConfig.IsWritable || !entry.IsWritable {
		return nil, programerr.ErrAccountNotWritable
	}
	return cfg, nil
}
