package program

import (
	"github.com/Mindburn-Labs/thawgate/pkg/programerr"
	"github.com/Mindburn-Labs/thawgate/pkg/records"
	"github.com/Mindburn-Labs/thawgate/pkg/runtime"
	"github.com/gagliardetto/solana-go"
)

type removeWallet struct {
	authority  *runtime.AccountInfo
	listConfig *runtime.AccountInfo
	entry      *runtime.AccountInfo
	cfg        *records.ListConfig
}

func parseRemoveWallet(programID solana.PublicKey, accounts []*runtime.AccountInfo) (*removeWallet, error) {
	if len(accounts) != 3 {
		return nil, programerr.ErrNotEnoughAccounts
	}
	authority, listConfig, entry := accounts[0], accounts[1], accounts[2]

	cfg, err := loadListForUpdate(programID, authority, listConfig, entry)
	if err != nil {
		return nil, err
	}

	// The record must be a live membership of this very list, otherwise the
	// wrong counter would be decremented.
	if !entry.IsOwnedBy(programID) {
		return nil, programerr.ErrInvalidAccountData
	}
	rec, err := records.Load[records.MembershipRecord](entry.Data)
	if err != nil {
		return nil, programerr.ErrInvalidAccountData
	}
	if !rec.List.Equals(listConfig.Key) {
		return nil, programerr.ErrInvalidAccountData
	}
	return &removeWallet{authority: authority, listConfig: listConfig, entry: entry, cfg: cfg}, nil
}

func (ix *removeWallet) process() error {
	if err := ix.entry.Close(ix.authority); err != nil {
		return err
	}
	if err := ix.cfg.DecrementMembers(); err != nil {
		return err
	}
	return records.Store(ix.listConfig.Data, ix.cfg)
}
