package program

import (
	"github.com/Mindburn-Labs/thawgate/pkg/programerr"
	"github.com/Mindburn-Labs/thawgate/pkg/records"
	"github.com/Mindburn-Labs/thawgate/pkg/runtime"
	"github.com/gagliardetto/solana-go"
)

type deleteList struct {
	authority  *runtime.AccountInfo
	listConfig *runtime.AccountInfo
}

func parseDeleteList(programID solana.PublicKey, accounts []*runtime.AccountInfo) (*deleteList, error) {
	if len(accounts) != 2 {
		return nil, programerr.ErrNotEnoughAccounts
	}
	if !accounts[1].IsOwnedBy(programID) {
		return nil, programerr.ErrInvalidConfigAccount
	}
	return &deleteList{authority: accounts[0], listConfig: accounts[1]}, nil
}

func (ix *deleteList) process() error {
	cfg, err := records.Load[records.ListConfig](ix.listConfig.Data)
	if err != nil {
		return err
	}
	if !isAuthorityOf(ix.authority, cfg.Authority) {
		return programerr.ErrInvalidAuthority
	}
	// Deleting a populated list would orphan its membership records.
	if cfg.MemberCount > 0 {
		return programerr.ErrListNotEmpty
	}
	return ix.listConfig.Close(ix.authority)
}
