package program

import (
	"github.com/Mindburn-Labs/thawgate/pkg/pda"
	"github.com/Mindburn-Labs/thawgate/pkg/programerr"
	"github.com/Mindburn-Labs/thawgate/pkg/records"
	"github.com/Mindburn-Labs/thawgate/pkg/runtime"
	"github.com/gagliardetto/solana-go"
)

type createList struct {
	authority  *runtime.AccountInfo
	listConfig *runtime.AccountInfo
}

func (p *Processor) parseCreateList(accounts []*runtime.AccountInfo) (*createList, error) {
	if len(accounts) != 3 {
		return nil, programerr.ErrNotEnoughAccounts
	}
	if !accounts[2].Key.Equals(p.cfg.SystemProgramID) {
		return nil, programerr.ErrInvalidSystemProgram
	}
	return &createList{authority: accounts[0], listConfig: accounts[1]}, nil
}

// process expects payload = mode u8 | seed [32].
func (ix *createList) process(host runtime.Host, programID solana.PublicKey, payload []byte) error {
	if len(payload) != 1+32 {
		return programerr.ErrInvalidData
	}
	mode, err := records.ParseMode(payload[0])
	if err != nil {
		return err
	}
	var seed [32]byte
	copy(seed[:], payload[1:])

	_, bump, err := pda.ListConfig(programID, ix.authority.Key, seed)
	if err != nil {
		return err
	}
	lamports := host.Rent().MinimumBalance(records.ListConfigLen)
	signer := pda.WithBump(pda.ListConfigSeeds(ix.authority.Key, seed), bump)
	if err := host.CreateAccount(ix.authority, ix.listConfig, lamports, records.ListConfigLen, programID, signer); err != nil {
		return err
	}

	cfg, err := records.LoadUnchecked[records.ListConfig](ix.listConfig.Data)
	if err != nil {
		return err
	}
	cfg.Authority = ix.authority.Key
	cfg.Seed = seed
	cfg.Mode = mode
	cfg.MemberCount = 0
	return records.Store(ix.listConfig.Data, cfg)
}
