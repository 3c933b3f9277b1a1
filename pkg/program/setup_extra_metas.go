package program

import (
	"github.com/Mindburn-Labs/thawgate/pkg/extrametas"
	"github.com/Mindburn-Labs/thawgate/pkg/mintconfig"
	"github.com/Mindburn-Labs/thawgate/pkg/pda"
	"github.com/Mindburn-Labs/thawgate/pkg/programerr"
	"github.com/Mindburn-Labs/thawgate/pkg/records"
	"github.com/Mindburn-Labs/thawgate/pkg/runtime"
	"github.com/gagliardetto/solana-go"
)

type setupExtraMetas struct {
	authority  *runtime.AccountInfo
	mintConfig *runtime.AccountInfo
	mint       *runtime.AccountInfo
	extraMetas *runtime.AccountInfo
	bump       uint8
	lists      []*runtime.AccountInfo

	tokenACL solana.PublicKey
}

func (p *Processor) parseSetupExtraMetas(programID solana.PublicKey, accounts []*runtime.AccountInfo) (*setupExtraMetas, error) {
	if len(accounts) < 5 {
		return nil, programerr.ErrNotEnoughAccounts
	}
	authority, mintConfig, mint, extraMetas, systemProgram := accounts[0], accounts[1], accounts[2], accounts[3], accounts[4]

	if !authority.IsSigner {
		return nil, programerr.ErrInvalidAuthority
	}
	want, bump, err := pda.ThawExtraMetas(programID, mint.Key)
	if err != nil {
		return nil, err
	}
	if !extraMetas.Key.Equals(want) {
		return nil, programerr.ErrInvalidExtraMetasAccount
	}
	if !systemProgram.Key.Equals(p.cfg.SystemProgramID) {
		return nil, programerr.ErrInvalidSystemProgram
	}
	return &setupExtraMetas{
		authority:  authority,
		mintConfig: mintConfig,
		mint:       mint,
		extraMetas: extraMetas,
		bump:       bump,
		lists:      accounts[5:],
		tokenACL:   p.cfg.TokenACLProgramID,
	}, nil
}

func (ix *setupExtraMetas) process(host runtime.Host, programID solana.PublicKey) error {
	if err := ix.checkMintAuthority(); err != nil {
		return err
	}

	if len(ix.lists) > extrametas.MaxLists {
		return programerr.ErrInvalidData
	}
	keys := make([]solana.PublicKey, len(ix.lists))
	for i, list := range ix.lists {
		if !list.IsOwnedBy(programID) {
			return programerr.ErrInvalidConfigAccount
		}
		if _, err := records.Load[records.ListConfig](list.Data); err != nil {
			return err
		}
		keys[i] = list.Key
	}
	metas, err := extrametas.ForLists(keys)
	if err != nil {
		return err
	}

	size := extrametas.SizeOf(len(metas))
	minLamports := host.Rent().MinimumBalance(size)

	if ix.extraMetas.IsOwnedBy(programID) {
		// Reconfiguring: reshape in place and settle the balance to exactly
		// the rent-exempt minimum of the new size.
		ix.extraMetas.Resize(0)
		ix.extraMetas.Resize(size)
		switch current := ix.extraMetas.Lamports; {
		case current < minLamports:
			if err := host.Transfer(ix.authority, ix.extraMetas, minLamports-current); err != nil {
				return err
			}
		case current > minLamports:
			if err := runtime.MoveLamports(ix.extraMetas, ix.authority, current-minLamports); err != nil {
				return err
			}
		}
	} else {
		signer := pda.WithBump(pda.ThawExtraMetasSeeds(ix.mint.Key), ix.bump)
		if err := host.CreateAccount(ix.authority, ix.extraMetas, minLamports, size, programID, signer); err != nil {
			return err
		}
	}

	if err := extrametas.Init(ix.extraMetas.Data, extrametas.CanThawPermissionlessDiscriminator, metas); err != nil {
		return err
	}
	host.Log("configured thaw extra metas", "mint", ix.mint.Key, "lists", len(keys))
	return nil
}

// checkMintAuthority verifies that the mint configuration is the token-ACL
// record of this mint and that the signer is its freeze authority.
func (ix *setupExtraMetas) checkMintAuthority() error {
	if !ix.mintConfig.IsOwnedBy(ix.tokenACL) {
		return programerr.ErrInvalidMintConfig
	}
	cfg, err := mintconfig.Decode(ix.mintConfig.Data)
	if err != nil {
		return err
	}
	if !cfg.Mint.Equals(ix.mint.Key) {
		return programerr.ErrInvalidMintConfig
	}
	if !cfg.FreezeAuthority.Equals(ix.authority.Key) {
		return programerr.ErrInvalidAuthority
	}
	return nil
}
