package program

import (
	"fmt"

	"github.com/Mindburn-Labs/thawgate/pkg/extrametas"
	"github.com/Mindburn-Labs/thawgate/pkg/pda"
	"github.com/Mindburn-Labs/thawgate/pkg/records"
	"github.com/Mindburn-Labs/thawgate/pkg/runtime"
	"github.com/gagliardetto/solana-go"
)

// Client builds instructions addressed to one deployment of the program.
type Client struct {
	ProgramID         solana.PublicKey
	TokenACLProgramID solana.PublicKey
	SystemProgramID   solana.PublicKey
}

// NewClient returns a client using the default system program.
func NewClient(programID, tokenACLProgramID solana.PublicKey) *Client {
	return &Client{ProgramID: programID, TokenACLProgramID: tokenACLProgramID, SystemProgramID: solana.SystemProgramID}
}

// CreateList builds a create-list instruction and returns the list address.
func (c *Client) CreateList(authority solana.PublicKey, seed [32]byte, mode records.Mode) (runtime.Instruction, solana.PublicKey, error) {
	list, _, err := pda.ListConfig(c.ProgramID, authority, seed)
	if err != nil {
		return runtime.Instruction{}, solana.PublicKey{}, err
	}
	data := make([]byte, 0, 2+32)
	data = append(data, OpCreateList, byte(mode))
	data = append(data, seed[:]...)
	return runtime.Instruction{
		ProgramID: c.ProgramID,
		Accounts: []runtime.AccountMeta{
			runtime.Meta(authority, true, true),
			runtime.Meta(list, false, true),
			runtime.Meta(c.SystemProgramID, false, false),
		},
		Data: data,
	}, list, nil
}

// DeleteList builds a delete-list instruction.
func (c *Client) DeleteList(authority, list solana.PublicKey) runtime.Instruction {
	return runtime.Instruction{
		ProgramID: c.ProgramID,
		Accounts: []runtime.AccountMeta{
			runtime.Meta(authority, true, true),
			runtime.Meta(list, false, true),
		},
		Data: []byte{OpDeleteList},
	}
}

// AddWallet builds an add-wallet instruction and returns the membership
// record address.
func (c *Client) AddWallet(authority, list, wallet solana.PublicKey) (runtime.Instruction, solana.PublicKey, error) {
	entry, _, err := pda.MembershipRecord(c.ProgramID, list, wallet)
	if err != nil {
		return runtime.Instruction{}, solana.PublicKey{}, err
	}
	return runtime.Instruction{
		ProgramID: c.ProgramID,
		Accounts: []runtime.AccountMeta{
			runtime.Meta(authority, true, true),
			runtime.Meta(list, false, true),
			runtime.Meta(wallet, false, false),
			runtime.Meta(entry, false, true),
			runtime.Meta(c.SystemProgramID, false, false),
		},
		Data: []byte{OpAddWallet},
	}, entry, nil
}

// RemoveWallet builds a remove-wallet instruction.
func (c *Client) RemoveWallet(authority, list, wallet solana.PublicKey) (runtime.Instruction, error) {
	entry, _, err := pda.MembershipRecord(c.ProgramID, list, wallet)
	if err != nil {
		return runtime.Instruction{}, err
	}
	return runtime.Instruction{
		ProgramID: c.ProgramID,
		Accounts: []runtime.AccountMeta{
			runtime.Meta(authority, true, true),
			runtime.Meta(list, false, true),
			runtime.Meta(entry, false, true),
		},
		Data: []byte{OpRemoveWallet},
	}, nil
}

// SetupExtraMetas builds the instruction that binds lists to mint, in order,
// and returns the extra-reference list address.
func (c *Client) SetupExtraMetas(authority, mint solana.PublicKey, lists []solana.PublicKey) (runtime.Instruction, solana.PublicKey, error) {
	if len(lists) > extrametas.MaxLists {
		return runtime.Instruction{}, solana.PublicKey{}, fmt.Errorf("%d lists exceeds the limit of %d", len(lists), extrametas.MaxLists)
	}
	mintCfg, _, err := pda.MintConfig(c.TokenACLProgramID, mint)
	if err != nil {
		return runtime.Instruction{}, solana.PublicKey{}, err
	}
	metas, _, err := pda.ThawExtraMetas(c.ProgramID, mint)
	if err != nil {
		return runtime.Instruction{}, solana.PublicKey{}, err
	}
	accounts := []runtime.AccountMeta{
		runtime.Meta(authority, true, true),
		runtime.Meta(mintCfg, false, false),
		runtime.Meta(mint, false, false),
		runtime.Meta(metas, false, true),
		runtime.Meta(c.SystemProgramID, false, false),
	}
	for _, l := range lists {
		accounts = append(accounts, runtime.Meta(l, false, false))
	}
	return runtime.Instruction{ProgramID: c.ProgramID, Accounts: accounts, Data: []byte{OpSetupExtraMetas}}, metas, nil
}

// CanThaw builds the hook invocation the token-ACL program issues. extras are
// the resolved (list, membership) pairs; see ledger.ResolveExtraAccountMetas.
func (c *Client) CanThaw(authority, tokenAccount, mint, owner solana.PublicKey, extras []runtime.AccountMeta) (runtime.Instruction, error) {
	metas, _, err := pda.ThawExtraMetas(c.ProgramID, mint)
	if err != nil {
		return runtime.Instruction{}, err
	}
	accounts := []runtime.AccountMeta{
		runtime.Meta(authority, false, false),
		runtime.Meta(tokenAccount, false, false),
		runtime.Meta(mint, false, false),
		runtime.Meta(owner, false, false),
		runtime.Meta(metas, false, false),
	}
	accounts = append(accounts, extras...)
	disc := extrametas.CanThawPermissionlessDiscriminator
	return runtime.Instruction{ProgramID: c.ProgramID, Accounts: accounts, Data: disc[:]}, nil
}
