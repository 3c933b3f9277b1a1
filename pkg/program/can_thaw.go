package program

import (
	"github.com/Mindburn-Labs/thawgate/pkg/extrametas"
	"github.com/Mindburn-Labs/thawgate/pkg/pda"
	"github.com/Mindburn-Labs/thawgate/pkg/programerr"
	"github.com/Mindburn-Labs/thawgate/pkg/records"
	"github.com/Mindburn-Labs/thawgate/pkg/runtime"
	"github.com/gagliardetto/solana-go"
)

type canThaw struct {
	owner *runtime.AccountInfo
	pairs []*runtime.AccountInfo
}

// parseCanThaw accepts the fixed hook prefix followed by (list, membership)
// pairs in configuration order.
func parseCanThaw(accounts []*runtime.AccountInfo) (*canThaw, error) {
	if len(accounts) < extrametas.HookFirstExtraIndex {
		return nil, programerr.ErrNotEnoughAccounts
	}
	rest := accounts[extrametas.HookFirstExtraIndex:]
	if len(rest)%2 != 0 {
		return nil, programerr.ErrNotEnoughAccounts
	}
	return &canThaw{owner: accounts[extrametas.HookOwnerIndex], pairs: rest}, nil
}

// process evaluates every referenced list. The first denial wins; no lists
// means thaw is allowed.
func (ix *canThaw) process(host runtime.Host, programID solana.PublicKey) error {
	for i := 0; i < len(ix.pairs); i += 2 {
		list, entry := ix.pairs[i], ix.pairs[i+1]
		if err := evaluateList(programID, list, ix.owner, entry); err != nil {
			host.Log("list denied thaw", "list", list.Key, "owner", ix.owner.Key)
			return err
		}
	}
	return nil
}

func evaluateList(programID solana.PublicKey, list, owner, entry *runtime.AccountInfo) error {
	if !list.IsOwnedBy(programID) {
		return programerr.ErrInvalidConfigAccount
	}
	cfg, err := records.Load[records.ListConfig](list.Data)
	if err != nil {
		return err
	}
	member := isMember(programID, list, owner, entry)

	switch cfg.Mode {
	case records.ModeAllow:
		if !member {
			return programerr.ErrAccountBlocked
		}
	case records.ModeAllowAllEoas:
		if !pda.IsOnCurve(owner.Key) && !member {
			return programerr.ErrAccountBlocked
		}
	case records.ModeBlock:
		if member {
			return programerr.ErrAccountBlocked
		}
	}
	return nil
}

// isMember reports whether entry is a live membership record of owner in
// list. Anything else, including an empty or foreign account, is a
// non-member.
func isMember(programID solana.PublicKey, list, owner, entry *runtime.AccountInfo) bool {
	if !entry.IsOwnedBy(programID) {
		return false
	}
	rec, err := records.Load[records.MembershipRecord](entry.Data)
	if err != nil {
		return false
	}
	return rec.List.Equals(list.Key) && rec.Wallet.Equals(owner.Key)
}
