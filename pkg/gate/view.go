package gate

import (
	"context"

	"github.com/Mindburn-Labs/thawgate/pkg/records"
	"github.com/gagliardetto/solana-go"
)

// ListView is a list with its live members.
type ListView struct {
	Address solana.PublicKey
	Config  records.ListConfig
	Members []solana.PublicKey
}

// Lists returns every list held by the program with its members, in address
// order. Membership records whose list no longer decodes are skipped.
func (g *Gate) Lists(ctx context.Context) ([]ListView, error) {
	accounts, err := g.bank.Accounts(ctx, g.client.ProgramID)
	if err != nil {
		return nil, err
	}

	var views []ListView
	index := make(map[solana.PublicKey]int)
	for _, a := range accounts {
		cfg, err := records.Load[records.ListConfig](a.Data)
		if err != nil {
			continue
		}
		index[a.Key] = len(views)
		views = append(views, ListView{Address: a.Key, Config: *cfg})
	}
	for _, a := range accounts {
		rec, err := records.Load[records.MembershipRecord](a.Data)
		if err != nil {
			continue
		}
		if i, ok := index[rec.List]; ok {
			views[i].Members = append(views[i].Members, rec.Wallet)
		}
	}
	return views, nil
}
