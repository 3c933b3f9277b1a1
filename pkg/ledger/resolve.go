package ledger

import (
	"context"
	"fmt"

	"github.com/Mindburn-Labs/thawgate/pkg/extrametas"
	"github.com/Mindburn-Labs/thawgate/pkg/programerr"
	"github.com/Mindburn-Labs/thawgate/pkg/runtime"
	"github.com/gagliardetto/solana-go"
)

// AccountReader reads committed account state.
type AccountReader interface {
	GetAccount(ctx context.Context, key solana.PublicKey) (*Account, error)
}

// ResolveExtraAccountMetas expands the extra-reference list stored at
// base[extraMetasIndex] into concrete account metas, the way a caller of the
// hook does before invoking it. Recipes may refer to base accounts and to
// entries resolved earlier in the same list.
func ResolveExtraAccountMetas(ctx context.Context, reader AccountReader, programID solana.PublicKey, discriminator [8]byte, base []runtime.AccountMeta, extraMetasIndex int, ixData []byte) ([]runtime.AccountMeta, error) {
	if extraMetasIndex < 0 || extraMetasIndex >= len(base) {
		return nil, fmt.Errorf("extra metas index %d out of range: %w", extraMetasIndex, programerr.ErrNotEnoughAccounts)
	}
	listKey := base[extraMetasIndex].PublicKey
	listAcct, err := reader.GetAccount(ctx, listKey)
	if err != nil {
		return nil, fmt.Errorf("extra metas %s: %w", listKey, err)
	}
	if !listAcct.Owner.Equals(programID) {
		return nil, fmt.Errorf("extra metas %s owned by %s: %w", listKey, listAcct.Owner, programerr.ErrInvalidExtraMetasAccount)
	}
	descs, err := extrametas.Unpack(listAcct.Data, discriminator)
	if err != nil {
		return nil, err
	}

	accounts := append([]runtime.AccountMeta(nil), base...)
	resolved := make([]runtime.AccountMeta, 0, len(descs))
	for i, d := range descs {
		key, err := resolveAddress(ctx, reader, programID, d, accounts, ixData)
		if err != nil {
			return nil, fmt.Errorf("extra meta %d: %w", i, err)
		}
		m := runtime.Meta(key, d.IsSigner, d.IsWritable)
		accounts = append(accounts, m)
		resolved = append(resolved, m)
	}
	return resolved, nil
}

func resolveAddress(ctx context.Context, reader AccountReader, programID solana.PublicKey, d extrametas.ExtraAccountMeta, accounts []runtime.AccountMeta, ixData []byte) (solana.PublicKey, error) {
	if addr, ok := d.Address(); ok {
		return addr, nil
	}
	recipe, err := d.Seeds()
	if err != nil {
		return solana.PublicKey{}, err
	}
	seeds := make([][]byte, 0, len(recipe))
	for _, s := range recipe {
		switch s.Kind {
		case extrametas.SeedLiteral:
			seeds = append(seeds, s.Bytes)
		case extrametas.SeedInstructionData:
			end := int(s.Index) + int(s.Length)
			if end > len(ixData) {
				return solana.PublicKey{}, fmt.Errorf("instruction data seed [%d:%d] past %d bytes: %w", s.Index, end, len(ixData), programerr.ErrInvalidArgument)
			}
			seeds = append(seeds, ixData[s.Index:end])
		case extrametas.SeedAccountKey:
			if int(s.Index) >= len(accounts) {
				return solana.PublicKey{}, fmt.Errorf("account key seed %d of %d: %w", s.Index, len(accounts), programerr.ErrNotEnoughAccounts)
			}
			seeds = append(seeds, accounts[s.Index].PublicKey.Bytes())
		case extrametas.SeedAccountData:
			if int(s.AccountIndex) >= len(accounts) {
				return solana.PublicKey{}, fmt.Errorf("account data seed %d of %d: %w", s.AccountIndex, len(accounts), programerr.ErrNotEnoughAccounts)
			}
			src, err := reader.GetAccount(ctx, accounts[s.AccountIndex].PublicKey)
			if err != nil {
				return solana.PublicKey{}, fmt.Errorf("account data seed: %w", err)
			}
			end := int(s.DataIndex) + int(s.Length)
			if end > len(src.Data) {
				return solana.PublicKey{}, fmt.Errorf("account data seed [%d:%d] past %d bytes: %w", s.DataIndex, end, len(src.Data), programerr.ErrInvalidAccountData)
			}
			seeds = append(seeds, src.Data[s.DataIndex:end])
		default:
			return solana.PublicKey{}, fmt.Errorf("seed kind %d: %w", s.Kind, programerr.ErrInvalidArgument)
		}
	}
	addr, _, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive extra meta address: %w", err)
	}
	return addr, nil
}
