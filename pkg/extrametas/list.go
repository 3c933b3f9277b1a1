package extrametas

import (
	"encoding/binary"
	"fmt"

	"github.com/Mindburn-Labs/thawgate/pkg/pda"
	"github.com/Mindburn-Labs/thawgate/pkg/programerr"
	"github.com/gagliardetto/solana-go"
)

// CanThawPermissionlessDiscriminator is the 8-byte discriminator of the
// token-ACL can-thaw-permissionless hook instruction. Its first byte is the
// gating program's decide opcode.
var CanThawPermissionlessDiscriminator = [8]byte{8, 175, 169, 129, 137, 74, 61, 241}

const (
	typeLen   = 8
	lengthLen = 4
	countLen  = 4
	headerLen = typeLen + lengthLen + countLen
)

// Hook account positions fixed by the thaw-hook contract.
const (
	HookAuthorityIndex    = 0
	HookTokenAccountIndex = 1
	HookMintIndex         = 2
	HookOwnerIndex        = 3
	HookExtraMetasIndex   = 4
	HookFirstExtraIndex   = 5
)

// Token account layout: the owner field follows the 32-byte mint.
const (
	TokenAccountOwnerOffset = 32
	TokenAccountOwnerLen    = 32
)

// MaxLists bounds how many lists one mint may reference.
const MaxLists = 5

// SizeOf returns the byte size of a list holding n descriptors.
func SizeOf(n int) int {
	return headerLen + n*MetaLen
}

// Init writes metas into data, which must be exactly SizeOf(len(metas)) bytes
// and zeroed by the caller.
func Init(data []byte, discriminator [8]byte, metas []ExtraAccountMeta) error {
	if len(data) != SizeOf(len(metas)) {
		return fmt.Errorf("extra metas buffer is %d bytes, need %d: %w", len(data), SizeOf(len(metas)), programerr.ErrInvalidAccountData)
	}
	copy(data[:typeLen], discriminator[:])
	binary.LittleEndian.PutUint32(data[typeLen:typeLen+lengthLen], uint32(countLen+len(metas)*MetaLen))
	binary.LittleEndian.PutUint32(data[typeLen+lengthLen:headerLen], uint32(len(metas)))
	for i, m := range metas {
		m.put(data[headerLen+i*MetaLen:])
	}
	return nil
}

// Unpack reads the descriptors stored under discriminator.
func Unpack(data []byte, discriminator [8]byte) ([]ExtraAccountMeta, error) {
	if len(data) < headerLen {
		return nil, fmt.Errorf("extra metas too short: %w", programerr.ErrInvalidAccountData)
	}
	if [8]byte(data[:typeLen]) != discriminator {
		return nil, fmt.Errorf("extra metas discriminator mismatch: %w", programerr.ErrInvalidAccountData)
	}
	length := int(binary.LittleEndian.Uint32(data[typeLen : typeLen+lengthLen]))
	count := int(binary.LittleEndian.Uint32(data[typeLen+lengthLen : headerLen]))
	if length != countLen+count*MetaLen || typeLen+lengthLen+length > len(data) {
		return nil, fmt.Errorf("extra metas length %d for %d entries: %w", length, count, programerr.ErrInvalidAccountData)
	}
	metas := make([]ExtraAccountMeta, count)
	for i := range metas {
		metas[i] = getMeta(data[headerLen+i*MetaLen:])
	}
	return metas, nil
}

// MembershipRecipe returns the seeds that resolve, at hook time, to the
// membership record of the token account owner in the list at hook account
// position listIndex.
func MembershipRecipe(listIndex uint8) []Seed {
	return []Seed{
		Literal(pda.WalletEntrySeedPrefix),
		AccountKey(listIndex),
		AccountData(HookTokenAccountIndex, TokenAccountOwnerOffset, TokenAccountOwnerLen),
	}
}

// ForLists builds the descriptor sequence for lists: for each list its own
// fixed address followed by the recipe of the owner's membership record.
func ForLists(lists []solana.PublicKey) ([]ExtraAccountMeta, error) {
	if len(lists) > MaxLists {
		return nil, programerr.ErrInvalidData
	}
	metas := make([]ExtraAccountMeta, 0, 2*len(lists))
	for i, list := range lists {
		metas = append(metas, Fixed(list, false, false))
		recipe, err := FromSeeds(MembershipRecipe(uint8(HookFirstExtraIndex+2*i)), false, false)
		if err != nil {
			return nil, err
		}
		metas = append(metas, recipe)
	}
	return metas, nil
}
