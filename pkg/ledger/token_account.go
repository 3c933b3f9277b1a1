package ledger

import (
	"github.com/Mindburn-Labs/thawgate/pkg/runtime"
	"github.com/gagliardetto/solana-go"
)

// Base token account layout, as far as the hook needs it.
const (
	TokenAccountLen         = 165
	tokenAccountMintOffset  = 0
	tokenAccountOwnerOffset = 32
	tokenAccountStateOffset = 108
)

// Token account states.
const (
	TokenStateInitialized byte = 1
	TokenStateFrozen      byte = 2
)

// TokenAccount builds a rent-exempt token account for owner holding mint.
func TokenAccount(rent runtime.Rent, mint, owner solana.PublicKey, state byte) *Account {
	data := make([]byte, TokenAccountLen)
	copy(data[tokenAccountMintOffset:], mint[:])
	copy(data[tokenAccountOwnerOffset:], owner[:])
	data[tokenAccountStateOffset] = state
	return &Account{
		Owner:    solana.TokenProgramID,
		Lamports: rent.MinimumBalance(TokenAccountLen),
		Data:     data,
	}
}

// TokenAccountOwner reads the owner field of a token account.
func TokenAccountOwner(data []byte) (solana.PublicKey, bool) {
	if len(data) < tokenAccountOwnerOffset+32 {
		return solana.PublicKey{}, false
	}
	return solana.PublicKeyFromBytes(data[tokenAccountOwnerOffset : tokenAccountOwnerOffset+32]), true
}
