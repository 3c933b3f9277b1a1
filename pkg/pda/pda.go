// Package pda derives the deterministic addresses of every record the gating
// program owns.
//
// Addresses are program-derived: SHA-256 over the seeds, a bump byte, the
// program ID and the "ProgramDerivedAddress" marker, searching the bump from
// 255 downwards until the result is off the ed25519 curve. External callers
// precompute these addresses before the records exist, so the seed layout is
// a compatibility contract.
package pda

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Seed prefixes.
var (
	ListConfigSeedPrefix  = []byte("list_config")
	WalletEntrySeedPrefix = []byte("wallet_entry")
	ThawExtraMetasSeed    = []byte("thaw-extra-account-metas")
	MintConfigSeedPrefix  = []byte("MINT_CFG")
)

// ListConfigSeeds returns the seeds of a list owned by authority.
func ListConfigSeeds(authority solana.PublicKey, seed [32]byte) [][]byte {
	return [][]byte{ListConfigSeedPrefix, authority.Bytes(), seed[:]}
}

// ListConfig derives the address of the list identified by (authority, seed).
func ListConfig(programID, authority solana.PublicKey, seed [32]byte) (solana.PublicKey, uint8, error) {
	return find(ListConfigSeeds(authority, seed), programID, "list config")
}

// MembershipSeeds returns the seeds of the membership record of wallet in list.
func MembershipSeeds(list, wallet solana.PublicKey) [][]byte {
	return [][]byte{WalletEntrySeedPrefix, list.Bytes(), wallet.Bytes()}
}

// MembershipRecord derives the address of the membership record of wallet in list.
func MembershipRecord(programID, list, wallet solana.PublicKey) (solana.PublicKey, uint8, error) {
	return find(MembershipSeeds(list, wallet), programID, "membership record")
}

// ThawExtraMetasSeeds returns the seeds of the extra-reference list of mint.
func ThawExtraMetasSeeds(mint solana.PublicKey) [][]byte {
	return [][]byte{ThawExtraMetasSeed, mint.Bytes()}
}

// ThawExtraMetas derives the address of the extra-reference list for mint.
func ThawExtraMetas(programID, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return find(ThawExtraMetasSeeds(mint), programID, "thaw extra metas")
}

// MintConfig derives the address of the token-ACL mint configuration record.
// The record belongs to the token-ACL program, not to this one.
func MintConfig(tokenACLProgramID, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return find([][]byte{MintConfigSeedPrefix, mint.Bytes()}, tokenACLProgramID, "mint config")
}

// WithBump appends the bump byte to seeds, producing signer seeds.
func WithBump(seeds [][]byte, bump uint8) [][]byte {
	out := make([][]byte, 0, len(seeds)+1)
	out = append(out, seeds...)
	return append(out, []byte{bump})
}

// IsOnCurve reports whether key is a valid ed25519 point, i.e. an address a
// private key can control. Program-derived addresses are never on the curve.
func IsOnCurve(key solana.PublicKey) bool {
	return solana.IsOnCurve(key[:])
}

func find(seeds [][]byte, programID solana.PublicKey, what string) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress(seeds, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("derive %s address: %w", what, err)
	}
	return addr, bump, nil
}
