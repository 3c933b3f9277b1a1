// Package extrametas models the extra-reference list a host runtime reads to
// learn which additional accounts a thaw-hook invocation needs.
//
// The list is a TLV entry keyed by the hook instruction discriminator. Each
// entry is either a fixed address or a recipe of seeds the host evaluates at
// call time to derive an address under the gating program. This package only
// produces and parses the descriptors; resolving recipes is the host's job.
package extrametas

import (
	"fmt"

	"github.com/Mindburn-Labs/thawgate/pkg/programerr"
	"github.com/gagliardetto/solana-go"
)

// Sizes of the packed descriptor.
const (
	AddressConfigLen = 32
	MetaLen          = 1 + AddressConfigLen + 1 + 1
)

// Kind tags a descriptor.
type Kind uint8

const (
	// KindFixed carries a literal address.
	KindFixed Kind = 0
	// KindProgramDerived carries seeds evaluated against the gating program.
	KindProgramDerived Kind = 1
)

// ExtraAccountMeta is one packed descriptor.
type ExtraAccountMeta struct {
	Kind          Kind
	AddressConfig [AddressConfigLen]byte
	IsSigner      bool
	IsWritable    bool
}

// Fixed returns a descriptor for a known address.
func Fixed(addr solana.PublicKey, isSigner, isWritable bool) ExtraAccountMeta {
	return ExtraAccountMeta{Kind: KindFixed, AddressConfig: addr, IsSigner: isSigner, IsWritable: isWritable}
}

// FromSeeds returns a descriptor for an address derived from seeds.
func FromSeeds(seeds []Seed, isSigner, isWritable bool) (ExtraAccountMeta, error) {
	cfg, err := PackSeeds(seeds)
	if err != nil {
		return ExtraAccountMeta{}, err
	}
	return ExtraAccountMeta{Kind: KindProgramDerived, AddressConfig: cfg, IsSigner: isSigner, IsWritable: isWritable}, nil
}

// Address returns the literal address of a fixed descriptor.
func (m ExtraAccountMeta) Address() (solana.PublicKey, bool) {
	if m.Kind != KindFixed {
		return solana.PublicKey{}, false
	}
	return solana.PublicKey(m.AddressConfig), true
}

// Seeds returns the recipe of a program-derived descriptor.
func (m ExtraAccountMeta) Seeds() ([]Seed, error) {
	if m.Kind != KindProgramDerived {
		return nil, fmt.Errorf("descriptor kind %d has no seeds: %w", m.Kind, programerr.ErrInvalidArgument)
	}
	return UnpackSeeds(m.AddressConfig)
}

func (m ExtraAccountMeta) put(dst []byte) {
	dst[0] = byte(m.Kind)
	copy(dst[1:1+AddressConfigLen], m.AddressConfig[:])
	dst[33] = boolByte(m.IsSigner)
	dst[34] = boolByte(m.IsWritable)
}

func getMeta(src []byte) ExtraAccountMeta {
	var m ExtraAccountMeta
	m.Kind = Kind(src[0])
	copy(m.AddressConfig[:], src[1:1+AddressConfigLen])
	m.IsSigner = src[33] != 0
	m.IsWritable = src[34] != 0
	return m
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
