package extrametas

import (
	"fmt"

	"github.com/Mindburn-Labs/thawgate/pkg/programerr"
)

// SeedKind tags a seed variant inside a packed address config.
type SeedKind uint8

const (
	seedUninitialized SeedKind = iota
	SeedLiteral
	SeedInstructionData
	SeedAccountKey
	SeedAccountData
)

// Seed is one component of a derived-address recipe. Only the fields of the
// selected Kind are meaningful.
type Seed struct {
	Kind SeedKind

	// Literal
	Bytes []byte

	// InstructionData: Index/Length into the instruction data.
	// AccountData: AccountIndex, DataIndex, Length into an account's data.
	// AccountKey: Index of an instruction account.
	Index        uint8
	AccountIndex uint8
	DataIndex    uint8
	Length       uint8
}

// Literal is a fixed byte string.
func Literal(b []byte) Seed { return Seed{Kind: SeedLiteral, Bytes: append([]byte(nil), b...)} }

// InstructionData reads length bytes of instruction data at index.
func InstructionData(index, length uint8) Seed {
	return Seed{Kind: SeedInstructionData, Index: index, Length: length}
}

// AccountKey is the address of the instruction account at index.
func AccountKey(index uint8) Seed { return Seed{Kind: SeedAccountKey, Index: index} }

// AccountData reads length bytes at dataIndex of the instruction account at
// accountIndex.
func AccountData(accountIndex, dataIndex, length uint8) Seed {
	return Seed{Kind: SeedAccountData, AccountIndex: accountIndex, DataIndex: dataIndex, Length: length}
}

func (s Seed) packedLen() int {
	switch s.Kind {
	case SeedLiteral:
		return 2 + len(s.Bytes)
	case SeedInstructionData:
		return 3
	case SeedAccountKey:
		return 2
	case SeedAccountData:
		return 4
	}
	return 0
}

// PackSeeds packs seeds into a 32-byte address config. Unused trailing bytes
// stay zero.
func PackSeeds(seeds []Seed) ([AddressConfigLen]byte, error) {
	var out [AddressConfigLen]byte
	off := 0
	for _, s := range seeds {
		n := s.packedLen()
		if n == 0 {
			return out, fmt.Errorf("seed kind %d: %w", s.Kind, programerr.ErrInvalidArgument)
		}
		if off+n > AddressConfigLen {
			return out, fmt.Errorf("seeds exceed %d bytes: %w", AddressConfigLen, programerr.ErrInvalidArgument)
		}
		out[off] = byte(s.Kind)
		switch s.Kind {
		case SeedLiteral:
			if len(s.Bytes) > 255 {
				return out, programerr.ErrInvalidArgument
			}
			out[off+1] = byte(len(s.Bytes))
			copy(out[off+2:], s.Bytes)
		case SeedInstructionData:
			out[off+1], out[off+2] = s.Index, s.Length
		case SeedAccountKey:
			out[off+1] = s.Index
		case SeedAccountData:
			out[off+1], out[off+2], out[off+3] = s.AccountIndex, s.DataIndex, s.Length
		}
		off += n
	}
	return out, nil
}

// UnpackSeeds reverses PackSeeds, stopping at the first zero kind byte.
func UnpackSeeds(cfg [AddressConfigLen]byte) ([]Seed, error) {
	var seeds []Seed
	off := 0
	for off < AddressConfigLen {
		kind := SeedKind(cfg[off])
		if kind == seedUninitialized {
			break
		}
		need := Seed{Kind: kind}.packedLen()
		if need == 0 || off+need > AddressConfigLen {
			return nil, fmt.Errorf("seed at offset %d: %w", off, programerr.ErrInvalidAccountData)
		}
		var s Seed
		switch kind {
		case SeedLiteral:
			n := int(cfg[off+1])
			if off+2+n > AddressConfigLen {
				return nil, fmt.Errorf("literal seed at offset %d: %w", off, programerr.ErrInvalidAccountData)
			}
			s = Literal(cfg[off+2 : off+2+n])
		case SeedInstructionData:
			s = InstructionData(cfg[off+1], cfg[off+2])
		case SeedAccountKey:
			s = AccountKey(cfg[off+1])
		case SeedAccountData:
			s = AccountData(cfg[off+1], cfg[off+2], cfg[off+3])
		}
		seeds = append(seeds, s)
		off += s.packedLen()
	}
	return seeds, nil
}
