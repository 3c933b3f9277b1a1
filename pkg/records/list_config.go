package records

import (
	"encoding/binary"
	"fmt"

	"github.com/Mindburn-Labs/thawgate/pkg/programerr"
	"github.com/gagliardetto/solana-go"
)

// Mode selects how a list participates in the thaw verdict.
type Mode uint8

const (
	// ModeAllow admits only wallets with a membership record.
	ModeAllow Mode = iota
	// ModeAllowAllEoas admits every on-curve wallet; off-curve wallets need a
	// membership record.
	ModeAllowAllEoas
	// ModeBlock admits every wallet without a membership record.
	ModeBlock
)

// ParseMode validates a mode byte.
func ParseMode(b byte) (Mode, error) {
	if b > byte(ModeBlock) {
		return 0, fmt.Errorf("mode %d: %w", b, programerr.ErrInvalidData)
	}
	return Mode(b), nil
}

// ModeFromString parses the CLI spelling of a mode.
func ModeFromString(s string) (Mode, error) {
	switch s {
	case "allow":
		return ModeAllow, nil
	case "allow-all-eoas":
		return ModeAllowAllEoas, nil
	case "block":
		return ModeBlock, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

func (m Mode) String() string {
	switch m {
	case ModeAllow:
		return "allow"
	case ModeAllowAllEoas:
		return "allow-all-eoas"
	case ModeBlock:
		return "block"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ListConfig layout offsets.
const (
	ListConfigDiscriminator byte = 0x01
	ListConfigLen                = 1 + 32 + 32 + 8 + 1

	listAuthorityOffset   = 1
	listSeedOffset        = 33
	listMemberCountOffset = 65
	listModeOffset        = 73
)

// ListConfig is one authorization list.
type ListConfig struct {
	Authority   solana.PublicKey
	Seed        [32]byte
	MemberCount uint64
	Mode        Mode
}

func (*ListConfig) Len() int            { return ListConfigLen }
func (*ListConfig) Discriminator() byte { return ListConfigDiscriminator }

func (c *ListConfig) decode(data []byte) error {
	copy(c.Authority[:], data[listAuthorityOffset:listSeedOffset])
	copy(c.Seed[:], data[listSeedOffset:listMemberCountOffset])
	c.MemberCount = binary.LittleEndian.Uint64(data[listMemberCountOffset:listModeOffset])
	mode, err := ParseMode(data[listModeOffset])
	if err != nil {
		return programerr.ErrInvalidAccountData
	}
	c.Mode = mode
	return nil
}

func (c *ListConfig) encode(dst []byte) {
	copy(dst[listAuthorityOffset:listSeedOffset], c.Authority[:])
	copy(dst[listSeedOffset:listMemberCountOffset], c.Seed[:])
	binary.LittleEndian.PutUint64(dst[listMemberCountOffset:listModeOffset], c.MemberCount)
	dst[listModeOffset] = byte(c.Mode)
}

// IncrementMembers adds one live member, failing with ArithmeticOverflow
// instead of wrapping.
func (c *ListConfig) IncrementMembers() error {
	if c.MemberCount == ^uint64(0) {
		return programerr.ErrArithmeticOverflow
	}
	c.MemberCount++
	return nil
}

// DecrementMembers removes one live member, failing with ArithmeticOverflow
// on underflow: the counter and the record population have diverged.
func (c *ListConfig) DecrementMembers() error {
	if c.MemberCount == 0 {
		return programerr.ErrArithmeticOverflow
	}
	c.MemberCount--
	return nil
}
