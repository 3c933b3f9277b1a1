// Package mintconfig decodes the token-ACL mint configuration record. The
// record belongs to the token-ACL program; the gating program only reads it
// to learn which authority controls a mint's freeze/thaw gating.
package mintconfig

import (
	"fmt"

	"github.com/Mindburn-Labs/thawgate/pkg/programerr"
	"github.com/gagliardetto/solana-go"
)

// Layout of the token-ACL MintConfig record.
const (
	Discriminator byte = 0x01
	Len                = 1 + 1 + 1 + 1 + 32 + 32 + 32

	bumpOffset              = 1
	permissionlessThawOff   = 2
	permissionlessFreezeOff = 3
	mintOffset              = 4
	freezeAuthorityOffset   = 36
	gatingProgramOffset     = 68
)

// MintConfig is the read-only view of the collaborator record.
type MintConfig struct {
	Bump                       uint8
	EnablePermissionlessThaw   bool
	EnablePermissionlessFreeze bool
	Mint                       solana.PublicKey
	FreezeAuthority            solana.PublicKey
	GatingProgram              solana.PublicKey
}

// Decode parses data, failing with InvalidMintConfig on a size or tag mismatch.
func Decode(data []byte) (*MintConfig, error) {
	if len(data) != Len || data[0] != Discriminator {
		return nil, fmt.Errorf("mint config of %d bytes: %w", len(data), programerr.ErrInvalidMintConfig)
	}
	c := &MintConfig{
		Bump:                       data[bumpOffset],
		EnablePermissionlessThaw:   data[permissionlessThawOff] != 0,
		EnablePermissionlessFreeze: data[permissionlessFreezeOff] != 0,
	}
	copy(c.Mint[:], data[mintOffset:freezeAuthorityOffset])
	copy(c.FreezeAuthority[:], data[freezeAuthorityOffset:gatingProgramOffset])
	copy(c.GatingProgram[:], data[gatingProgramOffset:Len])
	return c, nil
}

// Encode produces the record bytes. The gating program never writes this
// record; Encode exists so local ledgers and tests can seed it.
func (c *MintConfig) Encode() []byte {
	data := make([]byte, Len)
	data[0] = Discriminator
	data[bumpOffset] = c.Bump
	if c.EnablePermissionlessThaw {
		data[permissionlessThawOff] = 1
	}
	if c.EnablePermissionlessFreeze {
		data[permissionlessFreezeOff] = 1
	}
	copy(data[mintOffset:], c.Mint[:])
	copy(data[freezeAuthorityOffset:], c.FreezeAuthority[:])
	copy(data[gatingProgramOffset:], c.GatingProgram[:])
	return data
}
