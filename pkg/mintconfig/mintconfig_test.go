package mintconfig_test

import (
	"testing"

	"github.com/Mindburn-Labs/thawgate/pkg/mintconfig"
	"github.com/Mindburn-Labs/thawgate/pkg/programerr"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFieldOffsets(t *testing.T) {
	cfg := &mintconfig.MintConfig{
		Bump:                     254,
		EnablePermissionlessThaw: true,
		Mint:                     solana.NewWallet().PublicKey(),
		FreezeAuthority:          solana.NewWallet().PublicKey(),
		GatingProgram:            solana.NewWallet().PublicKey(),
	}
	data := cfg.Encode()
	require.Len(t, data, 100)
	assert.Equal(t, cfg.Mint[:], data[4:36])
	assert.Equal(t, cfg.FreezeAuthority[:], data[36:68])

	got, err := mintconfig.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestDecodeRejectsForeignData(t *testing.T) {
	_, err := mintconfig.Decode(make([]byte, 99))
	assert.ErrorIs(t, err, programerr.ErrInvalidMintConfig)

	_, err = mintconfig.Decode(make([]byte, 100))
	assert.ErrorIs(t, err, programerr.ErrInvalidMintConfig)
}
