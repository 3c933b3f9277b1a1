package program_test

import (
	"testing"

	"github.com/Mindburn-Labs/thawgate/pkg/program"
	"github.com/Mindburn-Labs/thawgate/pkg/programerr"
	"github.com/Mindburn-Labs/thawgate/pkg/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessor_Dispatch(t *testing.T) {
	h := newHarness(t)

	empty := runtime.Instruction{ProgramID: h.client.ProgramID}
	require.ErrorIs(t, h.exec(empty), programerr.ErrInvalidInstruction)

	for _, op := range []byte{0x00, 0x06, 0x07, 0x09, 0xff} {
		ix := runtime.Instruction{ProgramID: h.client.ProgramID, Data: []byte{op}}
		require.ErrorIs(t, h.exec(ix), programerr.ErrInvalidInstructionData, "opcode %#x", op)
	}
}

func TestOpName(t *testing.T) {
	assert.Equal(t, "create_list", program.OpName(program.OpCreateList))
	assert.Equal(t, "can_thaw_permissionless", program.OpName(program.OpCanThaw))
	assert.Equal(t, "unknown", program.OpName(0x42))
}

func TestNewProcessorDefaultsSystemProgram(t *testing.T) {
	h := newHarness(t)
	ix, _, err := h.client.CreateList(h.authority.PublicKey(), [32]byte{9}, 0)
	require.NoError(t, err)
	// The client and the processor agree on the default system program.
	require.NoError(t, h.exec(ix, h.authority))
}
