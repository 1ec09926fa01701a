package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/interop-labs/ibcsim/core/types"
)

func TestPacketValidateBasic(t *testing.T) {
	packet := types.NewPacket([]byte("data"), 1, "mock", "channel-0", "mock", "channel-0", 0, 0)
	require.NoError(t, packet.ValidateBasic())

	zeroSeq := packet
	zeroSeq.Sequence = 0
	require.Error(t, zeroSeq.ValidateBasic())

	noData := packet
	noData.Data = nil
	require.Error(t, noData.ValidateBasic())

	noPort := packet
	noPort.SourcePort = ""
	require.Error(t, noPort.ValidateBasic())
}

func TestCommitPacketBindsTimeoutsAndData(t *testing.T) {
	packet := types.NewPacket([]byte("data"), 1, "mock", "channel-0", "mock", "channel-0", 10, 20)
	commitment := types.CommitPacket(packet)
	require.Len(t, commitment, 32)
	require.Equal(t, commitment, types.CommitPacket(packet))

	tampered := packet
	tampered.Data = []byte("other")
	require.NotEqual(t, commitment, types.CommitPacket(tampered))

	tampered = packet
	tampered.TimeoutHeight = 11
	require.NotEqual(t, commitment, types.CommitPacket(tampered))

	tampered = packet
	tampered.TimeoutTimestamp = 21
	require.NotEqual(t, commitment, types.CommitPacket(tampered))

	// the commitment does not bind routing fields, they are checked against
	// the stored channel ends instead
	rerouted := packet
	rerouted.DestinationChannel = "channel-9"
	require.Equal(t, commitment, types.CommitPacket(rerouted))
}

func TestFormatIdentifiers(t *testing.T) {
	require.Equal(t, "07-tendermint-0", types.FormatClientIdentifier("07-tendermint", 0))
	require.Equal(t, "connection-3", types.FormatConnectionIdentifier(3))
	require.Equal(t, "channel-12", types.FormatChannelIdentifier(12))
}
