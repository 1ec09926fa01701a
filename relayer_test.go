package ibcsim_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/interop-labs/ibcsim"
	"github.com/interop-labs/ibcsim/core/types"
	"github.com/interop-labs/ibcsim/store"
)

// setupRelayedChannel drives clients, connection and channel handshakes to
// completion through the event-cursor relayer and returns it with both chains.
func setupRelayedChannel(t *testing.T) (*ibcsim.Relayer, *ibcsim.Chain, *ibcsim.Chain) {
	t.Helper()

	coord := mockCoordinator(t, 2)
	chainA := coord.GetChain(ibcsim.GetChainID(1))
	chainB := coord.GetChain(ibcsim.GetChainID(2))

	relayer := ibcsim.NewRelayer(chainA, chainB)
	require.NoError(t, relayer.CreateClients(nil, nil))

	require.NoError(t, relayer.InitConnection(ibcsim.DefaultDelayPeriod))
	relayed, err := relayer.RelayPending()
	require.NoError(t, err)
	require.Equal(t, 3, relayed, "try, ack and confirm")

	require.NoError(t, relayer.InitChannel(ibcsim.MockPort, ibcsim.MockPort, types.Unordered, ibcsim.DefaultChannelVersion))
	relayed, err = relayer.RelayPending()
	require.NoError(t, err)
	require.Equal(t, 3, relayed, "try, ack and confirm")

	return relayer, chainA, chainB
}

func TestRelayerConnectionHandshake(t *testing.T) {
	relayer, chainA, chainB := setupRelayedChannel(t)

	connIDA, connIDB := relayer.ConnectionIDs()
	require.NotEmpty(t, connIDA)
	require.NotEmpty(t, connIDB)

	connA, err := chainA.Keeper.GetConnection(connIDA)
	require.NoError(t, err)
	connB, err := chainB.Keeper.GetConnection(connIDB)
	require.NoError(t, err)

	require.Equal(t, types.ConnectionOpen, connA.State)
	require.Equal(t, types.ConnectionOpen, connB.State)
	require.Equal(t, connIDB, connA.Counterparty.ConnectionID)
	require.Equal(t, connIDA, connB.Counterparty.ConnectionID)
}

func TestRelayerChannelHandshake(t *testing.T) {
	relayer, chainA, chainB := setupRelayedChannel(t)

	chanIDA, chanIDB := relayer.ChannelIDs()
	require.NotEmpty(t, chanIDA)
	require.NotEmpty(t, chanIDB)

	chanA, err := chainA.Keeper.GetChannel(ibcsim.MockPort, chanIDA)
	require.NoError(t, err)
	chanB, err := chainB.Keeper.GetChannel(ibcsim.MockPort, chanIDB)
	require.NoError(t, err)

	require.Equal(t, types.ChannelOpen, chanA.State)
	require.Equal(t, types.ChannelOpen, chanB.State)
	require.Equal(t, chanIDB, chanA.Counterparty.ChannelID)
	require.Equal(t, chanIDA, chanB.Counterparty.ChannelID)
	require.Equal(t, ibcsim.DefaultChannelVersion, chanA.Version)
}

func TestRelayerPacketFlow(t *testing.T) {
	relayer, chainA, chainB := setupRelayedChannel(t)
	chanIDA, chanIDB := relayer.ChannelIDs()

	packet, err := chainA.SendPacket(ibcsim.MockPort, chanIDA, []byte("ping"), 0, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(1), packet.Sequence)
	require.Equal(t, chanIDB, packet.DestinationChannel)

	relayed, err := relayer.RelayPending()
	require.NoError(t, err)
	require.Equal(t, 2, relayed, "recv and acknowledge")

	require.True(t, chainB.Keeper.HasPacketReceipt(ibcsim.MockPort, chanIDB, packet.Sequence))
	require.NotNil(t, chainB.Keeper.GetPacketAcknowledgement(ibcsim.MockPort, chanIDB, packet.Sequence))
	require.Nil(t, chainA.Keeper.GetPacketCommitment(ibcsim.MockPort, chanIDA, packet.Sequence))

	// nothing left to relay
	relayed, err = relayer.RelayPending()
	require.NoError(t, err)
	require.Zero(t, relayed)
}

func TestRelayerBidirectionalPackets(t *testing.T) {
	relayer, chainA, chainB := setupRelayedChannel(t)
	chanIDA, chanIDB := relayer.ChannelIDs()

	packetAB, err := chainA.SendPacket(ibcsim.MockPort, chanIDA, []byte("ping"), 0, 0)
	require.NoError(t, err)
	packetBA, err := chainB.SendPacket(ibcsim.MockPort, chanIDB, []byte("pong"), 0, 0)
	require.NoError(t, err)

	relayed, err := relayer.RelayPending()
	require.NoError(t, err)
	require.Equal(t, 4, relayed, "two receives and two acknowledgements")

	require.True(t, chainB.Keeper.HasPacketReceipt(ibcsim.MockPort, chanIDB, packetAB.Sequence))
	require.True(t, chainA.Keeper.HasPacketReceipt(ibcsim.MockPort, chanIDA, packetBA.Sequence))
	require.Nil(t, chainA.Keeper.GetPacketCommitment(ibcsim.MockPort, chanIDA, packetAB.Sequence))
	require.Nil(t, chainB.Keeper.GetPacketCommitment(ibcsim.MockPort, chanIDB, packetBA.Sequence))
}

func TestRelayerFailsHardOnPrunedProof(t *testing.T) {
	relayer, chainA, _ := setupRelayedChannel(t)
	chanIDA, _ := relayer.ChannelIDs()

	_, err := chainA.SendPacket(ibcsim.MockPort, chanIDA, []byte("ping"), 0, 0)
	require.NoError(t, err)

	// pruning till the current height drops the root proof the packet's
	// commitment would be proven with
	require.NoError(t, chainA.PruneBlockTill(chainA.LatestHeight()))

	_, err = relayer.RelayPending()
	require.Error(t, err)
	require.True(t, errors.Is(err, store.ErrHeightNotAvailable))
}
