package ibcsim_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/interop-labs/ibcsim"
	"github.com/interop-labs/ibcsim/core/types"
	"github.com/interop-labs/ibcsim/host/tendermint"
)

type HarnessTestSuite struct {
	suite.Suite

	coordinator *ibcsim.Coordinator

	chainA *ibcsim.Chain
	chainB *ibcsim.Chain
}

func TestHarnessTestSuite(t *testing.T) {
	suite.Run(t, new(HarnessTestSuite))
}

func (suite *HarnessTestSuite) SetupTest() {
	suite.coordinator = ibcsim.NewCoordinator(suite.T(), 2)
	suite.chainA = suite.coordinator.GetChain(ibcsim.GetChainID(1))
	suite.chainB = suite.coordinator.GetChain(ibcsim.GetChainID(2))
}

func (suite *HarnessTestSuite) TestCreateClients() {
	path := ibcsim.NewPath(suite.chainA, suite.chainB)
	path.SetupClients()

	clientStateA := path.EndpointA.GetClientState()
	suite.Require().Equal(suite.chainB.ChainID, clientStateA.GetChainID())
	suite.Require().Equal(tendermint.ClientType, clientStateA.ClientType())

	// the consensus state anchoring the client is stored at its latest height
	consensusState, err := suite.chainA.Keeper.GetClientConsensusState(path.EndpointA.ClientID, clientStateA.GetLatestHeight())
	suite.Require().NoError(err)

	anchor, ok := suite.chainB.Host.BlockAtHeight(clientStateA.GetLatestHeight())
	suite.Require().True(ok)
	suite.Require().Equal(anchor.Header().ConsensusState().GetRoot(), consensusState.GetRoot())
}

func (suite *HarnessTestSuite) TestClientUpdatesTrackCounterparty() {
	path := ibcsim.NewPath(suite.chainA, suite.chainB)
	path.SetupClients()

	before := path.EndpointA.GetClientState().GetLatestHeight()
	suite.Require().NoError(path.EndpointA.UpdateClient())

	after := path.EndpointA.GetClientState().GetLatestHeight()
	suite.Require().Greater(after, before)
	suite.Require().Equal(suite.chainB.LatestHeight(), after)
}

func (suite *HarnessTestSuite) TestConnectionHandshake() {
	path := ibcsim.NewPath(suite.chainA, suite.chainB)
	path.SetupConnections()

	connA := path.EndpointA.GetConnection()
	connB := path.EndpointB.GetConnection()

	suite.Require().Equal(types.ConnectionOpen, connA.State)
	suite.Require().Equal(types.ConnectionOpen, connB.State)

	suite.Require().Equal(path.EndpointB.ConnectionID, connA.Counterparty.ConnectionID)
	suite.Require().Equal(path.EndpointA.ConnectionID, connB.Counterparty.ConnectionID)
	suite.Require().Equal(path.EndpointB.ClientID, connA.Counterparty.ClientID)
	suite.Require().Equal(path.EndpointA.ClientID, connB.Counterparty.ClientID)
	suite.Require().Equal(types.StoreKey, connA.Counterparty.Prefix)
}

func (suite *HarnessTestSuite) TestChannelHandshake() {
	path := ibcsim.NewPath(suite.chainA, suite.chainB)
	path.Setup()

	chanA := path.EndpointA.GetChannel()
	chanB := path.EndpointB.GetChannel()

	suite.Require().Equal(types.ChannelOpen, chanA.State)
	suite.Require().Equal(types.ChannelOpen, chanB.State)

	suite.Require().Equal(path.EndpointB.ChannelID, chanA.Counterparty.ChannelID)
	suite.Require().Equal(path.EndpointA.ChannelID, chanB.Counterparty.ChannelID)
	suite.Require().Equal(ibcsim.DefaultChannelVersion, chanA.Version)
	suite.Require().Equal(ibcsim.DefaultChannelVersion, chanB.Version)
	suite.Require().Equal([]string{path.EndpointA.ConnectionID}, chanA.ConnectionHops)
}

func (suite *HarnessTestSuite) TestPacketRelay() {
	path := ibcsim.NewPath(suite.chainA, suite.chainB)
	path.Setup()

	packet, err := path.EndpointA.SendPacket([]byte("ping"), 0, 0)
	suite.Require().NoError(err)
	suite.Require().Equal(uint64(1), packet.Sequence)
	suite.Require().Equal(path.EndpointA.ChannelID, packet.SourceChannel)
	suite.Require().Equal(path.EndpointB.ChannelID, packet.DestinationChannel)

	suite.Require().NoError(path.RelayPacket(packet))

	// receipt and acknowledgement on the destination
	suite.Require().True(suite.chainB.Keeper.HasPacketReceipt(packet.DestinationPort, packet.DestinationChannel, packet.Sequence))
	ack := suite.chainB.Keeper.GetPacketAcknowledgement(packet.DestinationPort, packet.DestinationChannel, packet.Sequence)
	suite.Require().NotNil(ack)

	// the source commitment is deleted once acknowledged
	suite.Require().Nil(suite.chainA.Keeper.GetPacketCommitment(packet.SourcePort, packet.SourceChannel, packet.Sequence))
}

func (suite *HarnessTestSuite) TestPacketSequencesAdvance() {
	path := ibcsim.NewPath(suite.chainA, suite.chainB)
	path.Setup()

	for seq := uint64(1); seq <= 3; seq++ {
		packet, err := path.EndpointA.SendPacket([]byte(fmt.Sprintf("ping-%d", seq)), 0, 0)
		suite.Require().NoError(err)
		suite.Require().Equal(seq, packet.Sequence)
		suite.Require().NoError(path.RelayPacket(packet))
	}

	suite.Require().Equal(uint64(4), suite.chainA.Keeper.GetNextSequenceSend(path.EndpointA.ChannelConfig.PortID, path.EndpointA.ChannelID))
	suite.Require().Equal(uint64(4), suite.chainB.Keeper.GetNextSequenceRecv(path.EndpointB.ChannelConfig.PortID, path.EndpointB.ChannelID))
}

func (suite *HarnessTestSuite) TestDuplicateRecvRejected() {
	path := ibcsim.NewPath(suite.chainA, suite.chainB)
	path.Setup()

	packet, err := path.EndpointA.SendPacket([]byte("ping"), 0, 0)
	suite.Require().NoError(err)

	res, err := path.EndpointB.RecvPacket(packet)
	suite.Require().NoError(err)
	suite.Require().NotNil(res)

	_, err = path.EndpointB.RecvPacket(packet)
	suite.Require().Error(err)
}
