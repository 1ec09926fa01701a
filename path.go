package ibcsim

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/interop-labs/ibcsim/core/types"
)

// Path contains two endpoints representing two chains connected over IBC.
type Path struct {
	EndpointA *Endpoint
	EndpointB *Endpoint
}

// NewPath constructs an endpoint for each chain using the default values for
// the endpoints. Each endpoint is updated to have a pointer to the
// counterparty endpoint.
func NewPath(chainA, chainB *Chain) *Path {
	endpointA := NewDefaultEndpoint(chainA)
	endpointB := NewDefaultEndpoint(chainB)

	endpointA.Counterparty = endpointB
	endpointB.Counterparty = endpointA

	return &Path{
		EndpointA: endpointA,
		EndpointB: endpointB,
	}
}

// Setup constructs clients, an open connection and an open channel on both
// chains.
func (path *Path) Setup() {
	path.SetupConnections()
	path.CreateChannels()
}

// SetupClients creates a client on each endpoint tracking the counterparty.
func (path *Path) SetupClients() {
	tb := path.EndpointA.Chain.TB
	if err := path.EndpointA.CreateClient(); err != nil {
		tb.Fatalf("creating client on %s: %v", path.EndpointA.Chain.ChainID, err)
	}
	if err := path.EndpointB.CreateClient(); err != nil {
		tb.Fatalf("creating client on %s: %v", path.EndpointB.Chain.ChainID, err)
	}
}

// SetupConnections creates clients and an open connection between the two
// endpoints.
func (path *Path) SetupConnections() {
	path.SetupClients()
	path.CreateConnections()
}

// CreateConnections runs the connection handshake to completion, endpoint A
// initiating.
func (path *Path) CreateConnections() {
	tb := path.EndpointA.Chain.TB

	if err := path.EndpointA.ConnOpenInit(); err != nil {
		tb.Fatalf("connection open init: %v", err)
	}
	if err := path.EndpointB.ConnOpenTry(); err != nil {
		tb.Fatalf("connection open try: %v", err)
	}
	if err := path.EndpointA.ConnOpenAck(); err != nil {
		tb.Fatalf("connection open ack: %v", err)
	}
	if err := path.EndpointB.ConnOpenConfirm(); err != nil {
		tb.Fatalf("connection open confirm: %v", err)
	}

	// the confirm step is not observed by endpoint A's client yet
	if err := path.EndpointA.UpdateClient(); err != nil {
		tb.Fatalf("updating client after handshake: %v", err)
	}
}

// CreateChannels runs the channel handshake to completion, endpoint A
// initiating.
func (path *Path) CreateChannels() {
	tb := path.EndpointA.Chain.TB

	if err := path.EndpointA.ChanOpenInit(); err != nil {
		tb.Fatalf("channel open init: %v", err)
	}
	if err := path.EndpointB.ChanOpenTry(); err != nil {
		tb.Fatalf("channel open try: %v", err)
	}
	if err := path.EndpointA.ChanOpenAck(); err != nil {
		tb.Fatalf("channel open ack: %v", err)
	}
	if err := path.EndpointB.ChanOpenConfirm(); err != nil {
		tb.Fatalf("channel open confirm: %v", err)
	}

	if err := path.EndpointA.UpdateClient(); err != nil {
		tb.Fatalf("updating client after handshake: %v", err)
	}
}

// RelayPacket receives a packet on the counterparty chain and acknowledges it
// on the source, trying both directions.
func (path *Path) RelayPacket(packet types.Packet) error {
	if commitment := path.EndpointA.Chain.Keeper.GetPacketCommitment(packet.SourcePort, packet.SourceChannel, packet.Sequence); bytes.Equal(commitment, types.CommitPacket(packet)) {
		return relayPacket(path.EndpointB, path.EndpointA, packet)
	}
	if commitment := path.EndpointB.Chain.Keeper.GetPacketCommitment(packet.SourcePort, packet.SourceChannel, packet.Sequence); bytes.Equal(commitment, types.CommitPacket(packet)) {
		return relayPacket(path.EndpointA, path.EndpointB, packet)
	}
	return errors.New("packet commitment does not exist on either endpoint for provided packet")
}

func relayPacket(receiver, sender *Endpoint, packet types.Packet) error {
	res, err := receiver.RecvPacket(packet)
	if err != nil {
		return err
	}
	ack, err := ParseAckFromEvents(res.Events)
	if err != nil {
		return err
	}
	return sender.AcknowledgePacket(packet, ack)
}
