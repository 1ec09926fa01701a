package ibcsim

import (
	"github.com/stretchr/testify/require"

	"github.com/interop-labs/ibcsim/core/types"
	"github.com/interop-labs/ibcsim/host"
	"github.com/interop-labs/ibcsim/store"
)

// Endpoint represents a channel endpoint and its associated client and
// connection. Endpoint functions use the configuration structs when building
// handshake messages.
type Endpoint struct {
	Chain        *Chain
	Counterparty *Endpoint
	ClientID     string
	ConnectionID string
	ChannelID    string

	// ClientConfig is the backend-specific client configuration. Nil means
	// backend defaults.
	ClientConfig     host.ClientParams
	ConnectionConfig *ConnectionConfig
	ChannelConfig    *ChannelConfig
}

// NewEndpoint constructs a new endpoint without the counterparty.
// CONTRACT: the counterparty endpoint must be set by the caller.
func NewEndpoint(chain *Chain, clientConfig host.ClientParams,
	connectionConfig *ConnectionConfig, channelConfig *ChannelConfig,
) *Endpoint {
	return &Endpoint{
		Chain:            chain,
		ClientConfig:     clientConfig,
		ConnectionConfig: connectionConfig,
		ChannelConfig:    channelConfig,
	}
}

// NewDefaultEndpoint constructs a new endpoint using default values.
// CONTRACT: the counterparty endpoint must be set by the caller.
func NewDefaultEndpoint(chain *Chain) *Endpoint {
	return &Endpoint{
		Chain:            chain,
		ConnectionConfig: NewConnectionConfig(),
		ChannelConfig:    NewChannelConfig(),
	}
}

// QueryProof queries a proof on the endpoint's chain for the given module
// store key, at the latest height of the counterparty's client.
func (endpoint *Endpoint) QueryProof(key []byte) (store.MerkleProof, uint64) {
	clientState, err := endpoint.Counterparty.Chain.GetClientState(endpoint.Counterparty.ClientID)
	require.NoError(endpoint.Chain.TB, err)

	return endpoint.QueryProofAtHeight(key, clientState.GetLatestHeight())
}

// QueryProofAtHeight queries a proof on the endpoint's chain for the given
// module store key at the provided height.
func (endpoint *Endpoint) QueryProofAtHeight(key []byte, height uint64) (store.MerkleProof, uint64) {
	proof, proofHeight, err := endpoint.Chain.QueryProofAtHeight(key, height)
	require.NoError(endpoint.Chain.TB, err)

	return proof, proofHeight
}

// CreateClient creates a client on the endpoint tracking the counterparty
// chain and records the generated client identifier.
func (endpoint *Endpoint) CreateClient() error {
	// ensure counterparty has committed state
	endpoint.Chain.Coordinator.CommitBlock(endpoint.Counterparty.Chain)

	latestHeight := endpoint.Counterparty.Chain.LatestHeight()
	clientState, err := endpoint.Counterparty.Chain.Host.GenerateClientState(latestHeight, endpoint.ClientConfig)
	require.NoError(endpoint.Chain.TB, err)

	consensusState := endpoint.Counterparty.Chain.Host.LatestBlock().Header().ConsensusState()

	res, err := endpoint.Chain.SendMsgs(types.MsgCreateClient{
		ClientState:    clientState,
		ConsensusState: consensusState,
		Signer:         endpoint.Chain.SenderAccount,
	})
	if err != nil {
		return err
	}

	endpoint.ClientID, err = ParseClientIDFromEvents(res.Events)
	require.NoError(endpoint.Chain.TB, err)

	return nil
}

// UpdateClient updates the endpoint's client with the counterparty's latest
// header.
func (endpoint *Endpoint) UpdateClient() error {
	// ensure counterparty has committed state
	endpoint.Chain.Coordinator.CommitBlock(endpoint.Counterparty.Chain)

	header, err := endpoint.Counterparty.Chain.Host.LatestBlock().Header().Pack()
	require.NoError(endpoint.Chain.TB, err)

	_, err = endpoint.Chain.SendMsgs(types.MsgUpdateClient{
		ClientID: endpoint.ClientID,
		Header:   header,
		Signer:   endpoint.Chain.SenderAccount,
	})
	return err
}

// ConnOpenInit initializes a connection on the endpoint.
func (endpoint *Endpoint) ConnOpenInit() error {
	res, err := endpoint.Chain.SendMsgs(types.MsgConnectionOpenInit{
		ClientID:             endpoint.ClientID,
		CounterpartyClientID: endpoint.Counterparty.ClientID,
		CounterpartyPrefix:   types.StoreKey,
		DelayPeriod:          endpoint.ConnectionConfig.DelayPeriod,
		Signer:               endpoint.Chain.SenderAccount,
	})
	if err != nil {
		return err
	}

	endpoint.ConnectionID, err = ParseConnectionIDFromEvents(res.Events)
	require.NoError(endpoint.Chain.TB, err)

	return nil
}

// ConnOpenTry responds to the counterparty's connection INIT.
func (endpoint *Endpoint) ConnOpenTry() error {
	require.NoError(endpoint.Chain.TB, endpoint.UpdateClient())

	counterpartyClient, proofClient, proofInit, proofHeight, consensusHeight := endpoint.queryConnectionHandshakeProof()

	res, err := endpoint.Chain.SendMsgs(types.MsgConnectionOpenTry{
		ClientID:                 endpoint.ClientID,
		CounterpartyClientID:     endpoint.Counterparty.ClientID,
		CounterpartyConnectionID: endpoint.Counterparty.ConnectionID,
		CounterpartyPrefix:       types.StoreKey,
		CounterpartyClient:       counterpartyClient,
		DelayPeriod:              endpoint.ConnectionConfig.DelayPeriod,
		ProofInit:                proofInit,
		ProofClient:              proofClient,
		ProofHeight:              proofHeight,
		ConsensusHeight:          consensusHeight,
		Signer:                   endpoint.Chain.SenderAccount,
	})
	if err != nil {
		return err
	}

	if endpoint.ConnectionID == "" {
		endpoint.ConnectionID, err = ParseConnectionIDFromEvents(res.Events)
		require.NoError(endpoint.Chain.TB, err)
	}

	return nil
}

// ConnOpenAck responds to the counterparty's connection TRYOPEN.
func (endpoint *Endpoint) ConnOpenAck() error {
	require.NoError(endpoint.Chain.TB, endpoint.UpdateClient())

	counterpartyClient, proofClient, proofTry, proofHeight, consensusHeight := endpoint.queryConnectionHandshakeProof()

	_, err := endpoint.Chain.SendMsgs(types.MsgConnectionOpenAck{
		ConnectionID:             endpoint.ConnectionID,
		CounterpartyConnectionID: endpoint.Counterparty.ConnectionID,
		CounterpartyClient:       counterpartyClient,
		ProofTry:                 proofTry,
		ProofClient:              proofClient,
		ProofHeight:              proofHeight,
		ConsensusHeight:          consensusHeight,
		Signer:                   endpoint.Chain.SenderAccount,
	})
	return err
}

// ConnOpenConfirm finalizes the connection handshake on the endpoint.
func (endpoint *Endpoint) ConnOpenConfirm() error {
	require.NoError(endpoint.Chain.TB, endpoint.UpdateClient())

	connectionKey := []byte(types.ConnectionPath(endpoint.Counterparty.ConnectionID))
	proof, proofHeight := endpoint.Counterparty.QueryProof(connectionKey)

	_, err := endpoint.Chain.SendMsgs(types.MsgConnectionOpenConfirm{
		ConnectionID: endpoint.ConnectionID,
		ProofAck:     proof,
		ProofHeight:  proofHeight,
		Signer:       endpoint.Chain.SenderAccount,
	})
	return err
}

// queryConnectionHandshakeProof gathers everything ConnOpenTry and
// ConnOpenAck need from the counterparty: its stored client of this chain,
// the proof of that client state, the proof of the counterparty connection
// end, the height both proofs verify at, and the client's latest height.
func (endpoint *Endpoint) queryConnectionHandshakeProof() (
	counterpartyClient host.ClientState, proofClient store.MerkleProof,
	proofConnection store.MerkleProof, proofHeight, consensusHeight uint64,
) {
	counterpartyClient, err := endpoint.Counterparty.Chain.GetClientState(endpoint.Counterparty.ClientID)
	require.NoError(endpoint.Chain.TB, err)
	consensusHeight = counterpartyClient.GetLatestHeight()

	connectionKey := []byte(types.ConnectionPath(endpoint.Counterparty.ConnectionID))
	proofConnection, proofHeight = endpoint.Counterparty.QueryProof(connectionKey)

	clientKey := []byte(types.FullClientStatePath(endpoint.Counterparty.ClientID))
	proofClient, _ = endpoint.Counterparty.QueryProofAtHeight(clientKey, proofHeight)

	return counterpartyClient, proofClient, proofConnection, proofHeight, consensusHeight
}

// ChanOpenInit initializes a channel on the endpoint.
func (endpoint *Endpoint) ChanOpenInit() error {
	channel := types.NewChannel(types.ChannelUninitialized, endpoint.ChannelConfig.Order, types.ChannelCounterparty{
		PortID: endpoint.Counterparty.ChannelConfig.PortID,
	}, []string{endpoint.ConnectionID}, endpoint.ChannelConfig.Version)

	res, err := endpoint.Chain.SendMsgs(types.MsgChannelOpenInit{
		PortID:  endpoint.ChannelConfig.PortID,
		Channel: channel,
		Signer:  endpoint.Chain.SenderAccount,
	})
	if err != nil {
		return err
	}

	endpoint.ChannelID, err = ParseChannelIDFromEvents(res.Events)
	require.NoError(endpoint.Chain.TB, err)

	return nil
}

// ChanOpenTry responds to the counterparty's channel INIT.
func (endpoint *Endpoint) ChanOpenTry() error {
	require.NoError(endpoint.Chain.TB, endpoint.UpdateClient())

	channelKey := []byte(types.ChannelPath(endpoint.Counterparty.ChannelConfig.PortID, endpoint.Counterparty.ChannelID))
	proof, proofHeight := endpoint.Counterparty.QueryProof(channelKey)

	channel := types.NewChannel(types.ChannelUninitialized, endpoint.ChannelConfig.Order, types.ChannelCounterparty{
		PortID:    endpoint.Counterparty.ChannelConfig.PortID,
		ChannelID: endpoint.Counterparty.ChannelID,
	}, []string{endpoint.ConnectionID}, endpoint.ChannelConfig.Version)

	res, err := endpoint.Chain.SendMsgs(types.MsgChannelOpenTry{
		PortID:              endpoint.ChannelConfig.PortID,
		Channel:             channel,
		CounterpartyVersion: endpoint.Counterparty.ChannelConfig.Version,
		ProofInit:           proof,
		ProofHeight:         proofHeight,
		Signer:              endpoint.Chain.SenderAccount,
	})
	if err != nil {
		return err
	}

	if endpoint.ChannelID == "" {
		endpoint.ChannelID, err = ParseChannelIDFromEvents(res.Events)
		require.NoError(endpoint.Chain.TB, err)
	}

	return nil
}

// ChanOpenAck responds to the counterparty's channel TRYOPEN.
func (endpoint *Endpoint) ChanOpenAck() error {
	require.NoError(endpoint.Chain.TB, endpoint.UpdateClient())

	channelKey := []byte(types.ChannelPath(endpoint.Counterparty.ChannelConfig.PortID, endpoint.Counterparty.ChannelID))
	proof, proofHeight := endpoint.Counterparty.QueryProof(channelKey)

	_, err := endpoint.Chain.SendMsgs(types.MsgChannelOpenAck{
		PortID:                endpoint.ChannelConfig.PortID,
		ChannelID:             endpoint.ChannelID,
		CounterpartyChannelID: endpoint.Counterparty.ChannelID,
		CounterpartyVersion:   endpoint.Counterparty.ChannelConfig.Version,
		ProofTry:              proof,
		ProofHeight:           proofHeight,
		Signer:                endpoint.Chain.SenderAccount,
	})
	return err
}

// ChanOpenConfirm finalizes the channel handshake on the endpoint.
func (endpoint *Endpoint) ChanOpenConfirm() error {
	require.NoError(endpoint.Chain.TB, endpoint.UpdateClient())

	channelKey := []byte(types.ChannelPath(endpoint.Counterparty.ChannelConfig.PortID, endpoint.Counterparty.ChannelID))
	proof, proofHeight := endpoint.Counterparty.QueryProof(channelKey)

	_, err := endpoint.Chain.SendMsgs(types.MsgChannelOpenConfirm{
		PortID:      endpoint.ChannelConfig.PortID,
		ChannelID:   endpoint.ChannelID,
		ProofAck:    proof,
		ProofHeight: proofHeight,
		Signer:      endpoint.Chain.SenderAccount,
	})
	return err
}

// SendPacket commits a packet on the endpoint's channel and cycles the block
// so the commitment becomes provable.
func (endpoint *Endpoint) SendPacket(data []byte, timeoutHeight, timeoutTimestamp uint64) (types.Packet, error) {
	return endpoint.Chain.SendPacket(endpoint.ChannelConfig.PortID, endpoint.ChannelID, data, timeoutHeight, timeoutTimestamp)
}

// RecvPacket receives a packet sent by the counterparty. The returned result
// carries the write_acknowledgement event.
func (endpoint *Endpoint) RecvPacket(packet types.Packet) (*DeliveryResult, error) {
	require.NoError(endpoint.Chain.TB, endpoint.UpdateClient())

	commitmentKey := []byte(types.PacketCommitmentPath(packet.SourcePort, packet.SourceChannel, packet.Sequence))
	proof, proofHeight := endpoint.Counterparty.QueryProof(commitmentKey)

	return endpoint.Chain.SendMsgs(types.MsgRecvPacket{
		Packet:          packet,
		ProofCommitment: proof,
		ProofHeight:     proofHeight,
		Signer:          endpoint.Chain.SenderAccount,
	})
}

// AcknowledgePacket acknowledges a packet with the acknowledgement written by
// the counterparty.
func (endpoint *Endpoint) AcknowledgePacket(packet types.Packet, ack []byte) error {
	require.NoError(endpoint.Chain.TB, endpoint.UpdateClient())

	ackKey := []byte(types.PacketAcknowledgementPath(packet.DestinationPort, packet.DestinationChannel, packet.Sequence))
	proof, proofHeight := endpoint.Counterparty.QueryProof(ackKey)

	_, err := endpoint.Chain.SendMsgs(types.MsgAcknowledgement{
		Packet:          packet,
		Acknowledgement: ack,
		ProofAcked:      proof,
		ProofHeight:     proofHeight,
		Signer:          endpoint.Chain.SenderAccount,
	})
	return err
}

// GetClientState returns the client state stored for the endpoint's client.
func (endpoint *Endpoint) GetClientState() host.ClientState {
	clientState, err := endpoint.Chain.GetClientState(endpoint.ClientID)
	require.NoError(endpoint.Chain.TB, err)
	return clientState
}

// GetConnection returns the endpoint's connection end.
func (endpoint *Endpoint) GetConnection() types.ConnectionEnd {
	connection, err := endpoint.Chain.Keeper.GetConnection(endpoint.ConnectionID)
	require.NoError(endpoint.Chain.TB, err)
	return connection
}

// GetChannel returns the endpoint's channel end.
func (endpoint *Endpoint) GetChannel() types.Channel {
	channel, err := endpoint.Chain.Keeper.GetChannel(endpoint.ChannelConfig.PortID, endpoint.ChannelID)
	require.NoError(endpoint.Chain.TB, err)
	return channel
}
