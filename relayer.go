package ibcsim

import (
	"encoding/hex"

	"github.com/armon/go-metrics"
	"github.com/pkg/errors"
	abci "github.com/tendermint/tendermint/abci/types"
	tmlog "github.com/tendermint/tendermint/libs/log"

	"github.com/interop-labs/ibcsim/core/types"
	"github.com/interop-labs/ibcsim/host"
)

// relayEnd is one side of a relayed path: the chain, the identifiers
// discovered from its events, and the cursor into its event log.
type relayEnd struct {
	chain *Chain

	clientID     string
	connectionID string
	channelID    string
	portID       string

	cursor int
}

// Relayer drives handshake and packet workflows between two chains by
// watching their event logs. Each chain has a cursor; events emitted since
// the cursor are read in order, events that need no response are skipped, and
// for the rest the next-step message is synthesized and delivered to the
// peer. A missing resource, such as a proof pruned from history, is a hard
// failure: the relayer never retries.
type Relayer struct {
	logger tmlog.Logger
	a, b   *relayEnd
}

// NewRelayer returns a relayer watching both chains from the start of their
// event logs.
func NewRelayer(chainA, chainB *Chain) *Relayer {
	return &Relayer{
		logger: tmlog.NewNopLogger(),
		a:      &relayEnd{chain: chainA},
		b:      &relayEnd{chain: chainB},
	}
}

// WithLogger replaces the relayer's logger.
func (r *Relayer) WithLogger(logger tmlog.Logger) *Relayer {
	r.logger = logger
	return r
}

// ClientIDs returns the client identifiers the relayer operates, chain A's
// first.
func (r *Relayer) ClientIDs() (string, string) { return r.a.clientID, r.b.clientID }

// ConnectionIDs returns the connection identifiers discovered during the
// handshake, chain A's first.
func (r *Relayer) ConnectionIDs() (string, string) { return r.a.connectionID, r.b.connectionID }

// ChannelIDs returns the channel identifiers discovered during the
// handshake, chain A's first.
func (r *Relayer) ChannelIDs() (string, string) { return r.a.channelID, r.b.channelID }

// CreateClients creates a client on each chain tracking the other, using the
// given backend-specific client params (nil means backend defaults).
func (r *Relayer) CreateClients(paramsA, paramsB host.ClientParams) error {
	if err := r.createClient(r.a, r.b, paramsA); err != nil {
		return err
	}
	return r.createClient(r.b, r.a, paramsB)
}

func (r *Relayer) createClient(end, peer *relayEnd, params host.ClientParams) error {
	// the peer must have committed state for the client to anchor on
	if err := peer.chain.NextBlock(); err != nil {
		return err
	}

	latestHeight := peer.chain.LatestHeight()
	clientState, err := peer.chain.Host.GenerateClientState(latestHeight, params)
	if err != nil {
		return err
	}
	consensusState := peer.chain.Host.LatestBlock().Header().ConsensusState()

	res, err := end.chain.SendMsgs(types.MsgCreateClient{
		ClientState:    clientState,
		ConsensusState: consensusState,
		Signer:         end.chain.SenderAccount,
	})
	if err != nil {
		return err
	}

	end.clientID, err = ParseClientIDFromEvents(res.Events)
	if err != nil {
		return err
	}
	r.logger.Info("created client", "chain_id", end.chain.ChainID, "client_id", end.clientID)
	return nil
}

// InitConnection submits a connection INIT on chain A. The rest of the
// handshake is driven by RelayPending.
func (r *Relayer) InitConnection(delayPeriod uint64) error {
	if r.a.clientID == "" || r.b.clientID == "" {
		return errors.New("clients must be created before initializing a connection")
	}
	_, err := r.a.chain.SendMsgs(types.MsgConnectionOpenInit{
		ClientID:             r.a.clientID,
		CounterpartyClientID: r.b.clientID,
		CounterpartyPrefix:   types.StoreKey,
		DelayPeriod:          delayPeriod,
		Signer:               r.a.chain.SenderAccount,
	})
	return err
}

// InitChannel submits a channel INIT on chain A over the relayed connection.
// The rest of the handshake is driven by RelayPending.
func (r *Relayer) InitChannel(portA, portB string, order types.ChannelOrder, version string) error {
	if r.a.connectionID == "" || r.b.connectionID == "" {
		return errors.New("connection handshake must complete before initializing a channel")
	}

	channel := types.NewChannel(types.ChannelUninitialized, order, types.ChannelCounterparty{
		PortID: portB,
	}, []string{r.a.connectionID}, version)

	_, err := r.a.chain.SendMsgs(types.MsgChannelOpenInit{
		PortID:  portA,
		Channel: channel,
		Signer:  r.a.chain.SenderAccount,
	})
	return err
}

// RelayPending processes both event logs until no unprocessed events remain,
// and returns the number of messages delivered. Handshakes initiated on
// either chain are driven to completion and packets are received and
// acknowledged in causal order.
func (r *Relayer) RelayPending() (int, error) {
	relayed := 0
	for {
		nA, pA, err := r.relayFrom(r.a, r.b)
		relayed += nA
		if err != nil {
			return relayed, err
		}
		nB, pB, err := r.relayFrom(r.b, r.a)
		relayed += nB
		if err != nil {
			return relayed, err
		}
		if pA+pB == 0 {
			metrics.IncrCounter([]string{"ibcsim", "relayer", "relayed"}, float32(relayed))
			return relayed, nil
		}
	}
}

func (r *Relayer) relayFrom(src, dst *relayEnd) (responses, processed int, err error) {
	for src.cursor < len(src.chain.EventLog()) {
		ev := src.chain.EventLog()[src.cursor]
		src.cursor++
		processed++

		n, err := r.handleEvent(src, dst, ev)
		if err != nil {
			return responses, processed, errors.Wrapf(err, "relaying %s event from %s", ev.Type, src.chain.ChainID)
		}
		responses += n
	}
	return responses, processed, nil
}

// handleEvent reacts to a single event observed on src by synthesizing the
// next protocol step and delivering it to dst. Events that represent a
// terminal step are skipped.
func (r *Relayer) handleEvent(src, dst *relayEnd, ev abci.Event) (int, error) {
	switch ev.Type {
	case types.EventTypeConnectionOpenInit:
		return r.relayConnOpenTry(src, dst, ev)
	case types.EventTypeConnectionOpenTry:
		return r.relayConnOpenAck(src, dst, ev)
	case types.EventTypeConnectionOpenAck:
		return r.relayConnOpenConfirm(src, dst, ev)
	case types.EventTypeChannelOpenInit:
		return r.relayChanOpenTry(src, dst, ev)
	case types.EventTypeChannelOpenTry:
		return r.relayChanOpenAck(src, dst, ev)
	case types.EventTypeChannelOpenAck:
		return r.relayChanOpenConfirm(src, dst, ev)
	case types.EventTypeSendPacket:
		return r.relayRecvPacket(src, dst, ev)
	case types.EventTypeWriteAck:
		return r.relayAcknowledgement(src, dst, ev)
	default:
		// client updates, confirmations and packet terminal events need no
		// response
		return 0, nil
	}
}

func (r *Relayer) relayConnOpenTry(src, dst *relayEnd, ev abci.Event) (int, error) {
	connectionID, err := eventAttribute(ev, types.AttributeKeyConnectionID)
	if err != nil {
		return 0, err
	}
	clientID, err := eventAttribute(ev, types.AttributeKeyClientID)
	if err != nil {
		return 0, err
	}
	counterpartyClientID, err := eventAttribute(ev, types.AttributeKeyCounterpartyClientID)
	if err != nil {
		return 0, err
	}

	src.connectionID = connectionID
	if src.clientID == "" {
		src.clientID = clientID
	}
	if dst.clientID == "" {
		dst.clientID = counterpartyClientID
	}

	if err := r.updateClient(dst, src); err != nil {
		return 0, err
	}

	counterpartyClient, err := src.chain.GetClientState(clientID)
	if err != nil {
		return 0, err
	}
	connection, err := src.chain.Keeper.GetConnection(connectionID)
	if err != nil {
		return 0, err
	}

	proofHeight, err := r.clientHeight(dst)
	if err != nil {
		return 0, err
	}
	proofInit, _, err := src.chain.QueryProofAtHeight([]byte(types.ConnectionPath(connectionID)), proofHeight)
	if err != nil {
		return 0, err
	}
	proofClient, _, err := src.chain.QueryProofAtHeight([]byte(types.FullClientStatePath(clientID)), proofHeight)
	if err != nil {
		return 0, err
	}

	_, err = dst.chain.SendMsgs(types.MsgConnectionOpenTry{
		ClientID:                 dst.clientID,
		CounterpartyClientID:     clientID,
		CounterpartyConnectionID: connectionID,
		CounterpartyPrefix:       types.StoreKey,
		CounterpartyClient:       counterpartyClient,
		DelayPeriod:              connection.DelayPeriod,
		ProofInit:                proofInit,
		ProofClient:              proofClient,
		ProofHeight:              proofHeight,
		ConsensusHeight:          counterpartyClient.GetLatestHeight(),
		Signer:                   dst.chain.SenderAccount,
	})
	if err != nil {
		return 0, err
	}
	r.logger.Info("relayed connection open try", "chain_id", dst.chain.ChainID)
	return 1, nil
}

func (r *Relayer) relayConnOpenAck(src, dst *relayEnd, ev abci.Event) (int, error) {
	connectionID, err := eventAttribute(ev, types.AttributeKeyConnectionID)
	if err != nil {
		return 0, err
	}
	clientID, err := eventAttribute(ev, types.AttributeKeyClientID)
	if err != nil {
		return 0, err
	}
	counterpartyConnectionID, err := eventAttribute(ev, types.AttributeKeyCounterpartyConnectionID)
	if err != nil {
		return 0, err
	}

	src.connectionID = connectionID

	if err := r.updateClient(dst, src); err != nil {
		return 0, err
	}

	counterpartyClient, err := src.chain.GetClientState(clientID)
	if err != nil {
		return 0, err
	}

	proofHeight, err := r.clientHeight(dst)
	if err != nil {
		return 0, err
	}
	proofTry, _, err := src.chain.QueryProofAtHeight([]byte(types.ConnectionPath(connectionID)), proofHeight)
	if err != nil {
		return 0, err
	}
	proofClient, _, err := src.chain.QueryProofAtHeight([]byte(types.FullClientStatePath(clientID)), proofHeight)
	if err != nil {
		return 0, err
	}

	_, err = dst.chain.SendMsgs(types.MsgConnectionOpenAck{
		ConnectionID:             counterpartyConnectionID,
		CounterpartyConnectionID: connectionID,
		CounterpartyClient:       counterpartyClient,
		ProofTry:                 proofTry,
		ProofClient:              proofClient,
		ProofHeight:              proofHeight,
		ConsensusHeight:          counterpartyClient.GetLatestHeight(),
		Signer:                   dst.chain.SenderAccount,
	})
	if err != nil {
		return 0, err
	}
	r.logger.Info("relayed connection open ack", "chain_id", dst.chain.ChainID)
	return 1, nil
}

func (r *Relayer) relayConnOpenConfirm(src, dst *relayEnd, ev abci.Event) (int, error) {
	connectionID, err := eventAttribute(ev, types.AttributeKeyConnectionID)
	if err != nil {
		return 0, err
	}
	counterpartyConnectionID, err := eventAttribute(ev, types.AttributeKeyCounterpartyConnectionID)
	if err != nil {
		return 0, err
	}

	if err := r.updateClient(dst, src); err != nil {
		return 0, err
	}

	proofHeight, err := r.clientHeight(dst)
	if err != nil {
		return 0, err
	}
	proofAck, _, err := src.chain.QueryProofAtHeight([]byte(types.ConnectionPath(connectionID)), proofHeight)
	if err != nil {
		return 0, err
	}

	_, err = dst.chain.SendMsgs(types.MsgConnectionOpenConfirm{
		ConnectionID: counterpartyConnectionID,
		ProofAck:     proofAck,
		ProofHeight:  proofHeight,
		Signer:       dst.chain.SenderAccount,
	})
	if err != nil {
		return 0, err
	}
	r.logger.Info("relayed connection open confirm", "chain_id", dst.chain.ChainID)
	return 1, nil
}

func (r *Relayer) relayChanOpenTry(src, dst *relayEnd, ev abci.Event) (int, error) {
	portID, err := eventAttribute(ev, types.AttributeKeyPortID)
	if err != nil {
		return 0, err
	}
	channelID, err := eventAttribute(ev, types.AttributeKeyChannelID)
	if err != nil {
		return 0, err
	}
	counterpartyPortID, err := eventAttribute(ev, types.AttributeKeyCounterpartyPortID)
	if err != nil {
		return 0, err
	}
	connectionID, err := eventAttribute(ev, types.AttributeKeyConnectionID)
	if err != nil {
		return 0, err
	}

	src.portID, src.channelID = portID, channelID
	dst.portID = counterpartyPortID

	srcChannel, err := src.chain.Keeper.GetChannel(portID, channelID)
	if err != nil {
		return 0, err
	}
	srcConnection, err := src.chain.Keeper.GetConnection(connectionID)
	if err != nil {
		return 0, err
	}

	if err := r.updateClient(dst, src); err != nil {
		return 0, err
	}

	proofHeight, err := r.clientHeight(dst)
	if err != nil {
		return 0, err
	}
	proofInit, _, err := src.chain.QueryProofAtHeight([]byte(types.ChannelPath(portID, channelID)), proofHeight)
	if err != nil {
		return 0, err
	}

	channel := types.NewChannel(types.ChannelUninitialized, srcChannel.Ordering, types.ChannelCounterparty{
		PortID:    portID,
		ChannelID: channelID,
	}, []string{srcConnection.Counterparty.ConnectionID}, srcChannel.Version)

	_, err = dst.chain.SendMsgs(types.MsgChannelOpenTry{
		PortID:              counterpartyPortID,
		Channel:             channel,
		CounterpartyVersion: srcChannel.Version,
		ProofInit:           proofInit,
		ProofHeight:         proofHeight,
		Signer:              dst.chain.SenderAccount,
	})
	if err != nil {
		return 0, err
	}
	r.logger.Info("relayed channel open try", "chain_id", dst.chain.ChainID)
	return 1, nil
}

func (r *Relayer) relayChanOpenAck(src, dst *relayEnd, ev abci.Event) (int, error) {
	portID, err := eventAttribute(ev, types.AttributeKeyPortID)
	if err != nil {
		return 0, err
	}
	channelID, err := eventAttribute(ev, types.AttributeKeyChannelID)
	if err != nil {
		return 0, err
	}
	counterpartyPortID, err := eventAttribute(ev, types.AttributeKeyCounterpartyPortID)
	if err != nil {
		return 0, err
	}
	counterpartyChannelID, err := eventAttribute(ev, types.AttributeKeyCounterpartyChannelID)
	if err != nil {
		return 0, err
	}

	src.portID, src.channelID = portID, channelID

	srcChannel, err := src.chain.Keeper.GetChannel(portID, channelID)
	if err != nil {
		return 0, err
	}

	if err := r.updateClient(dst, src); err != nil {
		return 0, err
	}

	proofHeight, err := r.clientHeight(dst)
	if err != nil {
		return 0, err
	}
	proofTry, _, err := src.chain.QueryProofAtHeight([]byte(types.ChannelPath(portID, channelID)), proofHeight)
	if err != nil {
		return 0, err
	}

	_, err = dst.chain.SendMsgs(types.MsgChannelOpenAck{
		PortID:                counterpartyPortID,
		ChannelID:             counterpartyChannelID,
		CounterpartyChannelID: channelID,
		CounterpartyVersion:   srcChannel.Version,
		ProofTry:              proofTry,
		ProofHeight:           proofHeight,
		Signer:                dst.chain.SenderAccount,
	})
	if err != nil {
		return 0, err
	}
	r.logger.Info("relayed channel open ack", "chain_id", dst.chain.ChainID)
	return 1, nil
}

func (r *Relayer) relayChanOpenConfirm(src, dst *relayEnd, ev abci.Event) (int, error) {
	portID, err := eventAttribute(ev, types.AttributeKeyPortID)
	if err != nil {
		return 0, err
	}
	channelID, err := eventAttribute(ev, types.AttributeKeyChannelID)
	if err != nil {
		return 0, err
	}
	counterpartyPortID, err := eventAttribute(ev, types.AttributeKeyCounterpartyPortID)
	if err != nil {
		return 0, err
	}
	counterpartyChannelID, err := eventAttribute(ev, types.AttributeKeyCounterpartyChannelID)
	if err != nil {
		return 0, err
	}

	if err := r.updateClient(dst, src); err != nil {
		return 0, err
	}

	proofHeight, err := r.clientHeight(dst)
	if err != nil {
		return 0, err
	}
	proofAck, _, err := src.chain.QueryProofAtHeight([]byte(types.ChannelPath(portID, channelID)), proofHeight)
	if err != nil {
		return 0, err
	}

	_, err = dst.chain.SendMsgs(types.MsgChannelOpenConfirm{
		PortID:      counterpartyPortID,
		ChannelID:   counterpartyChannelID,
		ProofAck:    proofAck,
		ProofHeight: proofHeight,
		Signer:      dst.chain.SenderAccount,
	})
	if err != nil {
		return 0, err
	}
	r.logger.Info("relayed channel open confirm", "chain_id", dst.chain.ChainID)
	return 1, nil
}

func (r *Relayer) relayRecvPacket(src, dst *relayEnd, ev abci.Event) (int, error) {
	packet, err := parsePacketFromEvent(ev)
	if err != nil {
		return 0, err
	}

	if err := r.updateClient(dst, src); err != nil {
		return 0, err
	}

	proofHeight, err := r.clientHeight(dst)
	if err != nil {
		return 0, err
	}
	commitmentKey := []byte(types.PacketCommitmentPath(packet.SourcePort, packet.SourceChannel, packet.Sequence))
	proof, _, err := src.chain.QueryProofAtHeight(commitmentKey, proofHeight)
	if err != nil {
		return 0, err
	}

	_, err = dst.chain.SendMsgs(types.MsgRecvPacket{
		Packet:          packet,
		ProofCommitment: proof,
		ProofHeight:     proofHeight,
		Signer:          dst.chain.SenderAccount,
	})
	if err != nil {
		return 0, err
	}
	r.logger.Info("relayed packet", "chain_id", dst.chain.ChainID, "sequence", packet.Sequence)
	return 1, nil
}

func (r *Relayer) relayAcknowledgement(src, dst *relayEnd, ev abci.Event) (int, error) {
	packet, err := parsePacketFromEvent(ev)
	if err != nil {
		return 0, err
	}
	ackAttr, err := eventAttribute(ev, types.AttributeKeyAckHex)
	if err != nil {
		return 0, err
	}
	ack, err := hex.DecodeString(ackAttr)
	if err != nil {
		return 0, err
	}

	if err := r.updateClient(dst, src); err != nil {
		return 0, err
	}

	proofHeight, err := r.clientHeight(dst)
	if err != nil {
		return 0, err
	}
	ackKey := []byte(types.PacketAcknowledgementPath(packet.DestinationPort, packet.DestinationChannel, packet.Sequence))
	proof, _, err := src.chain.QueryProofAtHeight(ackKey, proofHeight)
	if err != nil {
		return 0, err
	}

	_, err = dst.chain.SendMsgs(types.MsgAcknowledgement{
		Packet:          packet,
		Acknowledgement: ack,
		ProofAcked:      proof,
		ProofHeight:     proofHeight,
		Signer:          dst.chain.SenderAccount,
	})
	if err != nil {
		return 0, err
	}
	r.logger.Info("relayed acknowledgement", "chain_id", dst.chain.ChainID, "sequence", packet.Sequence)
	return 1, nil
}

// updateClient brings dst's client up to src's latest height. A client
// already at or past that height is left alone.
func (r *Relayer) updateClient(dst, src *relayEnd) error {
	if dst.clientID == "" {
		return errors.Errorf("no client known on %s", dst.chain.ChainID)
	}

	clientState, err := dst.chain.GetClientState(dst.clientID)
	if err != nil {
		return err
	}
	if clientState.GetLatestHeight() >= src.chain.LatestHeight() {
		return nil
	}

	header, err := src.chain.Host.LatestBlock().Header().Pack()
	if err != nil {
		return err
	}

	_, err = dst.chain.SendMsgs(types.MsgUpdateClient{
		ClientID: dst.clientID,
		Header:   header,
		Signer:   dst.chain.SenderAccount,
	})
	return err
}

func (r *Relayer) clientHeight(end *relayEnd) (uint64, error) {
	clientState, err := end.chain.GetClientState(end.clientID)
	if err != nil {
		return 0, err
	}
	return clientState.GetLatestHeight(), nil
}

func eventAttribute(ev abci.Event, key string) (string, error) {
	if attr, found := attributeByKey(ev.Attributes, key); found {
		return string(attr.Value), nil
	}
	return "", errors.Errorf("event %s is missing attribute %s", ev.Type, key)
}
