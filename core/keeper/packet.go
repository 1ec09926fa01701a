package keeper

import (
	"bytes"
	"encoding/hex"
	"strconv"

	"github.com/pkg/errors"
	abci "github.com/tendermint/tendermint/abci/types"

	"github.com/interop-labs/ibcsim/core/types"
)

// DefaultAcknowledgement is the acknowledgement the harness writes for every
// received packet. Application-level acknowledgements are out of scope; the
// relay workflow only needs deterministic bytes to prove.
var DefaultAcknowledgement = []byte{1}

// SendPacket commits an outgoing packet and emits the send_packet event the
// relayer watches. It is invoked directly by test code rather than through a
// message, matching how applications call into the module.
func (k *Keeper) SendPacket(em *types.EventManager, portID, channelID string, data []byte, timeoutHeight, timeoutTimestamp uint64) (types.Packet, error) {
	channel, err := k.GetChannel(portID, channelID)
	if err != nil {
		return types.Packet{}, err
	}
	if channel.State != types.ChannelOpen {
		return types.Packet{}, errors.Wrapf(types.ErrInvalidChannelState, "channel %s/%s is %s, expected OPEN", portID, channelID, channel.State)
	}

	sequence := k.GetNextSequenceSend(portID, channelID)
	packet := types.NewPacket(data, sequence, portID, channelID,
		channel.Counterparty.PortID, channel.Counterparty.ChannelID, timeoutHeight, timeoutTimestamp)

	k.SetPacketCommitment(portID, channelID, sequence, types.CommitPacket(packet))
	k.SetNextSequenceSend(portID, channelID, sequence+1)

	em.EmitEvent(types.NewEvent(types.EventTypeSendPacket, packetAttributes(packet)...))

	return packet, nil
}

// RecvPacket verifies the packet commitment proven on the source chain,
// records a receipt and writes the acknowledgement.
func (k *Keeper) RecvPacket(em *types.EventManager, msg types.MsgRecvPacket) error {
	packet := msg.Packet

	channel, err := k.GetChannel(packet.DestinationPort, packet.DestinationChannel)
	if err != nil {
		return err
	}
	if channel.State != types.ChannelOpen {
		return errors.Wrapf(types.ErrInvalidChannelState, "channel %s/%s is %s, expected OPEN", packet.DestinationPort, packet.DestinationChannel, channel.State)
	}
	if channel.Counterparty.PortID != packet.SourcePort || channel.Counterparty.ChannelID != packet.SourceChannel {
		return errors.Wrapf(types.ErrInvalidPacket, "packet source %s/%s does not match channel counterparty %s/%s",
			packet.SourcePort, packet.SourceChannel, channel.Counterparty.PortID, channel.Counterparty.ChannelID)
	}
	if k.HasPacketReceipt(packet.DestinationPort, packet.DestinationChannel, packet.Sequence) {
		return errors.Wrapf(types.ErrInvalidPacket, "packet sequence %d already received", packet.Sequence)
	}

	connection, err := k.GetConnection(channel.ConnectionHops[0])
	if err != nil {
		return err
	}

	if err := k.verifyMembership(connection.ClientID, msg.ProofHeight, connection.Counterparty.Prefix,
		types.PacketCommitmentPath(packet.SourcePort, packet.SourceChannel, packet.Sequence),
		types.CommitPacket(packet), msg.ProofCommitment); err != nil {
		return errors.Wrap(err, "recv packet: commitment not proven")
	}

	k.SetPacketReceipt(packet.DestinationPort, packet.DestinationChannel, packet.Sequence)
	k.SetNextSequenceRecv(packet.DestinationPort, packet.DestinationChannel, packet.Sequence+1)

	em.EmitEvent(types.NewEvent(types.EventTypeRecvPacket, packetAttributes(packet)...))

	ack := DefaultAcknowledgement
	k.SetPacketAcknowledgement(packet.DestinationPort, packet.DestinationChannel, packet.Sequence,
		types.CommitAcknowledgement(ack))

	em.EmitEvent(types.NewEvent(types.EventTypeWriteAck,
		append(packetAttributes(packet), types.NewAttribute(types.AttributeKeyAckHex, hex.EncodeToString(ack)))...))

	return nil
}

// AcknowledgePacket verifies the acknowledgement proven on the destination
// chain and clears the packet commitment.
func (k *Keeper) AcknowledgePacket(em *types.EventManager, msg types.MsgAcknowledgement) error {
	packet := msg.Packet

	channel, err := k.GetChannel(packet.SourcePort, packet.SourceChannel)
	if err != nil {
		return err
	}
	if channel.State != types.ChannelOpen {
		return errors.Wrapf(types.ErrInvalidChannelState, "channel %s/%s is %s, expected OPEN", packet.SourcePort, packet.SourceChannel, channel.State)
	}

	commitment := k.GetPacketCommitment(packet.SourcePort, packet.SourceChannel, packet.Sequence)
	if commitment == nil {
		return errors.Wrapf(types.ErrCommitmentNotFound, "port %s, channel %s, sequence %d", packet.SourcePort, packet.SourceChannel, packet.Sequence)
	}
	if !bytes.Equal(commitment, types.CommitPacket(packet)) {
		return errors.Wrap(types.ErrInvalidPacket, "packet does not match stored commitment")
	}

	connection, err := k.GetConnection(channel.ConnectionHops[0])
	if err != nil {
		return err
	}

	if err := k.verifyMembership(connection.ClientID, msg.ProofHeight, connection.Counterparty.Prefix,
		types.PacketAcknowledgementPath(packet.DestinationPort, packet.DestinationChannel, packet.Sequence),
		types.CommitAcknowledgement(msg.Acknowledgement), msg.ProofAcked); err != nil {
		return errors.Wrap(err, "acknowledge packet: acknowledgement not proven")
	}

	k.DeletePacketCommitment(packet.SourcePort, packet.SourceChannel, packet.Sequence)

	em.EmitEvent(types.NewEvent(types.EventTypeAcknowledgePacket, packetAttributes(packet)...))

	return nil
}

func packetAttributes(packet types.Packet) []abci.EventAttribute {
	return []abci.EventAttribute{
		types.NewAttribute(types.AttributeKeyDataHex, hex.EncodeToString(packet.Data)),
		types.NewAttribute(types.AttributeKeySequence, strconv.FormatUint(packet.Sequence, 10)),
		types.NewAttribute(types.AttributeKeySrcPort, packet.SourcePort),
		types.NewAttribute(types.AttributeKeySrcChannel, packet.SourceChannel),
		types.NewAttribute(types.AttributeKeyDstPort, packet.DestinationPort),
		types.NewAttribute(types.AttributeKeyDstChannel, packet.DestinationChannel),
		types.NewAttribute(types.AttributeKeyTimeoutHeight, strconv.FormatUint(packet.TimeoutHeight, 10)),
		types.NewAttribute(types.AttributeKeyTimeoutTimestamp, strconv.FormatUint(packet.TimeoutTimestamp, 10)),
	}
}
