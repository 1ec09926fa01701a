package keeper

import (
	"github.com/pkg/errors"

	"github.com/interop-labs/ibcsim/core/types"
)

// ChanOpenInit initializes a channel end in INIT and returns the generated
// channel identifier.
func (k *Keeper) ChanOpenInit(em *types.EventManager, msg types.MsgChannelOpenInit) (string, error) {
	connection, err := k.GetConnection(msg.Channel.ConnectionHops[0])
	if err != nil {
		return "", err
	}
	if connection.State != types.ConnectionOpen {
		return "", errors.Wrapf(types.ErrInvalidConnectionState, "connection %s is %s, expected OPEN", msg.Channel.ConnectionHops[0], connection.State)
	}

	sequence := k.nextSequence(types.KeyNextChannelSequence)
	channelID := types.FormatChannelIdentifier(sequence)

	channel := msg.Channel
	channel.State = types.ChannelInit
	if err := k.SetChannel(msg.PortID, channelID, channel); err != nil {
		return "", err
	}
	k.SetNextSequenceSend(msg.PortID, channelID, 1)
	k.SetNextSequenceRecv(msg.PortID, channelID, 1)

	em.EmitEvent(types.NewEvent(types.EventTypeChannelOpenInit,
		types.NewAttribute(types.AttributeKeyPortID, msg.PortID),
		types.NewAttribute(types.AttributeKeyChannelID, channelID),
		types.NewAttribute(types.AttributeKeyCounterpartyPortID, channel.Counterparty.PortID),
		types.NewAttribute(types.AttributeKeyConnectionID, channel.ConnectionHops[0]),
	))

	return channelID, nil
}

// ChanOpenTry responds to a channel INIT proven on the counterparty and
// stores a TRYOPEN end.
func (k *Keeper) ChanOpenTry(em *types.EventManager, msg types.MsgChannelOpenTry) (string, error) {
	connection, err := k.GetConnection(msg.Channel.ConnectionHops[0])
	if err != nil {
		return "", err
	}
	if connection.State != types.ConnectionOpen {
		return "", errors.Wrapf(types.ErrInvalidConnectionState, "connection %s is %s, expected OPEN", msg.Channel.ConnectionHops[0], connection.State)
	}

	// the counterparty's INIT end does not know this chain's channel id yet
	expected := types.NewChannel(types.ChannelInit, msg.Channel.Ordering, types.ChannelCounterparty{
		PortID: msg.PortID,
	}, []string{connection.Counterparty.ConnectionID}, msg.CounterpartyVersion)
	expectedBz, err := types.MarshalChannel(expected)
	if err != nil {
		return "", err
	}

	if err := k.verifyMembership(connection.ClientID, msg.ProofHeight, connection.Counterparty.Prefix,
		types.ChannelPath(msg.Channel.Counterparty.PortID, msg.Channel.Counterparty.ChannelID), expectedBz, msg.ProofInit); err != nil {
		return "", errors.Wrap(err, "channel open try: counterparty INIT not proven")
	}

	sequence := k.nextSequence(types.KeyNextChannelSequence)
	channelID := types.FormatChannelIdentifier(sequence)

	channel := msg.Channel
	channel.State = types.ChannelTryOpen
	if err := k.SetChannel(msg.PortID, channelID, channel); err != nil {
		return "", err
	}
	k.SetNextSequenceSend(msg.PortID, channelID, 1)
	k.SetNextSequenceRecv(msg.PortID, channelID, 1)

	em.EmitEvent(types.NewEvent(types.EventTypeChannelOpenTry,
		types.NewAttribute(types.AttributeKeyPortID, msg.PortID),
		types.NewAttribute(types.AttributeKeyChannelID, channelID),
		types.NewAttribute(types.AttributeKeyCounterpartyPortID, channel.Counterparty.PortID),
		types.NewAttribute(types.AttributeKeyCounterpartyChannelID, channel.Counterparty.ChannelID),
		types.NewAttribute(types.AttributeKeyConnectionID, channel.ConnectionHops[0]),
	))

	return channelID, nil
}

// ChanOpenAck opens the initiating channel end after the counterparty's
// TRYOPEN is proven.
func (k *Keeper) ChanOpenAck(em *types.EventManager, msg types.MsgChannelOpenAck) error {
	channel, err := k.GetChannel(msg.PortID, msg.ChannelID)
	if err != nil {
		return err
	}
	if channel.State != types.ChannelInit {
		return errors.Wrapf(types.ErrInvalidChannelState, "channel %s/%s is %s, expected INIT", msg.PortID, msg.ChannelID, channel.State)
	}

	connection, err := k.GetConnection(channel.ConnectionHops[0])
	if err != nil {
		return err
	}

	expected := types.NewChannel(types.ChannelTryOpen, channel.Ordering, types.ChannelCounterparty{
		PortID:    msg.PortID,
		ChannelID: msg.ChannelID,
	}, []string{connection.Counterparty.ConnectionID}, msg.CounterpartyVersion)
	expectedBz, err := types.MarshalChannel(expected)
	if err != nil {
		return err
	}

	if err := k.verifyMembership(connection.ClientID, msg.ProofHeight, connection.Counterparty.Prefix,
		types.ChannelPath(channel.Counterparty.PortID, msg.CounterpartyChannelID), expectedBz, msg.ProofTry); err != nil {
		return errors.Wrap(err, "channel open ack: counterparty TRYOPEN not proven")
	}

	channel.State = types.ChannelOpen
	channel.Counterparty.ChannelID = msg.CounterpartyChannelID
	channel.Version = msg.CounterpartyVersion
	if err := k.SetChannel(msg.PortID, msg.ChannelID, channel); err != nil {
		return err
	}

	em.EmitEvent(types.NewEvent(types.EventTypeChannelOpenAck,
		types.NewAttribute(types.AttributeKeyPortID, msg.PortID),
		types.NewAttribute(types.AttributeKeyChannelID, msg.ChannelID),
		types.NewAttribute(types.AttributeKeyCounterpartyPortID, channel.Counterparty.PortID),
		types.NewAttribute(types.AttributeKeyCounterpartyChannelID, msg.CounterpartyChannelID),
		types.NewAttribute(types.AttributeKeyConnectionID, channel.ConnectionHops[0]),
	))

	return nil
}

// ChanOpenConfirm opens the responding channel end after the counterparty's
// OPEN is proven.
func (k *Keeper) ChanOpenConfirm(em *types.EventManager, msg types.MsgChannelOpenConfirm) error {
	channel, err := k.GetChannel(msg.PortID, msg.ChannelID)
	if err != nil {
		return err
	}
	if channel.State != types.ChannelTryOpen {
		return errors.Wrapf(types.ErrInvalidChannelState, "channel %s/%s is %s, expected TRYOPEN", msg.PortID, msg.ChannelID, channel.State)
	}

	connection, err := k.GetConnection(channel.ConnectionHops[0])
	if err != nil {
		return err
	}

	expected := types.NewChannel(types.ChannelOpen, channel.Ordering, types.ChannelCounterparty{
		PortID:    msg.PortID,
		ChannelID: msg.ChannelID,
	}, []string{connection.Counterparty.ConnectionID}, channel.Version)
	expectedBz, err := types.MarshalChannel(expected)
	if err != nil {
		return err
	}

	if err := k.verifyMembership(connection.ClientID, msg.ProofHeight, connection.Counterparty.Prefix,
		types.ChannelPath(channel.Counterparty.PortID, channel.Counterparty.ChannelID), expectedBz, msg.ProofAck); err != nil {
		return errors.Wrap(err, "channel open confirm: counterparty OPEN not proven")
	}

	channel.State = types.ChannelOpen
	if err := k.SetChannel(msg.PortID, msg.ChannelID, channel); err != nil {
		return err
	}

	em.EmitEvent(types.NewEvent(types.EventTypeChannelOpenConfirm,
		types.NewAttribute(types.AttributeKeyPortID, msg.PortID),
		types.NewAttribute(types.AttributeKeyChannelID, msg.ChannelID),
		types.NewAttribute(types.AttributeKeyCounterpartyPortID, channel.Counterparty.PortID),
		types.NewAttribute(types.AttributeKeyCounterpartyChannelID, channel.Counterparty.ChannelID),
		types.NewAttribute(types.AttributeKeyConnectionID, channel.ConnectionHops[0]),
	))

	return nil
}
