package keeper

import (
	"github.com/pkg/errors"

	"github.com/interop-labs/ibcsim/core/types"
)

// ConnOpenInit initializes a connection end in INIT and returns the
// generated connection identifier.
func (k *Keeper) ConnOpenInit(em *types.EventManager, msg types.MsgConnectionOpenInit) (string, error) {
	if _, err := k.GetClientState(msg.ClientID); err != nil {
		return "", err
	}

	sequence := k.nextSequence(types.KeyNextConnectionSequence)
	connectionID := types.FormatConnectionIdentifier(sequence)

	counterparty := types.ConnectionCounterparty{
		ClientID: msg.CounterpartyClientID,
		Prefix:   msg.CounterpartyPrefix,
	}
	connection := types.NewConnectionEnd(types.ConnectionInit, msg.ClientID, counterparty, msg.DelayPeriod)
	if err := k.SetConnection(connectionID, connection); err != nil {
		return "", err
	}

	em.EmitEvent(types.NewEvent(types.EventTypeConnectionOpenInit,
		types.NewAttribute(types.AttributeKeyConnectionID, connectionID),
		types.NewAttribute(types.AttributeKeyClientID, msg.ClientID),
		types.NewAttribute(types.AttributeKeyCounterpartyClientID, msg.CounterpartyClientID),
	))

	return connectionID, nil
}

// ConnOpenTry responds to an INIT proven on the counterparty and stores a
// TRYOPEN end.
func (k *Keeper) ConnOpenTry(em *types.EventManager, msg types.MsgConnectionOpenTry) (string, error) {
	// the counterparty's INIT end references this chain's client with no
	// connection identifier assigned yet
	expected := types.NewConnectionEnd(types.ConnectionInit, msg.CounterpartyClientID, types.ConnectionCounterparty{
		ClientID: msg.ClientID,
		Prefix:   types.StoreKey,
	}, msg.DelayPeriod)
	expectedBz, err := types.MarshalConnectionEnd(expected)
	if err != nil {
		return "", err
	}

	if err := k.verifyMembership(msg.ClientID, msg.ProofHeight, msg.CounterpartyPrefix,
		types.ConnectionPath(msg.CounterpartyConnectionID), expectedBz, msg.ProofInit); err != nil {
		return "", errors.Wrap(err, "connection open try: counterparty INIT not proven")
	}

	if err := k.verifyCounterpartyClientState(msg.ClientID, msg.ProofHeight, msg.CounterpartyPrefix,
		msg.CounterpartyClientID, msg.CounterpartyClient, msg.ProofClient); err != nil {
		return "", errors.Wrap(err, "connection open try: counterparty client not proven")
	}

	sequence := k.nextSequence(types.KeyNextConnectionSequence)
	connectionID := types.FormatConnectionIdentifier(sequence)

	counterparty := types.ConnectionCounterparty{
		ClientID:     msg.CounterpartyClientID,
		ConnectionID: msg.CounterpartyConnectionID,
		Prefix:       msg.CounterpartyPrefix,
	}
	connection := types.NewConnectionEnd(types.ConnectionTryOpen, msg.ClientID, counterparty, msg.DelayPeriod)
	if err := k.SetConnection(connectionID, connection); err != nil {
		return "", err
	}

	em.EmitEvent(types.NewEvent(types.EventTypeConnectionOpenTry,
		types.NewAttribute(types.AttributeKeyConnectionID, connectionID),
		types.NewAttribute(types.AttributeKeyClientID, msg.ClientID),
		types.NewAttribute(types.AttributeKeyCounterpartyClientID, msg.CounterpartyClientID),
		types.NewAttribute(types.AttributeKeyCounterpartyConnectionID, msg.CounterpartyConnectionID),
	))

	return connectionID, nil
}

// ConnOpenAck opens the initiating end after the counterparty's TRYOPEN is
// proven.
func (k *Keeper) ConnOpenAck(em *types.EventManager, msg types.MsgConnectionOpenAck) error {
	connection, err := k.GetConnection(msg.ConnectionID)
	if err != nil {
		return err
	}
	if connection.State != types.ConnectionInit {
		return errors.Wrapf(types.ErrInvalidConnectionState, "connection %s is %s, expected INIT", msg.ConnectionID, connection.State)
	}

	expected := types.NewConnectionEnd(types.ConnectionTryOpen, connection.Counterparty.ClientID, types.ConnectionCounterparty{
		ClientID:     connection.ClientID,
		ConnectionID: msg.ConnectionID,
		Prefix:       types.StoreKey,
	}, connection.DelayPeriod)
	expectedBz, err := types.MarshalConnectionEnd(expected)
	if err != nil {
		return err
	}

	if err := k.verifyMembership(connection.ClientID, msg.ProofHeight, connection.Counterparty.Prefix,
		types.ConnectionPath(msg.CounterpartyConnectionID), expectedBz, msg.ProofTry); err != nil {
		return errors.Wrap(err, "connection open ack: counterparty TRYOPEN not proven")
	}

	if err := k.verifyCounterpartyClientState(connection.ClientID, msg.ProofHeight, connection.Counterparty.Prefix,
		connection.Counterparty.ClientID, msg.CounterpartyClient, msg.ProofClient); err != nil {
		return errors.Wrap(err, "connection open ack: counterparty client not proven")
	}

	connection.State = types.ConnectionOpen
	connection.Counterparty.ConnectionID = msg.CounterpartyConnectionID
	if err := k.SetConnection(msg.ConnectionID, connection); err != nil {
		return err
	}

	em.EmitEvent(types.NewEvent(types.EventTypeConnectionOpenAck,
		types.NewAttribute(types.AttributeKeyConnectionID, msg.ConnectionID),
		types.NewAttribute(types.AttributeKeyClientID, connection.ClientID),
		types.NewAttribute(types.AttributeKeyCounterpartyClientID, connection.Counterparty.ClientID),
		types.NewAttribute(types.AttributeKeyCounterpartyConnectionID, msg.CounterpartyConnectionID),
	))

	return nil
}

// ConnOpenConfirm opens the responding end after the counterparty's OPEN is
// proven.
func (k *Keeper) ConnOpenConfirm(em *types.EventManager, msg types.MsgConnectionOpenConfirm) error {
	connection, err := k.GetConnection(msg.ConnectionID)
	if err != nil {
		return err
	}
	if connection.State != types.ConnectionTryOpen {
		return errors.Wrapf(types.ErrInvalidConnectionState, "connection %s is %s, expected TRYOPEN", msg.ConnectionID, connection.State)
	}

	expected := types.NewConnectionEnd(types.ConnectionOpen, connection.Counterparty.ClientID, types.ConnectionCounterparty{
		ClientID:     connection.ClientID,
		ConnectionID: msg.ConnectionID,
		Prefix:       types.StoreKey,
	}, connection.DelayPeriod)
	expectedBz, err := types.MarshalConnectionEnd(expected)
	if err != nil {
		return err
	}

	if err := k.verifyMembership(connection.ClientID, msg.ProofHeight, connection.Counterparty.Prefix,
		types.ConnectionPath(connection.Counterparty.ConnectionID), expectedBz, msg.ProofAck); err != nil {
		return errors.Wrap(err, "connection open confirm: counterparty OPEN not proven")
	}

	connection.State = types.ConnectionOpen
	if err := k.SetConnection(msg.ConnectionID, connection); err != nil {
		return err
	}

	em.EmitEvent(types.NewEvent(types.EventTypeConnectionOpenConfirm,
		types.NewAttribute(types.AttributeKeyConnectionID, msg.ConnectionID),
		types.NewAttribute(types.AttributeKeyClientID, connection.ClientID),
		types.NewAttribute(types.AttributeKeyCounterpartyClientID, connection.Counterparty.ClientID),
		types.NewAttribute(types.AttributeKeyCounterpartyConnectionID, connection.Counterparty.ConnectionID),
	))

	return nil
}
