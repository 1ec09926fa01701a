package keeper

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/interop-labs/ibcsim/core/types"
)

// CreateClient initializes a light client tracking a counterparty chain and
// returns the generated client identifier.
func (k *Keeper) CreateClient(em *types.EventManager, msg types.MsgCreateClient) (string, error) {
	if msg.ClientState.ClientType() != msg.ConsensusState.ClientType() {
		return "", errors.Wrapf(types.ErrInvalidClient, "client state type %s does not match consensus state type %s",
			msg.ClientState.ClientType(), msg.ConsensusState.ClientType())
	}

	sequence := k.nextSequence(types.KeyNextClientSequence)
	clientID := types.FormatClientIdentifier(msg.ClientState.ClientType(), sequence)

	if err := k.SetClientState(clientID, msg.ClientState); err != nil {
		return "", err
	}
	if err := k.SetClientConsensusState(clientID, msg.ClientState.GetLatestHeight(), msg.ConsensusState); err != nil {
		return "", err
	}

	em.EmitEvent(types.NewEvent(types.EventTypeCreateClient,
		types.NewAttribute(types.AttributeKeyClientID, clientID),
		types.NewAttribute(types.AttributeKeyClientType, msg.ClientState.ClientType()),
		types.NewAttribute(types.AttributeKeyConsensusHeight, strconv.FormatUint(msg.ClientState.GetLatestHeight(), 10)),
	))

	return clientID, nil
}

// UpdateClient verifies a counterparty header against the stored client and
// records the resulting consensus state.
func (k *Keeper) UpdateClient(em *types.EventManager, msg types.MsgUpdateClient) error {
	clientState, err := k.GetClientState(msg.ClientID)
	if err != nil {
		return err
	}

	header, err := types.UnpackHeader(msg.Header)
	if err != nil {
		return err
	}

	// the stored consensus state at the client's latest height anchors the
	// timestamp monotonicity check
	stored, err := k.GetClientConsensusState(msg.ClientID, clientState.GetLatestHeight())
	if err != nil {
		return err
	}

	updated, consensusState, err := clientState.CheckHeaderAndUpdateState(stored, header)
	if err != nil {
		return errors.Wrapf(err, "updating client %s", msg.ClientID)
	}

	if err := k.SetClientState(msg.ClientID, updated); err != nil {
		return err
	}
	if err := k.SetClientConsensusState(msg.ClientID, header.Height(), consensusState); err != nil {
		return err
	}

	em.EmitEvent(types.NewEvent(types.EventTypeUpdateClient,
		types.NewAttribute(types.AttributeKeyClientID, msg.ClientID),
		types.NewAttribute(types.AttributeKeyClientType, updated.ClientType()),
		types.NewAttribute(types.AttributeKeyConsensusHeight, strconv.FormatUint(header.Height(), 10)),
	))

	return nil
}
