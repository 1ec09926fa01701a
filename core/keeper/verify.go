package keeper

import (
	"github.com/pkg/errors"

	"github.com/interop-labs/ibcsim/core/types"
	"github.com/interop-labs/ibcsim/host"
	"github.com/interop-labs/ibcsim/store"
)

// verifyMembership verifies that value is committed under the counterparty's
// prefix at path, against the root the given client recorded for
// proofHeight. The client must have been updated to proofHeight first; a
// missing consensus state is a relayer ordering bug, not a proof failure.
func (k *Keeper) verifyMembership(clientID string, proofHeight uint64, prefix, path string, value []byte, proof store.MerkleProof) error {
	consensusState, err := k.GetClientConsensusState(clientID, proofHeight)
	if err != nil {
		return err
	}

	merklePath := store.NewMerklePath(prefix, path)
	if err := proof.VerifyMembership(store.GetSpecs(), consensusState.GetRoot(), merklePath, value); err != nil {
		return errors.Wrapf(err, "client %s, path %s at height %d", clientID, merklePath, proofHeight)
	}
	return nil
}

// verifyCounterpartyClientState verifies the counterparty's stored view of
// this chain's client during a connection handshake.
func (k *Keeper) verifyCounterpartyClientState(clientID string, proofHeight uint64, prefix, counterpartyClientID string, counterpartyClient host.ClientState, proof store.MerkleProof) error {
	if counterpartyClient.GetChainID() != k.chainID {
		return errors.Wrapf(types.ErrInvalidClient, "counterparty client tracks chain %s, expected %s", counterpartyClient.GetChainID(), k.chainID)
	}

	bz, err := types.MarshalClientState(counterpartyClient)
	if err != nil {
		return err
	}
	return k.verifyMembership(clientID, proofHeight, prefix, types.FullClientStatePath(counterpartyClientID), bz, proof)
}
