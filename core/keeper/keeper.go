// Package keeper implements the protocol module's state machine on top of a
// module commitment store. The harness schedules it through the chain
// lifecycle; the keeper itself never drives block production.
package keeper

import (
	"encoding/binary"
	"sync"

	ics23 "github.com/confio/ics23/go"
	"github.com/pkg/errors"

	"github.com/interop-labs/ibcsim/core/types"
	"github.com/interop-labs/ibcsim/host"
	"github.com/interop-labs/ibcsim/store"
)

// Keeper owns the module's commitment sub-store plus two per-height
// histories: the host chain's own consensus states and the proofs of the
// module root in the top-level store.
//
// The histories are shared with relayers running in the same process, so
// they are guarded by a mutex. Both are append-only except for pruning.
type Keeper struct {
	chainID     string
	moduleStore *store.CommitStore

	mtx             sync.Mutex
	consensusStates map[uint64]host.ConsensusState
	rootProofs      map[uint64]*store.MerkleProof
}

// NewKeeper returns a keeper writing to the given module store.
func NewKeeper(chainID string, moduleStore *store.CommitStore) *Keeper {
	return &Keeper{
		chainID:         chainID,
		moduleStore:     moduleStore,
		consensusStates: make(map[uint64]host.ConsensusState),
		rootProofs:      make(map[uint64]*store.MerkleProof),
	}
}

// ChainID returns the identifier of the chain this module runs on.
func (k *Keeper) ChainID() string { return k.chainID }

// InitGenesis seeds the identifier sequences. The module store must commit a
// non-empty tree at every height, including the first.
func (k *Keeper) InitGenesis() {
	k.setSequence(types.KeyNextClientSequence, 0)
	k.setSequence(types.KeyNextConnectionSequence, 0)
	k.setSequence(types.KeyNextChannelSequence, 0)
}

// HandleMsg routes an opaque protocol message to its handler, emitting
// events through em.
func (k *Keeper) HandleMsg(em *types.EventManager, msg types.Msg) error {
	if err := msg.ValidateBasic(); err != nil {
		return err
	}

	switch msg := msg.(type) {
	case types.MsgCreateClient:
		_, err := k.CreateClient(em, msg)
		return err
	case types.MsgUpdateClient:
		return k.UpdateClient(em, msg)
	case types.MsgConnectionOpenInit:
		_, err := k.ConnOpenInit(em, msg)
		return err
	case types.MsgConnectionOpenTry:
		_, err := k.ConnOpenTry(em, msg)
		return err
	case types.MsgConnectionOpenAck:
		return k.ConnOpenAck(em, msg)
	case types.MsgConnectionOpenConfirm:
		return k.ConnOpenConfirm(em, msg)
	case types.MsgChannelOpenInit:
		_, err := k.ChanOpenInit(em, msg)
		return err
	case types.MsgChannelOpenTry:
		_, err := k.ChanOpenTry(em, msg)
		return err
	case types.MsgChannelOpenAck:
		return k.ChanOpenAck(em, msg)
	case types.MsgChannelOpenConfirm:
		return k.ChanOpenConfirm(em, msg)
	case types.MsgRecvPacket:
		return k.RecvPacket(em, msg)
	case types.MsgAcknowledgement:
		return k.AcknowledgePacket(em, msg)
	default:
		return errors.Wrapf(types.ErrUnknownMessageType, "%T", msg)
	}
}

// Commit commits the module store, advancing its version by exactly one.
func (k *Keeper) Commit() (store.CommitID, error) {
	return k.moduleStore.Commit()
}

// ProveKey produces the module-layer proof for an ICS24 path at a committed
// module store version.
func (k *Keeper) ProveKey(key []byte, version uint64) (*ics23.CommitmentProof, error) {
	return k.moduleStore.Prove(key, version)
}

// RecordHostConsensusState records the chain's own consensus state for a
// height. Called exactly once per height during begin-block.
func (k *Keeper) RecordHostConsensusState(height uint64, consensusState host.ConsensusState) error {
	k.mtx.Lock()
	defer k.mtx.Unlock()

	if _, ok := k.consensusStates[height]; ok {
		return errors.Errorf("host consensus state already recorded for height %d", height)
	}
	k.consensusStates[height] = consensusState
	return nil
}

// RecordRootProof records the proof of the module root in the top-level
// store for a height. Called exactly once per height during end-block.
func (k *Keeper) RecordRootProof(height uint64, proof *store.MerkleProof) error {
	k.mtx.Lock()
	defer k.mtx.Unlock()

	if _, ok := k.rootProofs[height]; ok {
		return errors.Errorf("root proof already recorded for height %d", height)
	}
	k.rootProofs[height] = proof
	return nil
}

// HostConsensusStateAt returns the chain's own consensus state recorded for
// a height.
func (k *Keeper) HostConsensusStateAt(height uint64) (host.ConsensusState, error) {
	k.mtx.Lock()
	defer k.mtx.Unlock()

	consensusState, ok := k.consensusStates[height]
	if !ok {
		return nil, errors.Wrapf(store.ErrHeightNotAvailable, "no host consensus state recorded for height %d", height)
	}
	return consensusState, nil
}

// RootProofAt returns the module root proof recorded for a height.
func (k *Keeper) RootProofAt(height uint64) (*store.MerkleProof, error) {
	k.mtx.Lock()
	defer k.mtx.Unlock()

	proof, ok := k.rootProofs[height]
	if !ok {
		return nil, errors.Wrapf(store.ErrHeightNotAvailable, "no root proof recorded for height %d", height)
	}
	return proof, nil
}

// RecordedHeights returns the heights currently present in the consensus
// state history, unordered.
func (k *Keeper) RecordedHeights() []uint64 {
	k.mtx.Lock()
	defer k.mtx.Unlock()

	heights := make([]uint64, 0, len(k.consensusStates))
	for h := range k.consensusStates {
		heights = append(heights, h)
	}
	return heights
}

// PruneBefore removes all history entries with height strictly below floor
// from both histories and prunes the module store's retained versions to
// match.
func (k *Keeper) PruneBefore(floor uint64) error {
	k.mtx.Lock()
	defer k.mtx.Unlock()

	// the latest committed version always survives, even when the floor
	// reaches the current height
	storeFloor := floor
	if latest := k.moduleStore.LatestVersion(); storeFloor > latest {
		storeFloor = latest
	}
	if err := k.moduleStore.PruneVersions(storeFloor); err != nil {
		return err
	}
	for h := range k.consensusStates {
		if h < floor {
			delete(k.consensusStates, h)
		}
	}
	for h := range k.rootProofs {
		if h < floor {
			delete(k.rootProofs, h)
		}
	}
	return nil
}

// --- module state accessors ---

// GetClientState returns the stored client state for clientID.
func (k *Keeper) GetClientState(clientID string) (host.ClientState, error) {
	bz := k.moduleStore.Get([]byte(types.FullClientStatePath(clientID)))
	if bz == nil {
		return nil, errors.Wrap(types.ErrClientNotFound, clientID)
	}
	return types.UnmarshalClientState(bz)
}

// SetClientState stores a client state under its ICS24 path.
func (k *Keeper) SetClientState(clientID string, clientState host.ClientState) error {
	bz, err := types.MarshalClientState(clientState)
	if err != nil {
		return err
	}
	k.moduleStore.Set([]byte(types.FullClientStatePath(clientID)), bz)
	return nil
}

// GetClientConsensusState returns the consensus state a client stores for a
// counterparty height.
func (k *Keeper) GetClientConsensusState(clientID string, height uint64) (host.ConsensusState, error) {
	bz := k.moduleStore.Get([]byte(types.FullConsensusStatePath(clientID, height)))
	if bz == nil {
		return nil, errors.Wrapf(types.ErrConsensusStateNotFound, "client %s, height %d", clientID, height)
	}
	return types.UnmarshalConsensusState(bz)
}

// SetClientConsensusState stores a consensus state under its ICS24 path.
func (k *Keeper) SetClientConsensusState(clientID string, height uint64, consensusState host.ConsensusState) error {
	bz, err := types.MarshalConsensusState(consensusState)
	if err != nil {
		return err
	}
	k.moduleStore.Set([]byte(types.FullConsensusStatePath(clientID, height)), bz)
	return nil
}

// GetConnection returns the stored connection end for connectionID.
func (k *Keeper) GetConnection(connectionID string) (types.ConnectionEnd, error) {
	bz := k.moduleStore.Get([]byte(types.ConnectionPath(connectionID)))
	if bz == nil {
		return types.ConnectionEnd{}, errors.Wrap(types.ErrConnectionNotFound, connectionID)
	}
	return types.UnmarshalConnectionEnd(bz)
}

// SetConnection stores a connection end under its ICS24 path.
func (k *Keeper) SetConnection(connectionID string, connection types.ConnectionEnd) error {
	bz, err := types.MarshalConnectionEnd(connection)
	if err != nil {
		return err
	}
	k.moduleStore.Set([]byte(types.ConnectionPath(connectionID)), bz)
	return nil
}

// GetChannel returns the stored channel end.
func (k *Keeper) GetChannel(portID, channelID string) (types.Channel, error) {
	bz := k.moduleStore.Get([]byte(types.ChannelPath(portID, channelID)))
	if bz == nil {
		return types.Channel{}, errors.Wrapf(types.ErrChannelNotFound, "port %s, channel %s", portID, channelID)
	}
	return types.UnmarshalChannel(bz)
}

// SetChannel stores a channel end under its ICS24 path.
func (k *Keeper) SetChannel(portID, channelID string, channel types.Channel) error {
	bz, err := types.MarshalChannel(channel)
	if err != nil {
		return err
	}
	k.moduleStore.Set([]byte(types.ChannelPath(portID, channelID)), bz)
	return nil
}

// GetPacketCommitment returns the stored commitment for a packet, or nil.
func (k *Keeper) GetPacketCommitment(portID, channelID string, sequence uint64) []byte {
	return k.moduleStore.Get([]byte(types.PacketCommitmentPath(portID, channelID, sequence)))
}

// SetPacketCommitment stores a packet commitment.
func (k *Keeper) SetPacketCommitment(portID, channelID string, sequence uint64, commitment []byte) {
	k.moduleStore.Set([]byte(types.PacketCommitmentPath(portID, channelID, sequence)), commitment)
}

// DeletePacketCommitment removes a packet commitment after acknowledgement.
func (k *Keeper) DeletePacketCommitment(portID, channelID string, sequence uint64) {
	k.moduleStore.Delete([]byte(types.PacketCommitmentPath(portID, channelID, sequence)))
}

// HasPacketReceipt reports whether a packet was already received.
func (k *Keeper) HasPacketReceipt(portID, channelID string, sequence uint64) bool {
	return k.moduleStore.Has([]byte(types.PacketReceiptPath(portID, channelID, sequence)))
}

// SetPacketReceipt marks a packet as received.
func (k *Keeper) SetPacketReceipt(portID, channelID string, sequence uint64) {
	k.moduleStore.Set([]byte(types.PacketReceiptPath(portID, channelID, sequence)), []byte{1})
}

// GetPacketAcknowledgement returns the stored ack commitment, or nil.
func (k *Keeper) GetPacketAcknowledgement(portID, channelID string, sequence uint64) []byte {
	return k.moduleStore.Get([]byte(types.PacketAcknowledgementPath(portID, channelID, sequence)))
}

// SetPacketAcknowledgement stores an ack commitment.
func (k *Keeper) SetPacketAcknowledgement(portID, channelID string, sequence uint64, commitment []byte) {
	k.moduleStore.Set([]byte(types.PacketAcknowledgementPath(portID, channelID, sequence)), commitment)
}

// GetNextSequenceSend returns the next send sequence for a channel.
func (k *Keeper) GetNextSequenceSend(portID, channelID string) uint64 {
	bz := k.moduleStore.Get([]byte(types.NextSequenceSendPath(portID, channelID)))
	if bz == nil {
		return 0
	}
	return binary.BigEndian.Uint64(bz)
}

// SetNextSequenceSend stores the next send sequence for a channel.
func (k *Keeper) SetNextSequenceSend(portID, channelID string, sequence uint64) {
	k.moduleStore.Set([]byte(types.NextSequenceSendPath(portID, channelID)), uint64ToBigEndian(sequence))
}

// GetNextSequenceRecv returns the next receive sequence for a channel.
func (k *Keeper) GetNextSequenceRecv(portID, channelID string) uint64 {
	bz := k.moduleStore.Get([]byte(types.NextSequenceRecvPath(portID, channelID)))
	if bz == nil {
		return 0
	}
	return binary.BigEndian.Uint64(bz)
}

// SetNextSequenceRecv stores the next receive sequence for a channel.
func (k *Keeper) SetNextSequenceRecv(portID, channelID string, sequence uint64) {
	k.moduleStore.Set([]byte(types.NextSequenceRecvPath(portID, channelID)), uint64ToBigEndian(sequence))
}

// nextSequence returns the current value of an identifier sequence and
// advances it.
func (k *Keeper) nextSequence(key string) uint64 {
	bz := k.moduleStore.Get([]byte(key))
	seq := binary.BigEndian.Uint64(bz)
	k.setSequence(key, seq+1)
	return seq
}

func (k *Keeper) setSequence(key string, sequence uint64) {
	k.moduleStore.Set([]byte(key), uint64ToBigEndian(sequence))
}

func uint64ToBigEndian(v uint64) []byte {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, v)
	return bz
}
