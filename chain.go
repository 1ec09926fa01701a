// Package ibcsim is a protocol-conformance test harness for an IBC-like
// interoperability module. It drives simulated chains through realistic
// block-production cycles, produces ICS23-verifiable state proofs, and
// exercises handshake and relay workflows against pluggable host backends.
package ibcsim

import (
	"bytes"
	"testing"
	"time"

	"github.com/armon/go-metrics"
	ics23 "github.com/confio/ics23/go"
	"github.com/pkg/errors"
	abci "github.com/tendermint/tendermint/abci/types"
	"github.com/tendermint/tendermint/crypto/tmhash"
	tmjson "github.com/tendermint/tendermint/libs/json"
	tmlog "github.com/tendermint/tendermint/libs/log"
	dbm "github.com/tendermint/tm-db"

	"github.com/interop-labs/ibcsim/core/keeper"
	"github.com/interop-labs/ibcsim/core/types"
	"github.com/interop-labs/ibcsim/host"
	"github.com/interop-labs/ibcsim/store"
)

// DefaultBlockTime is the block interval used when the caller does not pick
// one explicitly.
const DefaultBlockTime = time.Second * 5

// lifecyclePhase tracks where a chain is in its block cycle. Every block
// passes through begun -> ended -> produced; operations invoked in any other
// order fail with ErrLifecyclePhaseViolation.
type lifecyclePhase uint8

const (
	phaseProduced lifecyclePhase = iota
	phaseBegun
	phaseEnded
)

func (p lifecyclePhase) String() string {
	switch p {
	case phaseProduced:
		return "produced"
	case phaseBegun:
		return "begun"
	case phaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Chain is a simulated chain context: a host backend producing blocks, a
// top-level commitment store, and the protocol module keeper whose state is
// committed under the module prefix of the top-level store.
//
// A Chain is single-writer. The keeper's history maps and the stores carry
// their own locks so an in-process relayer may read them concurrently.
type Chain struct {
	TB          testing.TB
	Coordinator *Coordinator
	ChainID     string
	Host        host.HostChain
	Keeper      *keeper.Keeper

	// BlockParams is passed to the host on every block generation. Nil means
	// backend defaults.
	BlockParams host.BlockParams

	// SenderAccount signs every message this chain's test code submits.
	SenderAccount string

	topStore *store.CommitStore
	logger   tmlog.Logger
	phase    lifecyclePhase
	eventLog []abci.Event
}

// NewChain initializes a chain around the given host backend: genesis block
// at the starting height, seeded module state, and the first block begun. The
// genesis time is taken from the coordinator clock.
func NewChain(tb testing.TB, coord *Coordinator, chainID string, hostChain host.HostChain) (*Chain, error) {
	db := dbm.NewMemDB()

	topStore, err := store.NewCommitStore(db, chainID)
	if err != nil {
		return nil, err
	}
	moduleStore, err := store.NewCommitStore(db, types.StoreKey)
	if err != nil {
		return nil, err
	}

	k := keeper.NewKeeper(chainID, moduleStore)
	k.InitGenesis()

	// nothing is provable at genesis; the placeholder app hash only has to be
	// deterministic
	genesisRoot := tmhash.Sum([]byte(chainID))
	if err := hostChain.InitGenesis(genesisRoot, coord.CurrentTime, nil); err != nil {
		return nil, errors.Wrapf(err, "initializing host %s", chainID)
	}

	chain := &Chain{
		TB:            tb,
		Coordinator:   coord,
		ChainID:       chainID,
		Host:          hostChain,
		Keeper:        k,
		SenderAccount: chainID + "-sender",
		topStore:      topStore,
		logger:        tmlog.NewNopLogger(),
		phase:         phaseProduced,
	}

	if err := chain.BeginBlock(); err != nil {
		return nil, err
	}
	return chain, nil
}

// WithLogger replaces the chain's logger.
func (c *Chain) WithLogger(logger tmlog.Logger) *Chain {
	c.logger = logger
	return c
}

// LatestHeight returns the height of the most recent block.
func (c *Chain) LatestHeight() uint64 {
	return c.Host.LatestBlock().Height()
}

// EventLog returns every event the chain has emitted since genesis, in
// emission order. Relayers index into it with cursors.
func (c *Chain) EventLog() []abci.Event {
	return c.eventLog
}

// BeginBlock opens the current block: the latest block's consensus state is
// derived through the header contract and recorded for its height.
func (c *Chain) BeginBlock() error {
	if c.phase != phaseProduced {
		return errors.Wrapf(ErrLifecyclePhaseViolation, "begin block on %s in phase %s", c.ChainID, c.phase)
	}

	block := c.Host.LatestBlock()
	consensusState := block.Header().ConsensusState()
	if err := consensusState.ValidateBasic(); err != nil {
		return errors.Wrapf(err, "begin block %d on %s", block.Height(), c.ChainID)
	}
	if err := c.Keeper.RecordHostConsensusState(block.Height(), consensusState); err != nil {
		return err
	}

	c.phase = phaseBegun
	return nil
}

// EndBlock closes the current block: the module store is committed, its root
// is written under the module prefix of the top-level store, the top-level
// store is committed, and the proof of the module root is recorded for the
// height.
func (c *Chain) EndBlock() error {
	if c.phase != phaseBegun {
		return errors.Wrapf(ErrLifecyclePhaseViolation, "end block on %s in phase %s", c.ChainID, c.phase)
	}

	moduleID, err := c.Keeper.Commit()
	if err != nil {
		return err
	}

	c.topStore.Set([]byte(types.StoreKey), moduleID.Hash)
	topID, err := c.topStore.Commit()
	if err != nil {
		return err
	}
	if topID.Version != moduleID.Version {
		return errors.Errorf("store versions diverged on %s: top %d, module %d", c.ChainID, topID.Version, moduleID.Version)
	}

	height := c.Host.LatestBlock().Height()
	if topID.Version != height {
		return errors.Errorf("store version %d does not match block height %d on %s", topID.Version, height, c.ChainID)
	}

	rootProof, err := c.topStore.Prove([]byte(types.StoreKey), topID.Version)
	if err != nil {
		return err
	}
	if err := c.Keeper.RecordRootProof(height, &store.MerkleProof{Proofs: []*ics23.CommitmentProof{rootProof}}); err != nil {
		return err
	}

	c.phase = phaseEnded
	return nil
}

// ProduceBlock derives the next block from the committed top-level root and
// appends it to the host's history. The block is generated twice and compared
// to catch non-deterministic backends.
func (c *Chain) ProduceBlock(blockTime time.Duration) error {
	if c.phase != phaseEnded {
		return errors.Wrapf(ErrLifecyclePhaseViolation, "produce block on %s in phase %s", c.ChainID, c.phase)
	}

	version := c.topStore.LatestVersion()
	root, err := c.topStore.RootAtVersion(version)
	if err != nil {
		return err
	}

	latest := c.Host.LatestBlock()
	height := latest.Height() + 1
	timestamp := latest.Time().Add(blockTime)

	first, err := c.Host.GenerateBlock(root, height, timestamp, c.BlockParams)
	if err != nil {
		return err
	}
	second, err := c.Host.GenerateBlock(root, height, timestamp, c.BlockParams)
	if err != nil {
		return err
	}
	firstBz, err := tmjson.Marshal(first)
	if err != nil {
		return errors.Wrapf(err, "marshaling generated block %d on %s", height, c.ChainID)
	}
	secondBz, err := tmjson.Marshal(second)
	if err != nil {
		return errors.Wrapf(err, "marshaling generated block %d on %s", height, c.ChainID)
	}
	if !bytes.Equal(firstBz, secondBz) {
		return errors.Wrapf(host.ErrReproducibility, "host %s generated two different blocks at height %d", c.ChainID, height)
	}

	if err := c.Host.AdvanceBlock(root, blockTime, c.BlockParams); err != nil {
		return err
	}

	metrics.IncrCounterWithLabels([]string{"ibcsim", "chain", "blocks"}, 1,
		[]metrics.Label{{Name: "chain_id", Value: c.ChainID}})
	c.logger.Debug("produced block", "chain_id", c.ChainID, "height", height)

	c.phase = phaseProduced
	return nil
}

// NextBlock cycles the chain to the next block: end, produce, begin.
func (c *Chain) NextBlock() error {
	if err := c.EndBlock(); err != nil {
		return err
	}
	if err := c.ProduceBlock(DefaultBlockTime); err != nil {
		return err
	}
	return c.BeginBlock()
}

// DeliveryResult is what a delivery cycle leaves behind: the events the
// handlers emitted and the height of the block produced afterwards.
type DeliveryResult struct {
	Height uint64
	Events []abci.Event
}

// SendMsgs delivers the messages to the module, then cycles the block and
// advances the coordinator clock. A handler error aborts the batch.
func (c *Chain) SendMsgs(msgs ...types.Msg) (*DeliveryResult, error) {
	if c.phase != phaseBegun {
		return nil, errors.Wrapf(ErrLifecyclePhaseViolation, "deliver on %s in phase %s", c.ChainID, c.phase)
	}

	em := types.NewEventManager()
	for _, msg := range msgs {
		if err := c.Keeper.HandleMsg(em, msg); err != nil {
			return nil, errors.Wrapf(err, "delivering %s on %s", msg.Type(), c.ChainID)
		}
	}

	events := em.Events()
	c.eventLog = append(c.eventLog, events...)
	metrics.IncrCounterWithLabels([]string{"ibcsim", "chain", "msgs"}, float32(len(msgs)),
		[]metrics.Label{{Name: "chain_id", Value: c.ChainID}})

	if err := c.NextBlock(); err != nil {
		return nil, err
	}
	if c.Coordinator != nil {
		c.Coordinator.IncrementTime()
	}

	return &DeliveryResult{Height: c.LatestHeight(), Events: events}, nil
}

// SendPacket commits an outgoing packet on an open channel, then cycles the
// block so the commitment becomes provable.
func (c *Chain) SendPacket(portID, channelID string, data []byte, timeoutHeight, timeoutTimestamp uint64) (types.Packet, error) {
	if c.phase != phaseBegun {
		return types.Packet{}, errors.Wrapf(ErrLifecyclePhaseViolation, "send packet on %s in phase %s", c.ChainID, c.phase)
	}

	em := types.NewEventManager()
	packet, err := c.Keeper.SendPacket(em, portID, channelID, data, timeoutHeight, timeoutTimestamp)
	if err != nil {
		return types.Packet{}, err
	}

	c.eventLog = append(c.eventLog, em.Events()...)

	if err := c.NextBlock(); err != nil {
		return types.Packet{}, err
	}
	if c.Coordinator != nil {
		c.Coordinator.IncrementTime()
	}
	return packet, nil
}

// GetClientState returns the client state the module stores for clientID.
func (c *Chain) GetClientState(clientID string) (host.ClientState, error) {
	return c.Keeper.GetClientState(clientID)
}

// QueryProofAtHeight produces the two-layer proof for a module store key,
// verifiable against the consensus state recorded for the given height: the
// module layer is proved live at the store version the height's block
// committed to, and the top layer comes from the recorded root-proof history.
func (c *Chain) QueryProofAtHeight(key []byte, height uint64) (store.MerkleProof, uint64, error) {
	if height < 2 {
		return store.MerkleProof{}, 0, errors.Wrapf(store.ErrHeightNotAvailable, "chain %s has no provable state below height 2", c.ChainID)
	}

	// block at `height` carries the root committed at version height-1
	version := height - 1

	moduleProof, err := c.Keeper.ProveKey(key, version)
	if err != nil {
		return store.MerkleProof{}, 0, err
	}
	rootProof, err := c.Keeper.RootProofAt(version)
	if err != nil {
		return store.MerkleProof{}, 0, err
	}

	proofs := append([]*ics23.CommitmentProof{moduleProof}, rootProof.Proofs...)
	return store.MerkleProof{Proofs: proofs}, height, nil
}

// PruneBlockTill drops all blocks, history entries and store versions with
// height strictly below till. Pruning above the current height is rejected
// before any mutation.
func (c *Chain) PruneBlockTill(till uint64) error {
	latest := c.LatestHeight()
	if till > latest {
		return errors.Wrapf(store.ErrHeightNotAvailable, "cannot prune %s till %d: current height is %d", c.ChainID, till, latest)
	}

	floor := till
	if v := c.topStore.LatestVersion(); floor > v {
		floor = v
	}
	if err := c.topStore.PruneVersions(floor); err != nil {
		return err
	}
	if err := c.Keeper.PruneBefore(till); err != nil {
		return err
	}
	if err := c.Host.PruneHistory(till); err != nil {
		return err
	}

	metrics.IncrCounterWithLabels([]string{"ibcsim", "chain", "pruned"}, 1,
		[]metrics.Label{{Name: "chain_id", Value: c.ChainID}})
	c.logger.Info("pruned history", "chain_id", c.ChainID, "till", till)
	return nil
}
