package ibcsim_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/interop-labs/ibcsim"
	"github.com/interop-labs/ibcsim/core/types"
	"github.com/interop-labs/ibcsim/host"
	"github.com/interop-labs/ibcsim/host/mock"
	"github.com/interop-labs/ibcsim/store"
)

// mockCoordinator backs chains with the trivial host so chain mechanics are
// tested without consensus machinery.
func mockCoordinator(t *testing.T, n int) *ibcsim.Coordinator {
	t.Helper()
	return ibcsim.NewCustomHostCoordinator(t, n, func(chainID string) host.HostChain {
		return mock.NewChain(chainID)
	})
}

func TestGenesisToFirstBlock(t *testing.T) {
	coord := mockCoordinator(t, 1)
	chain := coord.GetChain(ibcsim.GetChainID(1))

	// genesis block exists and its consensus state is already recorded
	require.Equal(t, uint64(1), chain.LatestHeight())
	require.ElementsMatch(t, []uint64{1}, chain.Keeper.RecordedHeights())

	// nothing was committed yet, so no root proof exists
	_, err := chain.Keeper.RootProofAt(1)
	require.True(t, errors.Is(err, store.ErrHeightNotAvailable))

	require.NoError(t, chain.NextBlock())

	require.Equal(t, uint64(2), chain.LatestHeight())
	require.ElementsMatch(t, []uint64{1, 2}, chain.Keeper.RecordedHeights())
	_, err = chain.Keeper.RootProofAt(1)
	require.NoError(t, err)

	// the genesis seed makes the first committed tree non-empty, so the
	// sequence key is provable at the first post-genesis height
	key := []byte(types.KeyNextClientSequence)
	proof, proofHeight, err := chain.QueryProofAtHeight(key, 2)
	require.NoError(t, err)
	require.Equal(t, uint64(2), proofHeight)

	consensusState, err := chain.Keeper.HostConsensusStateAt(2)
	require.NoError(t, err)
	path := store.NewMerklePath(types.StoreKey, types.KeyNextClientSequence)
	require.NoError(t, proof.VerifyMembership(store.GetSpecs(), consensusState.GetRoot(), path, make([]byte, 8)))

	// no state is provable at the genesis height
	_, _, err = chain.QueryProofAtHeight(key, 1)
	require.True(t, errors.Is(err, store.ErrHeightNotAvailable))
}

func TestLifecyclePhaseViolations(t *testing.T) {
	coord := mockCoordinator(t, 1)
	chain := coord.GetChain(ibcsim.GetChainID(1))

	// a fresh chain sits in the begun phase
	require.True(t, errors.Is(chain.BeginBlock(), ibcsim.ErrLifecyclePhaseViolation))
	require.True(t, errors.Is(chain.ProduceBlock(ibcsim.DefaultBlockTime), ibcsim.ErrLifecyclePhaseViolation))

	require.NoError(t, chain.EndBlock())
	require.True(t, errors.Is(chain.EndBlock(), ibcsim.ErrLifecyclePhaseViolation))
	require.True(t, errors.Is(chain.BeginBlock(), ibcsim.ErrLifecyclePhaseViolation))
	_, err := chain.SendMsgs()
	require.True(t, errors.Is(err, ibcsim.ErrLifecyclePhaseViolation))

	require.NoError(t, chain.ProduceBlock(ibcsim.DefaultBlockTime))
	require.True(t, errors.Is(chain.ProduceBlock(ibcsim.DefaultBlockTime), ibcsim.ErrLifecyclePhaseViolation))
	require.True(t, errors.Is(chain.EndBlock(), ibcsim.ErrLifecyclePhaseViolation))
	_, err = chain.SendMsgs()
	require.True(t, errors.Is(err, ibcsim.ErrLifecyclePhaseViolation))
	_, err = chain.SendPacket("mock", "channel-0", []byte("data"), 0, 0)
	require.True(t, errors.Is(err, ibcsim.ErrLifecyclePhaseViolation))

	require.NoError(t, chain.BeginBlock())
}

func TestHeightAdvancesByOne(t *testing.T) {
	coord := mockCoordinator(t, 1)
	chain := coord.GetChain(ibcsim.GetChainID(1))

	for want := uint64(2); want <= 6; want++ {
		require.NoError(t, chain.NextBlock())
		require.Equal(t, want, chain.LatestHeight())
	}

	heights := chain.Keeper.RecordedHeights()
	require.Len(t, heights, 6)
}

func TestProofRoundTrip(t *testing.T) {
	coord := mockCoordinator(t, 1)
	chain := coord.GetChain(ibcsim.GetChainID(1))

	packet := types.NewPacket([]byte("data"), 1, "mock", "channel-0", "mock", "channel-0", 0, 0)
	commitment := types.CommitPacket(packet)
	chain.Keeper.SetPacketCommitment("mock", "channel-0", 1, commitment)
	require.NoError(t, chain.NextBlock())

	height := chain.LatestHeight()
	commitmentPath := types.PacketCommitmentPath("mock", "channel-0", 1)
	proof, proofHeight, err := chain.QueryProofAtHeight([]byte(commitmentPath), height)
	require.NoError(t, err)
	require.Equal(t, height, proofHeight)

	consensusState, err := chain.Keeper.HostConsensusStateAt(height)
	require.NoError(t, err)
	root := consensusState.GetRoot()

	path := store.NewMerklePath(types.StoreKey, commitmentPath)
	require.NoError(t, proof.VerifyMembership(store.GetSpecs(), root, path, commitment))

	// absence of a never-written key is provable at the same height
	absentPath := types.PacketCommitmentPath("mock", "channel-0", 9)
	absenceProof, _, err := chain.QueryProofAtHeight([]byte(absentPath), height)
	require.NoError(t, err)
	require.NoError(t, absenceProof.VerifyNonMembership(store.GetSpecs(), root, store.NewMerklePath(types.StoreKey, absentPath)))
}

// flakyHost wraps the mock backend with block generation that differs between
// calls, violating the reproducibility contract.
type flakyHost struct {
	*mock.Chain
	calls int
}

func (h *flakyHost) GenerateBlock(commitmentRoot []byte, height uint64, timestamp time.Time, _ host.BlockParams) (host.Block, error) {
	h.calls++
	params := mock.DefaultBlockParams().WithPayload([]byte(strconv.Itoa(h.calls)))
	return h.Chain.GenerateBlock(commitmentRoot, height, timestamp, params)
}

func TestNonDeterministicHostIsRejected(t *testing.T) {
	coord := ibcsim.NewCustomHostCoordinator(t, 1, func(chainID string) host.HostChain {
		return &flakyHost{Chain: mock.NewChain(chainID)}
	})
	chain := coord.GetChain(ibcsim.GetChainID(1))

	err := chain.NextBlock()
	require.True(t, errors.Is(err, host.ErrReproducibility))
}

func TestPruneBlockTill(t *testing.T) {
	coord := mockCoordinator(t, 1)
	chain := coord.GetChain(ibcsim.GetChainID(1))
	coord.CommitNBlocks(chain, 9)
	require.Equal(t, uint64(10), chain.LatestHeight())

	// pruning above the current height is rejected
	err := chain.PruneBlockTill(11)
	require.True(t, errors.Is(err, store.ErrHeightNotAvailable))

	require.NoError(t, chain.PruneBlockTill(5))

	_, ok := chain.Host.BlockAtHeight(4)
	require.False(t, ok)
	_, ok = chain.Host.BlockAtHeight(5)
	require.True(t, ok)

	_, err = chain.Keeper.RootProofAt(4)
	require.True(t, errors.Is(err, store.ErrHeightNotAvailable))
	_, err = chain.Keeper.RootProofAt(5)
	require.NoError(t, err)

	// retained heights above the floor remain provable end to end
	key := []byte(types.KeyNextClientSequence)
	for height := uint64(6); height <= 10; height++ {
		proof, _, err := chain.QueryProofAtHeight(key, height)
		require.NoError(t, err)
		consensusState, err := chain.Keeper.HostConsensusStateAt(height)
		require.NoError(t, err)
		path := store.NewMerklePath(types.StoreKey, types.KeyNextClientSequence)
		require.NoError(t, proof.VerifyMembership(store.GetSpecs(), consensusState.GetRoot(), path, make([]byte, 8)))
	}

	// a proof at the floor itself needs the pruned predecessor version
	_, _, err = chain.QueryProofAtHeight(key, 5)
	require.True(t, errors.Is(err, store.ErrHeightNotAvailable))

	// pruning till the current height invalidates live proofs until the next
	// block commits
	require.NoError(t, chain.PruneBlockTill(10))
	_, _, err = chain.QueryProofAtHeight(key, 10)
	require.True(t, errors.Is(err, store.ErrHeightNotAvailable))

	require.NoError(t, chain.NextBlock())
	proof, _, err := chain.QueryProofAtHeight(key, 11)
	require.NoError(t, err)
	consensusState, err := chain.Keeper.HostConsensusStateAt(11)
	require.NoError(t, err)
	require.NoError(t, proof.VerifyMembership(store.GetSpecs(), consensusState.GetRoot(),
		store.NewMerklePath(types.StoreKey, types.KeyNextClientSequence), make([]byte, 8)))
}

func TestChainClocksAdvanceIndependently(t *testing.T) {
	coord := mockCoordinator(t, 2)
	chainA := coord.GetChain(ibcsim.GetChainID(1))
	chainB := coord.GetChain(ibcsim.GetChainID(2))

	coord.CommitNBlocks(chainA, 3)

	// B produced no blocks, so only A's timestamps moved
	require.Equal(t, chainA.Host.LatestBlock().Time(),
		chainB.Host.LatestBlock().Time().Add(3*ibcsim.DefaultBlockTime))
}
