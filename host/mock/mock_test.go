package mock_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tmjson "github.com/tendermint/tendermint/libs/json"

	"github.com/interop-labs/ibcsim/core/types"
	"github.com/interop-labs/ibcsim/host/mock"
)

var genesisTime = time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)

func initializedChain(t *testing.T) *mock.Chain {
	t.Helper()
	chain := mock.NewChain("mockchain")
	require.NoError(t, chain.InitGenesis([]byte("genesis-root"), genesisTime, nil))
	return chain
}

func TestInitGenesis(t *testing.T) {
	chain := initializedChain(t)

	latest := chain.LatestBlock()
	require.Equal(t, uint64(mock.GenesisHeight), latest.Height())
	require.Equal(t, genesisTime, latest.Time())
	require.Len(t, chain.History(), 1)

	require.Error(t, chain.InitGenesis([]byte("again"), genesisTime, nil))
}

func TestHistoryInvariants(t *testing.T) {
	chain := initializedChain(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, chain.AdvanceBlock([]byte{byte(i)}, 5*time.Second, nil))
	}

	history := chain.History()
	require.Len(t, history, 6)
	for i, block := range history {
		require.Equal(t, uint64(mock.GenesisHeight+i), block.Height())
		if i > 0 {
			require.Equal(t, history[i-1].Time().Add(5*time.Second), block.Time())
		}
	}

	block, ok := chain.BlockAtHeight(3)
	require.True(t, ok)
	require.Equal(t, uint64(3), block.Height())

	_, ok = chain.BlockAtHeight(7)
	require.False(t, ok)
}

func TestGenerateBlockIsPure(t *testing.T) {
	chain := initializedChain(t)
	timestamp := genesisTime.Add(time.Minute)

	first, err := chain.GenerateBlock([]byte("root"), 2, timestamp, nil)
	require.NoError(t, err)
	second, err := chain.GenerateBlock([]byte("root"), 2, timestamp, nil)
	require.NoError(t, err)

	firstBz, err := tmjson.Marshal(first)
	require.NoError(t, err)
	secondBz, err := tmjson.Marshal(second)
	require.NoError(t, err)
	require.Equal(t, firstBz, secondBz)

	// generation does not touch history
	require.Len(t, chain.History(), 1)
}

func TestBlockParamsPayload(t *testing.T) {
	chain := initializedChain(t)
	params := mock.DefaultBlockParams().WithPayload([]byte("payload"))

	block, err := chain.GenerateBlock([]byte("root"), 2, genesisTime, params)
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), block.(*mock.Block).Payload)

	// the header view drops the payload
	header := block.Header().(*mock.Header)
	require.Equal(t, uint64(2), header.HeaderHeight)
	require.Equal(t, []byte("root"), header.CommitmentRoot)
}

func TestHeaderPackRoundTrip(t *testing.T) {
	chain := initializedChain(t)
	header := chain.LatestBlock().Header()

	any, err := header.Pack()
	require.NoError(t, err)
	require.Equal(t, mock.HeaderTypeURL, any.TypeUrl)

	unpacked, err := types.UnpackHeader(any)
	require.NoError(t, err)
	require.Equal(t, header, unpacked)
}

func TestCheckHeaderAndUpdateState(t *testing.T) {
	chain := initializedChain(t)
	for i := 0; i < 2; i++ {
		require.NoError(t, chain.AdvanceBlock([]byte{byte(i)}, 5*time.Second, nil))
	}

	clientState, err := chain.GenerateClientState(2, nil)
	require.NoError(t, err)
	block, _ := chain.BlockAtHeight(2)
	stored := block.Header().ConsensusState()

	// advancing header is accepted
	header := chain.LatestBlock().Header()
	updated, consensus, err := clientState.CheckHeaderAndUpdateState(stored, header)
	require.NoError(t, err)
	require.Equal(t, uint64(3), updated.GetLatestHeight())
	require.Equal(t, header.ConsensusState().GetRoot(), consensus.GetRoot())

	// stale height is rejected
	staleBlock, _ := chain.BlockAtHeight(1)
	_, _, err = clientState.CheckHeaderAndUpdateState(stored, staleBlock.Header())
	require.Error(t, err)

	// foreign chain id is rejected
	other := mock.NewChain("otherchain")
	require.NoError(t, other.InitGenesis([]byte("root"), genesisTime, nil))
	require.NoError(t, other.AdvanceBlock([]byte("root"), 5*time.Second, nil))
	require.NoError(t, other.AdvanceBlock([]byte("root"), 5*time.Second, nil))
	_, _, err = clientState.CheckHeaderAndUpdateState(stored, other.LatestBlock().Header())
	require.Error(t, err)

	// time regression is rejected
	regressed, err := chain.GenerateBlock([]byte("root"), 3, genesisTime.Add(-time.Hour), nil)
	require.NoError(t, err)
	_, _, err = clientState.CheckHeaderAndUpdateState(stored, regressed.Header())
	require.Error(t, err)
}

func TestGenerateClientState(t *testing.T) {
	chain := initializedChain(t)
	require.NoError(t, chain.AdvanceBlock([]byte("root"), 5*time.Second, nil))

	clientState, err := chain.GenerateClientState(2, mock.DefaultClientParams())
	require.NoError(t, err)
	require.Equal(t, "mockchain", clientState.GetChainID())
	require.Equal(t, uint64(2), clientState.GetLatestHeight())
	require.Equal(t, mock.ClientType, clientState.ClientType())
	require.NoError(t, clientState.Validate())

	_, err = chain.GenerateClientState(9, nil)
	require.Error(t, err)
}

func TestPruneHistory(t *testing.T) {
	chain := initializedChain(t)
	for i := 0; i < 4; i++ {
		require.NoError(t, chain.AdvanceBlock([]byte{byte(i)}, 5*time.Second, nil))
	}

	require.NoError(t, chain.PruneHistory(3))
	require.Len(t, chain.History(), 3)
	_, ok := chain.BlockAtHeight(2)
	require.False(t, ok)
	_, ok = chain.BlockAtHeight(3)
	require.True(t, ok)

	// pruning past the latest height is rejected
	require.Error(t, chain.PruneHistory(6))

	// pruning at the latest height keeps the latest block
	require.NoError(t, chain.PruneHistory(5))
	require.Len(t, chain.History(), 1)
	require.Equal(t, uint64(5), chain.LatestBlock().Height())
}
