package tendermint_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tmjson "github.com/tendermint/tendermint/libs/json"

	"github.com/interop-labs/ibcsim/core/types"
	"github.com/interop-labs/ibcsim/host/tendermint"
)

var genesisTime = time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)

func initializedChain(t *testing.T) *tendermint.Chain {
	t.Helper()
	chain := tendermint.NewChain("tmchain", 4)
	require.NoError(t, chain.InitGenesis([]byte("genesis-root"), genesisTime, nil))
	return chain
}

func TestValidatorDerivationIsDeterministic(t *testing.T) {
	first := tendermint.NewChain("tmchain", 4)
	second := tendermint.NewChain("tmchain", 4)
	require.Equal(t, first.ValidatorSet().Hash(), second.ValidatorSet().Hash())

	// a different chain id derives a different validator set
	other := tendermint.NewChain("otherchain", 4)
	require.NotEqual(t, first.ValidatorSet().Hash(), other.ValidatorSet().Hash())
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

	require.Len(t, chain.History(), 1)
}

func TestGeneratedHeaderCarriesInputs(t *testing.T) {
	chain := initializedChain(t)
	timestamp := genesisTime.Add(time.Minute)

	block, err := chain.GenerateBlock([]byte("app-root"), 7, timestamp, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(7), block.Height())
	require.Equal(t, timestamp, block.Time())

	header := block.Header().(*tendermint.Header)
	require.Equal(t, []byte("app-root"), header.SignedHeader.Header.AppHash)
	require.Equal(t, chain.ValidatorSet().Hash(), header.SignedHeader.Header.ValidatorsHash)

	consensus := header.ConsensusState()
	require.Equal(t, []byte("app-root"), consensus.GetRoot())
	require.Equal(t, uint64(timestamp.UnixNano()), consensus.GetTimestamp())
	require.NoError(t, consensus.ValidateBasic())
}

func TestCommitSignaturesCoverValidatorSet(t *testing.T) {
	chain := initializedChain(t)

	block, err := chain.GenerateBlock([]byte("root"), 2, genesisTime.Add(time.Minute), nil)
	require.NoError(t, err)

	commit := block.(*tendermint.Block).SignedHeader.Commit
	require.Len(t, commit.Signatures, 4)
	for _, sig := range commit.Signatures {
		require.NotEmpty(t, sig.Signature)
	}
}

func TestHeaderPackRoundTrip(t *testing.T) {
	chain := initializedChain(t)
	header := chain.LatestBlock().Header()

	any, err := header.Pack()
	require.NoError(t, err)
	require.Equal(t, tendermint.HeaderTypeURL, any.TypeUrl)

	unpacked, err := types.UnpackHeader(any)
	require.NoError(t, err)
	require.Equal(t, header.Height(), unpacked.Height())
	require.Equal(t, header.ConsensusState().GetRoot(), unpacked.ConsensusState().GetRoot())
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

	header := chain.LatestBlock().Header()
	updated, consensus, err := clientState.CheckHeaderAndUpdateState(stored, header)
	require.NoError(t, err)
	require.Equal(t, uint64(3), updated.GetLatestHeight())
	require.Equal(t, header.ConsensusState().GetRoot(), consensus.GetRoot())

	// stale height is rejected
	staleBlock, _ := chain.BlockAtHeight(1)
	_, _, err = clientState.CheckHeaderAndUpdateState(stored, staleBlock.Header())
	require.Error(t, err)

	// a validator set that does not hash to the header's validators hash is
	// rejected
	forged := chain.LatestBlock().Header().(*tendermint.Header)
	foreignValSet, err := tendermint.NewChain("tmchain-forged", 4).ValidatorSet().ToProto()
	require.NoError(t, err)
	forged = &tendermint.Header{
		SignedHeader: forged.SignedHeader,
		ValidatorSet: foreignValSet,
	}
	_, _, err = clientState.CheckHeaderAndUpdateState(stored, forged)
	require.Error(t, err)
}

func TestGenerateClientState(t *testing.T) {
	chain := initializedChain(t)
	require.NoError(t, chain.AdvanceBlock([]byte("root"), 5*time.Second, nil))

	clientState, err := chain.GenerateClientState(2, nil)
	require.NoError(t, err)
	require.Equal(t, "tmchain", clientState.GetChainID())
	require.Equal(t, uint64(2), clientState.GetLatestHeight())
	require.NoError(t, clientState.Validate())

	custom, err := chain.GenerateClientState(2, tendermint.DefaultClientParams().WithTrustingPeriod(time.Hour).WithUnbondingPeriod(2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, time.Hour, custom.(*tendermint.ClientState).TrustingPeriod)
	require.NoError(t, custom.Validate())

	// trusting period must stay below unbonding period
	invalid := &tendermint.ClientState{
		ChainID:         "tmchain",
		TrustLevel:      tendermint.DefaultTrustLevel,
		TrustingPeriod:  2 * time.Hour,
		UnbondingPeriod: time.Hour,
		LatestHeight:    2,
	}
	require.Error(t, invalid.Validate())
}

func TestPruneHistory(t *testing.T) {
	chain := initializedChain(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, chain.AdvanceBlock([]byte{byte(i)}, 5*time.Second, nil))
	}

	require.NoError(t, chain.PruneHistory(3))
	_, ok := chain.BlockAtHeight(2)
	require.False(t, ok)
	_, ok = chain.BlockAtHeight(3)
	require.True(t, ok)
	require.Error(t, chain.PruneHistory(10))
}
