package ibcsim

import (
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/interop-labs/ibcsim/host"
	"github.com/interop-labs/ibcsim/host/tendermint"
)

var (
	ChainIDPrefix   = "testchain"
	globalStartTime = time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	TimeIncrement   = time.Second * 5
)

// DefaultValidators is the validator set size of default tendermint-backed
// chains.
const DefaultValidators = 4

// HostCreator builds the host backend for a chain id.
type HostCreator func(chainID string) host.HostChain

// DefaultHostCreator backs chains with deterministic tendermint hosts.
func DefaultHostCreator(chainID string) host.HostChain {
	return tendermint.NewChain(chainID, DefaultValidators)
}

// Coordinator holds N chains and a shared wall clock. The clock is a test
// convenience: each chain's block timestamps advance independently and no
// protocol step assumes the clocks agree.
type Coordinator struct {
	TB testing.TB

	CurrentTime time.Time
	Chains      map[string]*Chain
}

// NewCoordinator initializes a Coordinator with n tendermint-backed chains.
func NewCoordinator(tb testing.TB, n int) *Coordinator {
	return NewCustomHostCoordinator(tb, n, DefaultHostCreator)
}

// NewCustomHostCoordinator initializes a Coordinator with n chains using the
// given host creator.
func NewCustomHostCoordinator(tb testing.TB, n int, creator HostCreator) *Coordinator {
	tb.Helper()
	coord := &Coordinator{
		TB:          tb,
		CurrentTime: globalStartTime,
	}

	chains := make(map[string]*Chain)
	for i := 1; i <= n; i++ {
		chainID := GetChainID(i)
		chain, err := NewChain(tb, coord, chainID, creator(chainID))
		require.NoError(tb, err)
		chains[chainID] = chain
	}
	coord.Chains = chains

	return coord
}

// IncrementTime advances the shared clock by the default increment.
func (coord *Coordinator) IncrementTime() {
	coord.IncrementTimeBy(TimeIncrement)
}

// IncrementTimeBy advances the shared clock by the given duration.
func (coord *Coordinator) IncrementTimeBy(increment time.Duration) {
	coord.CurrentTime = coord.CurrentTime.Add(increment).UTC()
}

// GetChain returns the chain with the given id, failing the test if it does
// not exist.
func (coord *Coordinator) GetChain(chainID string) *Chain {
	chain, found := coord.Chains[chainID]
	require.True(coord.TB, found, fmt.Sprintf("%s chain does not exist", chainID))
	return chain
}

// GetChainID returns the chain id used for the provided index.
func GetChainID(index int) string {
	return ChainIDPrefix + strconv.Itoa(index)
}

// CommitBlock cycles a block on the provided chains and then increments the
// shared clock.
func (coord *Coordinator) CommitBlock(chains ...*Chain) {
	for _, chain := range chains {
		require.NoError(coord.TB, chain.NextBlock())
	}
	coord.IncrementTime()
}

// CommitNBlocks cycles n blocks on the chain.
func (coord *Coordinator) CommitNBlocks(chain *Chain, n uint64) {
	for i := uint64(0); i < n; i++ {
		require.NoError(coord.TB, chain.NextBlock())
		coord.IncrementTime()
	}
}
