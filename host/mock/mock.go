// Package mock implements the trivial host backend: blocks carry an
// arbitrary commitment root and no cryptographic header. It is the cheapest
// backend satisfying the HostChain contract and exists so chain-agnostic
// harness code can be exercised without consensus machinery.
package mock

import (
	"sync"
	"time"

	gogotypes "github.com/gogo/protobuf/types"
	"github.com/pkg/errors"
	tmjson "github.com/tendermint/tendermint/libs/json"

	"github.com/interop-labs/ibcsim/core/types"
	"github.com/interop-labs/ibcsim/host"
)

// ClientType identifies mock light clients.
const ClientType = "00-mock"

// HeaderTypeURL is the any-typed wire identifier of mock headers.
const HeaderTypeURL = "/ibcsim.mock.Header"

// GenesisHeight is the height of the genesis block.
const GenesisHeight = 1

func init() {
	tmjson.RegisterType(&ClientState{}, "ibcsim/mock/ClientState")
	tmjson.RegisterType(&ConsensusState{}, "ibcsim/mock/ConsensusState")
	tmjson.RegisterType(&Header{}, "ibcsim/mock/Header")

	types.RegisterHeaderType(HeaderTypeURL, func(value []byte) (host.Header, error) {
		// decode through the interface so the registry's type wrapper applies
		var header host.Header
		if err := tmjson.Unmarshal(value, &header); err != nil {
			return nil, errors.Wrap(err, "unpacking mock header")
		}
		if _, ok := header.(*Header); !ok {
			return nil, errors.Errorf("expected mock header, got %T", header)
		}
		return header, nil
	})
}

// BlockParams configures mock block generation.
type BlockParams struct {
	// Payload is opaque backend-specific block data. It is dropped when the
	// block is converted to its header view.
	Payload []byte `json:"payload,omitempty"`
}

// DefaultBlockParams returns block params with an empty payload.
func DefaultBlockParams() *BlockParams {
	return &BlockParams{}
}

// WithPayload sets the block payload.
func (p *BlockParams) WithPayload(payload []byte) *BlockParams {
	p.Payload = payload
	return p
}

func (*BlockParams) GetBlockType() string { return ClientType }

var _ host.BlockParams = (*BlockParams)(nil)

// ClientParams configures mock client-state generation. The mock client has
// no trust parameters.
type ClientParams struct{}

// DefaultClientParams returns the default mock client params.
func DefaultClientParams() *ClientParams {
	return &ClientParams{}
}

func (*ClientParams) GetClientType() string { return ClientType }

var _ host.ClientParams = (*ClientParams)(nil)

// Block is a mock chain block.
type Block struct {
	ChainID        string    `json:"chain_id"`
	BlockHeight    uint64    `json:"height"`
	BlockTime      time.Time `json:"time"`
	CommitmentRoot []byte    `json:"commitment_root"`
	Payload        []byte    `json:"payload,omitempty"`
}

var _ host.Block = (*Block)(nil)

func (b *Block) Height() uint64  { return b.BlockHeight }
func (b *Block) Time() time.Time { return b.BlockTime }

// Header derives the header view, discarding the payload.
func (b *Block) Header() host.Header {
	return &Header{
		ChainID:        b.ChainID,
		HeaderHeight:   b.BlockHeight,
		HeaderTime:     b.BlockTime,
		CommitmentRoot: b.CommitmentRoot,
	}
}

// Header is a mock chain header.
type Header struct {
	ChainID        string    `json:"chain_id"`
	HeaderHeight   uint64    `json:"height"`
	HeaderTime     time.Time `json:"time"`
	CommitmentRoot []byte    `json:"commitment_root"`
}

var _ host.Header = (*Header)(nil)

func (*Header) ClientType() string { return ClientType }
func (h *Header) Height() uint64   { return h.HeaderHeight }
func (h *Header) Time() time.Time  { return h.HeaderTime }

func castBlockParams(params host.BlockParams) (*BlockParams, error) {
	if params == nil {
		return DefaultBlockParams(), nil
	}
	p, ok := params.(*BlockParams)
	if !ok {
		return nil, errors.Errorf("expected mock block params, got %T", params)
	}
	return p, nil
}

// ConsensusState returns the consensus state a counterparty records for this
// header's height.
func (h *Header) ConsensusState() host.ConsensusState {
	return &ConsensusState{
		Root:      h.CommitmentRoot,
		Timestamp: uint64(h.HeaderTime.UnixNano()),
	}
}

// Pack converts the header into its any-typed wire form.
func (h *Header) Pack() (*gogotypes.Any, error) {
	bz, err := tmjson.Marshal(h)
	if err != nil {
		return nil, errors.Wrap(err, "packing mock header")
	}
	return &gogotypes.Any{TypeUrl: HeaderTypeURL, Value: bz}, nil
}

// ConsensusState is the light-client snapshot of a mock chain at one height.
type ConsensusState struct {
	Root      []byte `json:"root"`
	Timestamp uint64 `json:"timestamp"`
}

var _ host.ConsensusState = (*ConsensusState)(nil)

func (*ConsensusState) ClientType() string      { return ClientType }
func (cs *ConsensusState) GetRoot() []byte      { return cs.Root }
func (cs *ConsensusState) GetTimestamp() uint64 { return cs.Timestamp }

func (cs *ConsensusState) ValidateBasic() error {
	if len(cs.Root) == 0 {
		return errors.Wrap(host.ErrInvalidHeader, "mock consensus state root cannot be empty")
	}
	return nil
}

// ClientState is the light-client configuration for a mock chain.
type ClientState struct {
	ChainID      string `json:"chain_id"`
	LatestHeight uint64 `json:"latest_height"`
}

var _ host.ClientState = (*ClientState)(nil)

func (*ClientState) ClientType() string         { return ClientType }
func (cs *ClientState) GetChainID() string      { return cs.ChainID }
func (cs *ClientState) GetLatestHeight() uint64 { return cs.LatestHeight }

func (cs *ClientState) Validate() error {
	if cs.ChainID == "" {
		return errors.Wrap(host.ErrInvalidHeader, "mock client chain id cannot be empty")
	}
	if cs.LatestHeight == 0 {
		return errors.Wrap(host.ErrInvalidHeader, "mock client latest height cannot be zero")
	}
	return nil
}

// CheckHeaderAndUpdateState performs the monotonicity checks the mock
// consensus model makes meaningful: the header must advance the height and
// must not rewind time relative to the stored consensus state.
func (cs *ClientState) CheckHeaderAndUpdateState(stored host.ConsensusState, header host.Header) (host.ClientState, host.ConsensusState, error) {
	mockHeader, ok := header.(*Header)
	if !ok {
		return nil, nil, errors.Wrapf(host.ErrInvalidHeader, "expected mock header, got %T", header)
	}
	if mockHeader.ChainID != cs.ChainID {
		return nil, nil, errors.Wrapf(host.ErrInvalidHeader, "header chain id %s does not match client chain id %s", mockHeader.ChainID, cs.ChainID)
	}
	if mockHeader.HeaderHeight <= cs.LatestHeight {
		return nil, nil, errors.Wrapf(host.ErrInvalidHeader, "header height %d is not greater than latest client height %d", mockHeader.HeaderHeight, cs.LatestHeight)
	}
	if stored != nil && uint64(mockHeader.HeaderTime.UnixNano()) < stored.GetTimestamp() {
		return nil, nil, errors.Wrap(host.ErrInvalidHeader, "header time regressed")
	}

	updated := &ClientState{ChainID: cs.ChainID, LatestHeight: mockHeader.HeaderHeight}
	return updated, mockHeader.ConsensusState(), nil
}

// Chain is the mock HostChain. It owns the block history; all mutation goes
// through InitGenesis, AdvanceBlock and PruneHistory under the mutex.
type Chain struct {
	mtx     sync.RWMutex
	chainID string
	blocks  []*Block
}

var _ host.HostChain = (*Chain)(nil)

// NewChain returns a mock host with an empty history.
func NewChain(chainID string) *Chain {
	return &Chain{chainID: chainID}
}

func (c *Chain) ChainID() string { return c.chainID }

// InitGenesis initializes the history with the genesis block.
func (c *Chain) InitGenesis(commitmentRoot []byte, genesisTime time.Time, params host.BlockParams) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if len(c.blocks) != 0 {
		return errors.New("history already initialized")
	}

	block, err := c.generateBlock(commitmentRoot, GenesisHeight, genesisTime, params)
	if err != nil {
		return err
	}
	c.blocks = append(c.blocks, block)
	return nil
}

// History returns the retained blocks, most-recent-last.
func (c *Chain) History() []host.Block {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	history := make([]host.Block, len(c.blocks))
	for i, b := range c.blocks {
		history[i] = b
	}
	return history
}

// LatestBlock returns the most recent block. It panics on an uninitialized
// history, which is a harness usage error.
func (c *Chain) LatestBlock() host.Block {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	return c.blocks[len(c.blocks)-1]
}

// BlockAtHeight returns the block at the given height, if retained.
func (c *Chain) BlockAtHeight(height uint64) (host.Block, bool) {
	c.mtx.RLock()
	defer c.mtx.RUnlock()

	block, ok := c.blockAtHeight(height)
	return block, ok
}

func (c *Chain) blockAtHeight(height uint64) (*Block, bool) {
	if len(c.blocks) == 0 {
		return nil, false
	}
	first := c.blocks[0].BlockHeight
	if height < first || height > c.blocks[len(c.blocks)-1].BlockHeight {
		return nil, false
	}
	return c.blocks[height-first], true
}

// GenerateBlock deterministically derives a block from its inputs.
func (c *Chain) GenerateBlock(commitmentRoot []byte, height uint64, timestamp time.Time, params host.BlockParams) (host.Block, error) {
	block, err := c.generateBlock(commitmentRoot, height, timestamp, params)
	if err != nil {
		return nil, err
	}
	return block, nil
}

func (c *Chain) generateBlock(commitmentRoot []byte, height uint64, timestamp time.Time, params host.BlockParams) (*Block, error) {
	blockParams, err := castBlockParams(params)
	if err != nil {
		return nil, err
	}

	// copy the root so later store writes cannot alias into history
	root := make([]byte, len(commitmentRoot))
	copy(root, commitmentRoot)

	return &Block{
		ChainID:        c.chainID,
		BlockHeight:    height,
		BlockTime:      timestamp.UTC(),
		CommitmentRoot: root,
		Payload:        blockParams.Payload,
	}, nil
}

// AdvanceBlock appends the next block using the given committed root and the
// elapsed block time.
func (c *Chain) AdvanceBlock(commitmentRoot []byte, blockTime time.Duration, params host.BlockParams) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if len(c.blocks) == 0 {
		return errors.New("history not initialized")
	}

	latest := c.blocks[len(c.blocks)-1]
	block, err := c.generateBlock(commitmentRoot, latest.BlockHeight+1, latest.BlockTime.Add(blockTime), params)
	if err != nil {
		return err
	}
	c.blocks = append(c.blocks, block)
	return nil
}

// GenerateClientState derives a client configuration from the block at
// latestHeight.
func (c *Chain) GenerateClientState(latestHeight uint64, params host.ClientParams) (host.ClientState, error) {
	if _, ok := params.(*ClientParams); !ok && params != nil {
		return nil, errors.Errorf("expected mock client params, got %T", params)
	}

	c.mtx.RLock()
	defer c.mtx.RUnlock()

	if _, ok := c.blockAtHeight(latestHeight); !ok {
		return nil, errors.Errorf("no block at height %d", latestHeight)
	}

	return &ClientState{ChainID: c.chainID, LatestHeight: latestHeight}, nil
}

// PruneHistory drops all blocks with height strictly below till. The latest
// block is never dropped.
func (c *Chain) PruneHistory(till uint64) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if len(c.blocks) == 0 {
		return errors.New("history not initialized")
	}
	latest := c.blocks[len(c.blocks)-1].BlockHeight
	if till > latest {
		return errors.Errorf("cannot prune till %d: latest height is %d", till, latest)
	}

	first := c.blocks[0].BlockHeight
	if till <= first {
		return nil
	}
	c.blocks = c.blocks[till-first:]
	return nil
}
