package host

import (
	"time"

	"github.com/gogo/protobuf/types"
)

// Block is the view chain-agnostic code has of a backend-specific block. A
// block is produced once by its HostChain and never mutated afterwards.
type Block interface {
	Height() uint64
	Time() time.Time

	// Header derives the light-client header view of this block. Block
	// payload that exceeds the header is not reachable through the result.
	Header() Header
}

// Header is the light-client update view derived from a Block. It carries
// enough data to derive a ConsensusState and can be packed into the
// protocol's generic any-typed wire message.
type Header interface {
	ClientType() string
	Height() uint64
	Time() time.Time

	// ConsensusState returns the consensus state a counterparty records for
	// this header's height.
	ConsensusState() ConsensusState

	// Pack converts the header into the generic any-typed message used on
	// the wire. Unpacking is registered per client type, see core/types.
	Pack() (*types.Any, error)
}

// ConsensusState is the backend-specific snapshot of light-client-relevant
// data recorded by the protocol module, one per tracked height.
type ConsensusState interface {
	ClientType() string
	GetRoot() []byte
	GetTimestamp() uint64
	ValidateBasic() error
}

// ClientState is a backend-specific light-client configuration object.
type ClientState interface {
	ClientType() string
	GetChainID() string
	GetLatestHeight() uint64
	Validate() error

	// CheckHeaderAndUpdateState verifies the provided header against the
	// stored consensus state and returns the updated client and the new
	// consensus state to record. Backends are not required to perform real
	// light-client cryptography, only the checks their consensus model
	// makes meaningful.
	CheckHeaderAndUpdateState(stored ConsensusState, header Header) (ClientState, ConsensusState, error)
}

// BlockParams is an opaque, backend-specific block generation config.
// Backends expose builder-style constructors with documented defaults.
type BlockParams interface {
	GetBlockType() string
}

// ClientParams is an opaque, backend-specific client construction config.
type ClientParams interface {
	GetClientType() string
}

// HostChain is the capability contract a simulated backend implements once.
// It owns the chain's block history and is the only component that knows the
// concrete block, header and client-state types.
//
// History heights are strictly increasing and gap-free from genesis. Blocks
// are append-only, most-recent-last.
type HostChain interface {
	ChainID() string

	// InitGenesis initializes an empty history with a single genesis block
	// at the starting height and the given absolute genesis time.
	InitGenesis(commitmentRoot []byte, genesisTime time.Time, params BlockParams) error

	// History returns the retained blocks, ordered by ascending height.
	History() []Block

	// LatestBlock returns the most recent block in history.
	LatestBlock() Block

	// BlockAtHeight returns the block at the given height, if retained.
	BlockAtHeight(height uint64) (Block, bool)

	// GenerateBlock deterministically derives a block from the given
	// committed root, height and timestamp. It is a pure function: no side
	// effects, bit-identical output for identical inputs.
	GenerateBlock(commitmentRoot []byte, height uint64, timestamp time.Time, params BlockParams) (Block, error)

	// AdvanceBlock appends a new block to history using the given committed
	// root and the elapsed block time. It mutates only the host's history.
	AdvanceBlock(commitmentRoot []byte, blockTime time.Duration, params BlockParams) error

	// GenerateClientState derives a light-client configuration from the
	// block at latestHeight. Pure and deterministic.
	GenerateClientState(latestHeight uint64, params ClientParams) (ClientState, error)

	// PruneHistory drops all blocks with height strictly below till. The
	// latest block is never dropped.
	PruneHistory(till uint64) error
}
