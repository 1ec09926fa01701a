package tendermint

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/tendermint/tendermint/crypto/ed25519"
	"github.com/tendermint/tendermint/crypto/tmhash"
	tmproto "github.com/tendermint/tendermint/proto/tendermint/types"
	tmprotoversion "github.com/tendermint/tendermint/proto/tendermint/version"
	tmtypes "github.com/tendermint/tendermint/types"
	tmversion "github.com/tendermint/tendermint/version"

	"github.com/interop-labs/ibcsim/host"
)

// DefaultValidatorPower is the voting power assigned to each generated
// validator.
const DefaultValidatorPower = 1

// Chain is the tendermint HostChain. Validator keys are derived from the
// chain id, so block generation is reproducible across runs.
type Chain struct {
	mtx     sync.RWMutex
	chainID string
	valSet  *tmtypes.ValidatorSet
	signers []tmtypes.PrivValidator
	blocks  []*Block
}

var _ host.HostChain = (*Chain)(nil)

// NewChain returns a tendermint host with numValidators deterministic
// validators and an empty history.
func NewChain(chainID string, numValidators int) *Chain {
	validators := make([]*tmtypes.Validator, numValidators)
	signersByAddress := make(map[string]tmtypes.PrivValidator, numValidators)

	for i := 0; i < numValidators; i++ {
		privKey := ed25519.GenPrivKeyFromSecret([]byte(fmt.Sprintf("%s/val/%d", chainID, i)))
		pv := tmtypes.NewMockPVWithParams(privKey, false, false)
		pubKey, err := pv.GetPubKey()
		if err != nil {
			panic(err)
		}
		validators[i] = tmtypes.NewValidator(pubKey, DefaultValidatorPower)
		signersByAddress[pubKey.Address().String()] = pv
	}

	valSet := tmtypes.NewValidatorSet(validators)

	// the signer array must match the validator set's internal ordering
	signers := make([]tmtypes.PrivValidator, len(valSet.Validators))
	for i, val := range valSet.Validators {
		signers[i] = signersByAddress[val.Address.String()]
	}

	return &Chain{
		chainID: chainID,
		valSet:  valSet,
		signers: signers,
	}
}

func (c *Chain) ChainID() string { return c.chainID }

// ValidatorSet returns the chain's validator set.
func (c *Chain) ValidatorSet() *tmtypes.ValidatorSet { return c.valSet }

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
	first := c.blocks[0].Height()
	if height < first || height > c.blocks[len(c.blocks)-1].Height() {
		return nil, false
	}
	return c.blocks[height-first], true
}

// GenerateBlock deterministically derives a signed block from its inputs:
// the header fields are fixed functions of the inputs and vote signatures
// use deterministic ed25519 keys.
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

	vsetHash := c.valSet.Hash()

	tmHeader := tmtypes.Header{
		Version:            tmprotoversion.Consensus{Block: tmversion.BlockProtocol, App: blockParams.AppVersion},
		ChainID:            c.chainID,
		Height:             int64(height),
		Time:               timestamp.UTC(),
		LastBlockID:        makeBlockID(make([]byte, tmhash.Size), 10_000, make([]byte, tmhash.Size)),
		LastCommitHash:     tmhash.Sum([]byte("last_commit_hash")),
		DataHash:           tmhash.Sum([]byte("data_hash")),
		ValidatorsHash:     vsetHash,
		NextValidatorsHash: vsetHash,
		ConsensusHash:      tmhash.Sum([]byte("consensus_hash")),
		AppHash:            commitmentRoot,
		LastResultsHash:    tmhash.Sum([]byte("last_results_hash")),
		EvidenceHash:       tmhash.Sum([]byte("evidence_hash")),
		ProposerAddress:    c.valSet.Proposer.Address,
	}

	hhash := tmHeader.Hash()
	blockID := makeBlockID(hhash, 3, tmhash.Sum([]byte("part_set")))
	voteSet := tmtypes.NewVoteSet(c.chainID, int64(height), 1, tmproto.PrecommitType, c.valSet)

	commit, err := tmtypes.MakeCommit(blockID, int64(height), 1, voteSet, c.signers, timestamp.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "committing generated header")
	}

	valSetProto, err := c.valSet.ToProto()
	if err != nil {
		return nil, errors.Wrap(err, "converting validator set")
	}

	return &Block{
		SignedHeader: &tmproto.SignedHeader{
			Header: tmHeader.ToProto(),
			Commit: commit.ToProto(),
		},
		ValidatorSet: valSetProto,
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
	block, err := c.generateBlock(commitmentRoot, latest.Height()+1, latest.Time().Add(blockTime), params)
	if err != nil {
		return err
	}
	c.blocks = append(c.blocks, block)
	return nil
}

// GenerateClientState derives a client configuration from the block at
// latestHeight.
func (c *Chain) GenerateClientState(latestHeight uint64, params host.ClientParams) (host.ClientState, error) {
	clientParams, err := castClientParams(params)
	if err != nil {
		return nil, err
	}

	c.mtx.RLock()
	defer c.mtx.RUnlock()

	if _, ok := c.blockAtHeight(latestHeight); !ok {
		return nil, errors.Errorf("no block at height %d", latestHeight)
	}

	return &ClientState{
		ChainID:         c.chainID,
		TrustLevel:      clientParams.TrustLevel,
		TrustingPeriod:  clientParams.TrustingPeriod,
		UnbondingPeriod: clientParams.UnbondingPeriod,
		MaxClockDrift:   clientParams.MaxClockDrift,
		LatestHeight:    latestHeight,
	}, nil
}

// PruneHistory drops all blocks with height strictly below till. The latest
// block is never dropped.
func (c *Chain) PruneHistory(till uint64) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if len(c.blocks) == 0 {
		return errors.New("history not initialized")
	}
	latest := c.blocks[len(c.blocks)-1].Height()
	if till > latest {
		return errors.Errorf("cannot prune till %d: latest height is %d", till, latest)
	}

	first := c.blocks[0].Height()
	if till <= first {
		return nil
	}
	c.blocks = c.blocks[till-first:]
	return nil
}

func castBlockParams(params host.BlockParams) (*BlockParams, error) {
	if params == nil {
		return DefaultBlockParams(), nil
	}
	p, ok := params.(*BlockParams)
	if !ok {
		return nil, errors.Errorf("expected tendermint block params, got %T", params)
	}
	return p, nil
}

func castClientParams(params host.ClientParams) (*ClientParams, error) {
	if params == nil {
		return DefaultClientParams(), nil
	}
	p, ok := params.(*ClientParams)
	if !ok {
		return nil, errors.Errorf("expected tendermint client params, got %T", params)
	}
	return p, nil
}

// makeBlockID assembles a block id from its parts.
func makeBlockID(hash []byte, partSetSize uint32, partSetHash []byte) tmtypes.BlockID {
	return tmtypes.BlockID{
		Hash: hash,
		PartSetHeader: tmtypes.PartSetHeader{
			Total: partSetSize,
			Hash:  partSetHash,
		},
	}
}
