// Package tendermint implements the consensus-header host backend: blocks
// carry validator-set-backed signed headers in the shape a Tendermint chain
// produces, so harness proofs and consensus states exercise the same code
// paths a production light client would see.
package tendermint

import (
	"bytes"
	"time"

	gogotypes "github.com/gogo/protobuf/types"
	"github.com/pkg/errors"
	tmjson "github.com/tendermint/tendermint/libs/json"
	tmproto "github.com/tendermint/tendermint/proto/tendermint/types"
	tmtypes "github.com/tendermint/tendermint/types"

	"github.com/interop-labs/ibcsim/core/types"
	"github.com/interop-labs/ibcsim/host"
)

// ClientType identifies tendermint light clients.
const ClientType = "07-tendermint"

// HeaderTypeURL is the any-typed wire identifier of tendermint headers.
const HeaderTypeURL = "/ibcsim.tendermint.Header"

// GenesisHeight is the height of the genesis block.
const GenesisHeight = 1

// Default client trust parameters, matching common production settings.
var (
	DefaultTrustLevel      = Fraction{Numerator: 1, Denominator: 3}
	DefaultTrustingPeriod  = time.Hour * 24 * 7 * 2
	DefaultUnbondingPeriod = time.Hour * 24 * 7 * 3
	DefaultMaxClockDrift   = time.Second * 10
)

func init() {
	tmjson.RegisterType(&ClientState{}, "ibcsim/tendermint/ClientState")
	tmjson.RegisterType(&ConsensusState{}, "ibcsim/tendermint/ConsensusState")
	tmjson.RegisterType(&Header{}, "ibcsim/tendermint/Header")

	types.RegisterHeaderType(HeaderTypeURL, func(value []byte) (host.Header, error) {
		// decode through the interface so the registry's type wrapper applies
		var header host.Header
		if err := tmjson.Unmarshal(value, &header); err != nil {
			return nil, errors.Wrap(err, "unpacking tendermint header")
		}
		if _, ok := header.(*Header); !ok {
			return nil, errors.Errorf("expected tendermint header, got %T", header)
		}
		return header, nil
	})
}

// Fraction is the client trust level.
type Fraction struct {
	Numerator   uint64 `json:"numerator"`
	Denominator uint64 `json:"denominator"`
}

// BlockParams configures tendermint block generation.
type BlockParams struct {
	// AppVersion is carried in the header's consensus version.
	AppVersion uint64 `json:"app_version"`
}

// DefaultBlockParams returns the default tendermint block params.
func DefaultBlockParams() *BlockParams {
	return &BlockParams{AppVersion: 2}
}

// WithAppVersion sets the header's app version.
func (p *BlockParams) WithAppVersion(version uint64) *BlockParams {
	p.AppVersion = version
	return p
}

func (*BlockParams) GetBlockType() string { return ClientType }

var _ host.BlockParams = (*BlockParams)(nil)

// ClientParams configures tendermint client-state generation.
type ClientParams struct {
	TrustLevel      Fraction      `json:"trust_level"`
	TrustingPeriod  time.Duration `json:"trusting_period"`
	UnbondingPeriod time.Duration `json:"unbonding_period"`
	MaxClockDrift   time.Duration `json:"max_clock_drift"`
}

// DefaultClientParams returns client params with the default trust settings.
func DefaultClientParams() *ClientParams {
	return &ClientParams{
		TrustLevel:      DefaultTrustLevel,
		TrustingPeriod:  DefaultTrustingPeriod,
		UnbondingPeriod: DefaultUnbondingPeriod,
		MaxClockDrift:   DefaultMaxClockDrift,
	}
}

// WithTrustingPeriod sets the trusting period.
func (p *ClientParams) WithTrustingPeriod(d time.Duration) *ClientParams {
	p.TrustingPeriod = d
	return p
}

// WithUnbondingPeriod sets the unbonding period.
func (p *ClientParams) WithUnbondingPeriod(d time.Duration) *ClientParams {
	p.UnbondingPeriod = d
	return p
}

func (*ClientParams) GetClientType() string { return ClientType }

var _ host.ClientParams = (*ClientParams)(nil)

// Block is a tendermint chain block: a signed header plus the validator set
// that committed it.
type Block struct {
	SignedHeader *tmproto.SignedHeader `json:"signed_header"`
	ValidatorSet *tmproto.ValidatorSet `json:"validator_set"`
}

var _ host.Block = (*Block)(nil)

func (b *Block) Height() uint64 {
	return uint64(b.SignedHeader.Header.Height)
}

func (b *Block) Time() time.Time {
	return b.SignedHeader.Header.Time
}

// Header derives the light-client update view of this block. Trusted fields
// are left empty; the relayer injects them before submission, mirroring how
// production relayers query the client for a trusted height.
func (b *Block) Header() host.Header {
	return &Header{
		SignedHeader: b.SignedHeader,
		ValidatorSet: b.ValidatorSet,
	}
}

// Header is a tendermint light-client update.
type Header struct {
	SignedHeader      *tmproto.SignedHeader `json:"signed_header"`
	ValidatorSet      *tmproto.ValidatorSet `json:"validator_set"`
	TrustedHeight     uint64                `json:"trusted_height,omitempty"`
	TrustedValidators *tmproto.ValidatorSet `json:"trusted_validators,omitempty"`
}

var _ host.Header = (*Header)(nil)

func (*Header) ClientType() string { return ClientType }

func (h *Header) Height() uint64 {
	return uint64(h.SignedHeader.Header.Height)
}

func (h *Header) Time() time.Time {
	return h.SignedHeader.Header.Time
}

// ConsensusState returns the consensus state a counterparty records for this
// header's height.
func (h *Header) ConsensusState() host.ConsensusState {
	return &ConsensusState{
		Root:               h.SignedHeader.Header.AppHash,
		Timestamp:          uint64(h.SignedHeader.Header.Time.UnixNano()),
		NextValidatorsHash: h.SignedHeader.Header.NextValidatorsHash,
	}
}

// Pack converts the header into its any-typed wire form.
func (h *Header) Pack() (*gogotypes.Any, error) {
	bz, err := tmjson.Marshal(h)
	if err != nil {
		return nil, errors.Wrap(err, "packing tendermint header")
	}
	return &gogotypes.Any{TypeUrl: HeaderTypeURL, Value: bz}, nil
}

// ConsensusState is the light-client snapshot of a tendermint chain at one
// height.
type ConsensusState struct {
	Root               []byte `json:"root"`
	Timestamp          uint64 `json:"timestamp"`
	NextValidatorsHash []byte `json:"next_validators_hash"`
}

var _ host.ConsensusState = (*ConsensusState)(nil)

func (*ConsensusState) ClientType() string      { return ClientType }
func (cs *ConsensusState) GetRoot() []byte      { return cs.Root }
func (cs *ConsensusState) GetTimestamp() uint64 { return cs.Timestamp }

func (cs *ConsensusState) ValidateBasic() error {
	if len(cs.Root) == 0 {
		return errors.Wrap(host.ErrInvalidHeader, "tendermint consensus state root cannot be empty")
	}
	if len(cs.NextValidatorsHash) == 0 {
		return errors.Wrap(host.ErrInvalidHeader, "next validators hash cannot be empty")
	}
	return nil
}

// ClientState is the light-client configuration for a tendermint chain.
type ClientState struct {
	ChainID         string        `json:"chain_id"`
	TrustLevel      Fraction      `json:"trust_level"`
	TrustingPeriod  time.Duration `json:"trusting_period"`
	UnbondingPeriod time.Duration `json:"unbonding_period"`
	MaxClockDrift   time.Duration `json:"max_clock_drift"`
	LatestHeight    uint64        `json:"latest_height"`
}

var _ host.ClientState = (*ClientState)(nil)

func (*ClientState) ClientType() string         { return ClientType }
func (cs *ClientState) GetChainID() string      { return cs.ChainID }
func (cs *ClientState) GetLatestHeight() uint64 { return cs.LatestHeight }

func (cs *ClientState) Validate() error {
	if cs.ChainID == "" {
		return errors.Wrap(host.ErrInvalidHeader, "tendermint client chain id cannot be empty")
	}
	if cs.TrustingPeriod <= 0 || cs.UnbondingPeriod <= 0 {
		return errors.Wrap(host.ErrInvalidHeader, "trusting and unbonding periods must be positive")
	}
	if cs.TrustingPeriod >= cs.UnbondingPeriod {
		return errors.Wrap(host.ErrInvalidHeader, "trusting period must be strictly less than unbonding period")
	}
	if cs.LatestHeight == 0 {
		return errors.Wrap(host.ErrInvalidHeader, "tendermint client latest height cannot be zero")
	}
	return nil
}

// CheckHeaderAndUpdateState verifies header monotonicity and that the
// carried validator set hashes to the header's validators hash, then returns
// the updated client and the consensus state to record. Full light-client
// bisection verification is out of scope for the harness.
func (cs *ClientState) CheckHeaderAndUpdateState(stored host.ConsensusState, header host.Header) (host.ClientState, host.ConsensusState, error) {
	tmHeader, ok := header.(*Header)
	if !ok {
		return nil, nil, errors.Wrapf(host.ErrInvalidHeader, "expected tendermint header, got %T", header)
	}
	if tmHeader.SignedHeader.Header.ChainID != cs.ChainID {
		return nil, nil, errors.Wrapf(host.ErrInvalidHeader, "header chain id %s does not match client chain id %s", tmHeader.SignedHeader.Header.ChainID, cs.ChainID)
	}
	if tmHeader.Height() <= cs.LatestHeight {
		return nil, nil, errors.Wrapf(host.ErrInvalidHeader, "header height %d is not greater than latest client height %d", tmHeader.Height(), cs.LatestHeight)
	}
	if stored != nil && uint64(tmHeader.Time().UnixNano()) < stored.GetTimestamp() {
		return nil, nil, errors.Wrap(host.ErrInvalidHeader, "header time regressed")
	}

	valSet, err := tmtypes.ValidatorSetFromProto(tmHeader.ValidatorSet)
	if err != nil {
		return nil, nil, errors.Wrap(host.ErrInvalidHeader, "invalid validator set")
	}
	if !bytes.Equal(valSet.Hash(), tmHeader.SignedHeader.Header.ValidatorsHash) {
		return nil, nil, errors.Wrap(host.ErrInvalidHeader, "validator set does not hash to the header's validators hash")
	}

	updated := *cs
	updated.LatestHeight = tmHeader.Height()
	return &updated, tmHeader.ConsensusState(), nil
}
