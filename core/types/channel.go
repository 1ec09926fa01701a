package types

import (
	"github.com/pkg/errors"
	tmjson "github.com/tendermint/tendermint/libs/json"
)

// ChannelState is the state of a channel end during its handshake.
type ChannelState int32

const (
	ChannelUninitialized ChannelState = iota
	ChannelInit
	ChannelTryOpen
	ChannelOpen
)

// String implements fmt.Stringer.
func (s ChannelState) String() string {
	switch s {
	case ChannelInit:
		return "INIT"
	case ChannelTryOpen:
		return "TRYOPEN"
	case ChannelOpen:
		return "OPEN"
	default:
		return "UNINITIALIZED"
	}
}

// ChannelOrder is the ordering guarantee of a channel.
type ChannelOrder int32

const (
	Unordered ChannelOrder = iota
	Ordered
)

// ChannelCounterparty identifies the remote end of a channel.
type ChannelCounterparty struct {
	PortID    string `json:"port_id"`
	ChannelID string `json:"channel_id"`
}

// Channel is one chain's view of a channel end.
type Channel struct {
	State          ChannelState        `json:"state"`
	Ordering       ChannelOrder        `json:"ordering"`
	Counterparty   ChannelCounterparty `json:"counterparty"`
	ConnectionHops []string            `json:"connection_hops"`
	Version        string              `json:"version"`
}

// NewChannel builds a channel end in the given handshake state.
func NewChannel(state ChannelState, ordering ChannelOrder, counterparty ChannelCounterparty, connectionHops []string, version string) Channel {
	return Channel{
		State:          state,
		Ordering:       ordering,
		Counterparty:   counterparty,
		ConnectionHops: connectionHops,
		Version:        version,
	}
}

// MarshalChannel serializes a channel end for storage under its ICS24 path.
func MarshalChannel(channel Channel) ([]byte, error) {
	return tmjson.Marshal(channel)
}

// UnmarshalChannel is the inverse of MarshalChannel.
func UnmarshalChannel(bz []byte) (Channel, error) {
	var channel Channel
	if err := tmjson.Unmarshal(bz, &channel); err != nil {
		return Channel{}, errors.Wrap(err, "unmarshaling channel")
	}
	return channel, nil
}
