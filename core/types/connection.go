package types

import (
	"github.com/pkg/errors"
	tmjson "github.com/tendermint/tendermint/libs/json"
)

// ConnectionState is the state of a connection end during its handshake.
type ConnectionState int32

const (
	ConnectionUninitialized ConnectionState = iota
	ConnectionInit
	ConnectionTryOpen
	ConnectionOpen
)

// String implements fmt.Stringer.
func (s ConnectionState) String() string {
	switch s {
	case ConnectionInit:
		return "INIT"
	case ConnectionTryOpen:
		return "TRYOPEN"
	case ConnectionOpen:
		return "OPEN"
	default:
		return "UNINITIALIZED"
	}
}

// ConnectionCounterparty identifies the remote end of a connection together
// with the commitment prefix its module state is committed under.
type ConnectionCounterparty struct {
	ClientID     string `json:"client_id"`
	ConnectionID string `json:"connection_id"`
	Prefix       string `json:"prefix"`
}

// ConnectionEnd is one chain's view of a connection.
type ConnectionEnd struct {
	ClientID     string                 `json:"client_id"`
	Counterparty ConnectionCounterparty `json:"counterparty"`
	State        ConnectionState        `json:"state"`
	DelayPeriod  uint64                 `json:"delay_period"`
}

// NewConnectionEnd builds a connection end in the given handshake state.
func NewConnectionEnd(state ConnectionState, clientID string, counterparty ConnectionCounterparty, delayPeriod uint64) ConnectionEnd {
	return ConnectionEnd{
		ClientID:     clientID,
		Counterparty: counterparty,
		State:        state,
		DelayPeriod:  delayPeriod,
	}
}

// MarshalConnectionEnd serializes a connection end for storage under its
// ICS24 path. The encoding is deterministic; proof verification compares
// these bytes across chains.
func MarshalConnectionEnd(connection ConnectionEnd) ([]byte, error) {
	return tmjson.Marshal(connection)
}

// UnmarshalConnectionEnd is the inverse of MarshalConnectionEnd.
func UnmarshalConnectionEnd(bz []byte) (ConnectionEnd, error) {
	var connection ConnectionEnd
	if err := tmjson.Unmarshal(bz, &connection); err != nil {
		return ConnectionEnd{}, errors.Wrap(err, "unmarshaling connection end")
	}
	return connection, nil
}
