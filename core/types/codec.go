package types

import (
	gogotypes "github.com/gogo/protobuf/types"
	"github.com/pkg/errors"
	tmjson "github.com/tendermint/tendermint/libs/json"

	"github.com/interop-labs/ibcsim/host"
)

// headerUnpackers maps an Any type URL to the backend-provided function that
// reconstructs the concrete header. Backends register themselves in init().
var headerUnpackers = make(map[string]func(value []byte) (host.Header, error))

// RegisterHeaderType registers the unpacker for a backend's header type URL.
// Registering the same URL twice panics, as it would silently shadow a
// backend.
func RegisterHeaderType(typeURL string, unpack func(value []byte) (host.Header, error)) {
	if _, ok := headerUnpackers[typeURL]; ok {
		panic("header type URL already registered: " + typeURL)
	}
	headerUnpackers[typeURL] = unpack
}

// UnpackHeader reconstructs a backend header from its any-typed wire form.
func UnpackHeader(anyHeader *gogotypes.Any) (host.Header, error) {
	if anyHeader == nil {
		return nil, errors.Wrap(ErrUnknownHeaderType, "nil header")
	}
	unpack, ok := headerUnpackers[anyHeader.TypeUrl]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownHeaderType, "no unpacker registered for %s", anyHeader.TypeUrl)
	}
	return unpack(anyHeader.Value)
}

// MarshalClientState serializes a client state for storage under its ICS24
// path. Backend concrete types must be registered with tmjson.
func MarshalClientState(clientState host.ClientState) ([]byte, error) {
	return tmjson.Marshal(clientState)
}

// UnmarshalClientState is the inverse of MarshalClientState.
func UnmarshalClientState(bz []byte) (host.ClientState, error) {
	var clientState host.ClientState
	if err := tmjson.Unmarshal(bz, &clientState); err != nil {
		return nil, errors.Wrap(err, "unmarshaling client state")
	}
	return clientState, nil
}

// MarshalConsensusState serializes a consensus state for storage.
func MarshalConsensusState(consensusState host.ConsensusState) ([]byte, error) {
	return tmjson.Marshal(consensusState)
}

// UnmarshalConsensusState is the inverse of MarshalConsensusState.
func UnmarshalConsensusState(bz []byte) (host.ConsensusState, error) {
	var consensusState host.ConsensusState
	if err := tmjson.Unmarshal(bz, &consensusState); err != nil {
		return nil, errors.Wrap(err, "unmarshaling consensus state")
	}
	return consensusState, nil
}
