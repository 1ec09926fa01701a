package types

import "github.com/pkg/errors"

var (
	ErrClientNotFound         = errors.New("client not found")
	ErrConsensusStateNotFound = errors.New("consensus state not found")
	ErrConnectionNotFound     = errors.New("connection not found")
	ErrChannelNotFound        = errors.New("channel not found")
	ErrInvalidClient          = errors.New("invalid client")
	ErrInvalidConnectionState = errors.New("invalid connection state")
	ErrInvalidChannelState    = errors.New("invalid channel state")
	ErrInvalidPacket          = errors.New("invalid packet")
	ErrCommitmentNotFound     = errors.New("packet commitment not found")
	ErrUnknownMessageType     = errors.New("unknown message type")
	ErrUnknownHeaderType      = errors.New("unknown header type")
)
