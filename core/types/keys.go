package types

import "fmt"

const (
	// ModuleName is the name of the protocol module.
	ModuleName = "ibc"

	// StoreKey is the commitment-prefix key under which the module store's
	// root is committed in the chain's top-level store. External verifiers
	// must use this exact path when checking proofs against the top-level
	// root.
	StoreKey = ModuleName
)

// Identifier sequence keys. Seeded at genesis so the module store is never
// empty at its first commit.
const (
	KeyNextClientSequence     = "nextClientSequence"
	KeyNextConnectionSequence = "nextConnectionSequence"
	KeyNextChannelSequence    = "nextChannelSequence"
)

// The paths below follow the ICS24 path space, so proofs produced by the
// harness address state the same way a production chain would.

// FullClientStatePath returns the path under which the client state of a
// particular client is stored.
func FullClientStatePath(clientID string) string {
	return fmt.Sprintf("clients/%s/clientState", clientID)
}

// FullConsensusStatePath returns the path under which the consensus state of
// a client at a particular height is stored.
func FullConsensusStatePath(clientID string, height uint64) string {
	return fmt.Sprintf("clients/%s/consensusStates/%d", clientID, height)
}

// ConnectionPath returns the path under which a connection end is stored.
func ConnectionPath(connectionID string) string {
	return fmt.Sprintf("connections/%s", connectionID)
}

// ChannelPath returns the path under which a channel end is stored.
func ChannelPath(portID, channelID string) string {
	return fmt.Sprintf("channelEnds/ports/%s/channels/%s", portID, channelID)
}

// PacketCommitmentPath returns the path under which a packet commitment is
// stored.
func PacketCommitmentPath(portID, channelID string, sequence uint64) string {
	return fmt.Sprintf("commitments/ports/%s/channels/%s/sequences/%d", portID, channelID, sequence)
}

// PacketAcknowledgementPath returns the path under which a packet
// acknowledgement is stored.
func PacketAcknowledgementPath(portID, channelID string, sequence uint64) string {
	return fmt.Sprintf("acks/ports/%s/channels/%s/sequences/%d", portID, channelID, sequence)
}

// PacketReceiptPath returns the path under which a packet receipt is stored.
func PacketReceiptPath(portID, channelID string, sequence uint64) string {
	return fmt.Sprintf("receipts/ports/%s/channels/%s/sequences/%d", portID, channelID, sequence)
}

// NextSequenceSendPath returns the path storing the next send sequence of a
// channel.
func NextSequenceSendPath(portID, channelID string) string {
	return fmt.Sprintf("nextSequenceSend/ports/%s/channels/%s", portID, channelID)
}

// NextSequenceRecvPath returns the path storing the next receive sequence of
// a channel.
func NextSequenceRecvPath(portID, channelID string) string {
	return fmt.Sprintf("nextSequenceRecv/ports/%s/channels/%s", portID, channelID)
}

// FormatClientIdentifier returns the client identifier for the given client
// type and sequence, e.g. "00-mock-3".
func FormatClientIdentifier(clientType string, sequence uint64) string {
	return fmt.Sprintf("%s-%d", clientType, sequence)
}

// FormatConnectionIdentifier returns the connection identifier for the given
// sequence.
func FormatConnectionIdentifier(sequence uint64) string {
	return fmt.Sprintf("connection-%d", sequence)
}

// FormatChannelIdentifier returns the channel identifier for the given
// sequence.
func FormatChannelIdentifier(sequence uint64) string {
	return fmt.Sprintf("channel-%d", sequence)
}
