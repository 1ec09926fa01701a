package types

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/pkg/errors"
)

// Packet is a piece of data sent over a channel, relayed by observing the
// send_packet event on the source chain.
type Packet struct {
	Sequence           uint64 `json:"sequence"`
	SourcePort         string `json:"source_port"`
	SourceChannel      string `json:"source_channel"`
	DestinationPort    string `json:"destination_port"`
	DestinationChannel string `json:"destination_channel"`
	Data               []byte `json:"data"`
	TimeoutHeight      uint64 `json:"timeout_height"`
	TimeoutTimestamp   uint64 `json:"timeout_timestamp"`
}

// NewPacket builds a packet.
func NewPacket(data []byte, sequence uint64, sourcePort, sourceChannel, destinationPort, destinationChannel string, timeoutHeight, timeoutTimestamp uint64) Packet {
	return Packet{
		Sequence:           sequence,
		SourcePort:         sourcePort,
		SourceChannel:      sourceChannel,
		DestinationPort:    destinationPort,
		DestinationChannel: destinationChannel,
		Data:               data,
		TimeoutHeight:      timeoutHeight,
		TimeoutTimestamp:   timeoutTimestamp,
	}
}

// ValidateBasic rejects structurally invalid packets.
func (p Packet) ValidateBasic() error {
	if p.Sequence == 0 {
		return errors.Wrap(ErrInvalidPacket, "packet sequence cannot be 0")
	}
	if p.SourcePort == "" || p.SourceChannel == "" || p.DestinationPort == "" || p.DestinationChannel == "" {
		return errors.Wrap(ErrInvalidPacket, "packet endpoints cannot be empty")
	}
	if len(p.Data) == 0 {
		return errors.Wrap(ErrInvalidPacket, "packet data cannot be empty")
	}
	return nil
}

// CommitPacket returns the commitment bytes stored under the packet
// commitment path: sha256(timeoutTimestamp || timeoutHeight || sha256(data)).
// Only the fields needed to verify timeouts and data integrity are bound.
func CommitPacket(packet Packet) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[:8], packet.TimeoutTimestamp)
	binary.BigEndian.PutUint64(buf[8:], packet.TimeoutHeight)

	dataHash := sha256.Sum256(packet.Data)
	buf = append(buf, dataHash[:]...)

	hash := sha256.Sum256(buf)
	return hash[:]
}

// CommitAcknowledgement returns the commitment bytes stored under the packet
// acknowledgement path.
func CommitAcknowledgement(ack []byte) []byte {
	hash := sha256.Sum256(ack)
	return hash[:]
}
