package ibcsim

import (
	"github.com/interop-labs/ibcsim/core/types"
)

const (
	// MockPort is the default port channels are opened on.
	MockPort = "mock"

	// DefaultChannelVersion is the application version negotiated by default
	// channel handshakes.
	DefaultChannelVersion = "ibcsim-1"

	// DefaultDelayPeriod is the connection delay period used by default
	// handshakes.
	DefaultDelayPeriod uint64 = 0
)

// ConnectionConfig carries the parameters an endpoint uses when opening
// connections.
type ConnectionConfig struct {
	DelayPeriod uint64
}

func NewConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		DelayPeriod: DefaultDelayPeriod,
	}
}

// ChannelConfig carries the parameters an endpoint uses when opening
// channels.
type ChannelConfig struct {
	PortID  string
	Version string
	Order   types.ChannelOrder
}

func NewChannelConfig() *ChannelConfig {
	return &ChannelConfig{
		PortID:  MockPort,
		Version: DefaultChannelVersion,
		Order:   types.Unordered,
	}
}
