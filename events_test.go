package ibcsim_test

import (
	"encoding/hex"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	abci "github.com/tendermint/tendermint/abci/types"

	"github.com/interop-labs/ibcsim"
	"github.com/interop-labs/ibcsim/core/types"
)

func TestParsePacketFromEvents(t *testing.T) {
	packet := types.NewPacket([]byte("data"), 3, "mock", "channel-0", "mock", "channel-1", 7, 9)

	ev := types.NewEvent(types.EventTypeSendPacket,
		types.NewAttribute(types.AttributeKeyDataHex, hex.EncodeToString(packet.Data)),
		types.NewAttribute(types.AttributeKeySequence, strconv.FormatUint(packet.Sequence, 10)),
		types.NewAttribute(types.AttributeKeySrcPort, packet.SourcePort),
		types.NewAttribute(types.AttributeKeySrcChannel, packet.SourceChannel),
		types.NewAttribute(types.AttributeKeyDstPort, packet.DestinationPort),
		types.NewAttribute(types.AttributeKeyDstChannel, packet.DestinationChannel),
		types.NewAttribute(types.AttributeKeyTimeoutHeight, strconv.FormatUint(packet.TimeoutHeight, 10)),
		types.NewAttribute(types.AttributeKeyTimeoutTimestamp, strconv.FormatUint(packet.TimeoutTimestamp, 10)),
	)

	parsed, err := ibcsim.ParsePacketFromEvents([]abci.Event{ev})
	require.NoError(t, err)
	require.Equal(t, packet, parsed)

	_, err = ibcsim.ParsePacketFromEvents(nil)
	require.Error(t, err)
}

func TestParseAckFromEvents(t *testing.T) {
	ev := types.NewEvent(types.EventTypeWriteAck,
		types.NewAttribute(types.AttributeKeyAckHex, hex.EncodeToString([]byte{1})),
	)

	ack, err := ibcsim.ParseAckFromEvents([]abci.Event{ev})
	require.NoError(t, err)
	require.Equal(t, []byte{1}, ack)

	_, err = ibcsim.ParseAckFromEvents(nil)
	require.Error(t, err)
}
