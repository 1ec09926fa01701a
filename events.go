package ibcsim

import (
	"encoding/hex"
	"strconv"

	"github.com/pkg/errors"
	abci "github.com/tendermint/tendermint/abci/types"

	"github.com/interop-labs/ibcsim/core/types"
)

// ParseClientIDFromEvents parses events emitted from a MsgCreateClient and
// returns the client identifier.
func ParseClientIDFromEvents(events []abci.Event) (string, error) {
	for _, ev := range events {
		if ev.Type == types.EventTypeCreateClient {
			if attribute, found := attributeByKey(ev.Attributes, types.AttributeKeyClientID); found {
				return string(attribute.Value), nil
			}
		}
	}
	return "", errors.New("client identifier event attribute not found")
}

// ParseConnectionIDFromEvents parses events emitted from a
// MsgConnectionOpenInit or MsgConnectionOpenTry and returns the connection
// identifier.
func ParseConnectionIDFromEvents(events []abci.Event) (string, error) {
	for _, ev := range events {
		if ev.Type == types.EventTypeConnectionOpenInit ||
			ev.Type == types.EventTypeConnectionOpenTry {
			if attribute, found := attributeByKey(ev.Attributes, types.AttributeKeyConnectionID); found {
				return string(attribute.Value), nil
			}
		}
	}
	return "", errors.New("connection identifier event attribute not found")
}

// ParseChannelIDFromEvents parses events emitted from a MsgChannelOpenInit or
// MsgChannelOpenTry and returns the channel identifier.
func ParseChannelIDFromEvents(events []abci.Event) (string, error) {
	for _, ev := range events {
		if ev.Type == types.EventTypeChannelOpenInit ||
			ev.Type == types.EventTypeChannelOpenTry {
			if attribute, found := attributeByKey(ev.Attributes, types.AttributeKeyChannelID); found {
				return string(attribute.Value), nil
			}
		}
	}
	return "", errors.New("channel identifier event attribute not found")
}

// ParsePacketFromEvents parses events emitted from a packet send and returns
// the first packet found.
func ParsePacketFromEvents(events []abci.Event) (types.Packet, error) {
	packets, err := ParsePacketsFromEvents(types.EventTypeSendPacket, events)
	if err != nil {
		return types.Packet{}, err
	}
	return packets[0], nil
}

// ParsePacketsFromEvents parses all packets carried by events of the given
// type. Returns an error if no packet is found.
func ParsePacketsFromEvents(eventType string, events []abci.Event) ([]types.Packet, error) {
	var packets []types.Packet
	for _, ev := range events {
		if ev.Type != eventType {
			continue
		}
		packet, err := parsePacketFromEvent(ev)
		if err != nil {
			return nil, err
		}
		packets = append(packets, packet)
	}
	if len(packets) == 0 {
		return nil, errors.Errorf("no %s event found", eventType)
	}
	return packets, nil
}

func parsePacketFromEvent(ev abci.Event) (types.Packet, error) {
	var packet types.Packet
	for _, attr := range ev.Attributes {
		var err error
		switch string(attr.Key) {
		case types.AttributeKeyDataHex:
			packet.Data, err = hex.DecodeString(string(attr.Value))
		case types.AttributeKeySequence:
			packet.Sequence, err = strconv.ParseUint(string(attr.Value), 10, 64)
		case types.AttributeKeySrcPort:
			packet.SourcePort = string(attr.Value)
		case types.AttributeKeySrcChannel:
			packet.SourceChannel = string(attr.Value)
		case types.AttributeKeyDstPort:
			packet.DestinationPort = string(attr.Value)
		case types.AttributeKeyDstChannel:
			packet.DestinationChannel = string(attr.Value)
		case types.AttributeKeyTimeoutHeight:
			packet.TimeoutHeight, err = strconv.ParseUint(string(attr.Value), 10, 64)
		case types.AttributeKeyTimeoutTimestamp:
			packet.TimeoutTimestamp, err = strconv.ParseUint(string(attr.Value), 10, 64)
		default:
			continue
		}
		if err != nil {
			return types.Packet{}, errors.Wrapf(err, "parsing packet attribute %s", attr.Key)
		}
	}
	return packet, nil
}

// ParseAckFromEvents parses events emitted from a MsgRecvPacket and returns
// the written acknowledgement.
func ParseAckFromEvents(events []abci.Event) ([]byte, error) {
	for _, ev := range events {
		if ev.Type == types.EventTypeWriteAck {
			if attribute, found := attributeByKey(ev.Attributes, types.AttributeKeyAckHex); found {
				return hex.DecodeString(string(attribute.Value))
			}
		}
	}
	return nil, errors.New("acknowledgement event attribute not found")
}

// attributeByKey returns the event attribute with the given key and whether
// it was present.
func attributeByKey(attributes []abci.EventAttribute, key string) (abci.EventAttribute, bool) {
	for _, attr := range attributes {
		if string(attr.Key) == key {
			return attr, true
		}
	}
	return abci.EventAttribute{}, false
}
