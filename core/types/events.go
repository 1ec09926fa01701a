package types

import (
	abci "github.com/tendermint/tendermint/abci/types"
)

// Event types emitted by the module's message handlers. The relay harness
// reads these to decide the next handshake or relay step.
const (
	EventTypeCreateClient = "create_client"
	EventTypeUpdateClient = "update_client"

	EventTypeConnectionOpenInit    = "connection_open_init"
	EventTypeConnectionOpenTry     = "connection_open_try"
	EventTypeConnectionOpenAck     = "connection_open_ack"
	EventTypeConnectionOpenConfirm = "connection_open_confirm"

	EventTypeChannelOpenInit    = "channel_open_init"
	EventTypeChannelOpenTry     = "channel_open_try"
	EventTypeChannelOpenAck     = "channel_open_ack"
	EventTypeChannelOpenConfirm = "channel_open_confirm"

	EventTypeSendPacket        = "send_packet"
	EventTypeRecvPacket        = "recv_packet"
	EventTypeWriteAck          = "write_acknowledgement"
	EventTypeAcknowledgePacket = "acknowledge_packet"
)

// Event attribute keys.
const (
	AttributeKeyClientID        = "client_id"
	AttributeKeyClientType      = "client_type"
	AttributeKeyConsensusHeight = "consensus_height"

	AttributeKeyConnectionID             = "connection_id"
	AttributeKeyCounterpartyClientID     = "counterparty_client_id"
	AttributeKeyCounterpartyConnectionID = "counterparty_connection_id"

	AttributeKeyPortID                = "port_id"
	AttributeKeyChannelID             = "channel_id"
	AttributeKeyCounterpartyPortID    = "counterparty_port_id"
	AttributeKeyCounterpartyChannelID = "counterparty_channel_id"

	AttributeKeyDataHex          = "packet_data_hex"
	AttributeKeyAckHex           = "packet_ack_hex"
	AttributeKeySequence         = "packet_sequence"
	AttributeKeySrcPort          = "packet_src_port"
	AttributeKeySrcChannel       = "packet_src_channel"
	AttributeKeyDstPort          = "packet_dst_port"
	AttributeKeyDstChannel       = "packet_dst_channel"
	AttributeKeyTimeoutHeight    = "packet_timeout_height"
	AttributeKeyTimeoutTimestamp = "packet_timeout_timestamp"
)

// NewAttribute builds an ABCI event attribute from string key-value pairs.
func NewAttribute(key, value string) abci.EventAttribute {
	return abci.EventAttribute{Key: []byte(key), Value: []byte(value)}
}

// NewEvent builds an ABCI event of the given type.
func NewEvent(eventType string, attributes ...abci.EventAttribute) abci.Event {
	return abci.Event{Type: eventType, Attributes: attributes}
}

// EventManager accumulates the events emitted while a batch of messages is
// delivered. A fresh manager is used per delivery.
type EventManager struct {
	events []abci.Event
}

func NewEventManager() *EventManager {
	return &EventManager{}
}

// EmitEvent appends an event in emission order.
func (em *EventManager) EmitEvent(event abci.Event) {
	em.events = append(em.events, event)
}

// Events returns the accumulated events in emission order.
func (em *EventManager) Events() []abci.Event {
	return em.events
}
