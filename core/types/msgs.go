package types

import (
	gogotypes "github.com/gogo/protobuf/types"
	"github.com/pkg/errors"

	"github.com/interop-labs/ibcsim/host"
	"github.com/interop-labs/ibcsim/store"
)

// Msg is an opaque protocol message delivered to the module during a chain's
// delivery phase. The harness never inspects messages beyond routing them.
type Msg interface {
	Type() string
	ValidateBasic() error
}

// Message type identifiers.
const (
	TypeMsgCreateClient = "create_client"
	TypeMsgUpdateClient = "update_client"

	TypeMsgConnectionOpenInit    = "connection_open_init"
	TypeMsgConnectionOpenTry     = "connection_open_try"
	TypeMsgConnectionOpenAck     = "connection_open_ack"
	TypeMsgConnectionOpenConfirm = "connection_open_confirm"

	TypeMsgChannelOpenInit    = "channel_open_init"
	TypeMsgChannelOpenTry     = "channel_open_try"
	TypeMsgChannelOpenAck     = "channel_open_ack"
	TypeMsgChannelOpenConfirm = "channel_open_confirm"

	TypeMsgRecvPacket      = "recv_packet"
	TypeMsgAcknowledgement = "acknowledge_packet"
)

// MsgCreateClient creates a light client tracking a counterparty chain.
type MsgCreateClient struct {
	ClientState    host.ClientState
	ConsensusState host.ConsensusState
	Signer         string
}

func (MsgCreateClient) Type() string { return TypeMsgCreateClient }

func (msg MsgCreateClient) ValidateBasic() error {
	if msg.ClientState == nil || msg.ConsensusState == nil {
		return errors.Wrap(ErrInvalidClient, "client and consensus state cannot be nil")
	}
	if err := msg.ClientState.Validate(); err != nil {
		return err
	}
	return msg.ConsensusState.ValidateBasic()
}

// MsgUpdateClient updates a light client with a counterparty header carried
// in its generic any-typed wire form.
type MsgUpdateClient struct {
	ClientID string
	Header   *gogotypes.Any
	Signer   string
}

func (MsgUpdateClient) Type() string { return TypeMsgUpdateClient }

func (msg MsgUpdateClient) ValidateBasic() error {
	if msg.ClientID == "" {
		return errors.Wrap(ErrInvalidClient, "client identifier cannot be empty")
	}
	if msg.Header == nil {
		return errors.Wrap(ErrUnknownHeaderType, "header cannot be nil")
	}
	return nil
}

// MsgConnectionOpenInit initializes a connection end on the sending chain.
type MsgConnectionOpenInit struct {
	ClientID             string
	CounterpartyClientID string
	CounterpartyPrefix   string
	DelayPeriod          uint64
	Signer               string
}

func (MsgConnectionOpenInit) Type() string { return TypeMsgConnectionOpenInit }

func (msg MsgConnectionOpenInit) ValidateBasic() error {
	if msg.ClientID == "" || msg.CounterpartyClientID == "" {
		return errors.Wrap(ErrInvalidClient, "client identifiers cannot be empty")
	}
	if msg.CounterpartyPrefix == "" {
		return errors.Wrap(ErrInvalidConnectionState, "counterparty prefix cannot be empty")
	}
	return nil
}

// MsgConnectionOpenTry responds to an INIT observed on the counterparty.
type MsgConnectionOpenTry struct {
	ClientID                 string
	CounterpartyClientID     string
	CounterpartyConnectionID string
	CounterpartyPrefix       string
	CounterpartyClient       host.ClientState
	DelayPeriod              uint64
	ProofInit                store.MerkleProof
	ProofClient              store.MerkleProof
	ProofHeight              uint64
	ConsensusHeight          uint64
	Signer                   string
}

func (MsgConnectionOpenTry) Type() string { return TypeMsgConnectionOpenTry }

func (msg MsgConnectionOpenTry) ValidateBasic() error {
	if msg.CounterpartyConnectionID == "" {
		return errors.Wrap(ErrInvalidConnectionState, "counterparty connection identifier cannot be empty")
	}
	if msg.CounterpartyClient == nil {
		return errors.Wrap(ErrInvalidClient, "counterparty client state cannot be nil")
	}
	if err := msg.ProofInit.ValidateBasic(); err != nil {
		return err
	}
	return msg.ProofClient.ValidateBasic()
}

// MsgConnectionOpenAck responds to a TRYOPEN observed on the counterparty.
type MsgConnectionOpenAck struct {
	ConnectionID             string
	CounterpartyConnectionID string
	CounterpartyClient       host.ClientState
	ProofTry                 store.MerkleProof
	ProofClient              store.MerkleProof
	ProofHeight              uint64
	ConsensusHeight          uint64
	Signer                   string
}

func (MsgConnectionOpenAck) Type() string { return TypeMsgConnectionOpenAck }

func (msg MsgConnectionOpenAck) ValidateBasic() error {
	if msg.ConnectionID == "" {
		return errors.Wrap(ErrInvalidConnectionState, "connection identifier cannot be empty")
	}
	if msg.CounterpartyClient == nil {
		return errors.Wrap(ErrInvalidClient, "counterparty client state cannot be nil")
	}
	return msg.ProofTry.ValidateBasic()
}

// MsgConnectionOpenConfirm finalizes the handshake after observing the
// counterparty's OPEN.
type MsgConnectionOpenConfirm struct {
	ConnectionID string
	ProofAck     store.MerkleProof
	ProofHeight  uint64
	Signer       string
}

func (MsgConnectionOpenConfirm) Type() string { return TypeMsgConnectionOpenConfirm }

func (msg MsgConnectionOpenConfirm) ValidateBasic() error {
	if msg.ConnectionID == "" {
		return errors.Wrap(ErrInvalidConnectionState, "connection identifier cannot be empty")
	}
	return msg.ProofAck.ValidateBasic()
}

// MsgChannelOpenInit initializes a channel end on the sending chain.
type MsgChannelOpenInit struct {
	PortID  string
	Channel Channel
	Signer  string
}

func (MsgChannelOpenInit) Type() string { return TypeMsgChannelOpenInit }

func (msg MsgChannelOpenInit) ValidateBasic() error {
	if msg.PortID == "" {
		return errors.Wrap(ErrInvalidChannelState, "port identifier cannot be empty")
	}
	if len(msg.Channel.ConnectionHops) != 1 {
		return errors.Wrap(ErrInvalidChannelState, "channel must have exactly one connection hop")
	}
	return nil
}

// MsgChannelOpenTry responds to a channel INIT observed on the counterparty.
type MsgChannelOpenTry struct {
	PortID              string
	Channel             Channel
	CounterpartyVersion string
	ProofInit           store.MerkleProof
	ProofHeight         uint64
	Signer              string
}

func (MsgChannelOpenTry) Type() string { return TypeMsgChannelOpenTry }

func (msg MsgChannelOpenTry) ValidateBasic() error {
	if msg.PortID == "" {
		return errors.Wrap(ErrInvalidChannelState, "port identifier cannot be empty")
	}
	if msg.Channel.Counterparty.ChannelID == "" {
		return errors.Wrap(ErrInvalidChannelState, "counterparty channel identifier cannot be empty")
	}
	return msg.ProofInit.ValidateBasic()
}

// MsgChannelOpenAck responds to a channel TRYOPEN observed on the
// counterparty.
type MsgChannelOpenAck struct {
	PortID                string
	ChannelID             string
	CounterpartyChannelID string
	CounterpartyVersion   string
	ProofTry              store.MerkleProof
	ProofHeight           uint64
	Signer                string
}

func (MsgChannelOpenAck) Type() string { return TypeMsgChannelOpenAck }

func (msg MsgChannelOpenAck) ValidateBasic() error {
	if msg.PortID == "" || msg.ChannelID == "" {
		return errors.Wrap(ErrInvalidChannelState, "port and channel identifiers cannot be empty")
	}
	return msg.ProofTry.ValidateBasic()
}

// MsgChannelOpenConfirm finalizes the channel handshake.
type MsgChannelOpenConfirm struct {
	PortID      string
	ChannelID   string
	ProofAck    store.MerkleProof
	ProofHeight uint64
	Signer      string
}

func (MsgChannelOpenConfirm) Type() string { return TypeMsgChannelOpenConfirm }

func (msg MsgChannelOpenConfirm) ValidateBasic() error {
	if msg.PortID == "" || msg.ChannelID == "" {
		return errors.Wrap(ErrInvalidChannelState, "port and channel identifiers cannot be empty")
	}
	return msg.ProofAck.ValidateBasic()
}

// MsgRecvPacket relays a packet whose commitment is proven on the source
// chain.
type MsgRecvPacket struct {
	Packet          Packet
	ProofCommitment store.MerkleProof
	ProofHeight     uint64
	Signer          string
}

func (MsgRecvPacket) Type() string { return TypeMsgRecvPacket }

func (msg MsgRecvPacket) ValidateBasic() error {
	if err := msg.Packet.ValidateBasic(); err != nil {
		return err
	}
	return msg.ProofCommitment.ValidateBasic()
}

// MsgAcknowledgement relays an acknowledgement written on the destination
// chain back to the source.
type MsgAcknowledgement struct {
	Packet          Packet
	Acknowledgement []byte
	ProofAcked      store.MerkleProof
	ProofHeight     uint64
	Signer          string
}

func (MsgAcknowledgement) Type() string { return TypeMsgAcknowledgement }

func (msg MsgAcknowledgement) ValidateBasic() error {
	if err := msg.Packet.ValidateBasic(); err != nil {
		return err
	}
	if len(msg.Acknowledgement) == 0 {
		return errors.Wrap(ErrInvalidPacket, "acknowledgement cannot be empty")
	}
	return msg.ProofAcked.ValidateBasic()
}
