// Package ws defines the websocket wire surface: the envelope format and
// the closed set of inbound commands. Dispatch is an explicit switch in
// the connection handler, one handler per variant; there is no dynamic
// handler registration.
package ws

import (
	"encoding/json"
	"fmt"
)

// Inbound command names on the wire.
const (
	CmdJoinGroup    = "join_group"
	CmdGroupMessage = "group_message"
	CmdFocus        = "focus"
	CmdTyping       = "typing"
	CmdPing         = "ping"
)

// Envelope is the wire wrapper for every frame in either direction.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Command is the closed set of inbound client commands. Implementations
// live in this file and nowhere else.
type Command interface {
	isCommand()
}

// JoinGroupCommand subscribes the connection to a group channel.
type JoinGroupCommand struct {
	GroupID uint `json:"group_id"`
}

// GroupMessageCommand sends a message into a group channel.
type GroupMessageCommand struct {
	GroupID  uint   `json:"group_id"`
	ClientID string `json:"client_id"`
	Text     string `json:"text"`
	Image    string `json:"image"`
}

// FocusCommand reports which conversation the client is viewing. At most
// one of PeerID / GroupID is set; both empty means no open conversation.
type FocusCommand struct {
	PeerID  *uint `json:"peer_id"`
	GroupID *uint `json:"group_id"`
}

// TypingCommand asks for an ephemeral typing notice to a private peer.
type TypingCommand struct {
	PeerID uint `json:"peer_id"`
}

// PingCommand is an application-level keepalive.
type PingCommand struct{}

func (JoinGroupCommand) isCommand()    {}
func (GroupMessageCommand) isCommand() {}
func (FocusCommand) isCommand()        {}
func (TypingCommand) isCommand()       {}
func (PingCommand) isCommand()         {}

// Decode parses one inbound frame into its typed command. Unknown types
// are an error; the set is closed.
func Decode(raw []byte) (Command, error) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch envelope.Type {
	case CmdJoinGroup:
		var cmd JoinGroupCommand
		if err := unmarshalPayload(envelope.Payload, &cmd); err != nil {
			return nil, err
		}
		return cmd, nil
	case CmdGroupMessage:
		var cmd GroupMessageCommand
		if err := unmarshalPayload(envelope.Payload, &cmd); err != nil {
			return nil, err
		}
		return cmd, nil
	case CmdFocus:
		var cmd FocusCommand
		if err := unmarshalPayload(envelope.Payload, &cmd); err != nil {
			return nil, err
		}
		if cmd.PeerID != nil && cmd.GroupID != nil {
			return nil, fmt.Errorf("focus names both a peer and a group")
		}
		return cmd, nil
	case CmdTyping:
		var cmd TypingCommand
		if err := unmarshalPayload(envelope.Payload, &cmd); err != nil {
			return nil, err
		}
		return cmd, nil
	case CmdPing:
		return PingCommand{}, nil
	default:
		return nil, fmt.Errorf("unknown command type: %q", envelope.Type)
	}
}

func unmarshalPayload(payload json.RawMessage, cmd interface{}) error {
	if len(payload) == 0 {
		return fmt.Errorf("missing payload")
	}
	if err := json.Unmarshal(payload, cmd); err != nil {
		return fmt.Errorf("malformed payload: %w", err)
	}
	return nil
}

// Encode wraps a command for sending; the client package uses it.
func Encode(cmdType string, payload interface{}) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return json.Marshal(Envelope{Type: cmdType, Payload: raw})
}
