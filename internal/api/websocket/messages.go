package websocket

import (
	"time"

	"github.com/KevinKickass/ShackControl/internal/types"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// server -> client
	MessageTypeSnapshot      MessageType = "snapshot"
	MessageTypeAuthSuccess   MessageType = "auth_success"
	MessageTypeAuthFailed    MessageType = "auth_failed"
	MessageTypeCommandResult MessageType = "command_result"
	MessageTypeError         MessageType = "error"

	// client -> server
	MessageTypeAuth    MessageType = "auth"
	MessageTypeCommand MessageType = "command"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// Inbound is a message sent by a client.
type Inbound struct {
	Type   MessageType `json:"type"`
	Token  string      `json:"token,omitempty"`
	Action string      `json:"action,omitempty"`
}

type AuthData struct {
	Operator string `json:"operator,omitempty"`
	Scope    string `json:"scope,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type CommandResultData struct {
	Action   string         `json:"action"`
	Snapshot types.Snapshot `json:"snapshot"`
}

// NewMessage creates a new message with current timestamp
func NewMessage(msgType MessageType, data interface{}) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

func NewSnapshotMessage(s types.Snapshot) Message {
	return NewMessage(MessageTypeSnapshot, s)
}

func NewErrorMessage(code, message string) Message {
	return NewMessage(MessageTypeError, types.NewErrorResponse(code, message, nil).Error)
}
