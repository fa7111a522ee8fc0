package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/focusgate/internal/api/intent"
	"github.com/GriffinCanCode/focusgate/internal/domain/authority"
)

// MessageType identifies a frame.
type MessageType string

const (
	MsgHello      MessageType = "hello"
	MsgBootstrap  MessageType = "bootstrap"
	MsgIntent     MessageType = "intent"
	MsgForeground MessageType = "foreground"
	MsgHeartbeat  MessageType = "heartbeat"
	MsgCommand    MessageType = "command"
	MsgReply      MessageType = "reply"
	MsgError      MessageType = "error"
)

// Message is the envelope for every frame.
type Message struct {
	Type    MessageType     `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// HelloPayload introduces a surface instance.
type HelloPayload struct {
	SurfaceID string `json:"surfaceId"`
}

// IntentPayload names an intent and its arguments.
type IntentPayload struct {
	Name    string         `json:"name"`
	Request intent.Request `json:"request"`
}

// ForegroundPayload is a ForegroundEntered event.
type ForegroundPayload struct {
	AppID     string    `json:"appId"`
	Timestamp time.Time `json:"timestamp"`
}

// HeartbeatPayload names the app whose session the surface is showing.
type HeartbeatPayload struct {
	AppID string `json:"appId"`
}

// ReplyPayload answers an intent or foreground frame.
type ReplyPayload struct {
	OK       bool                `json:"ok"`
	Error    string              `json:"error,omitempty"`
	Decision *authority.Decision `json:"decision,omitempty"`
}

// ErrorPayload reports a frame the peer could not handle.
type ErrorPayload struct {
	Error string `json:"error"`
}

// encode builds a frame.
func encode(t MessageType, msgID string, payload any) ([]byte, error) {
	msg := Message{Type: t, ID: msgID}
	if payload != nil {
		raw, err := sonic.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", t, err)
		}
		msg.Payload = raw
	}
	data, err := sonic.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", t, err)
	}
	return data, nil
}

// decode parses a frame envelope.
func decode(data []byte) (Message, error) {
	var msg Message
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode frame: %w", err)
	}
	if msg.Type == "" {
		return Message{}, fmt.Errorf("decode frame: missing type")
	}
	return msg, nil
}

// payload decodes msg's payload into v.
func payload(msg Message, v any) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", msg.Type)
	}
	if err := sonic.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("%s: %w", msg.Type, err)
	}
	return nil
}
