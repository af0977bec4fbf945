package models

import (
	"encoding/json"
	"fmt"
)

// ClientMessage is a decoded inbound scan-stream message. Messages are decoded
// once at the connection boundary into one of the concrete types below, so the
// stream loop can match on them exhaustively.
type ClientMessage interface {
	isClientMessage()
}

// StartMessage asks the server to start a fresh scan session.
type StartMessage struct{}

// FrameMessage carries one camera frame. Image is base64, optionally prefixed
// with a data-URI header. StoreImage marks the frame's payload for retention.
type FrameMessage struct {
	Image      string
	StoreImage bool
}

// FinalizeMessage asks for the aggregated scan result and ends the stream.
type FinalizeMessage struct{}

// PingMessage is a keep-alive; it mutates nothing.
type PingMessage struct{}

func (StartMessage) isClientMessage()    {}
func (FrameMessage) isClientMessage()    {}
func (FinalizeMessage) isClientMessage() {}
func (PingMessage) isClientMessage()     {}

// ParseClientMessage decodes a raw scan-stream message into its typed form.
func ParseClientMessage(data []byte) (ClientMessage, error) {
	var envelope struct {
		Type       string `json:"type"`
		Image      string `json:"image"`
		StoreImage bool   `json:"store_image"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	switch envelope.Type {
	case "start":
		return StartMessage{}, nil
	case "frame":
		return FrameMessage{Image: envelope.Image, StoreImage: envelope.StoreImage}, nil
	case "finalize":
		return FinalizeMessage{}, nil
	case "ping":
		return PingMessage{}, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", envelope.Type)
	}
}

// ConnectedMessage greets a newly connected scanning client.
type ConnectedMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// DetectionMessage echoes one frame's detection result back to the client.
type DetectionMessage struct {
	Type      string `json:"type"`
	Frame     int    `json:"frame"`
	SessionID string `json:"session_id"`
	DetectionResult
}

// FinalizedMessage carries the aggregated scan result.
type FinalizedMessage struct {
	Type string         `json:"type"`
	Data *FinalizedScan `json:"data"`
}

// PongMessage answers a keep-alive ping.
type PongMessage struct {
	Type string `json:"type"`
}

// ErrorMessage reports a recoverable in-stream error without closing the
// connection.
type ErrorMessage struct {
	Error string `json:"error"`
}
