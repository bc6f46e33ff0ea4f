package model

import "encoding/json"

type MessageType string

const (
	MessageTypeRegister    MessageType = "register"
	MessageTypeRegistered  MessageType = "registered"
	MessageTypeUnregister  MessageType = "unregister"
	MessageTypePing        MessageType = "ping"
	MessageTypePong        MessageType = "pong"
	MessageTypeNewOrder    MessageType = "print_order"
	MessageTypePrinted     MessageType = "printed"
	MessageTypePrintFailed MessageType = "print_failed"
)

// --- WebSocket Messages ---

type WSMessage struct {
	Type       MessageType     `json:"type"`
	AgentKey   string          `json:"agent_key,omitempty"`
	Order      json.RawMessage `json:"order,omitempty"` // PrintRequest, decoded by the agent
	DispatchID string          `json:"dispatch_id,omitempty"`
	Method     string          `json:"method,omitempty"`
	Error      string          `json:"error,omitempty"`
}
