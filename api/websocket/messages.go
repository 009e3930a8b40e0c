package websocket

import (
	"encoding/json"
	"time"
)

type MessageType string

const (
	MessageTypeLiveUpdate   MessageType = "live_update"
	MessageTypeAnomaly      MessageType = "anomaly"
	MessageTypeAnomalyFlag  MessageType = "anomaly_flag"
	MessageTypeForecast     MessageType = "forecast"
	MessageTypeError        MessageType = "error"
	MessageTypeSubscription MessageType = "subscription_update"
)

type OutgoingMessage struct {
	Type      MessageType `json:"type"`
	Service   string      `json:"service,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Severity  string      `json:"severity,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

func NewMessage(msgType MessageType, service string, data interface{}) *OutgoingMessage {
	return &OutgoingMessage{
		Type:      msgType,
		Service:   service,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// JSON fails only when Data holds something unencodable.
func (m *OutgoingMessage) JSON() ([]byte, error) {
	return json.Marshal(m)
}

type SubscriptionData struct {
	Action string `json:"action"`
}
