package websocket

import (
	"encoding/json"
	"time"

	"boulder-catalog/internal/domain"
)

type MessageType string

const (
	TypeProblemCreated MessageType = "problem_created"
	TypeProblemUpdated MessageType = "problem_updated"
	TypeProblemDeleted MessageType = "problem_deleted"
	TypePing           MessageType = "ping"
	TypePong           MessageType = "pong"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type ProblemPayload struct {
	Problem *domain.Problem `json:"problem"`
}

type ProblemDeletedPayload struct {
	ID int `json:"id"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		bytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = bytes
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Payload:   payloadBytes,
	}, nil
}

func (m *Message) UnmarshalPayload(v interface{}) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}
