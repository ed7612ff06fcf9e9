package queue

import (
	"encoding/json"
	"errors"
)

// MessageVersion is the schema version stamped on every message.
const MessageVersion = 1

// Message is an ingestion status change sent to downstream consumers.
type Message struct {
	IngestionID    string `json:"ingestionId"`
	DocumentID     string `json:"documentId"`
	UserID         string `json:"userId"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previousStatus,omitempty"`
	ErrorMessage   string `json:"errorMessage,omitempty"`
	RequestID      string `json:"requestId,omitempty"`
	OccurredAt     string `json:"occurredAt"`
	Version        int    `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	if msg.IngestionID == "" || msg.Status == "" {
		return nil, errors.New("ingestion id and status are required")
	}
	if msg.Version == 0 {
		msg.Version = MessageVersion
	}
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}
