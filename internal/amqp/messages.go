package amqp

import (
	"time"

	"github.com/goccy/go-json"
)

// StateSavedMessage announces a new revision of a stored planning document.
// The consumer reloads the document itself; the message never carries it.
type StateSavedMessage struct {
	DocumentID string    `json:"documentId"`
	Revision   int64     `json:"revision"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewStateSavedMessage(documentID string, revision int64) *StateSavedMessage {
	return &StateSavedMessage{
		DocumentID: documentID,
		Revision:   revision,
		Timestamp:  time.Now(),
	}
}

func (m *StateSavedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func StateSavedMessageFromJSON(data []byte) (*StateSavedMessage, error) {
	var msg StateSavedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
