package job

import (
	"encoding/json"
	"fmt"
)

// Message is the wire envelope for a job while in flight on the queue.
// It is not a store record: the queue's own redelivery mechanism is the
// only lock on a message while a worker holds it.
type Message struct {
	JobID      string         `json:"job_id"`
	JobType    Type           `json:"job_type"`
	EnqueuedAt int64          `json:"enqueued_at"`
	Event      map[string]any `json:"event"`
	UserID     string         `json:"user_id"`
}

// Encode serializes the envelope to its JSON wire form.
func (m *Message) Encode() ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job message: %w", err)
	}
	return body, nil
}

// DecodeMessage parses a queue message body. An undecodable body
// returns ErrMalformedMessage; a decodable body without a job_id
// returns ErrMissingJobID. Both are discard conditions for the
// worker, never retries.
func DecodeMessage(body []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	if msg.JobID == "" {
		return nil, ErrMissingJobID
	}

	return &msg, nil
}
