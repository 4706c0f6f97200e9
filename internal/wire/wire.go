// Package wire defines the JSON envelope every transport uses for a batch of
// control messages.
package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/equilibrium/internal/control"
)

// Batch is one tick's worth of messages.
type Batch struct {
	ID       string    `json:"batch_id"`
	SentAt   string    `json:"sent_at"`
	Messages []Message `json:"messages"`
}

// Message is the JSON form of control.Message.
type Message struct {
	ControllerID string `json:"controller_id"`
	Kind         string `json:"kind"`
	State        string `json:"state"`
	Timestamp    string `json:"timestamp"`
	Reading      string `json:"reading,omitempty"`
	KeepAlive    bool   `json:"keep_alive,omitempty"`
}

// NewBatch converts msgs, preserving their order, under a fresh batch id.
func NewBatch(msgs []control.Message, sentAt time.Time) Batch {
	b := Batch{
		ID:       uuid.NewString(),
		SentAt:   sentAt.UTC().Format(time.RFC3339Nano),
		Messages: make([]Message, 0, len(msgs)),
	}
	for _, m := range msgs {
		b.Messages = append(b.Messages, FromControl(m))
	}
	return b
}

// FromControl converts one message.
func FromControl(m control.Message) Message {
	return Message{
		ControllerID: m.ControllerID,
		Kind:         string(m.Value.Kind),
		State:        m.Value.String(),
		Timestamp:    m.Timestamp.UTC().Format(time.RFC3339Nano),
		Reading:      m.Reading,
		KeepAlive:    m.KeepAlive,
	}
}

// ToControl converts back to a control.Message.
func (m Message) ToControl() (control.Message, error) {
	v, err := control.ParseValue(control.Kind(m.Kind), m.State)
	if err != nil {
		return control.Message{}, fmt.Errorf("controller %s: %w", m.ControllerID, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, m.Timestamp)
	if err != nil {
		return control.Message{}, fmt.Errorf("controller %s: timestamp: %w", m.ControllerID, err)
	}
	return control.Message{
		ControllerID: m.ControllerID,
		Value:        v,
		Timestamp:    ts,
		Reading:      m.Reading,
		KeepAlive:    m.KeepAlive,
	}, nil
}

// Encode builds and marshals a batch.
func Encode(msgs []control.Message, sentAt time.Time) ([]byte, error) {
	return json.Marshal(NewBatch(msgs, sentAt))
}

// Decode parses a batch and converts its messages.
func Decode(data []byte) (Batch, []control.Message, error) {
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return Batch{}, nil, fmt.Errorf("decode batch: %w", err)
	}
	msgs := make([]control.Message, 0, len(b.Messages))
	for _, wm := range b.Messages {
		m, err := wm.ToControl()
		if err != nil {
			return b, nil, fmt.Errorf("decode batch %s: %w", b.ID, err)
		}
		msgs = append(msgs, m)
	}
	return b, msgs, nil
}
