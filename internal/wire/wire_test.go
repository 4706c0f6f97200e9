package wire

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/sweeney/equilibrium/internal/control"
)

func TestEncodeLayout(t *testing.T) {
	ts := time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC)
	msgs := []control.Message{
		{ControllerID: "heater", Value: control.Binary(true), Timestamp: ts, Reading: "65.0"},
		{ControllerID: "ph", Value: control.Directional(control.DirectionDecreasing), Timestamp: ts, KeepAlive: true},
	}

	data, err := Encode(msgs, ts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, err := uuid.Parse(raw["batch_id"].(string)); err != nil {
		t.Errorf("batch_id is not a uuid: %v", raw["batch_id"])
	}
	if raw["sent_at"] != "2026-02-02T22:18:12Z" {
		t.Errorf("sent_at: got %v", raw["sent_at"])
	}

	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		t.Fatalf("invalid batch: %v", err)
	}
	want := []Message{
		{ControllerID: "heater", Kind: "binary", State: "ON", Timestamp: "2026-02-02T22:18:12Z", Reading: "65.0"},
		{ControllerID: "ph", Kind: "direction", State: "DECREASING", Timestamp: "2026-02-02T22:18:12Z", KeepAlive: true},
	}
	if diff := cmp.Diff(want, b.Messages); diff != "" {
		t.Errorf("messages (-want +got):\n%s", diff)
	}
}

func TestDecodeRestoresMessages(t *testing.T) {
	ts := time.Date(2026, 2, 2, 5, 0, 0, 500, time.UTC)
	in := []control.Message{
		{ControllerID: "light", Value: control.Binary(false), Timestamp: ts},
		{ControllerID: "ph", Value: control.Directional(control.DirectionIdle), Timestamp: ts, Reading: "7.0"},
	}
	data, err := Encode(in, ts)
	if err != nil {
		t.Fatal(err)
	}
	_, out, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("messages (-want +got):\n%s", diff)
	}
}

func TestDecodeRejectsUnknownState(t *testing.T) {
	data := []byte(`{"batch_id":"x","messages":[{"controller_id":"a","kind":"binary","state":"HALF","timestamp":"2026-01-01T00:00:00Z"}]}`)
	if _, _, err := Decode(data); err == nil {
		t.Error("expected error for unknown state")
	}
}

func TestNewBatchEmpty(t *testing.T) {
	b := NewBatch(nil, time.Now())
	if b.Messages == nil || len(b.Messages) != 0 {
		t.Errorf("expected empty non-nil messages, got %v", b.Messages)
	}
}
