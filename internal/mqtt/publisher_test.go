package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"

	"github.com/sweeney/equilibrium/internal/control"
	"github.com/sweeney/equilibrium/internal/wire"
)

var testTime = time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC)

func newTestPublisher(t *testing.T, client *FakeClient, bufferSize int) *Publisher {
	t.Helper()
	p := NewWithClient(client, Options{TopicPrefix: "greenhouse", BufferSize: bufferSize, PublishTimeout: 50 * time.Millisecond, Log: testr.New(t)})
	p.now = func() time.Time { return testTime }
	return p
}

func heaterOn() []control.Message {
	return []control.Message{{ControllerID: "heater", Value: control.Binary(true), Timestamp: testTime, Reading: "18.5"}}
}

func TestPublishSendsBatchAtQoS1(t *testing.T) {
	client := NewFakeClient()
	p := newTestPublisher(t, client, 10)

	if err := p.Publish(context.Background(), heaterOn()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	got := client.Published()
	if len(got) != 1 {
		t.Fatalf("published: got %d, want 1", len(got))
	}
	if got[0].Topic != "greenhouse/messages" {
		t.Errorf("topic: got %s, want greenhouse/messages", got[0].Topic)
	}
	if got[0].QoS != 1 || got[0].Retained {
		t.Errorf("qos/retained: got %d/%v, want 1/false", got[0].QoS, got[0].Retained)
	}
	_, msgs, err := wire.Decode(got[0].Payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ControllerID != "heater" || !msgs[0].Value.On {
		t.Errorf("payload: got %+v", msgs)
	}
}

func TestPublishBuffersWhileDisconnected(t *testing.T) {
	client := NewFakeClient()
	client.Connected = false
	p := newTestPublisher(t, client, 10)

	for i := 0; i < 3; i++ {
		if err := p.Publish(context.Background(), heaterOn()); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	if n := len(client.Published()); n != 0 {
		t.Fatalf("expected nothing sent while disconnected, got %d", n)
	}
	if p.Buffered() != 3 {
		t.Errorf("buffered: got %d, want 3", p.Buffered())
	}

	client.SetConnected(true)
	if err := p.Publish(context.Background(), heaterOn()); err != nil {
		t.Fatalf("publish after reconnect: %v", err)
	}
	if n := len(client.Published()); n != 4 {
		t.Errorf("published after reconnect: got %d, want 4", n)
	}
	if p.Buffered() != 0 {
		t.Errorf("buffered after flush: got %d, want 0", p.Buffered())
	}
}

func TestOnConnectReplaysAndAnnouncesReconnect(t *testing.T) {
	client := NewFakeClient()
	p := newTestPublisher(t, client, 10)

	p.onConnect()
	if n := len(client.Published()); n != 0 {
		t.Fatalf("first connect should publish nothing, got %d", n)
	}

	client.SetConnected(false)
	p.Publish(context.Background(), heaterOn())
	client.SetConnected(true)
	p.onConnect()

	got := client.Published()
	if len(got) != 2 {
		t.Fatalf("published: got %d, want 2", len(got))
	}
	if got[0].Topic != "greenhouse/messages" {
		t.Errorf("first replayed: got %s, want buffered batch", got[0].Topic)
	}
	var sys SystemPayload
	if err := json.Unmarshal(got[1].Payload, &sys); err != nil {
		t.Fatalf("system payload: %v", err)
	}
	if got[1].Topic != "greenhouse/system" || sys.System.Event != EventReconnected {
		t.Errorf("second: got %s %+v, want RECONNECTED on system topic", got[1].Topic, sys)
	}
}

func TestPublishErrorIsReturned(t *testing.T) {
	client := NewFakeClient()
	client.PublishError = errors.New("not authorized")
	p := newTestPublisher(t, client, 10)

	if err := p.Publish(context.Background(), heaterOn()); err == nil {
		t.Fatal("expected error")
	}
}

func TestPublishTimesOut(t *testing.T) {
	client := NewFakeClient()
	client.Hang = true
	p := newTestPublisher(t, client, 10)

	err := p.Publish(context.Background(), heaterOn())
	if !errors.Is(err, errPublishTimeout) {
		t.Errorf("expected timeout, got %v", err)
	}
}

func TestPublishHonoursContext(t *testing.T) {
	client := NewFakeClient()
	client.Hang = true
	p := newTestPublisher(t, client, 10)
	p.opts.PublishTimeout = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Publish(ctx, heaterOn()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFailedReplayKeepsOrder(t *testing.T) {
	client := NewFakeClient()
	client.Connected = false
	p := newTestPublisher(t, client, 10)
	p.Publish(context.Background(), heaterOn())
	p.PublishSystem(context.Background(), SystemEvent{Timestamp: testTime, Event: EventStartup, Retained: true})

	client.SetConnected(true)
	client.SetPublishError(errors.New("broker busy"))
	p.Publish(context.Background(), heaterOn())
	if p.Buffered() != 3 {
		t.Fatalf("buffered: got %d, want 3", p.Buffered())
	}

	client.SetPublishError(nil)
	p.onConnect()
	got := client.Published()
	if len(got) != 3 {
		t.Fatalf("published: got %d, want 3", len(got))
	}
	wantTopics := []string{"greenhouse/messages", "greenhouse/system", "greenhouse/messages"}
	for i, want := range wantTopics {
		if got[i].Topic != want {
			t.Errorf("message %d: got %s, want %s", i, got[i].Topic, want)
		}
	}
	if !got[1].Retained {
		t.Error("STARTUP should keep its retained flag through the buffer")
	}
}

func TestPublishSystemPayload(t *testing.T) {
	client := NewFakeClient()
	p := newTestPublisher(t, client, 10)

	err := p.PublishSystem(context.Background(), SystemEvent{Timestamp: testTime, Event: EventShutdown, Reason: "SIGTERM", Retained: true})
	if err != nil {
		t.Fatalf("publish system: %v", err)
	}
	got := client.Published()
	if len(got) != 1 {
		t.Fatalf("published: got %d, want 1", len(got))
	}
	want := `{"system":{"timestamp":"2026-03-14T06:00:00Z","event":"SHUTDOWN","reason":"SIGTERM"}}`
	if string(got[0].Payload) != want {
		t.Errorf("payload:\n got %s\nwant %s", got[0].Payload, want)
	}
	if !got[0].Retained {
		t.Error("expected retained")
	}
}

func TestWillPayload(t *testing.T) {
	want := `{"system":{"event":"OFFLINE","reason":"CONNECTION_LOST"}}`
	if got := string(WillPayload()); got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestCloseDisconnects(t *testing.T) {
	client := NewFakeClient()
	p := newTestPublisher(t, client, 10)
	p.Close()
	if !client.Disconnected() {
		t.Error("expected Disconnect")
	}
	if p.IsConnected() {
		t.Error("expected not connected after close")
	}
}
