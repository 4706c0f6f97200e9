package mqtt

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Published is one message recorded by FakeClient.
type Published struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// FakeClient is an in-memory Client for tests.
type FakeClient struct {
	mu sync.Mutex

	// Connected controls IsConnectionOpen.
	Connected bool

	// PublishError, if set, completes every publish token with this error.
	PublishError error

	// Hang leaves publish tokens incomplete.
	Hang bool

	published    []Published
	disconnected bool
}

// NewFakeClient returns a connected FakeClient.
func NewFakeClient() *FakeClient {
	return &FakeClient{Connected: true}
}

// Publish records the message unless PublishError is set.
func (f *FakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	tok := &fakeToken{done: make(chan struct{})}
	if f.Hang {
		return tok
	}
	if f.PublishError != nil {
		tok.err = f.PublishError
	} else {
		var data []byte
		switch p := payload.(type) {
		case []byte:
			data = p
		case string:
			data = []byte(p)
		}
		f.published = append(f.published, Published{Topic: topic, QoS: qos, Retained: retained, Payload: data})
	}
	close(tok.done)
	return tok
}

// IsConnectionOpen reports Connected.
func (f *FakeClient) IsConnectionOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Disconnect marks the client as disconnected.
func (f *FakeClient) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Connected = false
	f.disconnected = true
}

// SetConnected changes Connected under the lock.
func (f *FakeClient) SetConnected(v bool) {
	f.mu.Lock()
	f.Connected = v
	f.mu.Unlock()
}

// SetPublishError changes PublishError under the lock.
func (f *FakeClient) SetPublishError(err error) {
	f.mu.Lock()
	f.PublishError = err
	f.mu.Unlock()
}

// Published returns a copy of the recorded messages.
func (f *FakeClient) Published() []Published {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Published, len(f.published))
	copy(out, f.published)
	return out
}

// Disconnected reports whether Disconnect was called.
func (f *FakeClient) Disconnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnected
}

type fakeToken struct {
	done chan struct{}
	err  error
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }

func (t *fakeToken) Error() error { return t.err }
