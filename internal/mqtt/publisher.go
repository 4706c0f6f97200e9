package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-logr/logr"

	"github.com/sweeney/equilibrium/internal/control"
	"github.com/sweeney/equilibrium/internal/wire"
)

// Client is the subset of paho.Client used by Publisher.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	IsConnectionOpen() bool
	Disconnect(quiesce uint)
}

// Options configures a Publisher.
type Options struct {
	ClientID    string
	TopicPrefix string
	// BufferSize bounds the number of messages kept while disconnected.
	BufferSize     int
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
	Log            logr.Logger
}

func (o Options) withDefaults() Options {
	if o.ClientID == "" {
		o.ClientID = "equilibrium"
	}
	if o.TopicPrefix == "" {
		o.TopicPrefix = DefaultTopicPrefix
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 256
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = 5 * time.Second
	}
	if o.Log.GetSink() == nil {
		o.Log = logr.Discard()
	}
	return o
}

// Publisher sends one JSON batch per Publish call to <prefix>/messages at
// QoS 1, so batches from one publisher arrive in order. While the broker is
// unreachable batches are held in a bounded buffer and replayed in order on
// reconnect; the oldest are dropped when the buffer is full.
type Publisher struct {
	client Client
	opts   Options
	log    logr.Logger
	now    func() time.Time

	mu            sync.Mutex
	buf           *ringBuffer
	connectedOnce bool
}

// Dial connects to broker (e.g. "tcp://192.168.1.200:1883"). If the broker
// does not answer within the connect timeout the publisher is returned anyway
// and buffers until paho's retry loop connects.
func Dial(broker string, opts Options) (*Publisher, error) {
	opts = opts.withDefaults()
	p := newPublisher(nil, opts)

	co := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(systemTopic(opts.TopicPrefix), string(WillPayload()), 1, true).
		SetOnConnectHandler(func(paho.Client) { p.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Info("broker connection lost", "error", err)
		})

	client := paho.NewClient(co)
	p.mu.Lock()
	p.client = client
	p.mu.Unlock()

	token := client.Connect()
	if !token.WaitTimeout(opts.ConnectTimeout) {
		p.log.Info("broker not reachable yet, buffering until connected", "broker", broker)
		return p, nil
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return nil, fmt.Errorf("connect to broker %s: %w", broker, err)
	}
	return p, nil
}

// NewWithClient wraps an existing client. Used with FakeClient in tests.
func NewWithClient(client Client, opts Options) *Publisher {
	return newPublisher(client, opts.withDefaults())
}

func newPublisher(client Client, opts Options) *Publisher {
	return &Publisher{
		client: client,
		opts:   opts,
		log:    opts.Log.WithName("mqtt"),
		now:    time.Now,
		buf:    newRingBuffer(opts.BufferSize),
	}
}

// Publish sends msgs as one batch.
func (p *Publisher) Publish(ctx context.Context, msgs []control.Message) error {
	payload, err := wire.Encode(msgs, p.now())
	if err != nil {
		return fmt.Errorf("format batch: %w", err)
	}
	// QoS 1 (at-least-once), not retained: consumers dedupe by batch_id.
	return p.send(ctx, bufferedMsg{topic: messagesTopic(p.opts.TopicPrefix), payload: payload, qos: 1})
}

// PublishSystem sends a lifecycle event to <prefix>/system.
func (p *Publisher) PublishSystem(ctx context.Context, event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(ctx, bufferedMsg{topic: systemTopic(p.opts.TopicPrefix), payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is up.
func (p *Publisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.client != nil && p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *Publisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close disconnects from the broker.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := p.buf.len(); n > 0 {
		p.log.Info("closing with undelivered messages", "count", n)
	}
	if p.client != nil {
		p.client.Disconnect(1000) // 1 second quiesce
	}
	return nil
}

func (p *Publisher) send(ctx context.Context, m bufferedMsg) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil || !p.client.IsConnectionOpen() {
		p.bufferLocked(m)
		return nil
	}
	if err := p.flushLocked(ctx); err != nil {
		p.log.Info("replay failed, buffering", "error", err)
		p.bufferLocked(m)
		return nil
	}
	return p.publishLocked(ctx, m)
}

func (p *Publisher) bufferLocked(m bufferedMsg) {
	if p.buf.push(m) {
		p.log.Info("buffer full, dropping oldest", "capacity", p.opts.BufferSize)
	}
	p.log.V(1).Info("broker unavailable, buffered", "topic", m.topic, "buffered", p.buf.len())
}

// flushLocked replays buffered messages oldest first. On failure the
// unsent remainder goes back to the front of the buffer.
func (p *Publisher) flushLocked(ctx context.Context) error {
	pending, dropped := p.buf.drainAll()
	if dropped > 0 {
		p.log.Info("messages dropped while disconnected", "count", dropped)
	}
	for i, m := range pending {
		if err := p.publishLocked(ctx, m); err != nil {
			p.buf.unshift(pending[i:])
			return err
		}
	}
	if len(pending) > 0 {
		p.log.Info("replayed buffered messages", "count", len(pending))
	}
	return nil
}

func (p *Publisher) publishLocked(ctx context.Context, m bufferedMsg) error {
	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	timer := time.NewTimer(p.opts.PublishTimeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish %s: %w", m.topic, ctx.Err())
	case <-timer.C:
		return fmt.Errorf("publish %s: %w", m.topic, errPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", m.topic, err)
	}
	return nil
}

var errPublishTimeout = errors.New("timeout")

// onConnect runs on every (re)connection.
func (p *Publisher) onConnect() {
	ctx, cancel := context.WithTimeout(context.Background(), p.opts.PublishTimeout*time.Duration(p.opts.BufferSize+1))
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client == nil {
		return
	}
	if p.connectedOnce {
		p.log.Info("reconnected to broker")
		payload, _ := FormatSystemPayload(SystemEvent{Timestamp: p.now(), Event: EventReconnected})
		// Queue behind anything already buffered so ordering holds.
		p.buf.push(bufferedMsg{topic: systemTopic(p.opts.TopicPrefix), payload: payload, qos: 1})
	} else {
		p.log.Info("connected to broker")
	}
	p.connectedOnce = true
	if err := p.flushLocked(ctx); err != nil {
		p.log.Info("replay after connect failed", "error", err)
	}
}
