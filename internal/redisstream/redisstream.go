// Package redisstream appends control message batches to a Redis stream.
package redisstream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	backend "github.com/redis/go-redis/v9"

	"github.com/sweeney/equilibrium/internal/control"
	"github.com/sweeney/equilibrium/internal/wire"
)

// DefaultStream is the stream key used when none is configured.
const DefaultStream = "equilibrium:messages"

// Publisher writes one stream entry per batch with fields batch_id, count
// and batch (the JSON envelope). Entries are appended in Publish order.
type Publisher struct {
	client *backend.Client
	stream string
	maxLen int64
	log    logr.Logger
	now    func() time.Time
	owned  bool
}

type Option func(*Publisher)

// WithStream sets the stream key.
func WithStream(stream string) Option {
	return func(p *Publisher) {
		if stream != "" {
			p.stream = stream
		}
	}
}

// WithMaxLen caps the stream length approximately. Zero means unbounded.
func WithMaxLen(n int64) Option {
	return func(p *Publisher) { p.maxLen = n }
}

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(p *Publisher) { p.log = log }
}

// NewFromClient creates a Publisher on an existing client. Close does not
// close the client.
func NewFromClient(client *backend.Client, opts ...Option) *Publisher {
	p := &Publisher{
		client: client,
		stream: DefaultStream,
		log:    logr.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dial parses a redis:// URL and pings the server.
func Dial(ctx context.Context, url string, opts ...Option) (*Publisher, error) {
	o, err := backend.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := backend.NewClient(o)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", o.Addr, err)
	}
	p := NewFromClient(client, opts...)
	p.owned = true
	return p, nil
}

// Publish appends msgs as one entry.
func (p *Publisher) Publish(ctx context.Context, msgs []control.Message) error {
	batch := wire.NewBatch(msgs, p.now())
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}
	args := &backend.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"batch_id": batch.ID,
			"count":    strconv.Itoa(len(batch.Messages)),
			"batch":    string(data),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	p.log.V(1).Info("batch appended", "stream", p.stream, "entry", id, "messages", len(msgs))
	return nil
}

// Stream returns the stream key.
func (p *Publisher) Stream() string {
	return p.stream
}

// Close releases the client if Dial created it.
func (p *Publisher) Close() error {
	if !p.owned {
		return nil
	}
	return p.client.Close()
}
