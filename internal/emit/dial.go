package emit

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-logr/logr"

	"github.com/sweeney/equilibrium/internal/mqtt"
	"github.com/sweeney/equilibrium/internal/redisstream"
)

// DialConfig carries transport settings for Dial.
type DialConfig struct {
	MQTT        mqtt.Options
	RedisStream string
	RedisMaxLen int64
	HTTPClient  *http.Client
	Log         logr.Logger
}

// Dial opens an emitter for endpoint, chosen by URL scheme:
//
//	http, https           POST to the URL
//	tcp, mqtt, ssl, ws    MQTT broker
//	redis, rediss         Redis stream
func Dial(ctx context.Context, endpoint string, cfg DialConfig) (Closer, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	log := cfg.Log
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	switch u.Scheme {
	case "http", "https":
		return NewHTTP(endpoint, cfg.HTTPClient), nil
	case "tcp", "mqtt", "ssl", "ws", "wss":
		opts := cfg.MQTT
		opts.Log = log
		p, err := mqtt.Dial(endpoint, opts)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "redis", "rediss":
		p, err := redisstream.Dial(ctx, endpoint,
			redisstream.WithStream(cfg.RedisStream),
			redisstream.WithMaxLen(cfg.RedisMaxLen),
			redisstream.WithLogger(log.WithName("redis")))
		if err != nil {
			return nil, err
		}
		return p, nil
	case "":
		return nil, fmt.Errorf("endpoint %q has no scheme", endpoint)
	default:
		return nil, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
}

// Redact strips credentials from an endpoint for logs and errors.
func Redact(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	return u.Redacted()
}
