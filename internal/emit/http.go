package emit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sweeney/equilibrium/internal/control"
	"github.com/sweeney/equilibrium/internal/wire"
)

// HTTP posts each batch as a JSON document to a URL.
type HTTP struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// NewHTTP creates an HTTP emitter. A nil client gets a 10 second timeout.
func NewHTTP(url string, client *http.Client) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTP{url: url, client: client, now: time.Now}
}

// Publish implements Emitter. Any non-2xx response is an error.
func (h *HTTP) Publish(ctx context.Context, msgs []control.Message) error {
	body, err := wire.Encode(msgs, h.now())
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", h.url, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post %s: unexpected status %s", h.url, resp.Status)
	}
	return nil
}

// Close releases idle connections.
func (h *HTTP) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
