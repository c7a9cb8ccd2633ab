package httprpc

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Option configures the underlying http.Client a MetastoreClient or
// IngesterClient dials with.
type Option func(*http.Client)

// WithTLSConfig makes a client dial over TLS using tlsConfig as both root
// and, if it carries client certificates, mutual TLS configuration. Pass
// (*tlsroots.Pool).TLSConfig() or (*tlsroots.Pool).MutualTLSConfig() here.
func WithTLSConfig(tlsConfig *tls.Config) Option {
	return func(c *http.Client) {
		c.Transport = &http.Transport{TLSClientConfig: tlsConfig}
	}
}

// newHTTPClient builds an http.Client with the given timeout, applying opts
// on top of the defaults.
func newHTTPClient(timeout time.Duration, opts []Option) *http.Client {
	client := &http.Client{Timeout: timeout}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// doPost marshals body as JSON, POSTs it to url, and decodes the response
// body into out. out may be nil for calls with no response payload.
func doPost(ctx context.Context, client *http.Client, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("httprpc: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("httprpc: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("httprpc: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("httprpc: %s returned status %d", url, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("httprpc: decode response: %w", err)
	}
	return nil
}
