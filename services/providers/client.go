package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/upb/chat-relay/services"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds a provider call when the descriptor sets none
	DefaultTimeout = 30 * time.Second

	// MaxResponseBytes caps how much of a provider response body is read
	MaxResponseBytes = 4 << 20
)

// Client sends one prompt to one provider
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a provider client. Per-call deadlines come from the
// descriptor; a Timeout on httpClient only acts as a backstop and should be
// longer than any descriptor's CallTimeout.
func NewClient(httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
	}
}

// Call posts prompt to the provider described by d and returns the extracted
// reply. No retries are made; failover across providers is the caller's job.
func (c *Client) Call(ctx context.Context, d Descriptor, prompt string) (string, error) {
	if !d.Configured() {
		return "", services.Wrapf(services.ErrProviderNotConfigured, nil, "provider %s: credential not configured", d.Key).
			WithDetail("provider", d.Key)
	}

	ctx, cancel := context.WithTimeout(ctx, d.CallTimeout())
	defer cancel()

	reqBody, err := json.Marshal(d.Build(d.Model, prompt))
	if err != nil {
		return "", services.Wrapf(services.ErrInternal, err, "provider %s: failed to marshal request", d.Key)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", services.Wrapf(services.ErrProviderNotConfigured, err, "provider %s: invalid endpoint", d.Key).
			WithDetail("provider", d.Key)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range d.Headers {
		httpReq.Header.Set(k, v)
	}
	if d.RequiresCredential {
		d.Auth.Apply(httpReq, d.Credential)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", services.Wrapf(services.ErrProviderUnreachable, redact(err, d.Endpoint), "provider %s: request failed", d.Key).
			WithDetail("provider", d.Key)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, MaxResponseBytes))
	if err != nil {
		return "", services.Wrapf(services.ErrProviderUnreachable, redact(err, d.Endpoint), "provider %s: failed to read response", d.Key).
			WithDetail("provider", d.Key)
	}

	c.logger.Debug("provider responded",
		zap.String("provider", d.Key),
		zap.Int("status_code", httpResp.StatusCode),
		zap.Int("bytes", len(respBody)),
		zap.Duration("latency", time.Since(start)),
	)

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return "", services.Wrapf(services.ErrProviderUnreachable, nil, "provider %s: unexpected status %d", d.Key, httpResp.StatusCode).
			WithDetail("provider", d.Key).
			WithDetail("status_code", httpResp.StatusCode)
	}

	reply, err := d.Extract(respBody)
	if err != nil {
		return "", services.Wrapf(services.ErrProviderBadResponse, err, "provider %s: could not extract reply", d.Key).
			WithDetail("provider", d.Key)
	}

	return reply, nil
}

// redact strips the request URL from transport errors. Providers that take
// their credential as a query parameter would otherwise leak it into logs.
func redact(err error, endpoint string) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return &url.Error{Op: uerr.Op, URL: endpoint, Err: uerr.Err}
	}
	return err
}
