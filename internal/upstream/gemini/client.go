package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"gcli-nexus-go/internal/config"
	"gcli-nexus-go/internal/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	retryBaseDelay  = 200 * time.Millisecond
	retryMaxDelay   = time.Second
	maxNetworkTries = 3
)

// Client posts serialized CLI-protocol payloads to the Code Assist
// endpoint. It retries transport failures with capped exponential
// backoff but never retries on an HTTP status: every status, including
// 5xx, is a valid answer the dispatcher must see.
type Client struct {
	base string
	cli  *http.Client
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

// getProxyFunc returns the proxy function for the configured URL,
// falling back to the process environment.
func getProxyFunc(proxyURL string) func(*http.Request) (*url.URL, error) {
	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			return http.ProxyURL(parsed)
		}
	}
	return http.ProxyFromEnvironment
}

func New(cfg *config.Config) *Client {
	dialTO := durationOrDefault(cfg.Upstream.DialTimeoutSec, 15*time.Second)
	tlsTO := durationOrDefault(cfg.Upstream.TLSHandshakeTimeoutSec, 10*time.Second)
	hdrTO := durationOrDefault(cfg.Upstream.ResponseHeaderTimeoutSec, 120*time.Second)

	tr := &http.Transport{
		Proxy: getProxyFunc(cfg.Upstream.ProxyURL),
		DialContext: (&net.Dialer{
			Timeout:   dialTO,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   tlsTO,
		ResponseHeaderTimeout: hdrTO,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
	}
	base := cfg.Upstream.CodeAssist
	if base == "" {
		base = config.DefaultCodeAssistEndpoint
	}
	// Client timeout stays 0: streaming responses can outlive any fixed
	// deadline, per-phase limits live on the transport.
	return &Client{base: base, cli: &http.Client{Transport: tr, Timeout: 0}}
}

// PostCLI sends payload to the generate or streamGenerate action using
// accessToken. The caller owns resp.Body on success.
func (c *Client) PostCLI(ctx context.Context, accessToken string, stream bool, payload []byte) (*http.Response, error) {
	path := PathGenerate
	if stream {
		path = PathStreamGenerate
	}
	target := c.base + path

	spanCtx, span := tracing.StartSpan(ctx, "upstream/gemini", "Gemini.PostCLI",
		trace.WithAttributes(
			attribute.String("http.method", http.MethodPost),
			attribute.String("http.url", target),
			attribute.Bool("upstream.stream", stream),
		))
	defer span.End()
	ctx = spanCtx

	var lastErr error
	for attempt := 0; attempt < maxNetworkTries; attempt++ {
		if attempt > 0 {
			delay := retryBaseDelay << (attempt - 1)
			if delay > retryMaxDelay {
				delay = retryMaxDelay
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				span.RecordError(ctx.Err())
				span.SetStatus(codes.Error, ctx.Err().Error())
				return nil, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		applyCLIHeaders(req, accessToken)

		resp, err := c.cli.Do(req)
		if err != nil {
			lastErr = err
			span.SetAttributes(attribute.Int("upstream.retry_total", attempt+1))
			if ctx.Err() != nil {
				// Cancellation is the caller's decision, not a transient
				// network fault.
				span.RecordError(ctx.Err())
				span.SetStatus(codes.Error, ctx.Err().Error())
				return nil, ctx.Err()
			}
			continue
		}

		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
		if resp.StatusCode >= 400 {
			span.SetStatus(codes.Error, fmt.Sprintf("http_status=%d", resp.StatusCode))
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return resp, nil
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	return nil, fmt.Errorf("upstream request failed after %d attempts: %w", maxNetworkTries, lastErr)
}

// IsNetworkError reports whether err came from the transport rather
// than from an HTTP response.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var ue *url.Error
	return errors.As(err, &ue) || errors.Is(err, context.DeadlineExceeded)
}
