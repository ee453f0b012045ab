package gemini

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"gcli-nexus-go/internal/config"

	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, upstreamURL string) *Client {
	t.Helper()
	cfg := config.Defaults()
	cfg.Upstream.CodeAssist = upstreamURL
	return New(cfg)
}

func TestPostCLISetsCLIFingerprint(t *testing.T) {
	var seen http.Header
	var seenPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Clone()
		seenPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		require.JSONEq(t, `{"model":"gemini-2.5-pro","project":"p1","request":{}}`, string(body))
		w.Write([]byte(`{"response":{}}`))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	resp, err := c.PostCLI(context.Background(), "tok", false,
		[]byte(`{"model":"gemini-2.5-pro","project":"p1","request":{}}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "/v1internal:generateContent", seenPath)
	require.Equal(t, "Bearer tok", seen.Get("Authorization"))
	require.Equal(t, "application/json", seen.Get("Content-Type"))
	require.True(t, strings.HasPrefix(seen.Get("User-Agent"), "gemini-code-assist-cli/1.0.0 ("))
	require.True(t, strings.HasPrefix(seen.Get("X-Goog-Api-Client"), "gl-go/"))
	require.NotEmpty(t, seen.Get("Client-Metadata"))
}

func TestPostCLIStreamPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1internal:streamGenerateContent", r.URL.Path)
		require.Equal(t, "sse", r.URL.Query().Get("alt"))
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {}\n\n"))
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	resp, err := c.PostCLI(context.Background(), "tok", true, []byte(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
}

func TestPostCLIDoesNotRetryOnStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(t, srv.URL)
	resp, err := c.PostCLI(context.Background(), "tok", false, []byte(`{}`))
	require.NoError(t, err, "an HTTP status is a response, not a transport failure")
	resp.Body.Close()
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, int32(1), calls.Load())
}

func TestPostCLIRetriesTransportFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // every dial now fails

	c := testClient(t, srv.URL)
	_, err := c.PostCLI(context.Background(), "tok", false, []byte(`{}`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "after 3 attempts")
	require.True(t, IsNetworkError(err))
}

func TestPostCLICancellationStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testClient(t, srv.URL).PostCLI(ctx, "tok", false, []byte(`{}`))
	require.ErrorIs(t, err, context.Canceled)
}
