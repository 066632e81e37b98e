package base

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	apierrors "github.com/olgasafonova/wiki-resolver-mcp-server/internal/errors"
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/infra"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient()

	if client.HTTPClient.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", client.HTTPClient.Timeout, DefaultTimeout)
	}
	if cap(client.Semaphore) != MaxConcurrentRequests {
		t.Errorf("semaphore capacity = %d, want %d", cap(client.Semaphore), MaxConcurrentRequests)
	}
	if client.MaxRetry != DefaultMaxRetry {
		t.Errorf("MaxRetry = %d, want %d", client.MaxRetry, DefaultMaxRetry)
	}
	if client.UserAgent != DefaultUserAgent {
		t.Errorf("UserAgent = %q, want %q", client.UserAgent, DefaultUserAgent)
	}
}

func TestNewClient_Options(t *testing.T) {
	custom := &http.Client{Timeout: time.Minute}
	logger := quietLogger()

	client := NewClient(
		WithHTTPClient(custom),
		WithLogger(logger),
		WithUserAgent("bot/2"),
		WithMaxRetry(5),
		WithHeader("Accept-Language", "zh-CN"),
	)

	if client.HTTPClient != custom {
		t.Error("custom HTTP client was not set")
	}
	if client.Logger != logger {
		t.Error("custom logger was not set")
	}
	if client.UserAgent != "bot/2" {
		t.Errorf("UserAgent = %q, want bot/2", client.UserAgent)
	}
	if client.MaxRetry != 5 {
		t.Errorf("MaxRetry = %d, want 5", client.MaxRetry)
	}
	if got := client.Headers.Get("Accept-Language"); got != "zh-CN" {
		t.Errorf("Accept-Language = %q, want zh-CN", got)
	}

	timed := NewClient(WithTimeout(3 * time.Second))
	if timed.HTTPClient.Timeout != 3*time.Second {
		t.Errorf("timeout = %v, want 3s", timed.HTTPClient.Timeout)
	}
}

func TestClient_AcquireSlot_ContextCanceled(t *testing.T) {
	client := &Client{Semaphore: make(chan struct{}, 1)}
	client.Semaphore <- struct{}{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := client.AcquireSlot(ctx); err == nil {
		t.Error("expected error when context is canceled")
	}
}

func TestFetch_SendsHeadersAndQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "bot/2" {
			t.Errorf("User-Agent = %q, want bot/2", got)
		}
		if got := r.Header.Get("Accept-Language"); got != "zh-CN" {
			t.Errorf("Accept-Language = %q, want zh-CN", got)
		}
		if got := r.Header.Get("X-Extra"); got != "1" {
			t.Errorf("X-Extra = %q, want 1", got)
		}
		if got := r.URL.Query().Get("action"); got != "query" {
			t.Errorf("action = %q, want query", got)
		}
		if got := r.URL.Query().Get("keep"); got != "yes" {
			t.Errorf("existing query parameter lost: keep = %q", got)
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(WithLogger(quietLogger()), WithUserAgent("bot/2"), WithHeader("Accept-Language", "zh-CN"))
	resp, err := client.Fetch(context.Background(), Request{
		URL:          server.URL + "/api.php?keep=yes",
		Query:        url.Values{"action": {"query"}},
		Headers:      map[string]string{"X-Extra": "1"},
		ExpectStatus: http.StatusOK,
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	var body struct {
		OK bool `json:"ok"`
	}
	if err := resp.JSON(&body); err != nil {
		t.Fatalf("JSON failed: %v", err)
	}
	if !body.OK {
		t.Error("expected ok=true")
	}
	if resp.Text() != `{"ok":true}` {
		t.Errorf("Text() = %q", resp.Text())
	}
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(WithLogger(quietLogger()))
	resp, err := client.Fetch(context.Background(), Request{URL: server.URL, ExpectStatus: http.StatusOK})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if resp.Text() != "ok" {
		t.Errorf("Text() = %q, want ok", resp.Text())
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestFetch_ServerErrorExhaustsRetries(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(WithLogger(quietLogger()), WithMaxRetry(2))
	_, err := client.Fetch(context.Background(), Request{URL: server.URL})
	if err == nil {
		t.Fatal("expected error")
	}
	if code := apierrors.StatusCode(err); code != http.StatusServiceUnavailable {
		t.Errorf("StatusCode() = %d, want 503", code)
	}
	if got := atomic.LoadInt32(&attempts); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestFetch_UnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("go away"))
	}))
	defer server.Close()

	client := NewClient(WithLogger(quietLogger()))
	resp, err := client.Fetch(context.Background(), Request{URL: server.URL, ExpectStatus: http.StatusOK})
	if err == nil {
		t.Fatal("expected error")
	}
	if code := apierrors.StatusCode(err); code != http.StatusForbidden {
		t.Errorf("StatusCode() = %d, want 403", code)
	}
	if resp == nil || resp.Text() != "go away" {
		t.Error("expected the response to be returned with the status error")
	}
}

func TestFetch_AnyStatusWithoutExpectation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(WithLogger(quietLogger()))
	resp, err := client.Fetch(context.Background(), Request{URL: server.URL})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", resp.StatusCode)
	}
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(WithLogger(quietLogger()), WithTimeout(50*time.Millisecond))
	_, err := client.Fetch(context.Background(), Request{URL: server.URL})
	if !apierrors.IsTimeout(err) {
		t.Fatalf("err = %v, want TimeoutError", err)
	}
}

func TestFetch_InvalidURL(t *testing.T) {
	client := NewClient(WithLogger(quietLogger()))
	_, err := client.Fetch(context.Background(), Request{URL: "not a url"})

	var fetchErr *apierrors.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("err = %v, want FetchError", err)
	}
}

func TestFetch_CircuitOpenRejectsHost(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(WithLogger(quietLogger()), WithMaxRetry(1))
	client.Breakers = infra.NewBreakerSetWithFactory(func() *infra.CircuitBreaker {
		return infra.NewCircuitBreakerWithConfig(1, time.Hour, 1)
	})

	_, _ = client.Fetch(context.Background(), Request{URL: server.URL})
	_, err := client.Fetch(context.Background(), Request{URL: server.URL})
	if err == nil {
		t.Fatal("expected circuit breaker error")
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("attempts = %d, want 1 (second call must not reach the server)", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is longer", 4, "this..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
