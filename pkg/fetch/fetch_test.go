package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestListExtractsDataShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		_, _ = w.Write([]byte(`{"data":[{"id":1,"name":"ada"},{"id":2,"name":"bob"}],"total":41}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	page, err := c.List(context.Background(), "/api/users", url.Values{"limit": {"25"}})
	require.NoError(t, err)
	assert.Equal(t, 41, page.Total)
	require.Len(t, page.Rows, 2)
	assert.Equal(t, "ada", page.Rows[0]["name"])
	assert.Equal(t, "1", page.Rows[0].ID("id"))
}

func TestListExtractsItemsAndCount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"items":[{"id":"a"}],"count":7}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	page, err := c.List(context.Background(), "/api/users", nil)
	require.NoError(t, err)
	assert.Equal(t, 7, page.Total)
	assert.Equal(t, "a", page.Rows[0].ID("id"))
}

func TestListExtractsBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"x"},{"id":"y"}]`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	page, err := c.List(context.Background(), "/api/users", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
}

func TestListRejectsUnknownShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"rows": "nope"}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	_, err := c.List(context.Background(), "/api/users", nil)
	assert.ErrorIs(t, err, ErrBadShape)
	assert.False(t, IsCancel(err))
}

func TestListStatusFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	_, err := c.List(context.Background(), "/api/users", nil)

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadGateway, te.Status)
	assert.False(t, IsCancel(err))
}

func TestCancelledRequestIsNotAFailure(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := c.List(ctx, "/api/users", nil)
	require.Error(t, err)
	assert.True(t, IsCancel(err))
}

func TestRateLimiterRespectsCancel(t *testing.T) {
	c, _ := NewClient("http://backend.invalid", WithRateLimit(0.001, 1))
	// Exhaust the burst token.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _ = c.List(ctx, "/a", nil)
	_, err := c.List(ctx, "/b", nil)
	require.Error(t, err)
	assert.True(t, IsCancel(err))
}

func TestCustomHeaderSent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, WithHeader("Authorization", "Bearer token"))
	_, err := c.List(context.Background(), "/api/users", nil)
	require.NoError(t, err)
}

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"results":[{"id":"1","status":"ok"}]}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	body, err := c.PostJSON(context.Background(), "/api/bulk", strings.NewReader(`{"ids":["1"]}`))
	require.NoError(t, err)
	assert.Contains(t, string(body), "results")
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "csv", r.URL.Query().Get("format"))
		_, _ = w.Write([]byte("id,name\n1,ada\n"))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL)
	var sb strings.Builder
	err := c.Download(context.Background(), "/api/users/export", url.Values{"format": {"csv"}}, &sb)
	require.NoError(t, err)
	assert.Contains(t, sb.String(), "ada")
}

func TestListEmitsSpan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	c, _ := NewClient(srv.URL, WithTracerProvider(tp))
	_, err := c.List(context.Background(), "/api/users", nil)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "grid.list", spans[0].Name())
}

func TestRowID(t *testing.T) {
	assert.Equal(t, "42", Row{"id": float64(42)}.ID("id"))
	assert.Equal(t, "abc", Row{"id": "abc"}.ID("id"))
	assert.Equal(t, "", Row{}.ID("id"))
	assert.Equal(t, "true", Row{"id": true}.ID("id"))
}
