package mcp

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/vetrina/internal/core/domain"
)

func TestNewServer(t *testing.T) {
	t.Run("nil search service returns error", func(t *testing.T) {
		server, err := NewServer(&Ports{}, Options{})
		require.Error(t, err)
		assert.Nil(t, server)
		assert.ErrorIs(t, err, ErrMissingSearchService)
	})

	t.Run("valid ports creates server", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}}, Options{})
		require.NoError(t, err)
		assert.NotNil(t, server)
		assert.Equal(t, domain.DefaultTopK, server.opts.Defaults.TopK)
		assert.Equal(t, "dev", server.opts.Version)
		assert.Equal(t, DefaultShutdownTimeout, server.opts.ShutdownTimeout)
	})
}

func TestPorts_Validate(t *testing.T) {
	assert.ErrorIs(t, (&Ports{}).Validate(), ErrMissingSearchService)
	assert.NoError(t, (&Ports{Search: &mockSearchService{}}).Validate())
	assert.NoError(t, (&Ports{Search: &mockSearchService{}, Chat: &mockChatService{}}).Validate())
}

func TestServer_Handler(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("vetrina_searches_total 1\n"))
	})

	t.Run("serves metrics", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}}, Options{Metrics: metrics})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "vetrina_searches_total")
	})

	t.Run("no metrics handler", func(t *testing.T) {
		server, err := NewServer(&Ports{Search: &mockSearchService{}}, Options{})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("health reflects catalog state", func(t *testing.T) {
		search := &mockSearchService{}
		server, err := NewServer(&Ports{Search: search}, Options{})
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		assert.JSONEq(t, `{"status":"catalog not loaded","products":0}`, rec.Body.String())

		search.stats = domain.CatalogStats{Loaded: true, TotalProducts: 812, ModelName: "paraphrase-multilingual"}
		rec = httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"status":"ok","products":812,"model":"paraphrase-multilingual"}`, rec.Body.String())
	})
}

func TestServer_ServeStopsWithContext(t *testing.T) {
	server, err := NewServer(&Ports{Search: &mockSearchService{stats: domain.CatalogStats{Loaded: true}}}, Options{})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServer_RunHTTPBadAddress(t *testing.T) {
	server, err := NewServer(&Ports{Search: &mockSearchService{}}, Options{})
	require.NoError(t, err)

	err = server.RunHTTP(context.Background(), "not-an-address")
	assert.Error(t, err)
}
