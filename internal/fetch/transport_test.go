package fetch

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewHTTPClient tests client construction.
func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	t.Run("applies default timeout", func(t *testing.T) {
		t.Parallel()

		client, err := NewHTTPClient(ClientConfig{})
		require.NoError(t, err)
		assert.Equal(t, DefaultTimeout, client.Timeout)
	})

	t.Run("accepts socks5 proxy", func(t *testing.T) {
		t.Parallel()

		_, err := NewHTTPClient(ClientConfig{ProxyURL: "socks5://127.0.0.1:1080"})
		require.NoError(t, err)
	})

	t.Run("accepts http proxy", func(t *testing.T) {
		t.Parallel()

		_, err := NewHTTPClient(ClientConfig{ProxyURL: "http://proxy.internal:3128", Timeout: time.Second})
		require.NoError(t, err)
	})

	t.Run("rejects unknown proxy scheme", func(t *testing.T) {
		t.Parallel()

		_, err := NewHTTPClient(ClientConfig{ProxyURL: "ftp://proxy.internal:21"})
		assert.ErrorIs(t, err, ErrInvalidProxyURL)
	})

	t.Run("rejects proxy without host", func(t *testing.T) {
		t.Parallel()

		_, err := NewHTTPClient(ClientConfig{ProxyURL: "socks5://"})
		assert.ErrorIs(t, err, ErrInvalidProxyURL)
	})
}

// TestHeaderInjectingTransport tests client-wide headers.
func TestHeaderInjectingTransport(t *testing.T) {
	t.Parallel()

	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	client, err := NewHTTPClient(ClientConfig{Headers: map[string]string{
		"Accept-Language": "en-IN",
		"X-Trace":         "default",
	}})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("X-Trace", "explicit")

	resp, err := client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "en-IN", got.Get("Accept-Language"))
	assert.Equal(t, "explicit", got.Get("X-Trace"), "request header must win over client default")
}
