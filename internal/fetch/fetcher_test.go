package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestFetcher returns a fetcher with a fast retry schedule.
func newTestFetcher(t *testing.T, opts ...Option) *Fetcher {
	t.Helper()
	client, err := NewHTTPClient(ClientConfig{Timeout: 5 * time.Second})
	require.NoError(t, err)
	opts = append([]Option{WithRetryPolicy(3, 5*time.Millisecond)}, opts...)
	return NewFetcher(client, NewLimiter(), opts...)
}

// TestFetcherHeaders tests the identification headers.
func TestFetcherHeaders(t *testing.T) {
	t.Parallel()

	var gotUA, gotAccept, gotExtra string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		gotExtra = r.Header.Get("X-Site")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	t.Cleanup(srv.Close)

	f := newTestFetcher(t)
	page, err := f.Fetch(context.Background(), srv.URL, 100, WithHeader("X-Site", "shop"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, "text/html", page.ContentType)
	assert.Equal(t, DefaultUserAgent, gotUA)
	assert.Contains(t, gotAccept, "text/html")
	assert.Contains(t, gotAccept, "application/xml")
	assert.Equal(t, "shop", gotExtra)
}

// TestFetcherRetries tests the retry policy for each class of status.
func TestFetcherRetries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		statuses     []int
		wantAttempts int32
		wantErr      bool
		wantStatus   int
	}{
		{name: "200 is returned immediately", statuses: []int{200}, wantAttempts: 1, wantStatus: 200},
		{name: "404 is not retried", statuses: []int{404}, wantAttempts: 1, wantStatus: 404},
		{name: "403 is not retried", statuses: []int{403}, wantAttempts: 1, wantStatus: 403},
		{name: "503 then 200 succeeds", statuses: []int{503, 200}, wantAttempts: 2, wantStatus: 200},
		{name: "429 twice then 200 succeeds", statuses: []int{429, 429, 200}, wantAttempts: 3, wantStatus: 200},
		{name: "500 three times fails", statuses: []int{500, 500, 500, 200}, wantAttempts: 3, wantErr: true, wantStatus: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				i := int(calls.Add(1)) - 1
				if i >= len(tt.statuses) {
					i = len(tt.statuses) - 1
				}
				w.WriteHeader(tt.statuses[i])
			}))
			t.Cleanup(srv.Close)

			f := newTestFetcher(t)
			page, err := f.Fetch(context.Background(), srv.URL, 1000)

			assert.Equal(t, tt.wantAttempts, calls.Load())
			if tt.wantErr {
				var upstream *UpstreamFetchError
				require.ErrorAs(t, err, &upstream)
				assert.Equal(t, tt.wantStatus, upstream.StatusCode)
				assert.Equal(t, int(tt.wantAttempts), upstream.Attempts)
				assert.ErrorIs(t, err, ErrRetryableStatus)
				assert.Nil(t, page)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, page.StatusCode)
		})
	}
}

// TestFetcherNetworkError tests that connection failures surface as
// UpstreamFetchError after all attempts.
func TestFetcherNetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f := newTestFetcher(t)
	_, err := f.Fetch(context.Background(), url, 1000)

	var upstream *UpstreamFetchError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, 0, upstream.StatusCode)
	assert.Equal(t, 3, upstream.Attempts)
	assert.True(t, IsUpstreamFetchError(err))
}

// TestFetcherContextCancel tests that a cancelled context stops retries.
func TestFetcherContextCancel(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	client, err := NewHTTPClient(ClientConfig{})
	require.NoError(t, err)
	f := NewFetcher(client, NewLimiter(), WithRetryPolicy(3, time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = f.Fetch(ctx, srv.URL, 1000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 5*time.Second)
}

// TestFetcherBodyLimit tests that bodies are truncated at the size limit.
func TestFetcherBodyLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, 4096))
	}))
	t.Cleanup(srv.Close)

	f := newTestFetcher(t, WithMaxBodySize(1024))
	page, err := f.Fetch(context.Background(), srv.URL, 1000)
	require.NoError(t, err)
	assert.Len(t, page.Raw, 1024)
}

// TestFetcherDefaults tests the documented retry defaults.
func TestFetcherDefaults(t *testing.T) {
	t.Parallel()

	f := NewFetcher(nil, nil)
	assert.Equal(t, 3, f.maxAttempts)
	assert.Equal(t, 500*time.Millisecond, f.initialBackoff)
	assert.Equal(t, int64(10*1024*1024), f.maxBodySize)
	assert.NotNil(t, f.Limiter())
}

// TestNewBackOffSchedule tests the backoff waits between attempts.
func TestNewBackOffSchedule(t *testing.T) {
	t.Parallel()

	f := NewFetcher(nil, nil)
	b := f.newBackOff(context.Background())

	assert.Equal(t, 500*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 1000*time.Millisecond, b.NextBackOff())
	assert.Equal(t, time.Duration(-1), b.NextBackOff(), "expected stop after two retries")
}

// TestFetcherSharedLimiter tests that concurrent callers sharing a limiter
// respect the minimum interval.
func TestFetcherSharedLimiter(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	starts := make([]time.Time, 0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		starts = append(starts, time.Now())
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	f := newTestFetcher(t)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.Fetch(context.Background(), srv.URL, 20)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, starts, 4)
	total := starts[len(starts)-1].Sub(starts[0])
	// Four starts at 20 Hz span at least three 50ms intervals.
	assert.GreaterOrEqual(t, total, 140*time.Millisecond)
}
