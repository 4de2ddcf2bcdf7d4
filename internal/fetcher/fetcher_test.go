package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mathgene/genealogy-crawler/internal/genealogy"
)

// zeroBackoffPolicy retries immediately so tests run fast.
type zeroBackoffPolicy struct {
	attempts int
}

func (p *zeroBackoffPolicy) MaxAttempts() int          { return p.attempts }
func (p *zeroBackoffPolicy) Backoff(int) time.Duration { return 0 }

func newTestFetcher(policy genealogy.RetryPolicy) *Fetcher {
	return New(Config{UserAgent: "test-agent", Timeout: 5 * time.Second}, policy, zap.NewNop())
}

func TestFetchSucceedsOnThirdAttempt(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("<html><h2>Jane Doe</h2></html>"))
	}))
	defer srv.Close()

	f := newTestFetcher(&zeroBackoffPolicy{attempts: 3})
	doc, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, doc.StatusCode)
	require.Contains(t, string(doc.Body), "Jane Doe")
	require.Equal(t, int32(3), hits.Load(), "transport failing twice must be retried twice")
}

func TestFetchExhaustsAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newTestFetcher(&zeroBackoffPolicy{attempts: 3})
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	require.True(t, genealogy.IsFetchExhausted(err))

	var fe *genealogy.FetchExhaustedError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, 3, fe.Attempts)
	require.Equal(t, srv.URL, fe.Locator)
	require.Equal(t, int32(3), hits.Load(), "fetch must stop after exactly 3 attempts")
}

func TestFetchHonorsContextDuringBackoff(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	slow := NewJitterRetryPolicy(3, 10*time.Second, 30*time.Second)
	f := newTestFetcher(slow)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.Fetch(ctx, srv.URL)
	require.Error(t, err)
	require.False(t, genealogy.IsFetchExhausted(err), "cancellation is not exhaustion")
	require.Less(t, time.Since(start), 5*time.Second, "backoff sleep must exit on context cancel")
}
