package ratelimit_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/go-ledger-sync/internal/errors"
	"github.com/jrsteele09/go-ledger-sync/ratelimit"
	"github.com/stretchr/testify/require"
)

func response(status int, headers map[string]string, body string) *http.Response {
	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}
	return &http.Response{StatusCode: status, Header: h, Body: io.NopCloser(strings.NewReader(body))}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		problem string
		wait    time.Duration
		err     error
	}{
		{"minute", map[string]string{"X-Rate-Limit-Problem": "minute", "Retry-After": "5"}, "minute", 5 * time.Second, nil},
		{"concurrent", map[string]string{"X-Rate-Limit-Problem": "concurrent"}, "concurrent", time.Second, nil},
		{"missing header", nil, "", 0, apperrors.ErrProtocol},
		{"minute without retry-after", map[string]string{"X-Rate-Limit-Problem": "minute"}, "minute", 0, apperrors.ErrProtocol},
		{"daily", map[string]string{"X-Rate-Limit-Problem": "day", "Retry-After": "3600"}, "day", 0, apperrors.ErrRateLimitUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			problem, wait, err := ratelimit.Backoff(h, ratelimit.DefaultConcurrentDelay)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.problem, problem)
			require.Equal(t, tt.wait, wait)
		})
	}
}

func TestDoWaitsRetryAfterThenResends(t *testing.T) {
	var slept []time.Duration
	r := ratelimit.NewRetrier(ratelimit.WithSleepFunc(func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}))

	var requests []string
	responses := []*http.Response{
		response(http.StatusTooManyRequests, map[string]string{"X-Rate-Limit-Problem": "minute", "Retry-After": "5"}, ""),
		response(http.StatusOK, nil, `{"Journals":[]}`),
	}
	resp, err := r.Do(context.Background(), func(ctx context.Context) (*http.Response, error) {
		requests = append(requests, "GET /Journals?offset=100")
		next := responses[0]
		responses = responses[1:]
		return next, nil
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []time.Duration{5 * time.Second}, slept)
	require.Equal(t, []string{"GET /Journals?offset=100", "GET /Journals?offset=100"}, requests)
}

func TestDoConcurrentProblemAgainstServer(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) <= 2 {
			w.Header().Set("X-Rate-Limit-Problem", "concurrent")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	r := ratelimit.NewRetrier(ratelimit.WithConcurrentDelay(10 * time.Millisecond))
	start := time.Now()
	resp, err := r.Do(context.Background(), func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
		if err != nil {
			return nil, err
		}
		return http.DefaultClient.Do(req)
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int32(3), atomic.LoadInt32(&hits))
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestDoFatalProblemsAreNotRetried(t *testing.T) {
	for _, headers := range []map[string]string{nil, {"X-Rate-Limit-Problem": "appminute"}} {
		var calls int
		r := ratelimit.NewRetrier(ratelimit.WithSleepFunc(func(context.Context, time.Duration) error {
			t.Fatal("must not sleep")
			return nil
		}))
		_, err := r.Do(context.Background(), func(ctx context.Context) (*http.Response, error) {
			calls++
			return response(http.StatusTooManyRequests, headers, ""), nil
		})
		require.Error(t, err)
		require.Equal(t, 1, calls)
	}
}

func TestDoPassesOtherStatusesThrough(t *testing.T) {
	r := ratelimit.NewRetrier()
	for _, status := range []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError} {
		resp, err := r.Do(context.Background(), func(ctx context.Context) (*http.Response, error) {
			return response(status, nil, "business error"), nil
		})
		require.NoError(t, err)
		require.Equal(t, status, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		require.Equal(t, "business error", string(body))
	}
}

func TestDoBackoffIsCancellable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	r := ratelimit.NewRetrier()
	start := time.Now()
	_, err := r.Do(ctx, func(ctx context.Context) (*http.Response, error) {
		return response(http.StatusTooManyRequests, map[string]string{"X-Rate-Limit-Problem": "minute", "Retry-After": "60"}, ""), nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestPacer(t *testing.T) {
	var nilPacer *ratelimit.Pacer
	require.NoError(t, nilPacer.Wait(context.Background(), "t"))
	require.Nil(t, ratelimit.NewPacer(0))

	p := ratelimit.NewPacer(6) // burst 1, one token every 10s
	require.NoError(t, p.Wait(context.Background(), "tenant-a"))
	require.NoError(t, p.Wait(context.Background(), "tenant-b"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, p.Wait(ctx, "tenant-a"))
}
