// Package ratelimit handles the provider's HTTP 429 signal and paces outgoing requests per tenant.
package ratelimit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-ledger-sync/internal/errors"
	"github.com/jrsteele09/go-ledger-sync/internal/metrics"
	"github.com/rs/zerolog/log"
)

const (
	HeaderProblem    = "X-Rate-Limit-Problem"
	HeaderRetryAfter = "Retry-After"

	ProblemMinute     = "minute"
	ProblemConcurrent = "concurrent"

	DefaultConcurrentDelay = time.Second
)

// Backoff reads a 429 response's headers and returns the limit class and how long to wait.
// A missing problem header (or a minute limit without Retry-After) is a protocol error and
// an unrecognised class is ErrRateLimitUnknown; neither should be retried.
func Backoff(h http.Header, concurrentDelay time.Duration) (string, time.Duration, error) {
	problem := strings.TrimSpace(h.Get(HeaderProblem))
	switch problem {
	case "":
		return "", 0, apperrors.Wrapf(apperrors.ErrProtocol, "429 without %s header", HeaderProblem)
	case ProblemMinute:
		seconds, err := strconv.Atoi(strings.TrimSpace(h.Get(HeaderRetryAfter)))
		if err != nil || seconds < 0 {
			return problem, 0, apperrors.Wrapf(apperrors.ErrProtocol, "minute limit with %s %q", HeaderRetryAfter, h.Get(HeaderRetryAfter))
		}
		return problem, time.Duration(seconds) * time.Second, nil
	case ProblemConcurrent:
		return problem, concurrentDelay, nil
	default:
		return problem, 0, apperrors.Wrapf(apperrors.ErrRateLimitUnknown, "%s: %s", HeaderProblem, problem)
	}
}

// AttemptFunc sends one request. It is called again, from scratch, after every backoff.
type AttemptFunc func(ctx context.Context) (*http.Response, error)

type Retrier struct {
	concurrentDelay time.Duration
	sleep           func(ctx context.Context, d time.Duration) error
	metrics         metrics.Recorder
}

type RetrierOption func(*Retrier)

func WithConcurrentDelay(d time.Duration) RetrierOption {
	return func(r *Retrier) {
		r.concurrentDelay = d
	}
}

// WithSleepFunc replaces the context aware sleep, for tests.
func WithSleepFunc(sleep func(ctx context.Context, d time.Duration) error) RetrierOption {
	return func(r *Retrier) {
		r.sleep = sleep
	}
}

func WithMetrics(m metrics.Recorder) RetrierOption {
	return func(r *Retrier) {
		r.metrics = m
	}
}

func NewRetrier(options ...RetrierOption) *Retrier {
	r := &Retrier{
		concurrentDelay: DefaultConcurrentDelay,
		sleep:           Sleep,
		metrics:         metrics.Noop(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Do runs attempt until the response is not a 429. Retries are unbounded in number;
// ctx bounds the total time. Non-429 responses are returned untouched.
func (r *Retrier) Do(ctx context.Context, attempt AttemptFunc) (*http.Response, error) {
	for {
		resp, err := attempt(ctx)
		if err != nil {
			return nil, err
		}
		r.metrics.RecordProviderStatus(resp.StatusCode)
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		problem, wait, err := Backoff(resp.Header, r.concurrentDelay)
		drain(resp)
		if err != nil {
			log.Error().Err(err).Str("problem", problem).Msg("unrecoverable rate limit response")
			return nil, err
		}

		log.Info().Str("problem", problem).Dur("wait", wait).Msg("rate limited, backing off")
		r.metrics.RecordRateLimitWait(problem, wait)
		if err := r.sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("[Retrier Do] backoff interrupted: %w", err)
		}
	}
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
