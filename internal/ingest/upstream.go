// Package ingest pulls stations, readings and weather from the public
// Korean data APIs into the stores.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/mohammed-shakir/airmap/internal/core/observability"
)

// ErrUpstream marks failures of the remote API rather than of local storage.
var ErrUpstream = errors.New("upstream request failed")

type statusError struct {
	code int
}

func (e statusError) Error() string { return fmt.Sprintf("status %d", e.code) }

// upstream is a GET-only client guarded by a circuit breaker.
type upstream struct {
	name    string
	hc      *http.Client
	cb      *gobreaker.CircuitBreaker[[]byte]
	retries int
	backoff time.Duration
	log     *slog.Logger
}

func newUpstream(name string, hc *http.Client, log *slog.Logger) *upstream {
	if log == nil {
		log = slog.Default()
	}
	u := &upstream{name: name, hc: hc, retries: 2, backoff: 500 * time.Millisecond, log: log.With("upstream", name)}
	u.cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var se statusError
			// a 4xx is our fault, not a sign the service is down
			return err == nil || (errors.As(err, &se) && se.code < 500)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			u.log.Warn("circuit breaker state change", "from", from.String(), "to", to.String())
		},
	})
	return u
}

func (u *upstream) get(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= u.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(u.backoff * time.Duration(attempt)):
			}
		}
		body, err := u.cb.Execute(func() ([]byte, error) { return u.do(ctx, rawURL) })
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			break
		}
		u.log.Debug("upstream retry", "attempt", attempt+1, "err", err)
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrUpstream, u.name, lastErr)
}

func retryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var se statusError
	if errors.As(err, &se) {
		return se.code >= 500
	}
	return true
}

func (u *upstream) do(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := u.hc.Do(req)
	observability.ObserveUpstreamLatency(u.name, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, statusError{code: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}
