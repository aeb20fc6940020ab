package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/anatolykoptev/go_trends/internal/metrics"
)

// RetryPolicy paces repeated attempts against a flaky feed endpoint.
type RetryPolicy struct {
	Attempts int           // total attempts, including the first
	BaseWait time.Duration // wait before the second attempt, doubled each retry
	MaxWait  time.Duration // cap on any single wait, Retry-After included
}

// Per-source budgets. WWR serves static RSS and recovers quickly, so short
// waits suffice; RemoteOK throttles harder and asks for longer pauses.
var (
	wwrRetry      = RetryPolicy{Attempts: 4, BaseWait: 500 * time.Millisecond, MaxWait: 5 * time.Second}
	remoteOKRetry = RetryPolicy{Attempts: 3, BaseWait: 2 * time.Second, MaxWait: 15 * time.Second}
)

// SendWithRetry runs send until it yields a usable response or the policy
// is exhausted. Throttling and server-error responses are drained and
// retried, honoring a Retry-After hint when one is sent; transport errors
// retry only when transient. Every failed attempt counts as a feed error.
// Non-retryable statuses (404 and friends) come back as responses for the
// caller to judge.
func SendWithRetry(ctx context.Context, p RetryPolicy, send func() (*http.Response, error)) (*http.Response, error) {
	wait := p.BaseWait
	var lastErr error

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := send()
		if err == nil && !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		var hint time.Duration
		switch {
		case err == nil:
			hint = retryAfterHint(resp)
			resp.Body.Close()
			lastErr = fmt.Errorf("feed endpoint returned %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		case transient(err):
			lastErr = err
		default:
			return nil, err
		}
		metrics.IncrFeedErrors()

		if attempt >= p.Attempts {
			return nil, lastErr
		}

		pause := wait
		if hint > pause {
			pause = hint
		}
		if pause > p.MaxWait {
			pause = p.MaxWait
		}
		slog.Debug("feed retry",
			slog.Int("attempt", attempt),
			slog.Duration("pause", pause),
			slog.Any("error", lastErr),
		)
		select {
		case <-time.After(pause):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		wait *= 2
	}
}

// retryAfterHint reads the Retry-After header RemoteOK sends with its 429s.
// Both the delta-seconds and the HTTP-date form appear in the wild.
func retryAfterHint(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		return time.Until(at)
	}
	return 0
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// transient reports whether a transport error is worth another attempt.
// Dial failures, DNS hiccups, and timeouts are; everything else fails fast.
func transient(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
