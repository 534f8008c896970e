package pipeline

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
)

// retryable lists the statuses worth another attempt.
var retryable = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Retryable reports whether a response with code would be retried.
func Retryable(code int) bool {
	return retryable[code]
}

type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryTransport makes at most attempts tries with linear backoff.
// The last response or error is returned as is.
type retryTransport struct {
	next      http.RoundTripper
	attempts  int
	baseDelay time.Duration
	limiter   *rate.Limiter
	sleep     sleepFunc
	logger    *log.Logger
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	attempts := max(t.attempts, 1)

	for attempt := 0; ; attempt++ {
		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := t.next.RoundTrip(req)
		last := attempt == attempts-1
		if last || !t.shouldRetry(ctx, resp, err) {
			return resp, err
		}

		// a body that cannot be replayed makes the request single-shot
		next, ok := rewind(req)
		if !ok {
			return resp, err
		}

		delay := t.baseDelay * time.Duration(attempt+1)
		if resp != nil {
			t.logger.Debug("retrying request", "url", req.URL.Redacted(), "status", resp.StatusCode, "attempt", attempt+1, "delay", delay)
			discard(resp)
		} else {
			t.logger.Debug("retrying request", "url", req.URL.Redacted(), "err", err, "attempt", attempt+1, "delay", delay)
		}

		if err := t.sleep(ctx, delay); err != nil {
			return nil, err
		}
		req = next
	}
}

func (t *retryTransport) shouldRetry(ctx context.Context, resp *http.Response, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if err != nil {
		return true
	}
	return Retryable(resp.StatusCode)
}

func rewind(req *http.Request) (*http.Request, bool) {
	if req.Body == nil || req.Body == http.NoBody {
		return req, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	next := req.Clone(req.Context())
	next.Body = body
	return next, true
}

// discard drains and closes resp so its connection can be reused.
func discard(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
