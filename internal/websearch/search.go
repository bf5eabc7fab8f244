// Package websearch runs web searches against Tavily or SearXNG and normalizes
// the hits into one Result shape.
package websearch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
)

const DefaultMaxResults = 5

// Searcher is implemented by each provider backend.
type Searcher interface {
	Search(ctx context.Context, req *Request) (*Response, error)
}

type Request struct {
	Query             string
	Topic             string // "general" or "news"
	MaxResults        int
	IncludeRawContent bool
}

type Response struct {
	Results []Result
}

type Result struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Content       string  `json:"content"`
	RawContent    string  `json:"raw_content,omitempty"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date,omitempty"`
}

// StatusError is returned for a non-2xx provider response.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s status code: %d body=%s", e.Provider, e.StatusCode, e.Body)
}

func (e *StatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Is reports 4xx responses other than 429 as permanent.
func (e *StatusError) Is(target error) bool {
	return target == errPermanent && !e.retryable()
}

// errPermanent marks failures another attempt cannot fix.
var errPermanent = errors.New("permanent failure")

type permanentError struct{ err error }

func (e permanentError) Error() string        { return e.err.Error() }
func (e permanentError) Unwrap() error        { return e.err }
func (e permanentError) Is(target error) bool { return target == errPermanent }

const (
	maxResponseBytes   = 2 << 20
	defaultMaxAttempts = 3
	defaultRetryDelay  = time.Second
)

type httpRetrier struct {
	provider string
	client   *http.Client
	retrier  retry.Retry[[]byte]
}

func newHTTPRetrier(provider string, client *http.Client, maxAttempts int, initialDelay time.Duration) httpRetrier {
	return httpRetrier{
		provider: provider,
		client:   client,
		retrier: retry.New[[]byte](retry.Config{
			MaxAttempts:   maxAttempts,
			InitialDelay:  initialDelay,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    2.0,
			// 4xx other than 429, malformed requests and non-timeout transport errors
			NonRetryableErrors: []error{errPermanent, context.Canceled},
		}),
	}
}

// do executes the request built by newReq, retrying 429, 5xx and transport
// timeouts. A Retry-After header on the failed response is waited out before
// the next attempt, on top of the backoff.
func (h httpRetrier) do(ctx context.Context, newReq func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	var retryAfter time.Duration
	return h.retrier.Do(ctx, func(ctx context.Context) ([]byte, error) {
		if err := sleepCtx(ctx, retryAfter); err != nil {
			return nil, err
		}
		body, err := h.once(ctx, newReq)
		retryAfter = 0
		var se *StatusError
		if errors.As(err, &se) {
			retryAfter = se.RetryAfter
		}
		return body, err
	})
}

func (h httpRetrier) once(ctx context.Context, newReq func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	req, err := newReq(ctx)
	if err != nil {
		return nil, permanentError{fmt.Errorf("create %s request: %w", h.provider, err)}
	}
	res, err := h.client.Do(req)
	if err != nil {
		err = fmt.Errorf("%s request failed: %w", h.provider, err)
		if !isTimeout(err) {
			return nil, permanentError{err}
		}
		return nil, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s body: %w", h.provider, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{
			Provider:   h.provider,
			StatusCode: res.StatusCode,
			Body:       strings.TrimSpace(string(b)),
			RetryAfter: parseRetryAfter(res.Header.Get("Retry-After")),
		}
	}
	return b, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
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
