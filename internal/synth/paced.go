package synth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var statusCodeRe = regexp.MustCompile(`(?:status(?:\s+code)?[:=\s]+)(\d{3})`)

type failureClass int

const (
	failureNone failureClass = iota
	failureTimeout
	failureRateLimit
	failureServer
	failureClient
)

func (f failureClass) String() string {
	switch f {
	case failureTimeout:
		return "timeout"
	case failureRateLimit:
		return "rate_limit"
	case failureServer:
		return "server"
	case failureClient:
		return "client"
	default:
		return "none"
	}
}

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = time.Second
)

var (
	errEmptyResponse = errors.New("llm returned an empty response")
	// errPermanent marks failures another attempt cannot fix.
	errPermanent = errors.New("permanent llm failure")
)

type permanentError struct{ err error }

func (e permanentError) Error() string        { return e.err.Error() }
func (e permanentError) Unwrap() error        { return e.err }
func (e permanentError) Is(target error) bool { return target == errPermanent }

// Paced wraps a Completer with a shared request limiter and retries for
// transient transport failures and empty responses.
type Paced struct {
	next        Completer
	limiter     *rate.Limiter
	maxAttempts int
	retrier     retry.Retry[string]
	log         logrus.FieldLogger
}

type PacedConfig struct {
	RequestsPerMinute int
	Burst             int
	MaxAttempts       int
	// RetryDelay is the first backoff; it doubles on every retry.
	RetryDelay time.Duration
	Logger     logrus.FieldLogger
}

func NewPaced(next Completer, cfg PacedConfig) *Paced {
	p := &Paced{next: next, maxAttempts: cfg.MaxAttempts, log: cfg.Logger}
	if p.maxAttempts <= 0 {
		p.maxAttempts = defaultMaxAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if p.log == nil {
		p.log = logrus.StandardLogger()
	}
	p.log = p.log.WithField("component", "synth")
	if cfg.RequestsPerMinute > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), burst)
	}
	p.retrier = retry.New[string](retry.Config{
		MaxAttempts:        p.maxAttempts,
		InitialDelay:       cfg.RetryDelay,
		BackoffPolicy:      retry.BackoffExponential,
		Multiplier:         2.0,
		NonRetryableErrors: []error{errPermanent, context.Canceled},
		OnRetry: func(attempt int, err error) {
			p.log.WithFields(logrus.Fields{"model": next.ModelName(), "attempt": attempt}).WithError(err).Debug("llm_retry")
		},
	})
	return p
}

func (p *Paced) ModelName() string { return p.next.ModelName() }

func (p *Paced) Complete(ctx context.Context, prompt string) (string, error) {
	attempts := 0
	text, err := p.retrier.Do(ctx, func(ctx context.Context) (string, error) {
		attempts++
		return p.attempt(ctx, prompt, attempts)
	})
	if err == nil {
		return text, nil
	}
	if errors.Is(err, errPermanent) || ctx.Err() != nil {
		return "", err
	}
	return "", fmt.Errorf("llm failed after %d attempts: %w", attempts, err)
}

func (p *Paced) attempt(ctx context.Context, prompt string, attempt int) (string, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return "", permanentError{fmt.Errorf("llm rate limit wait: %w", err)}
		}
	}
	start := time.Now()
	fields := logrus.Fields{"model": p.next.ModelName(), "attempt": attempt}
	p.log.WithFields(fields).Debug("llm_attempt_start")
	text, err := p.next.Complete(ctx, prompt)
	fields["elapsed_ms"] = time.Since(start).Milliseconds()
	if err != nil {
		class := classifyTransportError(err)
		p.log.WithFields(fields).WithField("class", class).WithError(err).Warn("llm_attempt_transport_error")
		err = fmt.Errorf("llm transport failure: %w", err)
		if ctx.Err() != nil || class == failureClient {
			return "", permanentError{err}
		}
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		p.log.WithFields(fields).Warn("llm_attempt_empty")
		return "", errEmptyResponse
	}
	p.log.WithFields(fields).WithField("response_chars", len(text)).Debug("llm_attempt_success")
	return text, nil
}

func classifyTransportError(err error) failureClass {
	if err == nil {
		return failureNone
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return failureTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return failureTimeout
	}
	msg := strings.ToLower(err.Error())
	if m := statusCodeRe.FindStringSubmatch(msg); len(m) == 2 {
		switch {
		case m[1] == "429":
			return failureRateLimit
		case strings.HasPrefix(m[1], "5"):
			return failureServer
		case strings.HasPrefix(m[1], "4"):
			return failureClient
		}
	}
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "overloaded"):
		return failureRateLimit
	case strings.Contains(msg, "server error"):
		return failureServer
	default:
		return failureServer
	}
}
