package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"NewsletterScanner/internal/infrastructure/metrics"
	"NewsletterScanner/internal/ports"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultMaxRedirects = 10
	defaultUserAgent    = "NewsletterScanner/1.0"
	maxDrainBytes       = 4 << 10
)

// ErrTooManyRedirects is returned when a chain exceeds the configured depth.
var ErrTooManyRedirects = errors.New("too many redirects")

// StatusError reports an HTTP status that ends resolution for one method.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// ResolutionError is a per-link failure. It never fails the surrounding job.
type ResolutionError struct {
	URL    string
	Method string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s (%s): %v", e.URL, e.Method, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Config tunes outbound redirect resolution.
type Config struct {
	Timeout           time.Duration
	MaxRedirects      int
	UserAgent         string
	RequestsPerSecond float64
	Burst             int
}

// HTTPResolver follows tracking links with HEAD, falling back to GET.
type HTTPResolver struct {
	client    *http.Client
	limiter   *rate.Limiter
	timeout   time.Duration
	userAgent string
	metrics   *metrics.Recorder
	logger    *slog.Logger
}

var _ ports.RedirectResolver = (*HTTPResolver)(nil)

// NewHTTPResolver wires an HTTP client; a nil client gets a default one. The
// client's redirect policy is replaced to enforce the configured depth.
func NewHTTPResolver(cfg Config, client *http.Client, recorder *metrics.Recorder, logger *slog.Logger) *HTTPResolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = defaultMaxRedirects
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	if client == nil {
		client = &http.Client{}
	} else {
		c := *client
		client = &c
	}
	maxRedirects := cfg.MaxRedirects
	client.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return ErrTooManyRedirects
		}
		return nil
	}

	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		if burst <= 0 {
			burst = 1
		}
	}

	return &HTTPResolver{
		client:    client,
		limiter:   rate.NewLimiter(limit, burst),
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
		metrics:   recorder,
		logger:    logger,
	}
}

// Resolve returns the final destination of rawURL. HEAD is tried first; any
// HEAD failure, including an error status, falls back to GET.
func (r *HTTPResolver) Resolve(ctx context.Context, rawURL string) (string, error) {
	final, err := r.follow(ctx, http.MethodHead, rawURL)
	if err == nil {
		return final, nil
	}
	r.debug("head failed, falling back to get", "url", rawURL, "error", err)

	final, err = r.follow(ctx, http.MethodGet, rawURL)
	if err != nil {
		return "", &ResolutionError{URL: rawURL, Method: http.MethodGet, Err: err}
	}
	return final, nil
}

func (r *HTTPResolver) follow(ctx context.Context, method, rawURL string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	final, err := r.do(reqCtx, method, rawURL)
	outcome := "resolved"
	if err != nil {
		outcome = "failed"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
	}
	r.metrics.Resolution(method, outcome, time.Since(start))
	return final, err
}

func (r *HTTPResolver) do(ctx context.Context, method, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s request: %w", method, err)
	}
	defer resp.Body.Close()

	if method == http.MethodGet {
		_, _ = io.CopyN(io.Discard, resp.Body, maxDrainBytes)
	}

	// HEAD error statuses trigger the GET fallback; GET only fails on 5xx.
	if (method == http.MethodHead && resp.StatusCode >= http.StatusBadRequest) ||
		resp.StatusCode >= http.StatusInternalServerError {
		return "", &StatusError{Code: resp.StatusCode}
	}

	return resp.Request.URL.String(), nil
}

func (r *HTTPResolver) debug(msg string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}
