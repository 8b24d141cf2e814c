// Package fetcher issues the outbound HTTP requests for scans: GET/HEAD
// with a hard timeout, retry with exponential backoff on transient
// failures, and content-type branching between HTML and PDF.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"compliance-scanner/compliance"
	"compliance-scanner/config"
	"compliance-scanner/validate"
)

// ContentKind classifies a response body for the analyzer.
type ContentKind int

const (
	KindHTML ContentKind = iota
	KindPDF
	KindUnsupported
)

// Page is one fetched document.
type Page struct {
	Body        []byte
	Kind        ContentKind
	ContentType string
	FinalURL    string
}

// Fetcher retrieves pages. Implementations must re-validate every
// redirect hop against the SSRF blocklist.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*Page, error)
	Head(ctx context.Context, pageURL string) error
}

// Client is the default net/http backed Fetcher. A shared rate limiter
// throttles all outbound requests so batch runs stay polite.
type Client struct {
	client      *http.Client
	userAgent   string
	maxRetries  int
	backoff     time.Duration
	maxBodySize int64
	limiter     *rate.Limiter
}

var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

func New(cfg config.ScannerConfig) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5.0
	}
	return &Client{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        cfg.MaxIdleConns,
				MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
				MaxConnsPerHost:     cfg.MaxConnsPerHost,
				IdleConnTimeout:     cfg.IdleConnTimeout,
				TLSHandshakeTimeout: cfg.TLSHandshakeTimeout,
				ForceAttemptHTTP2:   true,
			},
			CheckRedirect: checkRedirect,
		},
		userAgent:   cfg.UserAgent,
		maxRetries:  cfg.MaxRetries,
		backoff:     cfg.BackoffFactor,
		maxBodySize: cfg.MaxBodySize,
		limiter:     rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// NewWithBackend selects the colly-backed fetcher when enabled, the
// default client otherwise.
func NewWithBackend(cfg *config.Settings) Fetcher {
	if cfg.Colly.Enabled {
		return NewCollyClient(cfg)
	}
	return New(cfg.Scanner)
}

// checkRedirect re-validates the host of every redirect hop. Following a
// redirect into an internal range is the classic SSRF bypass of
// initial-URL-only validation.
func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return fmt.Errorf("stopped after 10 redirects")
	}
	return validate.CheckHost(req.URL.Hostname())
}

// Fetch performs a GET with retry on 429/5xx and transient transport
// errors. Only GET and HEAD are retried anywhere in this package; both
// are idempotent.
func (c *Client) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff * (1 << (attempt - 1))):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", compliance.ErrNetwork, ctx.Err())
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", compliance.ErrNetwork, err)
		}

		page, retry, err := c.doFetch(ctx, pageURL)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if !retry {
			return nil, err
		}
	}

	return nil, lastErr
}

func (c *Client) doFetch(ctx context.Context, pageURL string) (*Page, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", compliance.ErrNetwork, err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		// A redirect into a blocked range is a hard failure, not a
		// transient one.
		if errors.Is(err, compliance.ErrInvalidURL) {
			return nil, false, fmt.Errorf("%w: %v", compliance.ErrInvalidURL, err)
		}
		if ctx.Err() != nil {
			return nil, false, fmt.Errorf("%w: %v", compliance.ErrNetwork, err)
		}
		return nil, true, fmt.Errorf("%w: %v", compliance.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if retryableStatus[resp.StatusCode] {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, true, fmt.Errorf("%w: HTTP %d for %s", compliance.ErrNetwork, resp.StatusCode, pageURL)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("%w: HTTP %d for %s", compliance.ErrNetwork, resp.StatusCode, pageURL)
	}

	contentType := resp.Header.Get("Content-Type")
	kind := ClassifyContentType(contentType)
	if kind == KindUnsupported {
		return nil, false, fmt.Errorf("%w: unsupported content type %q", compliance.ErrNetwork, contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, true, fmt.Errorf("%w: reading body: %v", compliance.ErrNetwork, err)
	}

	finalURL := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Page{Body: body, Kind: kind, ContentType: contentType, FinalURL: finalURL}, false, nil
}

// Head probes a URL without downloading the body. Non-2xx responses are
// reported as errors.
func (c *Client) Head(ctx context.Context, pageURL string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", compliance.ErrNetwork, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, pageURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", compliance.ErrNetwork, err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", compliance.ErrNetwork, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d for %s", compliance.ErrNetwork, resp.StatusCode, pageURL)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
}

// ClassifyContentType maps a Content-Type header to a ContentKind.
func ClassifyContentType(contentType string) ContentKind {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "text/html"), strings.Contains(ct, "application/xhtml+xml"):
		return KindHTML
	case strings.Contains(ct, "application/pdf"), strings.Contains(ct, "application/x-pdf"):
		return KindPDF
	default:
		return KindUnsupported
	}
}
