package fetcher

import (
	"context"
	"fmt"

	"github.com/gocolly/colly/v2"

	"compliance-scanner/compliance"
	"compliance-scanner/config"
)

// CollyClient is the colly-backed alternative Fetcher. Colly brings its
// own per-domain rate limiting and connection handling, so the shared
// limiter of the default client is not used here.
type CollyClient struct {
	colly   config.CollyConfig
	scanner config.ScannerConfig
}

func NewCollyClient(cfg *config.Settings) *CollyClient {
	return &CollyClient{colly: cfg.Colly, scanner: cfg.Scanner}
}

// newCollector builds a fresh collector per request to avoid callback
// conflicts between concurrent fetches.
func (cc *CollyClient) newCollector() *colly.Collector {
	c := colly.NewCollector()
	c.UserAgent = cc.colly.UserAgent

	if cc.colly.Delay > 0 || cc.colly.Parallelism > 0 {
		c.Limit(&colly.LimitRule{
			DomainGlob:  cc.colly.DomainGlob,
			Parallelism: cc.colly.Parallelism,
			Delay:       cc.colly.Delay,
			RandomDelay: cc.colly.RandomDelay,
		})
	}

	c.SetRequestTimeout(cc.scanner.Timeout)
	c.SetRedirectHandler(checkRedirect)

	return c
}

func (cc *CollyClient) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", compliance.ErrNetwork, err)
	}

	c := cc.newCollector()

	var page *Page
	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		contentType := r.Headers.Get("Content-Type")
		kind := ClassifyContentType(contentType)
		if kind == KindUnsupported {
			fetchErr = fmt.Errorf("%w: unsupported content type %q", compliance.ErrNetwork, contentType)
			return
		}
		body := r.Body
		if int64(len(body)) > cc.scanner.MaxBodySize {
			body = body[:cc.scanner.MaxBodySize]
		}
		page = &Page{
			Body:        body,
			Kind:        kind,
			ContentType: contentType,
			FinalURL:    r.Request.URL.String(),
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("%w: fetching %s: %v", compliance.ErrNetwork, pageURL, err)
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("%w: visiting %s: %v", compliance.ErrNetwork, pageURL, err)
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}
	if page == nil {
		return nil, fmt.Errorf("%w: no response for %s", compliance.ErrNetwork, pageURL)
	}
	return page, nil
}

func (cc *CollyClient) Head(ctx context.Context, pageURL string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", compliance.ErrNetwork, err)
	}

	c := cc.newCollector()

	var status int
	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("%w: probing %s: %v", compliance.ErrNetwork, pageURL, err)
	})

	if err := c.Head(pageURL); err != nil {
		return fmt.Errorf("%w: probing %s: %v", compliance.ErrNetwork, pageURL, err)
	}
	c.Wait()

	if fetchErr != nil {
		return fetchErr
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("%w: HTTP %d for %s", compliance.ErrNetwork, status, pageURL)
	}
	return nil
}

var _ Fetcher = (*CollyClient)(nil)
var _ Fetcher = (*Client)(nil)
