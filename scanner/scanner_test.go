package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"compliance-scanner/ai"
	"compliance-scanner/analyzer"
	"compliance-scanner/cache"
	"compliance-scanner/compliance"
	"compliance-scanner/fetcher"
	"compliance-scanner/scoring"
)

const fixturePage = `<!DOCTYPE html>
<html><head>
<script src="https://www.google-analytics.com/analytics.js"></script>
</head><body>
<div id="cookie-consent">We use cookies.</div>
<a href="/privacy-policy">Privacy Policy</a>
<a href="/do-not-sell">Do Not Sell My Personal Information</a>
<p>Contact: hello@acme.example.com</p>
</body></html>`

type stubFetcher struct {
	fetches int
	body    string
	err     error
}

func (f *stubFetcher) Fetch(ctx context.Context, pageURL string) (*fetcher.Page, error) {
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	return &fetcher.Page{Body: []byte(f.body), Kind: fetcher.KindHTML, ContentType: "text/html"}, nil
}

func (f *stubFetcher) Head(ctx context.Context, pageURL string) error {
	return f.err
}

func newTestService(t *testing.T, fetch fetcher.Fetcher) *Service {
	t.Helper()
	rules, err := analyzer.DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules failed: %v", err)
	}
	return New(
		fetch,
		analyzer.New(rules, nil, 3),
		scoring.New(scoring.DefaultWeights()),
		cache.New(time.Hour, 16),
	)
}

func TestScan(t *testing.T) {
	fetch := &stubFetcher{body: fixturePage}
	svc := newTestService(t, fetch)

	result, err := svc.Scan(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}

	if result.Target.URL != "https://example.com" {
		t.Errorf("Unexpected target URL %q", result.Target.URL)
	}
	// 25 + 25 + 10 + 20 + 15 (one tracker) = 95.
	if result.Score != 95 {
		t.Errorf("Expected score 95, got %d", result.Score)
	}
	if result.Grade != "A" {
		t.Errorf("Expected grade A, got %s", result.Grade)
	}
	if result.Status != compliance.Compliant {
		t.Errorf("Expected Compliant, got %s", result.Status)
	}
	if result.ScannedAt.IsZero() {
		t.Error("Expected ScannedAt set")
	}
	if result.Breakdown.Total != result.Score {
		t.Errorf("Breakdown total %d disagrees with score %d", result.Breakdown.Total, result.Score)
	}
}

func TestScanServesFromCache(t *testing.T) {
	fetch := &stubFetcher{body: fixturePage}
	svc := newTestService(t, fetch)

	first, err := svc.Scan(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("First scan failed: %v", err)
	}
	second, err := svc.Scan(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("Second scan failed: %v", err)
	}

	if fetch.fetches != 1 {
		t.Errorf("Expected 1 fetch, got %d: second scan must be served from cache", fetch.fetches)
	}
	if first != second {
		t.Error("Expected the identical cached result")
	}
}

func TestScanRejectsInvalidURL(t *testing.T) {
	fetch := &stubFetcher{body: fixturePage}
	svc := newTestService(t, fetch)

	_, err := svc.Scan(context.Background(), "http://169.254.169.254/latest/meta-data/")
	if err == nil {
		t.Fatal("Expected blocked host rejected")
	}
	if !errors.Is(err, compliance.ErrInvalidURL) {
		t.Errorf("Expected ErrInvalidURL, got %v", err)
	}
	if fetch.fetches != 0 {
		t.Errorf("Expected no fetch for invalid input, got %d", fetch.fetches)
	}
}

func TestScanPropagatesFetchErrors(t *testing.T) {
	fetch := &stubFetcher{err: compliance.ErrNetwork}
	svc := newTestService(t, fetch)

	_, err := svc.Scan(context.Background(), "https://down.example.com")
	if !errors.Is(err, compliance.ErrNetwork) {
		t.Errorf("Expected ErrNetwork, got %v", err)
	}

	// Failures are not cached.
	if stats := svc.CacheStats(); stats.Items != 0 {
		t.Errorf("Expected empty cache after failure, got %d items", stats.Items)
	}
}

// pageFetcher serves canned pages by URL, for narrative-path tests.
type pageFetcher struct {
	pages map[string]string
}

func (f *pageFetcher) Fetch(ctx context.Context, pageURL string) (*fetcher.Page, error) {
	body, ok := f.pages[pageURL]
	if !ok {
		return nil, compliance.ErrNetwork
	}
	return &fetcher.Page{Body: []byte(body), Kind: fetcher.KindHTML, ContentType: "text/html"}, nil
}

func (f *pageFetcher) Head(ctx context.Context, pageURL string) error {
	if _, ok := f.pages[pageURL]; !ok {
		return compliance.ErrNetwork
	}
	return nil
}

type stubNarrator struct {
	narrative string
}

func (n *stubNarrator) Analyze(ctx context.Context, result *compliance.ScanResult, policyText string) (string, error) {
	return n.narrative, nil
}

type capturingStore struct {
	saved []*compliance.ScanResult
}

func (s *capturingStore) Save(ctx context.Context, result *compliance.ScanResult) error {
	s.saved = append(s.saved, result)
	return nil
}

func (s *capturingStore) History(ctx context.Context, url string, limit int) ([]*compliance.ScanResult, error) {
	return nil, nil
}

func (s *capturingStore) Recent(ctx context.Context, limit int) ([]*compliance.ScanResult, error) {
	return nil, nil
}

func (s *capturingStore) Close() error { return nil }

func TestScanPersistsNarrative(t *testing.T) {
	fetch := &pageFetcher{pages: map[string]string{
		"https://example.com": fixturePage,
		"https://example.com/privacy-policy": `<html><body>
			<h1>Privacy Policy</h1><p>We process personal data with care.</p>
		</body></html>`,
	}}
	svc := newTestService(t, fetch)

	history := &capturingStore{}
	svc.Store = history
	svc.Narrator = &stubNarrator{narrative: "Solid policy, missing opt-out details."}

	rules, err := analyzer.DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules failed: %v", err)
	}
	svc.Policies = ai.NewPolicyFetcher(fetch, rules, 8000)

	result, err := svc.Scan(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}

	if result.Narrative != "Solid policy, missing opt-out details." {
		t.Errorf("Expected narrative on the returned result, got %q", result.Narrative)
	}

	if len(history.saved) != 1 {
		t.Fatalf("Expected 1 saved result, got %d", len(history.saved))
	}
	if history.saved[0].Narrative != result.Narrative {
		t.Errorf("Expected the narrative persisted, saved %q", history.saved[0].Narrative)
	}

	// The cache serves the enriched result too.
	cached, err := svc.Scan(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("Cached scan failed: %v", err)
	}
	if cached.Narrative != result.Narrative {
		t.Errorf("Expected enriched result cached, got %q", cached.Narrative)
	}
}

func TestCacheStats(t *testing.T) {
	fetch := &stubFetcher{body: fixturePage}
	svc := newTestService(t, fetch)

	if _, err := svc.Scan(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	stats := svc.CacheStats()
	if stats.Items != 1 {
		t.Errorf("Expected 1 cached item, got %d", stats.Items)
	}
	if stats.TTL != time.Hour {
		t.Errorf("Expected TTL 1h, got %v", stats.TTL)
	}
}
