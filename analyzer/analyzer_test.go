package analyzer

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"compliance-scanner/compliance"
	"compliance-scanner/fetcher"
)

func testRules(t *testing.T) *Rules {
	t.Helper()
	rules, err := DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules failed: %v", err)
	}
	return rules
}

func testTarget() compliance.ScanTarget {
	return compliance.ScanTarget{URL: "https://example.com", Host: "example.com"}
}

func htmlPage(body string) *fetcher.Page {
	return &fetcher.Page{Body: []byte(body), Kind: fetcher.KindHTML, ContentType: "text/html"}
}

func parseDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(html)))
	if err != nil {
		t.Fatalf("Parsing fixture: %v", err)
	}
	return doc
}

const compliantPage = `<!DOCTYPE html>
<html><head><title>Acme Corp</title>
<script src="https://www.google-analytics.com/analytics.js"></script>
<script src="https://connect.facebook.net/en_US/fbevents.js"></script>
</head><body>
<div id="cookie-consent-banner">We use cookies to improve your experience. <button>Accept</button></div>
<p>Welcome to Acme Corp.</p>
<footer>
<a href="/privacy-policy">Privacy Policy</a>
<a href="/do-not-sell">Do Not Sell My Personal Information</a>
<a href="/contact">Contact Us</a>
<p>Reach us at support@acme.example.com or 555-123-4567.</p>
</footer>
</body></html>`

const barePage = `<!DOCTYPE html>
<html><head><title>Bare</title></head>
<body><p>Nothing to see here.</p></body></html>`

func TestAnalyzeCompliantPage(t *testing.T) {
	a := New(testRules(t), nil, 3)

	findings, err := a.Analyze(context.Background(), htmlPage(compliantPage), testTarget())
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	if !findings.CookieConsent.Found() {
		t.Error("Expected cookie consent found")
	}
	if !findings.PrivacyPolicy.Found() {
		t.Error("Expected privacy policy found")
	}
	if !findings.CcpaNotice.Found() {
		t.Error("Expected CCPA notice found")
	}
	if !findings.ContactInfo.Found() {
		t.Error("Expected contact info found")
	}
	if len(findings.Trackers) != 2 {
		t.Errorf("Expected 2 trackers, got %v", findings.Trackers)
	}
}

func TestAnalyzeBarePage(t *testing.T) {
	a := New(testRules(t), nil, 3)

	findings, err := a.Analyze(context.Background(), htmlPage(barePage), testTarget())
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	if findings.CookieConsent.Found() || findings.PrivacyPolicy.Found() ||
		findings.CcpaNotice.Found() || findings.ContactInfo.Found() {
		t.Errorf("Expected nothing found on a bare page, got %+v", findings)
	}
	if len(findings.Trackers) != 0 {
		t.Errorf("Expected no trackers, got %v", findings.Trackers)
	}
}

func TestCookieConsentFromBannerAttributes(t *testing.T) {
	// No consent wording in the visible text; only the element id gives
	// the banner away.
	a := New(testRules(t), nil, 3)
	doc := parseDoc(t, `<html><body><div id="cookie-banner">Hi there</div></body></html>`)

	f := a.checkCookieConsent(doc)
	if !f.Found() {
		t.Error("Expected cookie banner detected from element id")
	}
	if f.Evidence != "banner element" {
		t.Errorf("Expected banner element evidence, got %q", f.Evidence)
	}
}

func TestPrivacyAnchorByHref(t *testing.T) {
	a := New(testRules(t), nil, 3)
	doc := parseDoc(t, `<html><body><a href="/datenschutz">Impressum und mehr</a></body></html>`)

	if f := a.checkAnchors(doc, a.rules.privacyPattern, "privacy policy link"); !f.Found() {
		t.Error("Expected localized privacy href to match")
	}
}

func TestContactChannels(t *testing.T) {
	a := New(testRules(t), nil, 3)

	tests := []struct {
		name string
		html string
		want string
	}{
		{"email only", `<body><p>mail hello@example.com today</p></body>`, "email"},
		{"phone only", `<body><p>call 555-867-5309 today</p></body>`, "phone"},
		{"contact link only", `<body><a href="/reach-us">Contact</a></body>`, "contact page"},
		{"email and phone", `<body><p>hello@example.com or 555-867-5309</p></body>`, "email, phone"},
	}

	for _, tt := range tests {
		f := a.checkContactInfo(parseDoc(t, tt.html))
		if !f.Found() {
			t.Errorf("%s: expected contact info found", tt.name)
			continue
		}
		if f.Evidence != tt.want {
			t.Errorf("%s: evidence = %q, want %q", tt.name, f.Evidence, tt.want)
		}
	}
}

func TestDetectTrackersInlineScript(t *testing.T) {
	a := New(testRules(t), nil, 3)
	doc := parseDoc(t, `<html><head><script>
		(function(){var s=document.createElement('script');
		s.src='https://static.hotjar.com/c/hotjar.js';})();
	</script></head><body></body></html>`)

	trackers := a.DetectTrackers(doc, "example.com")
	if len(trackers) != 1 || trackers[0] != "hotjar.com" {
		t.Errorf("Expected [hotjar.com], got %v", trackers)
	}
}

func TestDetectTrackersExcludesFirstParty(t *testing.T) {
	a := New(testRules(t), nil, 3)
	doc := parseDoc(t, `<html><head>
		<script src="https://www.google-analytics.com/analytics.js"></script>
		<script src="https://static.hotjar.com/c.js"></script>
	</head><body></body></html>`)

	trackers := a.DetectTrackers(doc, "www.google-analytics.com")
	if len(trackers) != 1 || trackers[0] != "hotjar.com" {
		t.Errorf("Expected first-party domain excluded, got %v", trackers)
	}
}

func TestDetectTrackersDeterministicOrder(t *testing.T) {
	// Document order is reversed relative to the configured list; output
	// must follow the configured list.
	a := New(testRules(t), nil, 3)
	doc := parseDoc(t, `<html><head>
		<script src="https://cdn.segment.com/analytics.js"></script>
		<script src="https://static.doubleclick.net/ad.js"></script>
		<script src="https://www.googletagmanager.com/gtm.js"></script>
	</head><body></body></html>`)

	want := []string{"googletagmanager.com", "doubleclick.net", "segment.com"}
	got := a.DetectTrackers(doc, "example.com")
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected configured-list order %v, got %v", want, got)
		}
	}
}

func TestDetectTrackersDeduplicates(t *testing.T) {
	a := New(testRules(t), nil, 3)
	doc := parseDoc(t, `<html><head>
		<script src="https://www.google-analytics.com/a.js"></script>
		<script src="https://ssl.google-analytics.com/b.js"></script>
		<script>ga('create','UA-1','google-analytics.com');</script>
	</head><body></body></html>`)

	trackers := a.DetectTrackers(doc, "example.com")
	if len(trackers) != 1 {
		t.Errorf("Expected the tracker counted once, got %v", trackers)
	}
}

// crawlFetcher serves canned pages and records which URLs were fetched.
type crawlFetcher struct {
	pages   map[string]string
	fetched []string
}

func (f *crawlFetcher) Fetch(ctx context.Context, pageURL string) (*fetcher.Page, error) {
	f.fetched = append(f.fetched, pageURL)
	body, ok := f.pages[pageURL]
	if !ok {
		return nil, fmt.Errorf("not found: %s", pageURL)
	}
	return htmlPage(body), nil
}

func (f *crawlFetcher) Head(ctx context.Context, pageURL string) error {
	if _, ok := f.pages[pageURL]; !ok {
		return fmt.Errorf("not found: %s", pageURL)
	}
	return nil
}

func TestSmartCrawlFindsPolicyOnSubPage(t *testing.T) {
	fetch := &crawlFetcher{pages: map[string]string{
		"https://example.com/legal": `<html><body>
			<a href="/privacy-policy">Privacy Policy</a>
			<a href="/opt-out">Do Not Sell My Info</a>
		</body></html>`,
	}}
	a := New(testRules(t), fetch, 3)

	page := htmlPage(`<html><body>
		<a href="/legal">Legal</a>
		<a href="/shop">Shop</a>
	</body></html>`)

	findings, err := a.Analyze(context.Background(), page, testTarget())
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}

	if !findings.PrivacyPolicy.Found() {
		t.Error("Expected privacy policy found via smart crawl")
	}
	if !findings.CcpaNotice.Found() {
		t.Error("Expected CCPA notice found via smart crawl")
	}
	if len(fetch.fetched) != 1 || fetch.fetched[0] != "https://example.com/legal" {
		t.Errorf("Expected only the legal candidate fetched, got %v", fetch.fetched)
	}
}

func TestSmartCrawlSkipsCrossOriginLinks(t *testing.T) {
	fetch := &crawlFetcher{pages: map[string]string{}}
	a := New(testRules(t), fetch, 3)

	page := htmlPage(`<html><body>
		<a href="https://other.example.org/legal">Legal</a>
		<a href="mailto:legal@example.com">legal team</a>
	</body></html>`)

	if _, err := a.Analyze(context.Background(), page, testTarget()); err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if len(fetch.fetched) != 0 {
		t.Errorf("Expected no cross-origin fetches, got %v", fetch.fetched)
	}
}

func TestSmartCrawlRespectsCandidateLimit(t *testing.T) {
	fetch := &crawlFetcher{pages: map[string]string{}}
	a := New(testRules(t), fetch, 2)

	page := htmlPage(`<html><body>
		<a href="/legal">Legal</a>
		<a href="/terms">Terms</a>
		<a href="/about">About</a>
		<a href="/compliance">Compliance</a>
	</body></html>`)

	if _, err := a.Analyze(context.Background(), page, testTarget()); err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if len(fetch.fetched) != 2 {
		t.Errorf("Expected at most 2 candidate fetches, got %v", fetch.fetched)
	}
}

func TestSmartCrawlSkippedWhenSignalsPresent(t *testing.T) {
	fetch := &crawlFetcher{pages: map[string]string{}}
	a := New(testRules(t), fetch, 3)

	page := htmlPage(`<html><body>
		<a href="/privacy-policy">Privacy Policy</a>
		<a href="/do-not-sell">Do Not Sell My Personal Information</a>
		<a href="/legal">Legal</a>
	</body></html>`)

	if _, err := a.Analyze(context.Background(), page, testTarget()); err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if len(fetch.fetched) != 0 {
		t.Errorf("Expected no crawl when both links are on the primary page, got %v", fetch.fetched)
	}
}

func TestFindingsFromPolicyText(t *testing.T) {
	a := New(testRules(t), nil, 3)

	text := `Privacy Policy for Acme Corp.
We respect California privacy rights: you may opt out of the sale of your data.
Questions? Write to privacy@acme.example.com.`

	findings := a.findingsFromPolicyText(text)

	if findings.CookieConsent.Status != compliance.StatusNotApplicable {
		t.Errorf("Expected cookie consent N/A for documents, got %s", findings.CookieConsent.Status)
	}
	if !findings.PrivacyPolicy.Found() {
		t.Error("Expected the document itself to count as a privacy policy")
	}
	if !findings.CcpaNotice.Found() {
		t.Error("Expected opt-out language detected")
	}
	if !findings.ContactInfo.Found() {
		t.Error("Expected email detected in document text")
	}
	if len(findings.Trackers) != 0 {
		t.Errorf("Expected no trackers for documents, got %v", findings.Trackers)
	}
}

func TestPDFTextMalformed(t *testing.T) {
	if _, err := PDFText([]byte("not a pdf at all")); err == nil {
		t.Error("Expected error for malformed PDF input")
	}
}

func TestAnalyzeUnsupportedKind(t *testing.T) {
	a := New(testRules(t), nil, 3)
	page := &fetcher.Page{Body: []byte("x"), Kind: fetcher.KindUnsupported}

	if _, err := a.Analyze(context.Background(), page, testTarget()); err == nil {
		t.Error("Expected error for unsupported content kind")
	}
}

func TestLoadRulesFallsBackToDefaults(t *testing.T) {
	rules, err := LoadRules("")
	if err != nil {
		t.Fatalf("LoadRules(\"\") failed: %v", err)
	}
	if len(rules.TrackingDomains) == 0 {
		t.Error("Expected embedded tracking domains")
	}
	if rules.PrivacyPattern() == nil {
		t.Error("Expected compiled privacy pattern")
	}
}

func TestLoadRulesRejectsIncompleteFile(t *testing.T) {
	if _, err := parseRules([]byte("cookie_keywords:\n  - cookie\n")); err == nil {
		t.Error("Expected error for rules missing required lists")
	}
}
