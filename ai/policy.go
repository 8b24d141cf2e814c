package ai

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"compliance-scanner/analyzer"
	"compliance-scanner/compliance"
	"compliance-scanner/fetcher"
	"compliance-scanner/validate"
)

// PolicyFetcher locates and extracts a site's privacy-policy text for
// the narrative prompt. Discovery first scans homepage anchors for a
// privacy-looking link, then probes the common policy paths with HEAD
// requests. The discovered URL is attacker-influenceable and always
// re-validated before fetching.
type PolicyFetcher struct {
	fetch     fetcher.Fetcher
	rules     *analyzer.Rules
	maxLength int
}

func NewPolicyFetcher(fetch fetcher.Fetcher, rules *analyzer.Rules, maxLength int) *PolicyFetcher {
	if maxLength <= 0 {
		maxLength = 8000
	}
	return &PolicyFetcher{fetch: fetch, rules: rules, maxLength: maxLength}
}

// Text returns the policy text for a target, or an error when no policy
// page can be located or read. Callers treat any error as "no narrative
// available".
func (pf *PolicyFetcher) Text(ctx context.Context, target compliance.ScanTarget) (string, error) {
	policyURL := pf.discover(ctx, target)
	if policyURL == "" {
		return "", fmt.Errorf("no privacy policy page located for %s", target.Host)
	}

	if err := validate.CheckURL(policyURL); err != nil {
		return "", fmt.Errorf("unsafe policy url %s: %w", policyURL, err)
	}

	page, err := pf.fetch.Fetch(ctx, policyURL)
	if err != nil {
		return "", fmt.Errorf("fetching policy: %w", err)
	}

	var text string
	switch page.Kind {
	case fetcher.KindPDF:
		text, err = analyzer.PDFText(page.Body)
		if err != nil {
			return "", fmt.Errorf("extracting policy text: %w", err)
		}
	default:
		text, err = htmlToText(page.Body)
		if err != nil {
			return "", fmt.Errorf("extracting policy text: %w", err)
		}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("policy page at %s has no extractable text", policyURL)
	}
	if len(text) > pf.maxLength {
		text = text[:pf.maxLength] + "\n[content truncated]"
	}
	return text, nil
}

// discover returns the best policy URL candidate, or "".
func (pf *PolicyFetcher) discover(ctx context.Context, target compliance.ScanTarget) string {
	if fromAnchor := pf.anchorCandidate(ctx, target); fromAnchor != "" {
		return fromAnchor
	}

	// Fall back to the well-known paths, probing cheaply with HEAD.
	base, err := url.Parse(target.URL)
	if err != nil {
		return ""
	}
	for _, path := range pf.rules.PrivacyPaths {
		candidate := base.Scheme + "://" + base.Host + path
		if err := pf.fetch.Head(ctx, candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func (pf *PolicyFetcher) anchorCandidate(ctx context.Context, target compliance.ScanTarget) string {
	page, err := pf.fetch.Fetch(ctx, target.URL)
	if err != nil || page.Kind != fetcher.KindHTML {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return ""
	}
	base, err := url.Parse(target.URL)
	if err != nil {
		return ""
	}

	var href string
	// Anchor text is the stronger signal; fall back to href matching.
	doc.Find("a[href]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if pf.rules.PrivacyPattern().MatchString(strings.TrimSpace(s.Text())) {
			href, _ = s.Attr("href")
			return false
		}
		return true
	})
	if href == "" {
		doc.Find("a[href]").EachWithBreak(func(i int, s *goquery.Selection) bool {
			h, _ := s.Attr("href")
			if pf.rules.PrivacyPattern().MatchString(h) {
				href = h
				return false
			}
			return true
		})
	}
	if href == "" {
		return ""
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(parsed).String()
}

// htmlToText converts a policy page to markdown, dropping chrome that
// would pollute the prompt.
func htmlToText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, nav, header, footer").Remove()

	bodyHTML, err := doc.Find("body").Html()
	if err != nil || bodyHTML == "" {
		bodyHTML = string(body)
	}

	converter := md.NewConverter("", true, nil)
	return converter.ConvertString(bodyHTML)
}
