// Package analyzer extracts compliance signals from fetched HTML and
// PDF content: cookie-consent banners, privacy-policy and CCPA links,
// contact channels and third-party trackers. When key signals are
// missing from the primary page it runs a bounded crawl over promising
// same-origin sub-pages.
package analyzer

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"compliance-scanner/compliance"
	"compliance-scanner/fetcher"
)

type Analyzer struct {
	rules         *Rules
	fetch         fetcher.Fetcher
	maxCandidates int
}

// New builds an analyzer. The fetcher is only used for the smart-crawl
// fallback; maxCandidates bounds that fan-out.
func New(rules *Rules, fetch fetcher.Fetcher, maxCandidates int) *Analyzer {
	if maxCandidates <= 0 {
		maxCandidates = 3
	}
	return &Analyzer{rules: rules, fetch: fetch, maxCandidates: maxCandidates}
}

// Rules exposes the active rule set for collaborators that share the
// keyword lists, such as the policy-text fetcher.
func (a *Analyzer) Rules() *Rules {
	return a.rules
}

// Analyze produces the five signal findings for a fetched page.
// Malformed markup yields best-effort partial findings; only an
// unreadable document aborts.
func (a *Analyzer) Analyze(ctx context.Context, page *fetcher.Page, target compliance.ScanTarget) (compliance.Findings, error) {
	switch page.Kind {
	case fetcher.KindPDF:
		return a.analyzePDF(page.Body)
	case fetcher.KindHTML:
		return a.analyzeHTML(ctx, page.Body, target)
	default:
		return compliance.Findings{}, fmt.Errorf("%w: unsupported content kind", compliance.ErrScan)
	}
}

func (a *Analyzer) analyzeHTML(ctx context.Context, body []byte, target compliance.ScanTarget) (compliance.Findings, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return compliance.Findings{}, fmt.Errorf("%w: parsing document: %v", compliance.ErrScan, err)
	}

	findings := compliance.Findings{
		CookieConsent: a.checkCookieConsent(doc),
		PrivacyPolicy: a.checkAnchors(doc, a.rules.privacyPattern, "privacy policy link"),
		CcpaNotice:    a.checkAnchors(doc, a.rules.ccpaPattern, "do-not-sell link"),
		ContactInfo:   a.checkContactInfo(doc),
		Trackers:      a.DetectTrackers(doc, target.Host),
	}

	if !findings.PrivacyPolicy.Found() || !findings.CcpaNotice.Found() {
		a.crawlForMissing(ctx, doc, target, &findings)
	}

	return findings, nil
}

// checkCookieConsent matches the combined cookie pattern against free
// text first, then against div/section id and class attributes, so the
// document is walked at most twice regardless of keyword count.
func (a *Analyzer) checkCookieConsent(doc *goquery.Document) compliance.Finding {
	if a.rules.cookiePattern.MatchString(doc.Text()) {
		return compliance.Finding{Status: compliance.StatusFound, Evidence: "page text"}
	}

	found := compliance.Finding{Status: compliance.StatusNotFound}
	doc.Find("div, section").EachWithBreak(func(i int, s *goquery.Selection) bool {
		id, _ := s.Attr("id")
		class, _ := s.Attr("class")
		if a.rules.cookiePattern.MatchString(id) || a.rules.cookiePattern.MatchString(class) {
			found = compliance.Finding{Status: compliance.StatusFound, Evidence: "banner element"}
			return false
		}
		return true
	})
	return found
}

// checkAnchors tests every anchor's text and href against the pattern,
// recording the first match as evidence.
func (a *Analyzer) checkAnchors(doc *goquery.Document, pattern *regexp.Regexp, what string) compliance.Finding {
	found := compliance.Finding{Status: compliance.StatusNotFound}
	doc.Find("a[href]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		href, _ := s.Attr("href")
		if pattern.MatchString(text) || pattern.MatchString(href) {
			evidence := text
			if evidence == "" {
				evidence = href
			}
			found = compliance.Finding{Status: compliance.StatusFound, Evidence: fmt.Sprintf("%s: %s", what, evidence)}
			return false
		}
		return true
	})
	return found
}

func (a *Analyzer) checkContactInfo(doc *goquery.Document) compliance.Finding {
	text := doc.Text()

	var channels []string
	if a.rules.emailPattern.MatchString(text) {
		channels = append(channels, "email")
	}
	if a.rules.phonePattern.MatchString(text) {
		channels = append(channels, "phone")
	}

	hasContactLink := false
	doc.Find("a[href]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if a.rules.contactPattern.MatchString(strings.TrimSpace(s.Text())) {
			hasContactLink = true
			return false
		}
		return true
	})
	if hasContactLink {
		channels = append(channels, "contact page")
	}

	if len(channels) == 0 {
		return compliance.Finding{Status: compliance.StatusNotFound}
	}
	return compliance.Finding{Status: compliance.StatusFound, Evidence: strings.Join(channels, ", ")}
}
