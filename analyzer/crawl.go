package analyzer

import (
	"bytes"
	"context"
	"log"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"compliance-scanner/compliance"
	"compliance-scanner/fetcher"
	"compliance-scanner/validate"
)

// crawlForMissing is the smart-crawl fallback: when the primary page
// lacks a privacy-policy or do-not-sell link, fetch a small number of
// promising same-origin pages (legal, terms, about and similar) and
// retry the missing checks there. Candidate hrefs are attacker
// influenceable, so each one goes back through the validator before it
// is fetched. Sub-fetch failures are swallowed: a dead candidate simply
// contributes no signal.
func (a *Analyzer) crawlForMissing(ctx context.Context, doc *goquery.Document, target compliance.ScanTarget, findings *compliance.Findings) {
	if a.fetch == nil {
		return
	}

	candidates := a.candidateLinks(doc, target)
	fetched := 0

	for _, candidate := range candidates {
		if fetched >= a.maxCandidates {
			break
		}
		if findings.PrivacyPolicy.Found() && findings.CcpaNotice.Found() {
			break
		}

		if err := validate.CheckURL(candidate); err != nil {
			log.Printf("smart crawl: skipping %s: %v", candidate, err)
			continue
		}
		fetched++

		page, err := a.fetch.Fetch(ctx, candidate)
		if err != nil || page.Kind != fetcher.KindHTML {
			continue
		}
		sub, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
		if err != nil {
			continue
		}

		if !findings.PrivacyPolicy.Found() {
			if f := a.checkAnchors(sub, a.rules.privacyPattern, "privacy policy link"); f.Found() {
				findings.PrivacyPolicy = f
			}
		}
		if !findings.CcpaNotice.Found() {
			if f := a.checkAnchors(sub, a.rules.ccpaPattern, "do-not-sell link"); f.Found() {
				findings.CcpaNotice = f
			}
		}
	}
}

// candidateLinks collects same-origin anchors whose href or text looks
// legal/footer-ish, resolved against the page URL and deduplicated in
// document order.
func (a *Analyzer) candidateLinks(doc *goquery.Document, target compliance.ScanTarget) []string {
	base, err := url.Parse(target.URL)
	if err != nil {
		return nil
	}

	var candidates []string
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		text := strings.TrimSpace(s.Text())
		if href == "" || href == "#" ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") ||
			strings.HasPrefix(href, "javascript:") {
			return
		}
		if !a.rules.crawlPattern.MatchString(href) && !a.rules.crawlPattern.MatchString(text) {
			return
		}

		parsed, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(parsed)
		resolved.Fragment = ""

		if !sameOrigin(resolved, base) {
			return
		}
		candidate := resolved.String()
		if candidate == target.URL || seen[candidate] {
			return
		}
		seen[candidate] = true
		candidates = append(candidates, candidate)
	})

	return candidates
}

// sameOrigin compares hosts case-insensitively, tolerating a www
// prefix on either side.
func sameOrigin(u, base *url.URL) bool {
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	checkHost := strings.ToLower(u.Hostname())
	baseHost := strings.ToLower(base.Hostname())

	if checkHost == baseHost {
		return true
	}
	if strings.TrimPrefix(checkHost, "www.") == baseHost {
		return true
	}
	if strings.TrimPrefix(baseHost, "www.") == checkHost {
		return true
	}
	return false
}
