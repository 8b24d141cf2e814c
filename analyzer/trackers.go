package analyzer

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"
)

// DetectTrackers inspects script sources and inline script bodies
// against the known tracking-domain list. The page's own domain is
// excluded: a tracking vendor's site does not track itself in the sense
// this tool flags. The returned slice follows configured-list order so
// repeated scans of the same page are byte-identical.
func (a *Analyzer) DetectTrackers(doc *goquery.Document, pageHost string) []string {
	own := registrableDomain(pageHost)
	seen := make(map[string]bool)

	doc.Find("script[src]").Each(func(i int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		host := scriptHost(src)
		for _, domain := range a.rules.TrackingDomains {
			if domain == own {
				continue
			}
			if hostMatches(host, domain) || (host == "" && strings.Contains(src, domain)) {
				seen[domain] = true
			}
		}
	})

	// Inline bodies catch dynamically injected loader snippets.
	doc.Find("script:not([src])").Each(func(i int, s *goquery.Selection) {
		body := s.Text()
		if body == "" {
			return
		}
		for _, domain := range a.rules.TrackingDomains {
			if domain == own {
				continue
			}
			if strings.Contains(body, domain) {
				seen[domain] = true
			}
		}
	})

	var trackers []string
	for _, domain := range a.rules.TrackingDomains {
		if seen[domain] {
			trackers = append(trackers, domain)
		}
	}
	return trackers
}

// scriptHost extracts the lowercase host of a script src, tolerating
// protocol-relative URLs. Unparseable or relative srcs yield "".
func scriptHost(src string) string {
	if strings.HasPrefix(src, "//") {
		src = "https:" + src
	}
	u, err := url.Parse(src)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// hostMatches reports whether host is the tracking domain itself or a
// subdomain of it.
func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// registrableDomain reduces a host to its eTLD+1 so that
// www.google-analytics.com compares equal to google-analytics.com for
// the first-party exclusion.
func registrableDomain(host string) string {
	host = strings.ToLower(host)
	if registrable, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return registrable
	}
	return strings.TrimPrefix(host, "www.")
}
