// Package validate normalizes candidate scan URLs and enforces the SSRF
// blocklist. Every URL that reaches the fetcher, including links
// discovered while crawling, must pass through this package first.
package validate

import (
	"fmt"
	"net/netip"
	"net/url"
	"regexp"
	"strings"

	"compliance-scanner/compliance"
)

const maxHostLength = 253

// Hostname labels of [a-z0-9-], dot separated, alphabetic final label.
// IP literals are handled separately.
var domainPattern = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,}$`)

// Target validates and normalizes a raw URL into a ScanTarget. Input
// without a scheme is assumed https. Rejected input never proceeds past
// this function.
func Target(raw string) (compliance.ScanTarget, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return compliance.ScanTarget{}, fmt.Errorf("%w: empty input", compliance.ErrInvalidURL)
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return compliance.ScanTarget{}, fmt.Errorf("%w: %v", compliance.ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return compliance.ScanTarget{}, fmt.Errorf("%w: unsupported scheme %q", compliance.ErrInvalidURL, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return compliance.ScanTarget{}, fmt.Errorf("%w: missing host", compliance.ErrInvalidURL)
	}
	if len(host) > maxHostLength {
		return compliance.ScanTarget{}, fmt.Errorf("%w: host too long", compliance.ErrInvalidURL)
	}

	if err := CheckHost(host); err != nil {
		return compliance.ScanTarget{}, err
	}

	// Name hosts must look like a public domain. IP literals were
	// already cleared by the blocklist: public addresses are scannable.
	addr, ipErr := netip.ParseAddr(host)
	if ipErr != nil {
		if !domainPattern.MatchString(host) {
			return compliance.ScanTarget{}, fmt.Errorf("%w: malformed domain %q", compliance.ErrInvalidURL, host)
		}
	}

	// Normalize: lowercase host, keep any explicit port. Hostname()
	// strips the brackets from IPv6 literals; they must come back or the
	// rebuilt URL does not re-parse.
	hostPort := host
	if ipErr == nil && addr.Is6() {
		hostPort = "[" + host + "]"
	}
	if port := u.Port(); port != "" {
		u.Host = hostPort + ":" + port
	} else {
		u.Host = hostPort
	}

	return compliance.ScanTarget{URL: u.String(), Host: host}, nil
}

// CheckHost rejects hosts in loopback, private, link-local and other
// internal ranges. This is the hard security contract of the scanner:
// it applies to the primary target and to every URL discovered during
// crawling or policy-link resolution.
func CheckHost(host string) error {
	host = strings.ToLower(strings.Trim(host, "[]"))
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return fmt.Errorf("%w: host %q is not allowed", compliance.ErrInvalidURL, host)
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		// Not an IP literal; nothing more to check at this layer.
		return nil
	}

	// Covers 127/8 and ::1, RFC1918 and fc00::/7, 169.254/16 with the
	// cloud metadata address, fe80::/10, and 0.0.0.0/::.
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() || addr.IsUnspecified() {
		return fmt.Errorf("%w: address %q is not allowed", compliance.ErrInvalidURL, host)
	}

	return nil
}

// CheckURL parses an absolute URL and applies the scheme and host
// checks. Used for redirect hops and crawl candidates, where the URL is
// attacker-influenceable.
func CheckURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", compliance.ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", compliance.ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%w: missing host", compliance.ErrInvalidURL)
	}
	return CheckHost(u.Hostname())
}
