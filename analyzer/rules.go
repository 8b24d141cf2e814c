package analyzer

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed signals.yaml
var defaultSignals []byte

// Rules holds the keyword and domain lists driving signal detection,
// with their patterns compiled once into combined case-insensitive
// alternations. Immutable after construction.
type Rules struct {
	CookieKeywords  []string `yaml:"cookie_keywords"`
	PrivacyKeywords []string `yaml:"privacy_keywords"`
	CcpaKeywords    []string `yaml:"ccpa_keywords"`
	CrawlKeywords   []string `yaml:"crawl_keywords"`
	PrivacyPaths    []string `yaml:"privacy_paths"`
	TrackingDomains []string `yaml:"tracking_domains"`

	cookiePattern  *regexp.Regexp
	privacyPattern *regexp.Regexp
	ccpaPattern    *regexp.Regexp
	crawlPattern   *regexp.Regexp
	emailPattern   *regexp.Regexp
	phonePattern   *regexp.Regexp
	contactPattern *regexp.Regexp
}

// DefaultRules parses the embedded rule set.
func DefaultRules() (*Rules, error) {
	return parseRules(defaultSignals)
}

// LoadRules reads a rule set from a YAML file. Empty path falls back to
// the embedded defaults.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading signal rules: %w", err)
	}
	return parseRules(data)
}

func parseRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing signal rules: %w", err)
	}
	if len(r.CookieKeywords) == 0 || len(r.PrivacyKeywords) == 0 ||
		len(r.CcpaKeywords) == 0 || len(r.CrawlKeywords) == 0 || len(r.TrackingDomains) == 0 {
		return nil, fmt.Errorf("signal rules incomplete: all keyword and domain lists are required")
	}

	r.cookiePattern = combinedPattern(r.CookieKeywords)
	r.privacyPattern = combinedPattern(r.PrivacyKeywords)
	r.ccpaPattern = combinedPattern(r.CcpaKeywords)
	r.crawlPattern = combinedPattern(r.CrawlKeywords)
	r.emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	r.phonePattern = regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b|\+?\d{1,3}[\s.-]\(?\d{1,4}\)?[\s.-]\d{1,4}[\s.-]?\d{1,9}`)
	r.contactPattern = regexp.MustCompile(`(?i)contact`)

	return &r, nil
}

// PrivacyPattern exposes the compiled privacy alternation for
// collaborators outside this package, such as policy-link discovery.
func (r *Rules) PrivacyPattern() *regexp.Regexp {
	return r.privacyPattern
}

// combinedPattern joins keywords into one alternation so each page area
// is scanned in a single pass instead of once per keyword.
func combinedPattern(keywords []string) *regexp.Regexp {
	escaped := make([]string, len(keywords))
	for i, k := range keywords {
		escaped[i] = regexp.QuoteMeta(k)
	}
	return regexp.MustCompile(`(?i)(` + strings.Join(escaped, "|") + `)`)
}
