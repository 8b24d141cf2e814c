// Package compliance holds the shared data model for website compliance
// scans: validated targets, per-category findings, score breakdowns and
// batch reports.
package compliance

import "time"

// FindingStatus is the detection outcome for one signal category.
type FindingStatus string

const (
	StatusFound         FindingStatus = "Found"
	StatusNotFound      FindingStatus = "Not Found"
	StatusNotApplicable FindingStatus = "N/A"
)

// Category names one of the five scored signal categories. The values
// double as score-breakdown keys and database column names.
type Category string

const (
	CategoryCookieConsent Category = "cookie_consent"
	CategoryPrivacyPolicy Category = "privacy_policy"
	CategoryCcpaNotice    Category = "ccpa_notice"
	CategoryContactInfo   Category = "contact_info"
	CategoryTrackers      Category = "trackers"
)

// Compliance statuses derived from the total score.
const (
	Compliant        = "Compliant"
	NeedsImprovement = "Needs Improvement"
	NonCompliant     = "Non-Compliant"
)

// ScanTarget is a validated, normalized scan URL. Only the validator
// constructs these; anything holding a ScanTarget can assume the host
// passed the SSRF blocklist.
type ScanTarget struct {
	URL  string `json:"url"`
	Host string `json:"host"`
}

// Finding is the detection result for one binary signal category.
type Finding struct {
	Status   FindingStatus `json:"status"`
	Evidence string        `json:"evidence,omitempty"`
}

// Found reports whether the signal was detected.
func (f Finding) Found() bool {
	return f.Status == StatusFound
}

// Findings aggregates all five signal categories for one page. Trackers
// holds deduplicated tracker domains in configured-list order so output
// is deterministic.
type Findings struct {
	CookieConsent Finding  `json:"cookie_consent"`
	PrivacyPolicy Finding  `json:"privacy_policy"`
	CcpaNotice    Finding  `json:"ccpa_notice"`
	ContactInfo   Finding  `json:"contact_info"`
	Trackers      []string `json:"trackers"`
}

// ScoreBreakdown maps each category to its awarded points. The awarded
// points sum to Total and never exceed the category's configured weight.
type ScoreBreakdown struct {
	Points map[Category]int `json:"points"`
	Total  int              `json:"total"`
}

// ScanResult is the complete outcome of one scan. It is built once by
// the scanner and never mutated afterwards; narrative enrichment
// produces a copy rather than touching a published result.
type ScanResult struct {
	Target    ScanTarget     `json:"target"`
	Findings  Findings       `json:"findings"`
	Breakdown ScoreBreakdown `json:"breakdown"`
	Score     int            `json:"score"`
	Grade     string         `json:"grade"`
	Status    string         `json:"status"`
	ScannedAt time.Time      `json:"scanned_at"`
	Narrative string         `json:"narrative,omitempty"`
}

// CacheStats is the operational view of the result cache.
type CacheStats struct {
	Items int           `json:"items"`
	TTL   time.Duration `json:"ttl"`
}

// BatchItem is the per-URL outcome inside a batch report. URL echoes the
// caller's input so results can be correlated regardless of completion
// order.
type BatchItem struct {
	URL    string      `json:"url"`
	Result *ScanResult `json:"result,omitempty"`
	Err    string      `json:"error,omitempty"`
}

// BatchJob is the final report of a batch run. Items preserves input
// order; the counters always satisfy Completed+Failed+Pending == len(Items).
type BatchJob struct {
	ID        string      `json:"id"`
	Items     []BatchItem `json:"items"`
	Completed int         `json:"completed"`
	Failed    int         `json:"failed"`
	Pending   int         `json:"pending"`
}

// Progress is an incremental batch status update.
type Progress struct {
	URL       string `json:"url"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Total     int    `json:"total"`
}
