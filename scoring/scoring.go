// Package scoring converts signal findings into a weighted 0-100 score,
// a letter grade and a compliance status. Everything here is a pure
// function of the findings and the configured weights.
package scoring

import (
	"compliance-scanner/compliance"
	"compliance-scanner/config"
)

// Weights is the point distribution across the five categories.
type Weights struct {
	CookieConsent int
	PrivacyPolicy int
	CcpaNotice    int
	ContactInfo   int
	Trackers      int
}

// DefaultWeights returns the standard 25/25/10/20/20 distribution.
func DefaultWeights() Weights {
	return Weights{
		CookieConsent: 25,
		PrivacyPolicy: 25,
		CcpaNotice:    10,
		ContactInfo:   20,
		Trackers:      20,
	}
}

// WeightsFromConfig maps the configured scoring weights.
func WeightsFromConfig(cfg config.ScoringConfig) Weights {
	return Weights{
		CookieConsent: cfg.CookieConsent,
		PrivacyPolicy: cfg.PrivacyPolicy,
		CcpaNotice:    cfg.CcpaNotice,
		ContactInfo:   cfg.ContactInfo,
		Trackers:      cfg.Trackers,
	}
}

// trackerTiers maps inclusive tracker-count upper bounds to the share
// of the tracker weight awarded. Coarse, explainable bands rather than
// a continuous penalty curve; counts above the last bound score zero.
var trackerTiers = []struct {
	maxCount   int
	multiplier float64
}{
	{0, 1.0},
	{3, 0.75},
	{5, 0.5},
	{10, 0.25},
}

// Grade thresholds, first match wins in descending order.
var gradeThresholds = []struct {
	grade string
	min   int
}{
	{"A", 90},
	{"B", 80},
	{"C", 70},
	{"D", 60},
}

type Engine struct {
	weights Weights
}

// New builds an engine. A weight set with negative entries or summing
// past 100 cannot keep category points adding up to a 0-100 total, so
// it falls back to the defaults, the same way the config layer treats
// unparseable values.
func New(weights Weights) *Engine {
	if !weights.valid() {
		weights = DefaultWeights()
	}
	return &Engine{weights: weights}
}

func (w Weights) valid() bool {
	if w.CookieConsent < 0 || w.PrivacyPolicy < 0 || w.CcpaNotice < 0 ||
		w.ContactInfo < 0 || w.Trackers < 0 {
		return false
	}
	return w.CookieConsent+w.PrivacyPolicy+w.CcpaNotice+w.ContactInfo+w.Trackers <= 100
}

// Evaluate computes the score breakdown, grade and status for a set of
// findings. Deterministic: same findings and weights, same output.
func (e *Engine) Evaluate(f compliance.Findings) (compliance.ScoreBreakdown, string, string) {
	breakdown := e.Score(f)
	return breakdown, Grade(breakdown.Total), Status(breakdown.Total)
}

// Score awards full weight for each found binary category and a tiered
// share of the tracker weight by tracker count. The total is exactly
// the sum of the per-category points; New guarantees it stays within
// [0, 100].
func (e *Engine) Score(f compliance.Findings) compliance.ScoreBreakdown {
	points := map[compliance.Category]int{
		compliance.CategoryCookieConsent: binaryPoints(f.CookieConsent, e.weights.CookieConsent),
		compliance.CategoryPrivacyPolicy: binaryPoints(f.PrivacyPolicy, e.weights.PrivacyPolicy),
		compliance.CategoryCcpaNotice:    binaryPoints(f.CcpaNotice, e.weights.CcpaNotice),
		compliance.CategoryContactInfo:   binaryPoints(f.ContactInfo, e.weights.ContactInfo),
		compliance.CategoryTrackers:      TrackerPoints(len(f.Trackers), e.weights.Trackers),
	}

	total := 0
	for _, p := range points {
		total += p
	}

	return compliance.ScoreBreakdown{Points: points, Total: total}
}

func binaryPoints(f compliance.Finding, weight int) int {
	if f.Found() {
		return weight
	}
	return 0
}

// TrackerPoints applies the tiered penalty curve. Tier boundaries are
// inclusive; multiplied points truncate toward zero.
func TrackerPoints(count, weight int) int {
	for _, tier := range trackerTiers {
		if count <= tier.maxCount {
			return int(float64(weight) * tier.multiplier)
		}
	}
	return 0
}

// Grade maps a score to a letter grade, A>=90 through D>=60, else F.
func Grade(score int) string {
	for _, t := range gradeThresholds {
		if score >= t.min {
			return t.grade
		}
	}
	return "F"
}

// Status maps a score to its compliance status. Grade and status derive
// from the same score, so they cannot drift apart.
func Status(score int) string {
	switch {
	case score >= 80:
		return compliance.Compliant
	case score >= 60:
		return compliance.NeedsImprovement
	default:
		return compliance.NonCompliant
	}
}
