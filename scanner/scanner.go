// Package scanner is the single-target scan pipeline: cache lookup,
// validation, fetch, analysis, scoring and cache store, with optional
// persistence and narrative-analysis collaborators layered on top of
// the finished result.
package scanner

import (
	"context"
	"log"
	"time"

	"compliance-scanner/ai"
	"compliance-scanner/analyzer"
	"compliance-scanner/cache"
	"compliance-scanner/compliance"
	"compliance-scanner/fetcher"
	"compliance-scanner/scoring"
	"compliance-scanner/store"
	"compliance-scanner/validate"
)

type Service struct {
	fetch    fetcher.Fetcher
	analyzer *analyzer.Analyzer
	engine   *scoring.Engine
	cache    *cache.ResultCache

	// Optional collaborators, assigned after construction. Both are
	// strictly additive: the core result is complete without them.
	Store    store.Store
	Narrator ai.Provider
	Policies *ai.PolicyFetcher
}

func New(fetch fetcher.Fetcher, an *analyzer.Analyzer, engine *scoring.Engine, resultCache *cache.ResultCache) *Service {
	return &Service{fetch: fetch, analyzer: an, engine: engine, cache: resultCache}
}

// Scan validates, fetches, analyzes and scores a single URL, serving
// from the result cache when a fresh entry exists.
func (s *Service) Scan(ctx context.Context, rawURL string) (*compliance.ScanResult, error) {
	target, err := validate.Target(rawURL)
	if err != nil {
		return nil, err
	}

	if result, ok := s.cache.Get(target.URL); ok {
		return result, nil
	}

	page, err := s.fetch.Fetch(ctx, target.URL)
	if err != nil {
		return nil, err
	}

	findings, err := s.analyzer.Analyze(ctx, page, target)
	if err != nil {
		return nil, err
	}

	breakdown, grade, status := s.engine.Evaluate(findings)

	result := &compliance.ScanResult{
		Target:    target,
		Findings:  findings,
		Breakdown: breakdown,
		Score:     breakdown.Total,
		Grade:     grade,
		Status:    status,
		ScannedAt: time.Now().UTC(),
	}

	s.cache.Set(target.URL, result)

	// Narrative is resolved after the core result is finalized and
	// cached; any failure here leaves the result untouched. The cached
	// pointer is shared with concurrent readers, so enrichment goes into
	// a copy that then replaces the cache entry.
	if s.Narrator != nil && s.Policies != nil && result.Findings.PrivacyPolicy.Found() {
		if text, err := s.Policies.Text(ctx, target); err != nil {
			log.Printf("policy text unavailable for %s: %v", target.URL, err)
		} else if narrative, err := s.Narrator.Analyze(ctx, result, text); err != nil {
			log.Printf("narrative analysis failed for %s: %v", target.URL, err)
		} else {
			enriched := *result
			enriched.Narrative = narrative
			result = &enriched
			s.cache.Set(target.URL, result)
		}
	}

	if s.Store != nil {
		if err := s.Store.Save(ctx, result); err != nil {
			log.Printf("history save failed for %s: %v", target.URL, err)
		}
	}

	return result, nil
}

// CacheStats exposes result-cache statistics for operational
// visibility.
func (s *Service) CacheStats() compliance.CacheStats {
	return s.cache.Stats()
}
