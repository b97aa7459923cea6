package driven

import "time"

// SearchObserver receives one event per completed search.
type SearchObserver interface {
	ObserveSearch(event SearchEvent)
}

// SearchEvent summarises a search for metrics.
type SearchEvent struct {
	// Outcome is "ok", "empty" or the error kind.
	Outcome string

	// KeywordHits and SemanticHits count returned results per phase.
	KeywordHits  int
	SemanticHits int

	// SkippedHits counts out-of-range positions dropped.
	SkippedHits int

	// BrandFallback is true when a brand filter found nothing and the
	// semantic phase ran on the original query.
	BrandFallback bool

	Duration time.Duration
}
