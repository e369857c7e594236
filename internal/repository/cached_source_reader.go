package repository

import (
	"context"
	"time"

	"IndiCache/internal/domain/models"
	domrepo "IndiCache/internal/domain/repository"
	"IndiCache/pkg/cache"
)

// CachedSourceReader memoizes series reads for a short window. A cohort
// pass reads each symbol once per indicator family; with several families
// enabled this avoids re-parsing or re-querying unchanged source data.
// Tasks treat the series as read-only, so sharing the slice is safe.
type CachedSourceReader struct {
	inner domrepo.SourceReader
	cache *cache.TTLCache
	ttl   time.Duration
}

// NewCachedSourceReader wraps inner with a bounded TTL cache.
func NewCachedSourceReader(inner domrepo.SourceReader, maxEntries int, ttl time.Duration) *CachedSourceReader {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedSourceReader{
		inner: inner,
		cache: cache.NewTTLCache(maxEntries),
		ttl:   ttl,
	}
}

// ReadSeries serves from the memo when live, reading through otherwise.
func (r *CachedSourceReader) ReadSeries(ctx context.Context, code string) (*models.SymbolSeries, error) {
	if v, ok := r.cache.Get(code); ok {
		if series, ok := v.(*models.SymbolSeries); ok {
			return series, nil
		}
	}
	series, err := r.inner.ReadSeries(ctx, code)
	if err != nil {
		return nil, err
	}
	r.cache.Set(code, series, r.ttl)
	return series, nil
}
