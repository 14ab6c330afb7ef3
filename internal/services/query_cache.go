// Package services hosts the small pieces of business logic layered
// over the DICOM association engine and its persistence.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/otcheredev/ris-dicom-connector/internal/cache"
	"github.com/rs/zerolog/log"
)

// CachedFindResult is the JSON-serializable projection of a
// dimse.FindResult stored by QueryCacheService; the Dataset field
// itself is opaque to this layer (it only caches the wire-level
// key/value elements an adapter chooses to expose).
type CachedFindResult struct {
	Elements map[string]string `json:"elements"`
	Status   uint16            `json:"status"`
}

// QueryCacheService memoizes C-FIND result sets, following the
// teacher's PACSService.GetInstance cache-then-fetch pattern, adapted
// from image-instance bytes to query result sets.
type QueryCacheService struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewQueryCacheService constructs a cache wrapper with ttl applied to
// every stored entry.
func NewQueryCacheService(c cache.Cache, ttl time.Duration) *QueryCacheService {
	return &QueryCacheService{cache: c, ttl: ttl}
}

// Lookup returns a cached result set for (remoteAETitle, queryModel,
// identifierDigest), or ok=false on a cache miss.
func (s *QueryCacheService) Lookup(ctx context.Context, remoteAETitle, queryModel, identifierDigest string) ([]CachedFindResult, bool) {
	key := cache.QueryCacheKey(remoteAETitle, queryModel, identifierDigest)
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	var results []CachedFindResult
	if err := json.Unmarshal(raw, &results); err != nil {
		log.Warn().Err(err).Str("cache_key", key).Msg("discarding corrupt cache entry")
		_ = s.cache.Delete(ctx, key)
		return nil, false
	}
	return results, true
}

// Store saves a completed C-FIND result set.
func (s *QueryCacheService) Store(ctx context.Context, remoteAETitle, queryModel, identifierDigest string, results []CachedFindResult) error {
	key := cache.QueryCacheKey(remoteAETitle, queryModel, identifierDigest)
	raw, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal query cache entry: %w", err)
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		return fmt.Errorf("failed to store query cache entry: %w", err)
	}
	return nil
}

// Invalidate drops every cached result for a remote AE. The remote-AE
// directory handlers do not call it.
func (s *QueryCacheService) Invalidate(ctx context.Context, remoteAETitle string) error {
	return s.cache.Clear(ctx, remoteAETitle+":*")
}
