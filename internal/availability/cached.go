// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package availability

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ManuGH/namewhisk/internal/cache"
	"github.com/ManuGH/namewhisk/internal/metrics"
)

// DefaultCacheTTL bounds how stale an availability answer may be.
const DefaultCacheTTL = 10 * time.Minute

// CachedChecker remembers successful answers. Errors are never cached.
type CachedChecker struct {
	next  Checker
	cache cache.Cache
	ttl   time.Duration
}

func NewCachedChecker(next Checker, c cache.Cache, ttl time.Duration) *CachedChecker {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedChecker{next: next, cache: c, ttl: ttl}
}

func cacheKey(name, tld string) string {
	if fqdn, err := FQDN(name, tld); err == nil {
		return "avail:" + fqdn
	}
	return "avail:" + name + "." + tld
}

func (c *CachedChecker) Check(ctx context.Context, name, tld string) (Result, error) {
	key := cacheKey(name, tld)
	if raw, ok := c.cache.Get(ctx, key); ok {
		var available bool
		if err := json.Unmarshal(raw, &available); err == nil {
			metrics.IncAvailabilityCache(true)
			return Result{Name: name, TLD: tld, Available: available}, nil
		}
		c.cache.Delete(ctx, key)
	}
	metrics.IncAvailabilityCache(false)

	r, err := c.next.Check(ctx, name, tld)
	if err != nil {
		return Result{}, err
	}
	if raw, err := json.Marshal(r.Available); err == nil {
		c.cache.Set(ctx, key, raw, c.ttl)
	}
	return r, nil
}

var _ Checker = (*CachedChecker)(nil)
