package threat

import (
	"context"
	"time"

	"iochunt/core"
	"iochunt/metrics"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedEndpointDirectory fronts an endpoint directory with an expiring LRU.
// Unknown ids are not cached so newly enrolled endpoints show up on the next lookup.
type CachedEndpointDirectory struct {
	next  core.EndpointDirectory
	cache *expirable.LRU[string, *core.Endpoint]
}

// NewCachedEndpointDirectory wraps next with a cache of size entries living ttl
func NewCachedEndpointDirectory(next core.EndpointDirectory, size int, ttl time.Duration) *CachedEndpointDirectory {
	if size <= 0 {
		size = 10000
	}
	return &CachedEndpointDirectory{
		next:  next,
		cache: expirable.NewLRU[string, *core.Endpoint](size, nil, ttl),
	}
}

func endpointCacheKey(orgID, id string) string {
	return orgID + "\x00" + id
}

// GetEndpoints implements core.EndpointDirectory
func (d *CachedEndpointDirectory) GetEndpoints(ctx context.Context, orgID string, ids []string) (map[string]*core.Endpoint, error) {
	result := make(map[string]*core.Endpoint, len(ids))
	missing := make([]string, 0)
	for _, id := range ids {
		if ep, ok := d.cache.Get(endpointCacheKey(orgID, id)); ok {
			result[id] = ep
			continue
		}
		missing = append(missing, id)
	}
	metrics.RecordEndpointCacheLookups(len(result), len(missing))
	if len(missing) == 0 {
		return result, nil
	}

	fetched, err := d.next.GetEndpoints(ctx, orgID, missing)
	if err != nil {
		return nil, err
	}
	for id, ep := range fetched {
		d.cache.Add(endpointCacheKey(orgID, id), ep)
		result[id] = ep
	}
	metrics.UpdateEndpointCacheSize(d.cache.Len())
	return result, nil
}

// Len returns the number of cached endpoints
func (d *CachedEndpointDirectory) Len() int {
	return d.cache.Len()
}
