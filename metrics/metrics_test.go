package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistration(t *testing.T) {
	assert.NotNil(t, HuntsFinished)
	assert.NotNil(t, HuntDuration)
	assert.NotNil(t, ActiveHunts)
	assert.NotNil(t, MatchesRecorded)
	assert.NotNil(t, SourceQueries)
	assert.NotNil(t, QuickSearches)
	assert.NotNil(t, MatchReviews)
	assert.NotNil(t, HuntEventPublishFailures)
}

func TestRecordEndpointCacheLookups(t *testing.T) {
	hits := testutil.ToFloat64(EndpointCacheLookupsTotal.WithLabelValues("hit"))
	misses := testutil.ToFloat64(EndpointCacheLookupsTotal.WithLabelValues("miss"))

	RecordEndpointCacheLookups(3, 1)
	RecordEndpointCacheLookups(0, 0)

	assert.Equal(t, hits+3, testutil.ToFloat64(EndpointCacheLookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, misses+1, testutil.ToFloat64(EndpointCacheLookupsTotal.WithLabelValues("miss")))
}

func TestUpdateEndpointCacheSize(t *testing.T) {
	UpdateEndpointCacheSize(42)
	assert.Equal(t, float64(42), testutil.ToFloat64(EndpointCacheSize))
}
