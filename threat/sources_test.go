package threat

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"iochunt/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func newTestSources(t *testing.T, inv InventoryBackend, logs LogBackend) (*InventorySource, *LogSource, *SourceRegistry) {
	t.Helper()
	logger := zap.NewNop().Sugar()
	invSrc, err := NewInventorySource(inv, testSourceOptions(500), logger)
	require.NoError(t, err)
	logSrc, err := NewLogSource(logs, testSourceOptions(100), logger)
	require.NoError(t, err)
	return invSrc, logSrc, NewSourceRegistry(nil, invSrc, logSrc)
}

func TestDispatchTable_Default(t *testing.T) {
	table := DefaultDispatchTable()

	assert.Equal(t, []core.MatchSourceKind{core.MatchSourceInventory}, table.SourcesFor(core.IndicatorKindFileHash))
	assert.Equal(t, []core.MatchSourceKind{core.MatchSourceInventory, core.MatchSourceLog}, table.SourcesFor(core.IndicatorKindFilePath))
	assert.Equal(t, []core.MatchSourceKind{core.MatchSourceInventory, core.MatchSourceLog}, table.SourcesFor(core.IndicatorKindFileName))
	assert.Equal(t, []core.MatchSourceKind{core.MatchSourceLog}, table.SourcesFor(core.IndicatorKindProcessName))
	assert.Empty(t, table.SourcesFor("registry_key"))
}

func TestSourceRegistry_SkipsUnregisteredKinds(t *testing.T) {
	invSrc, err := NewInventorySource(newFakeInventoryBackend(), testSourceOptions(10), zap.NewNop().Sugar())
	require.NoError(t, err)
	registry := NewSourceRegistry(nil, invSrc)

	resolved := registry.Resolve(core.IndicatorKindFileName)
	require.Len(t, resolved, 1)
	assert.Equal(t, core.MatchSourceInventory, resolved[0].Kind())
	assert.Empty(t, registry.Resolve(core.IndicatorKindProcessName))
}

func TestNewSourceRunner_RejectsBadOptions(t *testing.T) {
	logger := zap.NewNop().Sugar()

	_, err := NewInventorySource(newFakeInventoryBackend(), SourceOptions{ResultCap: 0, Timeout: time.Second}, logger)
	assert.Error(t, err)
	_, err = NewLogSource(newFakeLogBackend(), SourceOptions{ResultCap: 10}, logger)
	assert.Error(t, err)
}

func TestInventorySource_DispatchesByKind(t *testing.T) {
	inv := newFakeInventoryBackend()
	invSrc, _, _ := newTestSources(t, inv, newFakeLogBackend())
	ctx := context.Background()

	hash := "E3B0C44298FC1C149AFBF4C8996FB92427AE41E4649B934CA495991B7852B855"
	for _, value := range []string{hash, `C:\Temp\evil.dll`, "evil.dll", "mimikatz"} {
		_, err := invSrc.Search(ctx, testOrg, mustIndicator(value))
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"hash:" + hash, `path:C:\Temp\evil.dll`, "name:evil.dll"}, inv.callLog(),
		"process names never reach the inventory backend")
}

func TestLogSource_SkipsHashes(t *testing.T) {
	logs := newFakeLogBackend()
	logs.hits["powershell.exe"] = []core.RawHit{logHit("ep-1", "Process powershell.exe started")}
	_, logSrc, _ := newTestSources(t, newFakeInventoryBackend(), logs)
	ctx := context.Background()

	res, err := logSrc.Search(ctx, testOrg, mustIndicator("d41d8cd98f00b204e9800998ecf8427e"))
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
	assert.Equal(t, 0, logs.callCount())

	res, err = logSrc.Search(ctx, testOrg, mustIndicator("powershell.exe"))
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, core.MatchSourceLog, res.Source)
	assert.Equal(t, 1, logs.callCount())
}

func TestSourceRunner_TruncatesAtCap(t *testing.T) {
	inv := newFakeInventoryBackend()
	hits := make([]core.RawHit, 0, 4)
	for i := 0; i < 4; i++ {
		hits = append(hits, inventoryHit(fmt.Sprintf("ep-%d", i), `C:\x\evil.dll`))
	}
	inv.hits["evil.dll"] = hits

	invSrc, err := NewInventorySource(inv, testSourceOptions(3), zap.NewNop().Sugar())
	require.NoError(t, err)

	res, err := invSrc.Search(context.Background(), testOrg, mustIndicator("evil.dll"))
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	require.Len(t, res.Hits, 3)
	assert.Equal(t, "ep-0", res.Hits[0].EndpointID)
	assert.Equal(t, []int{4}, inv.limits, "backend is asked for cap+1 rows")
}

func TestSourceRunner_ExactlyCapIsNotTruncated(t *testing.T) {
	inv := newFakeInventoryBackend()
	inv.hits["evil.dll"] = []core.RawHit{inventoryHit("ep-1", "evil.dll"), inventoryHit("ep-2", "evil.dll")}

	invSrc, err := NewInventorySource(inv, testSourceOptions(2), zap.NewNop().Sugar())
	require.NoError(t, err)

	res, err := invSrc.Search(context.Background(), testOrg, mustIndicator("evil.dll"))
	require.NoError(t, err)
	assert.False(t, res.Truncated)
	assert.Len(t, res.Hits, 2)
}

func TestSourceRunner_WrapsBackendErrors(t *testing.T) {
	inv := newFakeInventoryBackend()
	inv.err = errors.New("disk I/O error")
	invSrc, _, _ := newTestSources(t, inv, newFakeLogBackend())

	_, err := invSrc.Search(context.Background(), testOrg, mustIndicator("evil.dll"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrSourceUnavailable)

	var srcErr *core.SourceUnavailableError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, core.MatchSourceInventory, srcErr.Source)
	assert.ErrorContains(t, err, "disk I/O error")
}

func TestSourceRunner_Timeout(t *testing.T) {
	inv := newFakeInventoryBackend()
	inv.delay = time.Second
	opts := testSourceOptions(10)
	opts.Timeout = 20 * time.Millisecond
	invSrc, err := NewInventorySource(inv, opts, zap.NewNop().Sugar())
	require.NoError(t, err)

	_, err = invSrc.Search(context.Background(), testOrg, mustIndicator("evil.dll"))
	assert.ErrorIs(t, err, core.ErrSourceUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSourceRunner_BreakerFailsFast(t *testing.T) {
	inv := newFakeInventoryBackend()
	inv.err = errors.New("connection refused")
	opts := testSourceOptions(10)
	opts.Breaker = BreakerConfig{MaxFailures: 2, Timeout: time.Hour}
	invSrc, err := NewInventorySource(inv, opts, zap.NewNop().Sugar())
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := invSrc.Search(ctx, testOrg, mustIndicator("evil.dll"))
		require.Error(t, err)
	}
	assert.Equal(t, BreakerOpen, invSrc.Breaker())

	_, err = invSrc.Search(ctx, testOrg, mustIndicator("evil.dll"))
	assert.ErrorIs(t, err, core.ErrSourceUnavailable)
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.Len(t, inv.callLog(), 2, "open breaker skips the backend")
}

func TestSourceRunner_CallerCancellationDoesNotTripBreaker(t *testing.T) {
	inv := newFakeInventoryBackend()
	inv.delay = time.Second
	opts := testSourceOptions(10)
	opts.Breaker = BreakerConfig{MaxFailures: 1, Timeout: time.Hour}
	invSrc, err := NewInventorySource(inv, opts, zap.NewNop().Sugar())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = invSrc.Search(ctx, testOrg, mustIndicator("evil.dll"))
	require.Error(t, err)
	assert.Equal(t, BreakerClosed, invSrc.Breaker())
}

func TestSourceRunner_RecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	inv := newFakeInventoryBackend()
	inv.hits["evil.dll"] = []core.RawHit{inventoryHit("ep-1", "evil.dll")}
	invSrc, _, _ := newTestSources(t, inv, newFakeLogBackend())

	_, err := invSrc.Search(context.Background(), testOrg, mustIndicator("evil.dll"))
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "source.search", spans[0].Name())

	attrs := make(map[string]string)
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "inventory", attrs["source"])
	assert.Equal(t, "file_name", attrs["indicator_kind"])
	assert.Equal(t, "1", attrs["hits"])
}
