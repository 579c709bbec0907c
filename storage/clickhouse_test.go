package storage

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"iochunt/config"
	"iochunt/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Set CLICKHOUSE_ADDR to run these tests against a real ClickHouse instance
const (
	testClickHouseAddr     = "localhost:9000"
	testClickHouseDatabase = "iochunt_test"
	testClickHouseUser     = "default"
)

// skipIfNoClickHouse skips the test if ClickHouse is not available
func skipIfNoClickHouse(t *testing.T) {
	if os.Getenv("CLICKHOUSE_ADDR") == "" {
		t.Skip("Skipping ClickHouse integration test (set CLICKHOUSE_ADDR to enable)")
	}
}

func getTestClickHouseAddr() string {
	if addr := os.Getenv("CLICKHOUSE_ADDR"); addr != "" {
		return addr
	}
	return testClickHouseAddr
}

func testClickHouseConfig() *config.Config {
	cfg := &config.Config{}
	cfg.ClickHouse.Addr = getTestClickHouseAddr()
	cfg.ClickHouse.Database = testClickHouseDatabase
	cfg.ClickHouse.Username = testClickHouseUser
	cfg.ClickHouse.Password = os.Getenv("CLICKHOUSE_PASSWORD")
	cfg.ClickHouse.MaxPoolSize = 4
	return cfg
}

// setupTestClickHouse connects and creates the endpoint_logs table
func setupTestClickHouse(t *testing.T) *ClickHouse {
	skipIfNoClickHouse(t)

	ch, err := NewClickHouse(testClickHouseConfig(), zap.NewNop().Sugar())
	require.NoError(t, err, "Failed to create ClickHouse connection")
	require.NoError(t, ch.CreateTablesIfNotExist(context.Background()))

	t.Cleanup(func() {
		_ = ch.Conn.Exec(context.Background(), "DROP TABLE IF EXISTS endpoint_logs")
		if err := ch.Close(); err != nil {
			t.Logf("Warning: failed to close ClickHouse connection: %v", err)
		}
	})
	return ch
}

func TestValidateDatabaseName(t *testing.T) {
	tests := []struct {
		name    string
		dbName  string
		wantErr string
	}{
		{name: "simple", dbName: "iochunt"},
		{name: "underscore and digits", dbName: "iochunt_test123"},
		{name: "empty", dbName: "", wantErr: "empty"},
		{name: "too long", dbName: strings.Repeat("a", 65), wantErr: "too long"},
		{name: "dash", dbName: "ioc-hunt", wantErr: "invalid characters"},
		{name: "backtick injection", dbName: "x`; DROP DATABASE system; --", wantErr: "invalid characters"},
		{name: "space", dbName: "ioc hunt", wantErr: "invalid characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateDatabaseName(tt.dbName)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNewClickHouse_InvalidAddress(t *testing.T) {
	cfg := testClickHouseConfig()
	cfg.ClickHouse.Addr = "127.0.0.1:1"

	ch, err := NewClickHouse(cfg, zap.NewNop().Sugar())
	assert.Error(t, err)
	assert.Nil(t, ch)
}

func TestClickHouse_HealthCheckAndVersion(t *testing.T) {
	ch := setupTestClickHouse(t)
	ctx := context.Background()

	require.NoError(t, ch.HealthCheck(ctx))
	version, err := ch.GetVersion(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, version)

	// Idempotent
	assert.NoError(t, ch.CreateTablesIfNotExist(ctx))
}

func TestClickHouseLogStorage_FindByMessageSubstring(t *testing.T) {
	ch := setupTestClickHouse(t)
	logs := NewClickHouseLogStorage(ch, zap.NewNop().Sugar())
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, logs.AppendLogs(ctx, []*LogRecord{
		{OrgID: "org-1", EndpointID: "ep-1", LogSource: "sysmon", Message: "process start: Mimikatz.EXE", EventTime: base},
		{OrgID: "org-1", EndpointID: "ep-2", LogSource: "sysmon", Message: "loaded mimikatz module", EventTime: base.Add(time.Minute)},
		{OrgID: "org-1", EndpointID: "ep-3", LogSource: "sysmon", Message: "notepad.exe", EventTime: base},
		{OrgID: "org-2", EndpointID: "ep-9", LogSource: "sysmon", Message: "mimikatz", EventTime: base},
	}))

	hits, err := logs.FindByMessageSubstring(ctx, "org-1", "MIMIKATZ", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	// newest first
	assert.Equal(t, "ep-2", hits[0].EndpointID)
	assert.Equal(t, "ep-1", hits[1].EndpointID)
	assert.Equal(t, "sysmon", hits[1].Context["log_source"])
	assert.Equal(t, "process start: Mimikatz.EXE", hits[1].MatchedValue)

	hits, err = logs.FindByMessageSubstring(ctx, "org-1", "mimikatz", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	_, err = logs.FindByMessageSubstring(ctx, "org-1", "mimikatz", 0)
	assert.Error(t, err)
}

func TestClickHouseLogStorage_AppendLogs_Validation(t *testing.T) {
	ch := setupTestClickHouse(t)
	logs := NewClickHouseLogStorage(ch, zap.NewNop().Sugar())
	ctx := context.Background()

	assert.NoError(t, logs.AppendLogs(ctx, nil))

	err := logs.AppendLog(ctx, &LogRecord{OrgID: "org-1", Message: "no endpoint"})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr, fmt.Sprintf("got %v", err))
	assert.Equal(t, "endpoint_id", verr.Field)
}
