package goroutine

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecover_NoPanic(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)

	func() {
		defer Recover("quiet", zap.New(core).Sugar())
	}()

	assert.Zero(t, logs.Len())
}

func TestRecover_LogsPanicWithFields(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	logger := zap.New(core).Sugar()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer Recover("hunt", logger, "hunt_id", "job-1")
		panic(errors.New("boom"))
	}()
	wg.Wait()

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Goroutine panic recovered", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "hunt", fields["goroutine"])
	assert.Equal(t, "job-1", fields["hunt_id"])
	assert.Contains(t, fields["stack"], "goroutine")
}

func TestRecover_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		defer Recover("no-logger", nil)
		panic("unlogged")
	})
}
