package planner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryPlanner_RunsImmediatelyAndPeriodically(t *testing.T) {
	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	p := &InMemoryPlanner{}
	p.AddJob(ctx, 5*time.Millisecond, func(context.Context) { runs.Add(1) })

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)

	cancel()
	p.Wait()

	n := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, runs.Load())
}

func TestInMemoryPlanner_NonPositiveIntervalRunsOnce(t *testing.T) {
	var runs atomic.Int32

	p := &InMemoryPlanner{}
	p.AddJob(context.Background(), 0, func(context.Context) { runs.Add(1) })
	p.Wait()

	assert.Equal(t, int32(1), runs.Load())
}
