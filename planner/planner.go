package planner

import (
	"context"
	"sync"
	"time"
)

// InMemoryPlanner runs periodic jobs until their context is done.
type InMemoryPlanner struct {
	wg sync.WaitGroup
}

// AddJob runs action immediately and then every interval. A non-positive
// interval runs it once.
func (p *InMemoryPlanner) AddJob(ctx context.Context, interval time.Duration, action func(context.Context)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		action(ctx)

		if interval <= 0 {
			return
		}

		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				action(ctx)
			}
		}
	}()
}

// Wait blocks until every job has returned.
func (p *InMemoryPlanner) Wait() {
	p.wg.Wait()
}
