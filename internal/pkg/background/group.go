// Package background tracks fire-and-forget work so shutdown can drain it.
package background

import (
	"context"
	"sync"
)

type Group struct {
	wg sync.WaitGroup
}

// Go runs fn in a new goroutine tracked by the group.
func (g *Group) Go(fn func()) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		fn()
	}()
}

// Wait blocks until every tracked goroutine returns or ctx is done.
func (g *Group) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
