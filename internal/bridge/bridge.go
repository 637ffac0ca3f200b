// Package bridge offloads blocking Provider calls onto a bounded worker
// pool so a cooperative core never blocks on upstream I/O. Grounded in the
// original gateway's anyio.to_thread.run_sync wrapper: every Provider
// method is dispatched to a goroutine and the caller yields on a channel
// until it completes.
package bridge

import (
	"context"
	"time"

	"github.com/yitech/barstream/internal/model"
	"github.com/yitech/barstream/internal/provider"
)

// Bridge wraps a Provider so every call runs on a worker goroutine bounded
// by a buffered-channel semaphore. History calls share a pool of
// concurrency slots; snapshot batches use a dedicated single slot so at
// most one is ever in flight, matching the poller's one-batch-per-iteration
// contract.
type Bridge struct {
	inner provider.Provider

	historySem  chan struct{}
	snapshotSem chan struct{}
}

// New wraps inner with a worker pool of the given history concurrency.
// concurrency <= 0 defaults to 4.
func New(inner provider.Provider, concurrency int) *Bridge {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Bridge{
		inner:       inner,
		historySem:  make(chan struct{}, concurrency),
		snapshotSem: make(chan struct{}, 1),
	}
}

type result[T any] struct {
	val T
	err error
}

// run dispatches fn on a goroutine gated by sem, returning its result once
// either fn completes or ctx is done. If ctx is cancelled first, the
// goroutine is abandoned to finish in the background; its result is
// discarded, matching the cancellation contract in the concurrency model.
func run[T any](ctx context.Context, sem chan struct{}, fn func() (T, error)) (T, error) {
	ch := make(chan result[T], 1)
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
	go func() {
		defer func() { <-sem }()
		val, err := fn()
		ch <- result[T]{val, err}
	}()

	select {
	case r := <-ch:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (b *Bridge) SearchSymbols(ctx context.Context, query string, limit int) ([]model.SymbolInfo, error) {
	return run(ctx, b.historySem, func() ([]model.SymbolInfo, error) {
		return b.inner.SearchSymbols(ctx, query, limit)
	})
}

func (b *Bridge) GetDailyHistory(ctx context.Context, symbol string, from, to time.Time) ([]model.Bar, error) {
	return run(ctx, b.historySem, func() ([]model.Bar, error) {
		return b.inner.GetDailyHistory(ctx, symbol, from, to)
	})
}

func (b *Bridge) GetMinuteHistory(ctx context.Context, symbol string, from, to time.Time) ([]model.Bar, error) {
	return run(ctx, b.historySem, func() ([]model.Bar, error) {
		return b.inner.GetMinuteHistory(ctx, symbol, from, to)
	})
}

func (b *Bridge) GetRealtimeSnapshotBatch(ctx context.Context, symbols []string) (map[string]model.Snapshot, error) {
	return run(ctx, b.snapshotSem, func() (map[string]model.Snapshot, error) {
		return b.inner.GetRealtimeSnapshotBatch(ctx, symbols)
	})
}

func (b *Bridge) GetTradingCalendar(ctx context.Context) (map[string]struct{}, error) {
	return run(ctx, b.historySem, func() (map[string]struct{}, error) {
		return b.inner.GetTradingCalendar(ctx)
	})
}

var _ provider.Provider = (*Bridge)(nil)
