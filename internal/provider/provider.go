// Package provider defines the contract the core consumes from a pull-only
// upstream market-data source, and shared request/response shapes.
package provider

import (
	"context"
	"time"

	"github.com/yitech/barstream/internal/model"
)

// Provider is the tagged-polymorphism capability set spec'd for the
// upstream feed. Every method is blocking from the caller's point of view;
// the bridge is responsible for offloading it onto a worker.
type Provider interface {
	SearchSymbols(ctx context.Context, query string, limit int) ([]model.SymbolInfo, error)
	GetDailyHistory(ctx context.Context, symbol string, from, to time.Time) ([]model.Bar, error)
	GetMinuteHistory(ctx context.Context, symbol string, from, to time.Time) ([]model.Bar, error)
	GetRealtimeSnapshotBatch(ctx context.Context, symbols []string) (map[string]model.Snapshot, error)
	GetTradingCalendar(ctx context.Context) (map[string]struct{}, error)
}
