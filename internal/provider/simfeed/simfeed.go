// Package simfeed is a no-network Provider implementation that
// deterministically synthesizes snapshots and daily bars for a configured
// symbol set. It exists so the gateway is runnable for local development
// and tests without any real upstream — the "tagged polymorphism for the
// provider" design note's second concrete tag alongside vendorfeed.
package simfeed

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/yitech/barstream/internal/model"
	"github.com/yitech/barstream/internal/provider"
)

// Provider synthesizes deterministic quote data for a fixed symbol universe.
type Provider struct {
	loc     *time.Location
	symbols []model.SymbolInfo
	start   time.Time // process start, used to derive a moving synthetic price
}

// New constructs a simulated provider serving the given symbol universe.
func New(loc *time.Location, symbols []model.SymbolInfo) *Provider {
	return &Provider{loc: loc, symbols: symbols, start: time.Now()}
}

func (p *Provider) SearchSymbols(_ context.Context, query string, limit int) ([]model.SymbolInfo, error) {
	if query == "" {
		return []model.SymbolInfo{}, nil
	}
	q := strings.ToLower(query)
	var out []model.SymbolInfo
	for _, s := range p.symbols {
		if strings.Contains(strings.ToLower(s.Symbol), q) || strings.Contains(strings.ToLower(s.Name), q) {
			out = append(out, s)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// GetDailyHistory synthesizes one daily bar per weekday in [from, to],
// a smooth sine-wave walk around a per-symbol base price so aggregation
// and caching have something non-trivial to exercise.
func (p *Provider) GetDailyHistory(_ context.Context, symbol string, from, to time.Time) ([]model.Bar, error) {
	base := basePrice(symbol)
	var bars []model.Bar
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		price := base + 2*math.Sin(float64(d.YearDay()))
		bucketStart := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, p.loc)
		bars = append(bars, model.Bar{
			Ts:       model.BucketStartMillis(bucketStart),
			Open:     price,
			High:     price + 0.5,
			Low:      price - 0.5,
			Close:    price + 0.1,
			Volume:   1_000_000,
			IsClosed: true,
		})
	}
	return bars, nil
}

// GetMinuteHistory synthesizes one bar per minute in [from, to].
func (p *Provider) GetMinuteHistory(_ context.Context, symbol string, from, to time.Time) ([]model.Bar, error) {
	base := basePrice(symbol)
	var bars []model.Bar
	for t := from; !t.After(to); t = t.Add(time.Minute) {
		price := base + math.Sin(float64(t.Unix())/600)
		bars = append(bars, model.Bar{
			Ts:       model.BucketStartMillis(t),
			Open:     price,
			High:     price + 0.05,
			Low:      price - 0.05,
			Close:    price,
			Volume:   1000,
			IsClosed: true,
		})
	}
	return bars, nil
}

// GetRealtimeSnapshotBatch synthesizes one live snapshot per requested
// symbol, with a monotonically increasing cumulative volume so the bar
// builder's delta folding has real deltas to compute.
func (p *Provider) GetRealtimeSnapshotBatch(_ context.Context, symbols []string) (map[string]model.Snapshot, error) {
	now := time.Now().In(p.loc)
	elapsed := time.Since(p.start).Seconds()
	out := make(map[string]model.Snapshot, len(symbols))
	for _, sym := range symbols {
		base := basePrice(sym)
		price := base + math.Sin(elapsed/30)
		out[sym] = model.Snapshot{
			Ts:             now,
			Last:           price,
			VolumeTotal:    1000 + elapsed*10,
			HasVolumeTotal: true,
			AmountTotal:    (1000 + elapsed*10) * price,
			HasAmountTotal: true,
		}
	}
	return out, nil
}

// GetTradingCalendar returns every weekday from one year before now to one
// year after now, standing in for a real exchange calendar.
func (p *Provider) GetTradingCalendar(_ context.Context) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	now := time.Now().In(p.loc)
	for d := now.AddDate(-1, 0, 0); d.Before(now.AddDate(1, 0, 0)); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			out[d.Format("2006-01-02")] = struct{}{}
		}
	}
	return out, nil
}

func basePrice(symbol string) float64 {
	var sum int
	for _, r := range symbol {
		sum += int(r)
	}
	return 10 + float64(sum%50)
}

// DefaultSymbols is a small bundled instrument directory standing in for
// the original gateway's cached stock_info_a_code_name directory, keyed
// off the .SH/.SZ/.BJ convention from spec.md §6.
func DefaultSymbols() []model.SymbolInfo {
	symbols := []model.SymbolInfo{
		{Symbol: "600000.SH", Name: "Pudong Development Bank", Exchange: "SSE", Currency: "CNY", Timezone: "Asia/Shanghai"},
		{Symbol: "600036.SH", Name: "China Merchants Bank", Exchange: "SSE", Currency: "CNY", Timezone: "Asia/Shanghai"},
		{Symbol: "601318.SH", Name: "Ping An Insurance", Exchange: "SSE", Currency: "CNY", Timezone: "Asia/Shanghai"},
		{Symbol: "000001.SZ", Name: "Ping An Bank", Exchange: "SZSE", Currency: "CNY", Timezone: "Asia/Shanghai"},
		{Symbol: "000858.SZ", Name: "Wuliangye Yibin", Exchange: "SZSE", Currency: "CNY", Timezone: "Asia/Shanghai"},
		{Symbol: "300750.SZ", Name: "CATL", Exchange: "SZSE", Currency: "CNY", Timezone: "Asia/Shanghai"},
		{Symbol: "832000.BJ", Name: "Beijing Stock Exchange Sample", Exchange: "BSE", Currency: "CNY", Timezone: "Asia/Shanghai"},
	}
	sort.Slice(symbols, func(i, j int) bool { return symbols[i].Symbol < symbols[j].Symbol })
	return symbols
}

var _ provider.Provider = (*Provider)(nil)
