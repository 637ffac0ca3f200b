// Package history builds weekly/monthly rollups from daily bars and
// supplies the minute-history sparse-range fallback. The group-by-bucket-
// key-then-merge shape is adapted from the teacher's candle aggregator,
// retargeted from merging concurrent per-exchange candle streams to
// merging consecutive daily bars into coarser buckets.
package history

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/yitech/barstream/internal/clock"
	"github.com/yitech/barstream/internal/model"
	"github.com/yitech/barstream/internal/provider"
)

// Aggregator answers history requests against a Provider, applying
// weekly/monthly rollup and the minute-history fallback.
type Aggregator struct {
	provider provider.Provider
	clock    *clock.Clock
}

// New constructs an Aggregator over p, using c for timezone-aware bucketing
// and the minute-history fallback's trading-calendar lookup.
func New(p provider.Provider, c *clock.Clock) *Aggregator {
	return &Aggregator{provider: p, clock: c}
}

// IsDailyPeriod reports whether period is handled via the daily-history
// endpoint (passed through for 1d, aggregated for 1w/1M).
func IsDailyPeriod(period model.Period) bool {
	switch period {
	case model.Period1d, model.Period1w, model.Period1M:
		return true
	default:
		return false
	}
}

// IsMinutePeriod reports whether period is an intraday minute bucket.
func IsMinutePeriod(period model.Period) bool {
	s := string(period)
	return len(s) > 0 && s[len(s)-1] == 'm'
}

// GetDaily returns bars for a daily-family period: 1d passes the provider's
// daily bars straight through; 1w/1M aggregate them into coarser buckets.
func (a *Aggregator) GetDaily(ctx context.Context, symbol string, period model.Period, from, to time.Time) ([]model.Bar, error) {
	bars, err := a.provider.GetDailyHistory(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}
	switch period {
	case model.Period1w:
		return aggregate(bars, a.clock.Location(), weekBucket), nil
	case model.Period1M:
		return aggregate(bars, a.clock.Location(), monthBucket), nil
	default:
		return bars, nil
	}
}

// GetMinute returns bars for a minute period, falling back to the most
// recent trading day's 09:30-15:00 session when the provider returns
// nothing for the requested range (e.g. the range fell on a non-trading
// day or holiday).
func (a *Aggregator) GetMinute(ctx context.Context, symbol string, period model.Period, from, to time.Time) ([]model.Bar, error) {
	items, err := a.provider.GetMinuteHistory(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		return items, nil
	}
	return a.fallbackRecentMinuteHistory(ctx, symbol, period, to)
}

// fallbackRecentMinuteHistory re-requests 09:30-15:00 on the most recent
// trading day on or before target, including the midday-break gap
// verbatim, per the original gateway's behavior.
func (a *Aggregator) fallbackRecentMinuteHistory(ctx context.Context, symbol string, period model.Period, target time.Time) ([]model.Bar, error) {
	loc := a.clock.Location()
	day, ok := a.clock.MostRecentTradingDay(target.In(loc), 30)
	if !ok {
		return nil, nil
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 9, 30, 0, 0, loc)
	end := time.Date(day.Year(), day.Month(), day.Day(), 15, 0, 0, 0, loc)
	items, err := a.provider.GetMinuteHistory(ctx, symbol, start, end)
	if err != nil {
		return nil, nil
	}
	return items, nil
}

type bucketFunc func(t time.Time, loc *time.Location) time.Time

func weekBucket(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	weekday := (int(t.Weekday()) + 6) % 7
	monday := t.AddDate(0, 0, -weekday)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, loc)
}

func monthBucket(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}

// aggregate groups bars by bucketFn and merges each group: open = first by
// ts, close = last by ts, high = max, low = min, volume/amount = sum.
// Output is sorted by bucket start ascending.
func aggregate(bars []model.Bar, loc *time.Location, bucketFn bucketFunc) []model.Bar {
	type group struct {
		start time.Time
		bars  []model.Bar
	}
	groups := make(map[int64]*group)
	for _, b := range bars {
		start := bucketFn(time.UnixMilli(b.Ts), loc)
		key := start.UnixMilli()
		g, ok := groups[key]
		if !ok {
			g = &group{start: start}
			groups[key] = g
		}
		g.bars = append(g.bars, b)
	}

	keys := make([]int64, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]model.Bar, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		sort.Slice(g.bars, func(i, j int) bool { return g.bars[i].Ts < g.bars[j].Ts })
		out = append(out, merge(g.bars, g.start))
	}
	return out
}

func merge(bars []model.Bar, bucketStart time.Time) model.Bar {
	first, last := bars[0], bars[len(bars)-1]
	high, low := first.High, first.Low
	var volume, amount float64
	for _, b := range bars {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
		volume += b.Volume
		amount += b.Amount
	}
	return model.Bar{
		Ts:       model.BucketStartMillis(bucketStart),
		Open:     first.Open,
		High:     high,
		Low:      low,
		Close:    last.Close,
		Volume:   volume,
		Amount:   amount,
		IsClosed: true,
	}
}

// ParseDateOrDateTime parses a from/to query value per spec.md §6: an ISO
// date for daily-family periods, an ISO datetime, or a UTC-ms integer, for
// minute periods. loc supplies the timezone for a bare (no offset) value.
func ParseDateOrDateTime(value string, daily bool, loc *time.Location) (time.Time, error) {
	if daily {
		t, err := time.ParseInLocation("2006-01-02", value, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
		}
		return t, nil
	}
	if isAllDigits(value) {
		var ms int64
		if _, err := fmt.Sscanf(value, "%d", &ms); err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", value, err)
		}
		return time.UnixMilli(ms).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid datetime %q: %w", value, err)
	}
	return t, nil
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
