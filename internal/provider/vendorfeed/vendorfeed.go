// Package vendorfeed is a REST-backed Provider modeling the original
// gateway's single real upstream (an AKShare-backed A-share data service):
// one endpoint for daily history, one for minute history, one whole-market
// realtime snapshot endpoint filtered client-side, and a trading-calendar
// endpoint. The HTTP client shape — shared http.Client with a fixed
// timeout, context-scoped requests, pagination by advancing past the last
// bar's timestamp — follows the teacher's exchange adapters
// (adapter/binance, adapter/bybit, adapter/okx).
package vendorfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yitech/barstream/internal/cache"
	"github.com/yitech/barstream/internal/model"
	"github.com/yitech/barstream/internal/provider"
)

const maxPageSize = 1000

// Config configures the REST client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Provider is a REST client over the configured vendor's four endpoints,
// plus a small in-process cache for the slow-changing symbol directory
// and trading calendar (symbols_ttl_seconds / calendar_ttl_seconds in the
// original gateway, carried here as fixed 24h TTLs).
type Provider struct {
	baseURL    string
	httpClient *http.Client

	symbolsCache  cache.Cache
	calendarCache cache.Cache
}

// New constructs a vendorfeed Provider against cfg.BaseURL.
func New(cfg Config) *Provider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Provider{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:    &http.Client{Timeout: timeout},
		symbolsCache:  cache.NewMemory(),
		calendarCache: cache.NewMemory(),
	}
}

// dailyHistoryRow is one row of the daily-history endpoint's JSON array
// response. Unlike the teacher's positional Binance kline rows, each row is
// a JSON object with named fields.
type dailyHistoryRow struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
	Amount float64 `json:"amount"`
}

type minuteHistoryRow struct {
	Ts     string  `json:"ts"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
	Amount float64 `json:"amount"`
}

// snapshotRow mirrors the whole-market realtime snapshot endpoint: one
// request returns every listed instrument, and the caller filters to the
// requested symbol set in-process — the same "fetch all, filter after"
// shape as stock_zh_a_spot_em, just over HTTP instead of a pandas frame.
type snapshotRow struct {
	Symbol      string  `json:"symbol"`
	Last        float64 `json:"last"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	PrevClose   float64 `json:"prev_close"`
	VolumeTotal float64 `json:"volume_total"`
	AmountTotal float64 `json:"amount_total"`
}

type calendarResponse struct {
	Dates []string `json:"dates"`
}

type symbolRow struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
}

// SearchSymbols loads (and caches) the full symbol directory, then matches
// q as a case-insensitive substring of either the code or the display
// name — not a prefix match — returning at most limit results. An empty
// query returns an empty list rather than the whole directory.
func (p *Provider) SearchSymbols(ctx context.Context, q string, limit int) ([]model.SymbolInfo, error) {
	if q == "" {
		return []model.SymbolInfo{}, nil
	}
	symbols, err := p.loadSymbols(ctx)
	if err != nil {
		return nil, err
	}
	qLower := strings.ToLower(q)
	var out []model.SymbolInfo
	for _, s := range symbols {
		if strings.Contains(strings.ToLower(s.Symbol), qLower) || strings.Contains(strings.ToLower(s.Name), qLower) {
			out = append(out, s)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (p *Provider) loadSymbols(ctx context.Context) ([]model.SymbolInfo, error) {
	const key = "symbols"
	var cached []model.SymbolInfo
	if ok, _ := p.symbolsCache.Get(ctx, key, &cached); ok {
		return cached, nil
	}

	var rows []symbolRow
	if err := p.getJSON(ctx, "/symbols", nil, &rows); err != nil {
		return nil, err
	}
	items := make([]model.SymbolInfo, 0, len(rows))
	for _, r := range rows {
		items = append(items, model.SymbolInfo{
			Symbol:   toInternalSymbol(r.Symbol),
			Name:     r.Name,
			Exchange: exchangeFromSymbol(toInternalSymbol(r.Symbol)),
			Currency: "CNY",
			Timezone: "Asia/Shanghai",
		})
	}
	_ = p.symbolsCache.Set(ctx, key, items, 24*time.Hour)
	return items, nil
}

// GetDailyHistory paginates the daily-history endpoint, advancing the
// request window past the last returned bar's date whenever a full page
// comes back, the same "advance-past-last" pagination the teacher's
// Binance adapter uses for klines.
func (p *Provider) GetDailyHistory(ctx context.Context, symbol string, from, to time.Time) ([]model.Bar, error) {
	var out []model.Bar
	cursor := from
	for {
		var rows []dailyHistoryRow
		params := url.Values{
			"symbol": {code(symbol)},
			"start":  {cursor.Format("2006-01-02")},
			"end":    {to.Format("2006-01-02")},
			"limit":  {strconv.Itoa(maxPageSize)},
		}
		if err := p.getJSON(ctx, "/history/daily", params, &rows); err != nil {
			return nil, err
		}
		for _, r := range rows {
			t, err := time.ParseInLocation("2006-01-02", r.Date, shanghai())
			if err != nil {
				return nil, fmt.Errorf("vendorfeed: daily row date %q: %w", r.Date, err)
			}
			out = append(out, model.Bar{
				Ts:       model.BucketStartMillis(t),
				Open:     r.Open,
				High:     r.High,
				Low:      r.Low,
				Close:    r.Close,
				Volume:   r.Volume,
				Amount:   r.Amount,
				IsClosed: true,
			})
		}
		if len(rows) < maxPageSize {
			break
		}
		last := out[len(out)-1]
		cursor = time.UnixMilli(last.Ts).In(shanghai()).AddDate(0, 0, 1)
		if cursor.After(to) {
			break
		}
	}
	return out, nil
}

// GetMinuteHistory paginates the minute-history endpoint the same way.
func (p *Provider) GetMinuteHistory(ctx context.Context, symbol string, from, to time.Time) ([]model.Bar, error) {
	var out []model.Bar
	cursor := from
	for {
		var rows []minuteHistoryRow
		params := url.Values{
			"symbol": {code(symbol)},
			"start":  {cursor.UTC().Format(time.RFC3339)},
			"end":    {to.UTC().Format(time.RFC3339)},
			"limit":  {strconv.Itoa(maxPageSize)},
		}
		if err := p.getJSON(ctx, "/history/minute", params, &rows); err != nil {
			return nil, err
		}
		for _, r := range rows {
			t, err := time.Parse(time.RFC3339, r.Ts)
			if err != nil {
				return nil, fmt.Errorf("vendorfeed: minute row ts %q: %w", r.Ts, err)
			}
			out = append(out, model.Bar{
				Ts:       t.UnixMilli(),
				Open:     r.Open,
				High:     r.High,
				Low:      r.Low,
				Close:    r.Close,
				Volume:   r.Volume,
				Amount:   r.Amount,
				IsClosed: true,
			})
		}
		if len(rows) < maxPageSize {
			break
		}
		last := out[len(out)-1]
		cursor = time.UnixMilli(last.Ts).Add(time.Minute)
		if cursor.After(to) {
			break
		}
	}
	return out, nil
}

// GetRealtimeSnapshotBatch fetches the whole-market snapshot in a single
// request and filters to the requested symbols client-side — this vendor
// has no per-symbol batch endpoint, mirroring stock_zh_a_spot_em exactly.
func (p *Provider) GetRealtimeSnapshotBatch(ctx context.Context, symbols []string) (map[string]model.Snapshot, error) {
	if len(symbols) == 0 {
		return map[string]model.Snapshot{}, nil
	}
	var rows []snapshotRow
	if err := p.getJSON(ctx, "/snapshot/all", nil, &rows); err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		wanted[s] = struct{}{}
	}
	now := time.Now().In(shanghai())
	out := make(map[string]model.Snapshot, len(symbols))
	for _, r := range rows {
		sym := toInternalSymbol(r.Symbol)
		if _, ok := wanted[sym]; !ok {
			continue
		}
		out[sym] = model.Snapshot{
			Ts: now, Last: r.Last,
			Open: r.Open, HasOpen: true,
			High: r.High, HasHigh: true,
			Low: r.Low, HasLow: true,
			PrevClose: r.PrevClose, HasPrevClose: true,
			VolumeTotal: r.VolumeTotal, HasVolumeTotal: true,
			AmountTotal: r.AmountTotal, HasAmountTotal: true,
		}
	}
	return out, nil
}

// GetTradingCalendar loads (and caches) the authoritative trading-day set.
func (p *Provider) GetTradingCalendar(ctx context.Context) (map[string]struct{}, error) {
	const key = "calendar"
	var cachedDates []string
	if ok, _ := p.calendarCache.Get(ctx, key, &cachedDates); ok {
		return toSet(cachedDates), nil
	}

	var resp calendarResponse
	if err := p.getJSON(ctx, "/calendar", nil, &resp); err != nil {
		return nil, err
	}
	_ = p.calendarCache.Set(ctx, key, resp.Dates, 24*time.Hour)
	return toSet(resp.Dates), nil
}

func toSet(dates []string) map[string]struct{} {
	out := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		out[d] = struct{}{}
	}
	return out
}

func (p *Provider) getJSON(ctx context.Context, path string, params url.Values, dest any) error {
	u, err := url.Parse(p.baseURL + path)
	if err != nil {
		return fmt.Errorf("vendorfeed: parse url: %w", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("vendorfeed: build request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("vendorfeed: http get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vendorfeed: %s: unexpected status %s", path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("vendorfeed: %s: decode response: %w", path, err)
	}
	return nil
}

// code strips the .SH/.SZ/.BJ suffix, the inverse of toInternalSymbol.
func code(symbol string) string {
	if i := strings.IndexByte(symbol, '.'); i >= 0 {
		return symbol[:i]
	}
	return symbol
}

// toInternalSymbol maps a bare 6-digit code to the canonical symbol
// convention in spec.md §6.
func toInternalSymbol(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, ".") {
		return raw
	}
	for len(raw) < 6 {
		raw = "0" + raw
	}
	switch raw[0] {
	case '6', '9':
		return raw + ".SH"
	case '4', '8':
		return raw + ".BJ"
	default:
		return raw + ".SZ"
	}
}

func exchangeFromSymbol(symbol string) string {
	switch {
	case strings.HasSuffix(symbol, ".SH"):
		return "SSE"
	case strings.HasSuffix(symbol, ".SZ"):
		return "SZSE"
	case strings.HasSuffix(symbol, ".BJ"):
		return "BSE"
	default:
		return ""
	}
}

func shanghai() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.UTC
	}
	return loc
}

var _ provider.Provider = (*Provider)(nil)
