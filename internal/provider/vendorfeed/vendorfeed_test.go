package vendorfeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, Timeout: 2 * time.Second})
}

func TestSearchSymbols_FiltersByCodeOrName(t *testing.T) {
	p := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]symbolRow{
			{Symbol: "600000", Name: "Pudong Bank"},
			{Symbol: "000001", Name: "Ping An Bank"},
		})
	})

	items, err := p.SearchSymbols(context.Background(), "600000", 20)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "600000.SH", items[0].Symbol)
	assert.Equal(t, "SSE", items[0].Exchange)
}

func TestSearchSymbols_EmptyQueryReturnsEmpty(t *testing.T) {
	called := false
	p := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		_ = json.NewEncoder(w).Encode([]symbolRow{})
	})
	items, err := p.SearchSymbols(context.Background(), "", 20)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.False(t, called)
}

func TestGetDailyHistory_ParsesRows(t *testing.T) {
	p := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "600000", r.URL.Query().Get("symbol"))
		_ = json.NewEncoder(w).Encode([]dailyHistoryRow{
			{Date: "2024-03-04", Open: 10, High: 11, Low: 9.5, Close: 10.5, Volume: 1000, Amount: 10500},
		})
	})

	loc, _ := time.LoadLocation("Asia/Shanghai")
	from := time.Date(2024, 3, 4, 0, 0, 0, 0, loc)
	to := time.Date(2024, 3, 4, 0, 0, 0, 0, loc)
	bars, err := p.GetDailyHistory(context.Background(), "600000.SH", from, to)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 10.0, bars[0].Open)
	assert.True(t, bars[0].IsClosed)
}

func TestGetRealtimeSnapshotBatch_FiltersToRequestedSymbols(t *testing.T) {
	p := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]snapshotRow{
			{Symbol: "600000", Last: 10.5, VolumeTotal: 5000},
			{Symbol: "000001", Last: 12.0, VolumeTotal: 3000},
		})
	})

	snaps, err := p.GetRealtimeSnapshotBatch(context.Background(), []string{"600000.SH"})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	snap, ok := snaps["600000.SH"]
	require.True(t, ok)
	assert.Equal(t, 10.5, snap.Last)
	assert.True(t, snap.HasVolumeTotal)
}

func TestGetTradingCalendar_CachesAcrossCalls(t *testing.T) {
	calls := 0
	p := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(calendarResponse{Dates: []string{"2024-03-04", "2024-03-05"}})
	})

	cal1, err := p.GetTradingCalendar(context.Background())
	require.NoError(t, err)
	assert.Len(t, cal1, 2)

	cal2, err := p.GetTradingCalendar(context.Background())
	require.NoError(t, err)
	assert.Len(t, cal2, 2)
	assert.Equal(t, 1, calls)
}

func TestToInternalSymbol(t *testing.T) {
	assert.Equal(t, "600000.SH", toInternalSymbol("600000"))
	assert.Equal(t, "000001.SZ", toInternalSymbol("000001"))
	assert.Equal(t, "832000.BJ", toInternalSymbol("832000"))
	assert.Equal(t, "600000.SH", toInternalSymbol("600000.SH"))
}
