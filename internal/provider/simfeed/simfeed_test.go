package simfeed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchSymbols_EmptyQuery(t *testing.T) {
	loc, _ := time.LoadLocation("Asia/Shanghai")
	p := New(loc, DefaultSymbols())
	items, err := p.SearchSymbols(context.Background(), "", 20)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSearchSymbols_MatchesSubstring(t *testing.T) {
	loc, _ := time.LoadLocation("Asia/Shanghai")
	p := New(loc, DefaultSymbols())
	items, err := p.SearchSymbols(context.Background(), "ping an", 20)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestGetRealtimeSnapshotBatch_ReturnsRequestedSymbols(t *testing.T) {
	loc, _ := time.LoadLocation("Asia/Shanghai")
	p := New(loc, DefaultSymbols())
	snaps, err := p.GetRealtimeSnapshotBatch(context.Background(), []string{"600000.SH", "000001.SZ"})
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
	assert.True(t, snaps["600000.SH"].HasVolumeTotal)
}

func TestGetDailyHistory_SkipsWeekends(t *testing.T) {
	loc, _ := time.LoadLocation("Asia/Shanghai")
	p := New(loc, DefaultSymbols())
	from := time.Date(2024, 3, 4, 0, 0, 0, 0, loc)
	to := time.Date(2024, 3, 10, 0, 0, 0, 0, loc) // Mon-Sun
	bars, err := p.GetDailyHistory(context.Background(), "600000.SH", from, to)
	require.NoError(t, err)
	assert.Len(t, bars, 5) // Mon-Fri only
}
