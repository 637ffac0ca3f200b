package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalbar "github.com/yitech/barstream/internal/bar"
	"github.com/yitech/barstream/internal/clock"
	"github.com/yitech/barstream/internal/hub"
	"github.com/yitech/barstream/internal/model"
)

type loopFakeProvider struct {
	mu        sync.Mutex
	snapshots map[string]model.Snapshot
	fail      bool
	calls     int
}

func (f *loopFakeProvider) GetRealtimeSnapshotBatch(ctx context.Context, symbols []string) (map[string]model.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, assert.AnError
	}
	out := make(map[string]model.Snapshot, len(symbols))
	for _, s := range symbols {
		if snap, ok := f.snapshots[s]; ok {
			out[s] = snap
		}
	}
	return out, nil
}

func (f *loopFakeProvider) GetTradingCalendar(ctx context.Context) (map[string]struct{}, error) {
	return nil, nil
}
func (f *loopFakeProvider) SearchSymbols(ctx context.Context, q string, limit int) ([]model.SymbolInfo, error) {
	return nil, nil
}
func (f *loopFakeProvider) GetDailyHistory(ctx context.Context, symbol string, from, to time.Time) ([]model.Bar, error) {
	return nil, nil
}
func (f *loopFakeProvider) GetMinuteHistory(ctx context.Context, symbol string, from, to time.Time) ([]model.Bar, error) {
	return nil, nil
}

func TestPollerBroadcastsBarEvents(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)

	c, err := clock.New(loc, "00:00-23:59", nil, nil)
	require.NoError(t, err)
	c.UpdateCalendar(map[string]struct{}{c.Now().Format("2006-01-02"): {}})

	h := hub.New(zerolog.Nop(), 0)
	require.NoError(t, h.Subscribe("conn-1", "600000.SH", model.Period1m))

	fp := &loopFakeProvider{snapshots: map[string]model.Snapshot{
		"600000.SH": {Ts: c.Now(), Last: 10.0, VolumeTotal: 100, HasVolumeTotal: true},
	}}

	var mu sync.Mutex
	var events []model.BarEvent
	broadcastBar := func(ev model.BarEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	}
	broadcastStatus := func(message, code, level string) {}

	b := internalbar.New(loc, []model.Period{model.Period1m})
	p := New(fp, b, h, c, Config{SnapshotPollInterval: 10 * time.Millisecond, IdleBackoff: 10 * time.Millisecond}, zerolog.Nop(), broadcastBar, broadcastStatus)

	ctx := context.Background()
	p.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	p.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.NotEmpty(t, events)
	assert.False(t, p.Running())
}
