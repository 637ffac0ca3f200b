// Package poller drives the single concurrent loop that asks the provider
// for snapshots of active symbols, feeds the bar builder, and broadcasts
// resulting events to the hub.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/yitech/barstream/internal/bar"
	"github.com/yitech/barstream/internal/clock"
	"github.com/yitech/barstream/internal/hub"
	"github.com/yitech/barstream/internal/model"
	"github.com/yitech/barstream/internal/provider"
)

// Backoff implements base=3s, +2s per consecutive failure, capped at 10s,
// reset to 0 on success.
type Backoff struct {
	Base    time.Duration
	Max     time.Duration
	current time.Duration
}

// NewBackoff constructs the default policy (base 3s, max 10s).
func NewBackoff() *Backoff {
	return &Backoff{Base: 3 * time.Second, Max: 10 * time.Second}
}

// Next advances and returns the next backoff duration.
func (b *Backoff) Next() time.Duration {
	if b.current == 0 {
		b.current = b.Base
	} else {
		b.current += 2 * time.Second
		if b.current > b.Max {
			b.current = b.Max
		}
	}
	return b.current
}

// Reset clears the backoff back to its initial state.
func (b *Backoff) Reset() { b.current = 0 }

// BroadcastFunc delivers a bar event to its (symbol, period) subscribers.
type BroadcastFunc func(model.BarEvent)

// StatusFunc delivers a status event to every connection.
type StatusFunc func(message, code, level string)

// Config holds the poller's tunables, sourced from spec.md §6.
type Config struct {
	SnapshotPollInterval time.Duration
	IdleBackoff          time.Duration
}

// Poller is the single driver tying the clock, hub, provider and bar
// builder together. Start/Stop are not safe for concurrent reuse across
// multiple starts.
type Poller struct {
	provider provider.Provider
	builder  *bar.Builder
	hub      *hub.Hub
	clock    *clock.Clock
	cfg      Config
	logger   zerolog.Logger

	broadcastBar    BroadcastFunc
	broadcastStatus StatusFunc

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New constructs a Poller. broadcastBar/broadcastStatus are typically bound
// to wsapi's connection-send helpers; the poller itself only knows about
// the hub's connection-set abstraction for discovering active symbols.
func New(p provider.Provider, b *bar.Builder, h *hub.Hub, c *clock.Clock, cfg Config, logger zerolog.Logger, broadcastBar BroadcastFunc, broadcastStatus StatusFunc) *Poller {
	return &Poller{
		provider:        p,
		builder:         b,
		hub:             h,
		clock:           c,
		cfg:             cfg,
		logger:          logger.With().Str("component", "poller").Logger(),
		broadcastBar:    broadcastBar,
		broadcastStatus: broadcastStatus,
	}
}

// Start launches the poller loop on a new goroutine. A no-op if already running.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	go p.run(ctx)
}

// Stop signals the loop to end and awaits its completion.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

// Running reports whether the loop is currently active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	backoff := NewBackoff()
	p.refreshCalendar(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		now := p.clock.Now()
		if !p.clock.IsTradingTime(now) {
			if p.sleep(ctx, p.cfg.IdleBackoff) {
				return
			}
			continue
		}

		symbols := p.hub.GetActiveSymbols()
		if len(symbols) == 0 {
			if p.sleep(ctx, p.cfg.SnapshotPollInterval) {
				return
			}
			continue
		}

		snapshots, err := p.fetchSnapshots(ctx, symbols)
		if err != nil {
			p.logger.Error().Err(err).Msg("snapshot failed")
			p.broadcastStatus("snapshot failed", "snapshot_failed", "error")
			if p.sleep(ctx, backoff.Next()) {
				return
			}
			continue
		}

		backoff.Reset()
		events := p.builder.ApplySnapshots(snapshots)
		for _, ev := range events {
			p.broadcastBar(ev)
		}

		if p.sleep(ctx, p.cfg.SnapshotPollInterval) {
			return
		}
		if now.Hour() == 0 && now.Minute() < 5 {
			p.refreshCalendar(ctx)
		}
	}
}

// fetchSnapshots bounds a single snapshot round to four poll intervals, so
// a wedged upstream call can never block the loop forever (Open Question
// 2: the per-call deadline lives here rather than on the Bridge itself,
// since only the poller knows its own configured interval).
func (p *Poller) fetchSnapshots(ctx context.Context, symbols []string) (map[string]model.Snapshot, error) {
	deadline := p.cfg.SnapshotPollInterval * 4
	if deadline <= 0 {
		deadline = 12 * time.Second
	}
	callCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()
	return p.provider.GetRealtimeSnapshotBatch(callCtx, symbols)
}

func (p *Poller) refreshCalendar(ctx context.Context) {
	calendar, err := p.provider.GetTradingCalendar(ctx)
	if err != nil {
		p.logger.Warn().Err(err).Msg("trading calendar load failed")
		p.broadcastStatus("trading calendar load failed", "calendar_failed", "warning")
		return
	}
	if len(calendar) > 0 {
		p.clock.UpdateCalendar(calendar)
	}
}

// sleep waits for d or ctx cancellation, returning true if cancelled.
func (p *Poller) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return true
	case <-t.C:
		return false
	}
}
