// Package bar incrementally folds periodic price/volume snapshots into
// per-(symbol, period) candles, emitting live updates and close events.
package bar

import (
	"strconv"
	"strings"
	"time"

	"github.com/yitech/barstream/internal/model"
)

type stateKey struct {
	symbol string
	period model.Period
}

// Builder owns the (symbol, period) -> SymbolState mapping exclusively.
// It is not safe for concurrent use; callers (the poller) must serialize
// calls to ApplySnapshots.
type Builder struct {
	loc     *time.Location
	periods []model.Period
	states  map[stateKey]*model.SymbolState
}

// New constructs a Builder folding snapshots in the given market timezone
// across the given periods. A nil/empty periods list uses model.DefaultPeriods.
func New(loc *time.Location, periods []model.Period) *Builder {
	if len(periods) == 0 {
		periods = model.DefaultPeriods
	}
	return &Builder{
		loc:     loc,
		periods: periods,
		states:  make(map[stateKey]*model.SymbolState),
	}
}

// ApplySnapshots folds every snapshot across every configured period and
// returns the resulting events grouped by symbol (in the map's iteration
// order, which is unspecified) and, within a symbol, in configured period
// order, with any close event for a (symbol, period) preceding its new live
// event.
func (b *Builder) ApplySnapshots(snapshots map[string]model.Snapshot) []model.BarEvent {
	var events []model.BarEvent
	for symbol, snap := range snapshots {
		for _, period := range b.periods {
			events = append(events, b.applyOne(symbol, period, snap)...)
		}
	}
	return events
}

func (b *Builder) applyOne(symbol string, period model.Period, snap model.Snapshot) []model.BarEvent {
	snapTs := snap.Ts.In(b.loc)
	tradeDate := snapTs.Format("2006-01-02")

	bucketStart, ok := bucketStart(snapTs, period)
	if !ok {
		return nil
	}

	key := stateKey{symbol, period}
	state, exists := b.states[key]
	if !exists {
		state = &model.SymbolState{}
		b.states[key] = state
	}

	var events []model.BarEvent

	switch {
	case state.LastTradeDate == "":
		state.LastTradeDate = tradeDate
	case state.LastTradeDate != tradeDate:
		if state.CurBar != nil {
			state.CurBar.IsClosed = true
			events = append(events, model.BarEvent{Symbol: symbol, Period: period, Bar: state.CurBar.ToBar(b.loc)})
		}
		state.CurBar = nil
		state.HasPrevVolume = false
		state.HasPrevAmount = false
		state.LastTradeDate = tradeDate
	}

	if state.CurBar == nil || !state.CurBar.BucketStart.Equal(bucketStart) {
		if state.CurBar != nil {
			state.CurBar.IsClosed = true
			events = append(events, model.BarEvent{Symbol: symbol, Period: period, Bar: state.CurBar.ToBar(b.loc)})
		}
		state.CurBar = &model.BarState{
			BucketStart: bucketStart,
			Open:        snap.Last,
			High:        snap.Last,
			Low:         snap.Last,
			Close:       snap.Last,
		}
	}

	cur := state.CurBar
	if snap.Last > cur.High {
		cur.High = snap.Last
	}
	if snap.Last < cur.Low {
		cur.Low = snap.Last
	}
	cur.Close = snap.Last

	applyTotals(cur, state, snap, !period.IsIntraday())

	events = append(events, model.BarEvent{Symbol: symbol, Period: period, Bar: cur.ToBar(b.loc)})
	return events
}

// applyTotals folds the snapshot's cumulative volume/amount totals into the
// current bucket's incremental figures. resetAdd selects the 1w/1M
// reset-continues-adding behavior over the intraday reset-replaces behavior.
func applyTotals(cur *model.BarState, state *model.SymbolState, snap model.Snapshot, resetAdd bool) {
	if snap.HasVolumeTotal {
		switch {
		case !state.HasPrevVolume:
			cur.Volume += snap.VolumeTotal
		case snap.VolumeTotal < state.PrevVolumeTotal:
			if resetAdd {
				cur.Volume += snap.VolumeTotal
			} else {
				cur.Volume = snap.VolumeTotal
			}
		default:
			delta := snap.VolumeTotal - state.PrevVolumeTotal
			if delta > 0 {
				cur.Volume += delta
			}
		}
		state.PrevVolumeTotal = snap.VolumeTotal
		state.HasPrevVolume = true
	}

	if snap.HasAmountTotal {
		switch {
		case !state.HasPrevAmount:
			cur.Amount += snap.AmountTotal
		case snap.AmountTotal < state.PrevAmountTotal:
			if resetAdd {
				cur.Amount += snap.AmountTotal
			} else {
				cur.Amount = snap.AmountTotal
			}
		default:
			delta := snap.AmountTotal - state.PrevAmountTotal
			if delta > 0 {
				cur.Amount += delta
			}
		}
		state.PrevAmountTotal = snap.AmountTotal
		state.HasPrevAmount = true
	}
}

// bucketStart computes the bucket-start instant for ts under period, in
// ts's own location. ok is false for an unrecognized period token.
func bucketStart(ts time.Time, period model.Period) (time.Time, bool) {
	s := string(period)
	loc := ts.Location()
	switch {
	case strings.HasSuffix(s, "m"):
		minutes, err := strconv.Atoi(strings.TrimSuffix(s, "m"))
		if err != nil || minutes <= 0 {
			return time.Time{}, false
		}
		totalMinutes := ts.Hour()*60 + ts.Minute()
		bucketMinutes := totalMinutes - (totalMinutes % minutes)
		return time.Date(ts.Year(), ts.Month(), ts.Day(), bucketMinutes/60, bucketMinutes%60, 0, 0, loc), true
	case s == "1d":
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, loc), true
	case s == "1w":
		// weekday: Monday=0 .. Sunday=6
		weekday := (int(ts.Weekday()) + 6) % 7
		monday := ts.AddDate(0, 0, -weekday)
		return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, loc), true
	case s == "1M":
		return time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, loc), true
	default:
		return time.Time{}, false
	}
}
