// Package hub tracks live WebSocket subscribers by (symbol, period) and
// exposes the derived active-symbol set the poller drives off of.
package hub

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/yitech/barstream/internal/model"
)

// Conn is the hub's view of a connection: any comparable handle the caller
// uses to identify one subscriber. wsapi supplies *wsapi.Client values.
type Conn any

type key struct {
	symbol string
	period model.Period
}

// Hub owns the (symbol, period) -> connection-set mapping and its derived
// active-symbol projection. Safe for concurrent use; iteration snapshots a
// copy of the relevant set before returning it, so broadcasts tolerate
// concurrent subscribe/unsubscribe/remove.
type Hub struct {
	mu     sync.RWMutex
	subs   map[key]map[Conn]struct{}
	logger zerolog.Logger

	maxActiveSymbols int
}

// New constructs an empty Hub. maxActiveSymbols <= 0 means unbounded.
func New(logger zerolog.Logger, maxActiveSymbols int) *Hub {
	return &Hub{
		subs:             make(map[key]map[Conn]struct{}),
		logger:           logger.With().Str("component", "hub").Logger(),
		maxActiveSymbols: maxActiveSymbols,
	}
}

// ErrTooManyActiveSymbols is returned by Subscribe when adding a new symbol
// would exceed the configured cap on distinct active symbols.
var ErrTooManyActiveSymbols = errTooManyActiveSymbols{}

type errTooManyActiveSymbols struct{}

func (errTooManyActiveSymbols) Error() string { return "too many active symbols" }

// Subscribe adds conn to the subscriber set for (symbol, period). It
// rejects a new symbol once that would push the active-symbol count past
// the configured maximum; resubscribing to an already-active symbol never
// fails on that account.
func (h *Hub) Subscribe(conn Conn, symbol string, period model.Period) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.maxActiveSymbols > 0 && !h.hasSymbolLocked(symbol) && h.activeSymbolCountLocked() >= h.maxActiveSymbols {
		return ErrTooManyActiveSymbols
	}

	k := key{symbol, period}
	set, ok := h.subs[k]
	if !ok {
		set = make(map[Conn]struct{})
		h.subs[k] = set
	}
	set[conn] = struct{}{}
	return nil
}

// Unsubscribe removes conn from the (symbol, period) subscriber set.
func (h *Hub) Unsubscribe(conn Conn, symbol string, period model.Period) {
	h.mu.Lock()
	defer h.mu.Unlock()
	k := key{symbol, period}
	set, ok := h.subs[k]
	if !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.subs, k)
	}
}

// Remove drops conn from every subscription, as on disconnect.
func (h *Hub) Remove(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for k, set := range h.subs {
		delete(set, conn)
		if len(set) == 0 {
			delete(h.subs, k)
		}
	}
}

// GetActiveSymbols returns a stable-ordered snapshot of every symbol with at
// least one subscriber across any period.
func (h *Hub) GetActiveSymbols() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[string]struct{})
	for k := range h.subs {
		seen[k.symbol] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// IterSubscribers returns a snapshot of the connections subscribed to
// (symbol, period) at call time.
func (h *Hub) IterSubscribers(symbol string, period model.Period) []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.subs[key{symbol, period}]
	out := make([]Conn, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// IterAll returns a snapshot of every distinct connection subscribed to
// anything, for broadcast of status events.
func (h *Hub) IterAll() []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[Conn]struct{})
	for _, set := range h.subs {
		for c := range set {
			seen[c] = struct{}{}
		}
	}
	out := make([]Conn, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	return out
}

func (h *Hub) hasSymbolLocked(symbol string) bool {
	for k := range h.subs {
		if k.symbol == symbol {
			return true
		}
	}
	return false
}

func (h *Hub) activeSymbolCountLocked() int {
	seen := make(map[string]struct{})
	for k := range h.subs {
		seen[k.symbol] = struct{}{}
	}
	return len(seen)
}
