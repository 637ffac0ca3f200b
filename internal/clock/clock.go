// Package clock answers "is it trading time" from a set of daily sessions,
// per-date overrides, a closed-date set, and an optional authoritative
// trading-day calendar.
package clock

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	_ "time/tzdata"
)

// Session is a contiguous local time-of-day window, inclusive endpoints.
type Session struct {
	Start time.Duration // minutes-since-midnight, expressed as a Duration for comparison convenience
	End   time.Duration
}

// Clock answers trading-day/trading-time queries for one market.
type Clock struct {
	loc             *time.Location
	defaultSessions []Session
	specialSessions map[string][]Session // ISO date -> override sessions
	closedDates     map[string]struct{}

	mu       sync.RWMutex
	calendar map[string]struct{} // nil until loaded
}

// New builds a Clock. sessions is "HH:MM-HH:MM,..."; special is a map of ISO
// date to the same session-string grammar; closedDates is a set of ISO dates.
func New(loc *time.Location, sessions string, special map[string]string, closedDates map[string]struct{}) (*Clock, error) {
	defaultSessions, err := parseSessions(sessions)
	if err != nil {
		return nil, fmt.Errorf("clock: default sessions: %w", err)
	}
	specialSessions := make(map[string][]Session, len(special))
	for date, s := range special {
		parsed, err := parseSessions(s)
		if err != nil {
			return nil, fmt.Errorf("clock: special sessions for %s: %w", date, err)
		}
		specialSessions[date] = parsed
	}
	if closedDates == nil {
		closedDates = map[string]struct{}{}
	}
	return &Clock{
		loc:             loc,
		defaultSessions: defaultSessions,
		specialSessions: specialSessions,
		closedDates:     closedDates,
	}, nil
}

// Location returns the market timezone.
func (c *Clock) Location() *time.Location { return c.loc }

// Now returns the current instant in the market timezone.
func (c *Clock) Now() time.Time { return time.Now().In(c.loc) }

// IsTradingDay reports whether dt's local date is a trading day.
func (c *Clock) IsTradingDay(dt time.Time) bool {
	dt = dt.In(c.loc)
	date := isoDate(dt)
	if _, closed := c.closedDates[date]; closed {
		return false
	}
	c.mu.RLock()
	cal := c.calendar
	c.mu.RUnlock()
	if cal == nil {
		return dt.Weekday() != time.Saturday && dt.Weekday() != time.Sunday
	}
	_, ok := cal[date]
	return ok
}

// IsTradingTime reports whether dt falls within a trading session on a
// trading day. Special-session overrides replace the default list wholesale
// for that date when present.
func (c *Clock) IsTradingTime(dt time.Time) bool {
	if !c.IsTradingDay(dt) {
		return false
	}
	dt = dt.In(c.loc)
	sessions := c.defaultSessions
	if override, ok := c.specialSessions[isoDate(dt)]; ok {
		sessions = override
	}
	tod := timeOfDay(dt)
	for _, s := range sessions {
		if tod >= s.Start && tod <= s.End {
			return true
		}
	}
	return false
}

// UpdateCalendar installs an authoritative trading-day calendar atomically.
func (c *Clock) UpdateCalendar(dates map[string]struct{}) {
	c.mu.Lock()
	c.calendar = dates
	c.mu.Unlock()
}

// CalendarSize reports the number of dates in the loaded calendar, or 0 if
// none has been loaded. Exposed as a dedicated accessor so callers (the
// health endpoint in particular) never need to reach into clock internals.
func (c *Clock) CalendarSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.calendar)
}

// MostRecentTradingDay returns the latest trading day on or before date,
// per the loaded calendar. ok is false if no calendar is loaded or no
// trading day is found within the lookback window.
func (c *Clock) MostRecentTradingDay(date time.Time, lookback int) (time.Time, bool) {
	c.mu.RLock()
	cal := c.calendar
	c.mu.RUnlock()
	if cal == nil {
		return time.Time{}, false
	}
	d := date.In(c.loc)
	for i := 0; i <= lookback; i++ {
		cand := d.AddDate(0, 0, -i)
		if _, ok := cal[isoDate(cand)]; ok {
			return cand, true
		}
	}
	return time.Time{}, false
}

func isoDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func timeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
}

func parseSessions(value string) ([]Session, error) {
	var sessions []Session
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		bounds := strings.SplitN(part, "-", 2)
		if len(bounds) != 2 {
			return nil, fmt.Errorf("malformed session %q", part)
		}
		start, err := parseClock(bounds[0])
		if err != nil {
			return nil, err
		}
		end, err := parseClock(bounds[1])
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, Session{Start: start, End: end})
	}
	return sessions, nil
}

func parseClock(value string) (time.Duration, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(strings.TrimSpace(value), "%d:%d", &hour, &minute); err != nil {
		return 0, fmt.Errorf("malformed time %q: %w", value, err)
	}
	return time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute, nil
}

// ParseClosedDates splits a CSV of ISO dates into a set.
func ParseClosedDates(value string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out[item] = struct{}{}
		}
	}
	return out
}

// SortedDates returns the keys of a date set in ascending order, useful for
// deterministic logging/tests.
func SortedDates(dates map[string]struct{}) []string {
	out := make([]string, 0, len(dates))
	for d := range dates {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
