package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustClock(t *testing.T, sessions string, special map[string]string, closed map[string]struct{}) *Clock {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)
	c, err := New(loc, sessions, special, closed)
	require.NoError(t, err)
	return c
}

func TestIsTradingTime_WithinDefaultSession(t *testing.T) {
	c := mustClock(t, "09:30-11:30,13:00-15:00", nil, nil)
	loc := c.Location()

	morning := time.Date(2024, 3, 4, 10, 0, 0, 0, loc) // Monday
	assert.True(t, c.IsTradingTime(morning))

	lunchBreak := time.Date(2024, 3, 4, 12, 0, 0, 0, loc)
	assert.False(t, c.IsTradingTime(lunchBreak))

	weekend := time.Date(2024, 3, 9, 10, 0, 0, 0, loc) // Saturday
	assert.False(t, c.IsTradingTime(weekend))
}

func TestIsTradingDay_RespectsClosedDatesOverCalendar(t *testing.T) {
	c := mustClock(t, "09:30-15:00", nil, map[string]struct{}{"2024-03-04": {}})
	loc := c.Location()
	c.UpdateCalendar(map[string]struct{}{"2024-03-04": {}, "2024-03-05": {}})

	assert.False(t, c.IsTradingDay(time.Date(2024, 3, 4, 10, 0, 0, 0, loc)), "closed date overrides calendar")
	assert.True(t, c.IsTradingDay(time.Date(2024, 3, 5, 10, 0, 0, 0, loc)))
}

func TestIsTradingTime_SpecialSessionOverridesDefault(t *testing.T) {
	c := mustClock(t, "09:30-15:00", map[string]string{"2024-03-04": "09:30-11:00"}, nil)
	loc := c.Location()

	withinSpecial := time.Date(2024, 3, 4, 10, 0, 0, 0, loc)
	afterSpecialCutoff := time.Date(2024, 3, 4, 13, 0, 0, 0, loc)

	assert.True(t, c.IsTradingTime(withinSpecial))
	assert.False(t, c.IsTradingTime(afterSpecialCutoff), "default session should not apply once overridden")
}

func TestCalendarSize(t *testing.T) {
	c := mustClock(t, "09:30-15:00", nil, nil)
	assert.Equal(t, 0, c.CalendarSize())
	c.UpdateCalendar(map[string]struct{}{"2024-03-04": {}, "2024-03-05": {}})
	assert.Equal(t, 2, c.CalendarSize())
}

func TestMostRecentTradingDay(t *testing.T) {
	c := mustClock(t, "09:30-15:00", nil, nil)
	loc := c.Location()
	c.UpdateCalendar(map[string]struct{}{"2024-03-01": {}, "2024-03-04": {}})

	day, ok := c.MostRecentTradingDay(time.Date(2024, 3, 6, 0, 0, 0, 0, loc), 5)
	require.True(t, ok)
	assert.Equal(t, "2024-03-04", day.Format("2006-01-02"))

	_, ok = c.MostRecentTradingDay(time.Date(2024, 2, 20, 0, 0, 0, 0, loc), 2)
	assert.False(t, ok)
}

func TestParseClosedDates(t *testing.T) {
	dates := ParseClosedDates("2024-01-01, 2024-02-10,,2024-05-01")
	assert.Len(t, dates, 3)
	assert.Equal(t, []string{"2024-01-01", "2024-02-10", "2024-05-01"}, SortedDates(dates))
}
