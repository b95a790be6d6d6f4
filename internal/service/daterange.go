package service

import (
	"strings"
	"time"

	"github.com/larrybwosi/multitenancy-sub007/internal/store"
)

// DateRange resolves a named range to a half-open [from, to) interval in
// the given location. Weeks start on Monday. all_time and the empty string
// return no bounds.
func DateRange(name string, now time.Time, loc *time.Location) (*time.Time, *time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	weekStart := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
	monthStart := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	yearStart := time.Date(local.Year(), time.January, 1, 0, 0, 0, 0, loc)

	var from, to time.Time
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "all_time":
		return nil, nil, nil
	case "today":
		from, to = today, today.AddDate(0, 0, 1)
	case "yesterday":
		from, to = today.AddDate(0, 0, -1), today
	case "this_week":
		from, to = weekStart, weekStart.AddDate(0, 0, 7)
	case "last_week":
		from, to = weekStart.AddDate(0, 0, -7), weekStart
	case "this_month":
		from, to = monthStart, monthStart.AddDate(0, 1, 0)
	case "last_month":
		from, to = monthStart.AddDate(0, -1, 0), monthStart
	case "this_year":
		from, to = yearStart, yearStart.AddDate(1, 0, 0)
	case "last_year":
		from, to = yearStart.AddDate(-1, 0, 0), yearStart
	default:
		return nil, nil, store.InvalidField("dateRange", "must be one of today, yesterday, this_week, last_week, this_month, last_month, this_year, last_year, all_time")
	}

	from, to = from.UTC(), to.UTC()
	return &from, &to, nil
}
