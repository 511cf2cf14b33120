// Package week computes the Sunday-anchored calendar windows used by the
// editorial selection pipeline.
package week

import "time"

// SearchDateLayout is the date format expected by the literature search API.
const SearchDateLayout = "2006/01/02"

// Range describes one selection window. End is always a Sunday at midnight
// UTC and Start is exactly six days earlier.
type Range struct {
	Start      time.Time
	End        time.Time
	WeekNumber int
	Year       int
}

// StartDate returns the window start formatted for the search API.
func (r Range) StartDate() string {
	return r.Start.Format(SearchDateLayout)
}

// EndDate returns the window end formatted for the search API.
func (r Range) EndDate() string {
	return r.End.Format(SearchDateLayout)
}

// For returns the window ending on the most recent Sunday relative to now,
// shifted back by weeksAgo additional weeks. When now is itself a Sunday,
// that Sunday anchors the weeksAgo=0 window.
//
// WeekNumber is a month-relative approximation: the Sunday's day of month
// plus the weekday offset of the first of that month, divided by seven and
// rounded up. It is not an ISO-8601 week number and is kept for
// compatibility with stored selection rows.
func For(now time.Time, weeksAgo int) Range {
	now = now.UTC()

	daysToLastSunday := int(now.Weekday())
	sunday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, -daysToLastSunday-weeksAgo*7)

	start := sunday.AddDate(0, 0, -6)

	return Range{
		Start:      start,
		End:        sunday,
		WeekNumber: monthRelativeWeekNumber(sunday),
		Year:       sunday.Year(),
	}
}

// ForYearWeek returns the explicit window for a given year and week number
// used by the single-subject selection path: week n covers the seven days
// starting at day (n-1)*7+1 of that year.
func ForYearWeek(year, weekNumber int) Range {
	start := time.Date(year, time.January, (weekNumber-1)*7+1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.January, weekNumber*7, 0, 0, 0, 0, time.UTC)

	return Range{
		Start:      start,
		End:        end,
		WeekNumber: weekNumber,
		Year:       year,
	}
}

// CurrentWeekOfMonth returns the week-of-month number for now, matching the
// numbering the manual selection path uses when no explicit week is given.
func CurrentWeekOfMonth(now time.Time) int {
	return (now.Day()-1)/7 + 1
}

func monthRelativeWeekNumber(sunday time.Time) int {
	firstOfMonth := time.Date(sunday.Year(), sunday.Month(), 1, 0, 0, 0, 0, time.UTC)
	offset := int(firstOfMonth.Weekday())

	return (sunday.Day() + offset + 6) / 7
}
