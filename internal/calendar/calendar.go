// Package calendar provides the week and date arithmetic used by the planner.
// All dates are local calendar dates; a week always starts on Monday.
package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jinzhu/now"
)

// ErrInvalidDate is returned when a string is not a YYYY-MM-DD date.
var ErrInvalidDate = errors.New("invalid date")

const (
	isoLayout   = "2006-01-02"
	daysPerWeek = 7
)

var weekConfig = &now.Config{WeekStartDay: time.Monday}

// StartOfISOWeek returns local midnight of the Monday on or before t.
// Sunday belongs to the week that started six days earlier.
func StartOfISOWeek(t time.Time) time.Time {
	return weekConfig.With(t).BeginningOfWeek()
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	return weekConfig.With(t).BeginningOfDay()
}

// FormatISO formats t as YYYY-MM-DD using t's own calendar date.
func FormatISO(t time.Time) string {
	return t.Format(isoLayout)
}

// ParseISODateLocal parses YYYY-MM-DD into local midnight of that date.
// Out-of-range day or month values roll over the same way time.Date does.
func ParseISODateLocal(s string) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		nums[i] = n
	}
	return time.Date(nums[0], time.Month(nums[1]), nums[2], 0, 0, 0, 0, time.Local), nil
}

// AddDays returns midnight of the date n days after t.
func AddDays(t time.Time, n int) time.Time {
	y, m, d := t.AddDate(0, 0, n).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddWeeks returns midnight of the date n weeks after t.
func AddWeeks(t time.Time, n int) time.Time {
	return AddDays(t, n*daysPerWeek)
}

// WorkingDaysInMonth counts Monday to Friday days in the given month.
func WorkingDaysInMonth(year int, month time.Month) int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	last := weekConfig.With(first).EndOfMonth()

	count := 0
	for d := first; !d.After(last); d = AddDays(d, 1) {
		switch d.Weekday() {
		case time.Saturday, time.Sunday:
		default:
			count++
		}
	}
	return count
}

// IsWeekElapsed reports whether local today is strictly after the Sunday
// closing the week that starts on weekStart. Unparsable input is never elapsed.
func IsWeekElapsed(clock Clock, weekStart string) bool {
	start, err := ParseISODateLocal(weekStart)
	if err != nil {
		return false
	}
	sunday := AddDays(start, daysPerWeek-1)
	today := StartOfDay(clock.Now().In(time.Local))
	return today.After(sunday)
}

// EnumerateISOWeekMondays lists every Monday from the week containing
// January 1st up to December 31st of year.
func EnumerateISOWeekMondays(year int) []string {
	monday := StartOfISOWeek(time.Date(year, time.January, 1, 0, 0, 0, 0, time.Local))
	end := time.Date(year, time.December, 31, 0, 0, 0, 0, time.Local)

	weeks := make([]string, 0, 54)
	for !monday.After(end) {
		weeks = append(weeks, FormatISO(monday))
		monday = AddDays(monday, daysPerWeek)
	}
	return weeks
}

// WeekWindow returns count consecutive week starts, beginning before weeks
// ahead of the week containing anchor.
func WeekWindow(anchor time.Time, before, count int) []string {
	if count <= 0 {
		return nil
	}
	base := StartOfISOWeek(anchor)
	weeks := make([]string, count)
	for i := range weeks {
		weeks[i] = FormatISO(AddWeeks(base, i-before))
	}
	return weeks
}

// FormatWeekRange renders a week as "DD.MM - DD.MM", Monday to Friday.
func FormatWeekRange(weekStart string) string {
	start, err := ParseISODateLocal(weekStart)
	if err != nil {
		return weekStart
	}
	friday := AddDays(start, 4)
	return fmt.Sprintf("%02d.%02d - %02d.%02d", start.Day(), int(start.Month()), friday.Day(), int(friday.Month()))
}

// MonthKey formats a month as YYYY-MM, the key used by write-off entries.
func MonthKey(year int, month time.Month) string {
	return fmt.Sprintf("%d-%02d", year, int(month))
}

// YearMonth returns the calendar year and month of an ISO date string.
func YearMonth(date string) (int, time.Month, bool) {
	t, err := ParseISODateLocal(date)
	if err != nil {
		return 0, 0, false
	}
	return t.Year(), t.Month(), true
}
