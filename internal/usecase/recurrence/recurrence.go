package recurrence

import (
	"fmt"
	"time"

	"github.com/simaogato/standing-orders/internal/domain"
)

// ExecutionHour is the single time of day at which occurrences are scheduled
const ExecutionHour = 8

// IsDueOn reports whether the order's recurrence pattern calls for execution on the calendar date.
//
// Rules:
//   - Outside [StartDate, EndDate] nothing is due
//   - DAILY: every date of the window
//   - WEEKLY: dates sharing StartDate's weekday
//   - MONTHLY: dates sharing StartDate's day of month; when the month is too short
//     the occurrence is clamped to the month's last day (Jan 31 -> Feb 29 -> Mar 31)
//
// The active flag is not considered here.
// An unsupported frequency fails with domain.ErrInvalidFrequency.
func IsDueOn(order *domain.StandingOrder, date time.Time) (bool, error) {
	if err := checkFrequency(order); err != nil {
		return false, err
	}

	day := domain.DateOf(date)
	if !order.InWindow(day) {
		return false, nil
	}

	return matches(order, day), nil
}

// NextOccurrence returns the first due date on or after the calendar date of onOrAfter,
// at ExecutionHour UTC.
// ok is false when onOrAfter is outside the window or the pattern has no date left before EndDate.
func NextOccurrence(order *domain.StandingOrder, onOrAfter time.Time) (next time.Time, ok bool, err error) {
	if err := checkFrequency(order); err != nil {
		return time.Time{}, false, err
	}

	day := domain.DateOf(onOrAfter)
	if !order.InWindow(day) {
		return time.Time{}, false, nil
	}

	start := domain.DateOf(order.StartDate)
	var candidate time.Time

	switch order.Frequency {
	case domain.FrequencyDaily:
		candidate = day

	case domain.FrequencyWeekly:
		offset := (int(start.Weekday()) - int(day.Weekday()) + 7) % 7
		candidate = day.AddDate(0, 0, offset)

	case domain.FrequencyMonthly:
		candidate = monthlyDate(day.Year(), day.Month(), start.Day())
		if candidate.Before(day) {
			// Day 1 of the next month never overflows
			firstOfNext := time.Date(day.Year(), day.Month()+1, 1, 0, 0, 0, 0, time.UTC)
			candidate = monthlyDate(firstOfNext.Year(), firstOfNext.Month(), start.Day())
		}
	}

	if candidate.After(domain.DateOf(order.EndDate)) {
		return time.Time{}, false, nil
	}

	return At(candidate), true, nil
}

// FirstOccurrence returns the first occurrence of an order seen from today:
// the next due date on or after the later of today and StartDate.
func FirstOccurrence(order *domain.StandingOrder, today time.Time) (time.Time, bool, error) {
	from := domain.DateOf(today)
	if start := domain.DateOf(order.StartDate); start.After(from) {
		from = start
	}
	return NextOccurrence(order, from)
}

// At returns the calendar date of t at ExecutionHour UTC
func At(t time.Time) time.Time {
	return domain.DateOf(t).Add(ExecutionHour * time.Hour)
}

func checkFrequency(order *domain.StandingOrder) error {
	if !order.Frequency.Valid() {
		return fmt.Errorf("%w: %q on order %s", domain.ErrInvalidFrequency, order.Frequency, order.ID)
	}
	return nil
}

func matches(order *domain.StandingOrder, day time.Time) bool {
	start := domain.DateOf(order.StartDate)

	switch order.Frequency {
	case domain.FrequencyDaily:
		return true
	case domain.FrequencyWeekly:
		return day.Weekday() == start.Weekday()
	case domain.FrequencyMonthly:
		return day.Equal(monthlyDate(day.Year(), day.Month(), start.Day()))
	}
	return false
}

// monthlyDate returns the given day of the month, clamped to the month's last day
func monthlyDate(year int, month time.Month, day int) time.Time {
	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
