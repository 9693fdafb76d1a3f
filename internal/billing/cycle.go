// Package billing holds the pure date arithmetic of the subscription cycle.
package billing

import (
	"time"

	"commerce-app/subscription-service/internal/models"
)

// NextOrderDate returns the date the next renewal order is due, one
// period-length increment after from. Fractional durations are truncated to
// whole units.
func NextOrderDate(period models.BillingPeriod, duration float64, from time.Time) time.Time {
	switch period {
	case models.PeriodDay:
		return from.AddDate(0, 0, int(duration))
	case models.PeriodWeek:
		return from.AddDate(0, 0, int(duration)*7)
	case models.PeriodMonth:
		return addMonths(from, int(duration))
	default: // year
		return from.AddDate(int(duration), 0, 0)
	}
}

// addMonths clamps to the last day of the target month when the original
// day-of-month does not exist there (Jan 31 + 1 month = Feb 28/29).
func addMonths(t time.Time, months int) time.Time {
	next := t.AddDate(0, months, 0)
	if next.Day() != t.Day() {
		next = next.AddDate(0, 0, -next.Day())
	}
	return next
}

// EndDate computes when the subscription ends. An unbounded cycle count
// (unset, non-positive or above models.MaxCycles) maps to start plus 1000
// years: eternity does not exist and the cap prevents unbounded loops.
func EndDate(start time.Time, period models.BillingPeriod, duration float64, cyclesMax int) time.Time {
	if cyclesMax <= 0 || cyclesMax > models.MaxCycles {
		return start.AddDate(models.MaxCycles, 0, 0)
	}
	end := start
	for i := 0; i < cyclesMax; i++ {
		end = NextOrderDate(period, duration, end)
	}
	return end
}
