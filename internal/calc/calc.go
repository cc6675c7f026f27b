// Package calc holds the derived figures of a case: age, annualized amounts,
// the contribution burden and elapsed-day checks. Every function is pure and
// works on calendar dates; the time-of-day and location of inputs are ignored.
package calc

import "time"

// DateOf truncates t to its calendar date in UTC, keeping t's own year, month and day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Age is the calendar-year difference between birth and asOf, minus one when
// the birthday has not yet occurred in asOf's year.
func Age(birth, asOf time.Time) int {
	by, bm, bd := birth.Date()
	ay, am, ad := asOf.Date()
	age := ay - by
	if am < bm || (am == bm && ad < bd) {
		age--
	}
	return age
}

func AnnualFromMonthly(x int64) int64 { return x * 12 }

func AnnualFromQuarterly(x int64) int64 { return x * 4 }

// IncomePercentage is contributionAnnual as a percentage of incomeAnnual,
// or 0 when there is no income.
func IncomePercentage(contributionAnnual, incomeAnnual int64) float64 {
	if incomeAnnual <= 0 {
		return 0
	}
	return float64(contributionAnnual) / float64(incomeAnnual) * 100
}

// DaysSince is the whole number of calendar days from date to asOf. It is
// negative when date lies after asOf.
func DaysSince(date, asOf time.Time) int {
	return int(DateOf(asOf).Sub(DateOf(date)).Hours() / 24)
}

func WithinDays(date, asOf time.Time, window int) bool {
	return DaysSince(date, asOf) <= window
}

func ExceedsCap(value, limit int64) bool { return value > limit }
