package calc_test

import (
	"math"
	"testing"
	"time"

	"github.com/csg33k/mirecurso/internal/calc"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ---------------------------------------------------------------------------
// Age
// ---------------------------------------------------------------------------

func TestAge(t *testing.T) {
	asOf := date(2025, time.March, 15)
	cases := []struct {
		name  string
		birth time.Time
		want  int
	}{
		{"60th birthday today", date(1965, time.March, 15), 60},
		{"60th birthday tomorrow", date(1965, time.March, 16), 59},
		{"60th birthday yesterday", date(1965, time.March, 14), 60},
		{"later month", date(1965, time.December, 1), 59},
		{"earlier month", date(1940, time.January, 31), 85},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := calc.Age(tc.birth, asOf); got != tc.want {
				t.Errorf("Age = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestAge_LeapDayBirth(t *testing.T) {
	birth := date(1964, time.February, 29)
	if got := calc.Age(birth, date(2024, time.February, 28)); got != 59 {
		t.Errorf("day before leap birthday: got %d, want 59", got)
	}
	if got := calc.Age(birth, date(2024, time.February, 29)); got != 60 {
		t.Errorf("on leap birthday: got %d, want 60", got)
	}
	if got := calc.Age(birth, date(2025, time.March, 1)); got != 61 {
		t.Errorf("non-leap year: got %d, want 61", got)
	}
}

// ---------------------------------------------------------------------------
// Contribution burden
// ---------------------------------------------------------------------------

func TestProportionality(t *testing.T) {
	cases := []struct {
		quarterly, monthly int64
		wantAnnualContrib  int64
		wantAnnualIncome   int64
		wantPct            float64
	}{
		{150000, 850000, 600000, 10200000, 5.88},
		{420000, 350000, 1680000, 4200000, 40},
	}
	for _, tc := range cases {
		contrib := calc.AnnualFromQuarterly(tc.quarterly)
		income := calc.AnnualFromMonthly(tc.monthly)
		if contrib != tc.wantAnnualContrib {
			t.Errorf("annual contribution = %d, want %d", contrib, tc.wantAnnualContrib)
		}
		if income != tc.wantAnnualIncome {
			t.Errorf("annual income = %d, want %d", income, tc.wantAnnualIncome)
		}
		if pct := calc.IncomePercentage(contrib, income); math.Abs(pct-tc.wantPct) > 0.01 {
			t.Errorf("percentage = %.4f, want ≈ %.2f", pct, tc.wantPct)
		}
	}
}

func TestIncomePercentage_ZeroIncome(t *testing.T) {
	if got := calc.IncomePercentage(600000, 0); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
}

// ---------------------------------------------------------------------------
// Elapsed days and caps
// ---------------------------------------------------------------------------

func TestDaysSince(t *testing.T) {
	asOf := time.Date(2025, time.May, 10, 23, 59, 0, 0, time.UTC)
	cases := []struct {
		d    time.Time
		want int
	}{
		{time.Date(2025, time.May, 10, 1, 0, 0, 0, time.UTC), 0},
		{date(2025, time.May, 9), 1},
		{date(2025, time.April, 10), 30},
		{date(2024, time.May, 10), 365},
		{date(2025, time.May, 12), -2},
	}
	for _, tc := range cases {
		if got := calc.DaysSince(tc.d, asOf); got != tc.want {
			t.Errorf("DaysSince(%s) = %d, want %d", tc.d.Format(time.DateOnly), got, tc.want)
		}
	}
}

func TestWithinDays(t *testing.T) {
	asOf := date(2025, time.May, 10)
	if !calc.WithinDays(date(2025, time.April, 10), asOf, 30) {
		t.Error("30 days ago should be within a 30 day window")
	}
	if calc.WithinDays(date(2025, time.April, 9), asOf, 30) {
		t.Error("31 days ago should be outside a 30 day window")
	}
}

func TestExceedsCap(t *testing.T) {
	const limit = 224000000
	if !calc.ExceedsCap(300000000, limit) {
		t.Error("300M should exceed the cap")
	}
	if calc.ExceedsCap(100000000, limit) {
		t.Error("100M should not exceed the cap")
	}
	if calc.ExceedsCap(limit, limit) {
		t.Error("the cap itself does not exceed the cap")
	}
}
