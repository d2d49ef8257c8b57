package rules

import "time"

// Tiers is a set of due frequencies.
type Tiers map[Frequency]bool

// Has reports whether f is in the set.
func (t Tiers) Has(f Frequency) bool { return t[f] }

// Sorted returns the tiers in evaluation order (Annual first).
func (t Tiers) Sorted() []Frequency {
	var out []Frequency
	for _, f := range EvaluationOrder {
		if t[f] {
			out = append(out, f)
		}
	}
	return out
}

// EvaluationOrder is the order in which exams of each tier are evaluated.
var EvaluationOrder = []Frequency{Annual, Semiannual, Quarterly, Monthly}

// Priority returns the position of f in EvaluationOrder; NotBilled sorts last.
func Priority(f Frequency) int {
	for i, o := range EvaluationOrder {
		if o == f {
			return i
		}
	}
	return len(EvaluationOrder)
}

// CycleMonth returns the 1-indexed month of the treatment cycle that ref
// falls in, counting the month of start as 1. Days are ignored.
func CycleMonth(start, ref time.Time) int {
	return (ref.Year()-start.Year())*12 + int(ref.Month()-start.Month()) + 1
}

// DueTiers returns the tiers theoretically due in the given cycle month.
// Month 1 of every year is due for all tiers; the cascade then narrows by
// six-, three- and one-month boundaries.
func DueTiers(cycleMonth int) Tiers {
	switch {
	case mod(cycleMonth, 12) == 1:
		return Tiers{Annual: true, Semiannual: true, Quarterly: true, Monthly: true}
	case mod(cycleMonth, 6) == 1:
		return Tiers{Semiannual: true, Quarterly: true, Monthly: true}
	case mod(cycleMonth, 3) == 1:
		return Tiers{Quarterly: true, Monthly: true}
	default:
		return Tiers{Monthly: true}
	}
}

// mod is a non-negative modulo so months before the cycle start still map
// onto the cascade.
func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// Months returns the interval of a tier in calendar months, or 0 for NotBilled.
func (f Frequency) Months() int {
	switch f {
	case Monthly:
		return 1
	case Quarterly:
		return 3
	case Semiannual:
		return 6
	case Annual:
		return 12
	}
	return 0
}

// NextDue returns last shifted by the tier interval. The day is clamped to
// the end of the target month, so Jan 31 + 1 month is the last day of
// February. ok is false for NotBilled.
func NextDue(last time.Time, f Frequency) (next time.Time, ok bool) {
	n := f.Months()
	if n == 0 {
		return time.Time{}, false
	}
	return AddMonths(last, n), true
}

// AddMonths adds n calendar months to t without overflowing into the
// following month.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

func daysIn(y int, m time.Month, loc *time.Location) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, loc).Day()
}
