package rules

// matches reports whether a conditional period applies to cycleMonth.
// Always is not conditional and never matches here.
func (p Period) matches(cycleMonth int) bool {
	switch p {
	case FirstYear:
		return cycleMonth <= 12
	case AfterFirstYear:
		return cycleMonth > 12
	case FirstMonth:
		return cycleMonth == 1
	case FirstQuarter:
		return cycleMonth <= 3
	}
	return false
}

// Resolve picks the rule that applies to cycleMonth: the first rule whose
// conditional period matches, else the first Always rule, else the first
// rule of the list. list must be non-empty.
func Resolve(list []Rule, cycleMonth int) Rule {
	for _, r := range list {
		if r.Period.matches(cycleMonth) {
			return r
		}
	}
	for _, r := range list {
		if r.Period == Always {
			return r
		}
	}
	return list[0]
}
