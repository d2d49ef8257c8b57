package rules

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrEmptyRuleSet means the routine configures no exam at all.
	ErrEmptyRuleSet = errors.New("rule set is empty")
	// ErrEmptyRuleList means an exam is present with no rule.
	ErrEmptyRuleList = errors.New("exam has an empty rule list")
	// ErrInvalidRule means a rule holds an out-of-range value.
	ErrInvalidRule = errors.New("invalid rule")
)

// Set maps a canonical exam name to its ordered rule list.
// Every list in a valid Set is non-empty.
type Set map[string][]Rule

// Validate checks the non-empty invariant and the value ranges of every rule.
func (s Set) Validate() error {
	if len(s) == 0 {
		return ErrEmptyRuleSet
	}
	for _, exam := range s.Exams() {
		list := s[exam]
		if len(list) == 0 {
			return fmt.Errorf("%w: %q", ErrEmptyRuleList, exam)
		}
		for i, r := range list {
			if !r.Valid() {
				return fmt.Errorf("%w: %q rule %d (%s)", ErrInvalidRule, exam, i, r)
			}
		}
	}
	return nil
}

// Exams returns the configured exam names in sorted order.
func (s Set) Exams() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithDefaults returns a copy of s where every exam in dictionary that has no
// rule (or an empty list) gets the Default rule.
func (s Set) WithDefaults(dictionary []string) Set {
	out := make(Set, len(s)+len(dictionary))
	for exam, list := range s {
		if len(list) == 0 {
			continue
		}
		cp := make([]Rule, len(list))
		copy(cp, list)
		out[exam] = cp
	}
	for _, exam := range dictionary {
		if _, ok := out[exam]; !ok {
			out[exam] = []Rule{Default}
		}
	}
	return out
}

// ResolveAll resolves every exam of s for the given cycle month, dropping
// exams whose resolved rule is NotBilled.
func (s Set) ResolveAll(cycleMonth int) map[string]Rule {
	out := make(map[string]Rule, len(s))
	for exam, list := range s {
		if len(list) == 0 {
			continue
		}
		r := Resolve(list, cycleMonth)
		if r.Frequency == NotBilled {
			continue
		}
		out[exam] = r
	}
	return out
}
