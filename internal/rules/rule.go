// Package rules models the per-exam collection rules of a routine and the
// pure calendar arithmetic used to decide which rules are due in a given
// month of a patient's treatment cycle.
//
// A routine maps every exam to an ordered list of rules. Each rule carries:
//   - Period: the part of the treatment cycle where it applies (Always,
//     FirstYear, AfterFirstYear, FirstMonth, FirstQuarter)
//   - Frequency: the tier the exam is charged at (Monthly .. Annual, or
//     NotBilled to leave it out)
//   - Kind: whether a missing exam is Mandatory or only Optional
package rules

import (
	"fmt"
	"strings"
)

// Period is the part of the treatment cycle a rule applies to.
type Period int

const (
	Always Period = iota
	FirstYear
	AfterFirstYear
	FirstMonth
	FirstQuarter
)

// Frequency is the collection tier of an exam.
type Frequency int

const (
	Monthly Frequency = iota
	Quarterly
	Semiannual
	Annual
	NotBilled
)

// Kind tells whether a pending exam blocks compliance.
type Kind int

const (
	Mandatory Kind = iota
	Optional
)

// Rule is one entry of an exam's rule list.
type Rule struct {
	Period    Period    `json:"period" yaml:"period"`
	Frequency Frequency `json:"frequency" yaml:"frequency"`
	Kind      Kind      `json:"kind" yaml:"kind"`
}

// Default is the rule inserted for exams a routine does not configure.
var Default = Rule{Period: Always, Frequency: NotBilled, Kind: Optional}

func (r Rule) String() string {
	return fmt.Sprintf("%s/%s/%s", r.Period, r.Frequency, r.Kind)
}

// Valid reports whether every field holds a known value.
func (r Rule) Valid() bool {
	return r.Period >= Always && r.Period <= FirstQuarter &&
		r.Frequency >= Monthly && r.Frequency <= NotBilled &&
		r.Kind >= Mandatory && r.Kind <= Optional
}

var periodNames = []string{"Always", "FirstYear", "AfterFirstYear", "FirstMonth", "FirstQuarter"}

var frequencyNames = []string{"Monthly", "Quarterly", "Semiannual", "Annual", "NotBilled"}

var kindNames = []string{"Mandatory", "Optional"}

// Labels used by the clinic spreadsheets and the legacy routine tables,
// accepted alongside the canonical English names. Keys are lower case.
var periodAliases = map[string]Period{
	"sempre":             Always,
	"primeiro ano":       FirstYear,
	"após primeiro ano":  AfterFirstYear,
	"apos primeiro ano":  AfterFirstYear,
	"primeiro mês":       FirstMonth,
	"primeiro mes":       FirstMonth,
	"primeiro trimestre": FirstQuarter,
}

var frequencyAliases = map[string]Frequency{
	"mensal":     Monthly,
	"trimestral": Quarterly,
	"semestral":  Semiannual,
	"anual":      Annual,
	"não cobra":  NotBilled,
	"nao cobra":  NotBilled,
}

var kindAliases = map[string]Kind{
	"obrigatório": Mandatory,
	"obrigatorio": Mandatory,
	"opcional":    Optional,
}

func (p Period) String() string {
	if p < 0 || int(p) >= len(periodNames) {
		return fmt.Sprintf("Period(%d)", int(p))
	}
	return periodNames[p]
}

func (f Frequency) String() string {
	if f < 0 || int(f) >= len(frequencyNames) {
		return fmt.Sprintf("Frequency(%d)", int(f))
	}
	return frequencyNames[f]
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParsePeriod accepts the canonical name or a Portuguese label, case-insensitively.
func ParsePeriod(s string) (Period, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for i, n := range periodNames {
		if strings.ToLower(n) == key {
			return Period(i), nil
		}
	}
	if p, ok := periodAliases[key]; ok {
		return p, nil
	}
	return 0, fmt.Errorf("unknown rule period %q", s)
}

// ParseFrequency accepts the canonical name or a Portuguese label, case-insensitively.
func ParseFrequency(s string) (Frequency, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for i, n := range frequencyNames {
		if strings.ToLower(n) == key {
			return Frequency(i), nil
		}
	}
	if f, ok := frequencyAliases[key]; ok {
		return f, nil
	}
	return 0, fmt.Errorf("unknown frequency %q", s)
}

// ParseKind accepts the canonical name or a Portuguese label, case-insensitively.
func ParseKind(s string) (Kind, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for i, n := range kindNames {
		if strings.ToLower(n) == key {
			return Kind(i), nil
		}
	}
	if k, ok := kindAliases[key]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("unknown rule kind %q", s)
}

func (p Period) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Period) UnmarshalText(b []byte) error {
	v, err := ParsePeriod(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func (f Frequency) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *Frequency) UnmarshalText(b []byte) error {
	v, err := ParseFrequency(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}
