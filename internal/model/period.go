package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period is a reference month.
type Period struct {
	Year  int
	Month time.Month
}

// ParsePeriod parses "YYYY-MM" (also "YYYY/MM" and "MM/YYYY").
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	sep := "-"
	if strings.Contains(s, "/") {
		sep = "/"
	}
	parts := strings.Split(s, sep)
	if len(parts) != 2 {
		return Period{}, fmt.Errorf("invalid period %q: want YYYY-MM", s)
	}
	a, errA := strconv.Atoi(parts[0])
	b, errB := strconv.Atoi(parts[1])
	if errA != nil || errB != nil {
		return Period{}, fmt.Errorf("invalid period %q: want YYYY-MM", s)
	}
	year, month := a, b
	if len(parts[0]) <= 2 && len(parts[1]) == 4 {
		year, month = b, a
	}
	if month < 1 || month > 12 || year < 1900 || year > 9999 {
		return Period{}, fmt.Errorf("invalid period %q: out of range", s)
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// IsZero reports whether p was never set.
func (p Period) IsZero() bool { return p.Year == 0 && p.Month == 0 }

// FirstDay returns midnight UTC of the first day of the month.
func (p Period) FirstDay() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// ReferenceDate returns the last day of the month, the date every due date
// is compared with.
func (p Period) ReferenceDate() time.Time {
	return time.Date(p.Year, p.Month+1, 0, 0, 0, 0, 0, time.UTC)
}

// Contains reports whether t falls in the month.
func (p Period) Contains(t time.Time) bool {
	return t.Year() == p.Year && t.Month() == p.Month
}

// AddMonths shifts the period by n months.
func (p Period) AddMonths(n int) Period {
	return PeriodOf(time.Date(p.Year, p.Month+time.Month(n), 1, 0, 0, 0, 0, time.UTC))
}

// Before reports whether p is earlier than o.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
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
