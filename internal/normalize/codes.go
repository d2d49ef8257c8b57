package normalize

import (
	"regexp"
	"strings"
)

// PatientIDWidth is the width of a CNS (Cartão Nacional de Saúde) number.
const PatientIDWidth = 15

var nonAlphanumeric = regexp.MustCompile(`[^A-Za-z0-9]`)

var allDigits = regexp.MustCompile(`^[0-9]+$`)

// PatientID trims, drops a trailing ".0" left by spreadsheet exports,
// strips non-alphanumeric characters and uppercases the identifier.
// Numeric identifiers are left-padded with zeros to PatientIDWidth.
// Returns "" when nothing is left.
func PatientID(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ".0")
	s = nonAlphanumeric.ReplaceAllString(s, "")
	if s == "" {
		return ""
	}
	s = strings.ToUpper(s)
	if allDigits.MatchString(s) && len(s) < PatientIDWidth {
		s = strings.Repeat("0", PatientIDWidth-len(s)) + s
	}
	return s
}
