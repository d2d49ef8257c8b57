package model

import "github.com/nefron/examcheck/internal/rules"

// Exam is a dictionary entry: a canonical exam name and the column labels
// clinics use for it.
type Exam struct {
	Name    string   `json:"name" yaml:"name"`
	Aliases []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`
}

// Routine is a named rule set.
type Routine struct {
	Name  string    `json:"name" yaml:"name"`
	Rules rules.Set `json:"rules" yaml:"rules"`
}

// Profile binds a routine to the clinics whose rows are analysed with it.
// An empty Clinics list keeps every row.
type Profile struct {
	Name    string   `json:"name" yaml:"name" validate:"required"`
	Routine string   `json:"routine" yaml:"routine" validate:"required"`
	Clinics []string `json:"clinics" yaml:"clinics"`
}

// AliasIndex maps every canonical name and alias, folded by fold, to its
// canonical exam name.
func AliasIndex(exams []Exam, fold func(string) string) map[string]string {
	idx := make(map[string]string, len(exams)*2)
	for _, e := range exams {
		idx[fold(e.Name)] = e.Name
		for _, a := range e.Aliases {
			if _, taken := idx[fold(a)]; !taken {
				idx[fold(a)] = e.Name
			}
		}
	}
	return idx
}

// ExamNames returns the canonical names of exams in order.
func ExamNames(exams []Exam) []string {
	out := make([]string, len(exams))
	for i, e := range exams {
		out[i] = e.Name
	}
	return out
}
