package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/nefron/examcheck/internal/model"
)

// WriteText prints the run overview followed by one block per patient.
func WriteText(w io.Writer, r *Report) error {
	bw := bufio.NewWriter(w)
	sum := r.Summary

	fmt.Fprintf(bw, "=== examcheck %s ===\n", sum.Period)
	fmt.Fprintf(bw, "Run:      %s\n", r.RunID)
	fmt.Fprintf(bw, "Profile:  %s (routine %s)\n", sum.Profile, sum.Routine)
	fmt.Fprintf(bw, "Rows:     %d read, %d analysed, %d dropped, %d other clinic, %d unknown exam\n",
		sum.RowsRead, sum.RowsAnalysed, sum.RowsDropped, sum.RowsFilteredClinic, sum.RowsUnknownExam)
	if sum.ApproximatedStarts > 0 {
		fmt.Fprintf(bw, "Approximated cycle starts: %d\n", sum.ApproximatedStarts)
	}
	if len(r.UnknownExams) > 0 {
		fmt.Fprintf(bw, "Unknown exams: %s\n", strings.Join(r.UnknownExams, ", "))
	}
	fmt.Fprintln(bw, MetricsLine(sum))
	if len(r.Filter.Statuses) > 0 || r.Filter.Query != "" {
		fmt.Fprintf(bw, "Showing %d patient(s)%s\n", len(r.Results), describeFilter(r.Filter))
	}

	for _, res := range r.Results {
		fmt.Fprintln(bw)
		writePatient(bw, res)
	}
	return bw.Flush()
}

func writePatient(w io.Writer, r *model.AnalysisResult) {
	fmt.Fprintf(w, "%-40s %-15s %s\n", r.Patient.Name, r.Patient.ID, r.Status.Label())
	if r.CycleMonth > 0 {
		start := formatDate(r.CycleStart)
		if r.CycleStartApproximated {
			start += " (approximated)"
		}
		fmt.Fprintf(w, "  cycle month %d, start %s\n", r.CycleMonth, start)
	}
	if r.Reason != "" {
		fmt.Fprintf(w, "  reason: %s\n", r.Reason)
	}
	fmt.Fprintf(w, "  %s\n", r.Summary)
	for _, p := range r.MandatoryPending {
		fmt.Fprintf(w, "  [mandatory] %s\n", describePending(p))
	}
	for _, p := range r.OptionalPending {
		fmt.Fprintf(w, "  [optional]  %s\n", describePending(p))
	}
	for _, e := range r.ManuallyResolved {
		fmt.Fprintf(w, "  [resolved]  %s\n", e.Exam)
	}
}

func describePending(p model.PendingExam) string {
	if p.LastPerformed == nil {
		return fmt.Sprintf("%s (%s, never performed)", p.Exam, p.Frequency)
	}
	return fmt.Sprintf("%s (%s, last %s, due %s)", p.Exam, p.Frequency, formatDate(p.LastPerformed), formatDate(p.NextDue))
}

func describeFilter(f Filter) string {
	var parts []string
	if len(f.Statuses) > 0 {
		names := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			names[i] = s.String()
		}
		parts = append(parts, "status "+strings.Join(names, ","))
	}
	if f.Query != "" {
		parts = append(parts, fmt.Sprintf("matching %q", f.Query))
	}
	return " with " + strings.Join(parts, " and ")
}
