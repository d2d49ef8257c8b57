package engine

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/nefron/examcheck/internal/model"
	"github.com/nefron/examcheck/internal/rules"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const (
	anaName = "Ana Lima"
	anaID   = "000000000000001"
)

var april2023 = model.Period{Year: 2023, Month: time.April}

func exam(name string, date time.Time) model.ExamRecord {
	return model.ExamRecord{PatientName: anaName, PatientID: anaID, Exam: name, Date: date, Result: "ok"}
}

func withStart(r model.ExamRecord, start time.Time) model.ExamRecord {
	r.ProgramStart = &start
	return r
}

func testRules() rules.Set {
	return rules.Set{
		"Calcio":    {{Period: rules.Always, Frequency: rules.Monthly, Kind: rules.Mandatory}},
		"PTH":       {{Period: rules.Always, Frequency: rules.Quarterly, Kind: rules.Mandatory}},
		"Hemograma": {{Period: rules.Always, Frequency: rules.Quarterly, Kind: rules.Optional}},
		"Anti-HIV":  {{Period: rules.Always, Frequency: rules.Annual, Kind: rules.Mandatory}},
		"Albumina":  {{Period: rules.Always, Frequency: rules.NotBilled, Kind: rules.Optional}},
	}
}

// aprilExams is the worked example: cycle start 2023-01-01, reference
// 2023-04-30 (cycle month 4).
func aprilExams() []model.ExamRecord {
	return []model.ExamRecord{
		withStart(exam("PTH", day(2023, 1, 10)), day(2023, 1, 1)),
		exam("Hemograma", day(2023, 1, 10)),
		exam("Anti-HIV", day(2023, 1, 10)),
		exam("Calcio", day(2023, 4, 5)),
	}
}

func run(t *testing.T, in Input) *Output {
	t.Helper()
	if in.Period.IsZero() {
		in.Period = april2023
	}
	if in.Rules == nil {
		in.Rules = testRules()
	}
	out, err := Run(context.Background(), in, Options{Workers: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out
}

func only(t *testing.T, out *Output) *model.AnalysisResult {
	t.Helper()
	if len(out.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(out.Results))
	}
	for _, r := range out.Results {
		return r
	}
	return nil
}

func pendingNames(list []model.PendingExam) []string {
	out := make([]string, len(list))
	for i, p := range list {
		out[i] = p.Exam
	}
	return out
}

func TestEndToEndExample(t *testing.T) {
	out := run(t, Input{Exams: aprilExams()})
	r := only(t, out)

	if r.Status != model.StatusPending {
		t.Fatalf("status = %s, want pending (%s)", r.Status, r.Summary)
	}
	if r.CycleMonth != 4 {
		t.Errorf("cycle month = %d, want 4", r.CycleMonth)
	}
	if r.CycleStartApproximated {
		t.Error("cycle start came from the program start field")
	}
	if got := pendingNames(r.MandatoryPending); !reflect.DeepEqual(got, []string{"PTH"}) {
		t.Fatalf("mandatory pending = %v, want [PTH]", got)
	}
	pth := r.MandatoryPending[0]
	if pth.Frequency != rules.Quarterly {
		t.Errorf("PTH frequency = %s", pth.Frequency)
	}
	if pth.LastPerformed == nil || !pth.LastPerformed.Equal(day(2023, 1, 10)) {
		t.Errorf("PTH last performed = %v", pth.LastPerformed)
	}
	if pth.NextDue == nil || !pth.NextDue.Equal(day(2023, 4, 10)) {
		t.Errorf("PTH next due = %v", pth.NextDue)
	}
	if got := pendingNames(r.OptionalPending); !reflect.DeepEqual(got, []string{"Hemograma"}) {
		t.Errorf("optional pending = %v, want [Hemograma]", got)
	}
	for _, p := range append(r.MandatoryPending, r.OptionalPending...) {
		if p.Exam == "Calcio" {
			t.Error("Calcio was collected this month and must not be pending")
		}
		if p.Exam == "Anti-HIV" {
			t.Error("annual tier is not due in cycle month 4")
		}
	}
	if out.TotalPatients != 1 || out.ActivePatients != 1 {
		t.Errorf("counts: total %d active %d", out.TotalPatients, out.ActivePatients)
	}
	if r.Summary != "1 mandatory exam(s) pending. 1 optional suggested." {
		t.Errorf("summary = %q", r.Summary)
	}
}

func TestNotYetDueIsCompliant(t *testing.T) {
	exams := aprilExams()
	// PTH and Hemograma done in February: next due in May.
	exams[0].Date = day(2023, 2, 15)
	exams[1].Date = day(2023, 2, 15)
	r := only(t, run(t, Input{Exams: exams}))
	if r.Status != model.StatusCompliant {
		t.Fatalf("status = %s (%s)", r.Status, r.Summary)
	}
	if len(r.MandatoryPending)+len(r.OptionalPending) != 0 {
		t.Errorf("nothing should be pending: %+v", r)
	}
	if r.Summary != "No mandatory exam pending for this month." {
		t.Errorf("summary = %q", r.Summary)
	}
}

func TestNeverPerformedIsPending(t *testing.T) {
	exams := []model.ExamRecord{
		withStart(exam("Calcio", day(2023, 4, 5)), day(2023, 1, 1)),
	}
	r := only(t, run(t, Input{Exams: exams}))
	got := pendingNames(r.MandatoryPending)
	if !reflect.DeepEqual(got, []string{"PTH"}) {
		t.Fatalf("mandatory pending = %v", got)
	}
	if r.MandatoryPending[0].LastPerformed != nil || r.MandatoryPending[0].NextDue != nil {
		t.Error("never-performed exam must have no dates")
	}
}

func TestTierOrdering(t *testing.T) {
	// Cycle month 13: every tier is due.
	exams := []model.ExamRecord{
		withStart(exam("Calcio", day(2023, 4, 5)), day(2022, 4, 1)),
	}
	r := only(t, run(t, Input{Exams: exams}))
	if r.CycleMonth != 13 {
		t.Fatalf("cycle month = %d", r.CycleMonth)
	}
	got := pendingNames(r.MandatoryPending)
	want := []string{"Anti-HIV", "PTH"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("mandatory pending = %v, want %v", got, want)
	}
}

func TestCollectionGate(t *testing.T) {
	t.Run("no_monthly_collected", func(t *testing.T) {
		exams := []model.ExamRecord{
			withStart(exam("Calcio", day(2023, 3, 5)), day(2023, 1, 1)),
			exam("PTH", day(2022, 12, 1)),
		}
		r := only(t, run(t, Input{Exams: exams}))
		if r.Status != model.StatusCollectionPending {
			t.Fatalf("status = %s, want collection_pending", r.Status)
		}
		if len(r.MandatoryPending)+len(r.OptionalPending)+len(r.ManuallyResolved) != 0 {
			t.Error("collection pending must carry empty lists")
		}
		if r.Summary != MsgCollectionPending {
			t.Errorf("summary = %q", r.Summary)
		}
	})
	t.Run("first_cycle_month_is_not_gated", func(t *testing.T) {
		exams := []model.ExamRecord{
			withStart(exam("PTH", day(2023, 4, 2)), day(2023, 4, 1)),
		}
		r := only(t, run(t, Input{Exams: exams}))
		if r.Status == model.StatusCollectionPending {
			t.Fatal("a patient in cycle month 1 must not be gated")
		}
		if r.CycleMonth != 1 {
			t.Errorf("cycle month = %d", r.CycleMonth)
		}
		if got := pendingNames(r.MandatoryPending); !reflect.DeepEqual(got, []string{"Anti-HIV", "Calcio"}) {
			t.Errorf("mandatory pending = %v", got)
		}
	})
	t.Run("routine_without_mandatory_monthly", func(t *testing.T) {
		set := rules.Set{
			"PTH":    {{Period: rules.Always, Frequency: rules.Quarterly, Kind: rules.Mandatory}},
			"Calcio": {{Period: rules.Always, Frequency: rules.Monthly, Kind: rules.Optional}},
		}
		exams := []model.ExamRecord{
			withStart(exam("PTH", day(2023, 2, 1)), day(2023, 1, 1)),
		}
		r := only(t, run(t, Input{Exams: exams, Rules: set}))
		if r.Status != model.StatusCollectionPending {
			t.Errorf("status = %s, want collection_pending", r.Status)
		}
		if len(r.MandatoryPending) != 0 {
			t.Errorf("collection pending must carry empty lists, got %v", pendingNames(r.MandatoryPending))
		}
	})
}

func TestHospitalizationPrecedence(t *testing.T) {
	stays := []model.Hospitalization{
		{PatientName: "ANA  LIMA", Admission: day(2023, 4, 20), Reason: "Clínica"},
	}
	// Exam history would otherwise be Collection-Pending.
	exams := []model.ExamRecord{withStart(exam("PTH", day(2022, 1, 1)), day(2022, 1, 1))}
	r := only(t, run(t, Input{Exams: exams, Hospitalizations: stays}))
	if r.Status != model.StatusHospitalized {
		t.Fatalf("status = %s, want hospitalized", r.Status)
	}
	if r.Reason != "Clínica" {
		t.Errorf("reason = %q", r.Reason)
	}
	if len(r.MandatoryPending) != 0 {
		t.Error("hospitalized patient must have no pending list")
	}

	discharged := day(2023, 4, 25)
	stays[0].Discharge = &discharged
	r = only(t, run(t, Input{Exams: aprilExams(), Hospitalizations: stays}))
	if r.Status == model.StatusHospitalized {
		t.Error("stay discharged before the reference date must not gate")
	}
}

func TestMovements(t *testing.T) {
	mov := func(d time.Time, label string, kind model.MovementKind) model.MovementRecord {
		return model.MovementRecord{PatientName: anaName, PatientID: anaID, Date: d, Type: label, Kind: kind}
	}
	tests := []struct {
		name   string
		movs   []model.MovementRecord
		status model.Status
	}{
		{"exit_before_reference", []model.MovementRecord{mov(day(2023, 3, 1), "Óbito", model.MovementExit)}, model.StatusInactive},
		{"exit_after_reference", []model.MovementRecord{mov(day(2023, 5, 1), "Óbito", model.MovementExit)}, model.StatusPending},
		{"return_after_exit", []model.MovementRecord{
			mov(day(2023, 3, 20), "Retorno", model.MovementEntry),
			mov(day(2023, 2, 1), "Transferência de centro", model.MovementExit),
		}, model.StatusPending},
		{"other_movement", []model.MovementRecord{mov(day(2023, 3, 1), "Mudança de turno", model.MovementOther)}, model.StatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := run(t, Input{Exams: aprilExams(), Movements: tt.movs})
			r := only(t, out)
			if r.Status != tt.status {
				t.Fatalf("status = %s, want %s", r.Status, tt.status)
			}
			if tt.status == model.StatusInactive {
				if r.Reason != "Óbito" {
					t.Errorf("reason = %q", r.Reason)
				}
				if out.ActivePatients != 0 || out.TotalPatients != 1 {
					t.Errorf("counts: total %d active %d", out.TotalPatients, out.ActivePatients)
				}
			}
		})
	}
}

func TestCycleStartFallback(t *testing.T) {
	exams := []model.ExamRecord{
		exam("PTH", day(2023, 1, 10)),
		exam("Calcio", day(2023, 4, 5)),
	}
	out := run(t, Input{Exams: exams})
	r := only(t, out)
	if !r.CycleStartApproximated {
		t.Fatal("cycle start should be approximated")
	}
	if r.CycleStart == nil || !r.CycleStart.Equal(day(2023, 1, 10)) {
		t.Errorf("cycle start = %v", r.CycleStart)
	}
	if out.ApproximatedStarts != 1 {
		t.Errorf("approximated starts = %d", out.ApproximatedStarts)
	}
}

func TestProgramNotStarted(t *testing.T) {
	exams := []model.ExamRecord{withStart(exam("Calcio", day(2023, 5, 3)), day(2023, 5, 1))}
	r := only(t, run(t, Input{Exams: exams}))
	if r.Status != model.StatusInactive || r.Reason != ReasonNotStarted {
		t.Errorf("got %s %q", r.Status, r.Reason)
	}
}

func TestOverrides(t *testing.T) {
	once := model.OverrideSet{}
	once.Add(anaID, "PTH")
	twice := model.NewOverrideSet(april2023, []model.ManualOverride{
		{PatientID: anaID, Exam: "PTH", Period: april2023},
		{PatientID: anaID, Exam: "PTH", Period: april2023},
	})

	a := only(t, run(t, Input{Exams: aprilExams(), Overrides: once}))
	b := only(t, run(t, Input{Exams: aprilExams(), Overrides: twice}))
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("applying an override twice changed the result:\n%+v\n%+v", a, b)
	}
	for _, p := range append(a.MandatoryPending, a.OptionalPending...) {
		if p.Exam == "PTH" {
			t.Fatal("overridden exam must not be pending")
		}
	}
	if len(a.ManuallyResolved) != 1 || a.ManuallyResolved[0].Exam != "PTH" {
		t.Errorf("manually resolved = %+v", a.ManuallyResolved)
	}
	if a.Status != model.StatusCompliant {
		t.Errorf("status = %s", a.Status)
	}
	if !strings.Contains(a.Summary, "1 resolved manually.") {
		t.Errorf("summary = %q", a.Summary)
	}

	other := model.OverrideSet{}
	other.Add("999", "PTH")
	c := only(t, run(t, Input{Exams: aprilExams(), Overrides: other}))
	if c.Status != model.StatusPending {
		t.Error("another patient's override must not apply")
	}
}

func TestCollectedBeatsOverride(t *testing.T) {
	ov := model.OverrideSet{}
	ov.Add(anaID, "Calcio")
	r := only(t, run(t, Input{Exams: aprilExams(), Overrides: ov}))
	if len(r.ManuallyResolved) != 0 {
		t.Errorf("exam collected this month should not be listed as resolved: %+v", r.ManuallyResolved)
	}
}

func TestConditionalRules(t *testing.T) {
	set := testRules()
	set["PTH"] = []rules.Rule{
		{Period: rules.FirstYear, Frequency: rules.NotBilled, Kind: rules.Optional},
		{Period: rules.Always, Frequency: rules.Quarterly, Kind: rules.Mandatory},
	}
	r := only(t, run(t, Input{Exams: aprilExams(), Rules: set}))
	for _, p := range r.MandatoryPending {
		if p.Exam == "PTH" {
			t.Fatal("PTH is not billed in the first year")
		}
	}
}

func TestFutureRowsIgnored(t *testing.T) {
	exams := append(aprilExams(), exam("PTH", day(2023, 6, 1)))
	r := only(t, run(t, Input{Exams: exams}))
	if got := pendingNames(r.MandatoryPending); !reflect.DeepEqual(got, []string{"PTH"}) {
		t.Errorf("rows after the reference date must be ignored, pending = %v", got)
	}
}

func TestLaterProgramStartIgnored(t *testing.T) {
	exams := append(aprilExams(), withStart(exam("Calcio", day(2023, 6, 3)), day(2023, 6, 1)))
	r := only(t, run(t, Input{Exams: exams}))
	if r.Status != model.StatusPending {
		t.Fatalf("status = %s %q, want pending", r.Status, r.Reason)
	}
	if r.CycleStart == nil || !r.CycleStart.Equal(day(2023, 1, 1)) {
		t.Errorf("cycle start = %v, want 2023-01-01", r.CycleStart)
	}
	if r.CycleMonth != 4 || r.CycleStartApproximated {
		t.Errorf("cycle month = %d, approximated = %v", r.CycleMonth, r.CycleStartApproximated)
	}

	// Only a later row carries the start: fall back to the earliest exam.
	exams = []model.ExamRecord{
		exam("PTH", day(2023, 1, 10)),
		exam("Calcio", day(2023, 4, 5)),
		withStart(exam("Calcio", day(2023, 6, 3)), day(2023, 6, 1)),
	}
	r = only(t, run(t, Input{Exams: exams}))
	if r.Status == model.StatusInactive {
		t.Fatalf("status = %s %q", r.Status, r.Reason)
	}
	if !r.CycleStartApproximated || !r.CycleStart.Equal(day(2023, 1, 10)) {
		t.Errorf("cycle start = %v, approximated = %v", r.CycleStart, r.CycleStartApproximated)
	}
}

func TestDeterminism(t *testing.T) {
	var exams []model.ExamRecord
	for i, name := range []string{"Ana", "Bruno", "Carla", "Davi", "Eva"} {
		id := strings.Repeat("0", 14) + string(rune('1'+i))
		start := day(2022, time.Month(1+i*2), 1)
		exams = append(exams,
			model.ExamRecord{PatientName: name, PatientID: id, Exam: "Calcio", Date: day(2023, 4, 2), Result: "1", ProgramStart: &start},
			model.ExamRecord{PatientName: name, PatientID: id, Exam: "PTH", Date: day(2022, 12, 1+i), Result: "1"},
		)
	}
	in := Input{Exams: exams}
	a := run(t, in)
	b := run(t, in)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("two runs over the same input differ")
	}
	if a.TotalPatients != 5 {
		t.Errorf("total = %d", a.TotalPatients)
	}
}

func TestRunErrors(t *testing.T) {
	t.Run("empty_rules", func(t *testing.T) {
		_, err := Run(context.Background(), Input{Period: april2023, Rules: rules.Set{}, Exams: aprilExams()}, Options{})
		if !errors.Is(err, rules.ErrEmptyRuleSet) {
			t.Errorf("expected ErrEmptyRuleSet, got %v", err)
		}
	})
	t.Run("missing_period", func(t *testing.T) {
		_, err := Run(context.Background(), Input{Rules: testRules()}, Options{})
		if !errors.Is(err, ErrNoPeriod) {
			t.Errorf("expected ErrNoPeriod, got %v", err)
		}
	})
	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		out, err := Run(ctx, Input{Period: april2023, Rules: testRules(), Exams: aprilExams()}, Options{})
		if !errors.Is(err, context.Canceled) || out != nil {
			t.Errorf("expected context.Canceled and no output, got %v, %v", out, err)
		}
	})
}

func TestOutputHelpers(t *testing.T) {
	exams := append(aprilExams(),
		model.ExamRecord{PatientName: "Bruno", PatientID: "2", Exam: "Calcio", Date: day(2023, 1, 3), Result: "1"},
	)
	out := run(t, Input{Exams: exams})
	sorted := out.Sorted()
	if len(sorted) != 2 || sorted[0].Patient.Name != anaName {
		t.Fatalf("sorted = %+v", sorted)
	}
	counts := out.Counts()
	if counts[model.StatusPending] != 1 || counts[model.StatusCollectionPending] != 1 {
		t.Errorf("counts = %v", counts)
	}
	if got := out.Filter([]model.Status{model.StatusCollectionPending}, ""); len(got) != 1 || got[0].Patient.Name != "Bruno" {
		t.Errorf("filter by status = %+v", got)
	}
	if got := out.Filter(nil, "lima"); len(got) != 1 || got[0].Patient.Name != anaName {
		t.Errorf("filter by name = %+v", got)
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		r    model.AnalysisResult
		want string
	}{
		{model.AnalysisResult{Status: model.StatusInactive, Reason: "Óbito"}, "Inactive: Óbito."},
		{model.AnalysisResult{Status: model.StatusHospitalized}, "Hospitalized on the reference date."},
		{model.AnalysisResult{Status: model.StatusCompliant}, "No mandatory exam pending for this month."},
		{model.AnalysisResult{
			Status:           model.StatusPending,
			MandatoryPending: make([]model.PendingExam, 2),
			OptionalPending:  make([]model.PendingExam, 1),
			ManuallyResolved: make([]model.ResolvedExam, 3),
		}, "2 mandatory exam(s) pending. 1 optional suggested. 3 resolved manually."},
	}
	for _, tt := range tests {
		if got := Summarize(&tt.r); got != tt.want {
			t.Errorf("Summarize(%s) = %q, want %q", tt.r.Status, got, tt.want)
		}
	}
}
