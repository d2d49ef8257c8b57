package model

// ExamRow mirrors the Parquet schema of a long-format exam export: one row
// per performed exam. Dates are text so the same day-first parser handles
// every input format.
type ExamRow struct {
	PatientName  string  `parquet:"patient_name"`
	PatientID    string  `parquet:"patient_id"`
	Exam         string  `parquet:"exam"`
	Date         string  `parquet:"date"`
	Result       *string `parquet:"result,optional"`
	Clinic       *string `parquet:"clinic,optional"`
	ProgramStart *string `parquet:"program_start,optional"`
}

// ExamRowColumns lists the columns a long-format file must carry.
var ExamRowColumns = []string{"patient_name", "patient_id", "exam", "date"}

// Raw converts the row to the shape the normalizer accepts.
func (r *ExamRow) Raw() RawExam {
	return RawExam{
		Name:         r.PatientName,
		ID:           r.PatientID,
		Date:         r.Date,
		Exam:         r.Exam,
		Result:       derefStr(r.Result),
		Clinic:       derefStr(r.Clinic),
		ProgramStart: derefStr(r.ProgramStart),
	}
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
