package model

import "time"

// RunSummary captures metrics from a single analysis run.
type RunSummary struct {
	RunID              string
	Period             Period
	Profile            string
	Routine            string
	InputSHA256        string
	RowsRead           int64
	RowsDropped        int64
	RowsFilteredClinic int64
	RowsUnknownExam    int64
	RowsAnalysed       int64
	TotalPatients      int
	ActivePatients     int
	ApproximatedStarts int
	StatusCounts       map[Status]int
	DurationImport     time.Duration
	DurationPrepare    time.Duration
	DurationEvaluate   time.Duration
	DurationTotal      time.Duration
}
