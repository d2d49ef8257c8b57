package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nefron/examcheck/internal/model"
)

func TestObserveRun(t *testing.T) {
	m := New()
	sum := &model.RunSummary{
		RowsRead:      10,
		RowsAnalysed:  8,
		RowsDropped:   2,
		DurationTotal: 40 * time.Millisecond,
		StatusCounts:  map[model.Status]int{model.StatusPending: 3, model.StatusCompliant: 1},
	}
	m.ObserveRun(sum, nil)
	m.ObserveRun(nil, errors.New("boom"))

	if got := testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("completed")); got != 1 {
		t.Errorf("completed = %v", got)
	}
	if got := testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed = %v", got)
	}
	if got := testutil.ToFloat64(m.RowsTotal.WithLabelValues("analysed")); got != 8 {
		t.Errorf("analysed rows = %v", got)
	}
	if got := testutil.ToFloat64(m.Patients.WithLabelValues("pending")); got != 3 {
		t.Errorf("pending patients = %v", got)
	}
	if got := testutil.ToFloat64(m.Patients.WithLabelValues("inactive")); got != 0 {
		t.Errorf("inactive patients = %v", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveRun(&model.RunSummary{}, nil)
	m.ObserveOverride("added")
	m.SetPatients(nil)
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveOverride("added")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `examcheck_overrides_total{action="added"} 1`) {
		t.Errorf("metrics body missing override counter:\n%s", rec.Body.String())
	}
}
