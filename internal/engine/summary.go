package engine

import (
	"fmt"
	"strings"

	"github.com/nefron/examcheck/internal/model"
)

// Summarize renders the one-line summary shown next to a patient.
func Summarize(r *model.AnalysisResult) string {
	switch r.Status {
	case model.StatusInactive:
		if r.Reason == "" {
			return "Inactive."
		}
		return fmt.Sprintf("Inactive: %s.", r.Reason)
	case model.StatusHospitalized:
		if r.Reason == "" {
			return "Hospitalized on the reference date."
		}
		return fmt.Sprintf("Hospitalized on the reference date (%s).", r.Reason)
	case model.StatusCollectionPending:
		return MsgCollectionPending
	}

	var b strings.Builder
	if len(r.MandatoryPending) == 0 {
		b.WriteString("No mandatory exam pending for this month.")
	} else {
		fmt.Fprintf(&b, "%d mandatory exam(s) pending.", len(r.MandatoryPending))
	}
	if n := len(r.OptionalPending); n > 0 {
		fmt.Fprintf(&b, " %d optional suggested.", n)
	}
	if n := len(r.ManuallyResolved); n > 0 {
		fmt.Fprintf(&b, " %d resolved manually.", n)
	}
	return b.String()
}
