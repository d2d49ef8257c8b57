package analysis

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/nefron/examcheck/internal/importer"
	"github.com/nefron/examcheck/internal/model"
	"github.com/nefron/examcheck/internal/normalize"
)

// maxLoggedUnknown caps the unknown exam labels listed in the log line.
const maxLoggedUnknown = 20

// Prepared is a dataset cleaned and mapped onto the exam dictionary.
type Prepared struct {
	Exams            []model.ExamRecord
	Movements        []model.MovementRecord
	Hospitalizations []model.Hospitalization

	RowsRead           int64
	RowsDropped        int64
	RowsFilteredClinic int64
	RowsUnknownExam    int64
	// UnknownExams lists the distinct labels that matched no dictionary entry.
	UnknownExams []string
}

// Prepare normalizes ds, keeps the rows of the profile's clinics and maps
// exam labels to canonical names. Rows with an exam outside the dictionary
// are dropped.
func Prepare(ds *importer.Dataset, profile model.Profile, dictionary []model.Exam, log zerolog.Logger) *Prepared {
	p := &Prepared{RowsRead: int64(len(ds.Exams))}

	exams, dropped := normalize.Exams(ds.Exams)
	p.RowsDropped = int64(dropped)
	log.Debug().Int("rows", len(exams)).Int("dropped", dropped).Msg("exam rows normalized")

	if ds.HasClinic && len(profile.Clinics) > 0 {
		allowed := make(map[string]bool, len(profile.Clinics))
		for _, c := range profile.Clinics {
			allowed[normalize.Fold(c)] = true
		}
		kept := exams[:0]
		for _, e := range exams {
			if allowed[normalize.Fold(e.Clinic)] {
				kept = append(kept, e)
			}
		}
		p.RowsFilteredClinic = int64(len(exams) - len(kept))
		exams = kept
		log.Debug().
			Strs("clinics", profile.Clinics).
			Int("rows", len(exams)).
			Int64("filtered", p.RowsFilteredClinic).
			Msg("clinic filter applied")
	}

	index := model.AliasIndex(dictionary, normalize.Fold)
	unknown := make(map[string]bool)
	mapped := exams[:0]
	for _, e := range exams {
		canonical, ok := index[normalize.Fold(e.Exam)]
		if !ok {
			unknown[e.Exam] = true
			p.RowsUnknownExam++
			continue
		}
		e.Exam = canonical
		mapped = append(mapped, e)
	}
	p.Exams = mapped
	for label := range unknown {
		p.UnknownExams = append(p.UnknownExams, label)
	}
	sort.Strings(p.UnknownExams)
	if len(p.UnknownExams) > 0 {
		logged := p.UnknownExams
		if len(logged) > maxLoggedUnknown {
			logged = logged[:maxLoggedUnknown]
		}
		log.Info().
			Int64("rows", p.RowsUnknownExam).
			Int("labels", len(p.UnknownExams)).
			Strs("examples", logged).
			Msg("exam labels not in dictionary, rows dropped")
	}

	var movDropped, stayDropped int
	p.Movements, movDropped = normalize.Movements(ds.Movements)
	p.Hospitalizations, stayDropped = normalize.Hospitalizations(ds.Hospitalizations)

	log.Info().
		Int64("rows_read", p.RowsRead).
		Int("rows_analysed", len(p.Exams)).
		Int64("rows_dropped", p.RowsDropped).
		Int64("rows_filtered_clinic", p.RowsFilteredClinic).
		Int64("rows_unknown_exam", p.RowsUnknownExam).
		Int("movements", len(p.Movements)).
		Int("movements_dropped", movDropped).
		Int("hospitalizations", len(p.Hospitalizations)).
		Int("hospitalizations_dropped", stayDropped).
		Msg("inputs prepared")
	return p
}
