package importer

import (
	"strings"

	"github.com/nefron/examcheck/internal/model"
	"github.com/nefron/examcheck/internal/normalize"
)

// Column labels accepted for each field, compared folded.
var (
	labelsName         = []string{"Nome", "Paciente", "Nome do paciente"}
	labelsID           = []string{"CNS", "Cartão SUS", "Cartão Nacional de Saúde"}
	labelsExamDate     = []string{"Data exame", "Data do exame", "Data"}
	labelsClinic       = []string{"Clinica", "Unidade"}
	labelsProgramStart = []string{"prog. dial", "prog dial", "Início de programa", "Data início diálise"}
	labelsIgnored      = []string{"CPF"}

	labelsMovementDate = []string{"Data", "Data movimentação"}
	labelsMovementType = []string{"Movimentação", "Movimento", "Tipo"}

	labelsAdmission = []string{"Data internação", "Data de internação", "Internação", "Admissão"}
	labelsDischarge = []string{"Data alta", "Data de alta", "Alta"}
	labelsStayType  = []string{"Tipo", "Motivo", "Tipo internação"}
)

// ExamSheet holds the melted rows of a wide exam sheet.
type ExamSheet struct {
	Exams []model.RawExam
	// Columns lists the exam column labels found, in sheet order.
	Columns []string
	// HasClinic is set when the sheet carries a clinic column.
	HasClinic bool
}

// WideExams melts a wide exam sheet: one row per patient visit with one
// column per exam. Every non-empty exam cell becomes a RawExam; empty
// cells are skipped.
func WideExams(t *Table) (*ExamSheet, error) {
	nameCol, err := t.require("patient name", labelsName...)
	if err != nil {
		return nil, err
	}
	idCol, err := t.require("patient identifier", labelsID...)
	if err != nil {
		return nil, err
	}
	dateCol, err := t.require("exam date", labelsExamDate...)
	if err != nil {
		return nil, err
	}
	clinicCol := t.Column(labelsClinic...)
	startCol := t.Column(labelsProgramStart...)

	skip := map[int]bool{nameCol: true, idCol: true, dateCol: true, clinicCol: true, startCol: true}
	for _, l := range labelsIgnored {
		skip[t.Column(l)] = true
	}

	var examCols []int
	sheet := &ExamSheet{HasClinic: clinicCol >= 0}
	for i, h := range t.Header {
		if skip[i] || headerKey(h) == "" {
			continue
		}
		examCols = append(examCols, i)
		sheet.Columns = append(sheet.Columns, normalizeLabel(h))
	}

	for _, row := range t.Rows {
		base := model.RawExam{
			Name:         cell(row, nameCol),
			ID:           t.idCell(row, idCol),
			Date:         t.dateCell(row, dateCol),
			Clinic:       cell(row, clinicCol),
			ProgramStart: t.dateCell(row, startCol),
		}
		for k, col := range examCols {
			v := cell(row, col)
			if v == "" {
				continue
			}
			e := base
			e.Exam = sheet.Columns[k]
			e.Result = v
			sheet.Exams = append(sheet.Exams, e)
		}
	}
	return sheet, nil
}

// Movements reads a movements sheet.
func Movements(t *Table) ([]model.RawMovement, error) {
	nameCol, err := t.require("patient name", labelsName...)
	if err != nil {
		return nil, err
	}
	idCol, err := t.require("patient identifier", labelsID...)
	if err != nil {
		return nil, err
	}
	dateCol, err := t.require("movement date", labelsMovementDate...)
	if err != nil {
		return nil, err
	}
	typeCol, err := t.require("movement type", labelsMovementType...)
	if err != nil {
		return nil, err
	}

	out := make([]model.RawMovement, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, model.RawMovement{
			Name: cell(row, nameCol),
			ID:   t.idCell(row, idCol),
			Date: t.dateCell(row, dateCol),
			Type: cell(row, typeCol),
		})
	}
	return out, nil
}

// Hospitalizations reads a hospitalizations sheet. The discharge and type
// columns are optional.
func Hospitalizations(t *Table) ([]model.RawHospitalization, error) {
	nameCol, err := t.require("patient name", labelsName...)
	if err != nil {
		return nil, err
	}
	admCol, err := t.require("admission date", labelsAdmission...)
	if err != nil {
		return nil, err
	}
	disCol := t.Column(labelsDischarge...)
	typeCol := t.Column(labelsStayType...)

	out := make([]model.RawHospitalization, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, model.RawHospitalization{
			Name:      cell(row, nameCol),
			Admission: t.dateCell(row, admCol),
			Discharge: t.dateCell(row, disCol),
			Type:      cell(row, typeCol),
		})
	}
	return out, nil
}

// normalizeLabel cleans an exam column label without folding it, so the
// alias lookup later sees the text the clinic wrote.
func normalizeLabel(h string) string {
	return normalize.Name(strings.TrimPrefix(h, "\ufeff"))
}
