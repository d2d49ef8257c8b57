package importer

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	goparquet "github.com/parquet-go/parquet-go"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/nefron/examcheck/internal/model"
)

const wideCSV = "Nome;CNS;CPF;Data exame;Clinica;prog. dial;Ca;PTH;HB\n" +
	"Ana Lima;12345;111.222.333-44;05/04/2023;Clinica do Rim;01/01/2023;9,1;;11\n" +
	"Bruno Reis;67890;;10/01/2023;Instituto do Rim;;;350;\n"

func TestWideExamsCSV(t *testing.T) {
	tbl, err := ReadCSV([]byte(wideCSV), 0)
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	sheet, err := WideExams(tbl)
	if err != nil {
		t.Fatalf("WideExams: %v", err)
	}
	if !sheet.HasClinic {
		t.Error("expected clinic column")
	}
	wantCols := []string{"Ca", "PTH", "HB"}
	if len(sheet.Columns) != len(wantCols) {
		t.Fatalf("columns = %v, want %v", sheet.Columns, wantCols)
	}
	for i := range wantCols {
		if sheet.Columns[i] != wantCols[i] {
			t.Errorf("column %d = %q, want %q", i, sheet.Columns[i], wantCols[i])
		}
	}
	if len(sheet.Exams) != 3 {
		t.Fatalf("expected 3 melted cells, got %d: %+v", len(sheet.Exams), sheet.Exams)
	}
	first := sheet.Exams[0]
	if first.Exam != "Ca" || first.Result != "9,1" || first.ProgramStart != "01/01/2023" || first.Clinic != "Clinica do Rim" {
		t.Errorf("first cell = %+v", first)
	}
	if sheet.Exams[2].Exam != "PTH" || sheet.Exams[2].ID != "67890" {
		t.Errorf("third cell = %+v", sheet.Exams[2])
	}
}

func TestWideExamsMissingColumn(t *testing.T) {
	tbl, err := ReadCSV([]byte("Nome;Data;Ca\nAna;05/04/2023;9\n"), ';')
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if _, err := WideExams(tbl); !errors.Is(err, ErrMissingColumn) {
		t.Errorf("expected ErrMissingColumn, got %v", err)
	}
}

func TestReadCSVEncodings(t *testing.T) {
	t.Run("utf8_bom", func(t *testing.T) {
		data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Nome;CNS;Data;Movimentação\nAna;1;01/03/2023;Óbito\n")...)
		tbl, err := ReadCSV(data, ';')
		if err != nil {
			t.Fatalf("ReadCSV: %v", err)
		}
		movs, err := Movements(tbl)
		if err != nil {
			t.Fatalf("Movements: %v", err)
		}
		if len(movs) != 1 || movs[0].Type != "Óbito" {
			t.Errorf("movements = %+v", movs)
		}
	})
	t.Run("windows_1252", func(t *testing.T) {
		enc, err := charmap.Windows1252.NewEncoder().Bytes([]byte("Nome;CNS;Data;Movimentação\nAna;1;01/03/2023;Transferência de centro\n"))
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		tbl, err := ReadCSV(enc, ';')
		if err != nil {
			t.Fatalf("ReadCSV: %v", err)
		}
		movs, err := Movements(tbl)
		if err != nil {
			t.Fatalf("Movements: %v", err)
		}
		if movs[0].Type != "Transferência de centro" {
			t.Errorf("type = %q", movs[0].Type)
		}
	})
}

func TestHospitalizationsSheet(t *testing.T) {
	tbl, err := ReadCSV([]byte("NOME;Data Internação;Data Alta;Tipo\nAna;20/04/2023;;Clínica\n"), ';')
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	stays, err := Hospitalizations(tbl)
	if err != nil {
		t.Fatalf("Hospitalizations: %v", err)
	}
	if len(stays) != 1 || stays[0].Admission != "20/04/2023" || stays[0].Discharge != "" || stays[0].Type != "Clínica" {
		t.Errorf("stays = %+v", stays)
	}
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"Nome", "CNS", "Data exame", "Ca"},
		{"Ana Lima", "123456789012345", 45021, "9.1"},
	}
	for r, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, r+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	f.Close()

	tbl, err := ReadXLSX(buf.Bytes())
	if err != nil {
		t.Fatalf("ReadXLSX: %v", err)
	}
	exams, err := WideExams(tbl)
	if err != nil {
		t.Fatalf("WideExams: %v", err)
	}
	if len(exams.Exams) != 1 {
		t.Fatalf("expected 1 cell, got %d", len(exams.Exams))
	}
	// Serial 45021 is 2023-04-05.
	if got := exams.Exams[0].Date; got != "05/04/2023" {
		t.Errorf("date = %q, want 05/04/2023", got)
	}
}

func TestExcelDate(t *testing.T) {
	if got := excelDate("45021"); got != "05/04/2023" {
		t.Errorf("excelDate(45021) = %q", got)
	}
	if got := excelDate("05/04/2023"); got != "05/04/2023" {
		t.Errorf("text dates must pass through, got %q", got)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	examsPath := filepath.Join(dir, "exames.csv")
	movPath := filepath.Join(dir, "mov.csv")
	os.WriteFile(examsPath, []byte(wideCSV), 0644)
	os.WriteFile(movPath, []byte("Nome;CNS;Data;Movimentação\nAna Lima;12345;01/02/2023;Retorno\n"), 0644)

	ex, err := ReadSource(examsPath)
	if err != nil {
		t.Fatalf("ReadSource: %v", err)
	}
	mv, _ := ReadSource(movPath)
	none, err := ReadSource("")
	if err != nil || none != nil {
		t.Fatalf("empty path should yield nil source, got %v, %v", none, err)
	}

	ds, err := Load(Sources{Exams: ex, Movements: mv}, Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ds.Format != FormatCSV || len(ds.Exams) != 3 || len(ds.Movements) != 1 || ds.Hospitalizations != nil {
		t.Errorf("dataset = %+v", ds)
	}

	h1 := Sources{Exams: ex}.Hash()
	h2 := Sources{Exams: ex, Movements: mv}.Hash()
	if h1 == h2 {
		t.Error("hash should change with the movements file")
	}

	if _, err := Load(Sources{}, Options{}); err == nil {
		t.Error("expected error without exam file")
	}
	if _, err := Load(Sources{Exams: &Source{Name: "x.pdf"}}, Options{}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestLoadParquet(t *testing.T) {
	clinic := "Clinica do Rim"
	var buf bytes.Buffer
	w := goparquet.NewGenericWriter[model.ExamRow](&buf)
	if _, err := w.Write([]model.ExamRow{
		{PatientName: "Ana", PatientID: "1", Exam: "Calcio", Date: "05/04/2023", Clinic: &clinic},
	}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	ds, err := Load(Sources{Exams: &Source{Name: "exams.parquet", Data: buf.Bytes()}}, Options{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ds.Format != FormatParquet || len(ds.Exams) != 1 || !ds.HasClinic {
		t.Errorf("dataset = %+v", ds)
	}
}
