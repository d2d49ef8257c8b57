// mkfixture generates a deterministic synthetic input set: a wide exam sheet,
// a movements sheet and a hospitalizations sheet, plus an optional long-format
// Parquet copy of the exam rows.
// Usage: go run ./cmd/mkfixture --out testdata/fixture --patients 40 --period 2023-04
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	goparquet "github.com/parquet-go/parquet-go"

	"github.com/nefron/examcheck/internal/catalog"
	"github.com/nefron/examcheck/internal/model"
	"github.com/nefron/examcheck/internal/parquetread"
)

const dateLayout = "02/01/2006"

var (
	firstNames = []string{"Ana", "Bruno", "Carla", "Daniel", "Elisa", "Fábio", "Gabriela", "Heitor", "Íris", "João", "Karina", "Lucas", "Marta", "Nícolas", "Otávio", "Paula"}
	lastNames  = []string{"Silva", "Souza", "Oliveira", "Pereira", "Lima", "Conceição", "Araújo", "Gonçalves", "Ribeiro", "Almeida"}
	exitTypes  = []string{"Óbito", "Transferência de centro", "Transplante"}
)

type patient struct {
	name   string
	cns    string
	clinic string
	start  time.Time
}

func main() {
	out := flag.String("out", "testdata/fixture", "output directory")
	patients := flag.Int("patients", 40, "number of synthetic patients")
	periodFlag := flag.String("period", "", "reference month YYYY-MM (default: current month)")
	seed := flag.Uint64("seed", 1, "random seed")
	withParquet := flag.Bool("parquet", false, "also write exams.parquet in long format")
	checkOnly := flag.String("check", "", "only print stats of this long-format parquet file, don't write")
	flag.Parse()

	if *checkOnly != "" {
		check(*checkOnly)
		return
	}

	period := model.PeriodOf(time.Now())
	if *periodFlag != "" {
		p, err := model.ParsePeriod(*periodFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "period: %v\n", err)
			os.Exit(1)
		}
		period = p
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir: %v\n", err)
		os.Exit(1)
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	cat := catalog.Default()

	labels := make([]string, len(cat.Exams))
	for i, e := range cat.Exams {
		labels[i] = e.Name
		if len(e.Aliases) > 0 {
			labels[i] = e.Aliases[0]
		}
	}

	list := make([]patient, *patients)
	for i := range list {
		list[i] = patient{
			name:   firstNames[rng.IntN(len(firstNames))] + " " + lastNames[rng.IntN(len(lastNames))] + " " + lastNames[rng.IntN(len(lastNames))],
			cns:    fmt.Sprintf("%015d", 700000000000000+rng.Int64N(99999999999999)),
			clinic: cat.Clinics[rng.IntN(len(cat.Clinics))],
			start:  period.AddMonths(-rng.IntN(36)).FirstDay().AddDate(0, 0, rng.IntN(28)),
		}
	}

	// Wide sheet: one row per patient visit, one column per exam.
	header := append([]string{"Nome", "CNS", "Data exame", "Clinica", "prog. dial"}, labels...)
	var wide [][]string
	var long []model.ExamRow
	for _, p := range list {
		for back := 5; back >= 0; back-- {
			month := period.AddMonths(-back)
			if month.FirstDay().AddDate(0, 1, -1).Before(p.start) {
				continue
			}
			day := month.FirstDay().AddDate(0, 0, rng.IntN(20))
			row := []string{p.name, p.cns, day.Format(dateLayout), p.clinic, p.start.Format(dateLayout)}
			for i := range labels {
				if rng.Float64() > 0.55 {
					row = append(row, "")
					continue
				}
				value := strconv.FormatFloat(1+rng.Float64()*20, 'f', 1, 64)
				row = append(row, value)
				clinic, start := p.clinic, p.start.Format(dateLayout)
				long = append(long, model.ExamRow{
					PatientName:  p.name,
					PatientID:    p.cns,
					Exam:         labels[i],
					Date:         day.Format(dateLayout),
					Result:       &value,
					Clinic:       &clinic,
					ProgramStart: &start,
				})
			}
			wide = append(wide, row)
		}
	}
	mustWriteCSV(filepath.Join(*out, "exams.csv"), header, wide)

	var movements [][]string
	var stays [][]string
	for _, p := range list {
		movements = append(movements, []string{p.name, p.cns, p.start.Format(dateLayout), "Início de programa"})
		switch r := rng.Float64(); {
		case r < 0.08:
			d := period.FirstDay().AddDate(0, 0, rng.IntN(25))
			movements = append(movements, []string{p.name, p.cns, d.Format(dateLayout), exitTypes[rng.IntN(len(exitTypes))]})
		case r < 0.12:
			leave := period.AddMonths(-2).FirstDay().AddDate(0, 0, rng.IntN(25))
			back := period.AddMonths(-1).FirstDay().AddDate(0, 0, rng.IntN(25))
			movements = append(movements,
				[]string{p.name, p.cns, leave.Format(dateLayout), "Transferência de centro"},
				[]string{p.name, p.cns, back.Format(dateLayout), "Retorno"})
		}
		if rng.Float64() < 0.1 {
			adm := period.FirstDay().AddDate(0, 0, rng.IntN(20))
			discharge := ""
			if rng.IntN(2) == 0 {
				discharge = adm.AddDate(0, 0, 2+rng.IntN(5)).Format(dateLayout)
			}
			stays = append(stays, []string{p.name, adm.Format(dateLayout), discharge, "Clínica"})
		}
	}
	mustWriteCSV(filepath.Join(*out, "movements.csv"), []string{"Nome", "CNS", "Data", "Movimentação"}, movements)
	mustWriteCSV(filepath.Join(*out, "hospitalizations.csv"), []string{"Nome", "Data internação", "Data alta", "Tipo"}, stays)

	if *withParquet {
		path := filepath.Join(*out, "exams.parquet")
		f, err := os.Create(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "create output: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		writer := goparquet.NewGenericWriter[model.ExamRow](f)
		if _, err := writer.Write(long); err != nil {
			fmt.Fprintf(os.Stderr, "write: %v\n", err)
			os.Exit(1)
		}
		if err := writer.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "close writer: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Wrote %d patients, %d visit rows, %d exam results for %s to %s\n",
		len(list), len(wide), len(long), period, *out)
	fmt.Printf("  %-18s %d\n", "movements", len(movements))
	fmt.Printf("  %-18s %d\n", "hospitalizations", len(stays))
}

// check reads a long-format file back the way an analysis would.
func check(path string) {
	r, err := parquetread.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open: %v\n", err)
		os.Exit(1)
	}
	defer r.Close()
	if err := parquetread.ValidateSchema(r.Schema()); err != nil {
		fmt.Fprintf(os.Stderr, "schema: %v\n", err)
		os.Exit(1)
	}
	rows, err := r.ReadAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "read: %v\n", err)
		os.Exit(1)
	}
	patients := make(map[string]bool)
	exams := make(map[string]int)
	for _, row := range rows {
		patients[row.ID] = true
		exams[row.Exam]++
	}
	fmt.Printf("Total: %d rows, %d patients, %d exam columns\n", len(rows), len(patients), len(exams))
}

func mustWriteCSV(path string, header []string, rows [][]string) {
	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create %s: %v\n", path, err)
		os.Exit(1)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	w.Comma = ';'
	if err := w.Write(header); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", path, err)
		os.Exit(1)
	}
	if err := w.WriteAll(rows); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", path, err)
		os.Exit(1)
	}
}
