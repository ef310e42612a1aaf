package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"workout-recommender/internal/ml"
)

// CSVHeader is the column order written by WriteCSV. ReadCSV accepts the
// columns in any order as long as all of them are present.
var CSVHeader = []string{
	ml.AttrAge,
	ml.AttrFitnessLevel,
	ml.AttrGoal,
	ml.AttrExperienceYears,
	ml.AttrBMI,
	ml.AttrWeeklyWorkouts,
	ml.AttrAvgWorkoutDuration,
	ml.LabelAttribute,
}

// CSVSource reads examples from a CSV file with a header row.
type CSVSource struct {
	Path string
}

// NewCSVSource returns a source reading path.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{Path: path}
}

// Name implements Source.
func (s *CSVSource) Name() string { return "csv:" + filepath.Base(s.Path) }

// Load implements Source.
func (s *CSVSource) Load(ctx context.Context) ([]ml.TrainingExample, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	rows, err := ReadCSV(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}
	return ValidateRows(rows)
}

// ReadCSV parses rows from r.
func ReadCSV(ctx context.Context, r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, name := range CSVHeader {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var rows []Row
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		var parseErr error
		num := func(name string) float64 {
			if parseErr != nil {
				return 0
			}
			v, err := strconv.ParseFloat(rec[col[name]], 64)
			if err != nil {
				parseErr = fmt.Errorf("line %d: column %s: %w", line, name, err)
			}
			return v
		}
		row := Row{
			Age:                num(ml.AttrAge),
			FitnessLevel:       rec[col[ml.AttrFitnessLevel]],
			Goal:               rec[col[ml.AttrGoal]],
			ExperienceYears:    num(ml.AttrExperienceYears),
			BMI:                num(ml.AttrBMI),
			WeeklyWorkouts:     num(ml.AttrWeeklyWorkouts),
			AvgWorkoutDuration: num(ml.AttrAvgWorkoutDuration),
			RecommendedPlan:    rec[col[ml.LabelAttribute]],
		}
		if parseErr != nil {
			return nil, parseErr
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteCSV writes rows with CSVHeader as the first line.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, r := range rows {
		rec := []string{
			f(r.Age),
			r.FitnessLevel,
			r.Goal,
			f(r.ExperienceYears),
			f(r.BMI),
			f(r.WeeklyWorkouts),
			f(r.AvgWorkoutDuration),
			r.RecommendedPlan,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
