package dataset

import (
	"context"
	"fmt"

	"workout-recommender/internal/ml"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver
)

const createExamplesTable = `
CREATE TABLE IF NOT EXISTS training_examples (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	age REAL NOT NULL,
	fitness_level TEXT NOT NULL,
	goal TEXT NOT NULL,
	experience_years REAL NOT NULL,
	bmi REAL NOT NULL,
	weekly_workouts REAL NOT NULL,
	avg_workout_duration REAL NOT NULL,
	recommended_plan TEXT NOT NULL
);`

const selectExamples = `
SELECT age, fitness_level, goal, experience_years, bmi, weekly_workouts,
	avg_workout_duration, recommended_plan
FROM training_examples
ORDER BY id`

const insertExample = `
INSERT INTO training_examples (age, fitness_level, goal, experience_years, bmi,
	weekly_workouts, avg_workout_duration, recommended_plan)
VALUES (:age, :fitness_level, :goal, :experience_years, :bmi,
	:weekly_workouts, :avg_workout_duration, :recommended_plan)`

// SQLSource reads examples from the training_examples table of a SQLite file.
type SQLSource struct {
	Path string
}

// NewSQLSource returns a source reading the SQLite database at path.
func NewSQLSource(path string) *SQLSource {
	return &SQLSource{Path: path}
}

// Name implements Source.
func (s *SQLSource) Name() string { return "sqlite:" + s.Path }

// Load implements Source.
func (s *SQLSource) Load(ctx context.Context) ([]ml.TrainingExample, error) {
	db, err := openSQLite(ctx, s.Path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var rows []Row
	if err := db.SelectContext(ctx, &rows, selectExamples); err != nil {
		return nil, fmt.Errorf("select training examples: %w", err)
	}
	return ValidateRows(rows)
}

// WriteSQL appends rows to the training_examples table, creating it if needed.
func WriteSQL(ctx context.Context, path string, rows []Row) error {
	db, err := openSQLite(ctx, path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	for i, r := range rows {
		if _, err := tx.NamedExecContext(ctx, insertExample, r); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func openSQLite(ctx context.Context, path string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, createExamplesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("init training_examples table: %w", err)
	}
	return db, nil
}
