// Package dataset supplies labeled training examples to the engine. Every
// source produces the same ml.TrainingExample values so the training path does
// not care whether data was generated, read from a file or pulled from a
// remote service.
package dataset

import (
	"context"
	"fmt"
	"sync"

	"workout-recommender/internal/ml"

	"github.com/go-playground/validator/v10"
)

// Source produces training examples.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]ml.TrainingExample, error)
}

// Row is the flat wire form of a labeled example used by the CSV, SQL and
// HTTP sources.
type Row struct {
	Age                float64 `json:"age" db:"age" validate:"gte=0,lte=120"`
	FitnessLevel       string  `json:"fitness_level" db:"fitness_level" validate:"required"`
	Goal               string  `json:"goal" db:"goal" validate:"required"`
	ExperienceYears    float64 `json:"experience_years" db:"experience_years" validate:"gte=0,lte=80"`
	BMI                float64 `json:"bmi" db:"bmi" validate:"gt=0,lte=100"`
	WeeklyWorkouts     float64 `json:"weekly_workouts" db:"weekly_workouts" validate:"gte=0,lte=21"`
	AvgWorkoutDuration float64 `json:"avg_workout_duration" db:"avg_workout_duration" validate:"gte=0,lte=600"`
	RecommendedPlan    string  `json:"recommended_plan" db:"recommended_plan" validate:"required"`
}

// Profile returns the feature part of the row.
func (r Row) Profile() ml.UserProfile {
	return ml.UserProfile{
		Age:                r.Age,
		FitnessLevel:       r.FitnessLevel,
		Goal:               r.Goal,
		ExperienceYears:    r.ExperienceYears,
		BMI:                r.BMI,
		WeeklyWorkouts:     r.WeeklyWorkouts,
		AvgWorkoutDuration: r.AvgWorkoutDuration,
	}
}

// Example converts the row into a training example.
func (r Row) Example() ml.TrainingExample {
	return ml.TrainingExample{Features: r.Profile().Record(), Label: r.RecommendedPlan}
}

// RowFromExample flattens an example. It fails when a feature is missing or
// has the wrong type.
func RowFromExample(ex ml.TrainingExample) (Row, error) {
	if err := ml.WorkoutSchema().Check(ex.Features); err != nil {
		return Row{}, err
	}
	num := func(name string) float64 {
		v, _ := ml.ToFloat(ex.Features[name])
		return v
	}
	return Row{
		Age:                num(ml.AttrAge),
		FitnessLevel:       ex.Features[ml.AttrFitnessLevel].(string),
		Goal:               ex.Features[ml.AttrGoal].(string),
		ExperienceYears:    num(ml.AttrExperienceYears),
		BMI:                num(ml.AttrBMI),
		WeeklyWorkouts:     num(ml.AttrWeeklyWorkouts),
		AvgWorkoutDuration: num(ml.AttrAvgWorkoutDuration),
		RecommendedPlan:    ex.Label,
	}, nil
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func rowValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks ranges and required fields.
func (r Row) Validate() error {
	return rowValidator().Struct(r)
}

// ValidateRows converts rows into examples, rejecting the whole batch on the
// first invalid row.
func ValidateRows(rows []Row) ([]ml.TrainingExample, error) {
	examples := make([]ml.TrainingExample, len(rows))
	for i, r := range rows {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		examples[i] = r.Example()
	}
	return examples, nil
}
