package dataset

import (
	"context"
	"fmt"
	"math/rand"

	"workout-recommender/internal/common"
	"workout-recommender/internal/ml"
)

// Generator produces a reproducible synthetic training set. The labeling
// rules are one illustrative way to assign plans, not a fitness guideline.
type Generator struct {
	Samples int
	Seed    int64
}

// NewGenerator returns a generator for n samples.
func NewGenerator(n int, seed int64) *Generator {
	return &Generator{Samples: n, Seed: seed}
}

// Name implements Source.
func (g *Generator) Name() string { return "synthetic" }

// Load implements Source.
func (g *Generator) Load(ctx context.Context) ([]ml.TrainingExample, error) {
	if g.Samples <= 0 {
		return nil, fmt.Errorf("generator: sample count must be positive, got %d", g.Samples)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows := g.Rows()
	examples := make([]ml.TrainingExample, len(rows))
	for i, r := range rows {
		examples[i] = r.Example()
	}
	return examples, nil
}

// Rows draws the samples. The same seed always yields the same rows.
//
//	age                  uniform integer in [18, 65)
//	fitness_level, goal  uniform choice
//	experience_years     uniform integer in [0, 20)
//	bmi                  normal, mean 25, std 5
//	weekly_workouts      uniform integer in [1, 7)
//	avg_workout_duration uniform integer in [20, 120)
func (g *Generator) Rows() []Row {
	rnd := rand.New(rand.NewSource(g.Seed))
	rows := make([]Row, g.Samples)
	for i := range rows {
		r := Row{
			Age:                float64(18 + rnd.Intn(47)),
			FitnessLevel:       common.FitnessLevels[rnd.Intn(len(common.FitnessLevels))],
			Goal:               common.Goals[rnd.Intn(len(common.Goals))],
			ExperienceYears:    float64(rnd.Intn(20)),
			BMI:                25 + 5*rnd.NormFloat64(),
			WeeklyWorkouts:     float64(1 + rnd.Intn(6)),
			AvgWorkoutDuration: float64(20 + rnd.Intn(100)),
		}
		r.RecommendedPlan = PlanFor(r.Profile())
		rows[i] = r
	}
	return rows
}

// PlanFor applies the synthetic labeling rules:
//
//   - weight loss with BMI above 25 gets cardio at the user's fitness level;
//   - muscle gain gets strength, levelled by years of experience (2, 5);
//   - endurance gets endurance, levelled by weekly workouts (3, 5);
//   - everything else gets power, levelled by session length (45, 75 minutes).
func PlanFor(p ml.UserProfile) string {
	switch {
	case p.Goal == common.GoalWeightLoss && p.BMI > 25:
		level := p.FitnessLevel
		if level != common.LevelBeginner && level != common.LevelIntermediate {
			level = common.LevelAdvanced
		}
		return common.PlanName(common.PlanCardio, level)
	case p.Goal == common.GoalMuscleGain:
		return common.PlanName(common.PlanStrength, tier(p.ExperienceYears, 2, 5))
	case p.Goal == common.GoalEndurance:
		return common.PlanName(common.PlanEndurance, tier(p.WeeklyWorkouts, 3, 5))
	default:
		return common.PlanName(common.PlanPower, tier(p.AvgWorkoutDuration, 45, 75))
	}
}

func tier(v, low, high float64) string {
	switch {
	case v < low:
		return common.LevelBeginner
	case v < high:
		return common.LevelIntermediate
	default:
		return common.LevelAdvanced
	}
}
