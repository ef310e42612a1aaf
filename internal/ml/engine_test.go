package ml

import (
	"errors"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleExamples labels profiles by goal and, for two goals, by a numeric threshold.
func sampleExamples(n int, seed int64) []TrainingExample {
	rnd := rand.New(rand.NewSource(seed))
	levels := []string{"beginner", "intermediate", "advanced"}
	goals := []string{"weight_loss", "muscle_gain", "endurance", "strength"}
	out := make([]TrainingExample, n)
	for i := range out {
		goal := goals[rnd.Intn(len(goals))]
		rec := Record{
			AttrAge:                float64(18 + rnd.Intn(47)),
			AttrFitnessLevel:       levels[rnd.Intn(len(levels))],
			AttrGoal:               goal,
			AttrExperienceYears:    float64(rnd.Intn(20)),
			AttrBMI:                25 + 5*rnd.NormFloat64(),
			AttrWeeklyWorkouts:     float64(1 + rnd.Intn(6)),
			AttrAvgWorkoutDuration: float64(20 + rnd.Intn(100)),
		}
		var label string
		switch goal {
		case "weight_loss":
			label = "cardio"
		case "muscle_gain":
			label = "strength_low"
			if rec[AttrExperienceYears].(float64) >= 5 {
				label = "strength_high"
			}
		case "endurance":
			label = "endurance"
		default:
			label = "power_short"
			if rec[AttrAvgWorkoutDuration].(float64) >= 60 {
				label = "power_long"
			}
		}
		out[i] = TrainingExample{Features: rec, Label: label}
	}
	return out
}

func testEngineConfig() EngineConfig {
	cfg := DefaultEngineConfig()
	cfg.Forest.Trees = 20
	cfg.Forest.Workers = 4
	return cfg
}

func trainedEngine(t *testing.T) (*Engine, *TrainingResult) {
	t.Helper()
	e := NewEngine(WorkoutSchema(), testEngineConfig(), &MockMetrics{})
	res, err := e.Train(sampleExamples(400, 11))
	require.NoError(t, err)
	return e, res
}

func userRecord() Record {
	return UserProfile{
		Age: 35, FitnessLevel: "advanced", Goal: "muscle_gain",
		ExperienceYears: 8, BMI: 24, WeeklyWorkouts: 5, AvgWorkoutDuration: 90,
	}.Record()
}

func TestEngine_Untrained(t *testing.T) {
	e := NewEngine(WorkoutSchema(), testEngineConfig(), nil)
	assert.False(t, e.Trained())
	assert.Nil(t, e.Bundle())

	_, err := e.Predict(userRecord())
	assert.ErrorIs(t, err, ErrModelNotTrained)

	_, err = e.PredictProba(userRecord())
	assert.ErrorIs(t, err, ErrModelNotTrained)

	_, err = e.FeatureImportance()
	assert.ErrorIs(t, err, ErrModelNotTrained)

	err = e.Save(filepath.Join(t.TempDir(), "model.json"))
	var notTrained *ModelNotTrainedError
	require.True(t, errors.As(err, &notTrained))
	assert.Equal(t, "save", notTrained.Op)
}

func TestEngine_TrainAndPredict(t *testing.T) {
	metrics := &MockMetrics{}
	e := NewEngine(WorkoutSchema(), testEngineConfig(), metrics)
	res, err := e.Train(sampleExamples(400, 11))
	require.NoError(t, err)

	assert.True(t, e.Trained())
	assert.Equal(t, 400, res.TrainingRows+res.HoldoutRows)
	assert.InDelta(t, 80, res.HoldoutRows, 3)
	assert.Len(t, res.Holdout, res.HoldoutRows)
	assert.Greater(t, res.Report.Accuracy, res.BaselineAccuracy)
	assert.Equal(t, res.BundleID, e.Bundle().ID)

	pred, err := e.Predict(userRecord())
	require.NoError(t, err)
	assert.Equal(t, "strength_high", pred.RecommendedPlan)
	assert.Len(t, pred.TopRecommendations, 3)
	assert.Equal(t, pred.RecommendedPlan, pred.TopRecommendations[0].Plan)
	for i := 1; i < len(pred.TopRecommendations); i++ {
		assert.GreaterOrEqual(t, pred.TopRecommendations[i-1].Confidence, pred.TopRecommendations[i].Confidence)
	}
	assert.Equal(t, 1, metrics.Predictions())

	// prediction does not change state
	again, err := e.Predict(userRecord())
	require.NoError(t, err)
	assert.Equal(t, pred.TopRecommendations, again.TopRecommendations)
}

func TestEngine_TrainDeterministic(t *testing.T) {
	examples := sampleExamples(300, 5)
	a := NewEngine(WorkoutSchema(), testEngineConfig(), nil)
	b := NewEngine(WorkoutSchema(), testEngineConfig(), nil)
	_, err := a.Train(examples)
	require.NoError(t, err)
	_, err = b.Train(examples)
	require.NoError(t, err)

	pa, err := a.PredictProba(userRecord())
	require.NoError(t, err)
	pb, err := b.PredictProba(userRecord())
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
}

func TestEngine_TrainInvalid(t *testing.T) {
	e := NewEngine(WorkoutSchema(), testEngineConfig(), nil)

	_, err := e.Train(nil)
	assert.Error(t, err)

	examples := sampleExamples(20, 1)
	delete(examples[3].Features, AttrBMI)
	_, err = e.Train(examples)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	examples = sampleExamples(20, 1)
	examples[4].Label = ""
	_, err = e.Train(examples)
	assert.ErrorContains(t, err, "example 4")

	examples = sampleExamples(20, 1)
	examples[7].Features[AttrFitnessLevel] = "elite"
	_, err = e.Train(examples)
	assert.ErrorIs(t, err, ErrUnknownCategory)
	assert.ErrorContains(t, err, "example 7")

	assert.False(t, e.Trained())
}

func TestEngine_PredictValidation(t *testing.T) {
	metrics := &MockMetrics{}
	e := NewEngine(WorkoutSchema(), testEngineConfig(), metrics)
	_, err := e.Train(sampleExamples(200, 3))
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(Record)
		wantErr error
	}{
		{"unknown category", func(r Record) { r[AttrFitnessLevel] = "elite" }, ErrUnknownCategory},
		{"missing attribute", func(r Record) { delete(r, AttrAge) }, ErrShapeMismatch},
		{"extra attribute", func(r Record) { r["height"] = 180.0 }, ErrShapeMismatch},
		{"wrong type", func(r Record) { r[AttrBMI] = "fat" }, ErrShapeMismatch},
		{"categorical as number", func(r Record) { r[AttrGoal] = 3 }, ErrShapeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := userRecord()
			tt.mutate(rec)
			_, err := e.Predict(rec)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsValidationError(err))
		})
	}
	assert.Equal(t, 1, metrics.Unknown(AttrFitnessLevel))
	assert.Equal(t, len(tests), metrics.Failures())

	// still usable after rejected calls
	_, err = e.Predict(userRecord())
	assert.NoError(t, err)
}

func TestEngine_PredictProfile(t *testing.T) {
	e, _ := trainedEngine(t)

	_, err := e.PredictProfile(UserProfile{Age: 30, FitnessLevel: "beginner", Goal: "endurance", BMI: 0})
	assert.ErrorContains(t, err, "invalid user profile")

	pred, err := e.PredictProfile(UserProfile{Age: 30, FitnessLevel: "beginner", Goal: "endurance", BMI: 22, WeeklyWorkouts: 3, AvgWorkoutDuration: 40})
	require.NoError(t, err)
	assert.Equal(t, "endurance", pred.RecommendedPlan)
}

func TestEngine_IntegerInputsMatchFloats(t *testing.T) {
	e, _ := trainedEngine(t)

	ints := Record{
		AttrAge: 35, AttrFitnessLevel: "advanced", AttrGoal: "muscle_gain",
		AttrExperienceYears: 8, AttrBMI: 24, AttrWeeklyWorkouts: 5, AttrAvgWorkoutDuration: 90,
	}
	a, err := e.PredictProba(ints)
	require.NoError(t, err)
	b, err := e.PredictProba(userRecord())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEngine_FeatureImportance(t *testing.T) {
	e, _ := trainedEngine(t)

	scores, err := e.FeatureImportance()
	require.NoError(t, err)
	require.Len(t, scores, 7)

	sum := 0.0
	for i, s := range scores {
		assert.GreaterOrEqual(t, s.Importance, 0.0)
		if i > 0 {
			assert.GreaterOrEqual(t, scores[i-1].Importance, s.Importance)
		}
		sum += s.Importance
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Equal(t, AttrGoal, scores[0].Name)
}

func TestEngine_SaveLoadRoundTrip(t *testing.T) {
	e, _ := trainedEngine(t)
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, e.Save(path))

	metrics := &MockMetrics{}
	loaded := NewEngine(WorkoutSchema(), testEngineConfig(), metrics)
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, 1, metrics.Loads("success"))
	assert.Equal(t, e.Bundle().ID, loaded.Bundle().ID)

	examples := sampleExamples(50, 77)
	for _, ex := range examples {
		want, err := e.Predict(ex.Features)
		require.NoError(t, err)
		got, err := loaded.Predict(ex.Features)
		require.NoError(t, err)
		assert.Equal(t, want.TopRecommendations, got.TopRecommendations)
	}
}

func TestEngine_LoadFailureKeepsBundle(t *testing.T) {
	e, _ := trainedEngine(t)
	before := e.Bundle()

	metrics := &MockMetrics{}
	e.metrics = metrics
	err := e.Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
	assert.Same(t, before, e.Bundle())
	assert.Equal(t, 1, metrics.Loads("failure"))

	_, err = e.Predict(userRecord())
	assert.NoError(t, err)
}

func TestEngine_Swap(t *testing.T) {
	a, _ := trainedEngine(t)
	b := NewEngine(WorkoutSchema(), testEngineConfig(), nil)
	require.NoError(t, b.Swap(a.Bundle()))
	assert.Same(t, a.Bundle(), b.Bundle())

	assert.ErrorIs(t, b.Swap(nil), ErrModelNotTrained)

	other := &Schema{Attributes: []Attribute{{Name: "x", Kind: Numeric}}}
	c := NewEngine(other, testEngineConfig(), nil)
	assert.ErrorIs(t, c.Swap(a.Bundle()), ErrCorruptBundle)
}

func TestEngine_ConcurrentPredictAndRetrain(t *testing.T) {
	e, _ := trainedEngine(t)
	examples := sampleExamples(200, 21)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if _, err := e.Predict(userRecord()); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := e.Train(examples); err != nil {
			errs <- err
		}
	}()
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
}

// Publishing a bundle that another engine is serving must not write to it;
// run with -race.
func TestEngine_SwapSharedBundleWhilePredicting(t *testing.T) {
	a, _ := trainedEngine(t)
	b := NewEngine(WorkoutSchema(), testEngineConfig(), nil)

	var wg sync.WaitGroup
	errs := make(chan error, 128)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if _, err := a.Predict(userRecord()); err != nil {
				errs <- err
			}
		}
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if err := b.Swap(a.Bundle()); err != nil {
				errs <- err
			}
		}
	}()
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
	assert.Same(t, a.Bundle(), b.Bundle())
}

func TestEngine_TimestampFromClock(t *testing.T) {
	e, _ := trainedEngine(t)
	fixed := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	e.now = func() time.Time { return fixed }

	pred, err := e.Predict(userRecord())
	require.NoError(t, err)
	assert.Equal(t, fixed, pred.Timestamp)
}

func TestStratifiedSplit(t *testing.T) {
	y := make([]int, 0, 100)
	for i := 0; i < 100; i++ {
		if i < 80 {
			y = append(y, 0)
		} else {
			y = append(y, 1)
		}
	}
	y = append(y, 2) // singleton class

	train, test := stratifiedSplit(y, 3, 0.2, 42)
	assert.Len(t, test, 20)
	assert.Len(t, train, 81)

	counts := make([]int, 3)
	for _, i := range test {
		counts[y[i]]++
	}
	assert.Equal(t, []int{16, 4, 0}, counts)

	train2, test2 := stratifiedSplit(y, 3, 0.2, 42)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	train, test = stratifiedSplit(y, 3, 0, 42)
	assert.Empty(t, test)
	assert.Len(t, train, 101)
}

func TestEngine_Metrics(t *testing.T) {
	m := &MockMetrics{}
	e := NewEngine(WorkoutSchema(), testEngineConfig(), m)
	_, err := e.Train(sampleExamples(200, 5))
	require.NoError(t, err)

	_, err = e.Predict(userRecord())
	require.NoError(t, err)
	_, err = e.PredictProba(userRecord())
	require.NoError(t, err)

	rec := userRecord()
	rec[AttrFitnessLevel] = "elite"
	_, err = e.Predict(rec)
	require.ErrorIs(t, err, ErrUnknownCategory)

	assert.Equal(t, 2, m.Predictions())
	assert.Equal(t, 1, m.Failures())
	assert.Equal(t, 1, m.Unknown(AttrFitnessLevel))

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, e.Save(path))
	require.NoError(t, e.Load(path))
	require.Error(t, e.Load(filepath.Join(t.TempDir(), "missing.json")))
	assert.Equal(t, 1, m.Loads("success"))
	assert.Equal(t, 1, m.Loads("failure"))
}
