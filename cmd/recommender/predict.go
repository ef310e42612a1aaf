package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"workout-recommender/internal/cfg"
	"workout-recommender/internal/metrics"
	"workout-recommender/internal/ml"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

type demoProfile struct {
	Name    string
	Profile ml.UserProfile
}

var demoProfiles = []demoProfile{
	{
		Name: "User 1 (Beginner Weight Loss)",
		Profile: ml.UserProfile{
			Age: 28, FitnessLevel: "beginner", Goal: "weight_loss",
			ExperienceYears: 0, BMI: 28.5, WeeklyWorkouts: 2, AvgWorkoutDuration: 30,
		},
	},
	{
		Name: "User 2 (Advanced Muscle Gain)",
		Profile: ml.UserProfile{
			Age: 35, FitnessLevel: "advanced", Goal: "muscle_gain",
			ExperienceYears: 8, BMI: 24.0, WeeklyWorkouts: 5, AvgWorkoutDuration: 90,
		},
	},
}

func runPredict(ctx context.Context, c cfg.Settings, m *metrics.Metrics, args []string) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	var (
		modelPath = fs.String("model", "", "Model path (defaults to MODEL_PATH)")
		active    = fs.Bool("active", false, "Use the active registered version instead of -model")
		demo      = fs.Bool("demo", false, "Predict for the reference users")
		input     = fs.String("input", "-", "JSON profile or array of profiles; - reads stdin")
		topK      = fs.Int("top", 0, "Number of recommendations (defaults to TOP_K)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *topK > 0 {
		c.TopK = *topK
	}

	engine, err := loadEngine(c, m, *modelPath, *active)
	if err != nil {
		return err
	}

	var profiles []ml.UserProfile
	if *demo {
		for _, d := range demoProfiles {
			profiles = append(profiles, d.Profile)
		}
	} else {
		if profiles, err = readProfiles(*input); err != nil {
			return err
		}
	}

	preds, err := predictProfiles(ctx, engine, profiles)
	if err != nil {
		return err
	}

	var out any = preds
	if len(preds) == 1 {
		out = preds[0]
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func predictProfiles(ctx context.Context, predictor ml.PredictorInterface, profiles []ml.UserProfile) ([]*ml.Prediction, error) {
	preds := make([]*ml.Prediction, 0, len(profiles))
	for i, p := range profiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("profile %d: %w", i, err)
		}
		pred, err := predictor.Predict(p.Record())
		if err != nil {
			return nil, fmt.Errorf("profile %d: %w", i, err)
		}
		preds = append(preds, pred)
	}
	return preds, nil
}

// loadEngine builds an engine around a persisted bundle.
func loadEngine(c cfg.Settings, m *metrics.Metrics, modelPath string, active bool) (*ml.Engine, error) {
	engine := ml.NewEngine(ml.WorkoutSchema(), c.EngineConfig(), metrics.NewMLWrapper(m))
	if active {
		mm, err := ml.NewModelManager(c.ModelsDir)
		if err != nil {
			return nil, err
		}
		b, err := mm.LoadActive(engine.Schema())
		if err != nil {
			return nil, err
		}
		if err := engine.Swap(b); err != nil {
			return nil, err
		}
		log.Debug().Str("version", mm.GetCurrentVersion().Version).Msg("active model loaded")
		return engine, nil
	}

	if modelPath == "" {
		modelPath = c.ModelPath
	}
	if err := engine.Load(modelPath); err != nil {
		return nil, err
	}
	return engine, nil
}

// readProfiles decodes a single profile object or an array of them.
func readProfiles(path string) ([]ml.UserProfile, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("read profiles: empty input")
	}
	if data[0] == '[' {
		var profiles []ml.UserProfile
		if err := json.Unmarshal(data, &profiles); err != nil {
			return nil, fmt.Errorf("decode profiles: %w", err)
		}
		return profiles, nil
	}
	var p ml.UserProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return []ml.UserProfile{p}, nil
}
