package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"workout-recommender/internal/cfg"
	"workout-recommender/internal/metrics"
	"workout-recommender/internal/ml"
	"workout-recommender/internal/storage"

	"github.com/rs/zerolog/log"
)

func runTrain(ctx context.Context, c cfg.Settings, m *metrics.Metrics, args []string) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	var (
		source   = fs.String("source", sourceSynthetic, "Example source: synthetic, csv, sqlite, http, store")
		input    = fs.String("input", "", "Source input: file path, stored source name or base URL")
		samples  = fs.Int("samples", 0, "Synthetic sample count (defaults to SAMPLE_SIZE)")
		output   = fs.String("output", "", "Model path (defaults to MODEL_PATH)")
		saveAs   = fs.String("save-examples", "", "Also store the loaded examples under this name")
		register = fs.Bool("register", true, "Register and activate the model as a new version")
		demo     = fs.Bool("demo", true, "Print predictions for the reference users")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *output != "" {
		c.ModelPath = *output
	}

	store, err := openStore(c)
	if err != nil {
		log.Warn().Err(err).Msg("storage unavailable, training runs will not be recorded")
		store = nil
	} else {
		defer store.Close()
	}

	src, err := openSource(c, *source, *input, *samples, store)
	if err != nil {
		return err
	}
	log.Info().Str("source", src.Name()).Msg("loading training examples")
	examples, err := src.Load(ctx)
	if err != nil {
		return fmt.Errorf("load examples: %w", err)
	}
	m.ObserveExamples(src.Name(), len(examples))

	if *saveAs != "" {
		if store == nil {
			return fmt.Errorf("-save-examples needs a working DATA_PATH")
		}
		if err := store.StoreExamples(*saveAs, examples); err != nil {
			return err
		}
		log.Info().Str("name", *saveAs).Int("examples", len(examples)).Msg("examples stored")
	}

	engine := ml.NewEngine(ml.WorkoutSchema(), c.EngineConfig(), metrics.NewMLWrapper(m))
	res, err := engine.Train(examples)
	if err != nil {
		return err
	}

	fmt.Println("Classification report:")
	res.Report.Write(os.Stdout)
	fmt.Printf("\nbaseline accuracy: %.4f\n", res.BaselineAccuracy)

	scores, err := engine.FeatureImportance()
	if err != nil {
		return err
	}
	fmt.Println("\nFeature importance:")
	ml.WriteImportance(os.Stdout, scores)

	if err := engine.Save(c.ModelPath); err != nil {
		return err
	}

	run := &storage.TrainingRun{
		BundleID:         res.BundleID,
		Source:           src.Name(),
		StartedAt:        engine.Bundle().TrainedAt.Add(-res.Duration),
		Duration:         res.Duration,
		TrainingRows:     res.TrainingRows,
		HoldoutRows:      res.HoldoutRows,
		Accuracy:         res.Report.Accuracy,
		BaselineAccuracy: res.BaselineAccuracy,
		ModelPath:        c.ModelPath,
	}

	if *register {
		mm, err := ml.NewModelManager(c.ModelsDir)
		if err != nil {
			return err
		}
		v, err := mm.AddVersion(engine.Bundle())
		if err != nil {
			return err
		}
		if err := mm.ActivateVersion(v.Version); err != nil {
			return err
		}
		run.Version = v.Version
	}

	if store != nil {
		if err := store.StoreRun(run); err != nil {
			log.Warn().Err(err).Msg("failed to record training run")
		}
	}

	if *demo {
		fmt.Println()
		for _, d := range demoProfiles {
			pred, err := engine.PredictProfile(d.Profile)
			if err != nil {
				return err
			}
			fmt.Printf("%s:\n  recommended: %s\n  confidence:  %.2f%%\n", d.Name, pred.RecommendedPlan, pred.Confidence*100)
		}
	}
	return nil
}
