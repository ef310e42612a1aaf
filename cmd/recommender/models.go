package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"workout-recommender/internal/cfg"
	"workout-recommender/internal/metrics"
	"workout-recommender/internal/ml"
	"workout-recommender/internal/storage"

	"github.com/rs/zerolog/log"
)

func runImportance(ctx context.Context, c cfg.Settings, m *metrics.Metrics, args []string) error {
	fs := flag.NewFlagSet("importance", flag.ContinueOnError)
	var (
		modelPath = fs.String("model", "", "Model path (defaults to MODEL_PATH)")
		active    = fs.Bool("active", false, "Use the active registered version instead of -model")
		rounds    = fs.Int("permutation", 0, "Permutation rounds; 0 prints impurity importance only")
		source    = fs.String("source", sourceSynthetic, "Evaluation source for permutation importance")
		input     = fs.String("input", "", "Source input: file path, stored source name or base URL")
		samples   = fs.Int("samples", 0, "Synthetic sample count (defaults to SAMPLE_SIZE)")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	engine, err := loadEngine(c, m, *modelPath, *active)
	if err != nil {
		return err
	}

	scores, err := engine.FeatureImportance()
	if err != nil {
		return err
	}
	fmt.Println("Impurity importance:")
	ml.WriteImportance(os.Stdout, scores)

	if *rounds <= 0 {
		return nil
	}

	var store *storage.Store
	if *source == sourceStore {
		if store, err = openStore(c); err != nil {
			return err
		}
		defer store.Close()
	}
	src, err := openSource(c, *source, *input, *samples, store)
	if err != nil {
		return err
	}
	examples, err := src.Load(ctx)
	if err != nil {
		return fmt.Errorf("load examples: %w", err)
	}
	perm, err := ml.PermutationImportance(engine.Bundle(), examples, *rounds, c.Seed)
	if err != nil {
		return err
	}
	fmt.Printf("\nPermutation importance (%s, %d rounds):\n", src.Name(), *rounds)
	ml.WriteImportance(os.Stdout, perm)
	return nil
}

func runVersions(_ context.Context, c cfg.Settings, _ *metrics.Metrics, args []string) error {
	fs := flag.NewFlagSet("versions", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	mm, err := ml.NewModelManager(c.ModelsDir)
	if err != nil {
		return err
	}
	versions := mm.ListVersions()
	if len(versions) == 0 {
		fmt.Println("no model versions registered")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ACTIVE\tVERSION\tBUNDLE\tCREATED\tACCURACY\tBASELINE\tROWS")
	for _, v := range versions {
		mark := ""
		if v.IsActive {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.4f\t%.4f\t%d\n",
			mark, v.Version, v.BundleID, v.CreatedAt.Format(time.RFC3339),
			v.Metrics.Accuracy, v.Metrics.BaselineAccuracy, v.Metrics.TrainingRows+v.Metrics.HoldoutRows)
	}
	return tw.Flush()
}

func runRollback(_ context.Context, c cfg.Settings, m *metrics.Metrics, args []string) error {
	fs := flag.NewFlagSet("rollback", flag.ContinueOnError)
	publish := fs.Bool("publish", true, "Copy the reactivated bundle to MODEL_PATH")
	if err := fs.Parse(args); err != nil {
		return err
	}

	mm, err := ml.NewModelManager(c.ModelsDir)
	if err != nil {
		return err
	}
	v, err := mm.Rollback()
	if err != nil {
		return err
	}
	log.Info().Str("version", v.Version).Str("bundle_id", v.BundleID).Msg("rolled back")

	if !*publish {
		return nil
	}
	engine := ml.NewEngine(ml.WorkoutSchema(), c.EngineConfig(), metrics.NewMLWrapper(m))
	b, err := mm.LoadActive(engine.Schema())
	if err != nil {
		return err
	}
	if err := engine.Swap(b); err != nil {
		return err
	}
	if err := engine.Save(c.ModelPath); err != nil {
		return err
	}
	log.Info().Str("path", c.ModelPath).Msg("model published")
	return nil
}

func runRuns(_ context.Context, c cfg.Settings, _ *metrics.Metrics, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	var (
		since  = fs.Duration("since", 30*24*time.Hour, "Only list runs started within this window")
		latest = fs.Bool("latest", false, "Only show the most recent run")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	var runs []storage.TrainingRun
	if *latest {
		run, err := store.LatestRun()
		if err != nil {
			return err
		}
		if run != nil {
			runs = append(runs, *run)
		}
	} else {
		end := time.Now()
		if runs, err = store.GetRuns(end.Add(-*since), end); err != nil {
			return err
		}
	}
	if len(runs) == 0 {
		fmt.Println("no training runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSOURCE\tVERSION\tDURATION\tACCURACY\tBASELINE\tTRAIN\tHOLDOUT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%.4f\t%.4f\t%d\t%d\n",
			r.StartedAt.Format(time.RFC3339), r.Source, r.Version, r.Duration.Round(time.Millisecond),
			r.Accuracy, r.BaselineAccuracy, r.TrainingRows, r.HoldoutRows)
	}
	return tw.Flush()
}
