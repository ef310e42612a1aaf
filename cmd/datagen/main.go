package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"workout-recommender/internal/common"
	"workout-recommender/internal/dataset"
	"workout-recommender/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		samples  = flag.Int("samples", common.DefaultSampleSize, "Number of examples to generate")
		seed     = flag.Int64("seed", common.DefaultSeed, "Random seed")
		format   = flag.String("format", "csv", "Output format: csv, sqlite, store")
		out      = flag.String("out", "data/workout_examples.csv", "Output file for csv and sqlite")
		dataPath = flag.String("data", common.DefaultDataPath, "Data directory for the store format")
		name     = flag.String("name", "synthetic", "Source name for the store format")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *samples <= 0 || *samples > common.MaxSampleSize {
		log.Fatal().Int("samples", *samples).Msg("sample count out of range")
	}

	ctx := context.Background()
	gen := dataset.NewGenerator(*samples, *seed)
	rows := gen.Rows()

	var err error
	switch *format {
	case "csv":
		err = writeCSVFile(*out, rows)
	case "sqlite":
		err = writeSQLiteFile(ctx, *out, rows)
	case "store":
		err = writeStore(ctx, *dataPath, *name, gen)
	default:
		err = fmt.Errorf("unknown format %q", *format)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to generate data")
	}

	printDistribution(rows)
	log.Info().Int("samples", len(rows)).Int64("seed", *seed).Str("format", *format).Msg("sample data generated")
}

func writeCSVFile(path string, rows []dataset.Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := dataset.WriteCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeSQLiteFile(ctx context.Context, path string, rows []dataset.Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return dataset.WriteSQL(ctx, path, rows)
}

// writeStore replaces the examples stored under name with a fresh draw.
func writeStore(ctx context.Context, dataPath, name string, src dataset.Source) error {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return err
	}
	store, err := storage.New(dataPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteExamples(name); err != nil {
		return err
	}
	n, err := dataset.Import(ctx, src, store, name)
	if err != nil {
		return err
	}
	log.Debug().Str("name", name).Int("examples", n).Msg("examples stored")
	return nil
}

func printDistribution(rows []dataset.Row) {
	counts := make(map[string]int)
	for _, r := range rows {
		counts[r.RecommendedPlan]++
	}
	plans := make([]string, 0, len(counts))
	for p := range counts {
		plans = append(plans, p)
	}
	sort.Strings(plans)

	fmt.Println("Plan distribution:")
	for _, p := range plans {
		fmt.Printf("  %-24s %6d (%.1f%%)\n", p, counts[p], 100*float64(counts[p])/float64(len(rows)))
	}
}
