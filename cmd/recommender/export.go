package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"workout-recommender/internal/cfg"
	"workout-recommender/internal/dataset"
	"workout-recommender/internal/metrics"

	"github.com/rs/zerolog/log"
)

// runExport writes stored examples to CSV, or prints the stored count when
// no output is given.
func runExport(_ context.Context, c cfg.Settings, _ *metrics.Metrics, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	var (
		name = fs.String("name", sourceSynthetic, "Stored source name")
		out  = fs.String("out", "", "CSV output path; - writes to stdout")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	if *out == "" {
		n, err := store.CountExamples(*name)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d examples\n", *name, n)
		return nil
	}

	examples, err := store.GetExamples(*name)
	if err != nil {
		return err
	}
	rows := make([]dataset.Row, len(examples))
	for i, ex := range examples {
		if rows[i], err = dataset.RowFromExample(ex); err != nil {
			return fmt.Errorf("example %d: %w", i, err)
		}
	}

	if *out == "-" {
		return dataset.WriteCSV(os.Stdout, rows)
	}
	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	if err := dataset.WriteCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Info().Str("name", *name).Int("examples", len(rows)).Str("path", *out).Msg("examples exported")
	return nil
}
