package main

import (
	"fmt"

	"workout-recommender/internal/cfg"
	"workout-recommender/internal/dataset"
	"workout-recommender/internal/storage"
)

// Source kinds accepted by -source.
const (
	sourceSynthetic = "synthetic"
	sourceCSV       = "csv"
	sourceSQLite    = "sqlite"
	sourceHTTP      = "http"
	sourceStore     = "store"
)

// openSource builds the example source named by kind. input is the file path
// for csv and sqlite, the stored source name for store, and the base URL for
// http; empty values fall back to settings.
func openSource(c cfg.Settings, kind, input string, samples int, store *storage.Store) (dataset.Source, error) {
	switch kind {
	case sourceSynthetic:
		if samples <= 0 {
			samples = c.SampleSize
		}
		return dataset.NewGenerator(samples, c.Seed), nil
	case sourceCSV:
		if input == "" {
			return nil, fmt.Errorf("csv source needs -input")
		}
		return dataset.NewCSVSource(input), nil
	case sourceSQLite:
		if input == "" {
			input = c.SQLitePath
		}
		if input == "" {
			return nil, fmt.Errorf("sqlite source needs -input or SQLITE_PATH")
		}
		return dataset.NewSQLSource(input), nil
	case sourceHTTP:
		if input == "" {
			input = c.SourceURL
		}
		if input == "" {
			return nil, fmt.Errorf("http source needs -input or SOURCE_URL")
		}
		return dataset.NewHTTPSource(input, c.SourceTimeout), nil
	case sourceStore:
		if store == nil {
			return nil, fmt.Errorf("store source needs DATA_PATH")
		}
		if input == "" {
			input = sourceSynthetic
		}
		return dataset.NewStoreSource(store, input), nil
	default:
		return nil, fmt.Errorf("unknown source %q", kind)
	}
}
