package cfg

import (
	"strings"
	"testing"
	"time"
)

// createValidSettings creates a valid Settings struct for testing
func createValidSettings() *Settings {
	return &Settings{
		DataPath:        "data",
		ModelPath:       "models/model.json",
		ModelsDir:       "models/versions",
		MetricsPort:     9090,
		LogLevel:        "info",
		LogFormat:       "console",
		TopK:            3,
		HoldoutFraction: 0.2,
		Seed:            42,
		Forest: ForestSettings{
			Trees:           100,
			MinSamplesSplit: 2,
		},
		SampleSize:    1000,
		SourceTimeout: 10 * time.Second,
	}
}

func TestValidateSettings_ValidConfig(t *testing.T) {
	settings := createValidSettings()

	if err := validateSettings(settings); err != nil {
		t.Errorf("Expected valid config to pass, got error: %v", err)
	}
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{"empty model path", func(s *Settings) { s.ModelPath = "" }, "model path"},
		{"empty models dir", func(s *Settings) { s.ModelsDir = "" }, "models directory"},
		{"metrics disabled", func(s *Settings) { s.MetricsPort = 0 }, ""},
		{"privileged metrics port", func(s *Settings) { s.MetricsPort = 80 }, "metrics port"},
		{"metrics port too high", func(s *Settings) { s.MetricsPort = 70000 }, "metrics port"},
		{"json log format", func(s *Settings) { s.LogFormat = "json" }, ""},
		{"bad log format", func(s *Settings) { s.LogFormat = "text" }, "log format"},
		{"zero top k", func(s *Settings) { s.TopK = 0 }, "top k"},
		{"top k above plans", func(s *Settings) { s.TopK = 13 }, "top k"},
		{"no holdout", func(s *Settings) { s.HoldoutFraction = 0 }, ""},
		{"negative holdout", func(s *Settings) { s.HoldoutFraction = -0.1 }, "holdout"},
		{"full holdout", func(s *Settings) { s.HoldoutFraction = 1 }, "holdout"},
		{"zero trees", func(s *Settings) { s.Forest.Trees = 0 }, "forest trees"},
		{"too many trees", func(s *Settings) { s.Forest.Trees = 5001 }, "forest trees"},
		{"negative depth", func(s *Settings) { s.Forest.MaxDepth = -1 }, "max depth"},
		{"min split of one", func(s *Settings) { s.Forest.MinSamplesSplit = 1 }, "min samples split"},
		{"all features", func(s *Settings) { s.Forest.MaxFeatures = 7 }, ""},
		{"too many features", func(s *Settings) { s.Forest.MaxFeatures = 8 }, "max features"},
		{"negative workers", func(s *Settings) { s.Forest.Workers = -2 }, "workers"},
		{"zero sample size", func(s *Settings) { s.SampleSize = 0 }, "sample size"},
		{"short timeout", func(s *Settings) { s.SourceTimeout = 100 * time.Millisecond }, "source timeout"},
		{"long timeout", func(s *Settings) { s.SourceTimeout = time.Hour }, "source timeout"},
		{"http source", func(s *Settings) { s.SourceURL = "http://localhost:8081" }, ""},
		{"ftp source", func(s *Settings) { s.SourceURL = "ftp://example.com" }, "source URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := createValidSettings()
			tt.mutate(settings)

			err := validateSettings(settings)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}
