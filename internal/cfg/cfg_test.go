package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"workout-recommender/internal/common"
)

var allKeys = []string{
	common.EnvConfigFile, common.EnvDataPath, common.EnvModelPath, common.EnvModelsDir,
	common.EnvMetricsPort, common.EnvTopK, common.EnvForestTrees, common.EnvForestMaxDepth,
	common.EnvForestMinSplit, common.EnvForestMaxFeatures, common.EnvForestWorkers,
	common.EnvSeed, common.EnvHoldoutFraction, common.EnvSampleSize, common.EnvSourceURL,
	common.EnvSourceTimeout, common.EnvSQLitePath, common.EnvLogLevel, common.EnvLogFormat,
}

// clearEnv blanks every recognised key so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, settings Settings)
	}{
		{
			name:    "defaults",
			envVars: map[string]string{},
			validate: func(t *testing.T, settings Settings) {
				if settings.ModelPath != common.DefaultModelPath {
					t.Errorf("expected default ModelPath, got %s", settings.ModelPath)
				}
				if settings.TopK != 3 {
					t.Errorf("expected default TopK 3, got %d", settings.TopK)
				}
				if settings.Forest.Trees != 100 {
					t.Errorf("expected default 100 trees, got %d", settings.Forest.Trees)
				}
				if settings.Seed != 42 {
					t.Errorf("expected default seed 42, got %d", settings.Seed)
				}
				if settings.HoldoutFraction != 0.2 {
					t.Errorf("expected default holdout 0.2, got %f", settings.HoldoutFraction)
				}
				if settings.SourceTimeout != 10*time.Second {
					t.Errorf("expected default source timeout 10s, got %v", settings.SourceTimeout)
				}
				if settings.MetricsPort != 0 {
					t.Errorf("expected metrics disabled by default, got %d", settings.MetricsPort)
				}
			},
		},
		{
			name: "custom settings",
			envVars: map[string]string{
				"MODEL_PATH":       "/tmp/model.json",
				"TOP_K":            "5",
				"FOREST_TREES":     "250",
				"FOREST_MAX_DEPTH": "12",
				"SEED":             "7",
				"HOLDOUT_FRACTION": "0.25",
				"METRICS_PORT":     "9090",
				"SOURCE_URL":       "https://plans.example.com",
				"SOURCE_TIMEOUT":   "30s",
				"LOG_FORMAT":       "json",
			},
			validate: func(t *testing.T, settings Settings) {
				if settings.ModelPath != "/tmp/model.json" {
					t.Errorf("expected ModelPath /tmp/model.json, got %s", settings.ModelPath)
				}
				if settings.TopK != 5 {
					t.Errorf("expected TopK 5, got %d", settings.TopK)
				}
				if settings.Forest.Trees != 250 || settings.Forest.MaxDepth != 12 {
					t.Errorf("unexpected forest settings %+v", settings.Forest)
				}
				if settings.Seed != 7 {
					t.Errorf("expected seed 7, got %d", settings.Seed)
				}
				if settings.HoldoutFraction != 0.25 {
					t.Errorf("expected holdout 0.25, got %f", settings.HoldoutFraction)
				}
				if settings.MetricsPort != 9090 {
					t.Errorf("expected MetricsPort 9090, got %d", settings.MetricsPort)
				}
				if settings.SourceTimeout != 30*time.Second {
					t.Errorf("expected source timeout 30s, got %v", settings.SourceTimeout)
				}
			},
		},
		{
			name:    "invalid number falls back to default",
			envVars: map[string]string{"TOP_K": "many"},
			validate: func(t *testing.T, settings Settings) {
				if settings.TopK != 3 {
					t.Errorf("expected fallback TopK 3, got %d", settings.TopK)
				}
			},
		},
		{
			name:    "top k out of range",
			envVars: map[string]string{"TOP_K": "50"},
			wantErr: true,
		},
		{
			name:    "holdout fraction of one",
			envVars: map[string]string{"HOLDOUT_FRACTION": "1"},
			wantErr: true,
		},
		{
			name:    "unknown log format",
			envVars: map[string]string{"LOG_FORMAT": "xml"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			settings, err := Load()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.yaml")

	configContent := `
system:
  dataPath: "/var/lib/recommender"
  metricsPort: 9100
  logLevel: "debug"
model:
  path: "/var/lib/recommender/model.json"
  versionsDir: "/var/lib/recommender/versions"
  topK: 4
  holdoutFraction: 0.3
  seed: 11
forest:
  trees: 64
  maxDepth: 10
  minSamplesSplit: 4
  maxFeatures: 3
  workers: 2
source:
  url: "http://localhost:8081"
  timeout: "5s"
  sqlitePath: "/var/lib/recommender/examples.db"
  sampleSize: 2000
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	clearEnv(t)
	t.Setenv(common.EnvConfigFile, configPath)
	t.Setenv(common.EnvTopK, "6") // env wins over file

	settings, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if settings.DataPath != "/var/lib/recommender" {
		t.Errorf("expected DataPath from file, got %s", settings.DataPath)
	}
	if settings.ModelsDir != "/var/lib/recommender/versions" {
		t.Errorf("expected ModelsDir from file, got %s", settings.ModelsDir)
	}
	if settings.TopK != 6 {
		t.Errorf("expected env override TopK 6, got %d", settings.TopK)
	}
	if settings.HoldoutFraction != 0.3 || settings.Seed != 11 {
		t.Errorf("unexpected model settings: holdout %f seed %d", settings.HoldoutFraction, settings.Seed)
	}
	want := ForestSettings{Trees: 64, MaxDepth: 10, MinSamplesSplit: 4, MaxFeatures: 3, Workers: 2}
	if settings.Forest != want {
		t.Errorf("expected forest %+v, got %+v", want, settings.Forest)
	}
	if settings.SourceURL != "http://localhost:8081" || settings.SourceTimeout != 5*time.Second {
		t.Errorf("unexpected source settings: %s %v", settings.SourceURL, settings.SourceTimeout)
	}
	if settings.SQLitePath != "/var/lib/recommender/examples.db" || settings.SampleSize != 2000 {
		t.Errorf("unexpected source settings: %s %d", settings.SQLitePath, settings.SampleSize)
	}
	if settings.Level() != zerolog.DebugLevel {
		t.Errorf("expected debug level, got %v", settings.Level())
	}
	// unset in file
	if settings.LogFormat != common.DefaultLogFormat {
		t.Errorf("expected default log format, got %s", settings.LogFormat)
	}
}

func TestLoadFromYAML_Errors(t *testing.T) {
	tempDir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(common.EnvConfigFile, filepath.Join(tempDir, "missing.yaml"))
		if _, err := Load(); err == nil {
			t.Error("expected error for missing config file")
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(tempDir, "bad.yaml")
		if err := os.WriteFile(path, []byte("model: [unclosed"), 0o600); err != nil {
			t.Fatal(err)
		}
		clearEnv(t)
		t.Setenv(common.EnvConfigFile, path)
		if _, err := Load(); err == nil {
			t.Error("expected error for malformed config file")
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		path := filepath.Join(tempDir, "invalid.yaml")
		if err := os.WriteFile(path, []byte("forest:\n  minSamplesSplit: 1\n"), 0o600); err != nil {
			t.Fatal(err)
		}
		clearEnv(t)
		t.Setenv(common.EnvConfigFile, path)
		if _, err := Load(); err == nil {
			t.Error("expected validation error")
		}
	})
}

func TestEngineConfig(t *testing.T) {
	s := createValidSettings()
	s.Seed = 9
	s.Forest.Trees = 12
	s.Forest.Workers = 3

	ec := s.EngineConfig()
	if ec.TopK != s.TopK || ec.HoldoutFraction != s.HoldoutFraction || ec.Seed != 9 {
		t.Errorf("unexpected engine config %+v", ec)
	}
	if ec.Forest.Trees != 12 || ec.Forest.Workers != 3 || ec.Forest.Seed != 9 {
		t.Errorf("unexpected forest config %+v", ec.Forest)
	}
	if ec.Forest.MinSamplesLeaf != 1 {
		t.Errorf("expected default min samples leaf 1, got %d", ec.Forest.MinSamplesLeaf)
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		s := Settings{LogLevel: tt.in}
		if got := s.Level(); got != tt.want {
			t.Errorf("Level(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
