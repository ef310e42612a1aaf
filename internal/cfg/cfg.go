package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"workout-recommender/internal/common"
	"workout-recommender/internal/ml"
)

type Settings struct {
	DataPath    string
	ModelPath   string
	ModelsDir   string
	MetricsPort int
	LogLevel    string
	LogFormat   string

	TopK            int
	HoldoutFraction float64
	Seed            int64
	Forest          ForestSettings

	SampleSize    int
	SourceURL     string
	SourceTimeout time.Duration
	SQLitePath    string
}

type ForestSettings struct {
	Trees           int `yaml:"trees"`
	MaxDepth        int `yaml:"maxDepth"`
	MinSamplesSplit int `yaml:"minSamplesSplit"`
	MaxFeatures     int `yaml:"maxFeatures"`
	Workers         int `yaml:"workers"`
}

type ConfigFile struct {
	System struct {
		DataPath    string `yaml:"dataPath"`
		MetricsPort int    `yaml:"metricsPort"`
		LogLevel    string `yaml:"logLevel"`
		LogFormat   string `yaml:"logFormat"`
	} `yaml:"system"`

	Model struct {
		Path            string  `yaml:"path"`
		VersionsDir     string  `yaml:"versionsDir"`
		TopK            int     `yaml:"topK"`
		HoldoutFraction float64 `yaml:"holdoutFraction"`
		Seed            int64   `yaml:"seed"`
	} `yaml:"model"`

	Forest ForestSettings `yaml:"forest"`

	Source struct {
		URL        string `yaml:"url"`
		Timeout    string `yaml:"timeout"`
		SQLitePath string `yaml:"sqlitePath"`
		SampleSize int    `yaml:"sampleSize"`
	} `yaml:"source"`
}

// Load reads settings from the YAML file named by CONFIG_FILE, or from the
// environment alone when it is unset. A .env file in the working directory
// is applied first without overriding variables that are already set.
func Load() (Settings, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("failed to read .env file")
	}

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	timeout, err := time.ParseDuration(config.Source.Timeout)
	if err != nil {
		timeout = common.DefaultSourceTimeout
	}

	settings := Settings{
		DataPath:        getStringFromEnvOrConfig(common.EnvDataPath, config.System.DataPath, common.DefaultDataPath),
		ModelPath:       getStringFromEnvOrConfig(common.EnvModelPath, config.Model.Path, common.DefaultModelPath),
		ModelsDir:       getStringFromEnvOrConfig(common.EnvModelsDir, config.Model.VersionsDir, common.DefaultModelsDir),
		MetricsPort:     getIntFromEnvOrConfig(common.EnvMetricsPort, config.System.MetricsPort, common.DefaultMetricsPort),
		LogLevel:        getStringFromEnvOrConfig(common.EnvLogLevel, config.System.LogLevel, common.DefaultLogLevel),
		LogFormat:       getStringFromEnvOrConfig(common.EnvLogFormat, config.System.LogFormat, common.DefaultLogFormat),
		TopK:            getIntFromEnvOrConfig(common.EnvTopK, config.Model.TopK, common.DefaultTopK),
		HoldoutFraction: getFloatFromEnvOrConfig(common.EnvHoldoutFraction, config.Model.HoldoutFraction, common.DefaultHoldoutFraction),
		Seed:            int64(getIntFromEnvOrConfig(common.EnvSeed, int(config.Model.Seed), common.DefaultSeed)),
		Forest: ForestSettings{
			Trees:           getIntFromEnvOrConfig(common.EnvForestTrees, config.Forest.Trees, common.DefaultForestTrees),
			MaxDepth:        getIntFromEnvOrConfig(common.EnvForestMaxDepth, config.Forest.MaxDepth, common.DefaultForestMaxDepth),
			MinSamplesSplit: getIntFromEnvOrConfig(common.EnvForestMinSplit, config.Forest.MinSamplesSplit, common.DefaultForestMinSplit),
			MaxFeatures:     getIntFromEnvOrConfig(common.EnvForestMaxFeatures, config.Forest.MaxFeatures, common.DefaultForestMaxFeat),
			Workers:         getIntFromEnvOrConfig(common.EnvForestWorkers, config.Forest.Workers, common.DefaultForestWorkers),
		},
		SampleSize:    getIntFromEnvOrConfig(common.EnvSampleSize, config.Source.SampleSize, common.DefaultSampleSize),
		SourceURL:     getStringFromEnvOrConfig(common.EnvSourceURL, config.Source.URL, ""),
		SourceTimeout: getDurationOrDefault(common.EnvSourceTimeout, timeout),
		SQLitePath:    getStringFromEnvOrConfig(common.EnvSQLitePath, config.Source.SQLitePath, ""),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		DataPath:        getEnvOrDefault(common.EnvDataPath, common.DefaultDataPath),
		ModelPath:       getEnvOrDefault(common.EnvModelPath, common.DefaultModelPath),
		ModelsDir:       getEnvOrDefault(common.EnvModelsDir, common.DefaultModelsDir),
		MetricsPort:     getIntOrDefault(common.EnvMetricsPort, common.DefaultMetricsPort),
		LogLevel:        getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		LogFormat:       getEnvOrDefault(common.EnvLogFormat, common.DefaultLogFormat),
		TopK:            getIntOrDefault(common.EnvTopK, common.DefaultTopK),
		HoldoutFraction: getFloatOrDefault(common.EnvHoldoutFraction, common.DefaultHoldoutFraction),
		Seed:            int64(getIntOrDefault(common.EnvSeed, common.DefaultSeed)),
		Forest: ForestSettings{
			Trees:           getIntOrDefault(common.EnvForestTrees, common.DefaultForestTrees),
			MaxDepth:        getIntOrDefault(common.EnvForestMaxDepth, common.DefaultForestMaxDepth),
			MinSamplesSplit: getIntOrDefault(common.EnvForestMinSplit, common.DefaultForestMinSplit),
			MaxFeatures:     getIntOrDefault(common.EnvForestMaxFeatures, common.DefaultForestMaxFeat),
			Workers:         getIntOrDefault(common.EnvForestWorkers, common.DefaultForestWorkers),
		},
		SampleSize:    getIntOrDefault(common.EnvSampleSize, common.DefaultSampleSize),
		SourceURL:     os.Getenv(common.EnvSourceURL), // optional
		SourceTimeout: getDurationOrDefault(common.EnvSourceTimeout, common.DefaultSourceTimeout),
		SQLitePath:    os.Getenv(common.EnvSQLitePath), // optional
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getStringFromEnvOrConfig(key, configValue, defaultValue string) string {
	if env := os.Getenv(key); env != "" {
		return env
	}
	if strings.TrimSpace(configValue) != "" {
		return configValue
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func getFloatFromEnvOrConfig(key string, configValue, defaultValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

// validateSettings performs range validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.ModelPath == "" {
		return fmt.Errorf("model path cannot be empty")
	}
	if settings.ModelsDir == "" {
		return fmt.Errorf("models directory cannot be empty")
	}

	if settings.MetricsPort != 0 && (settings.MetricsPort < 1024 || settings.MetricsPort > 65535) {
		return fmt.Errorf("metrics port must be 0 or between 1024 and 65535, got %d", settings.MetricsPort)
	}

	switch settings.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log format must be console or json, got %q", settings.LogFormat)
	}

	if settings.TopK < 1 || settings.TopK > common.MaxTopK {
		return fmt.Errorf("top k must be between 1 and %d, got %d", common.MaxTopK, settings.TopK)
	}
	if settings.HoldoutFraction < 0 || settings.HoldoutFraction >= 1 {
		return fmt.Errorf("holdout fraction must be in [0, 1), got %f", settings.HoldoutFraction)
	}

	f := settings.Forest
	if f.Trees < 1 || f.Trees > common.MaxForestTrees {
		return fmt.Errorf("forest trees must be between 1 and %d, got %d", common.MaxForestTrees, f.Trees)
	}
	if f.MaxDepth < 0 {
		return fmt.Errorf("forest max depth cannot be negative, got %d", f.MaxDepth)
	}
	if f.MinSamplesSplit < 2 {
		return fmt.Errorf("forest min samples split must be at least 2, got %d", f.MinSamplesSplit)
	}
	if n := ml.WorkoutSchema().Len(); f.MaxFeatures < 0 || f.MaxFeatures > n {
		return fmt.Errorf("forest max features must be between 0 and %d, got %d", n, f.MaxFeatures)
	}
	if f.Workers < 0 {
		return fmt.Errorf("forest workers cannot be negative, got %d", f.Workers)
	}

	if settings.SampleSize < 1 || settings.SampleSize > common.MaxSampleSize {
		return fmt.Errorf("sample size must be between 1 and %d, got %d", common.MaxSampleSize, settings.SampleSize)
	}
	if settings.SourceTimeout < time.Second || settings.SourceTimeout > 5*time.Minute {
		return fmt.Errorf("source timeout must be between 1s and 5m, got %v", settings.SourceTimeout)
	}
	if settings.SourceURL != "" && !strings.HasPrefix(settings.SourceURL, "http://") && !strings.HasPrefix(settings.SourceURL, "https://") {
		return fmt.Errorf("source URL must use http or https, got %s", settings.SourceURL)
	}

	return nil
}
