package cfg

import (
	"strings"

	"github.com/rs/zerolog"

	"workout-recommender/internal/ml"
)

// EngineConfig converts settings into the engine's training configuration.
func (s *Settings) EngineConfig() ml.EngineConfig {
	cfg := ml.DefaultEngineConfig()
	cfg.TopK = s.TopK
	cfg.HoldoutFraction = s.HoldoutFraction
	cfg.Seed = s.Seed
	cfg.Forest.Trees = s.Forest.Trees
	cfg.Forest.MaxDepth = s.Forest.MaxDepth
	cfg.Forest.MinSamplesSplit = s.Forest.MinSamplesSplit
	cfg.Forest.MaxFeatures = s.Forest.MaxFeatures
	cfg.Forest.Workers = s.Forest.Workers
	cfg.Forest.Seed = s.Seed
	return cfg
}

// Level parses LogLevel, falling back to info.
func (s *Settings) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(s.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
