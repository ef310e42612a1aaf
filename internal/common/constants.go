package common

import "time"

// Fitness levels
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

// Training goals
const (
	GoalWeightLoss = "weight_loss"
	GoalMuscleGain = "muscle_gain"
	GoalEndurance  = "endurance"
	GoalStrength   = "strength"
)

// Plan families. A plan name is "<family>_<level>", e.g. cardio_beginner.
const (
	PlanCardio    = "cardio"
	PlanStrength  = "strength"
	PlanEndurance = "endurance"
	PlanPower     = "power"
)

// FitnessLevels lists levels in ascending order.
var FitnessLevels = []string{LevelBeginner, LevelIntermediate, LevelAdvanced}

// Goals lists the supported training goals.
var Goals = []string{GoalWeightLoss, GoalMuscleGain, GoalEndurance, GoalStrength}

// PlanName joins a plan family and a level.
func PlanName(family, level string) string {
	return family + "_" + level
}

// Environment variable keys
const (
	EnvConfigFile        = "CONFIG_FILE"
	EnvDataPath          = "DATA_PATH"
	EnvModelPath         = "MODEL_PATH"
	EnvModelsDir         = "MODELS_DIR"
	EnvMetricsPort       = "METRICS_PORT"
	EnvTopK              = "TOP_K"
	EnvForestTrees       = "FOREST_TREES"
	EnvForestMaxDepth    = "FOREST_MAX_DEPTH"
	EnvForestMinSplit    = "FOREST_MIN_SPLIT"
	EnvForestMaxFeatures = "FOREST_MAX_FEATURES"
	EnvForestWorkers     = "FOREST_WORKERS"
	EnvSeed              = "SEED"
	EnvHoldoutFraction   = "HOLDOUT_FRACTION"
	EnvSampleSize        = "SAMPLE_SIZE"
	EnvSourceURL         = "SOURCE_URL"
	EnvSourceTimeout     = "SOURCE_TIMEOUT"
	EnvSQLitePath        = "SQLITE_PATH"
	EnvLogLevel          = "LOG_LEVEL"
	EnvLogFormat         = "LOG_FORMAT"
)

// Configuration defaults
const (
	DefaultDataPath        = "data"
	DefaultModelPath       = "models/workout_recommendation_model.json"
	DefaultModelsDir       = "models/versions"
	DefaultMetricsPort     = 0 // disabled
	DefaultTopK            = 3
	DefaultForestTrees     = 100
	DefaultForestMaxDepth  = 0
	DefaultForestMinSplit  = 2
	DefaultForestMaxFeat   = 0
	DefaultForestWorkers   = 0
	DefaultSeed            = 42
	DefaultHoldoutFraction = 0.2
	DefaultSampleSize      = 1000
	DefaultSourceTimeout   = 10 * time.Second
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "console"
)

// Validation limits
const (
	MaxTopK        = 12
	MaxForestTrees = 5000
	MaxSampleSize  = 10_000_000
)
