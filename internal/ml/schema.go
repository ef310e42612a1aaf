package ml

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// SchemaVersion is bumped whenever the persisted layout of a bundle changes.
const SchemaVersion = 1

// LabelAttribute names the target column of a training example.
const LabelAttribute = "recommended_plan"

// Kind tags an attribute as numeric or categorical.
type Kind string

const (
	Numeric     Kind = "numeric"
	Categorical Kind = "categorical"
)

// Attribute is one column of the feature schema. Values lists the allowed
// categories of a categorical attribute when they are known up front.
type Attribute struct {
	Name   string   `json:"name"`
	Kind   Kind     `json:"kind"`
	Values []string `json:"values,omitempty"`
}

// Allows reports whether v is a declared category. Attributes without a
// declared value set accept any category.
func (a Attribute) Allows(v string) bool {
	if len(a.Values) == 0 {
		return true
	}
	for _, d := range a.Values {
		if d == v {
			return true
		}
	}
	return false
}

// Schema is the ordered attribute list shared by training and inference.
type Schema struct {
	Attributes []Attribute `json:"attributes"`
}

// Attribute names of the workout schema.
const (
	AttrAge                = "age"
	AttrFitnessLevel       = "fitness_level"
	AttrGoal               = "goal"
	AttrExperienceYears    = "experience_years"
	AttrBMI                = "bmi"
	AttrWeeklyWorkouts     = "weekly_workouts"
	AttrAvgWorkoutDuration = "avg_workout_duration"
)

// WorkoutSchema returns the fixed schema used for workout-plan recommendations.
func WorkoutSchema() *Schema {
	return &Schema{Attributes: []Attribute{
		{Name: AttrAge, Kind: Numeric},
		{Name: AttrFitnessLevel, Kind: Categorical, Values: []string{"beginner", "intermediate", "advanced"}},
		{Name: AttrGoal, Kind: Categorical, Values: []string{"weight_loss", "muscle_gain", "endurance", "strength"}},
		{Name: AttrExperienceYears, Kind: Numeric},
		{Name: AttrBMI, Kind: Numeric},
		{Name: AttrWeeklyWorkouts, Kind: Numeric},
		{Name: AttrAvgWorkoutDuration, Kind: Numeric},
	}}
}

// Len returns the number of attributes.
func (s *Schema) Len() int { return len(s.Attributes) }

// Names returns the attribute names in schema order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Attributes))
	for i, a := range s.Attributes {
		names[i] = a.Name
	}
	return names
}

// Index returns the position of the named attribute, or -1.
func (s *Schema) Index(name string) int {
	for i, a := range s.Attributes {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// NumericIndices returns the positions of numeric attributes.
func (s *Schema) NumericIndices() []int {
	var idx []int
	for i, a := range s.Attributes {
		if a.Kind == Numeric {
			idx = append(idx, i)
		}
	}
	return idx
}

// CategoricalNames returns the names of categorical attributes in schema order.
func (s *Schema) CategoricalNames() []string {
	var names []string
	for _, a := range s.Attributes {
		if a.Kind == Categorical {
			names = append(names, a.Name)
		}
	}
	return names
}

// Fingerprint is a stable description of names, kinds and order. Two schemas
// with equal fingerprints produce interchangeable feature vectors.
func (s *Schema) Fingerprint() string {
	parts := make([]string, 0, len(s.Attributes)+1)
	parts = append(parts, fmt.Sprintf("v%d", SchemaVersion))
	for _, a := range s.Attributes {
		parts = append(parts, a.Name+":"+string(a.Kind))
	}
	return strings.Join(parts, "|")
}

// Validate checks that the schema itself is usable.
func (s *Schema) Validate() error {
	if s == nil || len(s.Attributes) == 0 {
		return fmt.Errorf("schema has no attributes")
	}
	seen := make(map[string]bool, len(s.Attributes))
	for _, a := range s.Attributes {
		if a.Name == "" {
			return fmt.Errorf("schema attribute with empty name")
		}
		if seen[a.Name] {
			return fmt.Errorf("duplicate schema attribute %s", a.Name)
		}
		if a.Kind != Numeric && a.Kind != Categorical {
			return fmt.Errorf("attribute %s has unknown kind %q", a.Name, a.Kind)
		}
		seen[a.Name] = true
	}
	return nil
}

// Record is one feature object keyed by attribute name. Numeric attributes
// hold Go numbers, categorical attributes hold strings.
type Record map[string]any

// Check reports a *ShapeMismatchError when rec has missing, extra or
// wrongly typed attributes.
func (s *Schema) Check(rec Record) error {
	var mismatch ShapeMismatchError
	for _, a := range s.Attributes {
		v, ok := rec[a.Name]
		if !ok || v == nil {
			mismatch.Missing = append(mismatch.Missing, a.Name)
			continue
		}
		switch a.Kind {
		case Numeric:
			if _, ok := toFloat(v); !ok {
				mismatch.Mistyped = append(mismatch.Mistyped, a.Name)
			}
		case Categorical:
			if _, ok := v.(string); !ok {
				mismatch.Mistyped = append(mismatch.Mistyped, a.Name)
			}
		}
	}
	for name := range rec {
		if s.Index(name) < 0 {
			mismatch.Extra = append(mismatch.Extra, name)
		}
	}
	if len(mismatch.Missing)+len(mismatch.Extra)+len(mismatch.Mistyped) == 0 {
		return nil
	}
	sort.Strings(mismatch.Extra)
	mismatch.Expected = len(s.Attributes)
	mismatch.Got = len(rec)
	return &mismatch
}

// ToFloat converts any Go number or json.Number to float64.
func ToFloat(v any) (float64, bool) {
	return toFloat(v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// UserProfile is the typed form of a workout feature record.
type UserProfile struct {
	Age                float64 `json:"age" yaml:"age" validate:"gte=0,lte=120"`
	FitnessLevel       string  `json:"fitness_level" yaml:"fitness_level" validate:"required"`
	Goal               string  `json:"goal" yaml:"goal" validate:"required"`
	ExperienceYears    float64 `json:"experience_years" yaml:"experience_years" validate:"gte=0,lte=80"`
	BMI                float64 `json:"bmi" yaml:"bmi" validate:"gt=0,lte=100"`
	WeeklyWorkouts     float64 `json:"weekly_workouts" yaml:"weekly_workouts" validate:"gte=0,lte=21"`
	AvgWorkoutDuration float64 `json:"avg_workout_duration" yaml:"avg_workout_duration" validate:"gte=0,lte=600"`
}

// Record converts the profile into a schema-keyed record.
func (p UserProfile) Record() Record {
	return Record{
		AttrAge:                p.Age,
		AttrFitnessLevel:       p.FitnessLevel,
		AttrGoal:               p.Goal,
		AttrExperienceYears:    p.ExperienceYears,
		AttrBMI:                p.BMI,
		AttrWeeklyWorkouts:     p.WeeklyWorkouts,
		AttrAvgWorkoutDuration: p.AvgWorkoutDuration,
	}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func profileValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks numeric ranges and required categorical fields. Whether a
// category is known is decided by the fitted encoders, not here.
func (p UserProfile) Validate() error {
	if err := profileValidator().Struct(p); err != nil {
		return fmt.Errorf("invalid user profile: %w", err)
	}
	return nil
}

// TrainingExample is a full feature record plus its ground-truth plan.
type TrainingExample struct {
	Features Record `json:"features"`
	Label    string `json:"label"`
}
