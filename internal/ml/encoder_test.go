package ml

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitEncoder_LexicographicCodes(t *testing.T) {
	enc, err := FitEncoder("goal", []string{"weight_loss", "endurance", "muscle_gain", "endurance", "strength"})
	require.NoError(t, err)

	assert.Equal(t, []string{"endurance", "muscle_gain", "strength", "weight_loss"}, enc.Classes)
	for want, v := range enc.Classes {
		code, err := enc.Transform(v)
		require.NoError(t, err)
		assert.Equal(t, want, code)

		back, err := enc.InverseTransform(code)
		require.NoError(t, err)
		assert.Equal(t, v, back)
	}
}

func TestFitEncoder_OrderIndependent(t *testing.T) {
	a, err := FitEncoder("level", []string{"beginner", "advanced", "intermediate"})
	require.NoError(t, err)
	b, err := FitEncoder("level", []string{"intermediate", "intermediate", "beginner", "advanced"})
	require.NoError(t, err)
	assert.Equal(t, a.Classes, b.Classes)
}

func TestEncoder_UnknownCategory(t *testing.T) {
	enc, err := FitEncoder("fitness_level", []string{"beginner", "advanced"})
	require.NoError(t, err)

	_, err = enc.Transform("elite")
	require.Error(t, err)

	var unknown *UnknownCategoryError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "fitness_level", unknown.Attribute)
	assert.Equal(t, "elite", unknown.Value)
	assert.ErrorIs(t, err, ErrUnknownCategory)
	assert.True(t, IsValidationError(err))

	// the encoder does not learn the new value
	assert.Equal(t, 2, enc.Len())
}

func TestEncoder_InverseOutOfRange(t *testing.T) {
	enc, err := FitEncoder("goal", []string{"strength"})
	require.NoError(t, err)

	_, err = enc.InverseTransform(1)
	assert.Error(t, err)
	_, err = enc.InverseTransform(-1)
	assert.Error(t, err)
}

func TestFitEncoder_Empty(t *testing.T) {
	_, err := FitEncoder("goal", nil)
	assert.Error(t, err)
}

func TestEncoder_Rebuild(t *testing.T) {
	tests := []struct {
		name    string
		classes []string
		wantErr bool
	}{
		{"sorted", []string{"a", "b", "c"}, false},
		{"unsorted", []string{"b", "a"}, true},
		{"duplicate", []string{"a", "a"}, true},
		{"empty", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := &CategoricalEncoder{Attribute: "x", Classes: tt.classes}
			err := enc.rebuild()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			code, err := enc.Transform("b")
			require.NoError(t, err)
			assert.Equal(t, 1, code)
		})
	}
}

func TestAttribute_Allows(t *testing.T) {
	level := WorkoutSchema().Attributes[WorkoutSchema().Index(AttrFitnessLevel)]
	assert.True(t, level.Allows("advanced"))
	assert.False(t, level.Allows("elite"))

	free := Attribute{Name: "club", Kind: Categorical}
	assert.True(t, free.Allows("anything"))
}
