package ml

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is checks. Every typed error below unwraps to one of these.
var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrShapeMismatch   = errors.New("feature shape mismatch")
	ErrModelNotTrained = errors.New("model not trained")
	ErrCorruptBundle   = errors.New("corrupt model bundle")
)

// UnknownCategoryError is returned when a categorical value was never seen
// while the encoder was fit.
type UnknownCategoryError struct {
	Attribute string
	Value     string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category %q for attribute %s", e.Value, e.Attribute)
}

func (e *UnknownCategoryError) Unwrap() error { return ErrUnknownCategory }

// ShapeMismatchError describes how a feature record or vector differs from the
// schema it was checked against.
type ShapeMismatchError struct {
	Missing  []string
	Extra    []string
	Mistyped []string
	Expected int
	Got      int
}

func (e *ShapeMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ","))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, "unexpected "+strings.Join(e.Extra, ","))
	}
	if len(e.Mistyped) > 0 {
		parts = append(parts, "wrong type for "+strings.Join(e.Mistyped, ","))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("feature shape mismatch: expected %d values, got %d", e.Expected, e.Got)
	}
	return "feature shape mismatch: " + strings.Join(parts, "; ")
}

func (e *ShapeMismatchError) Unwrap() error { return ErrShapeMismatch }

// ModelNotTrainedError is returned by operations that need a trained bundle.
type ModelNotTrainedError struct {
	Op string
}

func (e *ModelNotTrainedError) Error() string {
	return fmt.Sprintf("%s: model must be trained first", e.Op)
}

func (e *ModelNotTrainedError) Unwrap() error { return ErrModelNotTrained }

// CorruptBundleError rejects a persisted bundle as a whole.
type CorruptBundleError struct {
	Reason string
	Err    error
}

func (e *CorruptBundleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt model bundle: %s: %v", e.Reason, e.Err)
	}
	return "corrupt model bundle: " + e.Reason
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *CorruptBundleError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrCorruptBundle, e.Err}
	}
	return []error{ErrCorruptBundle}
}

func corrupt(format string, args ...any) *CorruptBundleError {
	return &CorruptBundleError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err is a caller-input error (unknown
// category or shape mismatch) rather than an engine state error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrUnknownCategory) || errors.Is(err, ErrShapeMismatch)
}
