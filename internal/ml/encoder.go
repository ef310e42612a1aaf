package ml

import (
	"fmt"
	"sort"
)

// CategoricalEncoder maps the distinct values of one categorical attribute to
// dense codes 0..n-1. Codes follow the lexicographic order of the values seen
// at fit time, so an encoder rebuilt from the same data is identical.
type CategoricalEncoder struct {
	Attribute string   `json:"attribute"`
	Classes   []string `json:"classes"`

	index map[string]int
}

// FitEncoder builds an encoder from the observed values of an attribute.
func FitEncoder(attribute string, values []string) (*CategoricalEncoder, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("fit encoder %s: no values", attribute)
	}
	seen := make(map[string]struct{}, 8)
	for _, v := range values {
		seen[v] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Strings(classes)
	return newEncoder(attribute, classes)
}

func newEncoder(attribute string, classes []string) (*CategoricalEncoder, error) {
	e := &CategoricalEncoder{
		Attribute: attribute,
		Classes:   classes,
		index:     make(map[string]int, len(classes)),
	}
	for i, c := range classes {
		if _, dup := e.index[c]; dup {
			return nil, fmt.Errorf("encoder %s: duplicate class %q", attribute, c)
		}
		e.index[c] = i
	}
	return e, nil
}

// Len returns the number of known categories.
func (e *CategoricalEncoder) Len() int { return len(e.Classes) }

// Transform returns the code of v, or an *UnknownCategoryError.
func (e *CategoricalEncoder) Transform(v string) (int, error) {
	code, ok := e.index[v]
	if !ok {
		return 0, &UnknownCategoryError{Attribute: e.Attribute, Value: v}
	}
	return code, nil
}

// InverseTransform recovers the category for a code.
func (e *CategoricalEncoder) InverseTransform(code int) (string, error) {
	if code < 0 || code >= len(e.Classes) {
		return "", fmt.Errorf("encoder %s: code %d out of range [0,%d)", e.Attribute, code, len(e.Classes))
	}
	return e.Classes[code], nil
}

// rebuild restores the lookup index after decoding from disk and checks that
// the persisted classes are still sorted and unique. Only call it on an
// encoder nothing else can see yet.
func (e *CategoricalEncoder) rebuild() error {
	if len(e.Classes) == 0 {
		return fmt.Errorf("encoder %s has no classes", e.Attribute)
	}
	if !sort.StringsAreSorted(e.Classes) {
		return fmt.Errorf("encoder %s classes are not in lexicographic order", e.Attribute)
	}
	fresh, err := newEncoder(e.Attribute, e.Classes)
	if err != nil {
		return err
	}
	e.index = fresh.index
	return nil
}

// validate checks the classes and lookup index. It never writes to e.
func (e *CategoricalEncoder) validate() error {
	if len(e.Classes) == 0 {
		return fmt.Errorf("encoder %s has no classes", e.Attribute)
	}
	if !sort.StringsAreSorted(e.Classes) {
		return fmt.Errorf("encoder %s classes are not in lexicographic order", e.Attribute)
	}
	if len(e.index) != len(e.Classes) {
		return fmt.Errorf("encoder %s index covers %d of %d classes", e.Attribute, len(e.index), len(e.Classes))
	}
	for i, c := range e.Classes {
		if code, ok := e.index[c]; !ok || code != i {
			return fmt.Errorf("encoder %s index disagrees for %q", e.Attribute, c)
		}
	}
	return nil
}
