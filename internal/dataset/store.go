package dataset

import (
	"context"
	"fmt"

	"workout-recommender/internal/ml"
	"workout-recommender/internal/storage"
)

// StoreSource reads examples previously saved in the bbolt store.
type StoreSource struct {
	store  *storage.Store
	source string
}

// NewStoreSource reads the examples stored under source.
func NewStoreSource(store *storage.Store, source string) *StoreSource {
	return &StoreSource{store: store, source: source}
}

// Name implements Source.
func (s *StoreSource) Name() string { return "store:" + s.source }

// Load implements Source.
func (s *StoreSource) Load(ctx context.Context) ([]ml.TrainingExample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	examples, err := s.store.GetExamples(s.source)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.Name(), err)
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("load %s: no examples stored", s.Name())
	}
	return examples, nil
}

// Import copies everything src yields into the store under name.
func Import(ctx context.Context, src Source, store *storage.Store, name string) (int, error) {
	examples, err := src.Load(ctx)
	if err != nil {
		return 0, err
	}
	if err := store.StoreExamples(name, examples); err != nil {
		return 0, fmt.Errorf("import %s: %w", src.Name(), err)
	}
	return len(examples), nil
}
