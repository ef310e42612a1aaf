package ml

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/goccy/go-json"
)

// BundleFormat identifies a persisted bundle file.
const BundleFormat = "workout-plan-bundle"

// BundleMetrics records how the bundle performed when it was trained.
type BundleMetrics struct {
	Accuracy         float64 `json:"accuracy"`
	BaselineAccuracy float64 `json:"baseline_accuracy"`
	TrainingRows     int     `json:"training_rows"`
	HoldoutRows      int     `json:"holdout_rows"`
}

// Bundle is the unit of persistence and atomic replacement: the encoders,
// scaler and forest that were fit together. A Bundle is never mutated after
// it is built; retraining produces a new one.
type Bundle struct {
	ID            string                         `json:"id"`
	SchemaVersion int                            `json:"schema_version"`
	Schema        *Schema                        `json:"schema"`
	Encoders      map[string]*CategoricalEncoder `json:"encoders"`
	LabelEncoder  *CategoricalEncoder            `json:"label_encoder"`
	Scaler        *Scaler                        `json:"scaler"`
	Forest        *Forest                        `json:"forest"`
	Trained       bool                           `json:"trained"`
	TrainedAt     time.Time                      `json:"trained_at"`
	Metrics       BundleMetrics                  `json:"metrics"`
}

// Labels returns plan names indexed by class code.
func (b *Bundle) Labels() []string {
	return b.LabelEncoder.Classes
}

// Encode turns a record into an unscaled feature vector.
func (b *Bundle) Encode(rec Record) ([]float64, error) {
	if err := b.Schema.Check(rec); err != nil {
		return nil, err
	}
	x := make([]float64, b.Schema.Len())
	for i, a := range b.Schema.Attributes {
		switch a.Kind {
		case Numeric:
			v, _ := toFloat(rec[a.Name])
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &ShapeMismatchError{Mistyped: []string{a.Name}, Expected: b.Schema.Len(), Got: len(rec)}
			}
			x[i] = v
		case Categorical:
			code, err := b.Encoders[a.Name].Transform(rec[a.Name].(string))
			if err != nil {
				return nil, err
			}
			x[i] = float64(code)
		}
	}
	return x, nil
}

// Vector encodes and scales a record with the bundle's fitted parameters.
func (b *Bundle) Vector(rec Record) ([]float64, error) {
	x, err := b.Encode(rec)
	if err != nil {
		return nil, err
	}
	return b.Scaler.Transform(x)
}

// PredictProba returns the class distribution for rec, indexed like Labels.
func (b *Bundle) PredictProba(rec Record) ([]float64, error) {
	if b == nil || !b.Trained || b.Forest == nil {
		return nil, &ModelNotTrainedError{Op: "predict"}
	}
	x, err := b.Vector(rec)
	if err != nil {
		return nil, err
	}
	return b.Forest.PredictProba(x)
}

// Predict ranks the top k plans for rec.
func (b *Bundle) Predict(rec Record, k int, now time.Time) (*Prediction, error) {
	probs, err := b.PredictProba(rec)
	if err != nil {
		return nil, err
	}
	return Recommend(probs, b.Labels(), k, now)
}

// check verifies that all parts are present and agree with each other. It
// only reads b, so published bundles can be checked again.
func (b *Bundle) check() error {
	if b.Schema == nil {
		return corrupt("schema is missing")
	}
	if err := b.Schema.Validate(); err != nil {
		return &CorruptBundleError{Reason: "invalid schema", Err: err}
	}
	if b.SchemaVersion != SchemaVersion {
		return corrupt("schema version %d, expected %d", b.SchemaVersion, SchemaVersion)
	}

	categorical := b.Schema.CategoricalNames()
	if b.Encoders == nil {
		return corrupt("categorical encoders are missing")
	}
	for _, name := range categorical {
		enc, ok := b.Encoders[name]
		if !ok || enc == nil {
			return corrupt("encoder for %s is missing", name)
		}
		if enc.Attribute != name {
			return corrupt("encoder for %s is labelled %s", name, enc.Attribute)
		}
		if err := enc.validate(); err != nil {
			return &CorruptBundleError{Reason: "invalid encoder", Err: err}
		}
	}
	for name := range b.Encoders {
		if !slices.Contains(categorical, name) {
			return corrupt("encoder for unknown attribute %s", name)
		}
	}

	if b.LabelEncoder == nil {
		return corrupt("label encoder is missing")
	}
	if err := b.LabelEncoder.validate(); err != nil {
		return &CorruptBundleError{Reason: "invalid label encoder", Err: err}
	}

	if b.Scaler == nil {
		return corrupt("scaler is missing")
	}
	if err := b.Scaler.matches(b.Schema); err != nil {
		return &CorruptBundleError{Reason: "scaler does not match schema", Err: err}
	}

	if b.Forest == nil {
		return corrupt("classifier is missing")
	}
	if err := b.Forest.check(); err != nil {
		return &CorruptBundleError{Reason: "invalid classifier", Err: err}
	}
	if b.Forest.NumFeatures != b.Schema.Len() {
		return corrupt("classifier expects %d features, schema has %d", b.Forest.NumFeatures, b.Schema.Len())
	}
	if b.Forest.Classes != b.LabelEncoder.Len() {
		return corrupt("classifier has %d classes, label encoder has %d", b.Forest.Classes, b.LabelEncoder.Len())
	}

	if !b.Trained {
		return corrupt("trained flag is not set")
	}
	return nil
}

// rebuildIndexes restores encoder lookups on a freshly decoded bundle. Missing
// encoders are left for check to report.
func (b *Bundle) rebuildIndexes() error {
	for name, enc := range b.Encoders {
		if enc == nil {
			continue
		}
		if err := enc.rebuild(); err != nil {
			return &CorruptBundleError{Reason: "invalid encoder " + name, Err: err}
		}
	}
	if b.LabelEncoder != nil {
		if err := b.LabelEncoder.rebuild(); err != nil {
			return &CorruptBundleError{Reason: "invalid label encoder", Err: err}
		}
	}
	return nil
}

type bundleFile struct {
	Format        string          `json:"format"`
	SchemaVersion int             `json:"schema_version"`
	Fingerprint   string          `json:"schema_fingerprint"`
	Attributes    []string        `json:"attributes"`
	Labels        []string        `json:"labels"`
	Checksum      string          `json:"checksum"`
	Payload       json.RawMessage `json:"payload"`
}

// SaveBundle writes b to path as a single artifact. The write goes to a
// temporary file in the same directory and is renamed into place.
func SaveBundle(b *Bundle, path string) error {
	if b == nil || !b.Trained {
		return &ModelNotTrainedError{Op: "save"}
	}
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}
	sum := sha256.Sum256(payload)
	data, err := json.Marshal(bundleFile{
		Format:        BundleFormat,
		SchemaVersion: SchemaVersion,
		Fingerprint:   b.Schema.Fingerprint(),
		Attributes:    b.Schema.Names(),
		Labels:        b.Labels(),
		Checksum:      hex.EncodeToString(sum[:]),
		Payload:       payload,
	})
	if err != nil {
		return fmt.Errorf("marshal bundle envelope: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create bundle directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp bundle file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write bundle: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync bundle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close bundle: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename bundle: %w", err)
	}
	return nil
}

// LoadBundle reads and fully validates a bundle. When schema is non-nil the
// bundle must have been trained against an identical schema. Any
// inconsistency yields a *CorruptBundleError and no bundle.
func LoadBundle(path string, schema *Schema) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle %s: %w", path, err)
	}
	return DecodeBundle(data, schema)
}

// DecodeBundle validates a bundle held in memory.
func DecodeBundle(data []byte, schema *Schema) (*Bundle, error) {
	var file bundleFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, &CorruptBundleError{Reason: "unreadable envelope", Err: err}
	}
	if file.Format != BundleFormat {
		return nil, corrupt("unexpected format %q", file.Format)
	}
	if file.SchemaVersion != SchemaVersion {
		return nil, corrupt("schema version %d, expected %d", file.SchemaVersion, SchemaVersion)
	}
	if len(file.Payload) == 0 {
		return nil, corrupt("payload is missing")
	}
	sum := sha256.Sum256(file.Payload)
	if hex.EncodeToString(sum[:]) != file.Checksum {
		return nil, corrupt("checksum mismatch")
	}
	if schema != nil && file.Fingerprint != schema.Fingerprint() {
		return nil, corrupt("schema %q is incompatible with %q", file.Fingerprint, schema.Fingerprint())
	}

	var b Bundle
	dec := json.NewDecoder(bytes.NewReader(file.Payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&b); err != nil {
		return nil, &CorruptBundleError{Reason: "unreadable payload", Err: err}
	}
	if err := b.rebuildIndexes(); err != nil {
		return nil, err
	}
	if err := b.check(); err != nil {
		return nil, err
	}
	if b.Schema.Fingerprint() != file.Fingerprint {
		return nil, corrupt("payload schema does not match envelope")
	}
	if !slices.Equal(b.Schema.Names(), file.Attributes) {
		return nil, corrupt("attribute order does not match envelope")
	}
	if !slices.Equal(b.Labels(), file.Labels) {
		return nil, corrupt("label set does not match envelope")
	}
	return &b, nil
}
