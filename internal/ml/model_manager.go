package ml

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// ModelVersion is one registered bundle.
type ModelVersion struct {
	Version   string        `json:"version"`
	BundleID  string        `json:"bundle_id"`
	Path      string        `json:"path"`
	CreatedAt time.Time     `json:"created_at"`
	Metrics   BundleMetrics `json:"metrics"`
	IsActive  bool          `json:"is_active"`
}

// ModelManager keeps saved bundles side by side and tracks which one is active.
// Versions are listed newest first.
type ModelManager struct {
	mu           sync.Mutex
	modelsDir    string
	versionsFile string
	versions     []ModelVersion
	now          func() time.Time
}

// NewModelManager opens the registry in modelsDir, creating the directory if needed.
func NewModelManager(modelsDir string) (*ModelManager, error) {
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create models directory: %w", err)
	}
	mm := &ModelManager{
		modelsDir:    modelsDir,
		versionsFile: filepath.Join(modelsDir, "model_versions.json"),
		now:          time.Now,
	}
	if err := mm.loadVersions(); err != nil {
		return nil, fmt.Errorf("load model versions: %w", err)
	}
	return mm, nil
}

// AddVersion saves b into the registry. The new version is not active until
// ActivateVersion is called.
func (mm *ModelManager) AddVersion(b *Bundle) (*ModelVersion, error) {
	if b == nil || !b.Trained {
		return nil, &ModelNotTrainedError{Op: "add_version"}
	}
	mm.mu.Lock()
	defer mm.mu.Unlock()

	created := mm.now().UTC()
	version := created.Format("20060102-150405")
	if len(b.ID) >= 8 {
		version += "-" + b.ID[:8]
	}
	path := filepath.Join(mm.modelsDir, "bundle-"+version+".json")
	if err := SaveBundle(b, path); err != nil {
		return nil, err
	}

	v := ModelVersion{
		Version:   version,
		BundleID:  b.ID,
		Path:      path,
		CreatedAt: created,
		Metrics:   b.Metrics,
	}
	mm.versions = append([]ModelVersion{v}, mm.versions...)
	if err := mm.saveVersions(); err != nil {
		return nil, err
	}
	log.Info().Str("version", version).Str("bundle_id", b.ID).Msg("model version added")
	return &v, nil
}

// ActivateVersion marks version as the active one.
func (mm *ModelManager) ActivateVersion(version string) error {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.activate(version)
}

func (mm *ModelManager) activate(version string) error {
	idx := mm.indexOf(version)
	if idx < 0 {
		return fmt.Errorf("version %s not found", version)
	}
	for i := range mm.versions {
		mm.versions[i].IsActive = i == idx
	}
	return mm.saveVersions()
}

// Rollback activates the version registered just before the active one.
func (mm *ModelManager) Rollback() (*ModelVersion, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	current := -1
	for i, v := range mm.versions {
		if v.IsActive {
			current = i
			break
		}
	}
	if current < 0 {
		return nil, fmt.Errorf("no active version found")
	}
	if current+1 >= len(mm.versions) {
		return nil, fmt.Errorf("no previous version available for rollback")
	}
	prev := mm.versions[current+1]
	if err := mm.activate(prev.Version); err != nil {
		return nil, err
	}
	log.Info().Str("from", mm.versions[current].Version).Str("to", prev.Version).Msg("model rolled back")
	prev.IsActive = true
	return &prev, nil
}

// GetCurrentVersion returns the active version, or nil.
func (mm *ModelManager) GetCurrentVersion() *ModelVersion {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	for _, v := range mm.versions {
		if v.IsActive {
			return &v
		}
	}
	return nil
}

// ListVersions returns a copy of all versions, newest first.
func (mm *ModelManager) ListVersions() []ModelVersion {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	out := make([]ModelVersion, len(mm.versions))
	copy(out, mm.versions)
	return out
}

// LoadActive validates and returns the active bundle.
func (mm *ModelManager) LoadActive(schema *Schema) (*Bundle, error) {
	v := mm.GetCurrentVersion()
	if v == nil {
		return nil, &ModelNotTrainedError{Op: "load_active"}
	}
	return LoadBundle(v.Path, schema)
}

func (mm *ModelManager) indexOf(version string) int {
	for i, v := range mm.versions {
		if v.Version == version {
			return i
		}
	}
	return -1
}

func (mm *ModelManager) loadVersions() error {
	data, err := os.ReadFile(mm.versionsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, &mm.versions)
}

func (mm *ModelManager) saveVersions() error {
	data, err := json.MarshalIndent(mm.versions, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(mm.versionsFile, data, 0o600)
}
