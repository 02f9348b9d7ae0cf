package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	"houseprice-api/pkg/models"
)

// ArtifactVersion is the on-disk format version written by ArtifactStore.
const ArtifactVersion = 1

// ArtifactStore persists a single model artifact as JSON at a fixed path.
type ArtifactStore struct {
	path string
}

// NewArtifactStore 新しいアーティファクトストアを作成
func NewArtifactStore(path string) *ArtifactStore {
	return &ArtifactStore{path: path}
}

// Path returns the artifact location.
func (s *ArtifactStore) Path() string {
	return s.path
}

// Save writes the artifact atomically: a reader sees either the previous
// file or the complete new one, never a partial write.
func (s *ArtifactStore) Save(a *models.ModelArtifact) error {
	if err := ValidateArtifact(a); err != nil {
		return err
	}

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode artifact: %w", ErrPersistence, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrPersistence, dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".model-*.json.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file in %s: %w", ErrPersistence, dir, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %w", ErrPersistence, tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync %s: %w", ErrPersistence, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrPersistence, tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("%w: chmod %s: %w", ErrPersistence, tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: rename to %s: %w", ErrPersistence, s.path, err)
	}
	committed = true
	return nil
}

// Load reads and validates the artifact. A missing file yields ErrModelNotFound;
// an unreadable or inconsistent one yields ErrSchemaMismatch.
func (s *ArtifactStore) Load() (*models.ModelArtifact, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, s.path)
		}
		return nil, fmt.Errorf("read model artifact %s: %w", s.path, err)
	}

	var a models.ModelArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrSchemaMismatch, s.path, err)
	}
	if err := ValidateArtifact(&a); err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return &a, nil
}

// ValidateArtifact checks that coefficients and schema are bound one to one.
func ValidateArtifact(a *models.ModelArtifact) error {
	if a == nil {
		return fmt.Errorf("%w: nil artifact", ErrSchemaMismatch)
	}
	if len(a.FeatureSchema) == 0 {
		return fmt.Errorf("%w: artifact carries no feature schema", ErrSchemaMismatch)
	}
	if len(a.Coefficients) != len(a.FeatureSchema) {
		return fmt.Errorf("%w: %d coefficients for %d schema columns", ErrSchemaMismatch, len(a.Coefficients), len(a.FeatureSchema))
	}
	seen := make(map[string]struct{}, len(a.FeatureSchema))
	for _, name := range a.FeatureSchema {
		if name == "" {
			return fmt.Errorf("%w: empty column name in schema", ErrSchemaMismatch)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate schema column %q", ErrSchemaMismatch, name)
		}
		seen[name] = struct{}{}
	}
	for i, c := range a.Coefficients {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("%w: coefficient for %q is not finite", ErrSchemaMismatch, a.FeatureSchema[i])
		}
	}
	if math.IsNaN(a.Intercept) || math.IsInf(a.Intercept, 0) {
		return fmt.Errorf("%w: intercept is not finite", ErrSchemaMismatch)
	}
	return nil
}

// linearModel rebuilds the in-memory model from a validated artifact.
func linearModel(a *models.ModelArtifact) *LinearModel {
	return &LinearModel{
		Coefficients: append([]float64(nil), a.Coefficients...),
		Intercept:    a.Intercept,
	}
}

// coefficientMap keys coefficients by their schema column.
func coefficientMap(schema models.FeatureSchema, coef []float64) map[string]float64 {
	out := make(map[string]float64, len(schema))
	for i, name := range schema {
		if i < len(coef) {
			out[name] = coef[i]
		}
	}
	return out
}
