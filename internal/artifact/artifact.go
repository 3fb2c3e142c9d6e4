// Package artifact persists trained model state. Every artifact is a gob
// blob paired with a JSON metadata sidecar; a blob without its sidecar
// (or the reverse) is treated as missing so a half-written model can
// never be loaded.
package artifact

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"fjacquet/finance-ml/internal/logging"
	"fjacquet/finance-ml/internal/mlerror"
)

// Metadata describes one saved artifact.
type Metadata struct {
	Name      string             `json:"name"`
	Algorithm string             `json:"algorithm"`
	TrainedAt time.Time          `json:"trained_at"`
	Rows      int                `json:"rows"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	Extra     map[string]string  `json:"extra,omitempty"`
}

// Store reads and writes artifacts under a single directory.
type Store struct {
	dir string
	log logging.Logger
}

// NewStore creates the artifact directory if needed.
func NewStore(dir string, logger logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, &mlerror.ArtifactError{Op: "init", Name: dir, Err: err}
	}
	return &Store{dir: dir, log: logger}, nil
}

// Dir returns the artifact directory.
func (s *Store) Dir() string { return s.dir }

// Save writes the gob blob and its metadata sidecar. Both files are
// written to temp names and renamed so readers never observe a partial
// artifact.
func (s *Store) Save(name string, model interface{}, meta Metadata) error {
	meta.Name = name
	if meta.TrainedAt.IsZero() {
		meta.TrainedAt = time.Now().UTC()
	}

	blobPath := s.blobPath(name)
	tmpBlob := blobPath + ".tmp"
	file, err := os.Create(tmpBlob)
	if err != nil {
		return &mlerror.ArtifactError{Op: "save", Name: name, Err: err}
	}
	if err := gob.NewEncoder(file).Encode(model); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpBlob)
		return &mlerror.ArtifactError{Op: "save", Name: name, Err: fmt.Errorf("gob encode: %w", err)}
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpBlob)
		return &mlerror.ArtifactError{Op: "save", Name: name, Err: err}
	}

	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		_ = os.Remove(tmpBlob)
		return &mlerror.ArtifactError{Op: "save", Name: name, Err: err}
	}
	metaPath := s.metaPath(name)
	tmpMeta := metaPath + ".tmp"
	if err := os.WriteFile(tmpMeta, metaBytes, 0600); err != nil {
		_ = os.Remove(tmpBlob)
		return &mlerror.ArtifactError{Op: "save", Name: name, Err: err}
	}

	if err := os.Rename(tmpBlob, blobPath); err != nil {
		_ = os.Remove(tmpBlob)
		_ = os.Remove(tmpMeta)
		return &mlerror.ArtifactError{Op: "save", Name: name, Err: err}
	}
	if err := os.Rename(tmpMeta, metaPath); err != nil {
		_ = os.Remove(tmpMeta)
		return &mlerror.ArtifactError{Op: "save", Name: name, Err: err}
	}

	s.log.WithFields(
		logging.Field{Key: "artifact", Value: name},
		logging.Field{Key: "algorithm", Value: meta.Algorithm},
	).Info("Saved model artifact")
	return nil
}

// Load decodes an artifact into model and returns its metadata. A missing
// blob or sidecar yields an ArtifactError wrapping os.ErrNotExist.
func (s *Store) Load(name string, model interface{}) (Metadata, error) {
	var meta Metadata

	metaBytes, err := os.ReadFile(s.metaPath(name))
	if err != nil {
		return meta, &mlerror.ArtifactError{Op: "load", Name: name, Err: err}
	}
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return meta, &mlerror.ArtifactError{Op: "load", Name: name, Err: fmt.Errorf("metadata: %w", err)}
	}

	file, err := os.Open(s.blobPath(name))
	if err != nil {
		return meta, &mlerror.ArtifactError{Op: "load", Name: name, Err: err}
	}
	defer func() {
		if err := file.Close(); err != nil {
			s.log.WithError(err).Warn("Failed to close artifact file")
		}
	}()

	if err := gob.NewDecoder(file).Decode(model); err != nil {
		return meta, &mlerror.ArtifactError{Op: "load", Name: name, Err: fmt.Errorf("gob decode: %w", err)}
	}

	s.log.WithField("artifact", name).Debug("Loaded model artifact")
	return meta, nil
}

// Exists reports whether both halves of an artifact are present.
func (s *Store) Exists(name string) bool {
	if _, err := os.Stat(s.blobPath(name)); err != nil {
		return false
	}
	if _, err := os.Stat(s.metaPath(name)); err != nil {
		return false
	}
	return true
}

// List returns the metadata of every complete artifact, sorted by name.
func (s *Store) List() ([]Metadata, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &mlerror.ArtifactError{Op: "list", Name: s.dir, Err: err}
	}

	var out []Metadata
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".json")
		if !s.Exists(name) {
			continue
		}
		data, err := os.ReadFile(s.metaPath(name))
		if err != nil {
			return nil, &mlerror.ArtifactError{Op: "list", Name: name, Err: err}
		}
		var meta Metadata
		if err := json.Unmarshal(data, &meta); err != nil {
			s.log.WithError(err).WithField("artifact", name).Warn("Skipping unreadable artifact metadata")
			continue
		}
		out = append(out, meta)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out, nil
}

func (s *Store) blobPath(name string) string {
	return filepath.Join(s.dir, name+".gob")
}

func (s *Store) metaPath(name string) string {
	return filepath.Join(s.dir, name+".json")
}
