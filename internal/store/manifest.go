package store

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ManifestFormatVersion changes whenever the on-disk layout changes in
// a way old readers cannot handle. A mismatch loads as ErrIndexAbsent.
const ManifestFormatVersion = 1

// GraphParams records the construction parameters of a generation's
// graph. Queries may override EfSearch; the rest are fixed at build
// time.
type GraphParams struct {
	M              int   `json:"m"`
	EfConstruction int   `json:"ef_construction"`
	EfSearch       int   `json:"ef_search"`
	MaxLayer       int   `json:"max_layer"`
	Seed           int64 `json:"seed"`
}

// FileRecord is the indexed state of one source file.
type FileRecord struct {
	Hash      string    `json:"hash"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
	Chunks    int       `json:"chunks"`
}

// Manifest describes a generation: which model produced its vectors,
// the graph parameters, and the hash of every file it covers.
type Manifest struct {
	FormatVersion int                   `json:"format_version"`
	CreatedAt     time.Time             `json:"created_at"`
	Root          string                `json:"root"`
	ModelID       string                `json:"model_id"`
	Dimension     int                   `json:"dimension"`
	Metric        string                `json:"metric"`
	Params        GraphParams           `json:"params"`
	Files         map[string]FileRecord `json:"files"`
	ChunkCount    int                   `json:"chunk_count"`
	VectorCount   int                   `json:"vector_count"`
}

// Validate checks internal consistency after a load.
func (m *Manifest) Validate() error {
	if m.FormatVersion != ManifestFormatVersion {
		return fmt.Errorf("manifest format version %d, want %d", m.FormatVersion, ManifestFormatVersion)
	}
	if m.Dimension <= 0 {
		return fmt.Errorf("manifest dimension %d", m.Dimension)
	}
	if m.ModelID == "" {
		return fmt.Errorf("manifest missing model id")
	}
	if m.Metric != "cosine" {
		return fmt.Errorf("manifest metric %q unsupported", m.Metric)
	}
	return nil
}

func writeManifest(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
