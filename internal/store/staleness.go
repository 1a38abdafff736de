package store

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// HashContent returns the content hash recorded in manifests for one
// file, lowercase hex SHA-256.
func HashContent(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// StaleReport classifies the tracked file set against the live tree.
type StaleReport struct {
	Unchanged []string
	Modified  []string
	Deleted   []string
	New       []string
}

// Classify compares the manifest's file table against live, a map from
// path to current content hash for files now on disk. Paths in the
// manifest but not in live are deleted; paths in live but not in the
// manifest are new.
func Classify(manifest *Manifest, live map[string]string) *StaleReport {
	r := &StaleReport{}
	for path, rec := range manifest.Files {
		hash, ok := live[path]
		switch {
		case !ok:
			r.Deleted = append(r.Deleted, path)
		case hash != rec.Hash:
			r.Modified = append(r.Modified, path)
		default:
			r.Unchanged = append(r.Unchanged, path)
		}
	}
	for path := range live {
		if _, ok := manifest.Files[path]; !ok {
			r.New = append(r.New, path)
		}
	}
	sort.Strings(r.Unchanged)
	sort.Strings(r.Modified)
	sort.Strings(r.Deleted)
	sort.Strings(r.New)
	return r
}

// StaleRatio is the fraction of tracked files that are modified or
// deleted. New files do not count: they make the index incomplete, not
// wrong.
func (r *StaleReport) StaleRatio() float64 {
	tracked := len(r.Unchanged) + len(r.Modified) + len(r.Deleted)
	if tracked == 0 {
		return 0
	}
	return float64(len(r.Modified)+len(r.Deleted)) / float64(tracked)
}

// StalePaths returns the set of paths whose indexed chunks no longer
// reflect the tree, for query-time exclusion.
func (r *StaleReport) StalePaths() map[string]bool {
	out := make(map[string]bool, len(r.Modified)+len(r.Deleted))
	for _, p := range r.Modified {
		out[p] = true
	}
	for _, p := range r.Deleted {
		out[p] = true
	}
	return out
}
