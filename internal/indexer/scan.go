package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tessellate-dev/semindex/internal/chunker"
	"github.com/tessellate-dev/semindex/internal/store"
)

// ScanOptions controls tree discovery.
type ScanOptions struct {
	IncludeTests bool
	IgnoreDirs   []string
	MaxFileBytes int64
	Workers      int
}

// DefaultScanOptions returns the discovery defaults.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{
		IncludeTests: true,
		MaxFileBytes: chunker.DefaultMaxFileBytes,
		Workers:      runtime.NumCPU(),
	}
}

// Directories never worth indexing regardless of options.
var skippedDirs = map[string]bool{
	"vendor":       true,
	"node_modules": true,
	"target":       true,
	"dist":         true,
	"__pycache__":  true,
}

// ScannedFile is one discovered source file with its content hash.
type ScannedFile struct {
	Path    string // relative to the scanned root, slash-separated
	Abs     string
	Hash    string
	Size    int64
	ModTime time.Time
}

// ScanTree walks root and returns every indexable file keyed by relative
// path, with content hashes computed concurrently. Hidden directories
// and build output are skipped.
func ScanTree(ctx context.Context, root string, opts ScanOptions) (map[string]ScannedFile, error) {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = chunker.DefaultMaxFileBytes
	}
	ignored := make(map[string]bool, len(opts.IgnoreDirs))
	for _, d := range opts.IgnoreDirs {
		ignored[d] = true
	}

	var candidates []ScannedFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if strings.HasPrefix(name, ".") || skippedDirs[name] || ignored[name] {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if !chunker.IndexableExtension(path) {
			return nil
		}
		if !opts.IncludeTests && strings.HasSuffix(name, "_test.go") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() > opts.MaxFileBytes {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		candidates = append(candidates, ScannedFile{
			Path:    filepath.ToSlash(rel),
			Abs:     path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	files := make(map[string]ScannedFile, len(candidates))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i := range candidates {
		f := candidates[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			hash, err := hashFile(f.Abs)
			if err != nil {
				// Files can vanish between walk and hash.
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			f.Hash = hash
			mu.Lock()
			files[f.Path] = f
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// hashFile streams a file through SHA-256.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CheckStaleness scans root and classifies it against the manifest's
// tracked file set.
func CheckStaleness(ctx context.Context, root string, manifest *store.Manifest, opts ScanOptions) (*store.StaleReport, error) {
	files, err := ScanTree(ctx, root, opts)
	if err != nil {
		return nil, err
	}
	live := make(map[string]string, len(files))
	for path, f := range files {
		live[path] = f.Hash
	}
	return store.Classify(manifest, live), nil
}
