package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/tessellate-dev/semindex/internal/embedder"
	"github.com/tessellate-dev/semindex/internal/engine"
	"github.com/tessellate-dev/semindex/internal/indexer"
)

// copyFixtures copies the shared fixture tree into a writable temp dir
// so tests can mutate files without affecting each other.
func copyFixtures(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(filepath.Dir(wd), "testdata", "fixtures")
	dst := t.TempDir()

	err = filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
	if err != nil {
		t.Fatal(err)
	}
	return dst
}

func newFixtureEngine(t *testing.T) *engine.Engine {
	t.Helper()

	eng, err := engine.New(engine.Config{
		IndexDir: t.TempDir(),
		Embedding: embedder.Config{
			Provider:  embedder.ProviderHash,
			Dimension: 64,
		},
		Indexing:      indexer.DefaultOptions(),
		SearchTimeout: 30 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

type IndexingTestSuite struct {
	suite.Suite
	engine *engine.Engine
	root   string
	ctx    context.Context
}

func (s *IndexingTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.root = copyFixtures(s.T())
	s.engine = newFixtureEngine(s.T())
}

func (s *IndexingTestSuite) TestFullIndexing() {
	stats, err := s.engine.Index(s.ctx, s.root, false)
	s.Require().NoError(err)

	s.Equal(3, stats.FilesIndexed, "two Go files and one Python file")
	s.Zero(stats.FilesFailed)
	s.Greater(stats.Chunks, 0)
	s.Equal(stats.Chunks, stats.Vectors)

	status, err := s.engine.Status(s.ctx, s.root)
	s.Require().NoError(err)
	s.True(status.Loaded)
	s.Equal(3, status.FileCount)
	s.Equal(3, status.Unchanged)
	s.Zero(status.Modified)
	s.False(status.RebuildRecommended)
}

func (s *IndexingTestSuite) TestReindexIsUpToDate() {
	_, err := s.engine.Index(s.ctx, s.root, false)
	s.Require().NoError(err)

	stats, err := s.engine.Index(s.ctx, s.root, false)
	s.Require().NoError(err)
	s.True(stats.UpToDate)
}

func (s *IndexingTestSuite) TestModificationTriggersRebuild() {
	_, err := s.engine.Index(s.ctx, s.root, false)
	s.Require().NoError(err)

	path := filepath.Join(s.root, "auth", "password.go")
	data, err := os.ReadFile(path)
	s.Require().NoError(err)
	s.Require().NoError(os.WriteFile(path, append(data, []byte("\n// revised\n")...), 0o644))

	status, err := s.engine.Status(s.ctx, s.root)
	s.Require().NoError(err)
	s.Equal(1, status.Modified)

	stats, err := s.engine.Index(s.ctx, s.root, false)
	s.Require().NoError(err)
	s.False(stats.UpToDate)
	s.Greater(stats.CacheHits, 0, "unchanged files should come from the embedding cache")
}

func (s *IndexingTestSuite) TestForceRebuild() {
	_, err := s.engine.Index(s.ctx, s.root, false)
	s.Require().NoError(err)

	stats, err := s.engine.Index(s.ctx, s.root, true)
	s.Require().NoError(err)
	s.False(stats.UpToDate)
	s.Zero(stats.CacheMisses, "every embedding should hit the cache")
}

func (s *IndexingTestSuite) TestCancelledIndexLeavesNoIndex() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := s.engine.Index(ctx, s.root, false)
	s.Require().Error(err)
	s.ErrorIs(err, context.Canceled)

	_, err = s.engine.Status(s.ctx, s.root)
	s.Require().NoError(err)
}

func (s *IndexingTestSuite) TestStatusWithoutIndex() {
	status, err := s.engine.Status(s.ctx, "")
	s.Require().NoError(err)
	s.False(status.Loaded)
}

func TestIndexingTestSuite(t *testing.T) {
	suite.Run(t, new(IndexingTestSuite))
}
