package embedder

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultCacheEntries = 10000

// Cache is the content-addressed embedding cache shared by the indexing
// and query paths. Lookup is by (model id, content hash); entries are
// immutable and never mutated in place. A bounded in-memory LRU fronts
// an optional BadgerDB store that keeps hits warm across runs.
type Cache struct {
	mem    *lru.Cache[string, []float32]
	db     *badger.DB
	logger *slog.Logger
}

// badgerLoggerAdapter routes badger's internal logging through slog.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// NewCache creates a memory-only cache with LRU eviction.
func NewCache(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = defaultCacheEntries
	}
	mem, err := lru.New[string, []float32](maxEntries)
	if err != nil {
		// Only reachable with a non-positive size, which is handled above.
		mem, _ = lru.New[string, []float32](defaultCacheEntries)
	}
	return &Cache{mem: mem, logger: slog.Default().With("component", "embed-cache")}
}

// OpenCache creates a cache backed by a BadgerDB store at dir, so a full
// re-index of an unchanged tree survives process restarts as pure cache
// hits. The directory is created if needed.
func OpenCache(dir string, maxEntries int) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	c := NewCache(maxEntries)

	opts := badger.DefaultOptions(dir)
	opts.Logger = &badgerLoggerAdapter{logger: c.logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}
	c.db = db
	return c, nil
}

// cacheKey builds the content address for one entry.
func cacheKey(modelID, hash string) string {
	return modelID + "\x00" + hash
}

// Get retrieves a copy of a cached vector. A disk hit is promoted into
// the memory tier.
func (c *Cache) Get(modelID, hash string) ([]float32, bool) {
	key := cacheKey(modelID, hash)

	if vec, ok := c.mem.Get(key); ok {
		return copyVector(vec), true
	}

	if c.db == nil {
		return nil, false
	}

	var vec []float32
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			vec = decodeVector(val)
			return nil
		})
	})
	if err != nil {
		return nil, false
	}

	c.mem.Add(key, vec)
	return copyVector(vec), true
}

// Put stores a vector under its content address. Disk write failures are
// logged and ignored: the cache is advisory.
func (c *Cache) Put(modelID, hash string, vec []float32) {
	key := cacheKey(modelID, hash)
	c.mem.Add(key, copyVector(vec))

	if c.db == nil {
		return
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), encodeVector(vec))
	})
	if err != nil {
		c.logger.Warn("cache write failed", "err", err)
	}
}

// Len returns the number of entries in the memory tier.
func (c *Cache) Len() int {
	return c.mem.Len()
}

// Close releases the disk store, if any.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func copyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

// encodeVector packs a vector as little-endian float32 bytes.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector unpacks a little-endian float32 byte blob.
func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
