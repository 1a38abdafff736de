package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/tessellate-dev/semindex/pkg/types"
)

// ErrChunkNotFound is returned when a catalog lookup misses.
var ErrChunkNotFound = errors.New("chunk not found")

const catalogSchema = `
CREATE TABLE chunks (
	id          INTEGER PRIMARY KEY,
	path        TEXT NOT NULL,
	language    TEXT NOT NULL,
	kind        TEXT NOT NULL,
	start_line  INTEGER NOT NULL,
	end_line    INTEGER NOT NULL,
	start_byte  INTEGER NOT NULL,
	end_byte    INTEGER NOT NULL,
	content     TEXT NOT NULL,
	context     TEXT NOT NULL DEFAULT '',
	hash        BLOB NOT NULL
);
CREATE INDEX idx_chunks_path ON chunks(path);
`

// Catalog is the chunk table of one generation. It is written once when
// the generation is staged and read-only afterwards.
type Catalog struct {
	db *sql.DB
}

// openCatalogDB opens the SQLite file with the pragmas the catalog
// needs. A single connection is enough; writes happen once at staging.
func openCatalogDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	return db, nil
}

// CreateCatalog writes all chunks into a new catalog file. Chunk IDs
// must already be assigned and unique.
func CreateCatalog(ctx context.Context, path string, chunks []types.SourceChunk) error {
	db, err := openCatalogDB(path)
	if err != nil {
		return fmt.Errorf("create catalog: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, catalogSchema); err != nil {
		return fmt.Errorf("create catalog schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, path, language, kind, start_line, end_line, start_byte, end_byte, content, context, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range chunks {
		ch := &chunks[i]
		_, err := stmt.ExecContext(ctx,
			ch.ID, ch.Path, ch.Language, string(ch.Kind),
			ch.StartLine, ch.EndLine, ch.StartByte, ch.EndByte,
			ch.Content, ch.Context, ch.Hash[:])
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", ch.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog: %w", err)
	}
	// Fold the WAL back into the main file so the generation is a
	// self-contained set of artifacts.
	if _, err := db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint catalog: %w", err)
	}
	return nil
}

// OpenCatalog opens an existing catalog for reads.
func OpenCatalog(path string) (*Catalog, error) {
	db, err := openCatalogDB(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	// Verify the schema is present so truncated files fail here, not on
	// first query.
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&n); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog unreadable: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close releases the database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}

const chunkColumns = "id, path, language, kind, start_line, end_line, start_byte, end_byte, content, context, hash"

func scanChunk(row interface{ Scan(...any) error }) (types.SourceChunk, error) {
	var ch types.SourceChunk
	var kind string
	var hash []byte
	err := row.Scan(&ch.ID, &ch.Path, &ch.Language, &kind,
		&ch.StartLine, &ch.EndLine, &ch.StartByte, &ch.EndByte,
		&ch.Content, &ch.Context, &hash)
	if err != nil {
		return ch, err
	}
	ch.Kind = types.ChunkKind(kind)
	copy(ch.Hash[:], hash)
	return ch, nil
}

// Chunk retrieves a single chunk by id.
func (c *Catalog) Chunk(ctx context.Context, id int64) (*types.SourceChunk, error) {
	row := c.db.QueryRowContext(ctx, "SELECT "+chunkColumns+" FROM chunks WHERE id = ?", id)
	ch, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chunk %d: %w", id, ErrChunkNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// Chunks retrieves a batch of chunks keyed by id. Missing ids are
// simply absent from the result.
func (c *Catalog) Chunks(ctx context.Context, ids []int64) (map[int64]types.SourceChunk, error) {
	out := make(map[int64]types.SourceChunk, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := "SELECT " + chunkColumns + " FROM chunks WHERE id IN (" + strings.Join(placeholders, ",") + ")"
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		ch, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out[ch.ID] = ch
	}
	return out, rows.Err()
}

// ChunksByPath lists a file's chunks ordered by position.
func (c *Catalog) ChunksByPath(ctx context.Context, path string) ([]types.SourceChunk, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE path = ? ORDER BY start_line", path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chunks []types.SourceChunk
	for rows.Next() {
		ch, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, ch)
	}
	return chunks, rows.Err()
}

// Count returns the number of chunks in the catalog.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n)
	return n, err
}
