// Package store implements the persistent vector+graph store backing the
// cold tier. Memory nodes carry content, an embedding, and metadata; edges
// carry typed, weighted relations between nodes. The same store doubles as
// the vector index for hybrid retrieval.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"mnemo/internal/logging"
)

// MemoryNode is a persisted memory record.
type MemoryNode struct {
	ID         string
	Content    string
	Embedding  []float32
	Importance float64
	Metadata   map[string]interface{}
	CreatedAt  time.Time
}

// SQLiteStore is the SQLite-backed persistent store. One exclusive writer
// connection; mu guards multi-statement sequences.
type SQLiteStore struct {
	db        *sql.DB
	mu        sync.RWMutex
	dbPath    string
	vectorExt bool // sqlite-vec available
}

// NewSQLiteStore opens (or creates) the database at path. Use ":memory:" for
// tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewSQLiteStore")
	defer timer.Stop()

	logging.Store("Initializing persistent store at %s", path)

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	s := &SQLiteStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.detectVecExtension()
	if s.vectorExt {
		logging.Store("sqlite-vec extension detected and enabled")
	} else {
		logging.StoreDebug("sqlite-vec extension not available; using in-process cosine scan")
	}

	logging.Store("Persistent store ready (nodes + edges)")
	return s, nil
}

// initialize creates the required tables.
func (s *SQLiteStore) initialize() error {
	nodesTable := `
	CREATE TABLE IF NOT EXISTS memory_nodes (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL DEFAULT 'memory',
		content TEXT NOT NULL,
		embedding TEXT,
		importance REAL DEFAULT 1.0,
		metadata TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_nodes_kind ON memory_nodes(kind);
	CREATE INDEX IF NOT EXISTS idx_nodes_content ON memory_nodes(content);
	`

	edgesTable := `
	CREATE TABLE IF NOT EXISTS memory_edges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		from_id TEXT NOT NULL,
		to_id TEXT NOT NULL,
		relation TEXT NOT NULL,
		weight REAL DEFAULT 1.0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(from_id, to_id, relation)
	);
	CREATE INDEX IF NOT EXISTS idx_edges_from ON memory_edges(from_id);
	CREATE INDEX IF NOT EXISTS idx_edges_to ON memory_edges(to_id);
	CREATE INDEX IF NOT EXISTS idx_edges_relation ON memory_edges(relation);
	`

	for _, stmt := range []string{nodesTable, edgesTable} {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// detectVecExtension probes for the sqlite-vec extension.
func (s *SQLiteStore) detectVecExtension() {
	var version string
	if err := s.db.QueryRow("SELECT vec_version()").Scan(&version); err == nil {
		s.vectorExt = true
		logging.StoreDebug("sqlite-vec version: %s", version)
	}
}

// StoreMemory persists content with its embedding and returns the node id.
func (s *SQLiteStore) StoreMemory(ctx context.Context, content string, vector []float32, metadata map[string]interface{}, importance float64) (string, error) {
	timer := logging.StartTimer(logging.CategoryStore, "StoreMemory")
	defer timer.Stop()

	id := uuid.NewString()
	embJSON, err := json.Marshal(vector)
	if err != nil {
		return "", fmt.Errorf("failed to marshal embedding: %w", err)
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memory_nodes (id, kind, content, embedding, importance, metadata)
		 VALUES (?, 'memory', ?, ?, ?, ?)`,
		id, content, string(embJSON), importance, string(metaJSON),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to store memory node: %v", err)
		return "", err
	}

	logging.StoreDebug("Stored memory node %s (%d bytes, dim=%d)", id, len(content), len(vector))
	return id, nil
}

// GetMemory retrieves a node by id. Returns nil when absent.
func (s *SQLiteStore) GetMemory(ctx context.Context, id string) (*MemoryNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, content, embedding, importance, metadata, created_at FROM memory_nodes WHERE id = ?",
		id,
	)

	node, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return node, err
}

// DeleteMemory removes a node and its edges, reporting whether it existed.
func (s *SQLiteStore) DeleteMemory(ctx context.Context, id string) (bool, error) {
	timer := logging.StartTimer(logging.CategoryStore, "DeleteMemory")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, "DELETE FROM memory_nodes WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM memory_edges WHERE from_id = ? OR to_id = ?", id, id); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit delete: %w", err)
	}

	rows, _ := result.RowsAffected()
	logging.StoreDebug("Deleted memory node %s (existed=%v)", id, rows > 0)
	return rows > 0, nil
}

// Stats returns row counts per table.
func (s *SQLiteStore) Stats() (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int)
	for _, table := range []string{"memory_nodes", "memory_edges"} {
		var count int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			return nil, err
		}
		stats[table] = count
	}
	return stats, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	logging.Store("Closing persistent store")
	return s.db.Close()
}

// scanner abstracts over *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanNode(row scanner) (*MemoryNode, error) {
	var node MemoryNode
	var embJSON, metaJSON sql.NullString
	if err := row.Scan(&node.ID, &node.Content, &embJSON, &node.Importance, &metaJSON, &node.CreatedAt); err != nil {
		return nil, err
	}
	if embJSON.Valid && embJSON.String != "" {
		if err := json.Unmarshal([]byte(embJSON.String), &node.Embedding); err != nil {
			logging.Get(logging.CategoryStore).Warn("Embedding unmarshal failed for node %s: %v", node.ID, err)
		}
	}
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &node.Metadata); err != nil {
			logging.Get(logging.CategoryStore).Warn("Metadata unmarshal failed for node %s: %v", node.ID, err)
		}
	}
	return &node, nil
}
