// Package oplog keeps the append-only history of completed device
// operations (install, uninstall, push, pull, screenshot) in a local
// SQLite database.
package oplog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	_ "github.com/mattn/go-sqlite3"
)

// Entry is one completed operation. The core only ever appends; entries
// are never mutated.
type Entry struct {
	ID           string `json:"id"`
	Timestamp    string `json:"timestamp"` // 2006-01-02 15:04:05
	OpType       string `json:"opType"`    // install/uninstall/upload/download/screenshot
	Device       string `json:"device"`
	Detail       string `json:"detail"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	Command      string `json:"command,omitempty"`
	RawOutput    string `json:"rawOutput,omitempty"`
	Metadata     string `json:"metadata,omitempty"` // free-form JSON
}

// Filter narrows a Query. Zero-value fields match everything.
type Filter struct {
	OpType string
	Device string

	// MetadataPath/MetadataValue filter on the metadata JSON by gjson
	// path, e.g. path "errorCode" value "INSTALL_FAILED_OLDER_SDK".
	MetadataPath  string
	MetadataValue string
}

const schemaSQL = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;

CREATE TABLE IF NOT EXISTS op_history (
    id TEXT PRIMARY KEY,
    timestamp TEXT NOT NULL,
    op_type TEXT NOT NULL,
    device TEXT NOT NULL,
    detail TEXT NOT NULL,
    success INTEGER NOT NULL,
    error_message TEXT,
    command TEXT,
    raw_output TEXT,
    metadata TEXT DEFAULT '{}',
    created_at INTEGER DEFAULT (strftime('%s', 'now') * 1000)
);

CREATE INDEX IF NOT EXISTS idx_op_history_type ON op_history(op_type);
CREATE INDEX IF NOT EXISTS idx_op_history_device ON op_history(device);
CREATE INDEX IF NOT EXISTS idx_op_history_time ON op_history(created_at DESC);
`

// Store is the history database. Safe for concurrent use; SQLite gets a
// single writer connection.
type Store struct {
	mu sync.Mutex
	db *sql.DB

	stmtInsert *sql.Stmt
}

// NewStore opens (creating if needed) the history database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "op_history.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	stmtInsert, err := db.Prepare(`INSERT INTO op_history
		(id, timestamp, op_type, device, detail, success, error_message, command, raw_output, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}

	return &Store{db: db, stmtInsert: stmtInsert}, nil
}

// Add appends an entry. A missing ID or timestamp is filled in.
func (s *Store) Add(entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().Format("2006-01-02 15:04:05")
	}
	if entry.Metadata == "" {
		entry.Metadata = "{}"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.stmtInsert.Exec(
		entry.ID, entry.Timestamp, entry.OpType, entry.Device, entry.Detail,
		boolToInt(entry.Success), entry.ErrorMessage, entry.Command,
		entry.RawOutput, entry.Metadata,
	)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// Query returns entries matching the filter, newest first. The metadata
// match runs over the stored JSON with gjson, so callers can filter on any
// nested field without a schema change.
func (s *Store) Query(f Filter) ([]Entry, error) {
	query := `SELECT id, timestamp, op_type, device, detail, success,
		error_message, command, raw_output, metadata
		FROM op_history WHERE 1=1`
	var args []interface{}
	if f.OpType != "" {
		query += " AND op_type = ?"
		args = append(args, f.OpType)
	}
	if f.Device != "" {
		query += " AND device = ?"
		args = append(args, f.Device)
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	s.mu.Lock()
	rows, err := s.db.Query(query, args...)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var success int
		var errMsg, command, rawOutput, metadata sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.OpType, &e.Device, &e.Detail,
			&success, &errMsg, &command, &rawOutput, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.Success = success != 0
		e.ErrorMessage = errMsg.String
		e.Command = command.String
		e.RawOutput = rawOutput.String
		e.Metadata = metadata.String

		if f.MetadataPath != "" {
			if gjson.Get(e.Metadata, f.MetadataPath).String() != f.MetadataValue {
				continue
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear removes all history entries.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`DELETE FROM op_history`); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stmtInsert != nil {
		s.stmtInsert.Close()
	}
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
