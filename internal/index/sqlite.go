package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const createKV = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// SQLiteStore keeps the snapshot in a key/value table, one row per fixed key.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer; the snapshot is replaced as a unit.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(createKV); err != nil {
		db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Load(ctx context.Context) (Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM kv WHERE key IN (?, ?, ?)`, IndexKey, VersionKey, UpdatedKey)
	if err != nil {
		return Snapshot{}, fmt.Errorf("query snapshot: %w", err)
	}
	defer rows.Close()

	vals := make(map[string]string, 3)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
		}
		vals[k] = v
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}
	return decodeKV(vals)
}

func (s *SQLiteStore) Save(ctx context.Context, snap Snapshot) error {
	vals, err := encodeKV(snap)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot write: %w", err)
	}
	defer tx.Rollback()

	for _, k := range []string{IndexKey, VersionKey, UpdatedKey} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO kv (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, vals[k]); err != nil {
			return fmt.Errorf("write %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// encodeKV flattens a snapshot into the fixed keys. The entries are stored as a
// bare JSON array.
func encodeKV(snap Snapshot) (map[string]string, error) {
	entries := snap.Entries
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("marshal index: %w", err)
	}
	return map[string]string{
		IndexKey:   string(data),
		VersionKey: snap.Version,
		UpdatedKey: formatUnix(snap.UpdatedAt),
	}, nil
}

func decodeKV(vals map[string]string) (Snapshot, error) {
	raw, ok := vals[IndexKey]
	if !ok || raw == "" {
		return Snapshot{}, nil
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return Snapshot{}, fmt.Errorf("decode index: %w", err)
	}
	return Snapshot{
		Entries:   entries,
		Version:   vals[VersionKey],
		UpdatedAt: parseUnix(vals[UpdatedKey]),
	}, nil
}
