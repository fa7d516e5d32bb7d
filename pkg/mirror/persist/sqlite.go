package persist

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/argus-labs/kamisync/pkg/mirror/store"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS ecs_cache (
	name       TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStorage keeps every persisted store as one row of the ecs_cache table.
type SQLiteStorage struct {
	db *sql.DB
}

var _ Storage = (*SQLiteStorage)(nil)

// OpenSQLiteStorage opens or creates the database at path.
func OpenSQLiteStorage(ctx context.Context, path string) (*SQLiteStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, eris.New("sqlite storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "failed to open sqlite db")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "failed to ping sqlite db")
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "failed to create ecs_cache table")
	}
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Save(ctx context.Context, name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ecs_cache (name, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		name, data, time.Now().UTC().UnixMilli())
	return eris.Wrap(err, "failed to upsert store")
}

func (s *SQLiteStorage) Load(ctx context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM ecs_cache WHERE name = ?`, name).Scan(&data)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(ErrNotFound, "row %s", name)
		}
		return nil, eris.Wrap(err, "failed to select store")
	}
	return data, nil
}

func (s *SQLiteStorage) Wipe(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM ecs_cache WHERE name = ?`, name)
	return eris.Wrap(err, "failed to delete store")
}

func (s *SQLiteStorage) WipeAll(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM ecs_cache WHERE name LIKE ?`, store.NamePrefix+"%")
	return eris.Wrap(err, "failed to delete stores")
}

func (s *SQLiteStorage) Close() error {
	return eris.Wrap(s.db.Close(), "failed to close sqlite db")
}
