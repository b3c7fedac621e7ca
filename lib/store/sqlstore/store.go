package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ValentinKolb/dLock/lib/store"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const (
	CREATE_TABLE_SQLITE = `
	CREATE TABLE IF NOT EXISTS dlock_records (
		key   TEXT PRIMARY KEY,
		value BLOB NOT NULL
	);`

	CREATE_TABLE_POSTGRES = `
	CREATE TABLE IF NOT EXISTS dlock_records (
		key   TEXT PRIMARY KEY,
		value BYTEA NOT NULL
	);`

	RECORD_SELECT_STATEMENT = `
	SELECT
		value
	FROM
		dlock_records
	WHERE
		key = $1`

	RECORD_UPSERT_STATEMENT = `
	INSERT INTO dlock_records
		(key, value)
	VALUES
		($1, $2)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value`

	RECORD_INSERT_STATEMENT = `
	INSERT INTO dlock_records
		(key, value)
	VALUES
		($1, $2)
	ON CONFLICT(key) DO NOTHING`

	RECORD_DELETE_STATEMENT = `
	DELETE FROM dlock_records WHERE key = $1`
)

// Store is a store.IStore on a single SQL table.
type Store struct {
	db *sql.DB
}

// NewSQLStore opens a database with the given driver (DriverSQLite or DriverPostgres)
// and data source name, and creates the record table if needed.
func NewSQLStore(ctx context.Context, driver, dsn string) (*Store, error) {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = CREATE_TABLE_SQLITE
	case DriverPostgres:
		schema = CREATE_TABLE_POSTGRES
	default:
		return nil, fmt.Errorf("unsupported sql driver %q (expected %s or %s)", driver, DriverSQLite, DriverPostgres)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	// sqlite serializes writers anyway; one connection avoids SQLITE_BUSY between them
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create record table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, RECORD_SELECT_STATEMENT, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound(key)
	}
	if err != nil {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("failed to read %s: %v", key, err))
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

func (s *Store) Write(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	if _, err := s.db.ExecContext(ctx, RECORD_UPSERT_STATEMENT, key, value); err != nil {
		return store.NewError(store.RetCInternalError, fmt.Sprintf("failed to write %s: %v", key, err))
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, RECORD_DELETE_STATEMENT, key)
	if err != nil {
		return store.NewError(store.RetCInternalError, fmt.Sprintf("failed to delete %s: %v", key, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.NewError(store.RetCInternalError, err.Error())
	}
	if n == 0 {
		return store.NotFound(key)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, key string, value []byte) (bool, error) {
	if value == nil {
		value = []byte{}
	}
	res, err := s.db.ExecContext(ctx, RECORD_INSERT_STATEMENT, key, value)
	if err != nil {
		return false, store.NewError(store.RetCInternalError, fmt.Sprintf("failed to create %s: %v", key, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, store.NewError(store.RetCInternalError, err.Error())
	}
	return n == 1, nil
}
