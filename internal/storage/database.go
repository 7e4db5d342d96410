package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/nikitkaralius/pollbot/internal/config"
)

// Dialect names understood by the whatsmeow session store.
const (
	DialectSQLite   = "sqlite3"
	DialectPostgres = "postgres"
)

// Store holds the database that backs the persisted platform identity.
type Store struct {
	DB      *sql.DB
	Dialect string
}

// NewStore opens the session database. An empty SQLite DSN places the
// database file inside authDir.
func NewStore(cfg config.StoreConfig, authDir string) (*Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := sql.Open("pgx", cfg.DSN)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
		return &Store{DB: db, Dialect: DialectPostgres}, nil
	case config.DriverSQLite, "":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = SQLiteDSN(filepath.Join(authDir, "session.db"))
		}
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, err
		}
		// one writer keeps sqlite from reporting SQLITE_BUSY under whatsmeow
		db.SetMaxOpenConns(1)
		return &Store{DB: db, Dialect: DialectSQLite}, nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
}

// SQLiteDSN builds a file DSN with the pragmas the session store needs.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (s *Store) Close() error { return s.DB.Close() }

// WaitForDB pings until the database answers, the deadline passes or ctx
// is done.
func WaitForDB(ctx context.Context, db *sql.DB, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if err := db.PingContext(ctx); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("database not ready after %s", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}
