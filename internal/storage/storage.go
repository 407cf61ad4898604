// Package storage wraps the embedded SQLite database: WAL mode, migrations,
// and a thin transaction helper. modernc.org/sqlite is a pure-Go driver, so
// the binary stays cgo-free the way the teacher repo ships it.
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/rs/zerolog/log"
)

// DB is the process-wide handle to the single SQLite file. database/sql's
// own connection pool, capped at one open connection, gives SQLite's
// single-writer semantics without a hand-rolled mutex.
type DB struct {
	sql *sql.DB
}

// Open opens (creating if necessary) the database file at path, applies the
// pragmas spec §4.2 requires, and runs pending migrations.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	db := &DB{sql: sqlDB}
	if err := db.migrate(context.Background()); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Raw exposes the underlying *sql.DB for repositories.
func (db *DB) Raw() *sql.DB { return db.sql }

// Close closes the underlying connection.
func (db *DB) Close() error { return db.sql.Close() }

// Transaction runs fn under BEGIN/COMMIT; any error returned from fn, or a
// panic, rolls the transaction back.
func (db *DB) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("rollback failed after transaction error")
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
