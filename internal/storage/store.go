// Package storage implements the storage worker (C5): the staging
// buffer consumer that persists sensor readings to a relational store,
// with connect-with-backoff and a bounded retry queue for transient
// write failures.
package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/sensorgw/gateway/internal/gwerr"
)

// Store is the persistence boundary the worker writes through. A real
// SQLite-backed implementation and a fake for tests both satisfy it.
type Store interface {
	Connect() error
	Close() error
	InsertReading(sensorID uint16, timestamp int64, value float64) error
}

// SQLiteStore persists readings into the SensorData table described in
// the component design: RecordID autoincrement PK, SensorID, Timestamp,
// Value.
type SQLiteStore struct {
	dsn       string
	tableName string
	logger    zerolog.Logger
	db        *sql.DB
}

// NewSQLiteStore builds a store bound to dsn. Connect must be called
// before use; the constructor itself never touches the network or disk,
// so the worker's connect-with-backoff loop has something to retry.
func NewSQLiteStore(dsn, tableName string, logger zerolog.Logger) *SQLiteStore {
	return &SQLiteStore{dsn: dsn, tableName: tableName, logger: logger}
}

// Connect opens the database, applies the same pragmas the gateway's
// predecessor used for a single-writer workload, and creates the
// SensorData table if it is absent.
func (s *SQLiteStore) Connect() error {
	db, err := sql.Open("sqlite3", s.dsn)
	if err != nil {
		return gwerr.Wrap(gwerr.DbConnect, "opening database", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return gwerr.Wrap(gwerr.DbConnect, "pinging database", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return gwerr.Wrap(gwerr.DbConnect, fmt.Sprintf("applying pragma %q", pragma), err)
		}
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		RecordID  INTEGER PRIMARY KEY AUTOINCREMENT,
		SensorID  INTEGER NOT NULL,
		Timestamp INTEGER NOT NULL,
		Value     REAL NOT NULL
	);`, s.tableName)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return gwerr.Wrap(gwerr.DbConnect, "creating schema", err)
	}

	s.db = db
	s.logger.Info().Str("dsn", s.dsn).Str("table", s.tableName).Msg("storage connected")
	return nil
}

// Close releases the underlying database handle. Safe to call on an
// unconnected store.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// InsertReading binds a single parameterized insert, per the component
// design's "insert binds (sensor_id, timestamp, value)".
func (s *SQLiteStore) InsertReading(sensorID uint16, timestamp int64, value float64) error {
	query := fmt.Sprintf("INSERT INTO %s (SensorID, Timestamp, Value) VALUES (?, ?, ?)", s.tableName)
	_, err := s.db.Exec(query, sensorID, timestamp, value)
	if err != nil {
		return gwerr.Wrap(gwerr.DbInsert, "inserting reading", err)
	}
	return nil
}
