package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"CareerBot/model"

	"github.com/bytedance/sonic"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

const (
	driverSQLite   = "sqlite3"
	driverPostgres = "postgres"
)

const handoffSchema = `CREATE TABLE IF NOT EXISTS handoffs (
	owner      TEXT PRIMARY KEY,
	blob       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
)`

// DetectDSNType returns the database/sql driver name for dsn.
func DetectDSNType(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") ||
		strings.Contains(lower, "host=") {
		return driverPostgres
	}
	return driverSQLite
}

// HandoffStore passes one pending payload per owner from one view to another,
// such as a saved artifact opened from the dashboard. Reading consumes it.
type HandoffStore struct {
	db     *sql.DB
	driver string
}

func NewHandoffStore(dsn string) (*HandoffStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("hand-off DSN not set")
	}
	driver := DetectDSNType(dsn)
	if driver == driverSQLite && !strings.HasPrefix(dsn, ":memory:") && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == driverSQLite {
		// a single connection keeps :memory: databases shared and serializes writers
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("hand-off store ping: %w", err)
	}
	if _, err := db.Exec(handoffSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Debug().Str("driver", driver).Msg("hand-off store ready")
	return &HandoffStore{db: db, driver: driver}, nil
}

func (h *HandoffStore) Close() error {
	return h.db.Close()
}

// Put replaces the pending payload of owner with v encoded as JSON.
func (h *HandoffStore) Put(ctx context.Context, owner string, v interface{}) error {
	blob, err := sonic.MarshalString(v)
	if err != nil {
		return fmt.Errorf("error encoding hand-off: %w", err)
	}
	_, err = h.db.ExecContext(ctx,
		`INSERT INTO handoffs (owner, blob, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (owner) DO UPDATE SET blob = excluded.blob, created_at = excluded.created_at`,
		owner, blob, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("error writing hand-off: %w", err)
	}
	return nil
}

// Take decodes the pending payload of owner into v and deletes it in the same
// transaction. It returns model.ErrHandoffEmpty when nothing is pending.
func (h *HandoffStore) Take(ctx context.Context, owner string, v interface{}) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error opening hand-off transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT blob FROM handoffs WHERE owner = $1`
	if h.driver == driverPostgres {
		query += ` FOR UPDATE`
	}
	var blob string
	err = tx.QueryRowContext(ctx, query, owner).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrHandoffEmpty
	}
	if err != nil {
		return fmt.Errorf("error reading hand-off: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM handoffs WHERE owner = $1`, owner)
	if err != nil {
		return fmt.Errorf("error consuming hand-off: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrHandoffEmpty
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error consuming hand-off: %w", err)
	}

	if err := sonic.UnmarshalString(blob, v); err != nil {
		return fmt.Errorf("error decoding hand-off: %w", err)
	}
	return nil
}
