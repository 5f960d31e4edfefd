package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/sharedstore/internal/ir"
	"github.com/roach88/sharedstore/internal/querysql"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added idx_objects_entity for entity-scoped fetches
const currentSchemaVersion = 1

// Metadata keys.
const (
	MetaModelHash = "model_hash"
)

// Store is an opened object store file.
// It is safe for concurrent use; all mutation happens through Contexts.
type Store struct {
	db       *sql.DB
	path     string
	model    *ir.Model
	compiler *querysql.Compiler
	logger   *slog.Logger
}

// Open creates or opens the store file at path and merges model into it.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// Open is safe to call repeatedly on the same path with the same model.
func Open(path string, model *ir.Model) (*Store, error) {
	if model == nil {
		return nil, fmt.Errorf("open store: no model")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{
		db:       db,
		path:     path,
		model:    model,
		compiler: querysql.NewCompiler(),
		logger:   slog.Default().With("component", "store"),
	}

	if err := s.mergeModel(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Debug("store opened", "path", path, "model_hash", model.Hash())
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer Contexts.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the file the store was opened from.
func (s *Store) Path() string {
	return s.path
}

// Model returns the model the store was opened with.
func (s *Store) Model() *ir.Model {
	return s.model
}

// Metadata reads a metadata value. Missing keys return "", false.
func (s *Store) Metadata(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read metadata %q: %w", key, err)
	}
	return value, true, nil
}

// SetMetadata writes a metadata value.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("write metadata %q: %w", key, err)
	}
	return nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_objects_entity
		ON objects(entity, seq)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// mergeModel records the model's descriptors, rejecting changes that would
// strand existing rows.
func (s *Store) mergeModel(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("merge model: begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, entity := range s.model.Entities() {
		if err := mergeEntity(ctx, tx, entity); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, MetaModelHash, s.model.Hash()); err != nil {
		return fmt.Errorf("merge model: record hash: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("merge model: commit: %w", err)
	}
	return nil
}

func mergeEntity(ctx context.Context, tx *sql.Tx, entity *ir.EntityDescriptor) error {
	descriptor, err := ir.EntityJSON(entity)
	if err != nil {
		return fmt.Errorf("merge model: %w", err)
	}
	hash, err := ir.EntityHash(entity)
	if err != nil {
		return fmt.Errorf("merge model: %w", err)
	}

	var storedJSON, storedHash string
	err = tx.QueryRowContext(ctx, `SELECT descriptor, hash FROM entities WHERE name = ?`, entity.Name).
		Scan(&storedJSON, &storedHash)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// New entity
	case err != nil:
		return fmt.Errorf("merge model: read entity %s: %w", entity.Name, err)
	case storedHash == hash:
		return nil
	default:
		stored, err := ir.ParseEntityJSON([]byte(storedJSON))
		if err != nil {
			return fmt.Errorf("merge model: %w", err)
		}
		var rows int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM objects WHERE entity = ?`, entity.Name).Scan(&rows); err != nil {
			return fmt.Errorf("merge model: count %s: %w", entity.Name, err)
		}
		if err := checkCompatible(stored, entity, rows > 0); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entities (name, descriptor, hash) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET descriptor = excluded.descriptor, hash = excluded.hash
	`, entity.Name, string(descriptor), hash)
	if err != nil {
		return fmt.Errorf("merge model: write entity %s: %w", entity.Name, err)
	}
	return nil
}

// checkCompatible decides whether rows written under stored remain valid
// under next.
func checkCompatible(stored, next *ir.EntityDescriptor, hasRows bool) error {
	for _, old := range stored.Attributes {
		cur, ok := next.Attribute(old.Name)
		if !ok {
			return &IncompatibleModelError{Entity: next.Name, Attribute: old.Name, Reason: "attribute removed"}
		}
		if cur.Type != old.Type {
			return &IncompatibleModelError{
				Entity:    next.Name,
				Attribute: old.Name,
				Reason:    fmt.Sprintf("type changed from %s to %s", old.Type, cur.Type),
			}
		}
		if hasRows && old.Optional && !cur.Optional {
			return &IncompatibleModelError{Entity: next.Name, Attribute: old.Name, Reason: "optional attribute became required"}
		}
	}
	if !hasRows {
		return nil
	}
	for _, cur := range next.Attributes {
		if _, existed := stored.Attribute(cur.Name); !existed && !cur.Optional {
			return &IncompatibleModelError{Entity: next.Name, Attribute: cur.Name, Reason: "required attribute added to entity with existing objects"}
		}
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
