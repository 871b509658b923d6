// Package registry persists fitted pipelines in a SQLite database.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/YuminosukeSato/mlplayground/pipeline"
	"github.com/YuminosukeSato/mlplayground/pkg/errors"
	"github.com/YuminosukeSato/mlplayground/pkg/log"
)

// ErrNotFound is returned when no artifact has the requested id.
var ErrNotFound = errors.New("artifact not found")

// SchemaVersion is the schema version Migrate brings the database to.
const SchemaVersion = 1

var migrations = []struct {
	Version     int
	Description string
	Queries     []string
}{
	{
		Version:     1,
		Description: "artifacts table",
		Queries: []string{
			`CREATE TABLE IF NOT EXISTS artifacts (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				estimator TEXT NOT NULL,
				problem TEXT NOT NULL,
				target TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				metrics TEXT NOT NULL DEFAULT '{}',
				config TEXT NOT NULL DEFAULT '',
				blob BLOB NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_artifacts_created ON artifacts(created_at)`,
		},
	},
}

// Artifact is the metadata of a stored pipeline.
type Artifact struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Estimator string             `json:"estimator"`
	Problem   string             `json:"problem"`
	Target    string             `json:"target"`
	CreatedAt time.Time          `json:"created_at"`
	Metrics   map[string]float64 `json:"metrics"`
	// Config is the YAML run configuration that produced the pipeline.
	Config string `json:"config,omitempty"`
}

// Store is a SQLite-backed artifact registry.
type Store struct {
	db     *sql.DB
	path   string
	logger log.Logger
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.NewValidationError("registry", "a database path is required", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, errors.Wrap(err, "create registry directory")
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "open registry")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping registry")
	}
	s := &Store{db: db, path: path, logger: log.GetLoggerWithName("registry")}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path is the database file.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return errors.Wrap(err, "read schema version")
	}
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return errors.Wrap(err, "begin migration")
		}
		for _, q := range m.Queries {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return errors.Wrapf(err, "migration %d", m.Version)
			}
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, "update schema version")
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "commit migration %d", m.Version)
		}
		s.logger.Debug("Applied migration", "version", m.Version, "description", m.Description)
	}

	var final int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&final); err != nil {
		return errors.Wrap(err, "read schema version")
	}
	if final != SchemaVersion {
		return errors.Newf("registry schema version mismatch: expected %d, got %d", SchemaVersion, final)
	}
	return nil
}

// Save stores a fitted pipeline and returns its metadata with a new id.
// meta.ID and meta.CreatedAt are assigned by Save.
func (s *Store) Save(ctx context.Context, meta Artifact, p *pipeline.Pipeline) (*Artifact, error) {
	blob, err := pipeline.Marshal(p)
	if err != nil {
		return nil, err
	}
	if meta.Name == "" {
		meta.Name = meta.Estimator
	}
	meta.ID = uuid.NewString()
	meta.CreatedAt = time.Now().UTC().Truncate(time.Second)
	if meta.Metrics == nil {
		meta.Metrics = map[string]float64{}
	}
	metrics, err := json.Marshal(meta.Metrics)
	if err != nil {
		return nil, errors.Wrap(err, "encode metrics")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO artifacts (id, name, estimator, problem, target, created_at, metrics, config, blob)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, meta.ID, meta.Name, meta.Estimator, meta.Problem, meta.Target, meta.CreatedAt, string(metrics), meta.Config, blob)
	if err != nil {
		return nil, errors.Wrap(err, "insert artifact")
	}
	s.logger.Info("Artifact saved", log.ArtifactIDKey, meta.ID, log.EstimatorIDKey, meta.Estimator)
	return &meta, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row scanner) (*Artifact, error) {
	var (
		a       Artifact
		metrics string
	)
	if err := row.Scan(&a.ID, &a.Name, &a.Estimator, &a.Problem, &a.Target, &a.CreatedAt, &metrics, &a.Config); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metrics), &a.Metrics); err != nil {
		return nil, errors.Wrapf(err, "decode metrics of %s", a.ID)
	}
	return &a, nil
}

const columns = `id, name, estimator, problem, target, created_at, metrics, config`

// Get returns the metadata of id.
func (s *Store) Get(ctx context.Context, id string) (*Artifact, error) {
	a, err := scanArtifact(s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM artifacts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "id %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get artifact")
	}
	return a, nil
}

// Blob returns the encoded pipeline of id.
func (s *Store) Blob(ctx context.Context, id string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT blob FROM artifacts WHERE id = ?`, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "id %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get artifact blob")
	}
	return blob, nil
}

// Load decodes the pipeline stored under id.
func (s *Store) Load(ctx context.Context, id string) (*pipeline.Pipeline, error) {
	blob, err := s.Blob(ctx, id)
	if err != nil {
		return nil, err
	}
	return pipeline.Unmarshal(blob)
}

// List returns all artifacts, newest first.
func (s *Store) List(ctx context.Context) ([]Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM artifacts ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "list artifacts")
	}
	defer func() { _ = rows.Close() }()

	var out []Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan artifact")
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list artifacts")
	}
	return out, nil
}

// Delete removes id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, "delete artifact")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "delete artifact")
	}
	if n == 0 {
		return errors.Wrapf(ErrNotFound, "id %s", id)
	}
	s.logger.Info("Artifact deleted", log.ArtifactIDKey, id)
	return nil
}
