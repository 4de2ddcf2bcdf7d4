// Package store provides Postgres-backed persistence for the
// genealogy graph: existence checks and the per-node ingest
// transaction.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mathgene/genealogy-crawler/internal/genealogy"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pgxPool abstracts the pgxpool methods the store uses so pgxmock can
// stand in during tests.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Store implements genealogy.Oracle and genealogy.Ingestor over a
// shared connection pool. The pool's connection cap is the only bound
// on concurrent ingest transactions; transactions beyond it queue.
type Store struct {
	pool pgxPool
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for
// testing).
func NewWithPool(pool pgxPool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping verifies the pool can reach the database.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("store is not configured")
	}
	return s.pool.Ping(ctx)
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS nodes (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS schools (
	name TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS countries (
	name TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS school_locations (
	school  TEXT NOT NULL REFERENCES schools(name),
	country TEXT NOT NULL REFERENCES countries(name),
	PRIMARY KEY (school, country)
);
CREATE TABLE IF NOT EXISTS dissertations (
	title  TEXT NOT NULL,
	author INTEGER NOT NULL REFERENCES nodes(id),
	PRIMARY KEY (title, author)
);
CREATE TABLE IF NOT EXISTS graduation_records (
	node   INTEGER NOT NULL REFERENCES nodes(id),
	school TEXT NOT NULL REFERENCES schools(name),
	year   SMALLINT NOT NULL,
	degree TEXT,
	PRIMARY KEY (node, school, year)
);
CREATE TABLE IF NOT EXISTS advisor_relations (
	advisor INTEGER NOT NULL REFERENCES nodes(id),
	advisee INTEGER NOT NULL REFERENCES nodes(id),
	PRIMARY KEY (advisor, advisee)
);
`

// EnsureSchema applies the relational schema. Safe to run repeatedly.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Every insert is a conflict-skip on the natural key: a duplicate is
// silently ignored, never an error. This is what makes the accepted
// check-then-act race between concurrent visits harmless.
const (
	insertNodeSQL = `INSERT INTO nodes (id, name) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`

	insertCountrySQL = `INSERT INTO countries (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`

	insertDissertationSQL = `INSERT INTO dissertations (title, author) VALUES ($1, $2) ON CONFLICT (title, author) DO NOTHING`

	insertSchoolSQL = `INSERT INTO schools (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`

	insertSchoolLocationSQL = `INSERT INTO school_locations (school, country) VALUES ($1, $2) ON CONFLICT (school, country) DO NOTHING`

	insertGraduationSQL = `INSERT INTO graduation_records (node, school, year, degree) VALUES ($1, $2, $3, $4) ON CONFLICT (node, school, year) DO NOTHING`

	insertEdgeSQL = `INSERT INTO advisor_relations (advisor, advisee) VALUES ($1, $2) ON CONFLICT (advisor, advisee) DO NOTHING`

	nodeExistsSQL = `SELECT EXISTS (SELECT 1 FROM nodes WHERE id = $1)`

	edgeExistsSQL = `SELECT EXISTS (SELECT 1 FROM advisor_relations WHERE advisor = $1 AND advisee = $2)`
)

// NodeExists reports whether a node row with the identifier is stored.
func (s *Store) NodeExists(ctx context.Context, id int) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, nodeExistsSQL, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("node exists %d: %w", id, err)
	}
	return exists, nil
}

// EdgeExists reports whether the exact directed edge is stored.
func (s *Store) EdgeExists(ctx context.Context, advisor, advisee int) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, edgeExistsSQL, advisor, advisee).Scan(&exists); err != nil {
		return false, fmt.Errorf("edge exists %d->%d: %w", advisor, advisee, err)
	}
	return exists, nil
}

// Ingest commits one visited node, its attached entities, its one-hop
// neighbor nodes and the outgoing edges in a single transaction. Any
// failure rolls back everything; the node stays absent and eligible
// for retry on a later run. Existing rows are never updated;
// first-write-wins.
func (s *Store) Ingest(ctx context.Context, id int, rec *genealogy.ScrapeRecord) error {
	if rec == nil {
		return &genealogy.IngestError{NodeID: id, Err: fmt.Errorf("nil record")}
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &genealogy.IngestError{NodeID: id, Err: fmt.Errorf("begin: %w", err)}
	}
	// Rollback after a successful commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.ingestInTx(ctx, tx, id, rec); err != nil {
		return &genealogy.IngestError{NodeID: id, Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return &genealogy.IngestError{NodeID: id, Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

func (s *Store) ingestInTx(ctx context.Context, tx pgx.Tx, id int, rec *genealogy.ScrapeRecord) error {
	if _, err := tx.Exec(ctx, insertNodeSQL, id, rec.Name); err != nil {
		return fmt.Errorf("insert node: %w", err)
	}
	if rec.Country != nil {
		if _, err := tx.Exec(ctx, insertCountrySQL, *rec.Country); err != nil {
			return fmt.Errorf("insert country: %w", err)
		}
	}
	if rec.Dissertation != nil {
		if _, err := tx.Exec(ctx, insertDissertationSQL, *rec.Dissertation, id); err != nil {
			return fmt.Errorf("insert dissertation: %w", err)
		}
	}
	if rec.School != nil {
		if _, err := tx.Exec(ctx, insertSchoolSQL, *rec.School); err != nil {
			return fmt.Errorf("insert school: %w", err)
		}
		if rec.Country != nil {
			if _, err := tx.Exec(ctx, insertSchoolLocationSQL, *rec.School, *rec.Country); err != nil {
				return fmt.Errorf("insert school location: %w", err)
			}
		}
		if rec.Year != nil {
			if _, err := tx.Exec(ctx, insertGraduationSQL, id, *rec.School, *rec.Year, rec.Degree); err != nil {
				return fmt.Errorf("insert graduation record: %w", err)
			}
		}
	}
	for _, st := range rec.Students {
		// An edge requires both endpoints to carry identifiers;
		// name-only stubs are dropped here.
		if st.ID == nil {
			continue
		}
		if _, err := tx.Exec(ctx, insertNodeSQL, *st.ID, st.Name); err != nil {
			return fmt.Errorf("insert neighbor %d: %w", *st.ID, err)
		}
		if _, err := tx.Exec(ctx, insertEdgeSQL, id, *st.ID); err != nil {
			return fmt.Errorf("insert edge %d->%d: %w", id, *st.ID, err)
		}
		// A stub's table-row school and year survive when the
		// neighbor's own page could not refine them. Degree is unknown
		// for a stub.
		if st.School == nil {
			continue
		}
		if _, err := tx.Exec(ctx, insertSchoolSQL, *st.School); err != nil {
			return fmt.Errorf("insert neighbor school: %w", err)
		}
		if st.Year != nil {
			if _, err := tx.Exec(ctx, insertGraduationSQL, *st.ID, *st.School, *st.Year, nil); err != nil {
				return fmt.Errorf("insert neighbor graduation record: %w", err)
			}
		}
	}
	return nil
}
