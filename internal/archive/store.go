// Package archive persists published snapshots to PostgreSQL + pgvector so
// the knowledge base survives restarts. Only the latest snapshot is kept.
package archive

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/briefly-ai/briefly/internal/index"
	"github.com/briefly-ai/briefly/internal/log"
	"github.com/briefly-ai/briefly/internal/news"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store archives snapshots in PostgreSQL. Safe for concurrent use.
type Store struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// Open connects to the database, applies pending migrations and returns a
// ready Store.
func Open(ctx context.Context, dsn string, logger log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	if err := runMigrations(dsn); err != nil {
		return nil, fmt.Errorf("applying migrations: %w", err)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Store{pool: pool, logger: logger}, nil
}

func runMigrations(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("opening migration connection: %w", err)
	}
	defer db.Close()

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("creating migrate driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "pgx", driver)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Save replaces the archived snapshot with snap and its source documents.
// Everything happens in one transaction: a crash mid-save leaves the
// previous archive intact.
func (s *Store) Save(ctx context.Context, snap *index.Snapshot, docs []news.Document) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, doc := range docs {
		_, err := tx.Exec(ctx, `
			INSERT INTO archived_documents (id, source_id, body, fetched_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE
			SET source_id = EXCLUDED.source_id, fetched_at = EXCLUDED.fetched_at`,
			doc.ContentHash, doc.SourceID, doc.Text, doc.FetchedAt)
		if err != nil {
			return fmt.Errorf("archiving document %q: %w", doc.ContentHash, err)
		}
	}

	version := snap.Version()
	for _, c := range snap.Chunks() {
		_, err := tx.Exec(ctx, `
			INSERT INTO archived_chunks
				(id, document_id, position, body, embedding, snapshot_version, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			uuid.NewString(), c.DocumentID, c.Position, c.Text,
			pgvector.NewVector(c.Embedding), version, c.CreatedAt)
		if err != nil {
			return fmt.Errorf("archiving chunk %s/%d: %w", c.DocumentID, c.Position, err)
		}
	}

	// Drop superseded snapshots and documents no chunk references anymore.
	if _, err := tx.Exec(ctx,
		`DELETE FROM archived_chunks WHERE snapshot_version < $1`, version); err != nil {
		return fmt.Errorf("pruning old chunks: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM archived_documents d
		WHERE NOT EXISTS (
			SELECT 1 FROM archived_chunks c WHERE c.document_id = d.id
		)`); err != nil {
		return fmt.Errorf("pruning orphaned documents: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing archive: %w", err)
	}

	s.logger.Debug("snapshot archived", "version", version, "chunks", snap.Len())
	return nil
}

// Load returns the chunks and version of the latest archived snapshot.
// An empty archive returns (nil, 0, nil).
func (s *Store) Load(ctx context.Context) ([]index.Chunk, uint64, error) {
	var version int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(snapshot_version), 0) FROM archived_chunks`).Scan(&version)
	if err != nil {
		return nil, 0, fmt.Errorf("reading archive version: %w", err)
	}
	if version == 0 {
		return nil, 0, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT document_id, position, body, embedding, created_at
		FROM archived_chunks
		WHERE snapshot_version = $1
		ORDER BY document_id, position`, version)
	if err != nil {
		return nil, 0, fmt.Errorf("reading archived chunks: %w", err)
	}
	defer rows.Close()

	var chunks []index.Chunk
	for rows.Next() {
		var (
			c         index.Chunk
			embedding pgvector.Vector
			createdAt time.Time
		)
		if err := rows.Scan(&c.DocumentID, &c.Position, &c.Text, &embedding, &createdAt); err != nil {
			return nil, 0, fmt.Errorf("scanning archived chunk: %w", err)
		}
		c.Embedding = embedding.Slice()
		c.CreatedAt = createdAt
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating archived chunks: %w", err)
	}

	return chunks, uint64(version), nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
