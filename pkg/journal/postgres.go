package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/teslashibe/go-trashcam/pkg/features"
)

// VectorDims is the length of a feature vector: h, s, v, shape, texture.
const VectorDims = 5

const schema = `
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS classifications (
		id UUID PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		hue DOUBLE PRECISION NOT NULL,
		saturation DOUBLE PRECISION NOT NULL,
		value DOUBLE PRECISION NOT NULL,
		shape INTEGER NOT NULL,
		texture DOUBLE PRECISION NOT NULL,
		label TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		latency_ms DOUBLE PRECISION NOT NULL,
		features vector(5) NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_classifications_created_at ON classifications(created_at);
	CREATE INDEX IF NOT EXISTS idx_classifications_label ON classifications(label);
`

// Match is a journaled entry close to a queried feature set.
type Match struct {
	Entry
	Distance float64 `json:"distance"`
}

// Postgres stores entries in a classifications table with a pgvector column
// for nearest-neighbour lookups over feature space.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the database at connString and verifies the
// connection.
func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("journal: connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal: ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// InitSchema creates the vector extension, table and indexes if missing.
func (p *Postgres) InitSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("journal: create schema: %w", err)
	}
	return nil
}

// Record inserts e.
func (p *Postgres) Record(ctx context.Context, e Entry) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO classifications
		(id, created_at, source, hue, saturation, value, shape, texture, label, error, latency_ms, features)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.ID.String(), e.Time, e.Source, e.Hue, e.Sat, e.Val, e.Shape, e.Texture,
		e.Label, e.Error, e.LatencyMS, pgvector.NewVector(e.Features().Vector()))
	if err != nil {
		return fmt.Errorf("journal: insert %s: %w", e.ID, err)
	}
	return nil
}

// Nearest returns up to limit labelled entries closest to set by Euclidean
// distance in feature space.
func (p *Postgres) Nearest(ctx context.Context, set features.Set, limit int) ([]Match, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id::text, created_at, source, hue, saturation, value, shape, texture,
			label, error, latency_ms, features <-> $1 AS distance
		FROM classifications
		WHERE label <> ''
		ORDER BY features <-> $1
		LIMIT $2`,
		pgvector.NewVector(set.Vector()), limit)
	if err != nil {
		return nil, fmt.Errorf("journal: nearest query: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var (
			m  Match
			id string
		)
		if err := rows.Scan(&id, &m.Time, &m.Source, &m.Hue, &m.Sat, &m.Val, &m.Shape,
			&m.Texture, &m.Label, &m.Error, &m.LatencyMS, &m.Distance); err != nil {
			return nil, fmt.Errorf("journal: scan match: %w", err)
		}
		if m.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("journal: parse id: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Count returns the number of journaled entries since the given time.
func (p *Postgres) Count(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := p.pool.QueryRow(ctx,
		"SELECT count(*) FROM classifications WHERE created_at >= $1", since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("journal: count: %w", err)
	}
	return n, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
