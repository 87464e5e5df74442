package tariff

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/iwvelando/premium-engine/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the table holding the active tariff. The table keeps a
// single row; publishing replaces it.
const Schema = `
CREATE TABLE IF NOT EXISTS tariff_documents (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	version    TEXT NOT NULL,
	document   JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const (
	selectActive = `SELECT document FROM tariff_documents WHERE id = 1`
	upsertActive = `
INSERT INTO tariff_documents (id, version, document, updated_at)
VALUES (1, $1, $2, now())
ON CONFLICT (id) DO UPDATE SET version = EXCLUDED.version, document = EXCLUDED.document, updated_at = now()`
)

// DB is the subset of *pgxpool.Pool used by PostgresSource.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// OpenPool connects to Postgres and verifies the connection.
func OpenPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// PostgresSource reads the active tariff stored as JSONB.
type PostgresSource struct {
	db DB
}

// NewPostgresSource returns a source reading from db.
func NewPostgresSource(db DB) *PostgresSource {
	return &PostgresSource{db: db}
}

// EnsureSchema creates the tariff table when missing.
func (s *PostgresSource) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	return err
}

// Load implements Source.
func (s *PostgresSource) Load(ctx context.Context) (map[string]interface{}, error) {
	var data []byte
	err := s.db.QueryRow(ctx, selectActive).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.KindConfigSource, "no active tariff in tariff_documents")
	}
	if err != nil {
		return nil, err
	}
	return decodeJSON(data)
}

// Publish validates doc and stores it as the active tariff.
func (s *PostgresSource) Publish(ctx context.Context, doc *Document) error {
	data, err := json.Marshal(doc.Export())
	if err != nil {
		return fmt.Errorf("unable to encode tariff, %w", err)
	}
	_, err = s.db.Exec(ctx, upsertActive, doc.Version(), data)
	return err
}

// Describe implements Source.
func (s *PostgresSource) Describe() string {
	return "postgres:tariff_documents"
}

// decodeJSON keeps integers exact instead of decoding every number as a
// float.
func decodeJSON(data []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tree map[string]interface{}
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("unable to decode tariff json, %w", err)
	}
	return tree, nil
}
