package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// DefaultPostgresTable is the table used by OpenPostgres.
const DefaultPostgresTable = "alps_state"

// PostgresStore keeps one row per namespace.
type PostgresStore struct {
	db    *sql.DB
	table string
}

// OpenPostgres connects with the lib/pq driver and creates the state
// table if it does not exist.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	s := &PostgresStore{db: db, table: pq.QuoteIdentifier(DefaultPostgresTable)}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+s.table+` (
		namespace  TEXT PRIMARY KEY,
		document   BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// Load returns the document stored under namespace.
func (s *PostgresStore) Load(ctx context.Context, namespace string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM `+s.table+` WHERE namespace = $1`, namespace,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Save upserts the document in a single statement.
func (s *PostgresStore) Save(ctx context.Context, namespace string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+s.table+` (namespace, document, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (namespace) DO UPDATE SET document = EXCLUDED.document, updated_at = now()`,
		namespace, data,
	)
	return err
}

// Delete removes the row.
func (s *PostgresStore) Delete(ctx context.Context, namespace string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE namespace = $1`, namespace)
	return err
}

// Close closes the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
