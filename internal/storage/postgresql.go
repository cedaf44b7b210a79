package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgreSQLStore implements Store using PostgreSQL via pgx.
type PostgreSQLStore struct {
	db     *sql.DB
	config Config
}

// NewPostgreSQLStore creates a new PostgreSQL store
func NewPostgreSQLStore(config Config) (*PostgreSQLStore, error) {
	// Set defaults
	if config.Host == "" {
		config.Host = "localhost"
	}
	if config.Port == 0 {
		config.Port = 5432
	}
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.Username, config.Password, config.Database, config.SSLMode)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgresql database: %w", err)
	}

	// Configure connection pool
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxAge > 0 {
		db.SetConnMaxLifetime(config.ConnMaxAge)
	}

	store := &PostgreSQLStore{db: db, config: config}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgreSQLStoreFromDSN creates a store from a raw DSN, used by the
// container-backed tests.
func NewPostgreSQLStoreFromDSN(dsn string, config Config) (*PostgreSQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgresql database: %w", err)
	}
	store := &PostgreSQLStore{db: db, config: config}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgreSQLStore) init(ctx context.Context) error {
	if err := s.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping postgresql database: %w", err)
	}
	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key TEXT PRIMARY KEY,
		value BYTEA NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, s.config.tableName())
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create objects table: %w", err)
	}
	return nil
}

func (s *PostgreSQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	query := fmt.Sprintf("SELECT value FROM %s WHERE key = $1", s.config.tableName())
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	return value, true, nil
}

func (s *PostgreSQLStore) Put(ctx context.Context, key string, value []byte) error {
	query := fmt.Sprintf(`INSERT INTO %s (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		s.config.tableName())
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

func (s *PostgreSQLStore) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE key = $1", s.config.tableName())
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}
	return nil
}

func (s *PostgreSQLStore) List(ctx context.Context, opts ListOptions) (Page, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	// Fetch one extra row to learn whether the listing is truncated.
	query := fmt.Sprintf(`SELECT key FROM %s
		WHERE key LIKE $1 ESCAPE '\' AND key > $2
		ORDER BY key LIMIT $3`, s.config.tableName())
	rows, err := s.db.QueryContext(ctx, query, likePrefix(opts.Prefix), opts.Cursor, limit+1)
	if err != nil {
		return Page{}, fmt.Errorf("failed to list objects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var page Page
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return Page{}, fmt.Errorf("failed to scan object key: %w", err)
		}
		page.Objects = append(page.Objects, Object{Key: key})
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("failed to iterate objects: %w", err)
	}
	if len(page.Objects) > limit {
		page.Objects = page.Objects[:limit]
		page.Truncated = true
		page.Cursor = page.Objects[limit-1].Key
	}
	return page, nil
}

func (s *PostgreSQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgreSQLStore) Close() error {
	return s.db.Close()
}
