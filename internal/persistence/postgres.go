package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/guild-tickets/internal/config"
)

// Postgres wraps access to a pgx connection pool.
type Postgres struct {
	Pool *pgxpool.Pool
}

// NewPostgres establishes a connection pool when DSN is provided.
func NewPostgres(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	if cfg.DSN == "" {
		logger.Warn("POSTGRES_DSN not provided; skipping database connection")
		return &Postgres{Pool: nil}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleSec) * time.Second
	}
	if cfg.ConnMaxLifeSec > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.ConnMaxLifeSec) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("connected to postgres")
	return &Postgres{Pool: pool}, nil
}

// Close releases pool resources.
func (p *Postgres) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}

// PoolHandle returns the underlying pgx pool.
func (p *Postgres) PoolHandle() *pgxpool.Pool {
	if p == nil {
		return nil
	}
	return p.Pool
}

// PostgresStore keeps documents in the kv_documents table.
type PostgresStore struct {
	pg *Postgres
}

// NewPostgresStore builds the store over an established pool.
func NewPostgresStore(pg *Postgres) *PostgresStore {
	return &PostgresStore{pg: pg}
}

var errNoPool = errors.New("postgres pool not configured")

func (s *PostgresStore) pool() (*pgxpool.Pool, error) {
	pool := s.pg.PoolHandle()
	if pool == nil {
		return nil, Unavailable(errNoPool)
	}
	return pool, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (Entry, error) {
	pool, err := s.pool()
	if err != nil {
		return Entry{}, err
	}
	const query = `SELECT value::text, version FROM kv_documents WHERE key=$1`
	var (
		value   string
		version int64
	)
	if err := pool.QueryRow(ctx, query, key).Scan(&value, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, Unavailable(err)
	}
	return Entry{Value: []byte(value), Version: version}, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	if err := validateValue(value); err != nil {
		return err
	}
	pool, err := s.pool()
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO kv_documents (key, value, version, updated_at)
        VALUES ($1, $2::jsonb, 1, NOW())
        ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, version=kv_documents.version+1, updated_at=NOW()`
	if _, err := pool.Exec(ctx, query, key, string(value)); err != nil {
		return Unavailable(err)
	}
	return nil
}

func (s *PostgresStore) CompareAndSet(ctx context.Context, key string, value []byte, expected int64) (int64, error) {
	if err := validateValue(value); err != nil {
		return 0, err
	}
	pool, err := s.pool()
	if err != nil {
		return 0, err
	}

	var query string
	args := []any{key, string(value)}
	if expected == 0 {
		query = `
            INSERT INTO kv_documents (key, value, version, updated_at)
            VALUES ($1, $2::jsonb, 1, NOW())
            ON CONFLICT (key) DO NOTHING`
	} else {
		query = `
            UPDATE kv_documents SET value=$2::jsonb, version=version+1, updated_at=NOW()
            WHERE key=$1 AND version=$3`
		args = append(args, expected)
	}

	cmd, err := pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, Unavailable(err)
	}
	if cmd.RowsAffected() == 0 {
		return 0, ErrVersionConflict
	}
	return expected + 1, nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	pool, err := s.pool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, `DELETE FROM kv_documents WHERE key=$1`, key); err != nil {
		return Unavailable(err)
	}
	return nil
}

func (s *PostgresStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	pool, err := s.pool()
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, `SELECT key FROM kv_documents WHERE key LIKE $1 ESCAPE '\' ORDER BY key`, likePattern(pattern))
	if err != nil {
		return nil, Unavailable(err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, Unavailable(err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, Unavailable(err)
	}
	return keys, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	pool, err := s.pool()
	if err != nil {
		return err
	}
	if err := pool.Ping(ctx); err != nil {
		return Unavailable(err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pg.Close()
	return nil
}

// likePattern escapes LIKE metacharacters and maps '*' to '%'.
func likePattern(pattern string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `*`, `%`)
	return r.Replace(pattern)
}
