// Package postgres stores links in PostgreSQL, one row per code.
//
// Inserts rely on the unique constraint on code and clicks are counted
// under a row lock, so concurrent callers never overwrite each other.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sundayezeilo/shortlink/internal/errx"
	"github.com/sundayezeilo/shortlink/internal/idgen"
	"github.com/sundayezeilo/shortlink/internal/shortener"
)

//go:embed schema.sql
var schema string

const codeUniqueConstraint = "links_code_unique"

// PoolConfig describes how to reach the database.
type PoolConfig struct {
	ConnString string
	MaxConns   int32
	MinConns   int32
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, cfg PoolConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}

	logger.Info("connecting to database",
		"host", poolConfig.ConnConfig.Host,
		"port", poolConfig.ConnConfig.Port,
		"database", poolConfig.ConnConfig.Database,
	)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established")
	return pool, nil
}

// Migrate creates the links table if it does not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return errx.E("postgres.Migrate", errx.Internal, err)
	}
	return nil
}

// Repository implements shortener.Repository on a pgx pool.
type Repository struct {
	pool *pgxpool.Pool
	ids  idgen.Generator
}

var _ shortener.Repository = (*Repository)(nil)

// RepositoryConfig holds configuration for the repository.
type RepositoryConfig struct {
	IDGenerator idgen.Generator
}

// NewRepository creates a Repository. Row IDs default to UUID v7.
func NewRepository(pool *pgxpool.Pool, config *RepositoryConfig) *Repository {
	if config == nil {
		config = &RepositoryConfig{}
	}
	ids := config.IDGenerator
	if ids == nil {
		ids = idgen.NewV7(idgen.WithRetries(1))
	}
	return &Repository{pool: pool, ids: ids}
}

const selectColumns = `code, original_url, clicks, created_at, expires_at`

func scanLink(row pgx.Row) (shortener.Link, error) {
	var l shortener.Link
	err := row.Scan(&l.Code, &l.OriginalURL, &l.Clicks, &l.CreatedAt, &l.Expiry)
	return l, err
}

func (r *Repository) CreateLink(ctx context.Context, link shortener.Link) (shortener.Link, error) {
	const op = "postgres.repo.CreateLink"

	id, err := r.ids.Generate()
	if err != nil {
		return shortener.Link{}, errx.E(op, errx.Internal, err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO links (id, code, original_url, clicks, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+selectColumns,
		id, link.Code, link.OriginalURL, link.Clicks, link.CreatedAt, link.Expiry,
	)
	created, err := scanLink(row)
	if err != nil {
		return shortener.Link{}, mapRepoError(op, err)
	}
	return created, nil
}

func (r *Repository) GetLinkByCode(ctx context.Context, code string) (shortener.Link, error) {
	const op = "postgres.repo.GetLinkByCode"

	link, err := scanLink(r.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM links WHERE code = $1`, code))
	if err != nil {
		return shortener.Link{}, mapRepoError(op, err)
	}
	return link, nil
}

func (r *Repository) TrackClick(ctx context.Context, code string, guard shortener.ClickGuard) (shortener.Link, error) {
	const op = "postgres.repo.TrackClick"

	var link shortener.Link
	var guardErr error
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		current, err := scanLink(tx.QueryRow(ctx,
			`SELECT `+selectColumns+` FROM links WHERE code = $1 FOR UPDATE`, code))
		if err != nil {
			return err
		}
		if guard != nil {
			if guardErr = guard(current); guardErr != nil {
				return guardErr
			}
		}

		link, err = scanLink(tx.QueryRow(ctx,
			`UPDATE links SET clicks = clicks + 1 WHERE code = $1 RETURNING `+selectColumns, code))
		return err
	})
	if guardErr != nil {
		return shortener.Link{}, guardErr
	}
	if err != nil {
		return shortener.Link{}, mapRepoError(op, err)
	}
	return link, nil
}

func mapRepoError(op string, err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return errx.E(op, errx.NotFound, shortener.ErrLinkNotFound)
	case isCodeUniqueViolation(err):
		return errx.E(op, errx.Conflict, shortener.ErrCodeTaken)
	default:
		return errx.E(op, errx.Internal, err)
	}
}

func isCodeUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == codeUniqueConstraint
}
