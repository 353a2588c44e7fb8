package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"concha-api/internal/models"
)

const userInfoSchema = `
CREATE TABLE IF NOT EXISTS user_info (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL UNIQUE,
	address TEXT NOT NULL,
	image_hosted_link TEXT
)`

type postgresRepository struct {
	pool *pgxpool.Pool
	cfg  PostgresConfig
}

// NewPostgresRepository opens a Postgres-backed user repository and
// bootstraps the user_info table, including the unique email constraint the
// duplicate-email rule relies on.
func NewPostgresRepository(ctx context.Context, dsn string, opts ...Option) (UserRepository, error) {
	cfg := newPostgresConfig(dsn, opts...)
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	if cfg.MinConnections > 0 {
		poolCfg.MinConns = cfg.MinConnections
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckInterval > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckInterval
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.ApplicationName != "" {
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = make(map[string]string)
		}
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	repo := &postgresRepository{pool: pool, cfg: cfg}
	if err := repo.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

func (r *postgresRepository) ensureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, userInfoSchema); err != nil {
		return fmt.Errorf("bootstrap user_info schema: %w", err)
	}
	return nil
}

func (r *postgresRepository) Close(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		r.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

const userInfoColumns = "id, name, email, address, image_hosted_link"

func scanUserInfo(row pgx.Row) (models.UserInfo, error) {
	var info models.UserInfo
	err := row.Scan(&info.ID, &info.Name, &info.Email, &info.Address, &info.ImageHostedLink)
	return info, err
}

func (r *postgresRepository) Create(ctx context.Context, info models.UserInfo) (models.UserInfo, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		"INSERT INTO user_info (name, email, address) VALUES ($1, $2, $3) RETURNING id",
		info.Name, info.Email, info.Address,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return models.UserInfo{}, ErrDuplicateEmail
		}
		return models.UserInfo{}, fmt.Errorf("insert user_info: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *postgresRepository) Get(ctx context.Context, id int64) (models.UserInfo, error) {
	info, err := scanUserInfo(r.pool.QueryRow(ctx,
		"SELECT "+userInfoColumns+" FROM user_info WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.UserInfo{}, ErrUserNotFound
		}
		return models.UserInfo{}, fmt.Errorf("select user_info %d: %w", id, err)
	}
	return info, nil
}

// buildSearchQuery produces a parameterized conjunction over the set filter
// fields. Values never end up interpolated into the statement text.
func buildSearchQuery(filter UserFilter) (string, []any) {
	query := "SELECT " + userInfoColumns + " FROM user_info"
	var (
		conditions []string
		args       []any
	)
	appendCondition := func(column string, value *string) {
		if value == nil {
			return
		}
		args = append(args, *value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	appendCondition("name", filter.Name)
	appendCondition("email", filter.Email)
	appendCondition("address", filter.Address)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id"
	return query, args
}

func (r *postgresRepository) Search(ctx context.Context, filter UserFilter) ([]models.UserInfo, error) {
	query, args := buildSearchQuery(filter)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search user_info: %w", err)
	}
	defer rows.Close()

	results := make([]models.UserInfo, 0)
	for rows.Next() {
		info, err := scanUserInfo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user_info: %w", err)
		}
		results = append(results, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search user_info: %w", err)
	}
	return results, nil
}

func (r *postgresRepository) Update(ctx context.Context, id int64, info models.UserInfo) (models.UserInfo, error) {
	tag, err := r.pool.Exec(ctx,
		"UPDATE user_info SET name = $1, email = $2, address = $3 WHERE id = $4",
		info.Name, info.Email, info.Address, id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.UserInfo{}, ErrDuplicateEmail
		}
		return models.UserInfo{}, fmt.Errorf("update user_info %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return models.UserInfo{}, ErrUserNotFound
	}
	return r.Get(ctx, id)
}

func (r *postgresRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM user_info WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete user_info %d: %w", id, err)
	}
	return nil
}

func (r *postgresRepository) SetImageHostedLink(ctx context.Context, id int64, link string) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE user_info SET image_hosted_link = $1 WHERE id = $2", link, id)
	if err != nil {
		return fmt.Errorf("update image_hosted_link %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
