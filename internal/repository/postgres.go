// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/sipsaver-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке регистрации с занятым именем или почтой.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrEstimateNotFound возвращается, если расчёт не найден у данного владельца.
	// Чужой и несуществующий расчёт неразличимы: выборка всегда
	// фильтруется парой (id, user_id).
	ErrEstimateNotFound = errors.New("estimate not found")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД
// через миграции. Миграции выполняются один раз на старте процесса.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	// Гонка инициализации схемы при параллельном старте реплик
	// безопасна для повтора.
	if err := r.withRetry(ctx, func() error { return r.runMigrations(ctx) }); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя. Уникальность имени и почты
// обеспечивается ограничениями БД, нарушение отображается в ErrUserExists.
func (r *PostgresRepository) CreateUser(ctx context.Context, username, email string, passwordHash []byte, profileType model.ProfileType) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, profile_type) VALUES ($1, $2, $3, $4) RETURNING id`,
		username, email, passwordHash, string(profileType),
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, username)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByIdentifier возвращает пользователя по имени или почте.
// Почта сравнивается без учёта регистра, имя — как есть.
func (r *PostgresRepository) GetUserByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, profile_type, created_at
		 FROM users
		 WHERE email = lower($1) OR username = $1`,
		identifier,
	)
	return scanUser(row)
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, profile_type, created_at
		 FROM users
		 WHERE id = $1`,
		id,
	)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u       model.User
		profile string
	)
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &profile, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.ProfileType = model.ProfileType(profile)
	return &u, nil
}

// CreateEstimate сохраняет новый расчёт и возвращает его идентификатор.
// created_at и updated_at получают одну и ту же отметку времени.
func (r *PostgresRepository) CreateEstimate(ctx context.Context, userID int64, name string, payload []byte) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO estimates (user_id, name, payload, created_at, updated_at)
		 VALUES ($1, $2, $3, now(), now())
		 RETURNING id`,
		userID, name, string(payload),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create estimate: %w", err)
	}
	return id, nil
}

// GetEstimate возвращает расчёт владельца по идентификатору.
func (r *PostgresRepository) GetEstimate(ctx context.Context, userID, estimateID int64) (*model.Estimate, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, COALESCE(name, ''), payload, created_at, COALESCE(updated_at, created_at)
		 FROM estimates
		 WHERE id = $1 AND user_id = $2`,
		estimateID, userID,
	)

	var (
		e       model.Estimate
		payload string
	)
	err := row.Scan(&e.ID, &e.UserID, &e.Name, &payload, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEstimateNotFound
		}
		return nil, fmt.Errorf("get estimate: %w", err)
	}
	e.Payload = []byte(payload)
	return &e, nil
}

// ListEstimatesByUser возвращает расчёты пользователя, новые первыми.
func (r *PostgresRepository) ListEstimatesByUser(ctx context.Context, userID int64) ([]model.Estimate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, COALESCE(name, ''), payload, created_at, COALESCE(updated_at, created_at)
		 FROM estimates
		 WHERE user_id = $1
		 ORDER BY id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select estimates: %w", err)
	}
	defer rows.Close()

	estimates := make([]model.Estimate, 0)
	for rows.Next() {
		var (
			e       model.Estimate
			payload string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Name, &payload, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan estimate: %w", err)
		}
		e.Payload = []byte(payload)
		estimates = append(estimates, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return estimates, nil
}

// RenameEstimate обновляет название расчёта и отметку updated_at.
func (r *PostgresRepository) RenameEstimate(ctx context.Context, userID, estimateID int64, name string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE estimates SET name = $3, updated_at = now() WHERE id = $1 AND user_id = $2`,
		estimateID, userID, name,
	)
	if err != nil {
		return fmt.Errorf("rename estimate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEstimateNotFound
	}
	return nil
}

// UpdateEstimatePayload обновляет содержимое расчёта и отметку updated_at,
// не затрагивая название.
func (r *PostgresRepository) UpdateEstimatePayload(ctx context.Context, userID, estimateID int64, payload []byte) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE estimates SET payload = $3, updated_at = now() WHERE id = $1 AND user_id = $2`,
		estimateID, userID, string(payload),
	)
	if err != nil {
		return fmt.Errorf("update estimate payload: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEstimateNotFound
	}
	return nil
}

// DeleteEstimate безвозвратно удаляет расчёт владельца.
func (r *PostgresRepository) DeleteEstimate(ctx context.Context, userID, estimateID int64) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM estimates WHERE id = $1 AND user_id = $2`,
		estimateID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete estimate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEstimateNotFound
	}
	return nil
}
