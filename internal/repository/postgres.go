// Package repository содержит реализации хранилища клуба участников: PostgreSQL и in-memory.
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

	"github.com/mmeshcher/memberclub/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrMemberExists возвращается при попытке зарегистрировать уже занятый номер телефона.
	ErrMemberExists = errors.New("member already exists")
	// ErrMemberNotFound возвращается, если участник не найден.
	ErrMemberNotFound = errors.New("member not found")
	// ErrAdminExists возвращается при попытке создать администратора с занятым логином.
	ErrAdminExists = errors.New("admin already exists")
	// ErrAdminNotFound возвращается, если администратор не найден.
	ErrAdminNotFound = errors.New("admin not found")
	// ErrPaymentNotFound возвращается, если платёж не найден.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrPaymentProcessed возвращается, если платёж уже подтверждён или отклонён.
	ErrPaymentProcessed = errors.New("payment is not pending")
	// ErrGiftNotFound возвращается, если подарок не найден.
	ErrGiftNotFound = errors.New("gift not found")
	// ErrDeliveryNotFound возвращается, если заявка на доставку не найдена.
	ErrDeliveryNotFound = errors.New("gift delivery not found")
	// ErrDeliveryExists возвращается, если у участника уже есть заявка на подарок.
	ErrDeliveryExists = errors.New("member already has a gift delivery")
	// ErrEventNotFound возвращается, если событие не найдено.
	ErrEventNotFound = errors.New("event not found")
	// ErrReviewNotFound возвращается, если отзыв не найден.
	ErrReviewNotFound = errors.New("review not found")
	// ErrSettingsNotFound возвращается, если настройки сайта ещё не сохранялись.
	ErrSettingsNotFound = errors.New("site settings not found")
)

var retryDelays = []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
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

	if err := r.runMigrations(ctx); err != nil {
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

// withRetry повторяет fn при конфликте сериализации, взаимной блокировке или обрыве соединения.
// fn должна целиком выполнять транзакцию, чтобы повтор был безопасен.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error

	for i := 0; i <= len(retryDelays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(retryDelays) {
			break
		}

		timer := time.NewTimer(retryDelays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// inTx выполняет fn в транзакции с повторами.
func (r *PostgresRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := fn(tx); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateAdmin создаёт администратора.
func (r *PostgresRepository) CreateAdmin(ctx context.Context, a *model.Admin) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO admins (id, username, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		a.ID, a.Username, a.PasswordHash, a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return fmt.Errorf("%w: %s", ErrAdminExists, a.Username)
		}
		return fmt.Errorf("create admin: %w", err)
	}
	return nil
}

// GetAdmin возвращает администратора по идентификатору.
func (r *PostgresRepository) GetAdmin(ctx context.Context, id string) (*model.Admin, error) {
	return r.getAdmin(ctx, `WHERE id = $1`, id)
}

// GetAdminByUsername возвращает администратора по логину.
func (r *PostgresRepository) GetAdminByUsername(ctx context.Context, username string) (*model.Admin, error) {
	return r.getAdmin(ctx, `WHERE username = $1`, username)
}

func (r *PostgresRepository) getAdmin(ctx context.Context, where string, arg any) (*model.Admin, error) {
	var a model.Admin
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, created_at FROM admins `+where,
		arg,
	).Scan(&a.ID, &a.Username, &a.PasswordHash, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return &a, nil
}
