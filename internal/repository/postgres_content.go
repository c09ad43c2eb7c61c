package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/memberclub/internal/model"
)

const eventColumns = `id, title, description, event_date, platform, event_url, replay_url, active, created_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.EventDate, &e.Platform, &e.EventURL, &e.ReplayURL, &e.Active, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	return &e, nil
}

// CreateEvent сохраняет событие.
func (r *PostgresRepository) CreateEvent(ctx context.Context, e *model.Event) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.Title, e.Description, e.EventDate, e.Platform, e.EventURL, e.ReplayURL, e.Active, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// ListEvents возвращает события, начиная с самых поздних. activeOnly отбрасывает скрытые.
func (r *PostgresRepository) ListEvents(ctx context.Context, activeOnly bool) ([]model.Event, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM events WHERE NOT $1 OR active ORDER BY event_date DESC`,
		activeOnly,
	)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer rows.Close()

	var res []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// UpdateEvent блокирует событие, применяет mutate и сохраняет результат.
func (r *PostgresRepository) UpdateEvent(ctx context.Context, id string, mutate func(*model.Event) error) (*model.Event, error) {
	var updated *model.Event

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		e, err := scanEvent(tx.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		if err := mutate(e); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE events
			 SET title = $2, description = $3, event_date = $4, platform = $5, event_url = $6, replay_url = $7, active = $8
			 WHERE id = $1`,
			e.ID, e.Title, e.Description, e.EventDate, e.Platform, e.EventURL, e.ReplayURL, e.Active,
		)
		if err != nil {
			return fmt.Errorf("update event: %w", err)
		}

		updated = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteEvent удаляет событие.
func (r *PostgresRepository) DeleteEvent(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

const reviewColumns = `id, member_id, rating, title, content, pros, cons, status, helpful, not_helpful, created_at, approved_at`

func scanReview(row pgx.Row) (*model.Review, error) {
	var (
		rv     model.Review
		status string
	)
	err := row.Scan(&rv.ID, &rv.MemberID, &rv.Rating, &rv.Title, &rv.Content, &rv.Pros, &rv.Cons,
		&status, &rv.Helpful, &rv.NotHelpful, &rv.CreatedAt, &rv.ApprovedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("scan review: %w", err)
	}
	rv.Status = model.ReviewStatus(status)
	return &rv, nil
}

// CreateReview сохраняет отзыв.
func (r *PostgresRepository) CreateReview(ctx context.Context, rv *model.Review) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO reviews (`+reviewColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rv.ID, rv.MemberID, rv.Rating, rv.Title, rv.Content, rv.Pros, rv.Cons, string(rv.Status),
		rv.Helpful, rv.NotHelpful, rv.CreatedAt, rv.ApprovedAt,
	)
	if err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

// ListReviews возвращает отзывы с указанным статусом или все, если статус пуст.
func (r *PostgresRepository) ListReviews(ctx context.Context, status model.ReviewStatus) ([]model.Review, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE $1 = '' OR status = $1 ORDER BY created_at DESC`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("select reviews: %w", err)
	}
	defer rows.Close()

	var res []model.Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *rv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// UpdateReview блокирует отзыв, применяет mutate и сохраняет статус модерации.
func (r *PostgresRepository) UpdateReview(ctx context.Context, id string, mutate func(*model.Review) error) (*model.Review, error) {
	var updated *model.Review

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		rv, err := scanReview(tx.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		if err := mutate(rv); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE reviews SET status = $2, approved_at = $3 WHERE id = $1`,
			rv.ID, string(rv.Status), rv.ApprovedAt,
		)
		if err != nil {
			return fmt.Errorf("update review: %w", err)
		}

		updated = rv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// MarkReviewHelpful атомарно увеличивает счётчик полезности отзыва.
func (r *PostgresRepository) MarkReviewHelpful(ctx context.Context, id string, helpful bool) error {
	query := `UPDATE reviews SET not_helpful = not_helpful + 1 WHERE id = $1`
	if helpful {
		query = `UPDATE reviews SET helpful = helpful + 1 WHERE id = $1`
	}

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark review helpful: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReviewNotFound
	}
	return nil
}

// GetSiteSettings возвращает настройки сайта.
func (r *PostgresRepository) GetSiteSettings(ctx context.Context) (*model.SiteSettings, error) {
	var s model.SiteSettings
	err := r.pool.QueryRow(ctx,
		`SELECT membership_price, bank_name, bank_account, bank_account_name, line_url, updated_at, updated_by
		 FROM site_settings WHERE id = 1`,
	).Scan(&s.MembershipPrice, &s.BankName, &s.BankAccount, &s.BankAccountName, &s.LineURL, &s.UpdatedAt, &s.UpdatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("get site settings: %w", err)
	}
	return &s, nil
}

// UpsertSiteSettings сохраняет настройки сайта в единственную строку с фиксированным ключом.
func (r *PostgresRepository) UpsertSiteSettings(ctx context.Context, s *model.SiteSettings) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO site_settings (id, membership_price, bank_name, bank_account, bank_account_name, line_url, updated_at, updated_by)
		 VALUES (1, $1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		     membership_price = EXCLUDED.membership_price,
		     bank_name = EXCLUDED.bank_name,
		     bank_account = EXCLUDED.bank_account,
		     bank_account_name = EXCLUDED.bank_account_name,
		     line_url = EXCLUDED.line_url,
		     updated_at = EXCLUDED.updated_at,
		     updated_by = EXCLUDED.updated_by`,
		s.MembershipPrice, s.BankName, s.BankAccount, s.BankAccountName, s.LineURL, s.UpdatedAt, s.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("upsert site settings: %w", err)
	}
	return nil
}
