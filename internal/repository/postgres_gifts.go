package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/memberclub/internal/model"
)

const giftColumns = `id, name, description, details, image_url, active, monthly_quota`

func scanGift(row pgx.Row) (*model.Gift, error) {
	var g model.Gift
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.Details, &g.ImageURL, &g.Active, &g.MonthlyQuota)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGiftNotFound
		}
		return nil, fmt.Errorf("scan gift: %w", err)
	}
	return &g, nil
}

// CreateGift добавляет подарок в каталог.
func (r *PostgresRepository) CreateGift(ctx context.Context, g *model.Gift) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO gifts (`+giftColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		g.ID, g.Name, g.Description, g.Details, g.ImageURL, g.Active, g.MonthlyQuota,
	)
	if err != nil {
		return fmt.Errorf("create gift: %w", err)
	}
	return nil
}

// GetGift возвращает подарок по идентификатору.
func (r *PostgresRepository) GetGift(ctx context.Context, id string) (*model.Gift, error) {
	return scanGift(r.pool.QueryRow(ctx, `SELECT `+giftColumns+` FROM gifts WHERE id = $1`, id))
}

// ListGifts возвращает весь каталог подарков.
func (r *PostgresRepository) ListGifts(ctx context.Context) ([]model.Gift, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+giftColumns+` FROM gifts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("select gifts: %w", err)
	}
	defer rows.Close()

	var res []model.Gift
	for rows.Next() {
		g, err := scanGift(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// UpdateGift блокирует строку подарка, применяет mutate и сохраняет результат.
func (r *PostgresRepository) UpdateGift(ctx context.Context, id string, mutate func(*model.Gift) error) (*model.Gift, error) {
	var updated *model.Gift

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		g, err := scanGift(tx.QueryRow(ctx, `SELECT `+giftColumns+` FROM gifts WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		if err := mutate(g); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE gifts
			 SET name = $2, description = $3, details = $4, image_url = $5, active = $6, monthly_quota = $7
			 WHERE id = $1`,
			g.ID, g.Name, g.Description, g.Details, g.ImageURL, g.Active, g.MonthlyQuota,
		)
		if err != nil {
			return fmt.Errorf("update gift: %w", err)
		}

		updated = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func countDeliveries(ctx context.Context, q querier, giftID string, from, to time.Time) (int, error) {
	var n int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM gift_deliveries WHERE gift_id = $1 AND created_at >= $2 AND created_at < $3`,
		giftID, from, to,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count gift deliveries: %w", err)
	}
	return n, nil
}

// CountDeliveriesInRange возвращает число заявок на подарок, созданных в полуинтервале [from, to).
func (r *PostgresRepository) CountDeliveriesInRange(ctx context.Context, giftID string, from, to time.Time) (int, error) {
	return countDeliveries(ctx, r.pool, giftID, from, to)
}

const deliveryColumns = `id, member_id, gift_id, delivery_name, delivery_phone, house_number, moo_soi, street,
	subdistrict, district, province, postal_code, delivery_date, status, tracking_number, tracking_url,
	created_at, updated_at`

func scanDelivery(row pgx.Row) (*model.GiftDelivery, error) {
	var (
		d      model.GiftDelivery
		status string
	)
	err := row.Scan(&d.ID, &d.MemberID, &d.GiftID, &d.DeliveryName, &d.DeliveryPhone, &d.HouseNumber,
		&d.MooSoi, &d.Street, &d.Subdistrict, &d.District, &d.Province, &d.PostalCode, &d.DeliveryDate,
		&status, &d.TrackingNumber, &d.TrackingURL, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("scan gift delivery: %w", err)
	}
	d.Status = model.DeliveryStatus(status)
	return &d, nil
}

func collectDeliveries(rows pgx.Rows) ([]model.GiftDelivery, error) {
	defer rows.Close()

	var res []model.GiftDelivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// ClaimGift атомарно принимает решение о выдаче подарка и сохраняет заявку.
//
// Строки участника и подарка блокируются (в этом порядке), после чего собирается срез состояния:
// заявки участника и число заявок на подарок в [from, to). decide получает срез; если он
// возвращает ошибку, заявка не создаётся и ошибка возвращается как есть. Уникальный индекс по
// member_id дополнительно гарантирует не более одной заявки на участника.
func (r *PostgresRepository) ClaimGift(ctx context.Context, d *model.GiftDelivery, from, to time.Time,
	decide func(model.ClaimSnapshot) error) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		m, err := scanMember(tx.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1 FOR UPDATE`, d.MemberID))
		if err != nil {
			return err
		}

		g, err := scanGift(tx.QueryRow(ctx, `SELECT `+giftColumns+` FROM gifts WHERE id = $1 FOR UPDATE`, d.GiftID))
		if err != nil {
			return err
		}

		rows, err := tx.Query(ctx, `SELECT `+deliveryColumns+` FROM gift_deliveries WHERE member_id = $1`, d.MemberID)
		if err != nil {
			return fmt.Errorf("select member deliveries: %w", err)
		}
		existing, err := collectDeliveries(rows)
		if err != nil {
			return err
		}

		used, err := countDeliveries(ctx, tx, d.GiftID, from, to)
		if err != nil {
			return err
		}

		if err := decide(model.ClaimSnapshot{Member: *m, Gift: *g, Deliveries: existing, UsedThisMonth: used}); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO gift_deliveries (`+deliveryColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
			d.ID, d.MemberID, d.GiftID, d.DeliveryName, d.DeliveryPhone, d.HouseNumber, d.MooSoi, d.Street,
			d.Subdistrict, d.District, d.Province, d.PostalCode, d.DeliveryDate, string(d.Status),
			d.TrackingNumber, d.TrackingURL, d.CreatedAt, d.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err, "uq_gift_deliveries_member_id") {
				return ErrDeliveryExists
			}
			return fmt.Errorf("insert gift delivery: %w", err)
		}
		return nil
	})
}

// ListDeliveriesByMember возвращает заявки участника.
func (r *PostgresRepository) ListDeliveriesByMember(ctx context.Context, memberID string) ([]model.GiftDelivery, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+deliveryColumns+` FROM gift_deliveries WHERE member_id = $1 ORDER BY created_at DESC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("select member deliveries: %w", err)
	}
	return collectDeliveries(rows)
}

// ListDeliveries возвращает все заявки на подарки, новые первыми.
func (r *PostgresRepository) ListDeliveries(ctx context.Context) ([]model.GiftDelivery, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+deliveryColumns+` FROM gift_deliveries ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("select deliveries: %w", err)
	}
	return collectDeliveries(rows)
}

// UpdateDelivery блокирует заявку, применяет mutate и сохраняет результат.
func (r *PostgresRepository) UpdateDelivery(ctx context.Context, id string, mutate func(*model.GiftDelivery) error) (*model.GiftDelivery, error) {
	var updated *model.GiftDelivery

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		d, err := scanDelivery(tx.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM gift_deliveries WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		if err := mutate(d); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE gift_deliveries
			 SET status = $2, tracking_number = $3, tracking_url = $4, updated_at = $5
			 WHERE id = $1`,
			d.ID, string(d.Status), d.TrackingNumber, d.TrackingURL, d.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update gift delivery: %w", err)
		}

		updated = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
