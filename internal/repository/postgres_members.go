package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/memberclub/internal/model"
)

const memberColumns = `id, phone, password_hash, prefix, name, status, membership_start, membership_end, created_at`

func scanMember(row pgx.Row) (*model.Member, error) {
	var (
		m      model.Member
		status string
	)
	err := row.Scan(&m.ID, &m.Phone, &m.PasswordHash, &m.Prefix, &m.Name, &status,
		&m.MembershipStart, &m.MembershipEnd, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("scan member: %w", err)
	}
	m.Status = model.MemberStatus(status)
	return &m, nil
}

// CreateMember создаёт участника.
func (r *PostgresRepository) CreateMember(ctx context.Context, m *model.Member) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO members (`+memberColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.Phone, m.PasswordHash, m.Prefix, m.Name, string(m.Status),
		m.MembershipStart, m.MembershipEnd, m.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return fmt.Errorf("%w: %s", ErrMemberExists, m.Phone)
		}
		return fmt.Errorf("create member: %w", err)
	}
	return nil
}

// GetMember возвращает участника по идентификатору.
func (r *PostgresRepository) GetMember(ctx context.Context, id string) (*model.Member, error) {
	return scanMember(r.pool.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id))
}

// GetMemberByPhone возвращает участника по номеру телефона.
func (r *PostgresRepository) GetMemberByPhone(ctx context.Context, phone string) (*model.Member, error) {
	return scanMember(r.pool.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE phone = $1`, phone))
}

// ListMembers возвращает всех участников, новые первыми.
func (r *PostgresRepository) ListMembers(ctx context.Context) ([]model.Member, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+memberColumns+` FROM members ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("select members: %w", err)
	}
	defer rows.Close()

	var res []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateMember блокирует строку участника, применяет к ней mutate и сохраняет результат.
// Если mutate возвращает ошибку, изменения не сохраняются.
func (r *PostgresRepository) UpdateMember(ctx context.Context, id string, mutate func(*model.Member) error) (*model.Member, error) {
	var updated *model.Member

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		m, err := scanMember(tx.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		if err := mutate(m); err != nil {
			return err
		}

		if err := saveMember(ctx, tx, m); err != nil {
			return err
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func saveMember(ctx context.Context, tx pgx.Tx, m *model.Member) error {
	_, err := tx.Exec(ctx,
		`UPDATE members
		 SET phone = $2, prefix = $3, name = $4, status = $5, membership_start = $6, membership_end = $7
		 WHERE id = $1`,
		m.ID, m.Phone, m.Prefix, m.Name, string(m.Status), m.MembershipStart, m.MembershipEnd,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return fmt.Errorf("%w: %s", ErrMemberExists, m.Phone)
		}
		return fmt.Errorf("update member: %w", err)
	}
	return nil
}

// UpdateMemberPassword заменяет хеш пароля участника.
func (r *PostgresRepository) UpdateMemberPassword(ctx context.Context, id string, passwordHash []byte) error {
	tag, err := r.pool.Exec(ctx, `UPDATE members SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update member password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMemberNotFound
	}
	return nil
}

const paymentColumns = `id, member_id, amount, slip_ref, status, created_at, verified_at, verified_by`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var (
		p      model.Payment
		status string
	)
	err := row.Scan(&p.ID, &p.MemberID, &p.Amount, &p.SlipRef, &status, &p.CreatedAt, &p.VerifiedAt, &p.VerifiedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	p.Status = model.PaymentStatus(status)
	return &p, nil
}

func collectPayments(rows pgx.Rows) ([]model.Payment, error) {
	defer rows.Close()

	var res []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// SubmitPayment сохраняет платёж и в той же транзакции переводит статус владельца через advance.
// advance получает текущий статус и возвращает новый и признак изменения.
func (r *PostgresRepository) SubmitPayment(ctx context.Context, p *model.Payment,
	advance func(model.MemberStatus) (model.MemberStatus, bool)) (*model.Member, error) {
	var owner *model.Member

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		m, err := scanMember(tx.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1 FOR UPDATE`, p.MemberID))
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO payments (`+paymentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			p.ID, p.MemberID, p.Amount, p.SlipRef, string(p.Status), p.CreatedAt, p.VerifiedAt, p.VerifiedBy,
		)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}

		if next, changed := advance(m.Status); changed {
			_, err = tx.Exec(ctx,
				`UPDATE members SET status = $3 WHERE id = $1 AND status = $2`,
				m.ID, string(m.Status), string(next),
			)
			if err != nil {
				return fmt.Errorf("advance member status: %w", err)
			}
			m.Status = next
		}

		owner = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return owner, nil
}

// GetPayment возвращает платёж по идентификатору.
func (r *PostgresRepository) GetPayment(ctx context.Context, id string) (*model.Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
}

// ListPayments возвращает платежи с указанным статусом или все, если статус пуст.
func (r *PostgresRepository) ListPayments(ctx context.Context, status model.PaymentStatus) ([]model.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments
		 WHERE $1 = '' OR status = $1
		 ORDER BY created_at DESC`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	return collectPayments(rows)
}

// ListPaymentsByMember возвращает платежи участника, новые первыми.
func (r *PostgresRepository) ListPaymentsByMember(ctx context.Context, memberID string) ([]model.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE member_id = $1 ORDER BY created_at DESC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("select member payments: %w", err)
	}
	return collectPayments(rows)
}

// ProcessPayment условно переводит платёж из pending в decision. Если платёж подтверждён,
// в той же транзакции к его владельцу применяется onVerified.
// Повторная обработка возвращает ErrPaymentProcessed без изменений.
func (r *PostgresRepository) ProcessPayment(ctx context.Context, id string, decision model.PaymentStatus,
	adminID string, now time.Time, onVerified func(*model.Member)) (*model.Payment, error) {
	var processed *model.Payment

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		p, err := scanPayment(tx.QueryRow(ctx,
			`UPDATE payments
			 SET status = $2, verified_at = $3, verified_by = $4
			 WHERE id = $1 AND status = $5
			 RETURNING `+paymentColumns,
			id, string(decision), now, adminID, string(model.PaymentStatusPending),
		))
		if errors.Is(err, ErrPaymentNotFound) {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM payments WHERE id = $1)`, id).Scan(&exists); err != nil {
				return fmt.Errorf("check payment: %w", err)
			}
			if exists {
				return ErrPaymentProcessed
			}
			return ErrPaymentNotFound
		}
		if err != nil {
			return err
		}

		if decision == model.PaymentStatusVerified {
			m, err := scanMember(tx.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1 FOR UPDATE`, p.MemberID))
			if err != nil {
				return err
			}
			onVerified(m)
			if err := saveMember(ctx, tx, m); err != nil {
				return err
			}
		}

		processed = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return processed, nil
}
