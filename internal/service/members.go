package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mmeshcher/memberclub/internal/membership"
	"github.com/mmeshcher/memberclub/internal/model"
	"github.com/mmeshcher/memberclub/internal/repository"
	"github.com/mmeshcher/memberclub/internal/validation"
)

// GetMember возвращает участника по идентификатору.
func (s *Service) GetMember(ctx context.Context, id string) (*model.Member, error) {
	return s.repo.GetMember(ctx, id)
}

// ListMembers возвращает всех участников.
func (s *Service) ListMembers(ctx context.Context) ([]model.Member, error) {
	return s.repo.ListMembers(ctx)
}

// UpdateProfile изменяет имя, обращение и телефон участника. Статус и даты членства не затрагиваются.
func (s *Service) UpdateProfile(ctx context.Context, memberID string, upd model.MemberUpdate) (*model.Member, error) {
	profile := model.MemberUpdate{
		Phone:  upd.Phone,
		Prefix: upd.Prefix,
		Name:   upd.Name,
	}
	return s.repo.UpdateMember(ctx, memberID, func(m *model.Member) error {
		return applyMemberUpdate(m, profile)
	})
}

// UpdateMember применяет изменение администратора к участнику.
// Даты членства после изменения должны быть заданы парой и не нарушать порядок.
func (s *Service) UpdateMember(ctx context.Context, id string, upd model.MemberUpdate) (*model.Member, error) {
	return s.repo.UpdateMember(ctx, id, func(m *model.Member) error {
		return applyMemberUpdate(m, upd)
	})
}

func applyMemberUpdate(m *model.Member, upd model.MemberUpdate) error {
	if upd.Phone != nil {
		phone := strings.TrimSpace(*upd.Phone)
		if !validation.IsValidPhone(phone) {
			return fmt.Errorf("%w: phone must be 9-10 digits starting with 0", ErrInvalidInput)
		}
		m.Phone = phone
	}
	if upd.Prefix != nil {
		m.Prefix = strings.TrimSpace(*upd.Prefix)
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return fmt.Errorf("%w: name is required", ErrInvalidInput)
		}
		m.Name = name
	}
	if upd.Status != nil {
		if !upd.Status.Valid() {
			return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *upd.Status)
		}
		m.Status = *upd.Status
	}

	if upd.ClearMembership {
		m.MembershipStart = nil
		m.MembershipEnd = nil
	}
	if upd.MembershipStart != nil {
		start := *upd.MembershipStart
		m.MembershipStart = &start
	}
	if upd.MembershipEnd != nil {
		end := *upd.MembershipEnd
		m.MembershipEnd = &end
	}

	if err := membership.ValidatePeriod(m.MembershipStart, m.MembershipEnd); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

// SubmitPayment сохраняет платёж участника и переводит pending_payment в pending_approval.
// Подтверждённый участник при продлении остаётся approved.
func (s *Service) SubmitPayment(ctx context.Context, memberID string, amount int64, slipRef string) (*model.Payment, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	p := &model.Payment{
		ID:        s.newID(),
		MemberID:  memberID,
		Amount:    amount,
		Status:    model.PaymentStatusPending,
		CreatedAt: s.now(),
	}
	if ref := strings.TrimSpace(slipRef); ref != "" {
		p.SlipRef = &ref
	}

	if _, err := s.repo.SubmitPayment(ctx, p, membership.AfterPaymentSubmitted); err != nil {
		return nil, err
	}
	return p, nil
}

// ListMemberPayments возвращает платежи участника.
func (s *Service) ListMemberPayments(ctx context.Context, memberID string) ([]model.Payment, error) {
	return s.repo.ListPaymentsByMember(ctx, memberID)
}

// ListPayments возвращает платежи с указанным статусом; пустой статус означает все платежи.
func (s *Service) ListPayments(ctx context.Context, status model.PaymentStatus) ([]model.Payment, error) {
	return s.repo.ListPayments(ctx, status)
}

// VerifyPayment подтверждает или отклоняет ожидающий платёж.
//
// Проверка статуса и запись решения выполняются одной условной операцией хранилища, поэтому
// из параллельных вызовов для одного платежа успешен только один. При подтверждении владелец
// платежа в той же транзакции становится approved с периодом [now, now+30 дней].
func (s *Service) VerifyPayment(ctx context.Context, paymentID string, decision model.PaymentStatus, adminID string) (*model.Payment, error) {
	p, err := s.verifyPayment(ctx, paymentID, decision, adminID)
	s.metrics.PaymentDecision(string(decision), paymentOutcome(err))
	return p, err
}

func (s *Service) verifyPayment(ctx context.Context, paymentID string, decision model.PaymentStatus, adminID string) (*model.Payment, error) {
	current, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := membership.CheckDecision(current.Status, decision); err != nil {
		return nil, err
	}

	now := s.now()
	p, err := s.repo.ProcessPayment(ctx, paymentID, decision, adminID, now, func(m *model.Member) {
		membership.ApplyVerification(m, now)
	})
	if err != nil {
		if errors.Is(err, repository.ErrPaymentProcessed) {
			return nil, membership.ErrAlreadyProcessed
		}
		return nil, err
	}
	return p, nil
}

func paymentOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, membership.ErrAlreadyProcessed):
		return "already_processed"
	case errors.Is(err, membership.ErrInvalidDecision):
		return "invalid_decision"
	case errors.Is(err, repository.ErrPaymentNotFound):
		return "not_found"
	}
	return "error"
}
