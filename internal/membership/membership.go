// Package membership реализует переходы статуса участника и продление членства.
package membership

import (
	"errors"
	"time"

	"github.com/mmeshcher/memberclub/internal/model"
)

// PeriodDays задаёт срок членства в календарных днях, начисляемый при подтверждении платежа.
// Срок отсчитывается от момента подтверждения, неиспользованные дни не переносятся.
const PeriodDays = 30

var (
	// ErrAlreadyProcessed возвращается при повторной обработке платежа.
	ErrAlreadyProcessed = errors.New("payment already processed")
	// ErrInvalidDecision возвращается, если решение по платежу не verified и не rejected.
	ErrInvalidDecision = errors.New("decision must be verified or rejected")
	// ErrInvalidPeriod возвращается, если даты членства заданы не парой или начало позже конца.
	ErrInvalidPeriod = errors.New("membership start and end must be set together and start must not be after end")
)

// InitialStatus возвращает статус нового участника.
func InitialStatus() model.MemberStatus {
	return model.MemberStatusPendingPayment
}

// AfterPaymentSubmitted возвращает статус участника после отправки платежа и признак изменения.
// Подтверждённый участник, продлевающий членство, остаётся approved.
func AfterPaymentSubmitted(current model.MemberStatus) (model.MemberStatus, bool) {
	if current == model.MemberStatusPendingPayment {
		return model.MemberStatusPendingApproval, true
	}
	return current, false
}

// CheckDecision проверяет, что платёж можно перевести в состояние decision.
func CheckDecision(current, decision model.PaymentStatus) error {
	if decision != model.PaymentStatusVerified && decision != model.PaymentStatusRejected {
		return ErrInvalidDecision
	}
	if current != model.PaymentStatusPending {
		return ErrAlreadyProcessed
	}
	return nil
}

// ApplyVerification переводит участника в approved и перезаписывает период членства
// на [now, now+PeriodDays].
func ApplyVerification(m *model.Member, now time.Time) {
	start := now
	end := now.AddDate(0, 0, PeriodDays)
	m.Status = model.MemberStatusApproved
	m.MembershipStart = &start
	m.MembershipEnd = &end
}

// ValidatePeriod проверяет инвариант дат членства.
func ValidatePeriod(start, end *time.Time) error {
	if (start == nil) != (end == nil) {
		return ErrInvalidPeriod
	}
	if start != nil && start.After(*end) {
		return ErrInvalidPeriod
	}
	return nil
}

// Active сообщает, действует ли членство в момент now.
func Active(m model.Member, now time.Time) bool {
	if m.Status != model.MemberStatusApproved {
		return false
	}
	return m.MembershipEnd == nil || !now.After(*m.MembershipEnd)
}

// ExpiringWithin сообщает, истекает ли членство в интервале [now, now+d].
func ExpiringWithin(m model.Member, now time.Time, d time.Duration) bool {
	if m.MembershipEnd == nil {
		return false
	}
	end := *m.MembershipEnd
	return !end.Before(now) && !end.After(now.Add(d))
}
