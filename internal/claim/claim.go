// Package claim решает, может ли участник оформить заявку на подарок.
package claim

import (
	"errors"

	"github.com/mmeshcher/memberclub/internal/model"
	"github.com/mmeshcher/memberclub/internal/quota"
)

var (
	// ErrNotApproved возвращается, если членство участника не подтверждено.
	ErrNotApproved = errors.New("member is not approved")
	// ErrAlreadyClaimed возвращается, если у участника уже есть заявка на подарок.
	ErrAlreadyClaimed = errors.New("gift already claimed")
	// ErrGiftInactive возвращается, если подарок снят с каталога.
	ErrGiftInactive = errors.New("gift is inactive")
	// ErrQuotaExhausted возвращается, если месячная квота подарка исчерпана.
	ErrQuotaExhausted = errors.New("monthly quota exhausted")
)

// Authorize проверяет условия выдачи подарка по порядку и возвращает первую причину отказа.
// Участнику разрешена одна заявка за всё время членства, независимо от подарка и её статуса.
func Authorize(member model.Member, gift model.Gift, existing []model.GiftDelivery, usedThisMonth int) error {
	if member.Status != model.MemberStatusApproved {
		return ErrNotApproved
	}
	if len(existing) > 0 {
		return ErrAlreadyClaimed
	}
	if !gift.Active {
		return ErrGiftInactive
	}
	if quota.Exhausted(quota.RemainingFor(gift, usedThisMonth)) {
		return ErrQuotaExhausted
	}
	return nil
}

// AuthorizeSnapshot применяет Authorize к срезу состояния.
func AuthorizeSnapshot(s model.ClaimSnapshot) error {
	return Authorize(s.Member, s.Gift, s.Deliveries, s.UsedThisMonth)
}

// Reason возвращает машинно-читаемый код причины отказа или пустую строку.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrNotApproved):
		return "not_approved"
	case errors.Is(err, ErrAlreadyClaimed):
		return "already_claimed"
	case errors.Is(err, ErrGiftInactive):
		return "gift_inactive"
	case errors.Is(err, ErrQuotaExhausted):
		return "quota_exhausted"
	}
	return ""
}
