package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmeshcher/memberclub/internal/claim"
	"github.com/mmeshcher/memberclub/internal/model"
	"github.com/mmeshcher/memberclub/internal/quota"
	"github.com/mmeshcher/memberclub/internal/repository"
	"github.com/mmeshcher/memberclub/internal/validation"
)

// ClaimRequest содержит данные заявки участника на подарок.
type ClaimRequest struct {
	GiftID       string
	Address      model.DeliveryAddress
	DeliveryDate time.Time
}

func (s *Service) withQuota(ctx context.Context, gifts []model.Gift, now time.Time) ([]model.GiftWithQuota, error) {
	from, to := quota.MonthWindow(now)

	res := make([]model.GiftWithQuota, 0, len(gifts))
	for _, g := range gifts {
		used, err := s.repo.CountDeliveriesInRange(ctx, g.ID, from, to)
		if err != nil {
			return nil, err
		}
		res = append(res, quota.Annotate(g, used))
	}
	return res, nil
}

// ListMemberGifts возвращает активные подарки с использованием квоты в текущем месяце.
func (s *Service) ListMemberGifts(ctx context.Context) ([]model.GiftWithQuota, error) {
	gifts, err := s.repo.ListGifts(ctx)
	if err != nil {
		return nil, err
	}

	active := gifts[:0]
	for _, g := range gifts {
		if g.Active {
			active = append(active, g)
		}
	}
	return s.withQuota(ctx, active, s.now())
}

// GiftCatalog возвращает весь каталог, включая неактивные подарки, с использованием квоты.
func (s *Service) GiftCatalog(ctx context.Context) ([]model.GiftWithQuota, error) {
	gifts, err := s.repo.ListGifts(ctx)
	if err != nil {
		return nil, err
	}
	return s.withQuota(ctx, gifts, s.now())
}

// RemainingQuota возвращает остаток месячной квоты подарка; nil означает отсутствие лимита.
func (s *Service) RemainingQuota(ctx context.Context, giftID string) (*int, error) {
	g, err := s.repo.GetGift(ctx, giftID)
	if err != nil {
		return nil, err
	}

	from, to := quota.MonthWindow(s.now())
	used, err := s.repo.CountDeliveriesInRange(ctx, g.ID, from, to)
	if err != nil {
		return nil, err
	}
	return quota.RemainingFor(*g, used), nil
}

func validateQuota(q *int) error {
	if q != nil && *q < 0 {
		return fmt.Errorf("%w: monthlyQuota must not be negative", ErrInvalidInput)
	}
	return nil
}

// CreateGift добавляет подарок в каталог.
func (s *Service) CreateGift(ctx context.Context, g model.Gift) (*model.Gift, error) {
	g.Name = strings.TrimSpace(g.Name)
	if g.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if err := validateQuota(g.MonthlyQuota); err != nil {
		return nil, err
	}

	g.ID = s.newID()
	if err := s.repo.CreateGift(ctx, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// UpdateGift применяет частичное изменение подарка.
// Квота может быть снижена ниже текущего использования: остаток тогда равен нулю.
func (s *Service) UpdateGift(ctx context.Context, id string, upd model.GiftUpdate) (*model.Gift, error) {
	if err := validateQuota(upd.MonthlyQuota); err != nil {
		return nil, err
	}

	return s.repo.UpdateGift(ctx, id, func(g *model.Gift) error {
		if upd.Name != nil {
			name := strings.TrimSpace(*upd.Name)
			if name == "" {
				return fmt.Errorf("%w: name is required", ErrInvalidInput)
			}
			g.Name = name
		}
		if upd.Description != nil {
			g.Description = *upd.Description
		}
		if upd.Details != nil {
			g.Details = *upd.Details
		}
		if upd.ImageURL != nil {
			g.ImageURL = *upd.ImageURL
		}
		if upd.Active != nil {
			g.Active = *upd.Active
		}
		if upd.ClearQuota {
			g.MonthlyQuota = nil
		}
		if upd.MonthlyQuota != nil {
			q := *upd.MonthlyQuota
			g.MonthlyQuota = &q
		}
		return nil
	})
}

// ClaimGift создаёт заявку участника на подарок.
//
// Решение принимается claim.Authorize по согласованному срезу состояния, который хранилище
// собирает и фиксирует в одной транзакции вместе с вставкой заявки. Отказ возвращается одной
// из ошибок пакета claim.
func (s *Service) ClaimGift(ctx context.Context, memberID string, req ClaimRequest) (*model.GiftDelivery, error) {
	d, err := s.claimGift(ctx, memberID, req)
	s.metrics.GiftClaim(claimOutcome(err))
	return d, err
}

func (s *Service) claimGift(ctx context.Context, memberID string, req ClaimRequest) (*model.GiftDelivery, error) {
	if err := validation.ValidateDeliveryAddress(req.Address); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if req.DeliveryDate.IsZero() {
		return nil, fmt.Errorf("%w: deliveryDate is required", ErrInvalidInput)
	}

	now := s.now()
	from, to := quota.MonthWindow(now)

	d := &model.GiftDelivery{
		ID:              s.newID(),
		MemberID:        memberID,
		GiftID:          req.GiftID,
		DeliveryAddress: req.Address,
		DeliveryDate:    req.DeliveryDate,
		Status:          model.DeliveryStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.repo.ClaimGift(ctx, d, from, to, claim.AuthorizeSnapshot)
	if err != nil {
		if errors.Is(err, repository.ErrDeliveryExists) {
			return nil, claim.ErrAlreadyClaimed
		}
		return nil, err
	}
	return d, nil
}

func claimOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	if reason := claim.Reason(err); reason != "" {
		return reason
	}
	return "error"
}

// ListMemberDeliveries возвращает заявки участника.
func (s *Service) ListMemberDeliveries(ctx context.Context, memberID string) ([]model.GiftDelivery, error) {
	return s.repo.ListDeliveriesByMember(ctx, memberID)
}

// ListDeliveries возвращает все заявки на подарки.
func (s *Service) ListDeliveries(ctx context.Context) ([]model.GiftDelivery, error) {
	return s.repo.ListDeliveries(ctx)
}

// UpdateDelivery изменяет статус и данные отслеживания заявки.
func (s *Service) UpdateDelivery(ctx context.Context, id string, upd model.DeliveryUpdate) (*model.GiftDelivery, error) {
	if upd.Status != nil && !upd.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown delivery status %q", ErrInvalidInput, *upd.Status)
	}

	now := s.now()
	return s.repo.UpdateDelivery(ctx, id, func(d *model.GiftDelivery) error {
		if upd.Status != nil {
			d.Status = *upd.Status
		}
		if upd.TrackingNumber != nil {
			d.TrackingNumber = optional(*upd.TrackingNumber)
		}
		if upd.TrackingURL != nil {
			d.TrackingURL = optional(*upd.TrackingURL)
		}
		d.UpdatedAt = now
		return nil
	})
}

// optional возвращает nil для пустой строки.
func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
