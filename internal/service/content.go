package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mmeshcher/memberclub/internal/claim"
	"github.com/mmeshcher/memberclub/internal/membership"
	"github.com/mmeshcher/memberclub/internal/model"
	"github.com/mmeshcher/memberclub/internal/repository"
	"github.com/mmeshcher/memberclub/internal/validation"
)

// expiringSoonWindow задаёт горизонт, в пределах которого членство считается истекающим.
const expiringSoonWindow = 7 * 24 * time.Hour

// ListEvents возвращает события. activeOnly скрывает неактивные.
func (s *Service) ListEvents(ctx context.Context, activeOnly bool) ([]model.Event, error) {
	return s.repo.ListEvents(ctx, activeOnly)
}

func validateEvent(e model.Event) error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if e.EventDate.IsZero() {
		return fmt.Errorf("%w: eventDate is required", ErrInvalidInput)
	}
	if !validation.IsValidPlatform(e.Platform) {
		return fmt.Errorf("%w: platform must be zoom or vimeo", ErrInvalidInput)
	}
	if strings.TrimSpace(e.EventURL) == "" {
		return fmt.Errorf("%w: eventUrl is required", ErrInvalidInput)
	}
	return nil
}

// CreateEvent создаёт событие.
func (s *Service) CreateEvent(ctx context.Context, e model.Event) (*model.Event, error) {
	if err := validateEvent(e); err != nil {
		return nil, err
	}

	e.ID = s.newID()
	e.CreatedAt = s.now()
	if err := s.repo.CreateEvent(ctx, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdateEvent применяет частичное изменение события.
func (s *Service) UpdateEvent(ctx context.Context, id string, upd model.EventUpdate) (*model.Event, error) {
	return s.repo.UpdateEvent(ctx, id, func(e *model.Event) error {
		if upd.Title != nil {
			e.Title = *upd.Title
		}
		if upd.Description != nil {
			e.Description = optional(*upd.Description)
		}
		if upd.EventDate != nil {
			e.EventDate = *upd.EventDate
		}
		if upd.Platform != nil {
			e.Platform = *upd.Platform
		}
		if upd.EventURL != nil {
			e.EventURL = *upd.EventURL
		}
		if upd.ReplayURL != nil {
			e.ReplayURL = optional(*upd.ReplayURL)
		}
		if upd.Active != nil {
			e.Active = *upd.Active
		}
		return validateEvent(*e)
	})
}

// DeleteEvent удаляет событие.
func (s *Service) DeleteEvent(ctx context.Context, id string) error {
	return s.repo.DeleteEvent(ctx, id)
}

// SubmitReview сохраняет отзыв участника на модерацию. Писать отзывы могут только подтверждённые участники.
func (s *Service) SubmitReview(ctx context.Context, memberID string, rv model.Review) (*model.Review, error) {
	m, err := s.repo.GetMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if m.Status != model.MemberStatusApproved {
		return nil, claim.ErrNotApproved
	}

	if !validation.IsValidRating(rv.Rating) {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}
	rv.Title = strings.TrimSpace(rv.Title)
	rv.Content = strings.TrimSpace(rv.Content)
	if rv.Title == "" || rv.Content == "" {
		return nil, fmt.Errorf("%w: title and content are required", ErrInvalidInput)
	}

	rv.ID = s.newID()
	rv.MemberID = memberID
	rv.Status = model.ReviewStatusPending
	rv.Helpful = 0
	rv.NotHelpful = 0
	rv.CreatedAt = s.now()
	rv.ApprovedAt = nil
	if err := s.repo.CreateReview(ctx, &rv); err != nil {
		return nil, err
	}
	return &rv, nil
}

// ListReviews возвращает отзывы с указанным статусом; пустой статус означает все отзывы.
func (s *Service) ListReviews(ctx context.Context, status model.ReviewStatus) ([]model.Review, error) {
	return s.repo.ListReviews(ctx, status)
}

// ModerateReview одобряет или отклоняет отзыв. При одобрении фиксируется время.
func (s *Service) ModerateReview(ctx context.Context, id string, status model.ReviewStatus) (*model.Review, error) {
	if status != model.ReviewStatusApproved && status != model.ReviewStatusRejected {
		return nil, fmt.Errorf("%w: status must be approved or rejected", ErrInvalidInput)
	}

	now := s.now()
	return s.repo.UpdateReview(ctx, id, func(rv *model.Review) error {
		rv.Status = status
		if status == model.ReviewStatusApproved {
			rv.ApprovedAt = &now
		} else {
			rv.ApprovedAt = nil
		}
		return nil
	})
}

// MarkReviewHelpful учитывает оценку полезности отзыва.
func (s *Service) MarkReviewHelpful(ctx context.Context, id string, helpful bool) error {
	return s.repo.MarkReviewHelpful(ctx, id, helpful)
}

// GetSiteSettings возвращает настройки сайта или значения по умолчанию, если они не сохранялись.
func (s *Service) GetSiteSettings(ctx context.Context) (*model.SiteSettings, error) {
	settings, err := s.repo.GetSiteSettings(ctx)
	if errors.Is(err, repository.ErrSettingsNotFound) {
		return &model.SiteSettings{MembershipPrice: s.membershipPrice}, nil
	}
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// UpdateSiteSettings сохраняет настройки сайта от имени администратора.
func (s *Service) UpdateSiteSettings(ctx context.Context, adminID string, settings model.SiteSettings) (*model.SiteSettings, error) {
	if settings.MembershipPrice <= 0 {
		return nil, fmt.Errorf("%w: membershipPrice must be positive", ErrInvalidInput)
	}

	settings.UpdatedAt = s.now()
	settings.UpdatedBy = &adminID
	if err := s.repo.UpsertSiteSettings(ctx, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// DashboardStats собирает сводку для панели администратора.
func (s *Service) DashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	now := s.now()
	var stats model.DashboardStats

	members, err := s.repo.ListMembers(ctx)
	if err != nil {
		return nil, err
	}
	stats.TotalUsers = len(members)
	for _, m := range members {
		if membership.Active(m, now) {
			stats.ActiveMembers++
		}
		if m.Status == model.MemberStatusPendingApproval {
			stats.PendingApprovals++
		}
		if m.Status == model.MemberStatusApproved && membership.ExpiringWithin(m, now, expiringSoonWindow) {
			stats.ExpiringSoon++
		}
	}

	events, err := s.repo.ListEvents(ctx, true)
	if err != nil {
		return nil, err
	}
	for _, e := range events {
		if !e.EventDate.Before(now) {
			stats.UpcomingEvents++
		}
	}

	reviews, err := s.repo.ListReviews(ctx, "")
	if err != nil {
		return nil, err
	}
	stats.TotalReviews = len(reviews)
	var ratingSum, approved int
	for _, rv := range reviews {
		if rv.Status == model.ReviewStatusApproved {
			ratingSum += rv.Rating
			approved++
		}
	}
	if approved > 0 {
		stats.AverageRating = math.Round(float64(ratingSum)/float64(approved)*10) / 10
	}

	deliveries, err := s.repo.ListDeliveries(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range deliveries {
		if d.Status == model.DeliveryStatusSent {
			stats.GiftsDelivered++
		}
	}

	payments, err := s.repo.ListPayments(ctx, "")
	if err != nil {
		return nil, err
	}
	stats.TotalPayments = len(payments)
	for _, p := range payments {
		switch p.Status {
		case model.PaymentStatusVerified:
			stats.VerifiedPayments++
		case model.PaymentStatusPending:
			stats.PendingPayments++
		}
	}

	return &stats, nil
}
